package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/frahmantamala/expense-tracker/internal"
	"github.com/xeipuuv/gojsonschema"
)

// CurrentVersion is written by Encode. Version 0 is the bare, unversioned layout.
const CurrentVersion = 1

const envelopeSchema = `{
  "type": "object",
  "required": ["schema", "version", "savedAt", "data"],
  "properties": {
    "schema":  {"type": "string", "minLength": 1},
    "version": {"type": "integer", "minimum": 0},
    "savedAt": {"type": "string", "format": "date-time"},
    "data":    {"type": ["array", "object", "null"]}
  }
}`

type Envelope struct {
	Schema  string          `json:"schema"`
	Version int             `json:"version"`
	SavedAt time.Time       `json:"savedAt"`
	Data    json.RawMessage `json:"data"`
}

// Codec wraps one persisted collection kind in a versioned envelope.
type Codec struct {
	Kind string

	envelope *gojsonschema.Schema
	data     *gojsonschema.Schema
	now      func() time.Time
}

// NewCodec compiles the envelope schema and, when dataSchema is non-empty, the
// schema every payload of this kind must satisfy.
func NewCodec(kind, dataSchema string) (*Codec, error) {
	env, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(envelopeSchema))
	if err != nil {
		return nil, fmt.Errorf("compile envelope schema: %w", err)
	}

	c := &Codec{Kind: kind, envelope: env, now: time.Now}
	if dataSchema != "" {
		c.data, err = gojsonschema.NewSchema(gojsonschema.NewStringLoader(dataSchema))
		if err != nil {
			return nil, fmt.Errorf("compile %s data schema: %w", kind, err)
		}
	}
	return c, nil
}

func MustCodec(kind, dataSchema string) *Codec {
	c, err := NewCodec(kind, dataSchema)
	if err != nil {
		panic(err)
	}
	return c
}

// WithClock overrides the savedAt clock.
func (c *Codec) WithClock(now func() time.Time) *Codec {
	cp := *c
	cp.now = now
	return &cp
}

func (c *Codec) Encode(data any) ([]byte, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", c.Kind, err)
	}
	return json.Marshal(Envelope{
		Schema:  c.Kind,
		Version: CurrentVersion,
		SavedAt: c.now().UTC(),
		Data:    payload,
	})
}

// Decode unwraps raw into out and reports the layout version it was read from.
// A top-level array, or an object without a "schema" member, is the legacy
// layout and decodes as version 0.
func (c *Codec) Decode(raw []byte, out any) (int, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || !json.Valid(trimmed) {
		return 0, internal.ErrUnreadableData.WithCause(fmt.Errorf("%s: not valid JSON", c.Kind))
	}

	switch trimmed[0] {
	case '[':
		return 0, c.decodeData(trimmed, out)
	case '{':
	default:
		return 0, internal.ErrUnreadableData.WithCause(fmt.Errorf("%s: unexpected top-level JSON value", c.Kind))
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &probe); err != nil {
		return 0, internal.ErrUnreadableData.WithCause(err)
	}
	if _, versioned := probe["schema"]; !versioned {
		return 0, c.decodeData(trimmed, out)
	}

	if details, err := validate(c.envelope, trimmed); err != nil {
		return 0, internal.ErrUnreadableData.WithCause(err)
	} else if len(details) > 0 {
		return 0, internal.ErrUnreadableData.
			WithDetails(details).
			WithCause(fmt.Errorf("%s: envelope does not match schema", c.Kind))
	}

	var env Envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return 0, internal.ErrUnreadableData.WithCause(err)
	}
	if env.Schema != c.Kind {
		return env.Version, internal.ErrUnreadableData.WithCause(fmt.Errorf("expected %s envelope, found %s", c.Kind, env.Schema))
	}
	if env.Version > CurrentVersion {
		return env.Version, internal.ErrUnsupportedSchemaVersion.WithCause(fmt.Errorf("%s: version %d, newest supported %d", c.Kind, env.Version, CurrentVersion))
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return env.Version, nil
	}
	return env.Version, c.decodeData(env.Data, out)
}

func (c *Codec) decodeData(payload []byte, out any) error {
	if c.data != nil {
		details, err := validate(c.data, payload)
		if err != nil {
			return internal.ErrUnreadableData.WithCause(err)
		}
		if len(details) > 0 {
			return internal.ErrUnreadableData.
				WithDetails(details).
				WithCause(fmt.Errorf("%s: payload does not match schema", c.Kind))
		}
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return internal.ErrUnreadableData.WithCause(err)
	}
	return nil
}

func validate(schema *gojsonschema.Schema, doc []byte) ([]string, error) {
	res, err := schema.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return nil, err
	}
	if res.Valid() {
		return nil, nil
	}
	details := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		details = append(details, e.String())
	}
	return details, nil
}
