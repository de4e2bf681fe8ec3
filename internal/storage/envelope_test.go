package storage_test

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/frahmantamala/expense-tracker/internal"
	"github.com/frahmantamala/expense-tracker/internal/storage"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type item struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

const itemsSchema = `{
  "type": "array",
  "items": {
    "type": "object",
    "required": ["id"],
    "properties": {"id": {"type": "string", "minLength": 1}}
  }
}`

var _ = Describe("Envelope codec", func() {
	var (
		codec *storage.Codec
		fixed time.Time
	)

	BeforeEach(func() {
		fixed = time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
		codec = storage.MustCodec("items", itemsSchema).WithClock(func() time.Time { return fixed })
	})

	Describe("Encode", func() {
		It("wraps data with kind, version and timestamp", func() {
			raw, err := codec.Encode([]item{{ID: "a", Name: "one"}})
			Expect(err).NotTo(HaveOccurred())

			var env storage.Envelope
			Expect(json.Unmarshal(raw, &env)).To(Succeed())
			Expect(env.Schema).To(Equal("items"))
			Expect(env.Version).To(Equal(storage.CurrentVersion))
			Expect(env.SavedAt.Equal(fixed)).To(BeTrue())
			Expect(string(env.Data)).To(MatchJSON(`[{"id":"a","name":"one"}]`))
		})
	})

	Describe("Decode", func() {
		It("reads back what Encode wrote", func() {
			raw, err := codec.Encode([]item{{ID: "a"}, {ID: "b"}})
			Expect(err).NotTo(HaveOccurred())

			var out []item
			version, err := codec.Decode(raw, &out)
			Expect(err).NotTo(HaveOccurred())
			Expect(version).To(Equal(1))
			Expect(out).To(HaveLen(2))
			Expect(out[1].ID).To(Equal("b"))
		})

		It("accepts the legacy bare array as version 0", func() {
			var out []item
			version, err := codec.Decode([]byte(`[{"id":"x","name":"legacy"}]`), &out)
			Expect(err).NotTo(HaveOccurred())
			Expect(version).To(Equal(0))
			Expect(out).To(ConsistOf(item{ID: "x", Name: "legacy"}))
		})

		It("accepts a legacy object without a schema member", func() {
			objCodec := storage.MustCodec("session", "")
			var out item
			version, err := objCodec.Decode([]byte(`{"id":"u1","name":"alice"}`), &out)
			Expect(err).NotTo(HaveOccurred())
			Expect(version).To(Equal(0))
			Expect(out.ID).To(Equal("u1"))
		})

		It("treats a null payload as empty", func() {
			var out []item
			_, err := codec.Decode([]byte(`{"schema":"items","version":1,"savedAt":"2024-03-05T10:00:00Z","data":null}`), &out)
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(BeEmpty())
		})

		DescribeTable("rejects unreadable data as DATA_CORRUPTED",
			func(raw string) {
				var out []item
				_, err := codec.Decode([]byte(raw), &out)
				Expect(err).To(HaveOccurred())
				Expect(errors.Is(err, internal.ErrUnreadableData)).To(BeTrue())
				Expect(internal.IsDataCorrupted(err)).To(BeTrue())
			},
			Entry("empty", ``),
			Entry("garbage", `{not json`),
			Entry("scalar", `42`),
			Entry("missing fields", `{"schema":"items"}`),
			Entry("wrong kind", `{"schema":"users","version":1,"savedAt":"2024-03-05T10:00:00Z","data":[]}`),
			Entry("payload violates item schema", `[{"name":"no id"}]`),
			Entry("bad timestamp", `{"schema":"items","version":1,"savedAt":"yesterday","data":[]}`),
		)

		It("rejects envelopes from a newer version", func() {
			var out []item
			version, err := codec.Decode([]byte(`{"schema":"items","version":7,"savedAt":"2024-03-05T10:00:00Z","data":[]}`), &out)
			Expect(version).To(Equal(7))
			Expect(errors.Is(err, internal.ErrUnsupportedSchemaVersion)).To(BeTrue())
			Expect(internal.IsDataCorrupted(err)).To(BeTrue())
		})

		It("carries schema violations as details", func() {
			var out []item
			_, err := codec.Decode([]byte(`[{"name":"no id"}]`), &out)
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Details).NotTo(BeEmpty())
		})
	})
})
