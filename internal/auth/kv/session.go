package kv

import (
	"context"
	"errors"

	"github.com/frahmantamala/expense-tracker/internal"
	userDatamodel "github.com/frahmantamala/expense-tracker/internal/core/datamodel/user"
	"github.com/frahmantamala/expense-tracker/internal/storage"
	"github.com/frahmantamala/expense-tracker/internal/user"
)

const kind = "session"

type SessionRepository struct {
	store storage.Store
	key   string
	codec *storage.Codec
}

func NewSessionRepository(store storage.Store, key string) *SessionRepository {
	return &SessionRepository{
		store: store,
		key:   key,
		codec: storage.MustCodec(kind, userDatamodel.SessionSchema),
	}
}

func (r *SessionRepository) Load(ctx context.Context) (*user.Identity, error) {
	raw, err := r.store.Get(ctx, r.key)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, internal.NewInternalError("failed to read session", err)
	}

	var s userDatamodel.Session
	if _, err := r.codec.Decode(raw, &s); err != nil {
		return nil, err
	}
	if s.ID == "" {
		return nil, nil
	}
	identity := user.SessionFromDataModel(&s)
	return &identity, nil
}

func (r *SessionRepository) Save(ctx context.Context, identity user.Identity) error {
	raw, err := r.codec.Encode(user.SessionToDataModel(identity))
	if err != nil {
		return err
	}
	return r.store.Set(ctx, r.key, raw)
}

func (r *SessionRepository) Clear(ctx context.Context) error {
	return r.store.Delete(ctx, r.key)
}
