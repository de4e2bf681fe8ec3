// Package kv keeps the user directory as one envelope under a storage key.
package kv

import (
	"context"
	"errors"
	"sync"

	"github.com/frahmantamala/expense-tracker/internal"
	userDatamodel "github.com/frahmantamala/expense-tracker/internal/core/datamodel/user"
	"github.com/frahmantamala/expense-tracker/internal/storage"
	"github.com/frahmantamala/expense-tracker/internal/user"
)

const kind = "users"

type UserRepository struct {
	store storage.Store
	key   string
	codec *storage.Codec
	mu    sync.Mutex
}

func NewUserRepository(store storage.Store, key string) *UserRepository {
	return &UserRepository{
		store: store,
		key:   key,
		codec: storage.MustCodec(kind, userDatamodel.DirectorySchema),
	}
}

// load reads the whole directory. A missing key is an empty directory.
func (r *UserRepository) load(ctx context.Context) ([]*user.User, error) {
	raw, err := r.store.Get(ctx, r.key)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, internal.NewInternalError("failed to read user directory", err)
	}

	var rows []userDatamodel.User
	if _, err := r.codec.Decode(raw, &rows); err != nil {
		return nil, err
	}

	users := make([]*user.User, 0, len(rows))
	for i := range rows {
		users = append(users, user.FromDataModel(&rows[i]))
	}
	return users, nil
}

func (r *UserRepository) save(ctx context.Context, users []*user.User) error {
	rows := make([]*userDatamodel.User, 0, len(users))
	for _, u := range users {
		rows = append(rows, user.ToDataModel(u))
	}
	raw, err := r.codec.Encode(rows)
	if err != nil {
		return internal.NewInternalError("failed to encode user directory", err)
	}
	if err := r.store.Set(ctx, r.key, raw); err != nil {
		return internal.NewInternalError("failed to write user directory", err)
	}
	return nil
}

func (r *UserRepository) List(ctx context.Context) ([]*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load(ctx)
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*user.User, error) {
	return r.find(ctx, func(u *user.User) bool { return u.ID == id })
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*user.User, error) {
	return r.find(ctx, func(u *user.User) bool { return u.Username == username })
}

func (r *UserRepository) find(ctx context.Context, match func(*user.User) bool) (*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	users, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if match(u) {
			return u, nil
		}
	}
	return nil, user.ErrNotFound
}

func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	users, err := r.load(ctx)
	if err != nil {
		return err
	}
	for _, existing := range users {
		if existing.Username == u.Username {
			return internal.ErrUsernameExists
		}
		if existing.ID == u.ID {
			return internal.NewConflictError("user id already exists", internal.ErrCodeUsernameExists)
		}
	}
	return r.save(ctx, append(users, u))
}

// Update replaces the stored user with the same id; username changes are not allowed.
func (r *UserRepository) Update(ctx context.Context, u *user.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	users, err := r.load(ctx)
	if err != nil {
		return err
	}
	for i, existing := range users {
		if existing.ID == u.ID {
			if existing.Username != u.Username {
				return internal.NewValidationError("username cannot change", internal.ErrCodeValidationFailed)
			}
			users[i] = u
			return r.save(ctx, users)
		}
	}
	return user.ErrNotFound
}
