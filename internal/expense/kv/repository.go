// Package kv keeps the expense collection as one envelope under a storage key.
package kv

import (
	"context"
	"errors"

	"github.com/frahmantamala/expense-tracker/internal"
	expenseDatamodel "github.com/frahmantamala/expense-tracker/internal/core/datamodel/expense"
	"github.com/frahmantamala/expense-tracker/internal/expense"
	"github.com/frahmantamala/expense-tracker/internal/storage"
)

const kind = "expenses"

type ExpenseRepository struct {
	store storage.Store
	key   string
	codec *storage.Codec
}

func NewExpenseRepository(store storage.Store, key string) *ExpenseRepository {
	return &ExpenseRepository{
		store: store,
		key:   key,
		codec: storage.MustCodec(kind, expenseDatamodel.CollectionSchema),
	}
}

// Load returns the persisted collection in stored order. A missing key is an
// empty collection; unreadable data is a DATA_CORRUPTED error.
func (r *ExpenseRepository) Load(ctx context.Context) ([]*expense.Expense, error) {
	raw, err := r.store.Get(ctx, r.key)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, internal.NewInternalError("failed to read expenses", err)
	}

	var rows []expenseDatamodel.Expense
	if _, err := r.codec.Decode(raw, &rows); err != nil {
		return nil, err
	}
	return expense.FromDataModelSlice(rows), nil
}

func (r *ExpenseRepository) Save(ctx context.Context, expenses []*expense.Expense) error {
	raw, err := r.codec.Encode(expense.ToDataModelSlice(expenses))
	if err != nil {
		return internal.NewInternalError("failed to encode expenses", err)
	}
	if err := r.store.Set(ctx, r.key, raw); err != nil {
		return internal.NewInternalError("failed to write expenses", err)
	}
	return nil
}

func (r *ExpenseRepository) Clear(ctx context.Context) error {
	return r.store.Delete(ctx, r.key)
}
