package expense

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/frahmantamala/expense-tracker/internal"
	"github.com/frahmantamala/expense-tracker/internal/core/events"
	"github.com/frahmantamala/expense-tracker/internal/user"
	"github.com/google/uuid"
)

// Repository persists the whole collection at once. Last write wins.
type Repository interface {
	Load(ctx context.Context) ([]*Expense, error)
	Save(ctx context.Context, expenses []*Expense) error
}

// Authorizer decides what an identity may do with expenses.
type Authorizer interface {
	CanCreate(actor user.Identity) bool
	CanViewAll(actor user.Identity) bool
	CanModify(actor user.Identity, ownerID string) bool
	CanApprove(actor user.Identity) bool
	CanReject(actor user.Identity) bool
}

type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// Store is the authoritative in-memory expense collection, newest first.
// Mutations apply in memory and then flush the whole collection; a failed
// flush is logged and the in-memory state stays authoritative.
type Store struct {
	repo      Repository
	authz     Authorizer
	publisher EventPublisher
	logger    *slog.Logger
	now       func() time.Time

	mu       sync.RWMutex
	expenses []*Expense
	hydrated bool
	// set when the persisted collection could not be read; flushes are
	// skipped so the unreadable data is never overwritten
	readOnly bool
}

func NewStore(repo Repository, authz Authorizer, publisher EventPublisher, logger *slog.Logger) *Store {
	return &Store{
		repo:      repo,
		authz:     authz,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock overrides the clock used for timestamps and default dates.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
	return s
}

// Hydrate loads the persisted collection once. Unreadable data leaves the
// collection empty, disables flushing and returns the DATA_CORRUPTED error.
func (s *Store) Hydrate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hydrated {
		return nil
	}
	s.hydrated = true

	loaded, err := s.repo.Load(ctx)
	if err != nil {
		s.expenses = nil
		s.readOnly = true
		if internal.IsDataCorrupted(err) {
			s.logger.Error("persisted expenses are unreadable; starting empty without flushing", "error", err)
		} else {
			s.logger.Error("failed to load expenses; starting empty without flushing", "error", err)
		}
		return err
	}

	s.expenses = loaded
	s.logger.Info("expenses hydrated", "count", len(loaded))
	return nil
}

// ResetPersisted discards whatever is persisted, writes the current collection
// and re-enables flushing.
func (s *Store) ResetPersisted(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.Save(ctx, s.expenses); err != nil {
		return err
	}
	s.readOnly = false
	s.hydrated = true
	s.logger.Warn("persisted expenses reset", "count", len(s.expenses))
	return nil
}

// Writable reports whether mutations are flushed to the repository.
func (s *Store) Writable() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.readOnly
}

// ScopedView returns copies of every expense for identities that may view all,
// and only the actor's own expenses otherwise.
func (s *Store) ScopedView(actor user.Identity) []*Expense {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scoped(actor)
}

func (s *Store) scoped(actor user.Identity) []*Expense {
	all := s.authz.CanViewAll(actor)
	view := make([]*Expense, 0, len(s.expenses))
	for _, e := range s.expenses {
		if all || (actor.ID != "" && e.SubmittedBy == actor.ID) {
			view = append(view, e.clone())
		}
	}
	return view
}

// Get looks id up inside the actor's scoped view.
func (s *Store) Get(actor user.Identity, id string) (*Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexOf(id)
	if i < 0 {
		return nil, internal.ErrExpenseNotFound
	}
	e := s.expenses[i]
	if !s.authz.CanViewAll(actor) && e.SubmittedBy != actor.ID {
		return nil, internal.ErrExpenseNotFound
	}
	return e.clone(), nil
}

func (s *Store) Add(ctx context.Context, actor user.Identity, in ExpenseInput) (*Expense, error) {
	if !s.authz.CanCreate(actor) {
		s.logger.Warn("add expense denied", "user_id", actor.ID, "role", actor.Role)
		return nil, internal.ErrUnauthorizedAccess
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	in = in.withDefaults(Day(now))
	if err := in.Validate(); err != nil {
		return nil, err
	}
	f := in.parse()

	e := &Expense{
		ID:              uuid.New().String(),
		Amount:          f.amount,
		Description:     f.description,
		Category:        f.category,
		Date:            f.date,
		CreatedAt:       now,
		UpdatedAt:       now,
		PaymentMethod:   f.paymentMethod,
		Status:          StatusFor(f.paymentMethod, ""),
		SubmittedBy:     actor.ID,
		SubmittedByName: actor.Username,
	}

	s.expenses = append([]*Expense{e}, s.expenses...)
	s.flush(ctx)
	s.publish(ctx, events.EventTypeExpenseCreated, e, actor)

	s.logger.Info("expense created",
		"expense_id", e.ID,
		"user_id", actor.ID,
		"amount", e.Amount.StringFixed(2),
		"payment_method", e.PaymentMethod,
		"status", e.Status)

	return e.clone(), nil
}

// Update replaces the mutable fields. Switching to company card approves the
// expense; otherwise the current decision is kept. An empty payment method
// keeps the current one.
func (s *Store) Update(ctx context.Context, actor user.Identity, id string, in ExpenseInput) (*Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return nil, internal.ErrExpenseNotFound
	}
	current := s.expenses[i]
	if !s.authz.CanModify(actor, current.SubmittedBy) {
		s.logger.Warn("update expense denied", "expense_id", id, "user_id", actor.ID, "owner_id", current.SubmittedBy)
		return nil, internal.ErrUnauthorizedAccess
	}

	if in.PaymentMethod == "" {
		in.PaymentMethod = current.PaymentMethod
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	f := in.parse()

	updated := current.clone()
	updated.Amount = f.amount
	updated.Description = f.description
	updated.Category = f.category
	updated.Date = f.date
	updated.PaymentMethod = f.paymentMethod
	updated.Status = StatusFor(f.paymentMethod, current.Status)
	updated.UpdatedAt = s.now()

	s.expenses[i] = updated
	s.flush(ctx)
	s.publish(ctx, events.EventTypeExpenseUpdated, updated, actor)

	s.logger.Info("expense updated", "expense_id", id, "user_id", actor.ID, "status", updated.Status)
	return updated.clone(), nil
}

// Delete removes the expense. A missing id is a no-op.
func (s *Store) Delete(ctx context.Context, actor user.Identity, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		s.logger.Debug("delete of unknown expense ignored", "expense_id", id, "user_id", actor.ID)
		return nil
	}
	removed := s.expenses[i]
	if !s.authz.CanModify(actor, removed.SubmittedBy) {
		s.logger.Warn("delete expense denied", "expense_id", id, "user_id", actor.ID, "owner_id", removed.SubmittedBy)
		return internal.ErrUnauthorizedAccess
	}

	s.expenses = append(s.expenses[:i:i], s.expenses[i+1:]...)
	s.flush(ctx)
	s.publish(ctx, events.EventTypeExpenseDeleted, removed, actor)

	s.logger.Info("expense deleted", "expense_id", id, "user_id", actor.ID)
	return nil
}

func (s *Store) Approve(ctx context.Context, actor user.Identity, id string) (*Expense, error) {
	if !s.authz.CanApprove(actor) {
		s.logger.Warn("approve expense denied: insufficient permissions", "expense_id", id, "user_id", actor.ID)
		return nil, internal.ErrUnauthorizedAccess
	}
	return s.decide(ctx, actor, id, StatusApproved, events.EventTypeExpenseApproved)
}

func (s *Store) Reject(ctx context.Context, actor user.Identity, id string) (*Expense, error) {
	if !s.authz.CanReject(actor) {
		s.logger.Warn("reject expense denied: insufficient permissions", "expense_id", id, "user_id", actor.ID)
		return nil, internal.ErrUnauthorizedAccess
	}
	return s.decide(ctx, actor, id, StatusRejected, events.EventTypeExpenseRejected)
}

// decide applies an admin decision to a personal card expense. Any earlier
// decision may be overwritten.
func (s *Store) decide(ctx context.Context, actor user.Identity, id string, status Status, eventType string) (*Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return nil, internal.ErrExpenseNotFound
	}
	current := s.expenses[i]
	if !current.IsReimbursable() {
		s.logger.Warn("cannot decide a company card expense",
			"expense_id", id,
			"current_status", current.Status,
			"requested_status", status)
		return nil, internal.ErrInvalidExpenseStatus
	}

	decided := current.clone()
	decided.decide(status, s.now())
	s.expenses[i] = decided
	s.flush(ctx)
	s.publish(ctx, eventType, decided, actor)

	s.logger.Info("expense decided",
		"expense_id", id,
		"admin_id", actor.ID,
		"previous_status", current.Status,
		"status", status)
	return decided.clone(), nil
}

func (s *Store) indexOf(id string) int {
	for i, e := range s.expenses {
		if e.ID == id {
			return i
		}
	}
	return -1
}

// flush runs with s.mu held.
func (s *Store) flush(ctx context.Context) {
	if s.readOnly {
		s.logger.Warn("skipping expense flush: persisted data is unreadable", "count", len(s.expenses))
		return
	}
	if err := s.repo.Save(ctx, s.expenses); err != nil {
		s.logger.Error("failed to persist expenses; change kept in memory", "error", err, "count", len(s.expenses))
	}
}

func (s *Store) publish(ctx context.Context, eventType string, e *Expense, actor user.Identity) {
	if s.publisher == nil {
		return
	}
	event := events.NewExpenseEvent(eventType, events.ExpenseSnapshot{
		ExpenseID:     e.ID,
		OwnerID:       e.SubmittedBy,
		ActorID:       actor.ID,
		Amount:        e.Amount,
		Category:      string(e.Category),
		PaymentMethod: string(e.PaymentMethod),
		Status:        string(e.Status),
	})
	if err := s.publisher.Publish(context.WithoutCancel(ctx), event); err != nil {
		s.logger.Error("failed to publish expense event", "event_type", eventType, "expense_id", e.ID, "error", err)
	}
}

// IsNotFound reports whether err is the expense not-found signal.
func IsNotFound(err error) bool {
	return errors.Is(err, internal.ErrExpenseNotFound)
}
