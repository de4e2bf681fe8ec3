package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EventTypeExpenseCreated  = "expense.created"
	EventTypeExpenseUpdated  = "expense.updated"
	EventTypeExpenseDeleted  = "expense.deleted"
	EventTypeExpenseApproved = "expense.approved"
	EventTypeExpenseRejected = "expense.rejected"
)

// ExpenseEventTypes lists every expense event, in lifecycle order.
var ExpenseEventTypes = []string{
	EventTypeExpenseCreated,
	EventTypeExpenseUpdated,
	EventTypeExpenseDeleted,
	EventTypeExpenseApproved,
	EventTypeExpenseRejected,
}

// ExpenseSnapshot is the part of an expense carried by its events.
type ExpenseSnapshot struct {
	ExpenseID     string          `json:"expense_id"`
	OwnerID       string          `json:"owner_id"`
	ActorID       string          `json:"actor_id"`
	Amount        decimal.Decimal `json:"amount"`
	Category      string          `json:"category"`
	PaymentMethod string          `json:"payment_method"`
	Status        string          `json:"status"`
}

type ExpenseEvent struct {
	BaseEvent
	ExpenseSnapshot
}

func NewExpenseEvent(eventType string, snap ExpenseSnapshot) *ExpenseEvent {
	return &ExpenseEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      eventType,
			Timestamp: time.Now().UTC(),
			Data: map[string]interface{}{
				"expense_id":     snap.ExpenseID,
				"owner_id":       snap.OwnerID,
				"actor_id":       snap.ActorID,
				"amount":         snap.Amount.StringFixed(2),
				"category":       snap.Category,
				"payment_method": snap.PaymentMethod,
				"status":         snap.Status,
			},
		},
		ExpenseSnapshot: snap,
	}
}
