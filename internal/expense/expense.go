package expense

import (
	"time"

	"github.com/frahmantamala/expense-tracker/internal/category"
	expenseDatamodel "github.com/frahmantamala/expense-tracker/internal/core/datamodel/expense"
	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	CompanyCard  PaymentMethod = "company_card"
	PersonalCard PaymentMethod = "personal_card"
)

func (m PaymentMethod) Valid() bool {
	return m == CompanyCard || m == PersonalCard
}

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

type Expense struct {
	ID              string            `json:"id"`
	Amount          decimal.Decimal   `json:"amount"`
	Description     string            `json:"description"`
	Category        category.Category `json:"category"`
	Date            string            `json:"date"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
	PaymentMethod   PaymentMethod     `json:"paymentMethod"`
	Status          Status            `json:"status"`
	SubmittedBy     string            `json:"submittedBy"`
	SubmittedByName string            `json:"submittedByName"`
}

// StatusFor derives the status after a create or edit. Company card spend is
// always approved; personal card spend keeps its current decision.
func StatusFor(method PaymentMethod, current Status) Status {
	if method == CompanyCard {
		return StatusApproved
	}
	if current == "" {
		return StatusPending
	}
	return current
}

// IsReimbursable reports whether an admin decision applies to the expense.
func (e *Expense) IsReimbursable() bool {
	return e.PaymentMethod == PersonalCard
}

func (e *Expense) IsPending() bool {
	return e.Status == StatusPending
}

// Month is the YYYY-MM trend bucket of the expense date.
func (e *Expense) Month() string {
	if len(e.Date) < 7 {
		return e.Date
	}
	return e.Date[:7]
}

func (e *Expense) clone() *Expense {
	cp := *e
	return &cp
}

func (e *Expense) decide(status Status, at time.Time) {
	e.Status = status
	e.UpdatedAt = at
}

func ToDataModel(e *Expense) *expenseDatamodel.Expense {
	return &expenseDatamodel.Expense{
		ID:              e.ID,
		Amount:          e.Amount,
		Description:     e.Description,
		Category:        string(e.Category),
		Date:            e.Date,
		CreatedAt:       e.CreatedAt,
		UpdatedAt:       e.UpdatedAt,
		PaymentMethod:   string(e.PaymentMethod),
		Status:          string(e.Status),
		SubmittedBy:     e.SubmittedBy,
		SubmittedByName: e.SubmittedByName,
	}
}

// FromDataModel also upgrades records saved before payment methods existed:
// they are treated as personal card spend awaiting a decision.
func FromDataModel(e *expenseDatamodel.Expense) *Expense {
	method := PaymentMethod(e.PaymentMethod)
	if !method.Valid() {
		method = PersonalCard
	}
	return &Expense{
		ID:              e.ID,
		Amount:          e.Amount.Round(2),
		Description:     e.Description,
		Category:        category.Category(e.Category),
		Date:            e.Date,
		CreatedAt:       e.CreatedAt,
		UpdatedAt:       e.UpdatedAt,
		PaymentMethod:   method,
		Status:          StatusFor(method, Status(e.Status)),
		SubmittedBy:     e.SubmittedBy,
		SubmittedByName: e.SubmittedByName,
	}
}

func FromDataModelSlice(rows []expenseDatamodel.Expense) []*Expense {
	result := make([]*Expense, len(rows))
	for i := range rows {
		result[i] = FromDataModel(&rows[i])
	}
	return result
}

func ToDataModelSlice(expenses []*Expense) []*expenseDatamodel.Expense {
	result := make([]*expenseDatamodel.Expense, len(expenses))
	for i, e := range expenses {
		result[i] = ToDataModel(e)
	}
	return result
}
