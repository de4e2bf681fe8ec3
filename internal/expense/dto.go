package expense

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/frahmantamala/expense-tracker/internal"
	"github.com/frahmantamala/expense-tracker/internal/category"
	"github.com/frahmantamala/expense-tracker/internal/core/common/validation"
	"github.com/shopspring/decimal"
)

// AmountInput is the raw amount as typed into a form. JSON clients may send
// it as a string or a number.
type AmountInput string

func (a *AmountInput) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*a = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = AmountInput(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*a = AmountInput(n.String())
	return nil
}

// ExpenseInput is the create/update form.
type ExpenseInput struct {
	Amount        AmountInput   `json:"amount"`
	Description   string        `json:"description"`
	Category      string        `json:"category"`
	Date          string        `json:"date"`
	PaymentMethod PaymentMethod `json:"paymentMethod"`
}

func (in ExpenseInput) Validate() error {
	validator := validation.NewValidator()

	validator.Field("amount", string(in.Amount)).
		Rounded(validation.AmountPlaces).
		Required("Amount is required", internal.ErrCodeInvalidAmount).
		Numeric("Amount must be a number", internal.ErrCodeInvalidAmount).
		GreaterThan(decimal.Zero, "Amount must be greater than 0", internal.ErrCodeInvalidAmount).
		AtMost(validation.MaxExpenseAmount, "Amount is too large", internal.ErrCodeAmountTooHigh)

	validator.Field("description", in.Description).
		Required("Description is required", internal.ErrCodeInvalidDescription).
		MaxLength(validation.MaxDescriptionLength, internal.ErrCodeInvalidDescription)

	validator.Field("category", in.Category).
		Required("Category is required", internal.ErrCodeInvalidCategory).
		OneOf(category.Names(), internal.ErrCodeInvalidCategory)

	validator.Field("date", in.Date).
		Required("Date is required", internal.ErrCodeInvalidDate).
		Date(internal.ErrCodeInvalidDate)

	validator.Field("paymentMethod", string(in.PaymentMethod)).
		OneOf([]string{string(CompanyCard), string(PersonalCard)}, internal.ErrCodeInvalidPaymentMethod)

	if err := validator.Validate(); err != nil {
		return err
	}
	return nil
}

// withDefaults fills what the form pre-populates: today's date and company card.
func (in ExpenseInput) withDefaults(today string) ExpenseInput {
	if strings.TrimSpace(in.Date) == "" {
		in.Date = today
	}
	if in.PaymentMethod == "" {
		in.PaymentMethod = CompanyCard
	}
	return in
}

type fields struct {
	amount        decimal.Decimal
	description   string
	category      category.Category
	date          string
	paymentMethod PaymentMethod
}

// parse assumes Validate passed.
func (in ExpenseInput) parse() fields {
	amount, _ := decimal.NewFromString(strings.TrimSpace(string(in.Amount)))
	method := in.PaymentMethod
	if method == "" {
		method = CompanyCard
	}
	return fields{
		amount:        amount.Round(validation.AmountPlaces),
		description:   strings.TrimSpace(in.Description),
		category:      category.Category(in.Category),
		date:          strings.TrimSpace(in.Date),
		paymentMethod: method,
	}
}

type ListResponse struct {
	Expenses []*Expense      `json:"expenses"`
	Count    int             `json:"count"`
	Total    decimal.Decimal `json:"total"`
}

type StatusResponse struct {
	ID     string `json:"id"`
	Status Status `json:"status"`
}
