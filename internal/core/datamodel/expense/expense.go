package expense

import (
	"time"

	"github.com/shopspring/decimal"
)

// Expense is one entry of the persisted expense collection.
type Expense struct {
	ID              string          `json:"id"`
	Amount          decimal.Decimal `json:"amount"`
	Description     string          `json:"description"`
	Category        string          `json:"category"`
	Date            string          `json:"date"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
	PaymentMethod   string          `json:"paymentMethod,omitempty"`
	Status          string          `json:"status,omitempty"`
	SubmittedBy     string          `json:"submittedBy"`
	SubmittedByName string          `json:"submittedByName"`
}

// CollectionSchema describes the payload of the expenses envelope. Records
// written before payment methods existed carry neither paymentMethod nor status.
const CollectionSchema = `{
  "type": "array",
  "items": {
    "type": "object",
    "required": ["id", "amount", "description", "category", "date"],
    "properties": {
      "id":              {"type": "string", "minLength": 1},
      "amount":          {"type": ["number", "string"]},
      "description":     {"type": "string"},
      "category":        {"type": "string"},
      "date":            {"type": "string", "pattern": "^[0-9]{4}-[0-9]{2}-[0-9]{2}"},
      "createdAt":       {"type": "string"},
      "updatedAt":       {"type": "string"},
      "paymentMethod":   {"enum": ["company_card", "personal_card"]},
      "status":          {"enum": ["pending", "approved", "rejected"]},
      "submittedBy":     {"type": "string"},
      "submittedByName": {"type": "string"}
    }
  }
}`
