package expense

import (
	"sort"
	"strings"
	"time"

	"github.com/frahmantamala/expense-tracker/internal/category"
	"github.com/frahmantamala/expense-tracker/internal/core/common/validation"
	"github.com/shopspring/decimal"
)

const (
	TrendMonths   = 6
	RecentEntries = 5
)

type CategoryTotal struct {
	Name  category.Category `json:"name"`
	Value decimal.Decimal   `json:"value"`
	Color string            `json:"color"`
}

type MonthlyAmount struct {
	Month  string          `json:"month"`
	Amount decimal.Decimal `json:"amount"`
}

type Reimbursements struct {
	Count  int             `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}

type Summary struct {
	Month      string             `json:"month"`
	Total      decimal.Decimal    `json:"total"`
	Monthly    decimal.Decimal    `json:"monthly"`
	Count      int                `json:"count"`
	Pending    Reimbursements     `json:"pendingReimbursement"`
	Approved   Reimbursements     `json:"approvedReimbursement"`
	Categories []CategoryTotal    `json:"categories"`
	Trend      []MonthlyAmount    `json:"trend"`
	Recent     []*Expense         `json:"recent"`
}

// Day renders t as the YYYY-MM-DD date string records are keyed by.
func Day(t time.Time) string {
	return t.Format(validation.DateLayout)
}

func MonthStart(ref time.Time) string {
	return time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, ref.Location()).Format(validation.DateLayout)
}

func MonthEnd(ref time.Time) string {
	return time.Date(ref.Year(), ref.Month()+1, 0, 0, 0, 0, 0, ref.Location()).Format(validation.DateLayout)
}

func TotalSpending(view []*Expense) decimal.Decimal {
	total := decimal.Zero
	for _, e := range view {
		total = total.Add(e.Amount)
	}
	return total
}

// MonthlySpending sums the expenses dated inside the calendar month of ref.
// Dates compare as strings since YYYY-MM-DD is fixed width.
func MonthlySpending(view []*Expense, ref time.Time) decimal.Decimal {
	start, end := MonthStart(ref), MonthEnd(ref)
	total := decimal.Zero
	for _, e := range view {
		if e.Date >= start && e.Date <= end {
			total = total.Add(e.Amount)
		}
	}
	return total
}

// CategorySpending is sorted by amount, largest first. Equal amounts keep the
// order in which their category first appeared.
func CategorySpending(view []*Expense) []CategoryTotal {
	index := make(map[category.Category]int)
	result := make([]CategoryTotal, 0)
	for _, e := range view {
		i, ok := index[e.Category]
		if !ok {
			i = len(result)
			index[e.Category] = i
			result = append(result, CategoryTotal{Name: e.Category, Value: decimal.Zero, Color: e.Category.Color()})
		}
		result[i].Value = result[i].Value.Add(e.Amount)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Value.GreaterThan(result[j].Value)
	})
	return result
}

// MonthlyTrend buckets by YYYY-MM and keeps the latest TrendMonths buckets
// that have data. Empty months are absent, not zero.
func MonthlyTrend(view []*Expense) []MonthlyAmount {
	buckets := make(map[string]decimal.Decimal)
	for _, e := range view {
		m := e.Month()
		if cur, ok := buckets[m]; ok {
			buckets[m] = cur.Add(e.Amount)
		} else {
			buckets[m] = e.Amount
		}
	}

	months := make([]string, 0, len(buckets))
	for m := range buckets {
		months = append(months, m)
	}
	sort.Strings(months)
	if len(months) > TrendMonths {
		months = months[len(months)-TrendMonths:]
	}

	trend := make([]MonthlyAmount, 0, len(months))
	for _, m := range months {
		trend = append(trend, MonthlyAmount{Month: m, Amount: buckets[m]})
	}
	return trend
}

// Filter holds optional, conjunctive predicates. Empty fields match everything.
type Filter struct {
	StartDate string
	EndDate   string
	Category  string
	Query     string
}

func (f Filter) Matches(e *Expense) bool {
	if f.StartDate != "" && e.Date < f.StartDate {
		return false
	}
	if f.EndDate != "" && e.Date > f.EndDate {
		return false
	}
	if f.Category != "" && f.Category != category.AllFilter && string(e.Category) != f.Category {
		return false
	}
	if f.Query != "" {
		q := strings.ToLower(f.Query)
		if !strings.Contains(strings.ToLower(e.Description), q) &&
			!strings.Contains(strings.ToLower(string(e.Category)), q) {
			return false
		}
	}
	return true
}

// Apply keeps the view order.
func (f Filter) Apply(view []*Expense) []*Expense {
	out := make([]*Expense, 0, len(view))
	for _, e := range view {
		if f.Matches(e) {
			out = append(out, e)
		}
	}
	return out
}

type SortBy string

const (
	SortByDate   SortBy = "date"
	SortByAmount SortBy = "amount"
)

type Order string

const (
	Asc  Order = "asc"
	Desc Order = "desc"
)

// Sort returns a stably sorted copy. Unknown keys fall back to date, descending.
func Sort(view []*Expense, by SortBy, order Order) []*Expense {
	out := make([]*Expense, len(view))
	copy(out, view)

	desc := order != Asc
	less := func(i, j int) bool {
		if by == SortByAmount {
			if desc {
				return out[i].Amount.GreaterThan(out[j].Amount)
			}
			return out[i].Amount.LessThan(out[j].Amount)
		}
		if desc {
			return out[i].Date > out[j].Date
		}
		return out[i].Date < out[j].Date
	}
	sort.SliceStable(out, less)
	return out
}

// Summarize builds the dashboard figures for a view.
func Summarize(view []*Expense, ref time.Time) Summary {
	s := Summary{
		Month:      ref.Format("2006-01"),
		Total:      TotalSpending(view),
		Monthly:    MonthlySpending(view, ref),
		Count:      len(view),
		Pending:    Reimbursements{Amount: decimal.Zero},
		Approved:   Reimbursements{Amount: decimal.Zero},
		Categories: CategorySpending(view),
		Trend:      MonthlyTrend(view),
	}
	for _, e := range view {
		if !e.IsReimbursable() {
			continue
		}
		switch e.Status {
		case StatusPending:
			s.Pending.Count++
			s.Pending.Amount = s.Pending.Amount.Add(e.Amount)
		case StatusApproved:
			s.Approved.Count++
			s.Approved.Amount = s.Approved.Amount.Add(e.Amount)
		}
	}

	n := len(view)
	if n > RecentEntries {
		n = RecentEntries
	}
	s.Recent = append([]*Expense{}, view[:n]...)
	return s
}
