package expense

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/frahmantamala/expense-tracker/internal"
	"github.com/frahmantamala/expense-tracker/internal/core/common/validation"
)

const exportDateLayout = "Jan 2, 2006"

var csvHeader = []string{"Date", "Description", "Category", "Amount"}

// ExportFilename is the suggested download name for an export taken on day.
func ExportFilename(prefix string, day time.Time) string {
	if prefix == "" {
		prefix = "expenses"
	}
	return fmt.Sprintf("%s-%s.csv", prefix, Day(day))
}

// WriteCSV writes the view as CSV. An empty view is ErrNothingToExport and
// writes nothing.
func WriteCSV(w io.Writer, view []*Expense) error {
	if len(view) == 0 {
		return internal.ErrNothingToExport
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, e := range view {
		row := []string{
			displayDate(e.Date),
			e.Description,
			string(e.Category),
			e.Amount.StringFixed(2),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func displayDate(date string) string {
	t, err := time.Parse(validation.DateLayout, date)
	if err != nil {
		return date
	}
	return t.Format(exportDateLayout)
}
