package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/frahmantamala/expense-tracker/internal"
	"github.com/frahmantamala/expense-tracker/internal/core/common/validation"
	"github.com/frahmantamala/expense-tracker/internal/expense"
	"github.com/frahmantamala/expense-tracker/internal/user"
	"github.com/spf13/cobra"
)

var expenseCmd = &cobra.Command{
	Use:   "expense",
	Short: "Manage expenses as the logged in user",
}

var (
	formAmount      string
	formDescription string
	formCategory    string
	formDate        string
	formMethod      string

	listStart    string
	listEnd      string
	listCategory string
	listQuery    string
	listSortBy   string
	listOrder    string
	listJSON     bool

	summaryRef string
	exportOut  string
)

var addExpenseCmd = &cobra.Command{
	Use:   "add",
	Short: "Record an expense",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, deps *Dependencies, actor user.Identity) error {
			e, err := deps.Expenses.Add(ctx, actor, expense.ExpenseInput{
				Amount:        expense.AmountInput(formAmount),
				Description:   formDescription,
				Category:      formCategory,
				Date:          formDate,
				PaymentMethod: expense.PaymentMethod(formMethod),
			})
			if err != nil {
				return err
			}
			fmt.Printf("Added %s: %s %s (%s)\n", e.ID, e.Amount.StringFixed(2), e.Description, e.Status)
			return nil
		})
	},
}

var updateExpenseCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Edit an expense; unset flags keep their current value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, deps *Dependencies, actor user.Identity) error {
			current, err := deps.Expenses.Get(actor, args[0])
			if err != nil {
				return err
			}

			in := expense.ExpenseInput{
				Amount:        expense.AmountInput(current.Amount.StringFixed(2)),
				Description:   current.Description,
				Category:      string(current.Category),
				Date:          current.Date,
				PaymentMethod: current.PaymentMethod,
			}
			flags := cmd.Flags()
			if flags.Changed("amount") {
				in.Amount = expense.AmountInput(formAmount)
			}
			if flags.Changed("description") {
				in.Description = formDescription
			}
			if flags.Changed("category") {
				in.Category = formCategory
			}
			if flags.Changed("date") {
				in.Date = formDate
			}
			if flags.Changed("payment-method") {
				in.PaymentMethod = expense.PaymentMethod(formMethod)
			}

			e, err := deps.Expenses.Update(ctx, actor, args[0], in)
			if err != nil {
				return err
			}
			fmt.Printf("Updated %s: %s %s (%s)\n", e.ID, e.Amount.StringFixed(2), e.Description, e.Status)
			return nil
		})
	},
}

var deleteExpenseCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an expense",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, deps *Dependencies, actor user.Identity) error {
			if err := deps.Expenses.Delete(ctx, actor, args[0]); err != nil {
				return err
			}
			fmt.Println("Deleted", args[0])
			return nil
		})
	},
}

var approveExpenseCmd = &cobra.Command{
	Use:   "approve <id>",
	Short: "Approve a personal-card reimbursement (admin)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, deps *Dependencies, actor user.Identity) error {
			e, err := deps.Expenses.Approve(ctx, actor, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("%s is now %s\n", e.ID, e.Status)
			return nil
		})
	},
}

var rejectExpenseCmd = &cobra.Command{
	Use:   "reject <id>",
	Short: "Reject a personal-card reimbursement (admin)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, deps *Dependencies, actor user.Identity) error {
			e, err := deps.Expenses.Reject(ctx, actor, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("%s is now %s\n", e.ID, e.Status)
			return nil
		})
	},
}

var listExpenseCmd = &cobra.Command{
	Use:   "list",
	Short: "List the expenses visible to the logged in user",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, deps *Dependencies, actor user.Identity) error {
			view, err := filteredView(deps, actor)
			if err != nil {
				return err
			}
			if listJSON {
				return writeIndentedJSON(os.Stdout, expense.ListResponse{
					Expenses: view,
					Count:    len(view),
					Total:    expense.TotalSpending(view),
				})
			}
			return printExpenseTable(os.Stdout, view)
		})
	},
}

var summaryExpenseCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show dashboard figures for the visible expenses",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, deps *Dependencies, actor user.Identity) error {
			ref := time.Now()
			if summaryRef != "" {
				parsed, err := time.ParseInLocation(validation.DateLayout, summaryRef, time.Local)
				if err != nil {
					return fmt.Errorf("--ref must be YYYY-MM-DD: %w", err)
				}
				ref = parsed
			}
			return writeIndentedJSON(os.Stdout, expense.Summarize(deps.Expenses.ScopedView(actor), ref))
		})
	},
}

var exportExpenseCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the visible expenses to a CSV file",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, deps *Dependencies, actor user.Identity) error {
			view, err := filteredView(deps, actor)
			if err != nil {
				return err
			}
			if len(view) == 0 {
				return internal.ErrNothingToExport
			}

			out := exportOut
			if out == "" {
				out = expense.ExportFilename("expenses", time.Now())
			}
			if out == "-" {
				return expense.WriteCSV(os.Stdout, view)
			}

			f, err := os.Create(out)
			if err != nil {
				return err
			}
			if err := expense.WriteCSV(f, view); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Printf("Exported %d expenses to %s\n", len(view), out)
			return nil
		})
	},
}

func filteredView(deps *Dependencies, actor user.Identity) ([]*expense.Expense, error) {
	f := expense.Filter{StartDate: listStart, EndDate: listEnd, Category: listCategory, Query: listQuery}

	v := validation.NewValidator()
	v.Field("start", f.StartDate).Date(internal.ErrCodeInvalidDate)
	v.Field("end", f.EndDate).Date(internal.ErrCodeInvalidDate)
	if err := v.Validate(); err != nil {
		return nil, err
	}

	view := f.Apply(deps.Expenses.ScopedView(actor))
	return expense.Sort(view, expense.SortBy(listSortBy), expense.Order(listOrder)), nil
}

func printExpenseTable(w io.Writer, view []*expense.Expense) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tCATEGORY\tAMOUNT\tPAYMENT\tSTATUS\tBY\tDESCRIPTION")
	for _, e := range view {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			e.ID, e.Date, e.Category, e.Amount.StringFixed(2), e.PaymentMethod, e.Status, e.SubmittedByName, e.Description)
	}
	fmt.Fprintf(tw, "\t\t\t%s\t\t\t\t%d expenses\n", expense.TotalSpending(view).StringFixed(2), len(view))
	return tw.Flush()
}

func writeIndentedJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	for _, c := range []*cobra.Command{addExpenseCmd, updateExpenseCmd} {
		c.Flags().StringVarP(&formAmount, "amount", "a", "", "amount, e.g. 12.50")
		c.Flags().StringVarP(&formDescription, "description", "d", "", "what the money was spent on")
		c.Flags().StringVar(&formCategory, "category", "", "Food, Transportation, Entertainment, Shopping, Bills or Other")
		c.Flags().StringVar(&formDate, "date", "", "YYYY-MM-DD (defaults to today on add)")
		c.Flags().StringVar(&formMethod, "payment-method", "", "company_card or personal_card (defaults to company_card on add)")
	}

	for _, c := range []*cobra.Command{listExpenseCmd, exportExpenseCmd} {
		c.Flags().StringVar(&listStart, "start", "", "from date, YYYY-MM-DD")
		c.Flags().StringVar(&listEnd, "end", "", "to date, YYYY-MM-DD")
		c.Flags().StringVar(&listCategory, "category", "", "category name or All")
		c.Flags().StringVarP(&listQuery, "query", "q", "", "description contains")
		c.Flags().StringVar(&listSortBy, "sort-by", "date", "date or amount")
		c.Flags().StringVar(&listOrder, "order", "desc", "asc or desc")
	}
	listExpenseCmd.Flags().BoolVar(&listJSON, "json", false, "print JSON instead of a table")
	summaryExpenseCmd.Flags().StringVar(&summaryRef, "ref", "", "reference day for the current month, YYYY-MM-DD")
	exportExpenseCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file, - for stdout (defaults to expenses-YYYY-MM-DD.csv)")

	expenseCmd.AddCommand(addExpenseCmd, listExpenseCmd, updateExpenseCmd, deleteExpenseCmd,
		approveExpenseCmd, rejectExpenseCmd, summaryExpenseCmd, exportExpenseCmd)
	rootCmd.AddCommand(expenseCmd)
}
