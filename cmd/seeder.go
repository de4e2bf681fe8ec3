package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/frahmantamala/expense-tracker/internal"
	"github.com/frahmantamala/expense-tracker/internal/auth"
	"github.com/frahmantamala/expense-tracker/internal/category"
	"github.com/frahmantamala/expense-tracker/internal/expense"
	"github.com/frahmantamala/expense-tracker/internal/user"
	"github.com/spf13/cobra"
)

var clearData bool

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the store with sample data",
	Long:  `Seed the configured store with the admin, a sample employee and a few months of expenses.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		deps, err := initializeDependencies(depsOptions{logOut: os.Stderr})
		if err != nil {
			return err
		}
		defer deps.Close()

		return seed(ctx, deps, clearData, time.Now())
	},
}

func init() {
	seedCmd.Flags().BoolVar(&clearData, "clear", false, "Clear existing expenses before seeding")
}

type sampleExpense struct {
	daysAgo  int
	amount   string
	desc     string
	category category.Category
	method   expense.PaymentMethod
}

var employeeSamples = []sampleExpense{
	{1, "12.50", "Lunch with client", category.Food, expense.PersonalCard},
	{3, "45.00", "Taxi to airport", category.Transportation, expense.PersonalCard},
	{9, "120.00", "Office chair", category.Shopping, expense.CompanyCard},
	{35, "60.25", "Team dinner", category.Food, expense.CompanyCard},
	{40, "18.00", "Movie night", category.Entertainment, expense.PersonalCard},
	{70, "89.99", "Internet bill", category.Bills, expense.PersonalCard},
}

var adminSamples = []sampleExpense{
	{2, "250.00", "Conference ticket", category.Other, expense.CompanyCard},
	{33, "32.40", "Train tickets", category.Transportation, expense.PersonalCard},
}

func seed(ctx context.Context, deps *Dependencies, clear bool, now time.Time) error {
	adminUser, err := deps.Auth.EnsureAdmin(ctx)
	if err != nil {
		return fmt.Errorf("failed to seed admin: %w", err)
	}
	admin := adminUser.Identity()
	fmt.Println("Seeded admin user:", admin.Username)

	employee, err := ensureEmployee(ctx, deps.Auth, "fadhil", "password")
	if err != nil {
		return err
	}
	fmt.Println("Seeded employee user:", employee.Username)

	if clear {
		if err := deps.ExpenseRepo.Clear(ctx); err != nil {
			return fmt.Errorf("failed to clear expenses: %w", err)
		}
		fmt.Println("Cleared existing expenses")
	}
	if err := deps.HydrateExpenses(ctx); err != nil {
		return err
	}

	created := 0
	for _, batch := range []struct {
		actor   user.Identity
		samples []sampleExpense
	}{
		{employee, employeeSamples},
		{admin, adminSamples},
	} {
		for _, s := range batch.samples {
			e, err := deps.Expenses.Add(ctx, batch.actor, expense.ExpenseInput{
				Amount:        expense.AmountInput(s.amount),
				Description:   s.desc,
				Category:      string(s.category),
				Date:          expense.Day(now.AddDate(0, 0, -s.daysAgo)),
				PaymentMethod: s.method,
			})
			if err != nil {
				return fmt.Errorf("failed to seed expense %q: %w", s.desc, err)
			}
			created++

			// leave the most recent personal-card claim pending for review
			if e.IsReimbursable() && s.daysAgo > 30 {
				if _, err := deps.Expenses.Approve(ctx, admin, e.ID); err != nil {
					return fmt.Errorf("failed to approve seeded expense: %w", err)
				}
			}
		}
	}

	fmt.Printf("Seeded %d expenses\n", created)
	return nil
}

func ensureEmployee(ctx context.Context, svc *auth.Service, username, password string) (user.Identity, error) {
	identity, err := svc.Signup(ctx, auth.SignupDTO{Username: username, Password: password})
	if err == nil {
		return *identity, nil
	}
	if !errors.Is(err, internal.ErrUsernameExists) {
		return user.Identity{}, fmt.Errorf("failed to seed employee: %w", err)
	}

	identity, err = svc.Login(ctx, auth.LoginDTO{Username: username, Password: password})
	if err != nil {
		return user.Identity{}, fmt.Errorf("employee %q exists with a different password: %w", username, err)
	}
	return *identity, nil
}
