package expense_test

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/frahmantamala/expense-tracker/internal"
	"github.com/frahmantamala/expense-tracker/internal/auth"
	"github.com/frahmantamala/expense-tracker/internal/category"
	"github.com/frahmantamala/expense-tracker/internal/core/events"
	"github.com/frahmantamala/expense-tracker/internal/expense"
	expenseKV "github.com/frahmantamala/expense-tracker/internal/expense/kv"
	"github.com/frahmantamala/expense-tracker/internal/storage/memory"
	"github.com/frahmantamala/expense-tracker/internal/user"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
)

func input(amount, description, cat, date string, method expense.PaymentMethod) expense.ExpenseInput {
	return expense.ExpenseInput{
		Amount:        expense.AmountInput(amount),
		Description:   description,
		Category:      cat,
		Date:          date,
		PaymentMethod: method,
	}
}

var _ = Describe("Store", func() {
	var (
		ctx       context.Context
		backing   *memory.Store
		repo      *expenseKV.ExpenseRepository
		publisher *recordingPublisher
		store     *expense.Store
		clock     time.Time
	)

	newStore := func() *expense.Store {
		s := expense.NewStore(repo, auth.NewPermissionChecker(), publisher, newTestLogger())
		return s.WithClock(func() time.Time { return clock })
	}

	BeforeEach(func() {
		ctx = context.Background()
		backing = memory.New()
		repo = expenseKV.NewExpenseRepository(backing, expensesKey)
		publisher = &recordingPublisher{}
		clock = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
		store = newStore()
		Expect(store.Hydrate(ctx)).To(Succeed())
	})

	Describe("Add", func() {
		It("creates a pending personal card expense for the employee", func() {
			e, err := store.Add(ctx, erin, input("42.50", "Lunch", "Food", "2024-03-05", expense.PersonalCard))
			Expect(err).NotTo(HaveOccurred())

			Expect(e.ID).NotTo(BeEmpty())
			Expect(e.Status).To(Equal(expense.StatusPending))
			Expect(e.Amount.Equal(decimal.RequireFromString("42.5"))).To(BeTrue())
			Expect(e.SubmittedBy).To(Equal(erin.ID))
			Expect(e.SubmittedByName).To(Equal("erin"))
			Expect(e.CreatedAt).To(Equal(clock))
			Expect(publisher.Types()).To(Equal([]string{events.EventTypeExpenseCreated}))
		})

		It("approves company card spend immediately", func() {
			e, err := store.Add(ctx, erin, input("42.50", "Lunch", "Food", "2024-03-05", expense.CompanyCard))
			Expect(err).NotTo(HaveOccurred())
			Expect(e.Status).To(Equal(expense.StatusApproved))
		})

		It("prepends so the newest expense comes first", func() {
			first, _ := store.Add(ctx, erin, input("1", "first", "Food", "2024-03-01", expense.PersonalCard))
			second, _ := store.Add(ctx, erin, input("2", "second", "Food", "2024-03-01", expense.PersonalCard))

			view := store.ScopedView(erin)
			Expect(view[0].ID).To(Equal(second.ID))
			Expect(view[1].ID).To(Equal(first.ID))
		})

		It("trims the description and rounds the amount to cents", func() {
			e, err := store.Add(ctx, erin, input(" 10.005 ", "  Taxi  ", "Transportation", "2024-03-05", expense.PersonalCard))
			Expect(err).NotTo(HaveOccurred())
			Expect(e.Description).To(Equal("Taxi"))
			Expect(e.Amount.StringFixed(2)).To(Equal("10.01"))
		})

		It("defaults the date to today and the payment method to company card", func() {
			e, err := store.Add(ctx, erin, expense.ExpenseInput{Amount: "5", Description: "Coffee", Category: "Food"})
			Expect(err).NotTo(HaveOccurred())
			Expect(e.Date).To(Equal("2024-03-15"))
			Expect(e.PaymentMethod).To(Equal(expense.CompanyCard))
		})

		DescribeTable("rejects invalid input without touching the collection",
			func(in expense.ExpenseInput, field string) {
				_, err := store.Add(ctx, erin, in)
				appErr, ok := internal.IsAppError(err)
				Expect(ok).To(BeTrue())
				Expect(appErr.Type).To(Equal(internal.ErrorTypeValidation))
				Expect(appErr.FieldErrors()).To(HaveKey(field))
				Expect(store.ScopedView(admin)).To(BeEmpty())
				Expect(backing.Len()).To(BeZero())
			},
			Entry("non-numeric amount", input("abc", "Lunch", "Food", "2024-03-05", expense.PersonalCard), "amount"),
			Entry("zero amount", input("0", "Lunch", "Food", "2024-03-05", expense.PersonalCard), "amount"),
			Entry("negative amount", input("-3", "Lunch", "Food", "2024-03-05", expense.PersonalCard), "amount"),
			Entry("amount above the cap", input("1000000.01", "Lunch", "Food", "2024-03-05", expense.PersonalCard), "amount"),
			Entry("sub-cent amount rounding to zero", input("0.001", "Lunch", "Food", "2024-03-05", expense.PersonalCard), "amount"),
			Entry("sub-cent amount just under half a cent", input("0.004", "Lunch", "Food", "2024-03-05", expense.PersonalCard), "amount"),
			Entry("amount rounding above the cap", input("1000000.005", "Lunch", "Food", "2024-03-05", expense.PersonalCard), "amount"),
			Entry("description of 201 characters", input("3", strings.Repeat("é", 201), "Food", "2024-03-05", expense.PersonalCard), "description"),
			Entry("blank description", input("3", "   ", "Food", "2024-03-05", expense.PersonalCard), "description"),
			Entry("unknown category", input("3", "Lunch", "Travel", "2024-03-05", expense.PersonalCard), "category"),
			Entry("malformed date", input("3", "Lunch", "Food", "05/03/2024", expense.PersonalCard), "date"),
			Entry("unknown payment method", input("3", "Lunch", "Food", "2024-03-05", "cash"), "paymentMethod"),
		)

		It("accepts half a cent, stored as one cent", func() {
			e, err := store.Add(ctx, erin, input("0.005", "Gum", "Food", "2024-03-05", expense.PersonalCard))
			Expect(err).NotTo(HaveOccurred())
			Expect(e.Amount.StringFixed(2)).To(Equal("0.01"))
			Expect(e.Amount.IsPositive()).To(BeTrue())
		})

		It("measures the description after trimming", func() {
			long := strings.Repeat("é", 200)
			e, err := store.Add(ctx, erin, input("3", "  "+long+"  ", "Food", "2024-03-05", expense.PersonalCard))
			Expect(err).NotTo(HaveOccurred())
			Expect(e.Description).To(Equal(long))
		})

		It("rejects a sub-cent amount on update too", func() {
			e, err := store.Add(ctx, erin, input("3", "Lunch", "Food", "2024-03-05", expense.PersonalCard))
			Expect(err).NotTo(HaveOccurred())

			_, err = store.Update(ctx, erin, e.ID, input("0.001", "Lunch", "Food", "2024-03-05", expense.PersonalCard))
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.FieldErrors()).To(HaveKey("amount"))

			got, err := store.Get(erin, e.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Amount.StringFixed(2)).To(Equal("3.00"))
		})

		It("accepts the amount cap itself", func() {
			_, err := store.Add(ctx, erin, input("1000000", "Laptop fleet", "Shopping", "2024-03-05", expense.CompanyCard))
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("ScopedView", func() {
		BeforeEach(func() {
			_, _ = store.Add(ctx, erin, input("10", "Lunch", "Food", "2024-03-01", expense.PersonalCard))
			_, _ = store.Add(ctx, frank, input("20", "Taxi", "Transportation", "2024-03-02", expense.PersonalCard))
			_, _ = store.Add(ctx, erin, input("30", "Movie", "Entertainment", "2024-03-03", expense.CompanyCard))
		})

		It("never shows an employee someone else's expense", func() {
			for _, who := range []user.Identity{erin, frank} {
				for _, e := range store.ScopedView(who) {
					Expect(e.SubmittedBy).To(Equal(who.ID))
				}
			}
			Expect(store.ScopedView(erin)).To(HaveLen(2))
			Expect(store.ScopedView(frank)).To(HaveLen(1))
		})

		It("shows admins the full collection", func() {
			Expect(store.ScopedView(admin)).To(HaveLen(3))
		})

		It("shows nothing to an identity without an id", func() {
			Expect(store.ScopedView(user.Identity{Role: user.RoleEmployee})).To(BeEmpty())
		})

		It("returns copies", func() {
			view := store.ScopedView(erin)
			view[0].Description = "tampered"
			Expect(store.ScopedView(erin)[0].Description).To(Equal("Movie"))
		})

		It("follows later mutations", func() {
			_, _ = store.Add(ctx, frank, input("5", "Bus", "Transportation", "2024-03-04", expense.PersonalCard))
			Expect(store.ScopedView(frank)).To(HaveLen(2))
		})
	})

	Describe("Get", func() {
		It("finds ids only inside the scoped view", func() {
			e, _ := store.Add(ctx, erin, input("10", "Lunch", "Food", "2024-03-01", expense.PersonalCard))

			got, err := store.Get(erin, e.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ID).To(Equal(e.ID))

			_, err = store.Get(admin, e.ID)
			Expect(err).NotTo(HaveOccurred())

			_, err = store.Get(frank, e.ID)
			Expect(errors.Is(err, internal.ErrExpenseNotFound)).To(BeTrue())
		})
	})

	Describe("Update", func() {
		var pending *expense.Expense

		BeforeEach(func() {
			var err error
			pending, err = store.Add(ctx, erin, input("10", "Lunch", "Food", "2024-03-01", expense.PersonalCard))
			Expect(err).NotTo(HaveOccurred())
		})

		It("replaces the mutable fields and refreshes updatedAt", func() {
			clock = clock.Add(time.Hour)
			e, err := store.Update(ctx, erin, pending.ID, input("12.30", " Team lunch ", "Food", "2024-03-02", expense.PersonalCard))
			Expect(err).NotTo(HaveOccurred())

			Expect(e.Description).To(Equal("Team lunch"))
			Expect(e.Amount.StringFixed(2)).To(Equal("12.30"))
			Expect(e.Date).To(Equal("2024-03-02"))
			Expect(e.UpdatedAt).To(Equal(clock))
			Expect(e.CreatedAt).To(Equal(pending.CreatedAt))
			Expect(e.SubmittedBy).To(Equal(erin.ID))
			Expect(e.SubmittedByName).To(Equal("erin"))
		})

		It("forces approval when switching to company card", func() {
			_, err := store.Reject(ctx, admin, pending.ID)
			Expect(err).NotTo(HaveOccurred())

			e, err := store.Update(ctx, erin, pending.ID, input("10", "Lunch", "Food", "2024-03-01", expense.CompanyCard))
			Expect(err).NotTo(HaveOccurred())
			Expect(e.Status).To(Equal(expense.StatusApproved))
		})

		It("keeps an admin decision on personal card edits", func() {
			_, err := store.Reject(ctx, admin, pending.ID)
			Expect(err).NotTo(HaveOccurred())

			e, err := store.Update(ctx, erin, pending.ID, input("11", "Lunch", "Food", "2024-03-01", expense.PersonalCard))
			Expect(err).NotTo(HaveOccurred())
			Expect(e.Status).To(Equal(expense.StatusRejected))
		})

		It("keeps the payment method when the form leaves it out", func() {
			e, err := store.Update(ctx, erin, pending.ID, expense.ExpenseInput{Amount: "11", Description: "Lunch", Category: "Food", Date: "2024-03-01"})
			Expect(err).NotTo(HaveOccurred())
			Expect(e.PaymentMethod).To(Equal(expense.PersonalCard))
			Expect(e.Status).To(Equal(expense.StatusPending))
		})

		It("signals not found for unknown ids", func() {
			_, err := store.Update(ctx, erin, "missing", input("11", "Lunch", "Food", "2024-03-01", expense.PersonalCard))
			Expect(expense.IsNotFound(err)).To(BeTrue())
		})

		It("forbids other employees and allows admins", func() {
			_, err := store.Update(ctx, frank, pending.ID, input("11", "Lunch", "Food", "2024-03-01", expense.PersonalCard))
			Expect(errors.Is(err, internal.ErrUnauthorizedAccess)).To(BeTrue())

			_, err = store.Update(ctx, admin, pending.ID, input("11", "Lunch", "Food", "2024-03-01", expense.PersonalCard))
			Expect(err).NotTo(HaveOccurred())
		})

		It("requires a date", func() {
			_, err := store.Update(ctx, erin, pending.ID, input("11", "Lunch", "Food", "", expense.PersonalCard))
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.FieldErrors()).To(HaveKey("date"))
		})
	})

	Describe("Delete", func() {
		It("removes the expense and ignores unknown ids", func() {
			e, _ := store.Add(ctx, erin, input("10", "Lunch", "Food", "2024-03-01", expense.PersonalCard))

			Expect(store.Delete(ctx, erin, "missing")).To(Succeed())
			Expect(store.Delete(ctx, frank, e.ID)).To(MatchError(internal.ErrUnauthorizedAccess))
			Expect(store.Delete(ctx, erin, e.ID)).To(Succeed())
			Expect(store.ScopedView(admin)).To(BeEmpty())
			Expect(store.Delete(ctx, erin, e.ID)).To(Succeed())
			Expect(publisher.Types()).To(ContainElement(events.EventTypeExpenseDeleted))
		})
	})

	Describe("Approve and Reject", func() {
		var pending, company *expense.Expense

		BeforeEach(func() {
			pending, _ = store.Add(ctx, erin, input("10", "Lunch", "Food", "2024-03-01", expense.PersonalCard))
			company, _ = store.Add(ctx, erin, input("10", "Lunch", "Food", "2024-03-01", expense.CompanyCard))
		})

		It("lets the last decision win", func() {
			e, err := store.Reject(ctx, admin, pending.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(e.Status).To(Equal(expense.StatusRejected))

			e, err = store.Approve(ctx, admin, pending.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(e.Status).To(Equal(expense.StatusApproved))
		})

		It("is idempotent", func() {
			once, err := store.Approve(ctx, admin, pending.ID)
			Expect(err).NotTo(HaveOccurred())
			twice, err := store.Approve(ctx, admin, pending.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(twice.Status).To(Equal(once.Status))
		})

		It("refreshes updatedAt", func() {
			clock = clock.Add(time.Minute)
			e, err := store.Approve(ctx, admin, pending.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(e.UpdatedAt).To(Equal(clock))
		})

		It("is admin only", func() {
			_, err := store.Approve(ctx, erin, pending.ID)
			Expect(errors.Is(err, internal.ErrUnauthorizedAccess)).To(BeTrue())
			_, err = store.Reject(ctx, erin, pending.ID)
			Expect(errors.Is(err, internal.ErrUnauthorizedAccess)).To(BeTrue())
			Expect(store.ScopedView(erin)[1].Status).To(Equal(expense.StatusPending))
		})

		It("refuses company card expenses", func() {
			_, err := store.Reject(ctx, admin, company.ID)
			Expect(errors.Is(err, internal.ErrInvalidExpenseStatus)).To(BeTrue())

			got, _ := store.Get(admin, company.ID)
			Expect(got.Status).To(Equal(expense.StatusApproved))
		})

		It("signals not found for unknown ids", func() {
			_, err := store.Approve(ctx, admin, "missing")
			Expect(expense.IsNotFound(err)).To(BeTrue())
		})

		It("publishes decision events", func() {
			_, _ = store.Approve(ctx, admin, pending.ID)
			_, _ = store.Reject(ctx, admin, pending.ID)
			types := publisher.Types()
			Expect(types[len(types)-2:]).To(Equal([]string{events.EventTypeExpenseApproved, events.EventTypeExpenseRejected}))
		})
	})

	Describe("persistence", func() {
		It("survives a reload", func() {
			e, _ := store.Add(ctx, erin, input("42.50", "Lunch", "Food", "2024-03-05", expense.PersonalCard))
			_, _ = store.Approve(ctx, admin, e.ID)

			reloaded := newStore()
			Expect(reloaded.Hydrate(ctx)).To(Succeed())
			view := reloaded.ScopedView(admin)
			Expect(view).To(HaveLen(1))
			Expect(view[0].Status).To(Equal(expense.StatusApproved))
			Expect(view[0].Amount.StringFixed(2)).To(Equal("42.50"))
			Expect(view[0].Category).To(Equal(category.Food))
		})

		It("hydrates only once", func() {
			_, _ = store.Add(ctx, erin, input("1", "a", "Food", "2024-03-05", expense.PersonalCard))
			Expect(backing.Delete(ctx, expensesKey)).To(Succeed())
			Expect(store.Hydrate(ctx)).To(Succeed())
			Expect(store.ScopedView(admin)).To(HaveLen(1))
		})

		It("keeps the change in memory when the flush fails", func() {
			backing.FailWrites = errors.New("quota exceeded")

			e, err := store.Add(ctx, erin, input("10", "Lunch", "Food", "2024-03-01", expense.PersonalCard))
			Expect(err).NotTo(HaveOccurred())
			Expect(store.ScopedView(erin)).To(HaveLen(1))
			Expect(store.ScopedView(erin)[0].ID).To(Equal(e.ID))
		})

		It("reads the legacy unversioned array", func() {
			legacy := `[{"id":"old-1","amount":12.5,"description":"Old lunch","category":"Food","date":"2023-11-02",
				"createdAt":"2023-11-02T09:00:00.000Z","updatedAt":"2023-11-02T09:00:00.000Z",
				"submittedBy":"emp-erin","submittedByName":"erin"}]`
			Expect(backing.Set(ctx, expensesKey, []byte(legacy))).To(Succeed())

			s := newStore()
			Expect(s.Hydrate(ctx)).To(Succeed())
			view := s.ScopedView(erin)
			Expect(view).To(HaveLen(1))
			Expect(view[0].PaymentMethod).To(Equal(expense.PersonalCard))
			Expect(view[0].Status).To(Equal(expense.StatusPending))
		})

		Context("with unreadable persisted data", func() {
			var s *expense.Store

			BeforeEach(func() {
				Expect(backing.Set(ctx, expensesKey, []byte("{not json"))).To(Succeed())
				s = newStore()
			})

			It("fails loudly and starts empty", func() {
				err := s.Hydrate(ctx)
				Expect(internal.IsDataCorrupted(err)).To(BeTrue())
				Expect(errors.Is(err, internal.ErrUnreadableData)).To(BeTrue())
				Expect(s.ScopedView(admin)).To(BeEmpty())
				Expect(s.Writable()).To(BeFalse())
			})

			It("never overwrites the unreadable blob", func() {
				_ = s.Hydrate(ctx)
				_, err := s.Add(ctx, erin, input("10", "Lunch", "Food", "2024-03-01", expense.PersonalCard))
				Expect(err).NotTo(HaveOccurred())
				Expect(s.ScopedView(erin)).To(HaveLen(1))

				raw, err := backing.Get(ctx, expensesKey)
				Expect(err).NotTo(HaveOccurred())
				Expect(string(raw)).To(Equal("{not json"))
			})

			It("can be reset explicitly", func() {
				_ = s.Hydrate(ctx)
				Expect(s.ResetPersisted(ctx)).To(Succeed())
				Expect(s.Writable()).To(BeTrue())

				_, _ = s.Add(ctx, erin, input("10", "Lunch", "Food", "2024-03-01", expense.PersonalCard))
				fresh := newStore()
				Expect(fresh.Hydrate(ctx)).To(Succeed())
				Expect(fresh.ScopedView(admin)).To(HaveLen(1))
			})
		})

		It("rejects a newer schema version", func() {
			Expect(backing.Set(ctx, expensesKey, []byte(`{"schema":"expenses","version":99,"savedAt":"2024-01-01T00:00:00Z","data":[]}`))).To(Succeed())
			err := newStore().Hydrate(ctx)
			Expect(errors.Is(err, internal.ErrUnsupportedSchemaVersion)).To(BeTrue())
		})
	})
})
