package expense

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/frahmantamala/expense-tracker/internal"
	"github.com/frahmantamala/expense-tracker/internal/core/common/validation"
	"github.com/frahmantamala/expense-tracker/internal/transport"
	"github.com/frahmantamala/expense-tracker/internal/user"
	"github.com/go-chi/chi"
)

type StoreAPI interface {
	ScopedView(actor user.Identity) []*Expense
	Get(actor user.Identity, id string) (*Expense, error)
	Add(ctx context.Context, actor user.Identity, in ExpenseInput) (*Expense, error)
	Update(ctx context.Context, actor user.Identity, id string, in ExpenseInput) (*Expense, error)
	Delete(ctx context.Context, actor user.Identity, id string) error
	Approve(ctx context.Context, actor user.Identity, id string) (*Expense, error)
	Reject(ctx context.Context, actor user.Identity, id string) (*Expense, error)
}

type Handler struct {
	*transport.BaseHandler
	Store StoreAPI
	now   func() time.Time
}

func NewHandler(store StoreAPI, lg *slog.Logger) *Handler {
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Store:       store,
		now:         time.Now,
	}
}

func (h *Handler) identity(w http.ResponseWriter, r *http.Request, op string) (user.Identity, bool) {
	identity, ok := user.IdentityFromContext(r.Context())
	if !ok {
		h.Logger.Error(op + ": identity not found in context")
		h.WriteAppError(w, internal.ErrNotAuthenticated)
	}
	return identity, ok
}

// filterFromQuery reads start_date, end_date, category and q. The search text
// is matched as given, surrounding spaces included.
func filterFromQuery(r *http.Request) (Filter, error) {
	q := r.URL.Query()
	f := Filter{
		StartDate: strings.TrimSpace(q.Get("start_date")),
		EndDate:   strings.TrimSpace(q.Get("end_date")),
		Category:  strings.TrimSpace(q.Get("category")),
		Query:     q.Get("q"),
	}

	validator := validation.NewValidator()
	validator.Field("start_date", f.StartDate).Date(internal.ErrCodeInvalidDate)
	validator.Field("end_date", f.EndDate).Date(internal.ErrCodeInvalidDate)
	if err := validator.Validate(); err != nil {
		return Filter{}, err
	}
	return f, nil
}

// ListExpenses handles GET /expenses
func (h *Handler) ListExpenses(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r, "ListExpenses")
	if !ok {
		return
	}

	f, err := filterFromQuery(r)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	q := r.URL.Query()
	view := f.Apply(h.Store.ScopedView(identity))
	view = Sort(view, SortBy(q.Get("sort_by")), Order(q.Get("order")))

	h.WriteJSON(w, http.StatusOK, ListResponse{
		Expenses: view,
		Count:    len(view),
		Total:    TotalSpending(view),
	})
}

// CreateExpense handles POST /expenses
func (h *Handler) CreateExpense(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r, "CreateExpense")
	if !ok {
		return
	}

	var in ExpenseInput
	if err := h.DecodeJSON(r, &in); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	e, err := h.Store.Add(r.Context(), identity, in)
	if err != nil {
		h.Logger.Info("CreateExpense: rejected", "user_id", identity.ID, "error", err)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, e)
}

// GetExpense handles GET /expenses/{id}
func (h *Handler) GetExpense(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r, "GetExpense")
	if !ok {
		return
	}

	e, err := h.Store.Get(identity, chi.URLParam(r, "id"))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, e)
}

// UpdateExpense handles PUT /expenses/{id}
func (h *Handler) UpdateExpense(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r, "UpdateExpense")
	if !ok {
		return
	}

	var in ExpenseInput
	if err := h.DecodeJSON(r, &in); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	id := chi.URLParam(r, "id")
	e, err := h.Store.Update(r.Context(), identity, id, in)
	if err != nil {
		h.Logger.Info("UpdateExpense: rejected", "expense_id", id, "user_id", identity.ID, "error", err)
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, e)
}

// DeleteExpense handles DELETE /expenses/{id}
func (h *Handler) DeleteExpense(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r, "DeleteExpense")
	if !ok {
		return
	}

	if err := h.Store.Delete(r.Context(), identity, chi.URLParam(r, "id")); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ApproveExpense handles PATCH /expenses/{id}/approve
func (h *Handler) ApproveExpense(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, "ApproveExpense", h.Store.Approve)
}

// RejectExpense handles PATCH /expenses/{id}/reject
func (h *Handler) RejectExpense(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, "RejectExpense", h.Store.Reject)
}

type decision func(ctx context.Context, actor user.Identity, id string) (*Expense, error)

func (h *Handler) decide(w http.ResponseWriter, r *http.Request, op string, apply decision) {
	identity, ok := h.identity(w, r, op)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	e, err := apply(r.Context(), identity, id)
	if err != nil {
		h.Logger.Warn(op+": service error", "expense_id", id, "admin_id", identity.ID, "error", err)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, StatusResponse{ID: e.ID, Status: e.Status})
}

// GetSummary handles GET /expenses/summary
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r, "GetSummary")
	if !ok {
		return
	}

	ref := h.now()
	if raw := strings.TrimSpace(r.URL.Query().Get("ref")); raw != "" {
		parsed, err := time.ParseInLocation(validation.DateLayout, raw, time.Local)
		if err != nil {
			h.WriteAppError(w, internal.NewValidationFieldError("ref", "ref must be a date in YYYY-MM-DD format", internal.ErrCodeInvalidDate))
			return
		}
		ref = parsed
	}

	h.WriteJSON(w, http.StatusOK, Summarize(h.Store.ScopedView(identity), ref))
}

// ExportExpenses handles GET /expenses/export
func (h *Handler) ExportExpenses(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r, "ExportExpenses")
	if !ok {
		return
	}

	f, err := filterFromQuery(r)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	q := r.URL.Query()
	view := Sort(f.Apply(h.Store.ScopedView(identity)), SortBy(q.Get("sort_by")), Order(q.Get("order")))

	var buf bytes.Buffer
	if err := WriteCSV(&buf, view); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", ExportFilename("expenses", h.now())))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.Logger.Error("ExportExpenses: failed to write response", "error", err)
	}
}
