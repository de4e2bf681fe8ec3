package rest

import (
	"log/slog"
	"net/http"

	"github.com/frahmantamala/expense-tracker/internal/auth"
	"github.com/frahmantamala/expense-tracker/internal/category"
	"github.com/frahmantamala/expense-tracker/internal/expense"
	"github.com/frahmantamala/expense-tracker/internal/transport/middleware"
	"github.com/frahmantamala/expense-tracker/internal/transport/swagger"
	"github.com/frahmantamala/expense-tracker/internal/user"
	"github.com/go-chi/chi"
)

// Routes carries everything RegisterAllRoutes mounts. Nil handlers leave their
// routes out.
type Routes struct {
	Health   *HealthHandler
	Auth     *auth.Handler
	RBAC     *auth.RBACAuthorization
	User     *user.Handler
	Category *category.Handler
	Expense  *expense.Handler

	// Validator checks requests against the OpenAPI document, when set.
	Validator func(http.Handler) http.Handler
	Spec      []byte
	Origins   []string
}

func RegisterAllRoutes(router *chi.Mux, routes Routes, logger *slog.Logger) {
	// Apply global middleware
	router.Use(middleware.CORS(routes.Origins))
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))

	if len(routes.Spec) > 0 {
		router.Get(swagger.SpecPath, swagger.SpecHandler(routes.Spec))
		router.Handle("/swagger/*", swagger.Handler())
	}

	// Mount API under /api/v1
	router.Route("/api/v1", func(r chi.Router) {
		if routes.Validator != nil {
			r.Use(routes.Validator)
		}

		if routes.Health != nil {
			r.Get("/health", routes.Health.healthCheckHandler)
			r.Get("/ping", routes.Health.pingHandler)
		}

		// Public categories route (no auth required)
		if routes.Category != nil {
			r.Get("/categories", routes.Category.GetCategories)
		}

		if routes.Auth == nil {
			return
		}

		r.Route("/auth", func(sr chi.Router) {
			sr.Post("/signup", routes.Auth.Signup)
			sr.Post("/login", routes.Auth.Login)
			sr.Post("/logout", routes.Auth.Logout)
		})

		// Protected routes that require authentication
		r.Group(func(pr chi.Router) {
			pr.Use(routes.Auth.AuthMiddleware)

			if routes.User != nil {
				pr.Get("/users/me", routes.User.GetCurrentUser)
			}

			if routes.Expense == nil {
				return
			}
			eh := routes.Expense
			pr.Route("/expenses", func(er chi.Router) {
				er.Get("/", eh.ListExpenses)
				er.Post("/", eh.CreateExpense)
				er.Get("/summary", eh.GetSummary)
				er.Get("/export", eh.ExportExpenses)
				er.Get("/{id}", eh.GetExpense)
				er.Put("/{id}", eh.UpdateExpense)
				er.Delete("/{id}", eh.DeleteExpense)

				// Admin decisions. The store re-checks the role.
				if routes.RBAC != nil {
					er.With(routes.RBAC.RequireApproveExpense()).Patch("/{id}/approve", eh.ApproveExpense)
					er.With(routes.RBAC.RequireRejectExpense()).Patch("/{id}/reject", eh.RejectExpense)
				} else {
					er.Patch("/{id}/approve", eh.ApproveExpense)
					er.Patch("/{id}/reject", eh.RejectExpense)
				}
			})
		})
	})
}
