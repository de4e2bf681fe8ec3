package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/frahmantamala/expense-tracker/api"
	"github.com/frahmantamala/expense-tracker/internal/auth"
	"github.com/frahmantamala/expense-tracker/internal/category"
	"github.com/frahmantamala/expense-tracker/internal/expense"
	"github.com/frahmantamala/expense-tracker/internal/transport"
	"github.com/frahmantamala/expense-tracker/internal/transport/middleware"
	"github.com/frahmantamala/expense-tracker/internal/transport/rest"
	"github.com/frahmantamala/expense-tracker/internal/user"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var skipRequestValidation bool

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return startHTTPServer(cmd.Context())
	},
}

func init() {
	httpServerCmd.Flags().BoolVar(&skipRequestValidation, "no-validate", false, "skip OpenAPI request validation")
}

func startHTTPServer(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	deps, err := initializeDependencies(depsOptions{forward: true})
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	defer deps.Close()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := deps.Auth.EnsureAdmin(ctx); err != nil {
		return fmt.Errorf("failed to seed admin: %w", err)
	}
	if err := deps.HydrateExpenses(ctx); err != nil {
		return fmt.Errorf("refusing to start: %w", err)
	}

	router := chi.NewRouter()
	if err := setupRoutes(ctx, deps, router); err != nil {
		return err
	}

	cfg := deps.Config.Server
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		deps.Logger.Info("Starting HTTP server", "address", server.Addr, "storage", deps.Config.Storage.Driver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		deps.Logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		deps.Logger.Error("server stopped with error", "error", err)
		return err
	}
	deps.Logger.Info("Server stopped")
	return nil
}

func setupRoutes(ctx context.Context, deps *Dependencies, router *chi.Mux) error {
	lg := deps.Logger

	routes := rest.Routes{
		Health:   rest.NewHealthHandler(transport.NewBaseHandler(lg), deps.Config.Storage.Driver, deps.SQLDB, deps.SQLDriver),
		Auth:     auth.NewHandler(deps.Auth, lg),
		RBAC:     auth.NewRBACAuthorization(auth.NewPermissionChecker(), lg),
		User:     user.NewHandler(deps.UserService, lg),
		Category: category.NewHandler(lg),
		Expense:  expense.NewHandler(deps.Expenses, lg),
		Spec:     api.Spec,
		Origins:  deps.Config.Server.Origins(),
	}

	if !skipRequestValidation {
		doc, err := middleware.LoadOpenAPI(ctx, api.Spec)
		if err != nil {
			return err
		}
		validator, err := middleware.RequestValidator(doc, lg)
		if err != nil {
			return err
		}
		routes.Validator = validator
	}

	rest.RegisterAllRoutes(router, routes, lg)
	return nil
}
