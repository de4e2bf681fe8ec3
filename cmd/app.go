package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/frahmantamala/expense-tracker/internal"
	"github.com/frahmantamala/expense-tracker/internal/auth"
	authKV "github.com/frahmantamala/expense-tracker/internal/auth/kv"
	"github.com/frahmantamala/expense-tracker/internal/core/events"
	"github.com/frahmantamala/expense-tracker/internal/expense"
	expenseKV "github.com/frahmantamala/expense-tracker/internal/expense/kv"
	"github.com/frahmantamala/expense-tracker/internal/storage"
	"github.com/frahmantamala/expense-tracker/internal/storage/memory"
	"github.com/frahmantamala/expense-tracker/internal/storage/postgres"
	"github.com/frahmantamala/expense-tracker/internal/user"
	userKV "github.com/frahmantamala/expense-tracker/internal/user/kv"
	"github.com/frahmantamala/expense-tracker/pkg/logger"
)

const drainTimeout = 5 * time.Second

// Dependencies is everything a command needs, built from one config.
type Dependencies struct {
	Config *internal.Config
	Logger *slog.Logger

	Store     storage.Store
	SQLDB     *sql.DB
	SQLDriver string

	Bus       *events.EventBus
	Forwarder *events.AMQPForwarder

	Users       *userKV.UserRepository
	UserService *user.Service
	Auth        *auth.Service
	ExpenseRepo *expenseKV.ExpenseRepository
	Expenses    *expense.Store
}

type depsOptions struct {
	// sessions keeps the single logged-in identity in the store (CLI).
	sessions bool
	// forward republishes expense events to AMQP when configured.
	forward bool
	logOut  io.Writer
}

func initializeDependencies(opts depsOptions) (*Dependencies, error) {
	cfg, err := loadConfig(configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	var lg *slog.Logger
	if opts.logOut != nil {
		lg = logger.InitWithWriter(opts.logOut, cfg.AppEnv, cfg.Logging.Level, cfg.Logging.Format)
	} else {
		lg = logger.Init(cfg.AppEnv, cfg.Logging.Level, cfg.Logging.Format)
	}

	deps := &Dependencies{Config: cfg, Logger: lg}
	if err := deps.openStore(); err != nil {
		return nil, err
	}

	deps.Bus = events.NewEventBus(lg)
	if opts.forward && cfg.Events.Enabled() {
		fwd, err := events.DialAMQPForwarder(cfg.Events.AMQPURL, cfg.Events.Exchange, lg)
		if err != nil {
			deps.Close()
			return nil, fmt.Errorf("failed to connect event forwarder: %w", err)
		}
		fwd.Register(deps.Bus)
		deps.Forwarder = fwd
	}

	deps.Users = userKV.NewUserRepository(deps.Store, cfg.Storage.UsersKey)
	deps.UserService = user.NewService(deps.Users, lg)

	var sessions auth.SessionRepository
	if opts.sessions {
		sessions = authKV.NewSessionRepository(deps.Store, cfg.Storage.SessionKey)
	}
	deps.Auth = auth.NewService(
		deps.Users,
		sessions,
		auth.NewJWTTokenGenerator(cfg.Security.JWTSecret, cfg.Security.AccessTokenDuration),
		auth.Config{
			BCryptCost:    cfg.Security.BCryptCost,
			AdminUsername: cfg.Security.AdminUsername,
			AdminPassword: cfg.Security.AdminPassword,
		},
		lg,
	)

	deps.ExpenseRepo = expenseKV.NewExpenseRepository(deps.Store, cfg.Storage.ExpensesKey)
	deps.Expenses = expense.NewStore(deps.ExpenseRepo, auth.NewPermissionChecker(), deps.Bus, lg)

	return deps, nil
}

func (d *Dependencies) openStore() error {
	cfg := d.Config.Storage
	switch cfg.Driver {
	case internal.StorageDriverMemory:
		d.Store = memory.New()
	case internal.StorageDriverSQLite, internal.StorageDriverPostgres:
		st, err := postgres.Open(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		if cfg.Driver == internal.StorageDriverSQLite {
			// sqlite quick start: no separate migrate step
			if err := st.AutoMigrate(); err != nil {
				_ = st.Close()
				return fmt.Errorf("failed to create kv_entries: %w", err)
			}
		}
		sqlDB, err := st.SQLDB()
		if err != nil {
			_ = st.Close()
			return err
		}
		d.Store, d.SQLDB, d.SQLDriver = st, sqlDB, sqlDriverName(cfg.Driver)
	default:
		return fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
	d.Logger.Debug("storage opened", "driver", cfg.Driver)
	return nil
}

// sqlDriverName is the database/sql driver name matching a storage driver.
func sqlDriverName(driver string) string {
	if driver == internal.StorageDriverSQLite {
		return "sqlite3"
	}
	return "pgx"
}

// HydrateExpenses loads the expense collection. Unreadable data is fatal
// unless storage.reset_on_corrupt asks to start over.
func (d *Dependencies) HydrateExpenses(ctx context.Context) error {
	err := d.Expenses.Hydrate(ctx)
	if err == nil {
		return nil
	}
	if internal.IsDataCorrupted(err) && d.Config.Storage.ResetOnCorrupt {
		d.Logger.Warn("discarding unreadable expenses", "key", d.Config.Storage.ExpensesKey, "error", err)
		return d.Expenses.ResetPersisted(ctx)
	}
	return err
}

// Close waits for in-flight event handlers and releases connections.
func (d *Dependencies) Close() {
	if d.Bus != nil {
		ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
		if err := d.Bus.Drain(ctx); err != nil {
			d.Logger.Warn("event handlers still running at shutdown", "error", err)
		}
		cancel()
	}
	if d.Forwarder != nil {
		if err := d.Forwarder.Close(); err != nil {
			d.Logger.Error("event forwarder close error", "error", err)
		}
	}
	if d.Store != nil {
		if err := storage.Close(d.Store); err != nil {
			d.Logger.Error("storage close error", "error", err)
		}
	}
}
