package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/frahmantamala/expense-tracker/internal/core/events"
	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start background workers",
	Long:  `Start workers that consume what the API publishes.`,
}

var eventWorkerCmd = &cobra.Command{
	Use:   "events",
	Short: "Consume expense events from the AMQP exchange",
	Long:  `Bind a durable queue to the events exchange and log every expense event as an audit trail`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		return startEventWorker(ctx)
	},
}

var workerQueue string

func startEventWorker(parent context.Context) error {
	deps, err := initializeDependencies(depsOptions{})
	if err != nil {
		return err
	}
	defer deps.Close()

	cfg := deps.Config.Events
	if !cfg.Enabled() {
		return errors.New("events.amqp_url is not configured")
	}
	queue := cfg.Queue
	if workerQueue != "" {
		queue = workerQueue
	}

	consumer, err := events.DialAMQPConsumer(cfg.AMQPURL, cfg.Exchange, queue, deps.Logger)
	if err != nil {
		return fmt.Errorf("failed to start event consumer: %w", err)
	}
	defer consumer.Close()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps.Logger.Info("event worker started. Waiting for events...", "exchange", cfg.Exchange, "queue", queue)

	err = consumer.Consume(ctx, auditHandler(deps))
	if errors.Is(err, context.Canceled) {
		deps.Logger.Info("event worker shutdown complete")
		return nil
	}
	return err
}

func auditHandler(deps *Dependencies) func(context.Context, events.Message) error {
	return func(ctx context.Context, msg events.Message) error {
		deps.Logger.InfoContext(ctx, "expense event",
			"event_id", msg.ID,
			"event_type", msg.Type,
			"occurred_at", msg.Timestamp,
			"data", string(msg.Data))
		return nil
	}
}

func init() {
	eventWorkerCmd.Flags().StringVar(&workerQueue, "queue", "", "queue name (overrides events.queue)")

	workerCmd.AddCommand(eventWorkerCmd)

	rootCmd.AddCommand(workerCmd)
}
