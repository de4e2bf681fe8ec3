package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/frahmantamala/expense-tracker/internal/core/common/validation"
	"github.com/frahmantamala/expense-tracker/internal/core/events"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Event management commands",
	Long:  `Publish test expense events through the bus and, when configured, the AMQP exchange`,
}

var publishEventCmd = &cobra.Command{
	Use:       "publish [event-type]",
	Short:     "Publish a test expense event",
	Long:      `Publish a test expense event to the event bus for testing and debugging the forwarder and worker`,
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: events.ExpenseEventTypes,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		return publishTestEvent(ctx, args[0])
	},
}

var (
	eventExpenseID string
	eventAmount    string
)

func publishTestEvent(ctx context.Context, eventType string) error {
	deps, err := initializeDependencies(depsOptions{forward: true, logOut: os.Stderr})
	if err != nil {
		return err
	}
	defer deps.Close()

	amount, err := decimal.NewFromString(eventAmount)
	if err != nil {
		return fmt.Errorf("--amount: %w", err)
	}

	deps.Bus.Subscribe(eventType, func(ctx context.Context, event events.Event) error {
		deps.Logger.Info("test handler received event",
			"event_id", event.EventID(),
			"event_type", event.EventType(),
			"payload", event.Payload())
		return nil
	})

	testEvent := events.NewExpenseEvent(eventType, events.ExpenseSnapshot{
		ExpenseID:     eventExpenseID,
		OwnerID:       "cli",
		ActorID:       "cli",
		Amount:        amount.Round(validation.AmountPlaces),
		Category:      "Other",
		PaymentMethod: "personal_card",
		Status:        "pending",
	})

	deps.Logger.Info("publishing test event", "event_type", eventType, "event_id", testEvent.EventID(),
		"forwarded", deps.Forwarder != nil)

	// synchronous so a forwarding failure reaches the exit status
	if err := deps.Bus.PublishSync(ctx, testEvent); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	fmt.Println("Published", eventType, testEvent.EventID())
	return nil
}

func init() {
	publishEventCmd.Flags().StringVar(&eventExpenseID, "expense-id", "test-expense", "expense id carried by the event")
	publishEventCmd.Flags().StringVar(&eventAmount, "amount", "1.00", "amount carried by the event")

	eventCmd.AddCommand(publishEventCmd)

	rootCmd.AddCommand(eventCmd)
}
