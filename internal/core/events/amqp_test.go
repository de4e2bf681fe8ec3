package events_test

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/frahmantamala/expense-tracker/internal/core/events"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/rabbitmq/amqp091-go"
)

type fakeChannel struct {
	declared   []string
	published  []amqp091.Publishing
	keys       []string
	publishErr error
	closed     bool
}

func (c *fakeChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error {
	c.declared = append(c.declared, name+":"+kind)
	return nil
}

func (c *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error {
	if c.publishErr != nil {
		return c.publishErr
	}
	c.keys = append(c.keys, exchange+"/"+key)
	c.published = append(c.published, msg)
	return nil
}

func (c *fakeChannel) Close() error {
	c.closed = true
	return nil
}

type fakeAck struct {
	acked, nacked, requeued bool
}

func (a *fakeAck) Ack(bool) error { a.acked = true; return nil }

func (a *fakeAck) Nack(_ bool, requeue bool) error {
	a.nacked = true
	a.requeued = requeue
	return nil
}

var _ = Describe("AMQP", func() {
	var (
		ctx context.Context
		ch  *fakeChannel
	)

	BeforeEach(func() {
		ctx = context.Background()
		ch = &fakeChannel{}
	})

	Describe("AMQPForwarder", func() {
		It("declares a topic exchange and publishes persistent JSON routed by type", func() {
			f, err := events.NewAMQPForwarder(ch, "expense-tracker.events", newTestLogger())
			Expect(err).NotTo(HaveOccurred())
			Expect(ch.declared).To(Equal([]string{"expense-tracker.events:topic"}))

			ev := events.NewExpenseEvent(events.EventTypeExpenseCreated, events.ExpenseSnapshot{ExpenseID: "e-1"})
			Expect(f.Forward(ctx, ev)).To(Succeed())

			Expect(ch.keys).To(Equal([]string{"expense-tracker.events/expense.created"}))
			pub := ch.published[0]
			Expect(pub.DeliveryMode).To(Equal(amqp091.Persistent))
			Expect(pub.ContentType).To(Equal("application/json"))
			Expect(pub.MessageId).To(Equal(ev.EventID()))

			var msg events.Message
			Expect(json.Unmarshal(pub.Body, &msg)).To(Succeed())
			Expect(msg.Type).To(Equal(events.EventTypeExpenseCreated))
			Expect(string(msg.Data)).To(ContainSubstring(`"expense_id":"e-1"`))

			Expect(f.Close()).To(Succeed())
			Expect(ch.closed).To(BeTrue())
		})

		It("wraps publish failures", func() {
			f, _ := events.NewAMQPForwarder(ch, "x", newTestLogger())
			ch.publishErr = errors.New("connection reset")
			err := f.Forward(ctx, events.NewExpenseEvent(events.EventTypeExpenseDeleted, events.ExpenseSnapshot{}))
			Expect(err).To(MatchError(ContainSubstring("connection reset")))
		})

		It("receives bus events once registered", func() {
			f, _ := events.NewAMQPForwarder(ch, "x", newTestLogger())
			bus := events.NewEventBus(newTestLogger())
			f.Register(bus)

			Expect(bus.PublishSync(ctx, events.NewExpenseEvent(events.EventTypeExpenseApproved, events.ExpenseSnapshot{}))).To(Succeed())
			Expect(ch.keys).To(Equal([]string{"x/expense.approved"}))
		})
	})

	Describe("HandleDelivery", func() {
		body := func() []byte {
			msg, err := events.NewMessage(events.NewExpenseEvent(events.EventTypeExpenseRejected, events.ExpenseSnapshot{ExpenseID: "e-9"}))
			Expect(err).NotTo(HaveOccurred())
			b, err := json.Marshal(msg)
			Expect(err).NotTo(HaveOccurred())
			return b
		}

		It("acks handled messages", func() {
			ack := &fakeAck{}
			var got events.Message
			events.HandleDelivery(ctx, body(), ack, func(_ context.Context, m events.Message) error {
				got = m
				return nil
			}, newTestLogger())
			Expect(ack.acked).To(BeTrue())
			Expect(got.Type).To(Equal(events.EventTypeExpenseRejected))
		})

		It("requeues on handler failure", func() {
			ack := &fakeAck{}
			events.HandleDelivery(ctx, body(), ack, func(context.Context, events.Message) error {
				return errors.New("busy")
			}, newTestLogger())
			Expect(ack.nacked).To(BeTrue())
			Expect(ack.requeued).To(BeTrue())
		})

		It("drops garbage without requeueing", func() {
			ack := &fakeAck{}
			events.HandleDelivery(ctx, []byte("nope"), ack, func(context.Context, events.Message) error {
				Fail("handler must not run")
				return nil
			}, newTestLogger())
			Expect(ack.nacked).To(BeTrue())
			Expect(ack.requeued).To(BeFalse())
		})
	})
})
