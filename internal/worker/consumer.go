package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/campuslink/portal-sync/internal/domain"
	"github.com/campuslink/portal-sync/shared/rabbitmq"
)

// Consumer drains dispatch messages from the broker and feeds them to
// the worker pool. Acknowledgment is manual and per-message: a message
// is acked once the runner consumed it (whatever the job outcome, the
// job row carries the result), and nacked without requeue when the
// payload cannot be decoded, since a malformed payload can never
// succeed.
type Consumer struct {
	client   *rabbitmq.Client
	pool     *Pool
	runner   *Runner
	prefetch int
	logger   *slog.Logger

	consumerTag string
}

// ConsumerConfig holds the consumer's collaborators
type ConsumerConfig struct {
	Client   *rabbitmq.Client
	Pool     *Pool
	Runner   *Runner
	Prefetch int
	Logger   *slog.Logger
}

// NewConsumer creates a new Consumer instance
func NewConsumer(cfg ConsumerConfig) *Consumer {
	return &Consumer{
		client:      cfg.Client,
		pool:        cfg.Pool,
		runner:      cfg.Runner,
		prefetch:    cfg.Prefetch,
		logger:      cfg.Logger,
		consumerTag: fmt.Sprintf("portal-sync-worker-%s", uuid.NewString()[:8]),
	}
}

// Start consumes until the context is canceled or the delivery channel
// closes.
func (c *Consumer) Start(ctx context.Context) error {
	channel := c.client.GetChannel()
	if channel == nil {
		return fmt.Errorf("no RabbitMQ channel available")
	}

	if c.prefetch > 0 {
		if err := channel.Qos(c.prefetch, 0, false); err != nil {
			return fmt.Errorf("failed to set prefetch count: %w", err)
		}
	}

	deliveries, err := c.client.Consume(c.consumerTag)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.logger.Info("Consumer started",
		slog.String("consumer_tag", c.consumerTag),
		slog.Int("prefetch", c.prefetch),
	)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Consumer stopping - context canceled")
			return nil

		case delivery, ok := <-deliveries:
			if !ok {
				c.logger.Warn("Consumer stopping - delivery channel closed")
				return fmt.Errorf("delivery channel closed")
			}
			c.handle(ctx, delivery)
		}
	}
}

// handle decodes one delivery and hands it to the pool. The ack
// happens on the pool goroutine after the runner finishes, so prefetch
// naturally bounds the number of in-flight jobs per consumer.
func (c *Consumer) handle(ctx context.Context, delivery amqp.Delivery) {
	var msg domain.DispatchMessage
	if err := json.Unmarshal(delivery.Body, &msg); err != nil {
		c.logger.Error("Discarding malformed dispatch message",
			slog.Uint64("delivery_tag", delivery.DeliveryTag),
			slog.Any("error", err),
		)
		if nackErr := delivery.Nack(false, false); nackErr != nil {
			c.logger.Error("Failed to NACK malformed message",
				slog.Any("error", nackErr),
			)
		}
		return
	}

	c.pool.Submit(func() {
		err := c.runner.Process(ctx, msg)
		if err != nil {
			c.logger.Error("Dispatch processing failed",
				slog.Int64("job_id", msg.JobID),
				slog.Any("error", err),
			)

			// Transient infrastructure error before the job reached a
			// terminal state: requeue so another worker retries.
			if nackErr := delivery.Nack(false, true); nackErr != nil {
				c.logger.Error("Failed to NACK message",
					slog.Int64("job_id", msg.JobID),
					slog.Any("error", nackErr),
				)
			}
			return
		}

		if ackErr := delivery.Ack(false); ackErr != nil {
			c.logger.Error("Failed to ACK message",
				slog.Int64("job_id", msg.JobID),
				slog.Any("error", ackErr),
			)
		}
	})
}
