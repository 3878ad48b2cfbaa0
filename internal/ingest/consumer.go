package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"feed_service/internal/domain"
	"feed_service/internal/publisher"
)

// ErrDeliveriesClosed is returned by Run when the broker closes the channel.
var ErrDeliveriesClosed = errors.New("rabbitmq delivery channel closed")

type ConsumerConfig struct {
	URL         string
	Exchange    string
	RoutingKey  string
	QueueName   string
	Prefetch    int
	ConsumerTag string
}

// Consumer feeds queued post events to a MessageHandler one at a time and
// settles each delivery according to the outcome.
type Consumer struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	cfg     ConsumerConfig
	handler MessageHandler
	logger  *slog.Logger
}

func NewConsumer(cfg ConsumerConfig, handler MessageHandler, logger *slog.Logger) (*Consumer, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := publisher.DeclareTopology(ch, cfg.Exchange, cfg.QueueName, cfg.RoutingKey); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	if cfg.Prefetch > 0 {
		if err := ch.Qos(cfg.Prefetch, 0, false); err != nil {
			ch.Close()
			conn.Close()
			return nil, fmt.Errorf("set prefetch: %w", err)
		}
	}

	if cfg.ConsumerTag == "" {
		cfg.ConsumerTag = "feed-ingest"
	}

	return &Consumer{
		conn:    conn,
		channel: ch,
		cfg:     cfg,
		handler: handler,
		logger:  logger.With("queue", cfg.QueueName),
	}, nil
}

// Run consumes until ctx is cancelled or the broker closes the channel.
func (c *Consumer) Run(ctx context.Context) error {
	deliveries, err := c.channel.Consume(c.cfg.QueueName, c.cfg.ConsumerTag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	c.logger.Info("consumer started", "consumer_tag", c.cfg.ConsumerTag, "prefetch", c.cfg.Prefetch)

	for {
		select {
		case <-ctx.Done():
			if err := c.channel.Cancel(c.cfg.ConsumerTag, false); err != nil {
				c.logger.Warn("cancel consumer", "error", err)
			}
			c.logger.Info("consumer stopped")
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return ErrDeliveriesClosed
			}
			c.dispatch(ctx, d)
		}
	}
}

func (c *Consumer) dispatch(ctx context.Context, d amqp.Delivery) {
	outcome, err := c.handler.Handle(ctx, d.Headers, d.Body)

	var settleErr error
	switch {
	case err != nil:
		c.logger.Warn("post event processing failed, requeueing",
			"delivery_tag", d.DeliveryTag, "redelivered", d.Redelivered, "error", err)
		settleErr = d.Nack(false, true)
	case outcome == domain.OutcomeRejected:
		settleErr = d.Reject(false)
	default:
		settleErr = d.Ack(false)
	}

	if settleErr != nil {
		c.logger.Error("unable to settle delivery", "delivery_tag", d.DeliveryTag, "outcome", outcome.String(), "error", settleErr)
	}
}

func (c *Consumer) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
