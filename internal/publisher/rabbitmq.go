package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"feed_service/internal/domain"
)

// RabbitMQ publishes post events on the exchange the feed consumes from.
type RabbitMQ struct {
	conn           *amqp.Connection
	channel        *amqp.Channel
	exchange       string
	routingKey     string
	correlationKey string
	logger         *slog.Logger
}

type Config struct {
	URL            string
	Exchange       string
	RoutingKey     string
	QueueName      string
	CorrelationKey string
}

func NewRabbitMQ(cfg Config, logger *slog.Logger) (*RabbitMQ, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := DeclareTopology(ch, cfg.Exchange, cfg.QueueName, cfg.RoutingKey); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	logger.Info("connected to rabbitmq",
		"exchange", cfg.Exchange,
		"queue", cfg.QueueName,
		"routing_key", cfg.RoutingKey,
	)

	return &RabbitMQ{
		conn:           conn,
		channel:        ch,
		exchange:       cfg.Exchange,
		routingKey:     cfg.RoutingKey,
		correlationKey: cfg.CorrelationKey,
		logger:         logger,
	}, nil
}

// DeclareTopology declares the durable exchange and queue and binds them.
// Declarations are idempotent, so publisher and consumer both call it.
func DeclareTopology(ch *amqp.Channel, exchange, queue, routingKey string) error {
	if err := ch.ExchangeDeclare(exchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	q, err := ch.QueueDeclare(queue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, routingKey, exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

// Publish sends event with correlationID in the correlation header. An empty
// correlationID omits the header.
func (r *RabbitMQ) Publish(ctx context.Context, event *domain.PostEvent, correlationID string) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	headers := amqp.Table{}
	if correlationID != "" {
		headers[r.correlationKey] = correlationID
	}

	err = r.channel.PublishWithContext(
		ctx,
		r.exchange,
		r.routingKey,
		false,
		false,
		amqp.Publishing{
			Headers:       headers,
			DeliveryMode:  amqp.Persistent,
			ContentType:   "application/json",
			CorrelationId: correlationID,
			MessageId:     event.ID,
			Body:          body,
			Timestamp:     time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("publish event: %w", err)
	}

	r.logger.Debug("published post event",
		"post_id", event.ID,
		"action", event.Action,
		"correlation_id", correlationID,
	)

	return nil
}

func (r *RabbitMQ) Close() error {
	if r.channel != nil {
		r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
