package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jessevdk/go-flags"

	"feed_service/internal/config"
	"feed_service/internal/domain"
	"feed_service/internal/publisher"
)

type options struct {
	Config        string `short:"c" long:"config" env:"FEED_CONFIG" default:"config.yaml" description:"path to config file"`
	ID            string `long:"id" description:"post id (random when empty)"`
	Author        string `short:"a" long:"author" required:"true" description:"author username"`
	Message       string `short:"m" long:"message" required:"true" description:"post message"`
	Disabled      bool   `long:"disabled" description:"publish the post as disabled"`
	CorrelationID string `long:"correlation-id" description:"correlation id header value (random when empty)"`
	NoCorrelation bool   `long:"no-correlation" description:"omit the correlation header"`
	Action        string `long:"action" default:"create" description:"event action"`
}

func main() {
	var opts options
	if _, err := flags.NewParser(&opts, flags.Default).Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return
		}
		os.Exit(2)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if err := run(opts, logger); err != nil {
		logger.Error("publish failed", "error", err)
		os.Exit(1)
	}
}

func run(opts options, logger *slog.Logger) error {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return err
	}

	pub, err := publisher.NewRabbitMQ(publisher.Config{
		URL:            cfg.RabbitMQ.URL,
		Exchange:       cfg.RabbitMQ.Exchange,
		RoutingKey:     cfg.RabbitMQ.RoutingKey,
		QueueName:      cfg.RabbitMQ.QueueName,
		CorrelationKey: cfg.RabbitMQ.CorrelationKey,
	}, logger)
	if err != nil {
		return err
	}
	defer pub.Close()

	event := &domain.PostEvent{
		ID:             opts.ID,
		Message:        opts.Message,
		CreationTime:   time.Now().UTC().Truncate(time.Millisecond),
		AuthorUsername: opts.Author,
		Enabled:        !opts.Disabled,
		Action:         opts.Action,
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	correlationID := opts.CorrelationID
	if correlationID == "" && !opts.NoCorrelation {
		correlationID = uuid.NewString()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := pub.Publish(ctx, event, correlationID); err != nil {
		return err
	}

	fmt.Printf("published post %s (correlation id %q)\n", event.ID, correlationID)
	return nil
}
