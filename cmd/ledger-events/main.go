package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/galexy/revivo-mk1-sub001/internal/amqp"
	"github.com/galexy/revivo-mk1-sub001/internal/cli"
	"github.com/galexy/revivo-mk1-sub001/internal/log"
)

// ledger-events follows the ledger's event stream and logs every event it
// receives. It is the reference consumer for the exchange the ledger
// publishes to.
func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentEvents)
	cfg := cli.LoadAndValidateConfig(logger)

	if !cfg.AMQPEnabled() {
		logger.Error("AMQP_URL is required to consume ledger events")
		os.Exit(1)
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, amqp.BindAll)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err.Error())
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, client.Close)
	logger.Info("Consuming ledger events", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return client.ConsumeEvents(gctx, func(ctx context.Context, msg *amqp.EventMessage) error {
			return handle(ctx, logger, msg)
		})
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Event consumption failed", log.FieldError, err.Error())
		_ = client.Close()
		os.Exit(1)
	}
	cli.WaitForShutdown(ctx, done)
}

// handle logs one event. Messages whose name is not a known ledger event are
// logged raw and acknowledged.
func handle(ctx context.Context, logger *log.Logger, msg *amqp.EventMessage) error {
	fields := log.NewFields().WithEvent(msg.Name, msg.AggregateID)
	event, err := msg.Decode()
	if err != nil {
		logger.WarnContext(ctx, "Undecodable ledger event",
			append(fields.WithError(err).ToSlice(), "payload", string(msg.Payload))...)
		return nil
	}
	logger.InfoContext(ctx, "Ledger event",
		append(fields.ToSlice(), "occurred_at", msg.OccurredAt, "event_type", fmt.Sprintf("%T", event))...)
	return nil
}
