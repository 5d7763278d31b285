package services

import (
	"context"

	"github.com/galexy/revivo-mk1-sub001/internal/core"
	"github.com/galexy/revivo-mk1-sub001/internal/log"
)

// EventPublisher delivers committed domain events to the outside world.
type EventPublisher interface {
	Publish(ctx context.Context, events ...core.Event) error
	Close() error
}

// LogPublisher is the fallback publisher used when no broker is configured.
// It only writes each event to the log.
type LogPublisher struct {
	logger *log.Logger
}

func NewLogPublisher(logger *log.Logger) *LogPublisher {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &LogPublisher{logger: logger.WithComponent(log.ComponentEvents)}
}

func (p *LogPublisher) Publish(ctx context.Context, events ...core.Event) error {
	for _, e := range events {
		p.logger.InfoContext(ctx, "Domain event",
			log.FieldEvent, e.EventName(),
			log.FieldAggregateID, e.AggregateID(),
			"occurred_at", e.OccurredAt())
	}
	return nil
}

func (p *LogPublisher) Close() error { return nil }
