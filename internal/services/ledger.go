package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/galexy/revivo-mk1-sub001/internal/cache"
	"github.com/galexy/revivo-mk1-sub001/internal/core"
	"github.com/galexy/revivo-mk1-sub001/internal/log"
	"github.com/galexy/revivo-mk1-sub001/internal/repository"
)

const (
	defaultTreeCacheSize = 100
	defaultTreeCacheTTL  = 5 * time.Minute
)

// Ledger orchestrates the household ledger: it opens a unit of work, loads
// aggregates, lets them enforce their rules, persists them and, after the
// commit, publishes the events they buffered.
type Ledger struct {
	store     repository.Store
	publisher EventPublisher
	logger    *log.Logger
	trees     *cache.LRUCache[[]core.CategoryNode]

	// treeGen counts tree invalidations so a read that raced with a change
	// is not cached.
	treeMu  sync.Mutex
	treeGen uint64
}

// Option configures a Ledger.
type Option func(*Ledger)

func WithLogger(logger *log.Logger) Option {
	return func(l *Ledger) { l.logger = logger.WithComponent(log.ComponentLedger) }
}

// WithCategoryCache sizes the per-household category tree cache.
func WithCategoryCache(size int, ttl time.Duration) Option {
	return func(l *Ledger) { l.trees = cache.NewLRUCache[[]core.CategoryNode](size, ttl) }
}

func NewLedger(store repository.Store, publisher EventPublisher, opts ...Option) *Ledger {
	l := &Ledger{
		store:     store,
		publisher: publisher,
		logger:    log.New(log.DefaultConfig()).WithComponent(log.ComponentLedger),
		trees:     cache.NewLRUCache[[]core.CategoryNode](defaultTreeCacheSize, defaultTreeCacheTTL),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.publisher == nil {
		l.publisher = NewLogPublisher(l.logger)
	}
	return l
}

// CategoryTreeCache exposes the tree cache so callers can register it for
// periodic cleanup.
func (l *Ledger) CategoryTreeCache() *cache.LRUCache[[]core.CategoryNode] {
	return l.trees
}

type eventSource interface {
	DrainEvents() []core.Event
}

// tracker collects the aggregates touched by a unit of work, in the order
// their events must be published.
type tracker struct {
	sources []eventSource
}

func (t *tracker) track(sources ...eventSource) {
	t.sources = append(t.sources, sources...)
}

func (t *tracker) drain() []core.Event {
	var events []core.Event
	for _, s := range t.sources {
		events = append(events, s.DrainEvents()...)
	}
	return events
}

// execute runs fn in a unit of work. Events are drained only after a
// successful commit; a failed unit of work publishes nothing.
func (l *Ledger) execute(ctx context.Context, op string, fn func(uow repository.UnitOfWork, t *tracker) error) error {
	t := &tracker{}
	if err := l.store.WithinTx(ctx, func(uow repository.UnitOfWork) error {
		return fn(uow, t)
	}); err != nil {
		if code := core.CodeOf(err); code != "" {
			l.logger.DebugContext(ctx, "Ledger operation rejected",
				log.FieldOperation, op, log.FieldErrorCode, code,
				log.FieldErrorType, errorType(err), log.FieldError, err)
		} else {
			l.logger.ErrorContext(ctx, "Ledger operation failed",
				log.FieldOperation, op, log.FieldErrorType, log.ErrorTypeDatabase, log.FieldError, err)
		}
		return err
	}

	events := t.drain()
	if len(events) == 0 {
		return nil
	}
	if err := l.publisher.Publish(ctx, events...); err != nil {
		// The change is committed; delivery is best effort.
		l.logger.ErrorContext(ctx, "Failed to publish domain events",
			log.FieldOperation, op, log.FieldEventCount, len(events), log.FieldError, err)
	}
	return nil
}

func errorType(err error) string {
	switch {
	case errors.Is(err, core.ErrValidation):
		return log.ErrorTypeValidation
	case errors.Is(err, core.ErrBusinessRule):
		return log.ErrorTypeBusinessRule
	case errors.Is(err, core.ErrNotFound):
		return log.ErrorTypeNotFound
	}
	return log.ErrorTypeInternal
}

// reference turns a failed lookup of a referenced entity into a validation
// error. Other errors pass through unchanged.
func reference(field string, err error) error {
	if errors.Is(err, core.ErrNotFound) {
		return core.NewInvalidReferenceError(field, err)
	}
	return err
}

func foreignHousehold(field, entity, id string) error {
	return core.NewInvalidReferenceError(field, fmt.Errorf("%s %s belongs to another household", entity, id))
}

// Close closes the publisher and the store.
func (l *Ledger) Close() error {
	var errs []error

	if l.publisher != nil {
		if err := l.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("publisher: %w", err))
		}
	}

	if l.store != nil {
		if err := l.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close ledger: %w", errors.Join(errs...))
	}

	return nil
}
