// Package allocation commits what the planner previews: FIFO consumption,
// reservation and release of lot stock. Every call is one unit of work.
package allocation

import (
	"context"
	"sort"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/domain/repositories"
	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/infrastructure/events"
	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/infrastructure/locking"
	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/infrastructure/logging"
	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/infrastructure/tracing"
)

// Locker serializes callers touching the same products. Acquire blocks until
// every key is held or ctx is done; the returned func releases them all.
type Locker interface {
	Acquire(ctx context.Context, keys []string) (release func(), err error)
}

// Engine allocates inventory lots
type Engine struct {
	store     repositories.Store
	locker    Locker
	publisher events.Publisher
	now       func() time.Time
	logger    *zap.Logger
	tracer    trace.Tracer
}

// NewEngine wires an engine. A nil locker falls back to an in-process
// MemoryLocker; a nil publisher drops events.
func NewEngine(store repositories.Store, locker Locker, publisher events.Publisher, logger *zap.Logger) *Engine {
	if locker == nil {
		locker = locking.NewMemoryLocker()
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Engine{
		store:     store,
		locker:    locker,
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    logging.OrNop(logger).Named("allocation"),
		tracer:    tracing.Tracer("allocation"),
	}
}

// lockProducts acquires one lock per distinct product, in sorted key order
func (e *Engine) lockProducts(ctx context.Context, tenantID string, productIDs []string) (func(), error) {
	seen := make(map[string]struct{}, len(productIDs))
	keys := make([]string, 0, len(productIDs))
	for _, id := range productIDs {
		key := locking.ProductKey(tenantID, id)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return e.locker.Acquire(ctx, keys)
}

// publish runs after commit. A failed publish is logged; the write stands.
func (e *Engine) publish(ctx context.Context, event events.Event) {
	if err := e.publisher.Publish(ctx, event); err != nil {
		e.logger.Error("failed to publish event", zap.String("event_type", event.Type()), zap.Error(err))
	}
}
