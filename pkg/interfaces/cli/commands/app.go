package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/application/services/allocation"
	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/application/services/bom"
	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/application/services/ledger"
	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/application/services/mrp"
	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/domain/entities"
	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/domain/repositories"
	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/domain/tenant"
	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/infrastructure/config"
	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/infrastructure/events"
	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/infrastructure/locking"
	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/infrastructure/logging"
	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/infrastructure/repositories/csv"
	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/infrastructure/repositories/memory"
	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/infrastructure/repositories/sqlstore"
)

// App is the wired engine a command runs against
type App struct {
	Store    repositories.Store
	Resolver *bom.Resolver
	BOMs     *bom.Service
	Planner  *mrp.Planner
	Engine   *allocation.Engine
	Ledger   *ledger.Service
	Events   *events.InMemoryEventStore
	TenantID string
	Logger   *zap.Logger

	closers []func() error
}

// NewApp opens the configured store and locker. A non-empty scenario dir
// seeds a fresh memory store instead of opening the configured one.
func NewApp(ctx context.Context, cfg *config.Config, scenario string, logger *zap.Logger) (*App, error) {
	logger = logging.OrNop(logger)
	app := &App{TenantID: cfg.App.TenantID, Logger: logger}

	store, err := app.openStore(ctx, cfg, scenario)
	if err != nil {
		return nil, err
	}
	app.Store = store

	locker, err := app.openLocker(ctx, cfg)
	if err != nil {
		app.Close()
		return nil, err
	}

	app.Events = events.NewInMemoryEventStore(logger)
	err = app.Events.Subscribe([]string{events.AllEvents}, &events.HandlerFunc{
		Fn: func(ctx context.Context, e events.Event) error {
			logger.Debug("event published",
				zap.String("event_type", e.Type()),
				zap.String("stream_id", e.StreamID()),
				zap.String("tenant_id", e.TenantID()))
			return nil
		},
	})
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to subscribe event logger: %w", err)
	}

	engineConfig := bom.Config{MaxLevel: cfg.Engine.MaxBOMLevel}
	app.Resolver = bom.NewResolver(store, engineConfig, logger)
	app.BOMs = bom.NewService(store, app.Events, logger)
	app.Planner = mrp.NewPlanner(store, engineConfig, logger)
	app.Engine = allocation.NewEngine(store, locker, app.Events, logger)
	app.Ledger = ledger.NewService(store, locker, app.Events, logger)
	return app, nil
}

func (a *App) openStore(ctx context.Context, cfg *config.Config, scenario string) (repositories.Store, error) {
	if scenario != "" {
		store := memory.NewStore()
		if _, err := csv.NewLoader(a.Logger).LoadScenario(ctx, scenario, store, a.TenantID); err != nil {
			return nil, fmt.Errorf("failed to load scenario: %w", err)
		}
		return store, nil
	}

	switch cfg.Store.Driver {
	case config.StoreMemory:
		return memory.NewStore(), nil
	case config.StorePostgres:
		store, err := sqlstore.Open(ctx, sqlstore.Options{
			Driver:       sqlstore.DriverPostgres,
			DSN:          cfg.Postgres.DSN(),
			MaxOpenConns: cfg.Postgres.MaxOpenConns,
			MaxIdleConns: cfg.Postgres.MaxIdleConns,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
		return store, nil
	case config.StoreSQLite:
		store, err := sqlstore.Open(ctx, sqlstore.Options{Driver: sqlstore.DriverSQLite, DSN: cfg.SQLite.Path})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func (a *App) openLocker(ctx context.Context, cfg *config.Config) (allocation.Locker, error) {
	if cfg.Lock.Backend != config.LockRedis {
		return locking.NewMemoryLocker(), nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Redis.Addr, err)
	}
	a.closers = append(a.closers, client.Close)
	return locking.NewRedisLocker(client, cfg.Lock.TTL, a.Logger), nil
}

// Close releases connections in reverse opening order
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// Context scopes ctx to the configured tenant
func (a *App) Context(ctx context.Context) context.Context {
	return tenant.WithTenant(ctx, a.TenantID)
}

// ResolveProduct accepts a product ID or a SKU
func (a *App) ResolveProduct(ctx context.Context, ref string) (*entities.Product, error) {
	p, err := a.Store.Products().GetProduct(ctx, a.TenantID, ref)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, entities.ErrProductNotFound) {
		return nil, err
	}
	products, err := a.Store.Products().ListProducts(ctx, a.TenantID)
	if err != nil {
		return nil, err
	}
	for _, p := range products {
		if p.SKU == ref {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", entities.ErrProductNotFound, ref)
}
