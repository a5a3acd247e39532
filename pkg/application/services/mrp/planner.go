// Package mrp computes material requirements of a build against live inventory.
package mrp

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/application/services/bom"
	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/domain/entities"
	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/domain/repositories"
	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/domain/tenant"
	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/infrastructure/logging"
	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/infrastructure/tracing"
)

// RequirementRequest asks what building Quantity units of ProductID needs
type RequirementRequest struct {
	ProductID string
	Quantity  decimal.Decimal

	// IncludeSubComponents descends into sub-assemblies. When false only the
	// root's direct components are listed, each checked against its own stock.
	IncludeSubComponents bool

	// WarehouseCode scopes availability; empty means every warehouse
	WarehouseCode string
}

// Planner builds requirement trees. It only reads: nothing is reserved.
type Planner struct {
	repos  repositories.Repositories
	config bom.Config
	logger *zap.Logger
	tracer trace.Tracer
}

func NewPlanner(repos repositories.Repositories, config bom.Config, logger *zap.Logger) *Planner {
	if config.MaxLevel <= 0 {
		config.MaxLevel = bom.DefaultMaxLevel
	}
	return &Planner{
		repos:  repos,
		config: config,
		logger: logging.OrNop(logger).Named("mrp.planner"),
		tracer: tracing.Tracer("mrp"),
	}
}

// CalculateRequirements returns the requirement tree of req. Every node
// carries its own availability and shortage; parents are checked too, so a
// caller can tell a sub-assembly in stock from one that must be built.
func (p *Planner) CalculateRequirements(ctx context.Context, req RequirementRequest) (result *entities.MaterialRequirement, err error) {
	ctx, span := p.tracer.Start(ctx, "mrp.CalculateRequirements", trace.WithAttributes(
		attribute.String("product_id", req.ProductID),
		attribute.String("quantity", req.Quantity.String()),
		attribute.Bool("include_sub_components", req.IncludeSubComponents),
	))
	defer func() { tracing.End(span, err) }()

	if !req.Quantity.IsPositive() {
		return nil, fmt.Errorf("%w: requirement quantity must be positive, got %s", entities.ErrInvalidQuantity, req.Quantity)
	}

	tenantID := tenant.FromContext(ctx)
	at := p.now()
	t := bom.NewTraverser(p.repos, tenantID, at, p.config.MaxLevel)
	v := &requirementVisitor{
		inventory:     p.repos.Inventory(),
		tenantID:      tenantID,
		warehouseCode: req.WarehouseCode,
		includeSub:    req.IncludeSubComponents,
		balances:      make(map[string]entities.Balance),
	}

	result, err = bom.Traverse[*entities.MaterialRequirement](ctx, t, req.ProductID, req.Quantity, v)
	if err != nil {
		p.logger.Warn("requirement calculation failed",
			zap.String("tenant_id", tenantID),
			zap.String("product_id", req.ProductID),
			zap.Error(err))
		return nil, err
	}

	shortages := result.Shortages()
	span.SetAttributes(attribute.Int("shortages", len(shortages)))
	p.logger.Debug("requirements calculated",
		zap.String("product_id", req.ProductID),
		zap.String("quantity", req.Quantity.String()),
		zap.Int("nodes", len(result.Flatten())),
		zap.Int("shortages", len(shortages)))
	return result, nil
}

func (p *Planner) now() time.Time {
	if p.config.Now != nil {
		return p.config.Now()
	}
	return time.Now().UTC()
}
