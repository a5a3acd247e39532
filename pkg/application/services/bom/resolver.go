// Package bom resolves bills of materials: multi-level explosion with cost
// rollup, cycle guarding for BOM writes, and the BOM lifecycle.
package bom

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/domain/entities"
	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/domain/repositories"
	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/domain/tenant"
	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/infrastructure/logging"
	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/infrastructure/tracing"
)

// Config holds resolver settings
type Config struct {
	// MaxLevel is the default depth guard, used when a call passes maxLevel <= 0
	MaxLevel int

	// Now returns the instant BOM effectivity is evaluated at. Defaults to time.Now.
	Now func() time.Time
}

func (c Config) withDefaults() Config {
	if c.MaxLevel <= 0 {
		c.MaxLevel = DefaultMaxLevel
	}
	if c.Now == nil {
		c.Now = func() time.Time { return time.Now().UTC() }
	}
	return c
}

// Resolver explodes BOMs and computes their cost. It only reads.
type Resolver struct {
	repos  repositories.Repositories
	config Config
	logger *zap.Logger
	tracer trace.Tracer
}

func NewResolver(repos repositories.Repositories, config Config, logger *zap.Logger) *Resolver {
	return &Resolver{
		repos:  repos,
		config: config.withDefaults(),
		logger: logging.OrNop(logger).Named("bom.resolver"),
		tracer: tracing.Tracer("bom"),
	}
}

// Explode builds the full explosion tree of quantity units of productID.
// The product must have an active BOM. maxLevel <= 0 uses the configured default.
func (r *Resolver) Explode(ctx context.Context, productID string, quantity decimal.Decimal, maxLevel int) (root *entities.ExplosionNode, err error) {
	ctx, span := r.tracer.Start(ctx, "bom.Explode", trace.WithAttributes(
		attribute.String("product_id", productID),
		attribute.String("quantity", quantity.String()),
	))
	defer func() { tracing.End(span, err) }()

	if !quantity.IsPositive() {
		return nil, fmt.Errorf("%w: explode quantity must be positive, got %s", entities.ErrInvalidQuantity, quantity)
	}
	if maxLevel <= 0 {
		maxLevel = r.config.MaxLevel
	}

	tenantID := tenant.FromContext(ctx)
	t := NewTraverser(r.repos, tenantID, r.config.Now(), maxLevel)

	structure, err := t.Structure(ctx, productID)
	if err != nil {
		return nil, err
	}
	if structure == nil {
		return nil, fmt.Errorf("%w: no active BOM for product %s", entities.ErrBOMNotFound, productID)
	}

	root, err = Traverse[*entities.ExplosionNode](ctx, t, productID, quantity, explosionVisitor{})
	if err != nil {
		r.logger.Warn("explosion failed",
			zap.String("tenant_id", tenantID),
			zap.String("product_id", productID),
			zap.Error(err))
		return nil, err
	}

	span.SetAttributes(attribute.Int("node_count", root.NodeCount()), attribute.Int("depth", root.Depth()))
	r.logger.Debug("exploded BOM",
		zap.String("product_id", productID),
		zap.String("quantity", quantity.String()),
		zap.Int("nodes", root.NodeCount()),
		zap.String("rolled_up_cost", root.RolledUpCost.String()))
	return root, nil
}

// explosionVisitor turns every visited node into an ExplosionNode
type explosionVisitor struct{}

func (explosionVisitor) VisitNode(ctx context.Context, node NodeContext) (bool, error) {
	phantom := node.Component != nil && node.Component.IsPhantom
	return node.Structure != nil && !phantom, nil
}

func (explosionVisitor) ProcessChildren(ctx context.Context, node NodeContext, children []*entities.ExplosionNode) (*entities.ExplosionNode, error) {
	n := &entities.ExplosionNode{
		Level:         node.Level,
		ComponentID:   node.Product.ID,
		Name:          node.Product.Name,
		UnitOfMeasure: node.Product.UnitOfMeasure,
		Quantity:      node.Quantity,
		TotalQuantity: node.Quantity,
		UnitCost:      node.Product.UnitCost,
		LeadTimeDays:  node.Product.LeadTimeDays,
		Children:      children,
	}
	if node.Component != nil {
		n.Quantity = node.Component.Quantity
		n.UnitCost = node.Component.EffectiveUnitCost()
		n.IsPhantom = node.Component.IsPhantom
	}
	if len(children) > 0 {
		n.BOMID = node.Structure.BOM.ID
	}
	n.ExtendedCost = n.UnitCost.Mul(n.TotalQuantity)

	if n.IsLeaf() {
		n.RolledUpCost = n.ExtendedCost
		n.CumulativeLeadTimeDays = n.LeadTimeDays
		return n, nil
	}

	n.RolledUpCost = decimal.Zero
	longest := 0
	for _, c := range children {
		n.RolledUpCost = n.RolledUpCost.Add(c.RolledUpCost)
		if c.CumulativeLeadTimeDays > longest {
			longest = c.CumulativeLeadTimeDays
		}
	}
	n.CumulativeLeadTimeDays = n.LeadTimeDays + longest
	return n, nil
}

// CalculateTotalCost returns the one-level material cost of a BOM:
// Σ unitCost × quantity × (1 + scrap/100) over its direct components.
// Sub-assemblies are costed at their own unit cost, not rolled up, and the
// BOM yield is not applied.
func (r *Resolver) CalculateTotalCost(ctx context.Context, bomID string) (total decimal.Decimal, err error) {
	ctx, span := r.tracer.Start(ctx, "bom.CalculateTotalCost", trace.WithAttributes(attribute.String("bom_id", bomID)))
	defer func() { tracing.End(span, err) }()

	tenantID := tenant.FromContext(ctx)
	if _, err := r.repos.BOMs().GetBOM(ctx, tenantID, bomID); err != nil {
		return decimal.Zero, err
	}
	components, err := r.repos.BOMs().GetComponents(ctx, bomID)
	if err != nil {
		return decimal.Zero, err
	}

	total = decimal.Zero
	for _, c := range components {
		total = total.Add(c.EffectiveUnitCost().Mul(c.Quantity).Mul(entities.ScrapFactor(c.ScrapPercentage)))
	}
	return total, nil
}
