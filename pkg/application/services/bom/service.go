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
	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/infrastructure/events"
	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/infrastructure/logging"
	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/infrastructure/tracing"
)

// ComponentInput describes one component line of a BOM write
type ComponentInput struct {
	ComponentID     string
	Quantity        decimal.Decimal
	ScrapPercentage decimal.Decimal
	Sequence        int // 0 assigns 10, 20, 30... in input order
	IsPhantom       bool
	IsOptional      bool
	Notes           string
}

type CreateBOMInput struct {
	ProductID           string
	Version             string
	YieldQuantity       decimal.Decimal
	ScrapPercentage     decimal.Decimal
	EffectiveDate       time.Time
	ExpiryDate          *time.Time
	IsDefault           bool
	AlternateComponents []string
	Notes               string
	Components          []ComponentInput
}

// Service manages the BOM lifecycle: draft, components, activation, obsolescence.
// Every write runs in one unit of work together with its cycle check.
type Service struct {
	store     repositories.Store
	guard     *CycleGuard
	publisher events.Publisher
	now       func() time.Time
	logger    *zap.Logger
	tracer    trace.Tracer
}

func NewService(store repositories.Store, publisher events.Publisher, logger *zap.Logger) *Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	now := func() time.Time { return time.Now().UTC() }
	return &Service{
		store:     store,
		guard:     NewCycleGuard(),
		publisher: publisher,
		now:       now,
		logger:    logging.OrNop(logger).Named("bom.service"),
		tracer:    tracing.Tracer("bom"),
	}
}

// CreateBOM creates a draft BOM with its components
func (s *Service) CreateBOM(ctx context.Context, input CreateBOMInput) (result *Structure, err error) {
	ctx, span := s.tracer.Start(ctx, "bom.CreateBOM", trace.WithAttributes(
		attribute.String("product_id", input.ProductID),
		attribute.String("version", input.Version),
	))
	defer func() { tracing.End(span, err) }()

	tenantID := tenant.FromContext(ctx)
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx repositories.Repositories) error {
		if _, err := tx.Products().GetProduct(ctx, tenantID, input.ProductID); err != nil {
			return err
		}

		bom, err := entities.NewBillOfMaterials(tenantID, input.ProductID, input.Version,
			input.YieldQuantity, input.ScrapPercentage, input.EffectiveDate)
		if err != nil {
			return err
		}
		if input.ExpiryDate != nil && !input.ExpiryDate.After(bom.EffectiveDate) {
			return fmt.Errorf("%w: expiry date must be after effective date", entities.ErrInvalidBOM)
		}
		bom.ExpiryDate = input.ExpiryDate
		bom.AlternateComponents = input.AlternateComponents
		bom.Notes = input.Notes

		// a draft is never selected, so the current default keeps its flag
		// until Activate applies this one
		bom.IsDefault = input.IsDefault
		if err := tx.BOMs().CreateBOM(ctx, bom); err != nil {
			return err
		}

		components, err := s.writeComponents(ctx, tx, tenantID, bom, input.Components)
		if err != nil {
			return err
		}
		result = &Structure{BOM: bom, Components: components}
		return nil
	})
	if err != nil {
		s.logger.Warn("BOM creation rejected",
			zap.String("product_id", input.ProductID),
			zap.String("version", input.Version),
			zap.Error(err))
		return nil, err
	}

	s.publish(ctx, events.NewBOMEvent(events.BOMCreatedEvent, result.BOM))
	s.logger.Info("BOM created",
		zap.String("bom_id", result.BOM.ID),
		zap.String("product_id", result.BOM.ProductID),
		zap.String("version", result.BOM.Version),
		zap.Int("components", len(result.Components)))
	return result, nil
}

// ReplaceComponents swaps the component list of a draft, pending or active BOM
func (s *Service) ReplaceComponents(ctx context.Context, bomID string, inputs []ComponentInput) (result *Structure, err error) {
	ctx, span := s.tracer.Start(ctx, "bom.ReplaceComponents", trace.WithAttributes(attribute.String("bom_id", bomID)))
	defer func() { tracing.End(span, err) }()

	tenantID := tenant.FromContext(ctx)
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx repositories.Repositories) error {
		bom, err := tx.BOMs().GetBOM(ctx, tenantID, bomID)
		if err != nil {
			return err
		}
		if bom.Status == entities.BOMObsolete {
			return fmt.Errorf("%w: BOM %s is obsolete", entities.ErrInvalidState, bomID)
		}
		if bom.Status == entities.BOMActive && len(inputs) == 0 {
			return fmt.Errorf("%w: active BOM %s needs at least one component", entities.ErrInvalidBOM, bomID)
		}

		components, err := s.writeComponents(ctx, tx, tenantID, bom, inputs)
		if err != nil {
			return err
		}
		bom.UpdatedAt = s.now()
		if err := tx.BOMs().UpdateBOM(ctx, bom); err != nil {
			return err
		}
		result = &Structure{BOM: bom, Components: components}
		return nil
	})
	if err != nil {
		s.logger.Warn("component replacement rejected", zap.String("bom_id", bomID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("BOM components replaced", zap.String("bom_id", bomID), zap.Int("components", len(result.Components)))
	return result, nil
}

// writeComponents validates inputs against the product master and the
// active graph, then stores them as the BOM's component list.
func (s *Service) writeComponents(
	ctx context.Context,
	tx repositories.Repositories,
	tenantID string,
	bom *entities.BillOfMaterials,
	inputs []ComponentInput,
) ([]*entities.BOMComponent, error) {
	seen := make(map[string]bool, len(inputs))
	ids := make([]string, 0, len(inputs))
	components := make([]*entities.BOMComponent, 0, len(inputs))

	for i, in := range inputs {
		if seen[in.ComponentID] {
			return nil, fmt.Errorf("%w: component %s listed twice", entities.ErrInvalidBOM, in.ComponentID)
		}
		seen[in.ComponentID] = true

		product, err := tx.Products().GetProduct(ctx, tenantID, in.ComponentID)
		if err != nil {
			return nil, fmt.Errorf("component %s: %w", in.ComponentID, err)
		}

		sequence := in.Sequence
		if sequence == 0 {
			sequence = (i + 1) * 10
		}
		c, err := entities.NewBOMComponent(bom.ID, in.ComponentID, in.Quantity, in.ScrapPercentage, sequence)
		if err != nil {
			return nil, err
		}
		c.IsPhantom = in.IsPhantom
		c.IsRequired = !in.IsOptional
		c.Notes = in.Notes
		c.UnitCost = product.UnitCost
		c.Product = product

		ids = append(ids, in.ComponentID)
		components = append(components, c)
	}

	if err := s.guard.Validate(ctx, tx, tenantID, bom.ProductID, ids); err != nil {
		return nil, err
	}
	if err := tx.BOMs().ReplaceComponents(ctx, bom.ID, components); err != nil {
		return nil, err
	}
	return components, nil
}

// Activate approves a BOM. makeDefault, or a default requested when the draft
// was created, makes it the product's default, clearing the flag on its
// siblings in the same unit of work.
func (s *Service) Activate(ctx context.Context, bomID, approver string, makeDefault bool) (result *entities.BillOfMaterials, err error) {
	ctx, span := s.tracer.Start(ctx, "bom.Activate", trace.WithAttributes(attribute.String("bom_id", bomID)))
	defer func() { tracing.End(span, err) }()

	tenantID := tenant.FromContext(ctx)
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx repositories.Repositories) error {
		bom, err := tx.BOMs().GetBOM(ctx, tenantID, bomID)
		if err != nil {
			return err
		}
		components, err := tx.BOMs().GetComponents(ctx, bomID)
		if err != nil {
			return err
		}

		ids := make([]string, 0, len(components))
		for _, c := range components {
			ids = append(ids, c.ComponentID)
		}
		if err := s.guard.Validate(ctx, tx, tenantID, bom.ProductID, ids); err != nil {
			return err
		}

		if err := bom.Activate(approver, len(components), s.now()); err != nil {
			return err
		}
		if makeDefault || bom.IsDefault {
			if err := tx.BOMs().ClearDefault(ctx, tenantID, bom.ProductID, bom.ID); err != nil {
				return err
			}
			bom.IsDefault = true
		}
		if err := tx.BOMs().UpdateBOM(ctx, bom); err != nil {
			return err
		}
		result = bom
		return nil
	})
	if err != nil {
		s.logger.Warn("BOM activation rejected", zap.String("bom_id", bomID), zap.Error(err))
		return nil, err
	}

	s.publish(ctx, events.NewBOMEvent(events.BOMActivatedEvent, result))
	s.logger.Info("BOM activated",
		zap.String("bom_id", result.ID),
		zap.String("product_id", result.ProductID),
		zap.String("approved_by", approver),
		zap.Bool("default", result.IsDefault))
	return result, nil
}

// MarkObsolete retires a BOM. It stays readable but is never selected again.
func (s *Service) MarkObsolete(ctx context.Context, bomID string) (result *entities.BillOfMaterials, err error) {
	ctx, span := s.tracer.Start(ctx, "bom.MarkObsolete", trace.WithAttributes(attribute.String("bom_id", bomID)))
	defer func() { tracing.End(span, err) }()

	tenantID := tenant.FromContext(ctx)
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx repositories.Repositories) error {
		bom, err := tx.BOMs().GetBOM(ctx, tenantID, bomID)
		if err != nil {
			return err
		}
		if err := bom.MarkObsolete(s.now()); err != nil {
			return err
		}
		if err := tx.BOMs().UpdateBOM(ctx, bom); err != nil {
			return err
		}
		result = bom
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.NewBOMEvent(events.BOMObsoletedEvent, result))
	s.logger.Info("BOM marked obsolete", zap.String("bom_id", bomID))
	return result, nil
}

// GetBOM returns a BOM with its components
func (s *Service) GetBOM(ctx context.Context, bomID string) (*Structure, error) {
	tenantID := tenant.FromContext(ctx)
	bom, err := s.store.BOMs().GetBOM(ctx, tenantID, bomID)
	if err != nil {
		return nil, err
	}
	components, err := s.store.BOMs().GetComponents(ctx, bomID)
	if err != nil {
		return nil, err
	}
	return &Structure{BOM: bom, Components: components}, nil
}

// ListBOMs returns every BOM of a product, or of the tenant when productID is empty
func (s *Service) ListBOMs(ctx context.Context, productID string) ([]*entities.BillOfMaterials, error) {
	return s.store.BOMs().ListBOMs(ctx, tenant.FromContext(ctx), productID)
}

// publish runs after commit. A failed publish is logged; the write stands.
func (s *Service) publish(ctx context.Context, event events.Event) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Error("failed to publish event", zap.String("event_type", event.Type()), zap.Error(err))
	}
}
