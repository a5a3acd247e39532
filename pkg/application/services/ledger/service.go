// Package ledger records stock movements that do not come from a build:
// receipts and manual adjustments, plus balance and ledger queries.
package ledger

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
	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/infrastructure/locking"
	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/infrastructure/logging"
	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/infrastructure/tracing"
)

// Locker is satisfied by the lockers in the locking package
type Locker interface {
	Acquire(ctx context.Context, keys []string) (release func(), err error)
}

type ReceiptInput struct {
	ProductID     string
	WarehouseCode string
	LocationCode  string
	LotNumber     string
	Quantity      decimal.Decimal
	UnitCost      decimal.Decimal // zero takes the product's standard cost
	ReceivedDate  time.Time       // zero means now
	ExpiryDate    *time.Time
	ReferenceType string
	ReferenceID   string
	Notes         string
}

type AdjustInput struct {
	LotID string

	// Delta is signed: positive adds stock, negative removes it
	Delta decimal.Decimal

	// Type is adjustment, cycle_count or scrap. Scrap only removes stock.
	Type  entities.TransactionType
	Notes string
}

// TransactionFilter selects ledger entries of the caller's tenant
type TransactionFilter struct {
	ProductID     string
	LotID         string
	Types         []entities.TransactionType
	ReferenceType string
	ReferenceID   string
	WarehouseCode string
	From          time.Time
	To            time.Time
	Limit         int
}

type Service struct {
	store     repositories.Store
	locker    Locker
	publisher events.Publisher
	now       func() time.Time
	logger    *zap.Logger
	tracer    trace.Tracer
}

func NewService(store repositories.Store, locker Locker, publisher events.Publisher, logger *zap.Logger) *Service {
	if locker == nil {
		locker = locking.NewMemoryLocker()
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Service{
		store:     store,
		locker:    locker,
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    logging.OrNop(logger).Named("ledger"),
		tracer:    tracing.Tracer("ledger"),
	}
}

// Receive creates a lot holding the received quantity and its receipt entry
func (s *Service) Receive(ctx context.Context, input ReceiptInput) (lot *entities.InventoryLot, err error) {
	ctx, span := s.tracer.Start(ctx, "ledger.Receive", trace.WithAttributes(
		attribute.String("product_id", input.ProductID),
		attribute.String("lot_number", input.LotNumber),
	))
	defer func() { tracing.End(span, err) }()

	if !input.Quantity.IsPositive() {
		return nil, fmt.Errorf("%w: receipt quantity must be positive, got %s", entities.ErrInvalidQuantity, input.Quantity)
	}

	tenantID := tenant.FromContext(ctx)
	unlock, err := s.locker.Acquire(ctx, []string{locking.ProductKey(tenantID, input.ProductID)})
	if err != nil {
		return nil, fmt.Errorf("failed to lock inventory: %w", err)
	}
	defer unlock()

	now := s.now()
	var receipt *entities.InventoryTransaction
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx repositories.Repositories) error {
		product, err := tx.Products().GetProduct(ctx, tenantID, input.ProductID)
		if err != nil {
			return err
		}
		unitCost := input.UnitCost
		if unitCost.IsZero() {
			unitCost = product.UnitCost
		}
		received := input.ReceivedDate
		if received.IsZero() {
			received = now
		}

		lot, err = entities.NewInventoryLot(tenantID, product.ID, input.WarehouseCode, input.LocationCode,
			input.LotNumber, input.Quantity, unitCost, received.UTC())
		if err != nil {
			return err
		}
		lot.ExpiryDate = input.ExpiryDate
		if err := tx.Inventory().CreateLot(ctx, lot); err != nil {
			return fmt.Errorf("failed to create lot %s: %w", lot.LotNumber, err)
		}

		ref := entities.Reference{Type: input.ReferenceType, ID: input.ReferenceID}
		receipt = entities.NewLotTransaction(lot, entities.TxReceipt, input.Quantity, ref, input.Notes, now)
		return tx.Inventory().AppendTransaction(ctx, receipt)
	})
	if err != nil {
		s.logger.Warn("receipt rejected",
			zap.String("product_id", input.ProductID),
			zap.String("lot_number", input.LotNumber),
			zap.Error(err))
		return nil, err
	}

	s.publish(ctx, events.NewLotReceivedEvent(lot, receipt))
	s.logger.Info("lot received",
		zap.String("tenant_id", tenantID),
		zap.String("lot_id", lot.ID),
		zap.String("lot_number", lot.LotNumber),
		zap.String("quantity", input.Quantity.String()))
	return lot, nil
}

// Adjust corrects the stock of one lot. Reserved stock is never touched.
func (s *Service) Adjust(ctx context.Context, input AdjustInput) (lot *entities.InventoryLot, err error) {
	ctx, span := s.tracer.Start(ctx, "ledger.Adjust", trace.WithAttributes(
		attribute.String("lot_id", input.LotID),
		attribute.String("delta", input.Delta.String()),
	))
	defer func() { tracing.End(span, err) }()

	switch input.Type {
	case entities.TxAdjustment, entities.TxCycleCount:
	case entities.TxScrap:
		if !input.Delta.IsNegative() {
			return nil, fmt.Errorf("%w: scrap must remove stock, got %s", entities.ErrInvalidQuantity, input.Delta)
		}
	default:
		return nil, fmt.Errorf("%w: %q is not an adjustment type", entities.ErrInvalidState, input.Type)
	}

	tenantID := tenant.FromContext(ctx)
	current, err := s.store.Inventory().GetLot(ctx, tenantID, input.LotID, false)
	if err != nil {
		return nil, err
	}
	unlock, err := s.locker.Acquire(ctx, []string{locking.ProductKey(tenantID, current.ProductID)})
	if err != nil {
		return nil, fmt.Errorf("failed to lock inventory: %w", err)
	}
	defer unlock()

	now := s.now()
	var entry *entities.InventoryTransaction
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx repositories.Repositories) error {
		lot, err = tx.Inventory().GetLot(ctx, tenantID, input.LotID, true)
		if err != nil {
			return err
		}
		if err := lot.Adjust(input.Delta, now); err != nil {
			return err
		}
		if err := tx.Inventory().UpdateLot(ctx, lot); err != nil {
			return fmt.Errorf("failed to update lot %s: %w", lot.LotNumber, err)
		}
		entry = entities.NewLotTransaction(lot, input.Type, input.Delta, entities.Reference{}, input.Notes, now)
		return tx.Inventory().AppendTransaction(ctx, entry)
	})
	if err != nil {
		s.logger.Warn("adjustment rejected", zap.String("lot_id", input.LotID), zap.Error(err))
		return nil, err
	}

	s.publish(ctx, events.NewInventoryAdjustedEvent(lot, entry))
	s.logger.Info("lot adjusted",
		zap.String("lot_id", lot.ID),
		zap.String("type", string(input.Type)),
		zap.String("delta", input.Delta.String()),
		zap.String("available", lot.QuantityAvailable.String()))
	return lot, nil
}

// Availability sums the available-status lots of productID. An empty
// warehouseCode covers every warehouse.
func (s *Service) Availability(ctx context.Context, productID, warehouseCode string) (entities.Balance, error) {
	lots, err := s.store.Inventory().FindLots(ctx, repositories.LotQuery{
		TenantID:      tenant.FromContext(ctx),
		ProductID:     productID,
		Statuses:      []entities.LotStatus{entities.LotAvailable},
		WarehouseCode: warehouseCode,
	})
	if err != nil {
		return entities.Balance{}, fmt.Errorf("failed to load lots of %s: %w", productID, err)
	}
	return entities.SumLots(productID, warehouseCode, lots), nil
}

// Lots lists the lots of productID in FIFO order, whatever their status
func (s *Service) Lots(ctx context.Context, productID, warehouseCode string) ([]*entities.InventoryLot, error) {
	return s.store.Inventory().FindLots(ctx, repositories.LotQuery{
		TenantID:      tenant.FromContext(ctx),
		ProductID:     productID,
		WarehouseCode: warehouseCode,
	})
}

// Transactions queries the ledger, newest first
func (s *Service) Transactions(ctx context.Context, f TransactionFilter) ([]*entities.InventoryTransaction, error) {
	return s.store.Inventory().FindTransactions(ctx, repositories.TransactionQuery{
		TenantID:      tenant.FromContext(ctx),
		ProductID:     f.ProductID,
		LotID:         f.LotID,
		Types:         f.Types,
		ReferenceType: f.ReferenceType,
		ReferenceID:   f.ReferenceID,
		WarehouseCode: f.WarehouseCode,
		From:          f.From,
		To:            f.To,
		Limit:         f.Limit,
	})
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Error("failed to publish event", zap.String("event_type", event.Type()), zap.Error(err))
	}
}
