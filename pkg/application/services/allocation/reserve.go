package allocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/application/dto"
	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/domain/entities"
	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/domain/repositories"
	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/domain/tenant"
	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/infrastructure/events"
	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/infrastructure/tracing"
)

// ReserveLine earmarks Quantity of ProductID
type ReserveLine struct {
	ProductID     string
	Quantity      decimal.Decimal
	WarehouseCode string // empty = any warehouse
}

type ReserveRequest struct {
	Lines         []ReserveLine
	ReferenceType string
	ReferenceID   string
	Notes         string
}

// Reserve moves stock from available to reserved for every line. Each line
// is served by the oldest single lot able to cover it; lines are never split
// across lots. If any line cannot be served nothing is written and the error
// is an *entities.InsufficientInventoryError listing every such line.
func (e *Engine) Reserve(ctx context.Context, req ReserveRequest) (result *dto.ReservationResult, err error) {
	ctx, span := e.tracer.Start(ctx, "allocation.Reserve", trace.WithAttributes(
		attribute.String("reference_type", req.ReferenceType),
		attribute.String("reference_id", req.ReferenceID),
		attribute.Int("lines", len(req.Lines)),
	))
	defer func() { tracing.End(span, err) }()

	if err := validateReference(req.ReferenceType, req.ReferenceID); err != nil {
		return nil, err
	}
	productIDs := make([]string, 0, len(req.Lines))
	for i, line := range req.Lines {
		if line.ProductID == "" {
			return nil, fmt.Errorf("line %d: product cannot be empty", i+1)
		}
		if !line.Quantity.IsPositive() {
			return nil, fmt.Errorf("%w: line %d quantity must be positive, got %s", entities.ErrInvalidQuantity, i+1, line.Quantity)
		}
		productIDs = append(productIDs, line.ProductID)
	}

	tenantID := tenant.FromContext(ctx)
	unlock, err := e.lockProducts(ctx, tenantID, productIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to lock inventory: %w", err)
	}
	defer unlock()

	ref := entities.Reference{Type: req.ReferenceType, ID: req.ReferenceID}
	now := e.now()
	err = e.store.WithinTx(ctx, func(ctx context.Context, tx repositories.Repositories) error {
		result = &dto.ReservationResult{}
		var shortages []entities.Shortage
		for _, line := range req.Lines {
			reserved, t, short, err := reserveLine(ctx, tx.Inventory(), tenantID, line, ref, req.Notes, now)
			if err != nil {
				return err
			}
			if short != nil {
				shortages = append(shortages, *short)
				continue
			}
			result.Lines = append(result.Lines, reserved)
			result.Transactions = append(result.Transactions, t)
		}
		if len(shortages) > 0 {
			return &entities.InsufficientInventoryError{Shortages: shortages}
		}
		result.Success = true
		return nil
	})
	if err != nil {
		e.logger.Warn("reservation rolled back",
			zap.String("tenant_id", tenantID),
			zap.String("reference_id", req.ReferenceID),
			zap.Error(err))
		var short *entities.InsufficientInventoryError
		if errors.As(err, &short) {
			return &dto.ReservationResult{Success: false, Shortages: short.Shortages}, err
		}
		return nil, err
	}

	e.publish(ctx, events.NewLedgerMovementEvent(events.InventoryReservedEvent, tenantID, ref, result.Transactions))
	e.logger.Info("inventory reserved",
		zap.String("tenant_id", tenantID),
		zap.String("reference_type", req.ReferenceType),
		zap.String("reference_id", req.ReferenceID),
		zap.Int("lines", len(result.Lines)))
	return result, nil
}

// reserveLine picks the first FIFO lot able to hold the whole line. The
// shortage it reports is measured against the largest single lot.
func reserveLine(
	ctx context.Context,
	inventory repositories.InventoryRepository,
	tenantID string,
	line ReserveLine,
	ref entities.Reference,
	notes string,
	now time.Time,
) (dto.ReservedLine, *entities.InventoryTransaction, *entities.Shortage, error) {
	lots, err := inventory.FindLots(ctx, repositories.LotQuery{
		TenantID:      tenantID,
		ProductID:     line.ProductID,
		Statuses:      []entities.LotStatus{entities.LotAvailable},
		WarehouseCode: line.WarehouseCode,
		ForUpdate:     true,
	})
	if err != nil {
		return dto.ReservedLine{}, nil, nil, fmt.Errorf("failed to load lots of %s: %w", line.ProductID, err)
	}

	largest := decimal.Zero
	for _, lot := range lots {
		if lot.QuantityAvailable.LessThan(line.Quantity) {
			largest = decimal.Max(largest, lot.QuantityAvailable)
			continue
		}
		if err := lot.Reserve(line.Quantity, now); err != nil {
			return dto.ReservedLine{}, nil, nil, err
		}
		if err := inventory.UpdateLot(ctx, lot); err != nil {
			return dto.ReservedLine{}, nil, nil, fmt.Errorf("failed to update lot %s: %w", lot.LotNumber, err)
		}
		t := entities.NewLotTransaction(lot, entities.TxReservation, line.Quantity, ref, notes, now)
		if err := inventory.AppendTransaction(ctx, t); err != nil {
			return dto.ReservedLine{}, nil, nil, fmt.Errorf("failed to record reservation on lot %s: %w", lot.LotNumber, err)
		}
		return dto.ReservedLine{ProductID: line.ProductID, Lot: allocationOf(lot, line.Quantity)}, t, nil, nil
	}

	return dto.ReservedLine{}, nil, &entities.Shortage{
		ProductID:         line.ProductID,
		WarehouseCode:     line.WarehouseCode,
		RequiredQuantity:  line.Quantity,
		AvailableQuantity: largest,
		ShortageQuantity:  line.Quantity.Sub(largest),
	}, nil
}

func allocationOf(lot *entities.InventoryLot, qty decimal.Decimal) dto.LotAllocation {
	return dto.LotAllocation{
		LotID:         lot.ID,
		LotNumber:     lot.LotNumber,
		WarehouseCode: lot.WarehouseCode,
		Quantity:      qty,
		UnitCost:      lot.UnitCost,
		TotalCost:     qty.Mul(lot.UnitCost),
	}
}

func validateReference(referenceType, referenceID string) error {
	if referenceType == "" || referenceID == "" {
		return fmt.Errorf("%w: type and id are required", entities.ErrInvalidReference)
	}
	return nil
}
