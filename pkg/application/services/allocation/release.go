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

type ReleaseRequest struct {
	ReferenceType string
	ReferenceID   string
	Notes         string
}

// outstanding is what is still reserved on one lot under a reference
type outstanding struct {
	first    *entities.InventoryTransaction
	quantity decimal.Decimal
}

// Release returns every outstanding reservation of a reference to available
// stock. Quantities already released under the reference are netted out, so
// a second call finds nothing left and writes nothing.
func (e *Engine) Release(ctx context.Context, req ReleaseRequest) (result *dto.ReleaseResult, err error) {
	ctx, span := e.tracer.Start(ctx, "allocation.Release", trace.WithAttributes(
		attribute.String("reference_type", req.ReferenceType),
		attribute.String("reference_id", req.ReferenceID),
	))
	defer func() { tracing.End(span, err) }()

	if err := validateReference(req.ReferenceType, req.ReferenceID); err != nil {
		return nil, err
	}
	tenantID := tenant.FromContext(ctx)

	// a first unlocked read only decides which products to lock
	preview, err := outstandingReservations(ctx, e.store.Inventory(), tenantID, req.ReferenceType, req.ReferenceID)
	if err != nil {
		return nil, err
	}
	if len(preview) == 0 {
		return &dto.ReleaseResult{}, nil
	}
	productIDs := make([]string, 0, len(preview))
	for _, o := range preview {
		productIDs = append(productIDs, o.first.ProductID)
	}
	unlock, err := e.lockProducts(ctx, tenantID, productIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to lock inventory: %w", err)
	}
	defer unlock()

	ref := entities.Reference{Type: req.ReferenceType, ID: req.ReferenceID}
	now := e.now()
	err = e.store.WithinTx(ctx, func(ctx context.Context, tx repositories.Repositories) error {
		result = &dto.ReleaseResult{}
		pending, err := outstandingReservations(ctx, tx.Inventory(), tenantID, req.ReferenceType, req.ReferenceID)
		if err != nil {
			return err
		}
		for _, o := range pending {
			line, t, err := e.releaseOne(ctx, tx.Inventory(), tenantID, o, ref, req.Notes, now)
			if err != nil {
				return err
			}
			if t == nil {
				continue
			}
			result.Lines = append(result.Lines, line)
			result.Transactions = append(result.Transactions, t)
		}
		return nil
	})
	if err != nil {
		e.logger.Warn("release rolled back",
			zap.String("tenant_id", tenantID),
			zap.String("reference_id", req.ReferenceID),
			zap.Error(err))
		return nil, err
	}

	if len(result.Transactions) > 0 {
		e.publish(ctx, events.NewLedgerMovementEvent(events.ReservationReleasedEvent, tenantID, ref, result.Transactions))
	}
	e.logger.Info("reservations released",
		zap.String("tenant_id", tenantID),
		zap.String("reference_type", req.ReferenceType),
		zap.String("reference_id", req.ReferenceID),
		zap.Int("lines", len(result.Lines)))
	return result, nil
}

// outstandingReservations nets reservation and release entries of a
// reference per lot, in the order the lots were first reserved.
func outstandingReservations(
	ctx context.Context,
	inventory repositories.InventoryRepository,
	tenantID, referenceType, referenceID string,
) ([]*outstanding, error) {
	txs, err := inventory.FindTransactions(ctx, repositories.TransactionQuery{
		TenantID:      tenantID,
		Types:         []entities.TransactionType{entities.TxReservation, entities.TxRelease},
		ReferenceType: referenceType,
		ReferenceID:   referenceID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load reservations of %s %s: %w", referenceType, referenceID, err)
	}

	byLot := make(map[string]*outstanding)
	var order []*outstanding
	// entries come newest first
	for i := len(txs) - 1; i >= 0; i-- {
		t := txs[i]
		o, ok := byLot[t.LotID]
		if !ok {
			o = &outstanding{quantity: decimal.Zero}
			byLot[t.LotID] = o
			order = append(order, o)
		}
		switch t.Type {
		case entities.TxReservation:
			if o.first == nil {
				o.first = t
			}
			o.quantity = o.quantity.Add(t.Quantity)
		case entities.TxRelease:
			o.quantity = o.quantity.Sub(t.Quantity)
		}
	}

	out := order[:0]
	for _, o := range order {
		if o.first != nil && o.quantity.IsPositive() {
			out = append(out, o)
		}
	}
	return out, nil
}

// releaseOne reverses one outstanding reservation. The lot is found by ID,
// or by product, warehouse and location when the ID no longer resolves. A
// lot holding less reserved stock than recorded releases what it holds.
func (e *Engine) releaseOne(
	ctx context.Context,
	inventory repositories.InventoryRepository,
	tenantID string,
	o *outstanding,
	ref entities.Reference,
	notes string,
	now time.Time,
) (dto.ReleasedLine, *entities.InventoryTransaction, error) {
	lot, err := inventory.GetLot(ctx, tenantID, o.first.LotID, true)
	if errors.Is(err, entities.ErrLotNotFound) {
		lot, err = findReservedLot(ctx, inventory, tenantID, o.first)
	}
	if err != nil {
		return dto.ReleasedLine{}, nil, err
	}
	if lot == nil || !lot.QuantityReserved.IsPositive() {
		e.logger.Warn("no reserved stock left to release",
			zap.String("lot_id", o.first.LotID),
			zap.String("reference_id", ref.ID))
		return dto.ReleasedLine{}, nil, nil
	}

	qty := decimal.Min(o.quantity, lot.QuantityReserved)
	if err := lot.Release(qty, now); err != nil {
		return dto.ReleasedLine{}, nil, err
	}
	if err := inventory.UpdateLot(ctx, lot); err != nil {
		return dto.ReleasedLine{}, nil, fmt.Errorf("failed to update lot %s: %w", lot.LotNumber, err)
	}
	t := entities.NewLotTransaction(lot, entities.TxRelease, qty, ref, notes, now)
	if err := inventory.AppendTransaction(ctx, t); err != nil {
		return dto.ReleasedLine{}, nil, fmt.Errorf("failed to record release on lot %s: %w", lot.LotNumber, err)
	}
	return dto.ReleasedLine{ProductID: lot.ProductID, Lot: allocationOf(lot, qty)}, t, nil
}

func findReservedLot(ctx context.Context, inventory repositories.InventoryRepository, tenantID string, reservation *entities.InventoryTransaction) (*entities.InventoryLot, error) {
	lots, err := inventory.FindLots(ctx, repositories.LotQuery{
		TenantID:      tenantID,
		ProductID:     reservation.ProductID,
		WarehouseCode: reservation.WarehouseCode,
		LocationCode:  reservation.FromLocation,
		ForUpdate:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to locate lot for reservation %s: %w", reservation.ID, err)
	}
	for _, lot := range lots {
		if lot.QuantityReserved.IsPositive() {
			return lot, nil
		}
	}
	return nil, nil
}
