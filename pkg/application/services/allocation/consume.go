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

// ConsumeRequest issues stock for previously calculated requirement trees
type ConsumeRequest struct {
	Requirements  []*entities.MaterialRequirement
	ReferenceType string
	ReferenceID   string
	Notes         string

	// WarehouseCode restricts the lots drawn from. Empty falls back to each
	// node's own WarehouseCode, then to every warehouse.
	WarehouseCode string
}

// Consume issues every node of the requirement trees FIFO from available lots.
//
// Nothing is written when any node carries a shortage: the result lists all
// of them and the error is an *entities.InsufficientMaterialsError. The same
// error, with a rollback of every write, is returned when live stock turns out
// lower than the preview said.
func (e *Engine) Consume(ctx context.Context, req ConsumeRequest) (result *dto.ConsumptionResult, err error) {
	ctx, span := e.tracer.Start(ctx, "allocation.Consume", trace.WithAttributes(
		attribute.String("reference_type", req.ReferenceType),
		attribute.String("reference_id", req.ReferenceID),
	))
	defer func() { tracing.End(span, err) }()

	if err := validateReference(req.ReferenceType, req.ReferenceID); err != nil {
		return nil, err
	}

	var nodes []*entities.MaterialRequirement
	for _, r := range req.Requirements {
		nodes = append(nodes, r.Flatten()...)
	}

	var shortages []entities.Shortage
	for _, n := range nodes {
		if n.ShortageQuantity.IsPositive() {
			shortages = append(shortages, n.AsShortage())
		}
	}
	if len(shortages) > 0 {
		e.logger.Info("consumption rejected on preview shortages",
			zap.String("reference_id", req.ReferenceID),
			zap.Int("shortages", len(shortages)))
		return &dto.ConsumptionResult{Success: false, Shortages: shortages, TotalCost: decimal.Zero},
			&entities.InsufficientMaterialsError{Shortages: shortages}
	}

	tenantID := tenant.FromContext(ctx)
	productIDs := make([]string, 0, len(nodes))
	for _, n := range nodes {
		productIDs = append(productIDs, n.ProductID)
	}
	unlock, err := e.lockProducts(ctx, tenantID, productIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to lock inventory: %w", err)
	}
	defer unlock()

	ref := entities.Reference{Type: req.ReferenceType, ID: req.ReferenceID}
	now := e.now()
	err = e.store.WithinTx(ctx, func(ctx context.Context, tx repositories.Repositories) error {
		result = &dto.ConsumptionResult{TotalCost: decimal.Zero}
		var stale []entities.Shortage
		for _, n := range nodes {
			if !n.RequiredQuantity.IsPositive() {
				continue
			}
			warehouse := req.WarehouseCode
			if warehouse == "" {
				warehouse = n.WarehouseCode
			}
			item, txs, short, err := consumeFIFO(ctx, tx.Inventory(), tenantID, n.ProductID, warehouse, n.RequiredQuantity, ref, req.Notes, now)
			if err != nil {
				return err
			}
			if short != nil {
				stale = append(stale, *short)
				continue
			}
			result.ConsumedItems = append(result.ConsumedItems, item)
			result.Transactions = append(result.Transactions, txs...)
			result.TotalCost = result.TotalCost.Add(item.TotalCost)
		}
		if len(stale) > 0 {
			return &entities.InsufficientMaterialsError{Shortages: stale}
		}
		result.Success = true
		return nil
	})
	if err != nil {
		e.logger.Warn("consumption rolled back",
			zap.String("tenant_id", tenantID),
			zap.String("reference_id", req.ReferenceID),
			zap.Error(err))
		var short *entities.InsufficientMaterialsError
		if errors.As(err, &short) {
			return &dto.ConsumptionResult{Success: false, Shortages: short.Shortages, TotalCost: decimal.Zero}, err
		}
		return nil, err
	}

	span.SetAttributes(attribute.Int("transactions", len(result.Transactions)))
	if len(result.Transactions) > 0 {
		e.publish(ctx, events.NewLedgerMovementEvent(events.MaterialsConsumedEvent, tenantID, ref, result.Transactions))
	}
	e.logger.Info("materials consumed",
		zap.String("tenant_id", tenantID),
		zap.String("reference_type", req.ReferenceType),
		zap.String("reference_id", req.ReferenceID),
		zap.Int("items", len(result.ConsumedItems)),
		zap.String("total_cost", result.TotalCost.String()))
	return result, nil
}

// consumeFIFO draws qty of productID from the oldest available lots. When
// the lots cannot cover qty it returns the shortage and leaves the caller to
// roll back whatever was already drawn.
func consumeFIFO(
	ctx context.Context,
	inventory repositories.InventoryRepository,
	tenantID, productID, warehouseCode string,
	qty decimal.Decimal,
	ref entities.Reference,
	notes string,
	now time.Time,
) (dto.ConsumedItem, []*entities.InventoryTransaction, *entities.Shortage, error) {
	item := dto.ConsumedItem{ProductID: productID, Quantity: qty, TotalCost: decimal.Zero}

	lots, err := inventory.FindLots(ctx, repositories.LotQuery{
		TenantID:      tenantID,
		ProductID:     productID,
		Statuses:      []entities.LotStatus{entities.LotAvailable},
		WarehouseCode: warehouseCode,
		ForUpdate:     true,
	})
	if err != nil {
		return item, nil, nil, fmt.Errorf("failed to load lots of %s: %w", productID, err)
	}

	var txs []*entities.InventoryTransaction
	remaining := qty
	for _, lot := range lots {
		if !remaining.IsPositive() {
			break
		}
		if !lot.QuantityAvailable.IsPositive() {
			continue
		}
		take := decimal.Min(lot.QuantityAvailable, remaining)
		if err := lot.Consume(take, now); err != nil {
			return item, nil, nil, err
		}
		if err := inventory.UpdateLot(ctx, lot); err != nil {
			return item, nil, nil, fmt.Errorf("failed to update lot %s: %w", lot.LotNumber, err)
		}
		t := entities.NewLotTransaction(lot, entities.TxIssue, take, ref, notes, now)
		if err := inventory.AppendTransaction(ctx, t); err != nil {
			return item, nil, nil, fmt.Errorf("failed to record issue from lot %s: %w", lot.LotNumber, err)
		}
		txs = append(txs, t)

		cost := take.Mul(lot.UnitCost)
		item.TotalCost = item.TotalCost.Add(cost)
		item.Lots = append(item.Lots, dto.LotAllocation{
			LotID:         lot.ID,
			LotNumber:     lot.LotNumber,
			WarehouseCode: lot.WarehouseCode,
			Quantity:      take,
			UnitCost:      lot.UnitCost,
			TotalCost:     cost,
		})
		remaining = remaining.Sub(take)
	}

	if remaining.IsPositive() {
		return item, nil, &entities.Shortage{
			ProductID:         productID,
			WarehouseCode:     warehouseCode,
			RequiredQuantity:  qty,
			AvailableQuantity: qty.Sub(remaining),
			ShortageQuantity:  remaining,
		}, nil
	}
	return item, txs, nil, nil
}
