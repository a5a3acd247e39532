package events

import (
	"github.com/shopspring/decimal"

	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/domain/entities"
)

const (
	LotReceivedEvent         = "lot.received"
	InventoryAdjustedEvent   = "inventory.adjusted"
	MaterialsConsumedEvent   = "materials.consumed"
	InventoryReservedEvent   = "inventory.reserved"
	ReservationReleasedEvent = "reservation.released"

	BOMCreatedEvent   = "bom.created"
	BOMActivatedEvent = "bom.activated"
	BOMObsoletedEvent = "bom.obsoleted"
)

type LotReceived struct {
	Lot         entities.InventoryLot         `json:"lot"`
	Transaction entities.InventoryTransaction `json:"transaction"`
}

type InventoryAdjusted struct {
	Lot         entities.InventoryLot         `json:"lot"`
	Transaction entities.InventoryTransaction `json:"transaction"`
}

// LedgerMovement summarizes the transactions written for one business reference
type LedgerMovement struct {
	ReferenceType string                          `json:"reference_type"`
	ReferenceID   string                          `json:"reference_id"`
	Transactions  []entities.InventoryTransaction `json:"transactions"`
	TotalCost     decimal.Decimal                 `json:"total_cost"`
}

type BOMChanged struct {
	BOM entities.BillOfMaterials `json:"bom"`
}

func lotStream(lotID string) string {
	return "lot-" + lotID
}

func referenceStream(referenceType, referenceID string) string {
	return "reference-" + referenceType + "-" + referenceID
}

func bomStream(productID string) string {
	return "bom-" + productID
}

func NewLotReceivedEvent(lot *entities.InventoryLot, tx *entities.InventoryTransaction) Event {
	return NewEvent(LotReceivedEvent, lot.TenantID, lotStream(lot.ID), LotReceived{
		Lot:         *lot,
		Transaction: *tx,
	})
}

func NewInventoryAdjustedEvent(lot *entities.InventoryLot, tx *entities.InventoryTransaction) Event {
	return NewEvent(InventoryAdjustedEvent, lot.TenantID, lotStream(lot.ID), InventoryAdjusted{
		Lot:         *lot,
		Transaction: *tx,
	})
}

// NewLedgerMovementEvent builds a consumed, reserved or released event for the
// transactions written under one reference.
func NewLedgerMovementEvent(eventType, tenantID string, ref entities.Reference, txs []*entities.InventoryTransaction) Event {
	movement := LedgerMovement{
		ReferenceType: ref.Type,
		ReferenceID:   ref.ID,
		Transactions:  make([]entities.InventoryTransaction, 0, len(txs)),
		TotalCost:     decimal.Zero,
	}
	for _, tx := range txs {
		movement.Transactions = append(movement.Transactions, *tx)
		movement.TotalCost = movement.TotalCost.Add(tx.TotalCost)
	}
	return NewEvent(eventType, tenantID, referenceStream(ref.Type, ref.ID), movement)
}

func NewBOMEvent(eventType string, bom *entities.BillOfMaterials) Event {
	return NewEvent(eventType, bom.TenantID, bomStream(bom.ProductID), BOMChanged{BOM: *bom})
}
