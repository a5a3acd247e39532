package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType identifies the kind of ledger entry
type TransactionType string

const (
	TxReceipt     TransactionType = "receipt"
	TxIssue       TransactionType = "issue"
	TxTransfer    TransactionType = "transfer"
	TxAdjustment  TransactionType = "adjustment"
	TxReturn      TransactionType = "return"
	TxScrap       TransactionType = "scrap"
	TxCycleCount  TransactionType = "cycle_count"
	TxReservation TransactionType = "reservation"
	TxRelease     TransactionType = "release"
)

// InventoryTransaction is an immutable ledger entry. Rows are only ever appended.
type InventoryTransaction struct {
	ID              string          `db:"id" json:"id"`
	TenantID        string          `db:"tenant_id" json:"tenant_id"`
	Type            TransactionType `db:"type" json:"type"`
	ProductID       string          `db:"product_id" json:"product_id"`
	LotID           string          `db:"lot_id" json:"lot_id"`
	LotNumber       string          `db:"lot_number" json:"lot_number"`
	WarehouseCode   string          `db:"warehouse_code" json:"warehouse_code"`
	Quantity        decimal.Decimal `db:"quantity" json:"quantity"`
	UnitCost        decimal.Decimal `db:"unit_cost" json:"unit_cost"`
	TotalCost       decimal.Decimal `db:"total_cost" json:"total_cost"`
	ReferenceType   string          `db:"reference_type" json:"reference_type,omitempty"`
	ReferenceID     string          `db:"reference_id" json:"reference_id,omitempty"`
	FromLocation    string          `db:"from_location" json:"from_location,omitempty"`
	ToLocation      string          `db:"to_location" json:"to_location,omitempty"`
	Notes           string          `db:"notes" json:"notes,omitempty"`
	TransactionDate time.Time       `db:"transaction_date" json:"transaction_date"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
}

// Reference identifies the business document a ledger entry belongs to
type Reference struct {
	Type string
	ID   string
}

// NewLotTransaction builds a ledger entry for a movement of qty against lot.
// Locations are derived from the movement direction.
func NewLotTransaction(
	lot *InventoryLot,
	txType TransactionType,
	qty decimal.Decimal,
	ref Reference,
	notes string,
	at time.Time,
) *InventoryTransaction {
	tx := &InventoryTransaction{
		ID:              uuid.NewString(),
		TenantID:        lot.TenantID,
		Type:            txType,
		ProductID:       lot.ProductID,
		LotID:           lot.ID,
		LotNumber:       lot.LotNumber,
		WarehouseCode:   lot.WarehouseCode,
		Quantity:        qty,
		UnitCost:        lot.UnitCost,
		TotalCost:       qty.Mul(lot.UnitCost),
		ReferenceType:   ref.Type,
		ReferenceID:     ref.ID,
		Notes:           notes,
		TransactionDate: at,
		CreatedAt:       at,
	}
	switch txType {
	case TxReceipt, TxReturn:
		tx.ToLocation = lot.LocationCode
	default:
		tx.FromLocation = lot.LocationCode
	}
	return tx
}
