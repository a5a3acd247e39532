package entities

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LotStatus represents the status of an inventory lot
type LotStatus string

const (
	LotAvailable  LotStatus = "available"
	LotQuarantine LotStatus = "quarantine"
	LotDepleted   LotStatus = "depleted"
	LotExpired    LotStatus = "expired"
)

// InventoryLot represents lot-controlled inventory.
// QuantityOnHand == QuantityAvailable + QuantityReserved at all times.
type InventoryLot struct {
	ID                string          `db:"id" json:"id"`
	TenantID          string          `db:"tenant_id" json:"tenant_id"`
	ProductID         string          `db:"product_id" json:"product_id"`
	WarehouseCode     string          `db:"warehouse_code" json:"warehouse_code"`
	LocationCode      string          `db:"location_code" json:"location_code"`
	QuantityOnHand    decimal.Decimal `db:"quantity_on_hand" json:"quantity_on_hand"`
	QuantityAvailable decimal.Decimal `db:"quantity_available" json:"quantity_available"`
	QuantityReserved  decimal.Decimal `db:"quantity_reserved" json:"quantity_reserved"`
	UnitCost          decimal.Decimal `db:"unit_cost" json:"unit_cost"`
	LotNumber         string          `db:"lot_number" json:"lot_number"`
	ReceivedDate      time.Time       `db:"received_date" json:"received_date"`
	ExpiryDate        *time.Time      `db:"expiry_date" json:"expiry_date,omitempty"`
	Status            LotStatus       `db:"status" json:"status"`
	Version           int64           `db:"version" json:"version"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updated_at"`
}

// NewInventoryLot creates a validated lot holding quantity units, all available
func NewInventoryLot(
	tenantID, productID, warehouseCode, locationCode, lotNumber string,
	quantity, unitCost decimal.Decimal,
	receivedDate time.Time,
) (*InventoryLot, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenant cannot be empty")
	}
	if productID == "" {
		return nil, fmt.Errorf("product cannot be empty")
	}
	if warehouseCode == "" {
		return nil, fmt.Errorf("warehouse cannot be empty")
	}
	if lotNumber == "" {
		return nil, fmt.Errorf("lot number cannot be empty")
	}
	if quantity.IsNegative() {
		return nil, fmt.Errorf("%w: quantity cannot be negative, got %s", ErrInvalidQuantity, quantity)
	}
	if unitCost.IsNegative() {
		return nil, fmt.Errorf("unit cost cannot be negative, got %s", unitCost)
	}

	now := time.Now().UTC()
	if receivedDate.IsZero() {
		receivedDate = now
	}
	return &InventoryLot{
		ID:                uuid.NewString(),
		TenantID:          tenantID,
		ProductID:         productID,
		WarehouseCode:     warehouseCode,
		LocationCode:      locationCode,
		QuantityOnHand:    quantity,
		QuantityAvailable: quantity,
		QuantityReserved:  decimal.Zero,
		UnitCost:          unitCost,
		LotNumber:         lotNumber,
		ReceivedDate:      receivedDate,
		Status:            LotAvailable,
		Version:           1,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// Validate checks the quantity invariants of the lot
func (l *InventoryLot) Validate() error {
	if l.QuantityAvailable.IsNegative() || l.QuantityReserved.IsNegative() || l.QuantityOnHand.IsNegative() {
		return fmt.Errorf("%w: lot %s has negative quantities (on hand %s, available %s, reserved %s)",
			ErrInvalidQuantity, l.ID, l.QuantityOnHand, l.QuantityAvailable, l.QuantityReserved)
	}
	if !l.QuantityOnHand.Equal(l.QuantityAvailable.Add(l.QuantityReserved)) {
		return fmt.Errorf("%w: lot %s on hand %s != available %s + reserved %s",
			ErrInvalidQuantity, l.ID, l.QuantityOnHand, l.QuantityAvailable, l.QuantityReserved)
	}
	return nil
}

// Consume removes qty from available and on-hand stock
func (l *InventoryLot) Consume(qty decimal.Decimal, at time.Time) error {
	if !qty.IsPositive() {
		return fmt.Errorf("%w: consume quantity must be positive, got %s", ErrInvalidQuantity, qty)
	}
	if qty.GreaterThan(l.QuantityAvailable) {
		return fmt.Errorf("%w: lot %s has %s available, %s requested",
			ErrInsufficientInventory, l.ID, l.QuantityAvailable, qty)
	}
	l.QuantityAvailable = l.QuantityAvailable.Sub(qty)
	l.QuantityOnHand = l.QuantityOnHand.Sub(qty)
	l.UpdatedAt = at
	return l.Validate()
}

// Reserve moves qty from available to reserved
func (l *InventoryLot) Reserve(qty decimal.Decimal, at time.Time) error {
	if !qty.IsPositive() {
		return fmt.Errorf("%w: reserve quantity must be positive, got %s", ErrInvalidQuantity, qty)
	}
	if qty.GreaterThan(l.QuantityAvailable) {
		return fmt.Errorf("%w: lot %s has %s available, %s requested",
			ErrInsufficientInventory, l.ID, l.QuantityAvailable, qty)
	}
	l.QuantityAvailable = l.QuantityAvailable.Sub(qty)
	l.QuantityReserved = l.QuantityReserved.Add(qty)
	l.UpdatedAt = at
	return l.Validate()
}

// Release moves qty from reserved back to available
func (l *InventoryLot) Release(qty decimal.Decimal, at time.Time) error {
	if !qty.IsPositive() {
		return fmt.Errorf("%w: release quantity must be positive, got %s", ErrInvalidQuantity, qty)
	}
	if qty.GreaterThan(l.QuantityReserved) {
		return fmt.Errorf("%w: lot %s has %s reserved, %s to release",
			ErrInvalidQuantity, l.ID, l.QuantityReserved, qty)
	}
	l.QuantityReserved = l.QuantityReserved.Sub(qty)
	l.QuantityAvailable = l.QuantityAvailable.Add(qty)
	l.UpdatedAt = at
	return l.Validate()
}

// Adjust changes on-hand and available stock by delta (positive or negative).
// Reserved stock is never touched by an adjustment.
func (l *InventoryLot) Adjust(delta decimal.Decimal, at time.Time) error {
	if delta.IsZero() {
		return fmt.Errorf("%w: adjustment cannot be zero", ErrInvalidQuantity)
	}
	if l.QuantityAvailable.Add(delta).IsNegative() {
		return fmt.Errorf("%w: lot %s has %s available, adjustment %s",
			ErrInsufficientInventory, l.ID, l.QuantityAvailable, delta)
	}
	l.QuantityAvailable = l.QuantityAvailable.Add(delta)
	l.QuantityOnHand = l.QuantityOnHand.Add(delta)
	l.UpdatedAt = at
	return l.Validate()
}

// Balance is the summed stock position of a product
type Balance struct {
	ProductID         string          `json:"product_id" yaml:"product_id"`
	WarehouseCode     string          `json:"warehouse_code,omitempty" yaml:"warehouse_code,omitempty"`
	QuantityOnHand    decimal.Decimal `json:"quantity_on_hand" yaml:"quantity_on_hand"`
	QuantityAvailable decimal.Decimal `json:"quantity_available" yaml:"quantity_available"`
	QuantityReserved  decimal.Decimal `json:"quantity_reserved" yaml:"quantity_reserved"`
	LotCount          int             `json:"lot_count" yaml:"lot_count"`
}

// SumLots totals the quantities of lots
func SumLots(productID, warehouseCode string, lots []*InventoryLot) Balance {
	b := Balance{
		ProductID:         productID,
		WarehouseCode:     warehouseCode,
		QuantityOnHand:    decimal.Zero,
		QuantityAvailable: decimal.Zero,
		QuantityReserved:  decimal.Zero,
	}
	for _, lot := range lots {
		b.QuantityOnHand = b.QuantityOnHand.Add(lot.QuantityOnHand)
		b.QuantityAvailable = b.QuantityAvailable.Add(lot.QuantityAvailable)
		b.QuantityReserved = b.QuantityReserved.Add(lot.QuantityReserved)
		b.LotCount++
	}
	return b
}
