package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/domain/entities"
)

// LotAllocation is the quantity taken from (or put back into) one lot
type LotAllocation struct {
	LotID         string          `json:"lot_id" yaml:"lot_id"`
	LotNumber     string          `json:"lot_number" yaml:"lot_number"`
	WarehouseCode string          `json:"warehouse_code" yaml:"warehouse_code"`
	Quantity      decimal.Decimal `json:"quantity" yaml:"quantity"`
	UnitCost      decimal.Decimal `json:"unit_cost" yaml:"unit_cost"`
	TotalCost     decimal.Decimal `json:"total_cost" yaml:"total_cost"`
}

// ConsumedItem is the FIFO issue of one requirement node
type ConsumedItem struct {
	ProductID string          `json:"product_id" yaml:"product_id"`
	Quantity  decimal.Decimal `json:"quantity" yaml:"quantity"`
	TotalCost decimal.Decimal `json:"total_cost" yaml:"total_cost"`
	Lots      []LotAllocation `json:"lots" yaml:"lots"`
}

// ConsumptionResult reports a consume call. On failure Success is false and
// Shortages lists every short node; nothing was written.
type ConsumptionResult struct {
	Success       bool                             `json:"success" yaml:"success"`
	ConsumedItems []ConsumedItem                   `json:"consumed_items,omitempty" yaml:"consumed_items,omitempty"`
	Shortages     []entities.Shortage              `json:"shortages,omitempty" yaml:"shortages,omitempty"`
	TotalCost     decimal.Decimal                  `json:"total_cost" yaml:"total_cost"`
	Transactions  []*entities.InventoryTransaction `json:"transactions,omitempty" yaml:"transactions,omitempty"`
}

// ReservedLine is the lot chosen for one reservation line
type ReservedLine struct {
	ProductID string        `json:"product_id" yaml:"product_id"`
	Lot       LotAllocation `json:"lot" yaml:"lot"`
}

// ReservationResult reports a reserve call
type ReservationResult struct {
	Success      bool                             `json:"success" yaml:"success"`
	Lines        []ReservedLine                   `json:"lines,omitempty" yaml:"lines,omitempty"`
	Shortages    []entities.Shortage              `json:"shortages,omitempty" yaml:"shortages,omitempty"`
	Transactions []*entities.InventoryTransaction `json:"transactions,omitempty" yaml:"transactions,omitempty"`
}

// ReleasedLine is one reversed reservation
type ReleasedLine struct {
	ProductID string        `json:"product_id" yaml:"product_id"`
	Lot       LotAllocation `json:"lot" yaml:"lot"`
}

// ReleaseResult reports a release call. An empty Lines means there was
// nothing left to release for the reference.
type ReleaseResult struct {
	Lines        []ReleasedLine                   `json:"lines,omitempty" yaml:"lines,omitempty"`
	Transactions []*entities.InventoryTransaction `json:"transactions,omitempty" yaml:"transactions,omitempty"`
}

// ConsumptionRate is the average daily issue quantity of a product
type ConsumptionRate struct {
	ProductID        string          `json:"product_id" yaml:"product_id"`
	Days             int             `json:"days" yaml:"days"`
	From             time.Time       `json:"from" yaml:"from"`
	To               time.Time       `json:"to" yaml:"to"`
	TotalConsumed    decimal.Decimal `json:"total_consumed" yaml:"total_consumed"`
	AveragePerDay    decimal.Decimal `json:"average_per_day" yaml:"average_per_day"`
	TransactionCount int             `json:"transaction_count" yaml:"transaction_count"`
}
