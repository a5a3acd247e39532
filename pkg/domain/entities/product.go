package entities

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductType classifies how a product is sourced and used
type ProductType string

const (
	RawMaterial  ProductType = "raw_material"
	Component    ProductType = "component"
	FinishedGood ProductType = "finished_good"
	Consumable   ProductType = "consumable"
)

// IsValid reports whether t is one of the known product types
func (t ProductType) IsValid() bool {
	switch t {
	case RawMaterial, Component, FinishedGood, Consumable:
		return true
	default:
		return false
	}
}

// Product represents an item master record
type Product struct {
	ID            string          `db:"id" json:"id"`
	TenantID      string          `db:"tenant_id" json:"tenant_id"`
	SKU           string          `db:"sku" json:"sku"`
	Name          string          `db:"name" json:"name"`
	Type          ProductType     `db:"type" json:"type"`
	UnitCost      decimal.Decimal `db:"unit_cost" json:"unit_cost"`
	UnitOfMeasure string          `db:"unit_of_measure" json:"unit_of_measure"`
	LeadTimeDays  int             `db:"lead_time_days" json:"lead_time_days"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

// NewProduct creates a validated Product with a fresh ID
func NewProduct(
	tenantID, sku, name string,
	productType ProductType,
	unitCost decimal.Decimal,
	unitOfMeasure string,
	leadTimeDays int,
) (*Product, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenant cannot be empty")
	}
	if sku == "" {
		return nil, fmt.Errorf("sku cannot be empty")
	}
	if !productType.IsValid() {
		return nil, fmt.Errorf("unknown product type %q", productType)
	}
	if unitCost.IsNegative() {
		return nil, fmt.Errorf("unit cost cannot be negative, got %s", unitCost)
	}
	if unitOfMeasure == "" {
		return nil, fmt.Errorf("unit of measure cannot be empty")
	}
	if leadTimeDays < 0 {
		return nil, fmt.Errorf("lead time cannot be negative, got %d", leadTimeDays)
	}

	now := time.Now().UTC()
	return &Product{
		ID:            uuid.NewString(),
		TenantID:      tenantID,
		SKU:           sku,
		Name:          name,
		Type:          productType,
		UnitCost:      unitCost,
		UnitOfMeasure: unitOfMeasure,
		LeadTimeDays:  leadTimeDays,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// DisplayName returns the name, or the SKU when the product has no name
func (p *Product) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.SKU
}
