package entities

import "github.com/shopspring/decimal"

// MaterialRequirement is one node of a requirements tree: what a product
// needs, what the ledger holds for it and what is missing.
type MaterialRequirement struct {
	ProductID         string                 `json:"product_id" yaml:"product_id"`
	ProductName       string                 `json:"product_name,omitempty" yaml:"product_name,omitempty"`
	UnitOfMeasure     string                 `json:"unit_of_measure,omitempty" yaml:"unit_of_measure,omitempty"`
	WarehouseCode     string                 `json:"warehouse_code,omitempty" yaml:"warehouse_code,omitempty"`
	Level             int                    `json:"level" yaml:"level"`
	RequiredQuantity  decimal.Decimal        `json:"required_quantity" yaml:"required_quantity"`
	AvailableQuantity decimal.Decimal        `json:"available_quantity" yaml:"available_quantity"`
	ReservedQuantity  decimal.Decimal        `json:"reserved_quantity" yaml:"reserved_quantity"`
	OnHandQuantity    decimal.Decimal        `json:"on_hand_quantity" yaml:"on_hand_quantity"`
	ShortageQuantity  decimal.Decimal        `json:"shortage_quantity" yaml:"shortage_quantity"`
	Components        []*MaterialRequirement `json:"components,omitempty" yaml:"components,omitempty"`
}

// ShortageOf returns max(0, required - available)
func ShortageOf(required, available decimal.Decimal) decimal.Decimal {
	shortage := required.Sub(available)
	if shortage.IsNegative() {
		return decimal.Zero
	}
	return shortage
}

// Flatten returns the node and all nested components in depth-first pre-order
func (r *MaterialRequirement) Flatten() []*MaterialRequirement {
	var nodes []*MaterialRequirement
	var walk func(n *MaterialRequirement)
	walk = func(n *MaterialRequirement) {
		if n == nil {
			return
		}
		nodes = append(nodes, n)
		for _, c := range n.Components {
			walk(c)
		}
	}
	walk(r)
	return nodes
}

// Shortages lists every node of the tree with a positive shortage
func (r *MaterialRequirement) Shortages() []Shortage {
	var shortages []Shortage
	for _, n := range r.Flatten() {
		if n.ShortageQuantity.IsPositive() {
			shortages = append(shortages, n.AsShortage())
		}
	}
	return shortages
}

// HasShortage reports whether any node of the tree is short
func (r *MaterialRequirement) HasShortage() bool {
	return len(r.Shortages()) > 0
}

// AsShortage converts the node into a Shortage record
func (r *MaterialRequirement) AsShortage() Shortage {
	return Shortage{
		ProductID:         r.ProductID,
		WarehouseCode:     r.WarehouseCode,
		RequiredQuantity:  r.RequiredQuantity,
		AvailableQuantity: r.AvailableQuantity,
		ShortageQuantity:  r.ShortageQuantity,
	}
}
