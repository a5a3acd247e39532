package entities

import "github.com/shopspring/decimal"

// ExplosionNode is one node of a multi-level BOM explosion
type ExplosionNode struct {
	Level                  int              `json:"level" yaml:"level"`
	ComponentID            string           `json:"component_id" yaml:"component_id"`
	Name                   string           `json:"name,omitempty" yaml:"name,omitempty"`
	UnitOfMeasure          string           `json:"unit_of_measure,omitempty" yaml:"unit_of_measure,omitempty"`
	BOMID                  string           `json:"bom_id,omitempty" yaml:"bom_id,omitempty"`
	Quantity               decimal.Decimal  `json:"quantity" yaml:"quantity"`
	TotalQuantity          decimal.Decimal  `json:"total_quantity" yaml:"total_quantity"`
	UnitCost               decimal.Decimal  `json:"unit_cost" yaml:"unit_cost"`
	ExtendedCost           decimal.Decimal  `json:"extended_cost" yaml:"extended_cost"`
	RolledUpCost           decimal.Decimal  `json:"rolled_up_cost" yaml:"rolled_up_cost"`
	LeadTimeDays           int              `json:"lead_time_days" yaml:"lead_time_days"`
	CumulativeLeadTimeDays int              `json:"cumulative_lead_time_days" yaml:"cumulative_lead_time_days"`
	IsPhantom              bool             `json:"is_phantom,omitempty" yaml:"is_phantom,omitempty"`
	Children               []*ExplosionNode `json:"children,omitempty" yaml:"children,omitempty"`
}

// IsLeaf reports whether the node was not exploded further
func (n *ExplosionNode) IsLeaf() bool {
	return len(n.Children) == 0
}

// Walk visits the node and its descendants depth-first. Returning false
// from fn skips the children of that node.
func (n *ExplosionNode) Walk(fn func(*ExplosionNode) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// NodeCount returns the number of nodes in the tree
func (n *ExplosionNode) NodeCount() int {
	count := 0
	n.Walk(func(*ExplosionNode) bool {
		count++
		return true
	})
	return count
}

// Depth returns the deepest level present in the tree
func (n *ExplosionNode) Depth() int {
	depth := 0
	n.Walk(func(node *ExplosionNode) bool {
		if node.Level > depth {
			depth = node.Level
		}
		return true
	})
	return depth
}

// LeafRequirement is an aggregated leaf quantity of an explosion
type LeafRequirement struct {
	ComponentID   string          `json:"component_id" yaml:"component_id"`
	Name          string          `json:"name,omitempty" yaml:"name,omitempty"`
	TotalQuantity decimal.Decimal `json:"total_quantity" yaml:"total_quantity"`
	ExtendedCost  decimal.Decimal `json:"extended_cost" yaml:"extended_cost"`
}

// Leaves aggregates leaf quantities by component, in order of first appearance.
// The root is never reported as a leaf of itself.
func (n *ExplosionNode) Leaves() []LeafRequirement {
	index := make(map[string]int)
	var leaves []LeafRequirement
	n.Walk(func(node *ExplosionNode) bool {
		if node == n || !node.IsLeaf() {
			return true
		}
		if i, ok := index[node.ComponentID]; ok {
			leaves[i].TotalQuantity = leaves[i].TotalQuantity.Add(node.TotalQuantity)
			leaves[i].ExtendedCost = leaves[i].ExtendedCost.Add(node.ExtendedCost)
			return true
		}
		index[node.ComponentID] = len(leaves)
		leaves = append(leaves, LeafRequirement{
			ComponentID:   node.ComponentID,
			Name:          node.Name,
			TotalQuantity: node.TotalQuantity,
			ExtendedCost:  node.ExtendedCost,
		})
		return true
	})
	return leaves
}
