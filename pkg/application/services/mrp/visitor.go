package mrp

import (
	"context"
	"fmt"

	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/application/services/bom"
	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/domain/entities"
	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/domain/repositories"
)

// requirementVisitor turns BOM nodes into requirement nodes
type requirementVisitor struct {
	inventory     repositories.InventoryRepository
	tenantID      string
	warehouseCode string
	includeSub    bool

	// balances caches stock per product for the duration of one calculation
	balances map[string]entities.Balance
}

// VisitNode decides whether a node is exploded or resolved against stock.
// Raw materials never explode, even if someone gave them a BOM.
func (v *requirementVisitor) VisitNode(ctx context.Context, node bom.NodeContext) (bool, error) {
	if node.Structure == nil || node.Product.Type == entities.RawMaterial {
		return false, nil
	}
	return v.includeSub || node.Level == 0, nil
}

func (v *requirementVisitor) ProcessChildren(ctx context.Context, node bom.NodeContext, children []*entities.MaterialRequirement) (*entities.MaterialRequirement, error) {
	balance, err := v.balance(ctx, node.Product.ID)
	if err != nil {
		return nil, err
	}

	return &entities.MaterialRequirement{
		ProductID:         node.Product.ID,
		ProductName:       node.Product.Name,
		UnitOfMeasure:     node.Product.UnitOfMeasure,
		WarehouseCode:     v.warehouseCode,
		Level:             node.Level,
		RequiredQuantity:  node.Quantity,
		AvailableQuantity: balance.QuantityAvailable,
		ReservedQuantity:  balance.QuantityReserved,
		OnHandQuantity:    balance.QuantityOnHand,
		ShortageQuantity:  entities.ShortageOf(node.Quantity, balance.QuantityAvailable),
		Components:        children,
	}, nil
}

func (v *requirementVisitor) balance(ctx context.Context, productID string) (entities.Balance, error) {
	if b, ok := v.balances[productID]; ok {
		return b, nil
	}
	lots, err := v.inventory.FindLots(ctx, repositories.LotQuery{
		TenantID:      v.tenantID,
		ProductID:     productID,
		Statuses:      []entities.LotStatus{entities.LotAvailable},
		WarehouseCode: v.warehouseCode,
	})
	if err != nil {
		return entities.Balance{}, fmt.Errorf("failed to load lots of %s: %w", productID, err)
	}
	b := entities.SumLots(productID, v.warehouseCode, lots)
	v.balances[productID] = b
	return b, nil
}
