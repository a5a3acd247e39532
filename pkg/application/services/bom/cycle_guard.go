package bom

import (
	"context"

	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/domain/entities"
	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/domain/repositories"
)

type color int

const (
	white color = iota
	gray        // on the current DFS path
	black       // fully explored, known not to reach the parent
)

// CycleGuard rejects BOM writes that would close a cycle in the active graph.
// Every active BOM of a product contributes edges, default or not and
// whatever its effective date.
type CycleGuard struct{}

func NewCycleGuard() *CycleGuard {
	return &CycleGuard{}
}

// Validate checks that making componentIDs children of parentProductID keeps
// the active BOM graph acyclic. repos should be the unit of work the BOM
// write happens in, so concurrent writers cannot slip a cycle in between.
func (g *CycleGuard) Validate(ctx context.Context, repos repositories.Repositories, tenantID, parentProductID string, componentIDs []string) error {
	colors := map[string]color{parentProductID: gray}

	var visit func(productID string, path []string) error
	visit = func(productID string, path []string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		colors[productID] = gray

		children, err := activeChildren(ctx, repos, tenantID, productID)
		if err != nil {
			return err
		}
		for _, childID := range children {
			switch colors[childID] {
			case gray:
				return &entities.CircularReferenceError{Path: appendPath(path, childID)}
			case white:
				if err := visit(childID, appendPath(path, childID)); err != nil {
					return err
				}
			}
		}

		colors[productID] = black
		return nil
	}

	for _, componentID := range componentIDs {
		if componentID == parentProductID {
			return &entities.CircularReferenceError{Path: []string{parentProductID, parentProductID}}
		}
	}
	for _, componentID := range componentIDs {
		if colors[componentID] != white {
			continue
		}
		if err := visit(componentID, []string{parentProductID, componentID}); err != nil {
			return err
		}
	}
	return nil
}

// activeChildren returns the distinct component products of every active BOM
// of productID, in BOM then sequence order.
func activeChildren(ctx context.Context, repos repositories.Repositories, tenantID, productID string) ([]string, error) {
	boms, err := repos.BOMs().ListBOMs(ctx, tenantID, productID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var children []string
	for _, b := range boms {
		if b.Status != entities.BOMActive {
			continue
		}
		components, err := repos.BOMs().GetComponents(ctx, b.ID)
		if err != nil {
			return nil, err
		}
		for _, c := range components {
			if !seen[c.ComponentID] {
				seen[c.ComponentID] = true
				children = append(children, c.ComponentID)
			}
		}
	}
	return children, nil
}
