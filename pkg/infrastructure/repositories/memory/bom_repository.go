package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/domain/entities"
	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/domain/repositories"
)

// BOMRepository provides in-memory BOM storage. Components live in a flat
// list per BOM inside the store's arena.
type BOMRepository struct {
	store *Store
	inTx  bool
}

// Verify interface compliance
var _ repositories.BOMRepository = (*BOMRepository)(nil)

func (r *BOMRepository) GetBOM(ctx context.Context, tenantID, id string) (*entities.BillOfMaterials, error) {
	defer r.store.read(r.inTx)()

	bom, exists := r.store.data.boms[id]
	if !exists || bom.TenantID != tenantID {
		return nil, fmt.Errorf("%w: %s", entities.ErrBOMNotFound, id)
	}
	return &bom, nil
}

func (r *BOMRepository) GetActiveBOM(ctx context.Context, tenantID, productID string, at time.Time) (*entities.BillOfMaterials, error) {
	defer r.store.read(r.inTx)()

	var candidates []*entities.BillOfMaterials
	for _, b := range r.store.data.boms {
		if b.TenantID != tenantID || b.ProductID != productID || !b.IsEffective(at) {
			continue
		}
		bom := b
		candidates = append(candidates, &bom)
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: no active BOM for product %s", entities.ErrBOMNotFound, productID)
	}
	sortActive(candidates)
	return candidates[0], nil
}

// sortActive orders BOMs default first, then most recently effective, then
// highest version.
func sortActive(boms []*entities.BillOfMaterials) {
	sort.Slice(boms, func(i, j int) bool {
		a, b := boms[i], boms[j]
		if a.IsDefault != b.IsDefault {
			return a.IsDefault
		}
		if !a.EffectiveDate.Equal(b.EffectiveDate) {
			return a.EffectiveDate.After(b.EffectiveDate)
		}
		return a.Version > b.Version
	})
}

// ListBOMs returns every BOM of a product ordered by effective date
func (r *BOMRepository) ListBOMs(ctx context.Context, tenantID, productID string) ([]*entities.BillOfMaterials, error) {
	defer r.store.read(r.inTx)()

	var boms []*entities.BillOfMaterials
	for _, b := range r.store.data.boms {
		if b.TenantID == tenantID && (productID == "" || b.ProductID == productID) {
			bom := b
			boms = append(boms, &bom)
		}
	}
	sort.Slice(boms, func(i, j int) bool {
		if boms[i].ProductID != boms[j].ProductID {
			return boms[i].ProductID < boms[j].ProductID
		}
		if !boms[i].EffectiveDate.Equal(boms[j].EffectiveDate) {
			return boms[i].EffectiveDate.Before(boms[j].EffectiveDate)
		}
		return boms[i].Version < boms[j].Version
	})
	return boms, nil
}

// ListActiveBOMs returns every BOM of a tenant in active status, regardless of dates
func (r *BOMRepository) ListActiveBOMs(ctx context.Context, tenantID string) ([]*entities.BillOfMaterials, error) {
	defer r.store.read(r.inTx)()

	var boms []*entities.BillOfMaterials
	for _, b := range r.store.data.boms {
		if b.TenantID == tenantID && b.Status == entities.BOMActive {
			bom := b
			boms = append(boms, &bom)
		}
	}
	sort.Slice(boms, func(i, j int) bool {
		if boms[i].ProductID != boms[j].ProductID {
			return boms[i].ProductID < boms[j].ProductID
		}
		return boms[i].Version < boms[j].Version
	})
	return boms, nil
}

func (r *BOMRepository) CreateBOM(ctx context.Context, bom *entities.BillOfMaterials) error {
	defer r.store.write(r.inTx)()

	if _, exists := r.store.data.boms[bom.ID]; exists {
		return fmt.Errorf("BOM %s already exists", bom.ID)
	}
	for _, b := range r.store.data.boms {
		if b.TenantID == bom.TenantID && b.ProductID == bom.ProductID && b.Version == bom.Version {
			return fmt.Errorf("%w: product %s version %s", entities.ErrDuplicateVersion, bom.ProductID, bom.Version)
		}
	}
	put(r.store, r.store.data.boms, bom.ID, *bom)
	return nil
}

func (r *BOMRepository) UpdateBOM(ctx context.Context, bom *entities.BillOfMaterials) error {
	defer r.store.write(r.inTx)()

	if _, exists := r.store.data.boms[bom.ID]; !exists {
		return fmt.Errorf("%w: %s", entities.ErrBOMNotFound, bom.ID)
	}
	put(r.store, r.store.data.boms, bom.ID, *bom)
	return nil
}

func (r *BOMRepository) ClearDefault(ctx context.Context, tenantID, productID, exceptID string) error {
	defer r.store.write(r.inTx)()

	for id, b := range r.store.data.boms {
		if b.TenantID == tenantID && b.ProductID == productID && id != exceptID && b.IsDefault {
			b.IsDefault = false
			put(r.store, r.store.data.boms, id, b)
		}
	}
	return nil
}

// GetComponents returns copies of the BOM's components with their products attached
func (r *BOMRepository) GetComponents(ctx context.Context, bomID string) ([]*entities.BOMComponent, error) {
	defer r.store.read(r.inTx)()

	bom, exists := r.store.data.boms[bomID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", entities.ErrBOMNotFound, bomID)
	}

	lines := r.store.data.components[bomID]
	components := make([]*entities.BOMComponent, 0, len(lines))
	for _, line := range lines {
		c := line
		if p, ok := r.store.data.products[c.ComponentID]; ok && p.TenantID == bom.TenantID {
			product := p
			c.Product = &product
		}
		components = append(components, &c)
	}
	sort.SliceStable(components, func(i, j int) bool {
		return components[i].Sequence < components[j].Sequence
	})
	return components, nil
}

// ReplaceComponents swaps the whole component list of a BOM
func (r *BOMRepository) ReplaceComponents(ctx context.Context, bomID string, components []*entities.BOMComponent) error {
	defer r.store.write(r.inTx)()

	if _, exists := r.store.data.boms[bomID]; !exists {
		return fmt.Errorf("%w: %s", entities.ErrBOMNotFound, bomID)
	}

	lines := make([]entities.BOMComponent, 0, len(components))
	for _, c := range components {
		line := *c
		line.BOMID = bomID
		line.Product = nil
		lines = append(lines, line)
	}
	put(r.store, r.store.data.components, bomID, lines)
	return nil
}
