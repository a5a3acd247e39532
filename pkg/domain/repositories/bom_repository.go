package repositories

import (
	"context"
	"time"

	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/domain/entities"
)

// BOMRepository provides access to bills of materials and their components
type BOMRepository interface {
	// GetBOM returns entities.ErrBOMNotFound when the BOM does not exist
	GetBOM(ctx context.Context, tenantID, id string) (*entities.BillOfMaterials, error)

	// GetActiveBOM returns the BOM used to build productID at time at: an
	// effective active BOM, preferring the default one, then the most recently
	// effective. Returns entities.ErrBOMNotFound when there is none.
	GetActiveBOM(ctx context.Context, tenantID, productID string, at time.Time) (*entities.BillOfMaterials, error)

	ListBOMs(ctx context.Context, tenantID, productID string) ([]*entities.BillOfMaterials, error)
	ListActiveBOMs(ctx context.Context, tenantID string) ([]*entities.BillOfMaterials, error)
	CreateBOM(ctx context.Context, bom *entities.BillOfMaterials) error
	UpdateBOM(ctx context.Context, bom *entities.BillOfMaterials) error

	// ClearDefault unsets IsDefault on every BOM of productID except exceptID
	ClearDefault(ctx context.Context, tenantID, productID, exceptID string) error

	// GetComponents returns the components of bomID ordered by sequence, with Product joined
	GetComponents(ctx context.Context, bomID string) ([]*entities.BOMComponent, error)
	ReplaceComponents(ctx context.Context, bomID string, components []*entities.BOMComponent) error
}
