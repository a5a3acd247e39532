package repositories

import (
	"context"

	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/domain/entities"
)

// ProductRepository provides access to product master data
type ProductRepository interface {
	// GetProduct returns entities.ErrProductNotFound when the product does not exist
	GetProduct(ctx context.Context, tenantID, id string) (*entities.Product, error)
	ListProducts(ctx context.Context, tenantID string) ([]*entities.Product, error)
	CreateProduct(ctx context.Context, product *entities.Product) error
	UpdateProduct(ctx context.Context, product *entities.Product) error
}
