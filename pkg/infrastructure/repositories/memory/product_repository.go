package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/domain/entities"
	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/domain/repositories"
)

// ProductRepository provides in-memory product storage
type ProductRepository struct {
	store *Store
	inTx  bool
}

// Verify interface compliance
var _ repositories.ProductRepository = (*ProductRepository)(nil)

// GetProduct returns a copy of the product
func (r *ProductRepository) GetProduct(ctx context.Context, tenantID, id string) (*entities.Product, error) {
	defer r.store.read(r.inTx)()

	product, exists := r.store.data.products[id]
	if !exists || product.TenantID != tenantID {
		return nil, fmt.Errorf("%w: %s", entities.ErrProductNotFound, id)
	}
	return &product, nil
}

// ListProducts returns all products of a tenant ordered by SKU
func (r *ProductRepository) ListProducts(ctx context.Context, tenantID string) ([]*entities.Product, error) {
	defer r.store.read(r.inTx)()

	var products []*entities.Product
	for _, p := range r.store.data.products {
		if p.TenantID == tenantID {
			product := p
			products = append(products, &product)
		}
	}
	sort.Slice(products, func(i, j int) bool {
		return products[i].SKU < products[j].SKU
	})
	return products, nil
}

// CreateProduct stores a new product
func (r *ProductRepository) CreateProduct(ctx context.Context, product *entities.Product) error {
	defer r.store.write(r.inTx)()

	if _, exists := r.store.data.products[product.ID]; exists {
		return fmt.Errorf("product %s already exists", product.ID)
	}
	put(r.store, r.store.data.products, product.ID, *product)
	return nil
}

// UpdateProduct replaces an existing product
func (r *ProductRepository) UpdateProduct(ctx context.Context, product *entities.Product) error {
	defer r.store.write(r.inTx)()

	if _, exists := r.store.data.products[product.ID]; !exists {
		return fmt.Errorf("%w: %s", entities.ErrProductNotFound, product.ID)
	}
	put(r.store, r.store.data.products, product.ID, *product)
	return nil
}
