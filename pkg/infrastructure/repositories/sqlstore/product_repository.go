package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/domain/entities"
	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/domain/repositories"
)

const productColumns = `id, tenant_id, sku, name, type, unit_cost, unit_of_measure, lead_time_days, created_at, updated_at`

// ProductRepository stores products in the products table
type ProductRepository struct {
	q sqlx.ExtContext
}

// Verify interface compliance
var _ repositories.ProductRepository = (*ProductRepository)(nil)

func (r *ProductRepository) GetProduct(ctx context.Context, tenantID, id string) (*entities.Product, error) {
	var product entities.Product
	query := r.q.Rebind(`SELECT ` + productColumns + ` FROM products WHERE tenant_id = ? AND id = ?`)
	if err := sqlx.GetContext(ctx, r.q, &product, query, tenantID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", entities.ErrProductNotFound, id)
		}
		return nil, fmt.Errorf("failed to get product %s: %w", id, err)
	}
	return &product, nil
}

func (r *ProductRepository) ListProducts(ctx context.Context, tenantID string) ([]*entities.Product, error) {
	var products []*entities.Product
	query := r.q.Rebind(`SELECT ` + productColumns + ` FROM products WHERE tenant_id = ? ORDER BY sku`)
	if err := sqlx.SelectContext(ctx, r.q, &products, query, tenantID); err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

func (r *ProductRepository) CreateProduct(ctx context.Context, product *entities.Product) error {
	query := `
		INSERT INTO products (` + productColumns + `)
		VALUES (:id, :tenant_id, :sku, :name, :type, :unit_cost, :unit_of_measure, :lead_time_days, :created_at, :updated_at)
	`
	if _, err := sqlx.NamedExecContext(ctx, r.q, query, product); err != nil {
		return fmt.Errorf("failed to create product %s: %w", product.SKU, err)
	}
	return nil
}

func (r *ProductRepository) UpdateProduct(ctx context.Context, product *entities.Product) error {
	query := `
		UPDATE products
		SET name = :name, type = :type, unit_cost = :unit_cost, unit_of_measure = :unit_of_measure,
		    lead_time_days = :lead_time_days, updated_at = :updated_at
		WHERE tenant_id = :tenant_id AND id = :id
	`
	res, err := sqlx.NamedExecContext(ctx, r.q, query, product)
	if err != nil {
		return fmt.Errorf("failed to update product %s: %w", product.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", entities.ErrProductNotFound, product.ID)
	}
	return nil
}

// productsByID loads the products with the given IDs, keyed by ID
func productsByID(ctx context.Context, q sqlx.ExtContext, tenantID string, ids []string) (map[string]*entities.Product, error) {
	found := make(map[string]*entities.Product, len(ids))
	if len(ids) == 0 {
		return found, nil
	}

	query, args, err := sqlx.In(`SELECT `+productColumns+` FROM products WHERE tenant_id = ? AND id IN (?)`, tenantID, ids)
	if err != nil {
		return nil, err
	}
	var products []*entities.Product
	if err := sqlx.SelectContext(ctx, q, &products, q.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}
	for _, p := range products {
		found[p.ID] = p
	}
	return found, nil
}
