package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/domain/entities"
	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/domain/repositories"
)

const bomColumns = `id, tenant_id, product_id, version, status, yield_quantity, scrap_percentage,
	effective_date, expiry_date, is_default, alternate_components, approved_by, approved_at,
	notes, created_at, updated_at`

const componentColumns = `id, bom_id, component_id, quantity, scrap_percentage, sequence,
	is_phantom, is_required, unit_cost, notes`

// BOMRepository stores BOMs in the boms and bom_components tables
type BOMRepository struct {
	q sqlx.ExtContext
}

// Verify interface compliance
var _ repositories.BOMRepository = (*BOMRepository)(nil)

func (r *BOMRepository) GetBOM(ctx context.Context, tenantID, id string) (*entities.BillOfMaterials, error) {
	var bom entities.BillOfMaterials
	query := r.q.Rebind(`SELECT ` + bomColumns + ` FROM boms WHERE tenant_id = ? AND id = ?`)
	if err := sqlx.GetContext(ctx, r.q, &bom, query, tenantID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", entities.ErrBOMNotFound, id)
		}
		return nil, fmt.Errorf("failed to get BOM %s: %w", id, err)
	}
	return &bom, nil
}

func (r *BOMRepository) GetActiveBOM(ctx context.Context, tenantID, productID string, at time.Time) (*entities.BillOfMaterials, error) {
	var bom entities.BillOfMaterials
	query := r.q.Rebind(`
		SELECT ` + bomColumns + ` FROM boms
		WHERE tenant_id = ? AND product_id = ? AND status = ?
		  AND effective_date <= ? AND (expiry_date IS NULL OR expiry_date > ?)
		ORDER BY is_default DESC, effective_date DESC, version DESC
		LIMIT 1
	`)
	at = at.UTC()
	err := sqlx.GetContext(ctx, r.q, &bom, query, tenantID, productID, entities.BOMActive, at, at)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: no active BOM for product %s", entities.ErrBOMNotFound, productID)
		}
		return nil, fmt.Errorf("failed to get active BOM for %s: %w", productID, err)
	}
	return &bom, nil
}

func (r *BOMRepository) ListBOMs(ctx context.Context, tenantID, productID string) ([]*entities.BillOfMaterials, error) {
	var boms []*entities.BillOfMaterials
	query := `SELECT ` + bomColumns + ` FROM boms WHERE tenant_id = ?`
	args := []interface{}{tenantID}
	if productID != "" {
		query += ` AND product_id = ?`
		args = append(args, productID)
	}
	query += ` ORDER BY product_id, effective_date, version`
	if err := sqlx.SelectContext(ctx, r.q, &boms, r.q.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list BOMs: %w", err)
	}
	return boms, nil
}

func (r *BOMRepository) ListActiveBOMs(ctx context.Context, tenantID string) ([]*entities.BillOfMaterials, error) {
	var boms []*entities.BillOfMaterials
	query := r.q.Rebind(`SELECT ` + bomColumns + ` FROM boms WHERE tenant_id = ? AND status = ? ORDER BY product_id, version`)
	if err := sqlx.SelectContext(ctx, r.q, &boms, query, tenantID, entities.BOMActive); err != nil {
		return nil, fmt.Errorf("failed to list active BOMs: %w", err)
	}
	return boms, nil
}

func (r *BOMRepository) CreateBOM(ctx context.Context, bom *entities.BillOfMaterials) error {
	var count int
	check := r.q.Rebind(`SELECT COUNT(*) FROM boms WHERE tenant_id = ? AND product_id = ? AND version = ?`)
	if err := sqlx.GetContext(ctx, r.q, &count, check, bom.TenantID, bom.ProductID, bom.Version); err != nil {
		return fmt.Errorf("failed to check BOM version: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("%w: product %s version %s", entities.ErrDuplicateVersion, bom.ProductID, bom.Version)
	}

	row := utcBOM(*bom)
	query := `
		INSERT INTO boms (` + bomColumns + `)
		VALUES (:id, :tenant_id, :product_id, :version, :status, :yield_quantity, :scrap_percentage,
			:effective_date, :expiry_date, :is_default, :alternate_components, :approved_by, :approved_at,
			:notes, :created_at, :updated_at)
	`
	if _, err := sqlx.NamedExecContext(ctx, r.q, query, &row); err != nil {
		return fmt.Errorf("failed to create BOM %s: %w", bom.ID, err)
	}
	return nil
}

func (r *BOMRepository) UpdateBOM(ctx context.Context, bom *entities.BillOfMaterials) error {
	row := utcBOM(*bom)
	query := `
		UPDATE boms
		SET status = :status, yield_quantity = :yield_quantity, scrap_percentage = :scrap_percentage,
		    effective_date = :effective_date, expiry_date = :expiry_date, is_default = :is_default,
		    alternate_components = :alternate_components, approved_by = :approved_by,
		    approved_at = :approved_at, notes = :notes, updated_at = :updated_at
		WHERE tenant_id = :tenant_id AND id = :id
	`
	res, err := sqlx.NamedExecContext(ctx, r.q, query, &row)
	if err != nil {
		return fmt.Errorf("failed to update BOM %s: %w", bom.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", entities.ErrBOMNotFound, bom.ID)
	}
	return nil
}

func (r *BOMRepository) ClearDefault(ctx context.Context, tenantID, productID, exceptID string) error {
	query := r.q.Rebind(`UPDATE boms SET is_default = ? WHERE tenant_id = ? AND product_id = ? AND id <> ? AND is_default = ?`)
	if _, err := r.q.ExecContext(ctx, query, false, tenantID, productID, exceptID, true); err != nil {
		return fmt.Errorf("failed to clear default BOM of %s: %w", productID, err)
	}
	return nil
}

func (r *BOMRepository) GetComponents(ctx context.Context, bomID string) ([]*entities.BOMComponent, error) {
	var tenantID string
	err := sqlx.GetContext(ctx, r.q, &tenantID, r.q.Rebind(`SELECT tenant_id FROM boms WHERE id = ?`), bomID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", entities.ErrBOMNotFound, bomID)
		}
		return nil, fmt.Errorf("failed to get BOM %s: %w", bomID, err)
	}

	var components []*entities.BOMComponent
	query := r.q.Rebind(`SELECT ` + componentColumns + ` FROM bom_components WHERE bom_id = ? ORDER BY sequence, id`)
	if err := sqlx.SelectContext(ctx, r.q, &components, query, bomID); err != nil {
		return nil, fmt.Errorf("failed to get components of BOM %s: %w", bomID, err)
	}

	ids := make([]string, 0, len(components))
	for _, c := range components {
		ids = append(ids, c.ComponentID)
	}
	products, err := productsByID(ctx, r.q, tenantID, ids)
	if err != nil {
		return nil, err
	}
	for _, c := range components {
		c.Product = products[c.ComponentID]
	}
	return components, nil
}

func (r *BOMRepository) ReplaceComponents(ctx context.Context, bomID string, components []*entities.BOMComponent) error {
	if _, err := r.q.ExecContext(ctx, r.q.Rebind(`DELETE FROM bom_components WHERE bom_id = ?`), bomID); err != nil {
		return fmt.Errorf("failed to clear components of BOM %s: %w", bomID, err)
	}

	query := `
		INSERT INTO bom_components (` + componentColumns + `)
		VALUES (:id, :bom_id, :component_id, :quantity, :scrap_percentage, :sequence,
			:is_phantom, :is_required, :unit_cost, :notes)
	`
	for _, c := range components {
		line := *c
		line.BOMID = bomID
		if _, err := sqlx.NamedExecContext(ctx, r.q, query, &line); err != nil {
			return fmt.Errorf("failed to insert component %s of BOM %s: %w", c.ComponentID, bomID, err)
		}
	}
	return nil
}

// utcBOM normalizes timestamps so they compare correctly as SQLite text
func utcBOM(b entities.BillOfMaterials) entities.BillOfMaterials {
	b.EffectiveDate = b.EffectiveDate.UTC()
	b.ExpiryDate = utcPtr(b.ExpiryDate)
	b.ApprovedAt = utcPtr(b.ApprovedAt)
	b.CreatedAt = b.CreatedAt.UTC()
	b.UpdatedAt = b.UpdatedAt.UTC()
	return b
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
