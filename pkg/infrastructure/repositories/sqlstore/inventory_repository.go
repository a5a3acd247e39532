package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/domain/entities"
	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/domain/repositories"
)

const lotColumns = `id, tenant_id, product_id, warehouse_code, location_code, quantity_on_hand,
	quantity_available, quantity_reserved, unit_cost, lot_number, received_date, expiry_date,
	status, version, created_at, updated_at`

const transactionColumns = `id, tenant_id, type, product_id, lot_id, lot_number, warehouse_code,
	quantity, unit_cost, total_cost, reference_type, reference_id, from_location, to_location,
	notes, transaction_date, created_at`

// InventoryRepository stores lots and the append-only transaction ledger
type InventoryRepository struct {
	q sqlx.ExtContext
}

// Verify interface compliance
var _ repositories.InventoryRepository = (*InventoryRepository)(nil)

func (r *InventoryRepository) FindLots(ctx context.Context, q repositories.LotQuery) ([]*entities.InventoryLot, error) {
	conditions := []string{"tenant_id = ?", "product_id = ?"}
	args := []interface{}{q.TenantID, q.ProductID}

	if q.WarehouseCode != "" {
		conditions = append(conditions, "warehouse_code = ?")
		args = append(args, q.WarehouseCode)
	}
	if q.LocationCode != "" {
		conditions = append(conditions, "location_code = ?")
		args = append(args, q.LocationCode)
	}
	if len(q.Statuses) > 0 {
		conditions = append(conditions, "status IN (?)")
		args = append(args, q.Statuses)
	}

	query := `SELECT ` + lotColumns + ` FROM inventory_lots WHERE ` + strings.Join(conditions, " AND ") +
		` ORDER BY received_date, created_at, id` + forUpdate(r.q, q.ForUpdate)

	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return nil, err
	}

	var lots []*entities.InventoryLot
	if err := sqlx.SelectContext(ctx, r.q, &lots, r.q.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to find lots of %s: %w", q.ProductID, err)
	}
	return lots, nil
}

func (r *InventoryRepository) GetLot(ctx context.Context, tenantID, id string, lock bool) (*entities.InventoryLot, error) {
	var lot entities.InventoryLot
	query := r.q.Rebind(`SELECT ` + lotColumns + ` FROM inventory_lots WHERE tenant_id = ? AND id = ?` + forUpdate(r.q, lock))
	if err := sqlx.GetContext(ctx, r.q, &lot, query, tenantID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", entities.ErrLotNotFound, id)
		}
		return nil, fmt.Errorf("failed to get lot %s: %w", id, err)
	}
	return &lot, nil
}

func (r *InventoryRepository) CreateLot(ctx context.Context, lot *entities.InventoryLot) error {
	if lot.Version == 0 {
		lot.Version = 1
	}
	row := *lot
	row.ReceivedDate = row.ReceivedDate.UTC()
	row.ExpiryDate = utcPtr(row.ExpiryDate)
	row.CreatedAt = row.CreatedAt.UTC()
	row.UpdatedAt = row.UpdatedAt.UTC()

	query := `
		INSERT INTO inventory_lots (` + lotColumns + `)
		VALUES (:id, :tenant_id, :product_id, :warehouse_code, :location_code, :quantity_on_hand,
			:quantity_available, :quantity_reserved, :unit_cost, :lot_number, :received_date, :expiry_date,
			:status, :version, :created_at, :updated_at)
	`
	if _, err := sqlx.NamedExecContext(ctx, r.q, query, &row); err != nil {
		return fmt.Errorf("failed to create lot %s: %w", lot.LotNumber, err)
	}
	return nil
}

func (r *InventoryRepository) UpdateLot(ctx context.Context, lot *entities.InventoryLot) error {
	row := *lot
	row.ExpiryDate = utcPtr(row.ExpiryDate)
	row.UpdatedAt = row.UpdatedAt.UTC()

	query := `
		UPDATE inventory_lots
		SET quantity_on_hand = :quantity_on_hand, quantity_available = :quantity_available,
		    quantity_reserved = :quantity_reserved, status = :status, expiry_date = :expiry_date,
		    updated_at = :updated_at, version = version + 1
		WHERE tenant_id = :tenant_id AND id = :id AND version = :version
	`
	res, err := sqlx.NamedExecContext(ctx, r.q, query, &row)
	if err != nil {
		return fmt.Errorf("failed to update lot %s: %w", lot.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update lot %s: %w", lot.ID, err)
	}
	if n == 0 {
		var count int
		check := r.q.Rebind(`SELECT COUNT(*) FROM inventory_lots WHERE tenant_id = ? AND id = ?`)
		if err := sqlx.GetContext(ctx, r.q, &count, check, lot.TenantID, lot.ID); err != nil {
			return fmt.Errorf("failed to check lot %s: %w", lot.ID, err)
		}
		if count == 0 {
			return fmt.Errorf("%w: %s", entities.ErrLotNotFound, lot.ID)
		}
		return fmt.Errorf("%w: lot %s changed since version %d", entities.ErrConcurrentModification, lot.ID, lot.Version)
	}

	lot.Version++
	return nil
}

func (r *InventoryRepository) AppendTransaction(ctx context.Context, tx *entities.InventoryTransaction) error {
	row := *tx
	row.TransactionDate = row.TransactionDate.UTC()
	row.CreatedAt = row.CreatedAt.UTC()

	query := `
		INSERT INTO inventory_transactions (` + transactionColumns + `)
		VALUES (:id, :tenant_id, :type, :product_id, :lot_id, :lot_number, :warehouse_code,
			:quantity, :unit_cost, :total_cost, :reference_type, :reference_id, :from_location, :to_location,
			:notes, :transaction_date, :created_at)
	`
	if _, err := sqlx.NamedExecContext(ctx, r.q, query, &row); err != nil {
		return fmt.Errorf("failed to append %s transaction: %w", tx.Type, err)
	}
	return nil
}

func (r *InventoryRepository) FindTransactions(ctx context.Context, q repositories.TransactionQuery) ([]*entities.InventoryTransaction, error) {
	conditions := []string{"tenant_id = ?"}
	args := []interface{}{q.TenantID}

	add := func(cond string, arg interface{}) {
		conditions = append(conditions, cond)
		args = append(args, arg)
	}
	if q.ProductID != "" {
		add("product_id = ?", q.ProductID)
	}
	if q.LotID != "" {
		add("lot_id = ?", q.LotID)
	}
	if len(q.Types) > 0 {
		add("type IN (?)", q.Types)
	}
	if q.ReferenceType != "" {
		add("reference_type = ?", q.ReferenceType)
	}
	if q.ReferenceID != "" {
		add("reference_id = ?", q.ReferenceID)
	}
	if q.WarehouseCode != "" {
		add("warehouse_code = ?", q.WarehouseCode)
	}
	if !q.From.IsZero() {
		add("transaction_date >= ?", q.From.UTC())
	}
	if !q.To.IsZero() {
		add("transaction_date < ?", q.To.UTC())
	}

	query := `SELECT ` + transactionColumns + ` FROM inventory_transactions WHERE ` +
		strings.Join(conditions, " AND ") + ` ORDER BY transaction_date DESC, created_at DESC`
	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", q.Limit)
	}

	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return nil, err
	}

	var txs []*entities.InventoryTransaction
	if err := sqlx.SelectContext(ctx, r.q, &txs, r.q.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to find transactions: %w", err)
	}
	return txs, nil
}
