package repositories

import (
	"context"
	"time"

	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/domain/entities"
)

// LotQuery selects inventory lots of one product
type LotQuery struct {
	TenantID      string
	ProductID     string
	Statuses      []entities.LotStatus
	WarehouseCode string // empty = all warehouses
	LocationCode  string // empty = all locations

	// ForUpdate locks the returned rows until the surrounding unit of work ends
	ForUpdate bool
}

// TransactionQuery selects ledger entries
type TransactionQuery struct {
	TenantID      string
	ProductID     string
	LotID         string
	Types         []entities.TransactionType
	ReferenceType string
	ReferenceID   string
	WarehouseCode string
	From          time.Time // inclusive, zero = unbounded
	To            time.Time // exclusive, zero = unbounded
	Limit         int
}

// InventoryRepository provides access to the inventory ledger
type InventoryRepository interface {
	// FindLots returns matching lots ordered by ReceivedDate then CreatedAt (oldest first)
	FindLots(ctx context.Context, q LotQuery) ([]*entities.InventoryLot, error)

	// GetLot returns entities.ErrLotNotFound when the lot does not exist
	GetLot(ctx context.Context, tenantID, id string, forUpdate bool) (*entities.InventoryLot, error)

	CreateLot(ctx context.Context, lot *entities.InventoryLot) error

	// UpdateLot persists the quantity and status fields of lot. The stored
	// version must equal lot.Version, otherwise entities.ErrConcurrentModification
	// is returned. On success lot.Version is incremented.
	UpdateLot(ctx context.Context, lot *entities.InventoryLot) error

	// AppendTransaction appends a ledger entry. Entries are never updated or deleted.
	AppendTransaction(ctx context.Context, tx *entities.InventoryTransaction) error

	// FindTransactions returns matching entries ordered by TransactionDate descending
	FindTransactions(ctx context.Context, q TransactionQuery) ([]*entities.InventoryTransaction, error)
}
