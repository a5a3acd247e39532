package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/domain/entities"
	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/domain/repositories"
)

// InventoryRepository provides in-memory lot and ledger storage
type InventoryRepository struct {
	store *Store
	inTx  bool
}

// Verify interface compliance
var _ repositories.InventoryRepository = (*InventoryRepository)(nil)

func lotKey(tenantID, productID string) string {
	return tenantID + "|" + productID
}

// fifoLess orders lots by received date, then creation time, then ID
func fifoLess(a, b entities.InventoryLot) bool {
	if !a.ReceivedDate.Equal(b.ReceivedDate) {
		return a.ReceivedDate.Before(b.ReceivedDate)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// FindLots walks the product's FIFO index. ForUpdate is a no-op: the write
// lock of the unit of work already excludes other writers.
func (r *InventoryRepository) FindLots(ctx context.Context, q repositories.LotQuery) ([]*entities.InventoryLot, error) {
	defer r.store.read(r.inTx)()

	var lots []*entities.InventoryLot
	for _, id := range r.store.data.lotIndex[lotKey(q.TenantID, q.ProductID)] {
		lot := r.store.data.lots[id]
		if q.WarehouseCode != "" && lot.WarehouseCode != q.WarehouseCode {
			continue
		}
		if q.LocationCode != "" && lot.LocationCode != q.LocationCode {
			continue
		}
		if len(q.Statuses) > 0 && !hasStatus(q.Statuses, lot.Status) {
			continue
		}
		lots = append(lots, &lot)
	}
	return lots, nil
}

func hasStatus(statuses []entities.LotStatus, status entities.LotStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

func (r *InventoryRepository) GetLot(ctx context.Context, tenantID, id string, forUpdate bool) (*entities.InventoryLot, error) {
	defer r.store.read(r.inTx)()

	lot, exists := r.store.data.lots[id]
	if !exists || lot.TenantID != tenantID {
		return nil, fmt.Errorf("%w: %s", entities.ErrLotNotFound, id)
	}
	return &lot, nil
}

func (r *InventoryRepository) CreateLot(ctx context.Context, lot *entities.InventoryLot) error {
	defer r.store.write(r.inTx)()

	if _, exists := r.store.data.lots[lot.ID]; exists {
		return fmt.Errorf("lot %s already exists", lot.ID)
	}
	if lot.Version == 0 {
		lot.Version = 1
	}
	put(r.store, r.store.data.lots, lot.ID, *lot)

	// the index is rebuilt rather than shifted in place: a journaled copy
	// of the old slice shares its backing array
	key := lotKey(lot.TenantID, lot.ProductID)
	index := r.store.data.lotIndex[key]
	pos := sort.Search(len(index), func(i int) bool {
		return fifoLess(*lot, r.store.data.lots[index[i]])
	})
	next := make([]string, 0, len(index)+1)
	next = append(next, index[:pos]...)
	next = append(next, lot.ID)
	next = append(next, index[pos:]...)
	put(r.store, r.store.data.lotIndex, key, next)
	return nil
}

func (r *InventoryRepository) UpdateLot(ctx context.Context, lot *entities.InventoryLot) error {
	defer r.store.write(r.inTx)()

	stored, exists := r.store.data.lots[lot.ID]
	if !exists || stored.TenantID != lot.TenantID {
		return fmt.Errorf("%w: %s", entities.ErrLotNotFound, lot.ID)
	}
	if stored.Version != lot.Version {
		return fmt.Errorf("%w: lot %s is at version %d, update was based on %d",
			entities.ErrConcurrentModification, lot.ID, stored.Version, lot.Version)
	}

	stored.QuantityOnHand = lot.QuantityOnHand
	stored.QuantityAvailable = lot.QuantityAvailable
	stored.QuantityReserved = lot.QuantityReserved
	stored.Status = lot.Status
	stored.ExpiryDate = lot.ExpiryDate
	stored.UpdatedAt = lot.UpdatedAt
	stored.Version++
	put(r.store, r.store.data.lots, lot.ID, stored)

	lot.Version = stored.Version
	return nil
}

func (r *InventoryRepository) AppendTransaction(ctx context.Context, tx *entities.InventoryTransaction) error {
	defer r.store.write(r.inTx)()

	r.store.appendTransaction(*tx)
	return nil
}

func (r *InventoryRepository) FindTransactions(ctx context.Context, q repositories.TransactionQuery) ([]*entities.InventoryTransaction, error) {
	defer r.store.read(r.inTx)()

	var txs []*entities.InventoryTransaction
	for _, t := range r.store.data.transactions {
		if !matchTransaction(q, &t) {
			continue
		}
		tx := t
		txs = append(txs, &tx)
	}
	// stable keeps append order for entries sharing a timestamp
	sort.SliceStable(txs, func(i, j int) bool {
		return txs[i].TransactionDate.After(txs[j].TransactionDate)
	})
	if q.Limit > 0 && len(txs) > q.Limit {
		txs = txs[:q.Limit]
	}
	return txs, nil
}

func matchTransaction(q repositories.TransactionQuery, t *entities.InventoryTransaction) bool {
	if t.TenantID != q.TenantID {
		return false
	}
	if q.ProductID != "" && t.ProductID != q.ProductID {
		return false
	}
	if q.LotID != "" && t.LotID != q.LotID {
		return false
	}
	if q.ReferenceType != "" && t.ReferenceType != q.ReferenceType {
		return false
	}
	if q.ReferenceID != "" && t.ReferenceID != q.ReferenceID {
		return false
	}
	if q.WarehouseCode != "" && t.WarehouseCode != q.WarehouseCode {
		return false
	}
	if !q.From.IsZero() && t.TransactionDate.Before(q.From) {
		return false
	}
	if !q.To.IsZero() && !t.TransactionDate.Before(q.To) {
		return false
	}
	if len(q.Types) > 0 {
		for _, typ := range q.Types {
			if t.Type == typ {
				return true
			}
		}
		return false
	}
	return true
}
