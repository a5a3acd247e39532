package memory

import (
	"context"
	"sync"

	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/domain/entities"
	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/domain/repositories"
)

// dataset is the arena backing a Store: BOMs keyed by ID, each owning a flat
// list of component records, and lots indexed per product in FIFO order.
type dataset struct {
	products     map[string]entities.Product
	boms         map[string]entities.BillOfMaterials
	components   map[string][]entities.BOMComponent
	lots         map[string]entities.InventoryLot
	lotIndex     map[string][]string // tenant|product -> lot IDs, oldest first
	transactions []entities.InventoryTransaction
}

func newDataset() *dataset {
	return &dataset{
		products:   make(map[string]entities.Product),
		boms:       make(map[string]entities.BillOfMaterials),
		components: make(map[string][]entities.BOMComponent),
		lots:       make(map[string]entities.InventoryLot),
		lotIndex:   make(map[string][]string),
	}
}

// Store is an in-memory, transactional implementation of repositories.Store.
// Units of work are serialized by a single write lock; reads outside a unit
// of work share a read lock. Writes inside a unit of work journal their
// inverse, so rollback costs what the unit of work touched.
type Store struct {
	mu      sync.RWMutex
	data    *dataset
	journal *[]func() // non-nil while a unit of work runs
}

// NewStore creates an empty in-memory store
func NewStore() *Store {
	return &Store{data: newDataset()}
}

// Verify interface compliance
var _ repositories.Store = (*Store)(nil)

func (s *Store) Products() repositories.ProductRepository {
	return &ProductRepository{store: s}
}

func (s *Store) BOMs() repositories.BOMRepository {
	return &BOMRepository{store: s}
}

func (s *Store) Inventory() repositories.InventoryRepository {
	return &InventoryRepository{store: s}
}

// WithinTx runs fn holding the write lock. On error or panic every write fn
// made is undone, newest first.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repositories.Repositories) error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var undo []func()
	s.journal = &undo
	defer func() {
		s.journal = nil
		if p := recover(); p != nil {
			rollback(undo)
			panic(p)
		}
		if err != nil {
			rollback(undo)
		}
	}()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx, &txRepositories{store: s})
}

func rollback(undo []func()) {
	for i := len(undo) - 1; i >= 0; i-- {
		undo[i]()
	}
}

// txRepositories hands out repositories that run under the held write lock
type txRepositories struct {
	store *Store
}

func (t *txRepositories) Products() repositories.ProductRepository {
	return &ProductRepository{store: t.store, inTx: true}
}

func (t *txRepositories) BOMs() repositories.BOMRepository {
	return &BOMRepository{store: t.store, inTx: true}
}

func (t *txRepositories) Inventory() repositories.InventoryRepository {
	return &InventoryRepository{store: t.store, inTx: true}
}

// read takes the read lock unless the caller already holds the write lock
func (s *Store) read(inTx bool) func() {
	if inTx {
		return func() {}
	}
	s.mu.RLock()
	return s.mu.RUnlock
}

// write takes the write lock unless the caller already holds it
func (s *Store) write(inTx bool) func() {
	if inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// put stores v under k, journaling the previous entry when a unit of work runs.
// Callers hold the write lock.
func put[K comparable, V any](s *Store, m map[K]V, k K, v V) {
	if s.journal != nil {
		prev, existed := m[k]
		*s.journal = append(*s.journal, func() {
			if existed {
				m[k] = prev
			} else {
				delete(m, k)
			}
		})
	}
	m[k] = v
}

// appendTransaction adds a ledger row. Callers hold the write lock.
func (s *Store) appendTransaction(tx entities.InventoryTransaction) {
	if s.journal != nil {
		n := len(s.data.transactions)
		*s.journal = append(*s.journal, func() {
			s.data.transactions = s.data.transactions[:n]
		})
	}
	s.data.transactions = append(s.data.transactions, tx)
}

// Stats summarizes the contents of the store
type Stats struct {
	Products     int
	BOMs         int
	Components   int
	Lots         int
	Transactions int
}

// Stats returns the number of records held by the store
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	components := 0
	for _, lines := range s.data.components {
		components += len(lines)
	}
	return Stats{
		Products:     len(s.data.products),
		BOMs:         len(s.data.boms),
		Components:   components,
		Lots:         len(s.data.lots),
		Transactions: len(s.data.transactions),
	}
}
