package repositories

import "context"

// Repositories groups the persistence collaborators of the engine
type Repositories interface {
	Products() ProductRepository
	BOMs() BOMRepository
	Inventory() InventoryRepository
}

// Store is a Repositories that can run a unit of work. Repositories handed
// to fn see and write the same transaction; if fn returns an error every
// write made through them is rolled back.
type Store interface {
	Repositories
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Repositories) error) error
}
