package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/domain/entities"
	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/domain/repositories"
)

func TestInventoryRepository_FindLotsFIFO(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Inventory()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	// inserted out of order on purpose
	newest := newLot(t, "P1", "L3", 1, base.Add(48*time.Hour))
	oldest := newLot(t, "P1", "L1", 1, base)
	middle := newLot(t, "P1", "L2", 1, base.Add(24*time.Hour))
	other := newLot(t, "P2", "L9", 1, base)
	for _, lot := range []*entities.InventoryLot{newest, oldest, middle, other} {
		require.NoError(t, repo.CreateLot(ctx, lot))
	}

	lots, err := repo.FindLots(ctx, repositories.LotQuery{TenantID: tenantID, ProductID: "P1"})
	require.NoError(t, err)
	require.Len(t, lots, 3)
	assert.Equal(t, []string{"L1", "L2", "L3"}, []string{lots[0].LotNumber, lots[1].LotNumber, lots[2].LotNumber})
}

func TestInventoryRepository_FindLotsTieBreaksOnCreatedAt(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Inventory()
	received := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	second := newLot(t, "P1", "B", 1, received)
	second.CreatedAt = received.Add(time.Minute)
	first := newLot(t, "P1", "A", 1, received)
	first.CreatedAt = received
	require.NoError(t, repo.CreateLot(ctx, second))
	require.NoError(t, repo.CreateLot(ctx, first))

	lots, err := repo.FindLots(ctx, repositories.LotQuery{TenantID: tenantID, ProductID: "P1"})
	require.NoError(t, err)
	require.Len(t, lots, 2)
	assert.Equal(t, "A", lots[0].LotNumber)
}

func TestInventoryRepository_FindLotsFilters(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Inventory()

	available := newLot(t, "P1", "L1", 1, time.Now())
	quarantined := newLot(t, "P1", "L2", 1, time.Now())
	quarantined.Status = entities.LotQuarantine
	elsewhere := newLot(t, "P1", "L3", 1, time.Now())
	elsewhere.WarehouseCode = "WH2"
	for _, lot := range []*entities.InventoryLot{available, quarantined, elsewhere} {
		require.NoError(t, repo.CreateLot(ctx, lot))
	}

	tests := []struct {
		name  string
		query repositories.LotQuery
		want  int
	}{
		{"all", repositories.LotQuery{TenantID: tenantID, ProductID: "P1"}, 3},
		{"available only", repositories.LotQuery{TenantID: tenantID, ProductID: "P1", Statuses: []entities.LotStatus{entities.LotAvailable}}, 2},
		{"warehouse", repositories.LotQuery{TenantID: tenantID, ProductID: "P1", WarehouseCode: "WH2"}, 1},
		{"location", repositories.LotQuery{TenantID: tenantID, ProductID: "P1", LocationCode: "B-99"}, 0},
		{"other tenant", repositories.LotQuery{TenantID: "globex", ProductID: "P1"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lots, err := repo.FindLots(ctx, tt.query)
			require.NoError(t, err)
			assert.Len(t, lots, tt.want)
		})
	}
}

func TestInventoryRepository_UpdateLotVersionCheck(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Inventory()
	lot := newLot(t, "P1", "L1", 10, time.Now())
	require.NoError(t, repo.CreateLot(ctx, lot))

	first, err := repo.GetLot(ctx, tenantID, lot.ID, false)
	require.NoError(t, err)
	stale, err := repo.GetLot(ctx, tenantID, lot.ID, false)
	require.NoError(t, err)

	require.NoError(t, first.Reserve(decimal.NewFromInt(4), time.Now()))
	require.NoError(t, repo.UpdateLot(ctx, first))
	assert.Equal(t, int64(2), first.Version)

	require.NoError(t, stale.Reserve(decimal.NewFromInt(4), time.Now()))
	err = repo.UpdateLot(ctx, stale)
	require.ErrorIs(t, err, entities.ErrConcurrentModification)

	got, err := repo.GetLot(ctx, tenantID, lot.ID, false)
	require.NoError(t, err)
	assert.True(t, got.QuantityReserved.Equal(decimal.NewFromInt(4)))
}

func TestInventoryRepository_GetLotNotFound(t *testing.T) {
	repo := NewStore().Inventory()
	_, err := repo.GetLot(context.Background(), tenantID, "missing", false)
	require.ErrorIs(t, err, entities.ErrLotNotFound)
	require.ErrorIs(t, err, entities.ErrNotFound)
}

func TestInventoryRepository_FindTransactions(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Inventory()
	lot := newLot(t, "P1", "L1", 10, time.Now())
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	ref := entities.Reference{Type: "work_order", ID: "WO-1"}
	for i, typ := range []entities.TransactionType{entities.TxReceipt, entities.TxIssue, entities.TxIssue, entities.TxReservation} {
		tx := entities.NewLotTransaction(lot, typ, decimal.NewFromInt(1), ref, "", base.Add(time.Duration(i)*time.Hour))
		require.NoError(t, repo.AppendTransaction(ctx, tx))
	}

	all, err := repo.FindTransactions(ctx, repositories.TransactionQuery{TenantID: tenantID})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, entities.TxReservation, all[0].Type, "newest first")

	issues, err := repo.FindTransactions(ctx, repositories.TransactionQuery{
		TenantID: tenantID,
		Types:    []entities.TransactionType{entities.TxIssue},
	})
	require.NoError(t, err)
	assert.Len(t, issues, 2)

	window, err := repo.FindTransactions(ctx, repositories.TransactionQuery{
		TenantID: tenantID,
		From:     base.Add(time.Hour),
		To:       base.Add(3 * time.Hour),
	})
	require.NoError(t, err)
	assert.Len(t, window, 2)

	limited, err := repo.FindTransactions(ctx, repositories.TransactionQuery{TenantID: tenantID, ReferenceID: "WO-1", Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}
