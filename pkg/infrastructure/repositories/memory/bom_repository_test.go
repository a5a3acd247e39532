package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/domain/entities"
)

func newBOM(t *testing.T, productID, version string, effective time.Time) *entities.BillOfMaterials {
	t.Helper()
	bom, err := entities.NewBillOfMaterials(tenantID, productID, version, decimal.NewFromInt(1), decimal.Zero, effective)
	require.NoError(t, err)
	return bom
}

func TestBOMRepository_GetActiveBOMSelection(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().BOMs()
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	older := newBOM(t, "FG", "v1", now.AddDate(0, -2, 0))
	older.Status = entities.BOMActive
	newer := newBOM(t, "FG", "v2", now.AddDate(0, -1, 0))
	newer.Status = entities.BOMActive
	future := newBOM(t, "FG", "v3", now.AddDate(0, 1, 0))
	future.Status = entities.BOMActive
	draft := newBOM(t, "FG", "v4", now.AddDate(0, 0, -1))
	for _, b := range []*entities.BillOfMaterials{older, newer, future, draft} {
		require.NoError(t, repo.CreateBOM(ctx, b))
	}

	got, err := repo.GetActiveBOM(ctx, tenantID, "FG", now)
	require.NoError(t, err)
	assert.Equal(t, "v2", got.Version, "most recently effective wins")

	older.IsDefault = true
	require.NoError(t, repo.UpdateBOM(ctx, older))
	got, err = repo.GetActiveBOM(ctx, tenantID, "FG", now)
	require.NoError(t, err)
	assert.Equal(t, "v1", got.Version, "default wins")

	expired := now.AddDate(0, 0, -1)
	older.ExpiryDate = &expired
	require.NoError(t, repo.UpdateBOM(ctx, older))
	got, err = repo.GetActiveBOM(ctx, tenantID, "FG", now)
	require.NoError(t, err)
	assert.Equal(t, "v2", got.Version, "expired BOMs are skipped")

	_, err = repo.GetActiveBOM(ctx, tenantID, "OTHER", now)
	require.ErrorIs(t, err, entities.ErrBOMNotFound)
}

func TestBOMRepository_DuplicateVersion(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().BOMs()

	require.NoError(t, repo.CreateBOM(ctx, newBOM(t, "FG", "v1", time.Now())))
	err := repo.CreateBOM(ctx, newBOM(t, "FG", "v1", time.Now()))
	require.ErrorIs(t, err, entities.ErrDuplicateVersion)
}

func TestBOMRepository_ClearDefault(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().BOMs()

	a := newBOM(t, "FG", "v1", time.Now())
	a.IsDefault = true
	b := newBOM(t, "FG", "v2", time.Now())
	b.IsDefault = true
	require.NoError(t, repo.CreateBOM(ctx, a))
	require.NoError(t, repo.CreateBOM(ctx, b))

	require.NoError(t, repo.ClearDefault(ctx, tenantID, "FG", b.ID))

	gotA, err := repo.GetBOM(ctx, tenantID, a.ID)
	require.NoError(t, err)
	gotB, err := repo.GetBOM(ctx, tenantID, b.ID)
	require.NoError(t, err)
	assert.False(t, gotA.IsDefault)
	assert.True(t, gotB.IsDefault)
}

func TestBOMRepository_ComponentsJoinProducts(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	steel, err := entities.NewProduct(tenantID, "STEEL", "Steel sheet", entities.RawMaterial,
		decimal.NewFromInt(4), "kg", 3)
	require.NoError(t, err)
	require.NoError(t, store.Products().CreateProduct(ctx, steel))

	bom := newBOM(t, "FG", "v1", time.Now())
	require.NoError(t, store.BOMs().CreateBOM(ctx, bom))

	second, err := entities.NewBOMComponent(bom.ID, "BOLT", decimal.NewFromInt(4), decimal.Zero, 20)
	require.NoError(t, err)
	first, err := entities.NewBOMComponent(bom.ID, steel.ID, decimal.NewFromInt(2), decimal.Zero, 10)
	require.NoError(t, err)
	require.NoError(t, store.BOMs().ReplaceComponents(ctx, bom.ID, []*entities.BOMComponent{second, first}))

	components, err := store.BOMs().GetComponents(ctx, bom.ID)
	require.NoError(t, err)
	require.Len(t, components, 2)
	assert.Equal(t, steel.ID, components[0].ComponentID, "ordered by sequence")
	require.NotNil(t, components[0].Product)
	assert.Equal(t, "STEEL", components[0].Product.SKU)
	assert.Nil(t, components[1].Product)

	require.NoError(t, store.BOMs().ReplaceComponents(ctx, bom.ID, nil))
	components, err = store.BOMs().GetComponents(ctx, bom.ID)
	require.NoError(t, err)
	assert.Empty(t, components)
}
