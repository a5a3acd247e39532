// Package servicetest builds in-memory scenarios for service tests.
package servicetest

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/domain/entities"
	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/domain/tenant"
	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/infrastructure/repositories/memory"
)

// TenantID is the tenant every fixture writes to
const TenantID = "acme"

// Fixture seeds a memory store directly through its repositories
type Fixture struct {
	t     testing.TB
	Store *memory.Store
	Now   time.Time
}

func NewFixture(t testing.TB) *Fixture {
	t.Helper()
	return &Fixture{
		t:     t,
		Store: memory.NewStore(),
		Now:   time.Now().UTC(),
	}
}

// Ctx returns a context scoped to the fixture tenant
func (f *Fixture) Ctx() context.Context {
	return tenant.WithTenant(context.Background(), TenantID)
}

// Dec parses a decimal literal and fails the test on error
func Dec(t testing.TB, v string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(v)
	require.NoError(t, err)
	return d
}

func (f *Fixture) Product(sku string, typ entities.ProductType, unitCost string, leadTimeDays int) *entities.Product {
	f.t.Helper()
	p, err := entities.NewProduct(TenantID, sku, sku+" name", typ, Dec(f.t, unitCost), "ea", leadTimeDays)
	require.NoError(f.t, err)
	require.NoError(f.t, f.Store.Products().CreateProduct(f.Ctx(), p))
	return p
}

// Line is one component line of a fixture BOM
type Line struct {
	Component *entities.Product
	Quantity  string
	Scrap     string
	Phantom   bool
	UnitCost  string // empty leaves the snapshot at zero
}

// ActiveBOM creates an active default BOM for product, effective a day ago
func (f *Fixture) ActiveBOM(product *entities.Product, yield string, lines ...Line) *entities.BillOfMaterials {
	f.t.Helper()
	return f.BOM(product, "v1", yield, entities.BOMActive, lines...)
}

func (f *Fixture) BOM(product *entities.Product, version, yield string, status entities.BOMStatus, lines ...Line) *entities.BillOfMaterials {
	f.t.Helper()
	bom, err := entities.NewBillOfMaterials(TenantID, product.ID, version, Dec(f.t, yield), decimal.Zero, f.Now.Add(-24*time.Hour))
	require.NoError(f.t, err)
	bom.Status = status
	bom.IsDefault = status == entities.BOMActive
	require.NoError(f.t, f.Store.BOMs().CreateBOM(f.Ctx(), bom))

	components := make([]*entities.BOMComponent, 0, len(lines))
	for i, line := range lines {
		scrap := decimal.Zero
		if line.Scrap != "" {
			scrap = Dec(f.t, line.Scrap)
		}
		c, err := entities.NewBOMComponent(bom.ID, line.Component.ID, Dec(f.t, line.Quantity), scrap, (i+1)*10)
		require.NoError(f.t, err)
		c.IsPhantom = line.Phantom
		if line.UnitCost != "" {
			c.UnitCost = Dec(f.t, line.UnitCost)
		}
		components = append(components, c)
	}
	require.NoError(f.t, f.Store.BOMs().ReplaceComponents(f.Ctx(), bom.ID, components))
	return bom
}

// Lot receives qty units of product into WH1, received the given number of days ago
func (f *Fixture) Lot(product *entities.Product, lotNumber, qty, unitCost string, daysAgo int) *entities.InventoryLot {
	f.t.Helper()
	lot, err := entities.NewInventoryLot(TenantID, product.ID, "WH1", "A-01", lotNumber,
		Dec(f.t, qty), Dec(f.t, unitCost), f.Now.AddDate(0, 0, -daysAgo))
	require.NoError(f.t, err)
	require.NoError(f.t, f.Store.Inventory().CreateLot(f.Ctx(), lot))
	return lot
}

// ReloadLot returns the stored state of lot
func (f *Fixture) ReloadLot(lot *entities.InventoryLot) *entities.InventoryLot {
	f.t.Helper()
	got, err := f.Store.Inventory().GetLot(f.Ctx(), TenantID, lot.ID, false)
	require.NoError(f.t, err)
	return got
}
