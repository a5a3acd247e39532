package csv

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/domain/entities"
	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/domain/repositories"
	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/infrastructure/repositories/memory"
)

const tenantID = "acme"

func writeScenario(t *testing.T, files map[string]string) string {
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

const products = `sku,name,type,unit_cost,unit_of_measure,lead_time_days
BIKE,Bicycle,finished_good,0,ea,2
WHEEL,Wheel,component,0,ea,1
SPOKE,Spoke,raw_material,0.25,ea,5
FRAME,Frame,raw_material,80,ea,10
`

const boms = `product_sku,version,yield_quantity,scrap_percentage,effective_date,status,is_default
BIKE,v1,1,0,2024-01-01,active,true
WHEEL,v1,1,,2024-01-01,active,true
WHEEL,v0,1,,2023-01-01,obsolete,false
`

const components = `product_sku,version,component_sku,quantity,scrap_percentage,sequence,is_phantom
BIKE,v1,WHEEL,2,0,10,false
BIKE,v1,FRAME,1,0,20,false
WHEEL,v1,SPOKE,32,5,10,false
`

const lots = `sku,lot_number,warehouse,location,quantity,unit_cost,received_date,status
SPOKE,SP-2,WH1,A-01,100,0.30,2024-02-01,available
SPOKE,SP-1,WH1,A-01,50,0.25,2024-01-15,available
FRAME,FR-1,WH1,B-01,3,80,2024-01-20,quarantine
`

func TestLoadScenario(t *testing.T) {
	dir := writeScenario(t, map[string]string{
		ProductsFile:   products,
		BOMsFile:       boms,
		ComponentsFile: components,
		LotsFile:       lots,
	})
	store := memory.NewStore()
	ctx := context.Background()

	summary, err := NewLoader(zaptest.NewLogger(t)).LoadScenario(ctx, dir, store, tenantID)
	require.NoError(t, err)
	assert.Equal(t, &Summary{Products: 4, BOMs: 3, Components: 3, Lots: 3}, summary)

	all, err := store.Products().ListProducts(ctx, tenantID)
	require.NoError(t, err)
	require.Len(t, all, 4)
	bySKU := make(map[string]*entities.Product)
	for _, p := range all {
		bySKU[p.SKU] = p
	}

	wheelBOM, err := store.BOMs().GetActiveBOM(ctx, tenantID, bySKU["WHEEL"].ID, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "v1", wheelBOM.Version)
	assert.True(t, wheelBOM.IsDefault)

	lines, err := store.BOMs().GetComponents(ctx, wheelBOM.ID)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, bySKU["SPOKE"].ID, lines[0].ComponentID)
	assert.True(t, lines[0].ScrapPercentage.Equal(decimal.NewFromInt(5)))
	assert.True(t, lines[0].UnitCost.Equal(decimal.RequireFromString("0.25")), "cost snapshot from product")

	spokes, err := store.Inventory().FindLots(ctx, repositories.LotQuery{TenantID: tenantID, ProductID: bySKU["SPOKE"].ID})
	require.NoError(t, err)
	require.Len(t, spokes, 2)
	assert.Equal(t, "SP-1", spokes[0].LotNumber, "FIFO by received date, not file order")

	frames, err := store.Inventory().FindLots(ctx, repositories.LotQuery{
		TenantID:  tenantID,
		ProductID: bySKU["FRAME"].ID,
		Statuses:  []entities.LotStatus{entities.LotAvailable},
	})
	require.NoError(t, err)
	assert.Empty(t, frames)
}

func TestLoadScenario_OnlyProductsRequired(t *testing.T) {
	dir := writeScenario(t, map[string]string{ProductsFile: products})
	summary, err := NewLoader(nil).LoadScenario(context.Background(), dir, memory.NewStore(), tenantID)
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Products)
	assert.Zero(t, summary.Lots)

	_, err = NewLoader(nil).LoadScenario(context.Background(), t.TempDir(), memory.NewStore(), tenantID)
	assert.Error(t, err)
}

func TestLoadScenario_UnknownSKURollsBack(t *testing.T) {
	dir := writeScenario(t, map[string]string{
		ProductsFile: products,
		LotsFile: `sku,lot_number,warehouse,location,quantity,unit_cost,received_date,status
SPOKE,SP-1,WH1,A-01,50,0.25,2024-01-15,available
NOPE,X-1,WH1,A-01,1,1,2024-01-15,available
`,
	})
	store := memory.NewStore()

	_, err := NewLoader(nil).LoadScenario(context.Background(), dir, store, tenantID)
	require.Error(t, err)
	assert.ErrorIs(t, err, entities.ErrProductNotFound)
	assert.Contains(t, err.Error(), "lots.csv row 3")
	assert.Zero(t, store.Stats().Products, "nothing committed")
}

func TestReaders_Errors(t *testing.T) {
	tests := []struct {
		name    string
		read    func(string) error
		input   string
		wantErr string
	}{
		{
			name:    "header mismatch",
			read:    func(s string) error { _, err := ReadProducts(strings.NewReader(s)); return err },
			input:   "sku,name\nA,B\n",
			wantErr: "header mismatch",
		},
		{
			name:    "bad product type",
			read:    func(s string) error { _, err := ReadProducts(strings.NewReader(s)); return err },
			input:   "sku,name,type,unit_cost,unit_of_measure,lead_time_days\nA,a,gadget,1,ea,1\n",
			wantErr: "row 2: invalid type",
		},
		{
			name:    "bad decimal",
			read:    func(s string) error { _, err := ReadComponents(strings.NewReader(s)); return err },
			input:   "product_sku,version,component_sku,quantity,scrap_percentage,sequence,is_phantom\nA,v1,B,two,0,10,false\n",
			wantErr: "row 2: invalid quantity",
		},
		{
			name:    "bad date",
			read:    func(s string) error { _, err := ReadBOMs(strings.NewReader(s)); return err },
			input:   "product_sku,version,yield_quantity,scrap_percentage,effective_date,status,is_default\nA,v1,1,0,01/02/2024,active,true\n",
			wantErr: "row 2: invalid effective_date",
		},
		{
			name:    "bad lot status",
			read:    func(s string) error { _, err := ReadLots(strings.NewReader(s)); return err },
			input:   "sku,lot_number,warehouse,location,quantity,unit_cost,received_date,status\nA,L,WH1,A,1,1,2024-01-01,lost\n",
			wantErr: "row 2: invalid status",
		},
		{
			name:    "empty file",
			read:    func(s string) error { _, err := ReadLots(strings.NewReader(s)); return err },
			input:   "",
			wantErr: "missing header",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.read(tt.input)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
