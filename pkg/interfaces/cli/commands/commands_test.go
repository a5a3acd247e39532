package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gopkg.in/yaml.v3"

	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/application/dto"
	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/domain/entities"
	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/infrastructure/config"
)

var scenarioFiles = map[string]string{
	"products.csv": `sku,name,type,unit_cost,unit_of_measure,lead_time_days
BIKE,Bicycle,finished_good,0,ea,2
WHEEL,Wheel,component,12,ea,1
SPOKE,Spoke,raw_material,0.25,ea,5
FRAME,Frame,raw_material,80,ea,10
`,
	"boms.csv": `product_sku,version,yield_quantity,scrap_percentage,effective_date,status,is_default
BIKE,v1,1,0,2024-01-01,active,true
WHEEL,v1,1,0,2024-01-01,active,true
`,
	"components.csv": `product_sku,version,component_sku,quantity,scrap_percentage,sequence,is_phantom
BIKE,v1,WHEEL,2,0,10,false
BIKE,v1,FRAME,1,0,20,false
WHEEL,v1,SPOKE,32,5,10,false
`,
	"lots.csv": `sku,lot_number,warehouse,location,quantity,unit_cost,received_date,status
WHEEL,WH-1,WH1,A-01,3,10,2024-01-10,available
WHEEL,WH-2,WH1,A-01,5,14,2024-02-10,available
FRAME,FR-1,WH1,B-01,3,80,2024-01-20,available
SPOKE,SP-1,WH1,C-01,40,0.25,2024-01-15,available
`,
}

func scenario(t *testing.T) string {
	dir := t.TempDir()
	for name, content := range scenarioFiles {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cfg := config.LoadEnv()
	cfg.Store.Driver = config.StoreMemory
	cfg.Lock.Backend = config.LockMemory
	cfg.App.TenantID = "acme"

	buf := &bytes.Buffer{}
	cmd := NewRootCommand(cfg, zaptest.NewLogger(t))
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(append([]string{"--scenario", scenario(t)}, args...))
	err := cmd.Execute()
	return buf.String(), err
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand(config.LoadEnv(), nil)
	for _, name := range []string{"explode", "cost", "requirements", "validate", "consume", "reserve", "release", "history", "stock", "receive"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}

	format := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, format)
	assert.Equal(t, "text", format.DefValue)
}

func TestInvalidFormat(t *testing.T) {
	_, err := run(t, "--format", "xml", "validate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestExplode(t *testing.T) {
	out, err := run(t, "explode", "BIKE", "-q", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "Wheel")
	assert.Contains(t, out, "Spoke")
	assert.Contains(t, out, "Cumulative lead time: 12 days")

	out, err = run(t, "--format", "json", "explode", "BIKE", "-q", "2")
	require.NoError(t, err)
	var root entities.ExplosionNode
	require.NoError(t, json.Unmarshal([]byte(out), &root))
	require.Len(t, root.Children, 2)
	spokes := root.Children[0].Children[0]
	assert.True(t, spokes.TotalQuantity.Equal(decimal.RequireFromString("134.4")), "2 x 2 x 32 x 1.05, got %s", spokes.TotalQuantity)
}

func TestRequirementsYAML(t *testing.T) {
	out, err := run(t, "--format", "yaml", "requirements", "BIKE", "-q", "2", "--deep")
	require.NoError(t, err)

	var req struct {
		ProductID  string `yaml:"product_id"`
		Components []struct {
			ShortageQuantity string `yaml:"shortage_quantity"`
			Components       []struct {
				ShortageQuantity string `yaml:"shortage_quantity"`
			} `yaml:"components"`
		} `yaml:"components"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(out), &req))
	require.Len(t, req.Components, 2)
	assert.Equal(t, "0", req.Components[0].ShortageQuantity, "4 wheels needed, 8 on hand")
	require.Len(t, req.Components[0].Components, 1)
	assert.Equal(t, "94.4", req.Components[0].Components[0].ShortageQuantity, "134.4 spokes needed, 40 on hand")
}

func TestConsume(t *testing.T) {
	out, err := run(t, "--format", "json", "consume", "BIKE", "-q", "2", "--reference-id", "WO-1")
	require.NoError(t, err)

	var result dto.ConsumptionResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.True(t, result.Success)
	require.Len(t, result.ConsumedItems, 2)
	assert.True(t, result.ConsumedItems[0].TotalCost.Equal(decimal.NewFromInt(44)), "3 x 10 + 1 x 14")
	assert.True(t, result.TotalCost.Equal(decimal.NewFromInt(204)), "44 + 2 x 80")
	assert.Len(t, result.Transactions, 3)
}

func TestConsume_Shortage(t *testing.T) {
	out, err := run(t, "consume", "BIKE", "-q", "5", "--reference-id", "WO-2")
	require.Error(t, err)
	assert.ErrorIs(t, err, entities.ErrInsufficientMaterials)
	assert.Contains(t, out, "Consumption rejected")
}

func TestConsume_RequiresReference(t *testing.T) {
	out, err := run(t, "consume", "BIKE", "-q", "1")
	require.ErrorIs(t, err, entities.ErrInvalidReference)
	assert.NotContains(t, out, "Total cost")
}

func TestReserve(t *testing.T) {
	out, err := run(t, "reserve", "WHEEL=4", "--reference-id", "SO-1")
	require.NoError(t, err)
	assert.Contains(t, out, "on lot WH-2", "first lot holding the whole line")

	_, err = run(t, "reserve", "WHEEL=6", "--reference-id", "SO-1")
	assert.ErrorIs(t, err, entities.ErrInsufficientInventory)

	_, err = run(t, "reserve", "WHEEL", "--reference-id", "SO-1")
	assert.Error(t, err)
}

func TestValidateAndCost(t *testing.T) {
	out, err := run(t, "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "2 active BOM(s) valid")

	out, err = run(t, "--format", "json", "cost", "BIKE")
	require.NoError(t, err)
	var view struct {
		TotalCost string `json:"total_cost"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, "104.0000", view.TotalCost, "2 x 12 + 80")
}

func TestStockAndHistory(t *testing.T) {
	out, err := run(t, "stock", "WHEEL")
	require.NoError(t, err)
	assert.Contains(t, out, "available 8.0000")
	assert.Contains(t, out, "WH-1")

	out, err = run(t, "history", "WHEEL", "--days", "7")
	require.NoError(t, err)
	assert.Contains(t, out, "Consumed 0.0000 over 7 days")
}
