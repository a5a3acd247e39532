// Package csv seeds a store from a scenario directory of CSV files.
package csv

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/domain/entities"
	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/domain/repositories"
	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/infrastructure/logging"
)

// Scenario file names. Only products.csv is mandatory.
const (
	ProductsFile   = "products.csv"
	BOMsFile       = "boms.csv"
	ComponentsFile = "components.csv"
	LotsFile       = "lots.csv"
)

const dateLayout = "2006-01-02"

var (
	productsHeader   = []string{"sku", "name", "type", "unit_cost", "unit_of_measure", "lead_time_days"}
	bomsHeader       = []string{"product_sku", "version", "yield_quantity", "scrap_percentage", "effective_date", "status", "is_default"}
	componentsHeader = []string{"product_sku", "version", "component_sku", "quantity", "scrap_percentage", "sequence", "is_phantom"}
	lotsHeader       = []string{"sku", "lot_number", "warehouse", "location", "quantity", "unit_cost", "received_date", "status"}
)

// ProductRow is one line of products.csv
type ProductRow struct {
	SKU           string
	Name          string
	Type          entities.ProductType
	UnitCost      decimal.Decimal
	UnitOfMeasure string
	LeadTimeDays  int
}

// BOMRow is one line of boms.csv
type BOMRow struct {
	ProductSKU      string
	Version         string
	YieldQuantity   decimal.Decimal
	ScrapPercentage decimal.Decimal
	EffectiveDate   time.Time
	Status          entities.BOMStatus
	IsDefault       bool
}

// ComponentRow is one line of components.csv, keyed by parent SKU and BOM version
type ComponentRow struct {
	ProductSKU      string
	Version         string
	ComponentSKU    string
	Quantity        decimal.Decimal
	ScrapPercentage decimal.Decimal
	Sequence        int
	IsPhantom       bool
}

// LotRow is one line of lots.csv
type LotRow struct {
	SKU           string
	LotNumber     string
	WarehouseCode string
	LocationCode  string
	Quantity      decimal.Decimal
	UnitCost      decimal.Decimal
	ReceivedDate  time.Time
	Status        entities.LotStatus
}

// Summary counts what a scenario load wrote
type Summary struct {
	Products   int
	BOMs       int
	Components int
	Lots       int
}

// Loader handles loading scenario data from CSV files
type Loader struct {
	logger *zap.Logger
}

func NewLoader(logger *zap.Logger) *Loader {
	return &Loader{logger: logging.OrNop(logger).Named("csv")}
}

// LoadScenario reads every scenario file in dir and writes it to store for
// tenantID in one unit of work. SKUs are resolved to the generated IDs.
func (l *Loader) LoadScenario(ctx context.Context, dir string, store repositories.Store, tenantID string) (*Summary, error) {
	var products []ProductRow
	var boms []BOMRow
	var components []ComponentRow
	var lots []LotRow

	if err := readFile(filepath.Join(dir, ProductsFile), true, func(r io.Reader) (err error) {
		products, err = ReadProducts(r)
		return err
	}); err != nil {
		return nil, err
	}
	if err := readFile(filepath.Join(dir, BOMsFile), false, func(r io.Reader) (err error) {
		boms, err = ReadBOMs(r)
		return err
	}); err != nil {
		return nil, err
	}
	if err := readFile(filepath.Join(dir, ComponentsFile), false, func(r io.Reader) (err error) {
		components, err = ReadComponents(r)
		return err
	}); err != nil {
		return nil, err
	}
	if err := readFile(filepath.Join(dir, LotsFile), false, func(r io.Reader) (err error) {
		lots, err = ReadLots(r)
		return err
	}); err != nil {
		return nil, err
	}

	summary := &Summary{}
	err := store.WithinTx(ctx, func(ctx context.Context, tx repositories.Repositories) error {
		bySKU := make(map[string]*entities.Product, len(products))
		for i, row := range products {
			p, err := entities.NewProduct(tenantID, row.SKU, row.Name, row.Type, row.UnitCost, row.UnitOfMeasure, row.LeadTimeDays)
			if err != nil {
				return fmt.Errorf("%s row %d: %w", ProductsFile, i+2, err)
			}
			if _, dup := bySKU[row.SKU]; dup {
				return fmt.Errorf("%s row %d: duplicate sku %s", ProductsFile, i+2, row.SKU)
			}
			if err := tx.Products().CreateProduct(ctx, p); err != nil {
				return fmt.Errorf("%s row %d: %w", ProductsFile, i+2, err)
			}
			bySKU[row.SKU] = p
		}
		summary.Products = len(products)

		lookup := func(file string, row int, sku string) (*entities.Product, error) {
			p, ok := bySKU[sku]
			if !ok {
				return nil, fmt.Errorf("%s row %d: %w: unknown sku %s", file, row, entities.ErrProductNotFound, sku)
			}
			return p, nil
		}

		byVersion := make(map[string]*entities.BillOfMaterials, len(boms))
		for i, row := range boms {
			p, err := lookup(BOMsFile, i+2, row.ProductSKU)
			if err != nil {
				return err
			}
			bom, err := entities.NewBillOfMaterials(tenantID, p.ID, row.Version, row.YieldQuantity, row.ScrapPercentage, row.EffectiveDate)
			if err != nil {
				return fmt.Errorf("%s row %d: %w", BOMsFile, i+2, err)
			}
			bom.Status = row.Status
			bom.IsDefault = row.IsDefault
			if err := tx.BOMs().CreateBOM(ctx, bom); err != nil {
				return fmt.Errorf("%s row %d: %w", BOMsFile, i+2, err)
			}
			byVersion[row.ProductSKU+"@"+row.Version] = bom
		}
		summary.BOMs = len(boms)

		lines := make(map[string][]*entities.BOMComponent)
		var order []string
		for i, row := range components {
			bom, ok := byVersion[row.ProductSKU+"@"+row.Version]
			if !ok {
				return fmt.Errorf("%s row %d: %w: no BOM %s version %s", ComponentsFile, i+2, entities.ErrBOMNotFound, row.ProductSKU, row.Version)
			}
			p, err := lookup(ComponentsFile, i+2, row.ComponentSKU)
			if err != nil {
				return err
			}
			c, err := entities.NewBOMComponent(bom.ID, p.ID, row.Quantity, row.ScrapPercentage, row.Sequence)
			if err != nil {
				return fmt.Errorf("%s row %d: %w", ComponentsFile, i+2, err)
			}
			c.IsPhantom = row.IsPhantom
			c.UnitCost = p.UnitCost
			if _, seen := lines[bom.ID]; !seen {
				order = append(order, bom.ID)
			}
			lines[bom.ID] = append(lines[bom.ID], c)
		}
		for _, bomID := range order {
			if err := tx.BOMs().ReplaceComponents(ctx, bomID, lines[bomID]); err != nil {
				return fmt.Errorf("failed to write components of BOM %s: %w", bomID, err)
			}
		}
		summary.Components = len(components)

		for i, row := range lots {
			p, err := lookup(LotsFile, i+2, row.SKU)
			if err != nil {
				return err
			}
			lot, err := entities.NewInventoryLot(tenantID, p.ID, row.WarehouseCode, row.LocationCode,
				row.LotNumber, row.Quantity, row.UnitCost, row.ReceivedDate)
			if err != nil {
				return fmt.Errorf("%s row %d: %w", LotsFile, i+2, err)
			}
			lot.Status = row.Status
			if err := tx.Inventory().CreateLot(ctx, lot); err != nil {
				return fmt.Errorf("%s row %d: %w", LotsFile, i+2, err)
			}
		}
		summary.Lots = len(lots)
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("scenario loaded",
		zap.String("dir", dir),
		zap.String("tenant_id", tenantID),
		zap.Int("products", summary.Products),
		zap.Int("boms", summary.BOMs),
		zap.Int("components", summary.Components),
		zap.Int("lots", summary.Lots))
	return summary, nil
}

func readFile(path string, required bool, fn func(io.Reader) error) error {
	file, err := os.Open(path)
	if err != nil {
		if !required && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	if err := fn(file); err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return nil
}

// readRecords validates the header and hands every data row to fn. Row
// numbers in errors count the header as row 1.
func readRecords(r io.Reader, expectedHeader []string, fn func(record []string) error) error {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return fmt.Errorf("failed to read CSV: %w", err)
	}
	if len(records) == 0 {
		return fmt.Errorf("missing header")
	}

	header := records[0]
	if !validateHeader(header, expectedHeader) {
		return fmt.Errorf("header mismatch. Expected: %v, Got: %v", expectedHeader, header)
	}

	for i, record := range records[1:] {
		if len(record) != len(expectedHeader) {
			return fmt.Errorf("row %d: expected %d columns, got %d", i+2, len(expectedHeader), len(record))
		}
		if err := fn(record); err != nil {
			return fmt.Errorf("row %d: %w", i+2, err)
		}
	}
	return nil
}

func ReadProducts(r io.Reader) ([]ProductRow, error) {
	var rows []ProductRow
	err := readRecords(r, productsHeader, func(record []string) error {
		typ := entities.ProductType(strings.ToLower(record[2]))
		if !typ.IsValid() {
			return fmt.Errorf("invalid type: %s (expected raw_material, component, finished_good or consumable)", record[2])
		}
		unitCost, err := parseDecimal("unit_cost", record[3])
		if err != nil {
			return err
		}
		leadTime, err := strconv.Atoi(record[5])
		if err != nil {
			return fmt.Errorf("invalid lead_time_days: %s", record[5])
		}
		rows = append(rows, ProductRow{
			SKU:           record[0],
			Name:          record[1],
			Type:          typ,
			UnitCost:      unitCost,
			UnitOfMeasure: record[4],
			LeadTimeDays:  leadTime,
		})
		return nil
	})
	return rows, err
}

func ReadBOMs(r io.Reader) ([]BOMRow, error) {
	var rows []BOMRow
	err := readRecords(r, bomsHeader, func(record []string) error {
		yield, err := parseDecimal("yield_quantity", record[2])
		if err != nil {
			return err
		}
		scrap, err := parseOptionalDecimal("scrap_percentage", record[3])
		if err != nil {
			return err
		}
		effective, err := time.Parse(dateLayout, record[4])
		if err != nil {
			return fmt.Errorf("invalid effective_date format: %s (expected YYYY-MM-DD)", record[4])
		}
		status, err := parseBOMStatus(record[5])
		if err != nil {
			return err
		}
		isDefault, err := parseBool("is_default", record[6])
		if err != nil {
			return err
		}
		rows = append(rows, BOMRow{
			ProductSKU:      record[0],
			Version:         record[1],
			YieldQuantity:   yield,
			ScrapPercentage: scrap,
			EffectiveDate:   effective,
			Status:          status,
			IsDefault:       isDefault,
		})
		return nil
	})
	return rows, err
}

func ReadComponents(r io.Reader) ([]ComponentRow, error) {
	var rows []ComponentRow
	err := readRecords(r, componentsHeader, func(record []string) error {
		qty, err := parseDecimal("quantity", record[3])
		if err != nil {
			return err
		}
		scrap, err := parseOptionalDecimal("scrap_percentage", record[4])
		if err != nil {
			return err
		}
		sequence, err := strconv.Atoi(record[5])
		if err != nil {
			return fmt.Errorf("invalid sequence: %s", record[5])
		}
		phantom, err := parseBool("is_phantom", record[6])
		if err != nil {
			return err
		}
		rows = append(rows, ComponentRow{
			ProductSKU:      record[0],
			Version:         record[1],
			ComponentSKU:    record[2],
			Quantity:        qty,
			ScrapPercentage: scrap,
			Sequence:        sequence,
			IsPhantom:       phantom,
		})
		return nil
	})
	return rows, err
}

func ReadLots(r io.Reader) ([]LotRow, error) {
	var rows []LotRow
	err := readRecords(r, lotsHeader, func(record []string) error {
		qty, err := parseDecimal("quantity", record[4])
		if err != nil {
			return err
		}
		unitCost, err := parseDecimal("unit_cost", record[5])
		if err != nil {
			return err
		}
		received, err := time.Parse(dateLayout, record[6])
		if err != nil {
			return fmt.Errorf("invalid received_date format: %s (expected YYYY-MM-DD)", record[6])
		}
		status, err := parseLotStatus(record[7])
		if err != nil {
			return err
		}
		rows = append(rows, LotRow{
			SKU:           record[0],
			LotNumber:     record[1],
			WarehouseCode: record[2],
			LocationCode:  record[3],
			Quantity:      qty,
			UnitCost:      unitCost,
			ReceivedDate:  received,
			Status:        status,
		})
		return nil
	})
	return rows, err
}

// Helper functions for parsing CSV records

func validateHeader(actual, expected []string) bool {
	if len(actual) != len(expected) {
		return false
	}

	for i, col := range expected {
		if strings.ToLower(strings.TrimSpace(actual[i])) != col {
			return false
		}
	}

	return true
}

func parseDecimal(field, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s: %s", field, s)
	}
	return d, nil
}

func parseOptionalDecimal(field, s string) (decimal.Decimal, error) {
	if strings.TrimSpace(s) == "" {
		return decimal.Zero, nil
	}
	return parseDecimal(field, s)
}

func parseBool(field, s string) (bool, error) {
	if strings.TrimSpace(s) == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return false, fmt.Errorf("invalid %s: %s", field, s)
	}
	return b, nil
}

func parseBOMStatus(s string) (entities.BOMStatus, error) {
	switch status := entities.BOMStatus(strings.ToLower(s)); status {
	case entities.BOMDraft, entities.BOMPending, entities.BOMActive, entities.BOMObsolete:
		return status, nil
	default:
		return entities.BOMDraft, fmt.Errorf("invalid status: %s (expected draft, pending, active or obsolete)", s)
	}
}

func parseLotStatus(s string) (entities.LotStatus, error) {
	switch status := entities.LotStatus(strings.ToLower(s)); status {
	case entities.LotAvailable, entities.LotQuarantine, entities.LotDepleted, entities.LotExpired:
		return status, nil
	default:
		return entities.LotAvailable, fmt.Errorf("invalid status: %s (expected available, quarantine, depleted or expired)", s)
	}
}
