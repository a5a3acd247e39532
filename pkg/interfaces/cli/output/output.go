// Package output renders command results as text, JSON or YAML.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/application/dto"
	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/domain/entities"
)

const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// ValidFormats defines the allowed output formats
var ValidFormats = []string{FormatText, FormatJSON, FormatYAML}

// IsValidFormat checks if the format is one of the allowed values
func IsValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// Printer writes results in one format. Structured formats marshal the
// value; text calls the renderer given with it.
type Printer struct {
	Format string
	Writer io.Writer
}

func (p *Printer) Print(v interface{}, text func(w io.Writer)) error {
	switch p.Format {
	case FormatJSON:
		enc := json.NewEncoder(p.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(p.Writer)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case FormatText, "":
		text(p.Writer)
		return nil
	default:
		return fmt.Errorf("unsupported output format: %s", p.Format)
	}
}

// ExplosionTree prints one indented line per node
func ExplosionTree(w io.Writer, root *entities.ExplosionNode) {
	fmt.Fprintf(w, "%-40s %12s %12s %12s %6s\n", "Component", "Qty", "Unit Cost", "Ext. Cost", "Lead")
	fmt.Fprintf(w, "%s\n", strings.Repeat("-", 86))
	root.Walk(func(n *entities.ExplosionNode) bool {
		label := strings.Repeat("  ", n.Level) + n.Name
		if n.IsPhantom {
			label += " (phantom)"
		}
		fmt.Fprintf(w, "%-40s %12s %12s %12s %6d\n",
			label,
			n.TotalQuantity.StringFixed(4),
			n.UnitCost.StringFixed(2),
			n.ExtendedCost.StringFixed(2),
			n.LeadTimeDays)
		return true
	})
	fmt.Fprintf(w, "\nRolled-up cost: %s\n", root.RolledUpCost.StringFixed(2))
	fmt.Fprintf(w, "Cumulative lead time: %d days\n", root.CumulativeLeadTimeDays)
	fmt.Fprintf(w, "Nodes: %d, depth: %d\n", root.NodeCount(), root.Depth())
}

// Requirements prints the requirement tree and its shortages
func Requirements(w io.Writer, root *entities.MaterialRequirement) {
	fmt.Fprintf(w, "%-40s %12s %12s %12s %12s\n", "Product", "Required", "Available", "Reserved", "Shortage")
	fmt.Fprintf(w, "%s\n", strings.Repeat("-", 92))
	for _, n := range root.Flatten() {
		fmt.Fprintf(w, "%-40s %12s %12s %12s %12s\n",
			strings.Repeat("  ", n.Level)+n.ProductName,
			n.RequiredQuantity.StringFixed(4),
			n.AvailableQuantity.StringFixed(4),
			n.ReservedQuantity.StringFixed(4),
			n.ShortageQuantity.StringFixed(4))
	}
	shortages := root.Shortages()
	if len(shortages) == 0 {
		fmt.Fprintf(w, "\n✅ No shortages\n")
		return
	}
	fmt.Fprintf(w, "\n⚠️  %d shortage(s)\n", len(shortages))
	Shortages(w, shortages)
}

func Shortages(w io.Writer, shortages []entities.Shortage) {
	for _, s := range shortages {
		fmt.Fprintf(w, "  %s\n", s)
	}
}

func Consumption(w io.Writer, result *dto.ConsumptionResult) {
	if !result.Success {
		fmt.Fprintf(w, "❌ Consumption rejected, nothing was issued\n")
		Shortages(w, result.Shortages)
		return
	}
	fmt.Fprintf(w, "%-38s %-14s %12s %12s\n", "Product", "Lot", "Quantity", "Cost")
	fmt.Fprintf(w, "%s\n", strings.Repeat("-", 79))
	for _, item := range result.ConsumedItems {
		for _, lot := range item.Lots {
			fmt.Fprintf(w, "%-38s %-14s %12s %12s\n",
				item.ProductID, lot.LotNumber, lot.Quantity.StringFixed(4), lot.TotalCost.StringFixed(2))
		}
	}
	fmt.Fprintf(w, "\nTotal cost: %s (%d transactions)\n", result.TotalCost.StringFixed(2), len(result.Transactions))
}

func Reservation(w io.Writer, result *dto.ReservationResult) {
	if !result.Success {
		fmt.Fprintf(w, "❌ Reservation rejected, nothing was reserved\n")
		Shortages(w, result.Shortages)
		return
	}
	for _, line := range result.Lines {
		fmt.Fprintf(w, "Reserved %s of %s on lot %s (%s)\n",
			line.Lot.Quantity.StringFixed(4), line.ProductID, line.Lot.LotNumber, line.Lot.WarehouseCode)
	}
}

func Release(w io.Writer, result *dto.ReleaseResult) {
	if len(result.Lines) == 0 {
		fmt.Fprintf(w, "Nothing left to release\n")
		return
	}
	for _, line := range result.Lines {
		fmt.Fprintf(w, "Released %s of %s on lot %s\n",
			line.Lot.Quantity.StringFixed(4), line.ProductID, line.Lot.LotNumber)
	}
}

func Transactions(w io.Writer, txs []*entities.InventoryTransaction) {
	fmt.Fprintf(w, "%-20s %-12s %-14s %12s %12s %-20s\n", "Date", "Type", "Lot", "Quantity", "Cost", "Reference")
	fmt.Fprintf(w, "%s\n", strings.Repeat("-", 95))
	for _, t := range txs {
		ref := ""
		if t.ReferenceType != "" || t.ReferenceID != "" {
			ref = t.ReferenceType + ":" + t.ReferenceID
		}
		fmt.Fprintf(w, "%-20s %-12s %-14s %12s %12s %-20s\n",
			t.TransactionDate.Format("2006-01-02 15:04:05"),
			t.Type,
			t.LotNumber,
			t.Quantity.StringFixed(4),
			t.TotalCost.StringFixed(2),
			ref)
	}
}

func Rate(w io.Writer, rate *dto.ConsumptionRate) {
	fmt.Fprintf(w, "Consumed %s over %d days (%d issues), %s per day\n",
		rate.TotalConsumed.StringFixed(4), rate.Days, rate.TransactionCount, rate.AveragePerDay.StringFixed(4))
}

func Balance(w io.Writer, b entities.Balance, lots []*entities.InventoryLot) {
	fmt.Fprintf(w, "On hand %s, available %s, reserved %s across %d available lot(s)\n",
		b.QuantityOnHand.StringFixed(4), b.QuantityAvailable.StringFixed(4), b.QuantityReserved.StringFixed(4), b.LotCount)
	if len(lots) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%-14s %-8s %-8s %-12s %12s %12s %12s\n", "Lot", "WH", "Loc", "Status", "On Hand", "Available", "Reserved")
	for _, lot := range lots {
		fmt.Fprintf(w, "%-14s %-8s %-8s %-12s %12s %12s %12s\n",
			lot.LotNumber, lot.WarehouseCode, lot.LocationCode, lot.Status,
			lot.QuantityOnHand.StringFixed(4), lot.QuantityAvailable.StringFixed(4), lot.QuantityReserved.StringFixed(4))
	}
}

// StockView bundles a balance with its lots for structured formats
type StockView struct {
	Balance entities.Balance         `json:"balance" yaml:"balance"`
	Lots    []*entities.InventoryLot `json:"lots" yaml:"lots"`
}

// CostView is the shallow cost of one BOM
type CostView struct {
	BOMID     string `json:"bom_id" yaml:"bom_id"`
	ProductID string `json:"product_id" yaml:"product_id"`
	TotalCost string `json:"total_cost" yaml:"total_cost"`
}
