package commands

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/application/dto"
	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/application/services/allocation"
	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/application/services/ledger"
	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/application/services/mrp"
	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/domain/entities"
	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/interfaces/cli/output"
)

func NewRequirementsCommand(opts *RootOptions) *cobra.Command {
	var quantity, warehouse string
	var deep bool

	cmd := &cobra.Command{
		Use:   "requirements <product>",
		Short: "Check what building a product needs against inventory",
		Long:  "Compute the requirement tree of a build and its shortages. Nothing is reserved.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := opts.app.Context(cmd.Context())
			product, err := opts.app.ResolveProduct(ctx, args[0])
			if err != nil {
				return err
			}
			qty, err := parseQuantity("quantity", quantity)
			if err != nil {
				return err
			}
			req, err := opts.app.Planner.CalculateRequirements(ctx, mrp.RequirementRequest{
				ProductID:            product.ID,
				Quantity:             qty,
				IncludeSubComponents: deep,
				WarehouseCode:        warehouse,
			})
			if err != nil {
				return err
			}
			return opts.printer(cmd.OutOrStdout()).Print(req, func(w io.Writer) {
				output.Requirements(w, req)
			})
		},
	}
	cmd.Flags().StringVarP(&quantity, "quantity", "q", "1", "quantity to build")
	cmd.Flags().BoolVar(&deep, "deep", false, "descend into sub-assemblies")
	cmd.Flags().StringVar(&warehouse, "warehouse", "", "restrict availability to one warehouse")
	return cmd
}

func NewConsumeCommand(opts *RootOptions) *cobra.Command {
	var quantity, warehouse string
	var ref reference

	cmd := &cobra.Command{
		Use:   "consume <product>",
		Short: "Issue the direct components of a build FIFO from inventory",
		Long: `Issue the direct components needed to build a product, oldest lots first.
If any component is short nothing is issued.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := opts.app.Context(cmd.Context())
			product, err := opts.app.ResolveProduct(ctx, args[0])
			if err != nil {
				return err
			}
			qty, err := parseQuantity("quantity", quantity)
			if err != nil {
				return err
			}
			req, err := opts.app.Planner.CalculateRequirements(ctx, mrp.RequirementRequest{
				ProductID:     product.ID,
				Quantity:      qty,
				WarehouseCode: warehouse,
			})
			if err != nil {
				return err
			}

			result, err := opts.app.Engine.Consume(ctx, allocation.ConsumeRequest{
				Requirements:  req.Components,
				ReferenceType: ref.Type,
				ReferenceID:   ref.ID,
				Notes:         ref.Notes,
				WarehouseCode: warehouse,
			})
			if result != nil {
				if perr := opts.printer(cmd.OutOrStdout()).Print(result, func(w io.Writer) {
					output.Consumption(w, result)
				}); perr != nil {
					return perr
				}
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&quantity, "quantity", "q", "1", "quantity to build")
	cmd.Flags().StringVar(&warehouse, "warehouse", "", "issue from one warehouse only")
	addReferenceFlags(cmd, &ref, "work_order")
	return cmd
}

// parseLines reads PRODUCT=QTY[@WAREHOUSE] arguments
func parseLines(opts *RootOptions, cmd *cobra.Command, args []string) ([]allocation.ReserveLine, error) {
	ctx := opts.app.Context(cmd.Context())
	lines := make([]allocation.ReserveLine, 0, len(args))
	for _, arg := range args {
		ref, qtyPart, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("invalid line %q: want PRODUCT=QTY[@WAREHOUSE]", arg)
		}
		qtyPart, warehouse, _ := strings.Cut(qtyPart, "@")
		qty, err := parseQuantity("line", qtyPart)
		if err != nil {
			return nil, err
		}
		product, err := opts.app.ResolveProduct(ctx, ref)
		if err != nil {
			return nil, err
		}
		lines = append(lines, allocation.ReserveLine{ProductID: product.ID, Quantity: qty, WarehouseCode: warehouse})
	}
	return lines, nil
}

func NewReserveCommand(opts *RootOptions) *cobra.Command {
	var ref reference

	cmd := &cobra.Command{
		Use:   "reserve PRODUCT=QTY[@WAREHOUSE]...",
		Short: "Earmark stock for a reference, one lot per line",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lines, err := parseLines(opts, cmd, args)
			if err != nil {
				return err
			}
			result, err := opts.app.Engine.Reserve(opts.app.Context(cmd.Context()), allocation.ReserveRequest{
				Lines:         lines,
				ReferenceType: ref.Type,
				ReferenceID:   ref.ID,
				Notes:         ref.Notes,
			})
			if result != nil {
				if perr := opts.printer(cmd.OutOrStdout()).Print(result, func(w io.Writer) {
					output.Reservation(w, result)
				}); perr != nil {
					return perr
				}
			}
			return err
		},
	}
	addReferenceFlags(cmd, &ref, "sales_order")
	return cmd
}

func NewReleaseCommand(opts *RootOptions) *cobra.Command {
	var ref reference

	cmd := &cobra.Command{
		Use:   "release",
		Short: "Return every outstanding reservation of a reference",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := opts.app.Engine.Release(opts.app.Context(cmd.Context()), allocation.ReleaseRequest{
				ReferenceType: ref.Type,
				ReferenceID:   ref.ID,
				Notes:         ref.Notes,
			})
			if err != nil {
				return err
			}
			return opts.printer(cmd.OutOrStdout()).Print(result, func(w io.Writer) {
				output.Release(w, result)
			})
		},
	}
	addReferenceFlags(cmd, &ref, "sales_order")
	return cmd
}

// historyView is the structured form of a history run
type historyView struct {
	Transactions []*entities.InventoryTransaction `json:"transactions" yaml:"transactions"`
	Rate         *dto.ConsumptionRate             `json:"rate,omitempty" yaml:"rate,omitempty"`
}

func NewHistoryCommand(opts *RootOptions) *cobra.Command {
	var warehouse string
	var limit, days int

	cmd := &cobra.Command{
		Use:   "history <product>",
		Short: "List issue transactions of a product, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := opts.app.Context(cmd.Context())
			product, err := opts.app.ResolveProduct(ctx, args[0])
			if err != nil {
				return err
			}
			view := historyView{}
			query := allocation.HistoryQuery{ProductID: product.ID, WarehouseCode: warehouse, Limit: limit}
			if days > 0 {
				query.From = time.Now().UTC().AddDate(0, 0, -days)
				if view.Rate, err = opts.app.Engine.ConsumptionRate(ctx, product.ID, days); err != nil {
					return err
				}
			}
			if view.Transactions, err = opts.app.Engine.ConsumptionHistory(ctx, query); err != nil {
				return err
			}
			return opts.printer(cmd.OutOrStdout()).Print(view, func(w io.Writer) {
				output.Transactions(w, view.Transactions)
				if view.Rate != nil {
					fmt.Fprintln(w)
					output.Rate(w, view.Rate)
				}
			})
		},
	}
	cmd.Flags().StringVar(&warehouse, "warehouse", "", "only this warehouse")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of transactions, 0 for all")
	cmd.Flags().IntVar(&days, "days", 0, "window in days; also prints the average daily consumption")
	return cmd
}

func NewStockCommand(opts *RootOptions) *cobra.Command {
	var warehouse string

	cmd := &cobra.Command{
		Use:   "stock <product>",
		Short: "Show the balance and lots of a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := opts.app.Context(cmd.Context())
			product, err := opts.app.ResolveProduct(ctx, args[0])
			if err != nil {
				return err
			}
			balance, err := opts.app.Ledger.Availability(ctx, product.ID, warehouse)
			if err != nil {
				return err
			}
			lots, err := opts.app.Ledger.Lots(ctx, product.ID, warehouse)
			if err != nil {
				return err
			}
			view := output.StockView{Balance: balance, Lots: lots}
			return opts.printer(cmd.OutOrStdout()).Print(view, func(w io.Writer) {
				output.Balance(w, balance, lots)
			})
		},
	}
	cmd.Flags().StringVar(&warehouse, "warehouse", "", "only this warehouse")
	return cmd
}

func NewReceiveCommand(opts *RootOptions) *cobra.Command {
	var quantity, unitCost, lotNumber, warehouse, location string
	var ref reference

	cmd := &cobra.Command{
		Use:   "receive <product>",
		Short: "Receive a new lot into inventory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := opts.app.Context(cmd.Context())
			product, err := opts.app.ResolveProduct(ctx, args[0])
			if err != nil {
				return err
			}
			qty, err := parseQuantity("quantity", quantity)
			if err != nil {
				return err
			}
			cost, err := parseQuantity("unit-cost", unitCost)
			if err != nil {
				return err
			}
			lot, err := opts.app.Ledger.Receive(ctx, ledger.ReceiptInput{
				ProductID:     product.ID,
				WarehouseCode: warehouse,
				LocationCode:  location,
				LotNumber:     lotNumber,
				Quantity:      qty,
				UnitCost:      cost,
				ReferenceType: ref.Type,
				ReferenceID:   ref.ID,
				Notes:         ref.Notes,
			})
			if err != nil {
				return err
			}
			return opts.printer(cmd.OutOrStdout()).Print(lot, func(w io.Writer) {
				fmt.Fprintf(w, "Received lot %s: %s %s of %s at %s\n",
					lot.LotNumber, lot.QuantityOnHand.StringFixed(4), product.UnitOfMeasure, product.SKU, lot.UnitCost.StringFixed(2))
			})
		},
	}
	cmd.Flags().StringVarP(&quantity, "quantity", "q", "", "received quantity")
	cmd.Flags().StringVar(&unitCost, "unit-cost", "0", "unit cost, 0 takes the product's standard cost")
	cmd.Flags().StringVar(&lotNumber, "lot", "", "lot number")
	cmd.Flags().StringVar(&warehouse, "warehouse", "WH1", "warehouse code")
	cmd.Flags().StringVar(&location, "location", "", "location code")
	addReferenceFlags(cmd, &ref, "purchase_order")
	_ = cmd.MarkFlagRequired("quantity")
	_ = cmd.MarkFlagRequired("lot")
	return cmd
}
