package commands

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/domain/entities"
	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/domain/services"
	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/interfaces/cli/output"
)

func NewExplodeCommand(opts *RootOptions) *cobra.Command {
	var quantity string
	var maxLevel int

	cmd := &cobra.Command{
		Use:   "explode <product>",
		Short: "Explode the active BOM of a product",
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
			root, err := opts.app.Resolver.Explode(ctx, product.ID, qty, maxLevel)
			if err != nil {
				return err
			}
			return opts.printer(cmd.OutOrStdout()).Print(root, func(w io.Writer) {
				output.ExplosionTree(w, root)
			})
		},
	}
	cmd.Flags().StringVarP(&quantity, "quantity", "q", "1", "quantity to build")
	cmd.Flags().IntVar(&maxLevel, "max-level", 0, "depth guard, 0 uses BOM_MAX_LEVEL")
	return cmd
}

func NewCostCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cost <bom-id|product>",
		Short: "Sum the component costs of one BOM level",
		Long: `Sum quantity x unit cost x scrap factor over the direct components of a BOM.
Given a product, its active BOM is used.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := opts.app.Context(cmd.Context())
			bom, err := opts.app.Store.BOMs().GetBOM(ctx, opts.app.TenantID, args[0])
			if errors.Is(err, entities.ErrBOMNotFound) {
				product, perr := opts.app.ResolveProduct(ctx, args[0])
				if perr != nil {
					return perr
				}
				bom, err = opts.app.Store.BOMs().GetActiveBOM(ctx, opts.app.TenantID, product.ID, time.Now().UTC())
			}
			if err != nil {
				return err
			}

			total, err := opts.app.Resolver.CalculateTotalCost(ctx, bom.ID)
			if err != nil {
				return err
			}
			view := output.CostView{BOMID: bom.ID, ProductID: bom.ProductID, TotalCost: total.StringFixed(4)}
			return opts.printer(cmd.OutOrStdout()).Print(view, func(w io.Writer) {
				fmt.Fprintf(w, "BOM %s (version %s): %s\n", bom.ID, bom.Version, total.StringFixed(2))
			})
		},
	}
}

// validationView is the structured form of a validate run
type validationView struct {
	Valid      bool       `json:"valid" yaml:"valid"`
	BOMs       int        `json:"boms" yaml:"boms"`
	CyclePaths [][]string `json:"cycle_paths,omitempty" yaml:"cycle_paths,omitempty"`
	EmptyBOMs  []string   `json:"empty_boms,omitempty" yaml:"empty_boms,omitempty"`
	Errors     []string   `json:"errors,omitempty" yaml:"errors,omitempty"`
}

func NewValidateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check active BOMs for cycles, duplicate lines and empty BOMs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := opts.app.Context(cmd.Context())
			repos := opts.app.Store

			products, err := repos.Products().ListProducts(ctx, opts.app.TenantID)
			if err != nil {
				return err
			}
			boms, err := repos.BOMs().ListActiveBOMs(ctx, opts.app.TenantID)
			if err != nil {
				return err
			}
			components := make(map[string][]*entities.BOMComponent, len(boms))
			for _, b := range boms {
				lines, err := repos.BOMs().GetComponents(ctx, b.ID)
				if err != nil {
					return err
				}
				components[b.ID] = lines
			}

			validator := services.NewBOMValidator()
			graph := validator.ValidateGraph(boms, components)
			skus := validator.ValidateSKUUniqueness(products)

			view := validationView{
				Valid:      graph.IsValid() && skus.IsValid(),
				BOMs:       len(boms),
				CyclePaths: graph.CyclePaths,
				EmptyBOMs:  graph.EmptyBOMs,
				Errors:     append(graph.Errors, skus.Errors...),
			}
			if err := opts.printer(cmd.OutOrStdout()).Print(view, func(w io.Writer) {
				if view.Valid {
					fmt.Fprintf(w, "✅ %d active BOM(s) valid\n", view.BOMs)
					return
				}
				fmt.Fprintf(w, "❌ Validation failed\n")
				for _, e := range view.Errors {
					fmt.Fprintf(w, "  %s\n", e)
				}
			}); err != nil {
				return err
			}
			if !view.Valid {
				return errors.New("validation failed")
			}
			return nil
		},
	}
}
