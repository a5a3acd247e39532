// Package commands implements the mesctl command tree.
package commands

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/infrastructure/config"
	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/interfaces/cli/output"
)

// RootOptions holds global flags for all commands
type RootOptions struct {
	Format   string
	Scenario string

	config *config.Config
	logger *zap.Logger
	app    *App
}

func (o *RootOptions) printer(w io.Writer) *output.Printer {
	return &output.Printer{Format: o.Format, Writer: w}
}

// NewRootCommand creates the root command. The engine is wired once the
// flags are parsed, before any subcommand runs.
func NewRootCommand(cfg *config.Config, logger *zap.Logger) *cobra.Command {
	opts := &RootOptions{config: cfg, logger: logger}

	cmd := &cobra.Command{
		Use:   "mesctl",
		Short: "BOM resolution and material allocation",
		Long: `mesctl explodes bills of materials, computes material requirements
against lot inventory and commits FIFO consumption, reservations and releases.

Data comes from the configured store (STORE_DRIVER) or, with --scenario, from
a directory of CSV files loaded into memory.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !output.IsValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, output.ValidFormats)
			}
			app, err := NewApp(cmd.Context(), opts.config, opts.Scenario, opts.logger)
			if err != nil {
				return err
			}
			opts.app = app
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if opts.app == nil {
				return nil
			}
			return opts.app.Close()
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", output.FormatText, "output format (text|json|yaml)")
	cmd.PersistentFlags().StringVar(&opts.Scenario, "scenario", "", "directory of CSV files to load into a memory store")

	cmd.AddCommand(NewExplodeCommand(opts))
	cmd.AddCommand(NewCostCommand(opts))
	cmd.AddCommand(NewRequirementsCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewConsumeCommand(opts))
	cmd.AddCommand(NewReserveCommand(opts))
	cmd.AddCommand(NewReleaseCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewStockCommand(opts))
	cmd.AddCommand(NewReceiveCommand(opts))

	return cmd
}

func parseQuantity(flag, s string) (decimal.Decimal, error) {
	q, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid --%s %q: %w", flag, s, err)
	}
	return q, nil
}

// reference is the business document a committing command runs for
type reference struct {
	Type  string
	ID    string
	Notes string
}

func addReferenceFlags(cmd *cobra.Command, ref *reference, defaultType string) {
	cmd.Flags().StringVar(&ref.Type, "reference-type", defaultType, "reference document type")
	cmd.Flags().StringVar(&ref.ID, "reference-id", "", "reference document id")
	cmd.Flags().StringVar(&ref.Notes, "notes", "", "free text stored on the ledger entries")
}
