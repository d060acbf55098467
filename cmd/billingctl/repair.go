package main

import (
	"fmt"

	"bodega/internal/logger"

	"github.com/spf13/cobra"
)

var repairCmd = &cobra.Command{
	Use:   "repair-totals",
	Short: "Rebuild derived totals of every stored invoice",
	Long: `Recomputes subtotal, discount, tax, totals, paid amount, balance and
state of every invoice from its stored lines, terms, rate snapshot and
payments. Running it twice in a row reports zero changes the second time.`,
	Example: `  billingctl repair-totals
  billingctl repair-totals --database-url postgres://bodega@db/bodega`,
	RunE: runRepair,
}

func init() {
	rootCmd.AddCommand(repairCmd)
}

func runRepair(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("repair")

	svcs, err := openServices()
	if err != nil {
		return err
	}
	report, err := svcs.Invoices.RepairInvoiceTotals(cmd.Context())
	if err != nil {
		return err
	}

	log.Info().Int("scanned", report.Scanned).Int("changed", report.Changed).Msg("repair finished")
	fmt.Fprintf(cmd.OutOrStdout(), "scanned %d invoices, changed %d\n", report.Scanned, report.Changed)
	return nil
}
