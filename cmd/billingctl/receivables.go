package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var receivablesCmd = &cobra.Command{
	Use:   "receivables",
	Short: "Print the accounts-receivable summary",
	RunE:  runReceivables,
}

func init() {
	rootCmd.AddCommand(receivablesCmd)
	receivablesCmd.Flags().Bool("list", false, "Also list every pending invoice")
}

func runReceivables(cmd *cobra.Command, args []string) error {
	svcs, err := openServices()
	if err != nil {
		return err
	}
	r, err := svcs.Receivables.Summary(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	rateNote := ""
	if r.RateStale {
		rateNote = " (stale)"
	}
	fmt.Fprintf(out, "pending invoices: %d (%d overdue)\n", len(r.Invoices), r.Overdue)
	fmt.Fprintf(out, "outstanding: %s USD / %s VES at %s%s\n",
		r.Outstanding.StringFixed(2), r.OutstandingSecondary.StringFixed(2), r.Rate.String(), rateNote)
	fmt.Fprintf(out, "debtors: %d, average per invoice: %s USD\n", r.Debtors, r.AveragePerInvoice.StringFixed(2))

	if len(r.TopDebtors) > 0 {
		fmt.Fprintln(out, "\ntop debtors:")
		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CUSTOMER\tNAME\tINVOICES\tBALANCE")
		for _, d := range r.TopDebtors {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", d.CustomerID, d.CustomerName, d.Invoices, d.Balance.StringFixed(2))
		}
		_ = w.Flush()
	}

	if list, _ := cmd.Flags().GetBool("list"); list && len(r.Invoices) > 0 {
		fmt.Fprintln(out, "\npending:")
		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NUMBER\tCUSTOMER\tDUE\tTOTAL\tBALANCE")
		for _, inv := range r.Invoices {
			due := "-"
			if inv.DueDate != nil {
				due = inv.DueDate.Format("2006-01-02")
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", inv.Number, inv.CustomerID, due, inv.Total.StringFixed(2), inv.Balance.StringFixed(2))
		}
		_ = w.Flush()
	}
	return nil
}
