package main

import (
	"fmt"

	"bodega/internal/infra"
	"bodega/internal/service"

	"github.com/spf13/cobra"
)

var rateCmd = &cobra.Command{
	Use:   "rate",
	Short: "Fetch and print the current exchange rate",
	Long: `Fetches the official rate through the same path the API uses: a live
fetch that refreshes the cache, falling back to the cached value (marked
stale) when the source is down.

With --dry-run the page is fetched and parsed but nothing is stored.`,
	Example: `  billingctl rate
  billingctl rate --dry-run`,
	RunE: runRate,
}

func init() {
	rootCmd.AddCommand(rateCmd)
	rateCmd.Flags().Bool("dry-run", false, "Fetch and parse without touching the database")
}

func runRate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	dryRun, _ := cmd.Flags().GetBool("dry-run")
	if dryRun {
		client := infra.NewRateClient(infra.RateClientConfig{
			URL:         cfg.RateSourceURL,
			Timeout:     cfg.RateTimeout,
			Floor:       cfg.Floor(),
			InsecureTLS: cfg.RateInsecureTLS,
		})
		rate, err := client.Fetch(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "rate: %s\nsource: %s\n", rate.String(), client.Source())
		return nil
	}

	svcs, err := openServices()
	if err != nil {
		return err
	}
	q, err := svcs.Rates.Quote(cmd.Context())
	if err != nil {
		return err
	}
	printQuote(cmd, q)
	return nil
}

func printQuote(cmd *cobra.Command, q *service.RateQuote) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "rate: %s\n", q.Rate.String())
	fmt.Fprintf(out, "stale: %t\n", q.Stale)
	fmt.Fprintf(out, "fetched_at: %s\n", q.FetchedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(out, "source: %s\n", q.Source)
	if q.StaleReason != "" {
		fmt.Fprintf(out, "stale_reason: %s\n", q.StaleReason)
	}
	if q.RetryAt != nil {
		fmt.Fprintf(out, "retry_at: %s\n", q.RetryAt.Format("2006-01-02 15:04:05 MST"))
	}
}
