package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hetulpatel/dlrarb/internal/tick"
)

var (
	tickParams tick.Params
	tickJSON   bool
)

var tickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Run one evaluation cycle and print the opportunity table",
	Long: `Run one evaluation cycle against the selected feed and print every contract
that passed the filters, sorted by days to expiry, with the best opportunity.

Examples:
  arb_monitor tick --feed ambito
  arb_monitor tick --feed rofex --funding 0.38 --commission 0.1
  arb_monitor tick --feed mock --sim-spread-bps 50 --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		applyConfigDefaults(cmd.Flags(), &tickParams)

		a, err := buildApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.runner.Run(cmd.Context(), tickParams)
		if err != nil {
			return err
		}
		if tickJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}
		return printResult(os.Stdout, res)
	},
}

func init() {
	addParamFlags(tickCmd.Flags(), &tickParams)
	tickCmd.Flags().BoolVar(&tickJSON, "json", false, "print the result as JSON")
}

func printResult(out io.Writer, res tick.Result) error {
	spot := "n/a"
	if res.Spot != nil {
		spot = fmt.Sprintf("%.2f", *res.Spot)
	}
	detected := "n/a"
	if res.DetectedRate != nil {
		detected = fmt.Sprintf("%.2f%%", *res.DetectedRate*100)
	}
	fmt.Fprintf(out, "source=%s tick=%s spot=%s (%s) funding=%.2f%% detected=%s\n",
		res.Source, res.TickID, spot, res.SpotMethod, res.FundingRate*100, detected)
	fmt.Fprintf(out, "chain=%d rows=%d filtered: days=%d quotes=%d inverted=%d fetch_failures=%d dropped=%d synthetic=%d\n\n",
		res.ChainSize, len(res.Rows), res.Filtered.InvalidDays, res.Filtered.MissingQuotes, res.Filtered.InvertedQuote,
		res.Diagnostics.FetchFailures, res.Diagnostics.DroppedRecords, res.Diagnostics.SyntheticQuotes)

	if res.Empty() {
		fmt.Fprintln(out, "no contracts passed the filters")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "Ticker\tDays\tBid\tAsk\tTNA Bid\tTNA Ask\tFunding\tClassic bps\tReverse bps\tMax bps\tStrategy\t")
	for _, r := range res.Rows {
		flag := ""
		if r.Synthetic {
			flag = "*"
		}
		fmt.Fprintf(w, "%s%s\t%d\t%.2f\t%.2f\t%.2f%%\t%.2f%%\t%.2f%%\t%.0f\t%.0f\t%.0f\t%s\t\n",
			r.Ticker, flag, r.Days, r.Bid, r.Ask, r.ImpliedTNABid*100, r.ImpliedTNAAsk*100,
			r.FundingCostTNA*100, r.ClassicSpreadBps, r.ReverseSpreadBps, r.MaxSpreadBps, r.Strategy)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if res.Best != nil {
		fmt.Fprintf(out, "\nbest: %s %s %.0f bps (%d days)\n", res.Best.Ticker, res.Best.Strategy, res.Best.MaxSpreadBps, res.Best.Days)
	}
	if res.Diagnostics.SyntheticQuotes > 0 {
		fmt.Fprintln(out, "* quote synthesized from last/settlement")
	}
	return nil
}
