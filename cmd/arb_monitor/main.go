package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/hetulpatel/dlrarb/internal/config"
	"github.com/hetulpatel/dlrarb/internal/logging"
	"github.com/hetulpatel/dlrarb/internal/rofex"
	"github.com/hetulpatel/dlrarb/internal/tick"
)

var (
	feedName string
	logLevel string
	params   tick.Params
	cfg      *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "arb_monitor",
	Short: "DLR futures vs spot basis monitor",
	Long: `arb_monitor evaluates the DLR futures term structure against the wholesale
spot and funding rate, flagging carry (sell futures) and reverse (buy futures)
opportunities in basis points.

Feeds:
  rofex   Primary API (needs ROFEX_USER, ROFEX_PASSWORD, ROFEX_ACCOUNT)
  ambito  public Ámbito scrape, no credentials
  mock    synthetic curve for demos`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("feed") {
			loaded.Feed = feedName
		}
		if cmd.Flags().Changed("log-level") {
			loaded.LogLevel = logLevel
		}
		if err := loaded.Validate(); err != nil {
			return err
		}
		if loaded.LogJSON {
			logging.SetJSON(os.Stderr)
		}
		logging.SetLevel(loaded.LogLevel)
		logging.Debugf("[arb_monitor] config: %+v", loaded.Redacted())
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&feedName, "feed", config.FeedAmbito, "market data feed: rofex, ambito or mock")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")

	rootCmd.AddCommand(tickCmd, serveCmd, tickersCmd, consumeCmd)
}

// addParamFlags registers the operator inputs on fs.
func addParamFlags(fs *pflag.FlagSet, p *tick.Params) {
	fs.Float64Var(&p.FundingRate, "funding", tick.DefaultFundingRate, "annual funding (caución) rate, 0 to 0.80")
	fs.Float64Var(&p.CommissionPct, "commission", 0, "per-side commission in percent, 0 to 0.5")
	fs.Float64Var(&p.SimSpreadBps, "sim-spread-bps", 0, "simulated bid/ask width for the mock feed, 0 to 500")
	fs.BoolVar(&p.AllowSynthetic, "synthetic", false, "allow synthetic data when live data is unavailable")
}

// applyConfigDefaults fills params the user did not set from the environment config.
func applyConfigDefaults(fs *pflag.FlagSet, p *tick.Params) {
	if !fs.Changed("funding") {
		p.FundingRate = cfg.FundingRate
	}
	if !fs.Changed("commission") {
		p.CommissionPct = cfg.CommissionPct
	}
	if !fs.Changed("sim-spread-bps") {
		p.SimSpreadBps = cfg.SimSpreadBps
	}
	if cfg.Feed == config.FeedMock {
		p.AllowSynthetic = true
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, rofex.ErrMissingCredentials) {
			fmt.Fprintf(os.Stderr, "Error: %v\nSet ROFEX_USER, ROFEX_PASSWORD and ROFEX_ACCOUNT (or secrets.toml), or run with --feed ambito.\n", err)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
