package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var tickersCmd = &cobra.Command{
	Use:   "tickers",
	Short: "List the ROFEX DLR tickers the feed would query",
	RunE: func(cmd *cobra.Command, args []string) error {
		feed, err := newRofexFeed(cfg)
		if err != nil {
			return err
		}
		symbols, err := feed.Tickers(cmd.Context())
		if err != nil {
			return err
		}
		for _, s := range symbols {
			fmt.Println(s)
		}
		return nil
	},
}
