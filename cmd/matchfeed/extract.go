package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Vodeneev/matchfeed/internal/pkg/config"
	"github.com/Vodeneev/matchfeed/internal/scraper/extract"
)

func newExtractCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extract <file.html | ->",
		Short: "Run the extraction strategies against a saved page",
		Long: `Parse a saved HTML page (or stdin with "-") and print which teams the
configured strategies find. Useful for checking selectors against a page
captured from the browser.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}

			doc, err := extract.ParseHTML(r)
			if err != nil {
				return err
			}
			res, err := extract.New(extract.Strategies(cfg.Extract)...).Extract(cmd.Context(), doc)
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), res)
		},
	}
}

type resultOutput struct {
	Found    bool   `json:"found"`
	HomeTeam string `json:"home_team,omitempty"`
	AwayTeam string `json:"away_team,omitempty"`
	Strategy string `json:"strategy,omitempty"`
}

func printResult(w io.Writer, res extract.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(resultOutput{
		Found:    res.Found,
		HomeTeam: res.Pair.Home,
		AwayTeam: res.Pair.Away,
		Strategy: res.Strategy,
	})
}
