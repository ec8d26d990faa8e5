package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"amm-position-ledger/internal/storage/postgres"
	"amm-position-ledger/internal/verification"
)

// errDivergent makes the process exit non-zero when the ledger disagrees with itself.
var errDivergent = errors.New("ledger divergence found")

func newVerifyCommand(opts *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "verify [pair]",
		Short: "Cross-check stored pairs, markets, balances and positions",
		Long: `Cross-check the stored ledger.

For each pair: the market mirrors the pair reserves and supply, holder balances
plus the minimum liquidity lock add up to the total supply, and every holder's
latest position is closed exactly when its balance is zero.

Exit codes:
  0 - no divergence
  1 - divergence found or command error`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if opts.cfg.PostgresDSN == "" {
				return errors.New("verify requires a PostgreSQL DSN")
			}

			pool, err := postgres.NewPool(ctx, opts.cfg.PostgresDSN)
			if err != nil {
				return err
			}
			defer pool.Close()

			v := verification.NewVerifier(postgres.NewDB(pool).Stores(), opts.logger("verify"))

			var report *verification.Report
			if len(args) == 1 {
				r, err := v.VerifyPair(ctx, args[0])
				if err != nil {
					return err
				}
				report = &verification.Report{TotalPairs: 1, Results: []verification.PairResult{*r}}
				if r.Match() {
					report.MatchedPairs = 1
				} else {
					report.DivergentPairs = 1
				}
			} else if report, err = v.VerifyAll(ctx); err != nil {
				return err
			}

			if err := writeReport(cmd.OutOrStdout(), report, asJSON); err != nil {
				return err
			}

			if report.DivergentPairs > 0 {
				return errDivergent
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")

	return cmd
}

func writeReport(w io.Writer, report *verification.Report, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	for _, r := range report.Results {
		for _, d := range r.Divergences {
			if _, err := fmt.Fprintln(w, d); err != nil {
				return err
			}
		}
	}
	_, err := fmt.Fprintf(w, "%d pairs checked, %d divergent\n", report.TotalPairs, report.DivergentPairs)
	return err
}
