package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"amm-position-ledger/internal/domain"
	"amm-position-ledger/internal/storage"
	"amm-position-ledger/internal/storage/postgres"
	"amm-position-ledger/internal/units"
)

// positionsOptions holds flags for the positions command.
type positionsOptions struct {
	*rootOptions
	Format string // "text" | "json"
	Open   bool
}

// positionView is one position with human-unit balances.
type positionView struct {
	ID                 string            `json:"id"`
	Market             string            `json:"market"`
	Type               string            `json:"type"`
	Closed             bool              `json:"closed"`
	OutputTokenBalance string            `json:"output_token_balance"`
	InputTokenBalances map[string]string `json:"input_token_balances"`
	TransferredTo      []string          `json:"transferred_to,omitempty"`
	BlockNumber        uint64            `json:"block_number"`
}

func newPositionsCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &positionsOptions{rootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "positions <account>",
		Short: "Print an account's positions in human units",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.Format != "text" && opts.Format != "json" {
				return fmt.Errorf("invalid format %q: must be text or json", opts.Format)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPositions(cmd, opts, strings.ToLower(args[0]))
		},
	}

	cmd.Flags().StringVar(&opts.Format, "format", "text", "output format (text|json)")
	cmd.Flags().BoolVar(&opts.Open, "open", false, "only show open positions")

	return cmd
}

func runPositions(cmd *cobra.Command, opts *positionsOptions, account string) error {
	ctx := cmd.Context()
	if opts.cfg.PostgresDSN == "" {
		return errors.New("positions requires a PostgreSQL DSN")
	}

	pool, err := postgres.NewPool(ctx, opts.cfg.PostgresDSN)
	if err != nil {
		return err
	}
	defer pool.Close()

	views, err := loadPositions(ctx, postgres.NewDB(pool).Stores(), account, opts.Open)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if opts.Format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(views)
	}
	return writePositions(out, views)
}

// loadPositions reads account's positions and converts balances with each token's decimals.
func loadPositions(ctx context.Context, s *storage.Stores, account string, openOnly bool) ([]positionView, error) {
	positions, err := s.Positions.ListByAccount(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}

	tokens := make(map[string]*domain.Token)
	token := func(id string) (*domain.Token, error) {
		if t, ok := tokens[id]; ok {
			return t, nil
		}
		t, err := s.Tokens.Get(ctx, id)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("get token %s: %w", id, err)
		}
		tokens[id] = t
		return t, nil
	}

	views := make([]positionView, 0, len(positions))
	for _, p := range positions {
		if openOnly && p.Closed {
			continue
		}

		share, err := token(p.Market)
		if err != nil {
			return nil, err
		}
		view := positionView{
			ID:                 p.ID,
			Market:             p.Market,
			Type:               p.PositionType.String(),
			Closed:             p.Closed,
			OutputTokenBalance: units.TokenAmount(share, p.OutputTokenBalance).String(),
			InputTokenBalances: make(map[string]string, len(p.InputTokenBalances)),
			TransferredTo:      p.TransferredTo,
			BlockNumber:        p.BlockNumber,
		}
		for _, tb := range p.InputTokenBalances.List() {
			t, err := token(tb.Token)
			if err != nil {
				return nil, err
			}
			view.InputTokenBalances[label(t, tb.Token)] = units.TokenAmount(t, tb.Amount).String()
		}
		views = append(views, view)
	}
	return views, nil
}

func writePositions(w io.Writer, views []positionView) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "POSITION\tTYPE\tSTATUS\tSHARES\tUNDERLYING")
	for _, v := range views {
		status := "open"
		if v.Closed {
			status = "closed"
		}
		parts := make([]string, 0, len(v.InputTokenBalances))
		for token, amount := range v.InputTokenBalances {
			parts = append(parts, amount+" "+token)
		}
		sort.Strings(parts)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", v.ID, v.Type, status, v.OutputTokenBalance, strings.Join(parts, ", "))
	}
	return tw.Flush()
}

// label prefers the token symbol, falling back to its address.
func label(t *domain.Token, address string) string {
	if t == nil || t.Symbol == "" || t.Symbol == domain.UnknownTokenField {
		return address
	}
	return t.Symbol
}
