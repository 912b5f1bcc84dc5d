package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/meaze0507/itchysats/internal/domain/cfd"
	"github.com/meaze0507/itchysats/internal/service/taker"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var (
	takeQuantity string
	takeWait     time.Duration
)

// takeCmd takes the offer currently on the feed
var takeCmd = &cobra.Command{
	Use:   "take",
	Short: "Take the current offer",
	Long: `Wait for the maker's offer on the push feed and take it.

Examples:
    go run ./cmd/cfdctl take
    go run ./cmd/cfdctl take --quantity 5000 --wait 30s`,
	RunE: runTake,
}

func init() {
	takeCmd.Flags().StringVarP(&takeQuantity, "quantity", "q", taker.DefaultQuantity.String(), "quantity in USD")
	takeCmd.Flags().DurationVar(&takeWait, "wait", 10*time.Second, "how long to wait for an offer")
}

func runTake(cmd *cobra.Command, args []string) error {
	quantity, err := decimal.NewFromString(takeQuantity)
	if err != nil {
		return fmt.Errorf("invalid quantity %q: %w", takeQuantity, err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := newConnection()
	if err != nil {
		return err
	}
	view := taker.NewView(conn, newDaemonClient())
	defer view.Close()

	if err := conn.Start(ctx); err != nil {
		return err
	}
	defer conn.Close()

	waitCtx, cancel := context.WithTimeout(ctx, takeWait)
	defer cancel()

	if _, err := waitForOffer(waitCtx, view); err != nil {
		return err
	}

	offer, err := view.TakeOffer(ctx, quantity)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Take request sent: %s %s at %s for %s\n",
		offer.Position.Counter(), offer.TradingPair, offer.Price, quantity)
	return nil
}

// waitForOffer blocks until the feed carries an offer
func waitForOffer(ctx context.Context, view *taker.View) (*cfd.Offer, error) {
	for {
		if offer, err := view.CurrentOffer(); err == nil {
			return offer, nil
		}

		snap := view.Offer.Get()
		if snap.Failed() {
			return nil, fmt.Errorf("feed closed: %w", snap.Link.Err)
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, cfd.ErrNoOffer
			}
			return nil, ctx.Err()
		case _, ok := <-view.Offer.Changes():
			if !ok {
				return nil, cfd.ErrNoOffer
			}
		}
	}
}
