package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/meaze0507/itchysats/internal/domain/feed"
	"github.com/meaze0507/itchysats/internal/service/taker"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	watchJSON     bool
	watchThrottle time.Duration
)

// watchCmd renders the taker view whenever a channel changes
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live view of the taker state",
	Long: `Connect to the daemon push feed and print a summary on every change.

Examples:
    go run ./cmd/cfdctl watch
    go run ./cmd/cfdctl watch --json
    go run ./cmd/cfdctl watch --transport ws`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchJSON, "json", false, "print summaries as JSON lines")
	watchCmd.Flags().DurationVar(&watchThrottle, "throttle", 200*time.Millisecond, "minimum time between renders")
}

func runWatch(cmd *cobra.Command, args []string) error {
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

	changed := make(chan struct{}, 1)
	poke := func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	}

	release := conn.Watch(func(feed.Status) { poke() })
	defer release()

	g, gctx := errgroup.WithContext(ctx)

	// Fan in projection changes
	for _, ch := range []<-chan struct{}{
		view.Cfds.Changes(),
		view.Offer.Changes(),
		view.Balance.Changes(),
		view.MakerStatus.Changes(),
		view.NextFundingEvent.Changes(),
		view.Quote.Changes(),
	} {
		g.Go(func() error {
			return forward(gctx, ch, poke)
		})
	}

	out := cmd.OutOrStdout()
	g.Go(func() error {
		return render(gctx, out, view, changed)
	})

	err = g.Wait()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// forward pokes on every signal from ch until ctx is done or ch is closed
func forward(ctx context.Context, ch <-chan struct{}, poke func()) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-ch:
			if !ok {
				return nil
			}
			poke()
		}
	}
}

// render prints the summary on every change, at most once per throttle
// period, and fails once the link is closed for good
func render(ctx context.Context, w io.Writer, view *taker.View, changed <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-changed:
		}

		s := view.Summary()
		if err := printSummary(w, s); err != nil {
			return err
		}
		if s.Link.Terminal() {
			return fmt.Errorf("feed closed: %w", s.Link.Err)
		}

		if watchThrottle > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(watchThrottle):
			}
		}
	}
}

func printSummary(w io.Writer, s taker.Summary) error {
	if watchJSON {
		return json.NewEncoder(w).Encode(summaryJSON(s))
	}

	fmt.Fprintf(w, "[%s] feed=%s", time.Now().Format("15:04:05"), s.Link.State)
	if s.Stale {
		fmt.Fprint(w, " (stale)")
	}
	fmt.Fprintln(w)

	if s.Balance != nil {
		fmt.Fprintf(w, "  balance:      %s BTC\n", s.Balance.String())
	} else {
		fmt.Fprintln(w, "  balance:      -")
	}
	if s.Offer != nil {
		fmt.Fprintf(w, "  offer:        %s %s @ %s [%s, %s] x%d\n",
			s.Offer.Position, s.Offer.TradingPair, s.Offer.Price,
			s.Offer.MinQuantity, s.Offer.MaxQuantity, s.Offer.Leverage)
	} else {
		fmt.Fprintln(w, "  offer:        none")
	}
	if s.Reference != nil {
		fmt.Fprintf(w, "  reference:    %s\n", s.Reference.StringFixed(2))
	}
	fmt.Fprintf(w, "  positions:    %d open / %d total\n", s.OpenCfds, s.TotalCfds)
	fmt.Fprintf(w, "  maker:        %s\n", s.Maker.Summary)
	if s.NextFunding != "" {
		fmt.Fprintf(w, "  next funding: %s\n", s.NextFunding)
	}
	_, err := fmt.Fprintln(w)
	return err
}

type summaryOutput struct {
	Feed        string `json:"feed"`
	Error       string `json:"error,omitempty"`
	Balance     string `json:"balance,omitempty"`
	OfferID     string `json:"offer_id,omitempty"`
	OfferPrice  string `json:"offer_price,omitempty"`
	OpenCfds    int    `json:"open_cfds"`
	TotalCfds   int    `json:"total_cfds"`
	MakerOnline bool   `json:"maker_online"`
	Maker       string `json:"maker"`
	NextFunding string `json:"next_funding,omitempty"`
	Reference   string `json:"reference,omitempty"`
	Stale       bool   `json:"stale"`
}

func summaryJSON(s taker.Summary) summaryOutput {
	out := summaryOutput{
		Feed:        s.Link.State.String(),
		OpenCfds:    s.OpenCfds,
		TotalCfds:   s.TotalCfds,
		MakerOnline: s.Maker.Online,
		Maker:       s.Maker.Summary,
		NextFunding: s.NextFunding,
		Stale:       s.Stale,
	}
	if s.Link.Err != nil {
		out.Error = s.Link.Err.Error()
	}
	if s.Balance != nil {
		out.Balance = s.Balance.String()
	}
	if s.Offer != nil {
		out.OfferID = s.Offer.ID
		out.OfferPrice = s.Offer.Price.String()
	}
	if s.Reference != nil {
		out.Reference = s.Reference.StringFixed(2)
	}
	return out
}
