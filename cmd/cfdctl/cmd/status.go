package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/meaze0507/itchysats/internal/domain/feed"
	"github.com/spf13/cobra"
)

var statusWait time.Duration

// statusCmd checks the daemon and its push feed
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check daemon and feed connectivity",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().DurationVar(&statusWait, "wait", 5*time.Second, "how long to wait for the feed")
}

func runStatus(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	ctx := cmd.Context()

	fmt.Fprintf(out, "daemon: %s\n", cfg.Daemon.URL)
	if err := newDaemonClient().Health(ctx); err != nil {
		fmt.Fprintf(out, "  health: unavailable (%v)\n", err)
	} else {
		fmt.Fprintln(out, "  health: ok")
	}

	conn, err := newConnection()
	if err != nil {
		return err
	}

	opened := make(chan feed.Status, 1)
	release := conn.Watch(func(s feed.Status) {
		if s.Healthy() || s.Terminal() {
			select {
			case opened <- s:
			default:
			}
		}
	})
	defer release()

	if err := conn.Start(ctx); err != nil {
		return err
	}
	defer conn.Close()

	waitCtx, cancel := context.WithTimeout(ctx, statusWait)
	defer cancel()

	fmt.Fprintf(out, "feed:   %s (%s)\n", cfg.FeedURL(), cfg.Feed.Transport)
	select {
	case s := <-opened:
		if s.Err != nil {
			fmt.Fprintf(out, "  state:  %s (%v)\n", s.State, s.Err)
			return s.Err
		}
		fmt.Fprintf(out, "  state:  %s\n", s.State)
	case <-waitCtx.Done():
		s := conn.Status()
		fmt.Fprintf(out, "  state:  %s after %s, attempt %d\n", s.State, statusWait, s.Attempt)
		if s.Err != nil {
			return fmt.Errorf("feed not open: %w", s.Err)
		}
		return fmt.Errorf("feed not open: %w", waitCtx.Err())
	}

	stats := conn.GetStats()
	fmt.Fprintf(out, "  delivered: %d, malformed: %d\n", stats.TotalDelivered, stats.Malformed)
	return nil
}
