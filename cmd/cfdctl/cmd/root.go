// Package cmd - cfdctl CLI commands
package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/meaze0507/itchysats/internal/infra/daemon"
	feedclient "github.com/meaze0507/itchysats/internal/infra/feed"
	"github.com/meaze0507/itchysats/internal/pkg/config"
	"github.com/meaze0507/itchysats/internal/pkg/logger"
	"github.com/spf13/cobra"
)

const (
	serviceName    = "cfdctl"
	serviceVersion = "0.1.0"
)

var (
	// Common flags
	cfgFile   string
	daemonURL string
	transport string
	logLevel  string
	verbose   bool

	cfg       *config.Config
	logCloser io.Closer
)

// rootCmd root command
var rootCmd = &cobra.Command{
	Use:   "cfdctl",
	Short: "CFD trading client",
	Long: `CFD trading client for a taker or maker daemon.

Usage:
    go run ./cmd/cfdctl [command]

Commands:
    watch      - Live view of balance, offer, positions and maker status
    take       - Take the current offer
    offer      - Publish new offer parameters (maker)
    status     - Check daemon and feed connectivity
`,
	SilenceUsage:       true,
	PersistentPreRunE:  func(cmd *cobra.Command, args []string) error { return initConfig() },
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error { return closeLogger() },
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "env file (default is .env)")
	rootCmd.PersistentFlags().StringVar(&daemonURL, "daemon", "", "daemon base URL (overrides DAEMON_URL)")
	rootCmd.PersistentFlags().StringVar(&transport, "transport", "", "feed transport: sse or ws (overrides FEED_TRANSPORT)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (overrides LOG_LEVEL)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Add subcommands
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(takeCmd)
	rootCmd.AddCommand(offerCmd)
	rootCmd.AddCommand(statusCmd)
}

// initConfig loads configuration, applies flag overrides and starts logging
func initConfig() error {
	var files []string
	if cfgFile != "" {
		files = append(files, cfgFile)
	}

	loaded, err := config.Load(files...)
	if err != nil {
		return err
	}
	cfg = loaded

	if daemonURL != "" {
		cfg.Daemon.URL = daemonURL
	}
	if transport != "" {
		cfg.Feed.Transport = transport
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	} else if !verbose {
		// Keep the terminal for command output
		cfg.Logging.Level = "warn"
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logCloser, err = logger.Init(logger.Config{
		Level:          cfg.Logging.Level,
		Format:         cfg.Logging.Format,
		FileEnabled:    cfg.Logging.FileEnabled,
		FilePath:       cfg.Logging.FilePath,
		RotationSize:   cfg.Logging.RotationSize,
		RetentionDays:  cfg.Logging.RetentionDays,
		ServiceName:    serviceName,
		ServiceVersion: serviceVersion,
		Out:            os.Stderr,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	return nil
}

func closeLogger() error {
	if logCloser == nil {
		return nil
	}
	return logCloser.Close()
}

// newConnection creates an unstarted feed connection from configuration
func newConnection() (feedclient.Client, error) {
	return feedclient.NewClient(feedclient.Config{
		URL:              cfg.FeedURL(),
		Transport:        cfg.Feed.Transport,
		ReconnectInitial: cfg.Feed.ReconnectInitial,
		ReconnectMax:     cfg.Feed.ReconnectMax,
		MaxAttempts:      cfg.Feed.ReconnectAttempts,
		HandshakeTimeout: cfg.Daemon.HTTPTimeout,
	})
}

// newDaemonClient creates the command client from configuration
func newDaemonClient() *daemon.RESTClient {
	return daemon.NewRESTClient(cfg.Daemon.URL, cfg.Daemon.HTTPTimeout)
}
