package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/memory-anchor/internal/config"
	"github.com/kozaktomas/memory-anchor/internal/database/redisstore"
	"github.com/kozaktomas/memory-anchor/internal/display"
	"github.com/kozaktomas/memory-anchor/internal/logger"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print transitions published by a running scanner",
	Long: `Subscribe to REDIS_CHANNEL and print every recognition transition that a
scanner (serve or scan) publishes there. Useful for a second screen.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().String("channel", "", "Redis channel (overrides REDIS_CHANNEL)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	overrideString(cmd, "channel", &cfg.Redis.Channel)
	if cfg.Redis.Channel == "" {
		return errors.New("REDIS_CHANNEL environment variable or --channel is required")
	}

	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer log.Sync()

	rdb, err := redisstore.Connect(&cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	defer rdb.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	term := display.NewTerminal(os.Stdout)
	fmt.Printf("Watching Redis channel %q, press Ctrl+C to stop\n", cfg.Redis.Channel)
	return display.Subscribe(ctx, rdb, cfg.Redis.Channel, log, func(ev display.Event) {
		switch {
		case ev.Transition != nil:
			term.Show(*ev.Transition)
		case ev.Degraded != nil:
			term.SetDegraded(ev.Degraded.Degraded, ev.Degraded.ConsecutiveFailures)
		}
	})
}
