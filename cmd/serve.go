package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/memory-anchor/internal/config"
	"github.com/kozaktomas/memory-anchor/internal/display"
	"github.com/kozaktomas/memory-anchor/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web API",
	Long: `Start the Memory Anchor web API.

The API enrolls and removes people, starts and stops scanning and streams
recognition transitions over server-sent events at /api/v1/scan/events.
Prometheus metrics are served at /metrics.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on (overrides WEB_PORT)")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to (overrides WEB_HOST)")
	serveCmd.Flags().Bool("scan", false, "Start scanning immediately")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	overrideInt(cmd, "port", &cfg.Web.Port)
	overrideString(cmd, "host", &cfg.Web.Host)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Printf("Registry backend: %s, %d faces registered\n", cfg.Registry.Backend, a.registry.Len())
	a.checkEmbeddingService(ctx)

	events := display.NewBroadcaster()
	disp, stopPublisher, err := a.withPublisher(events)
	if err != nil {
		return err
	}
	defer stopPublisher()

	ctrl := a.newScanner(disp)
	defer func() {
		if err := ctrl.Close(); err != nil {
			fmt.Printf("Warning: %v\n", err)
		}
	}()

	if mustGetBool(cmd, "scan") {
		if err := ctrl.Start(ctx); err != nil {
			return fmt.Errorf("starting scan: %w", err)
		}
	}

	server := web.NewServer(cfg, web.Deps{
		Registry:   a.registry,
		Enrollment: a.enrollment,
		Scanner:    ctrl,
		Events:     events,
		Images:     a.imageOpener(),
		Metrics:    a.metrics,
		Logger:     a.log,
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Memory Anchor API on http://%s:%d\n", cfg.Web.Host, cfg.Web.Port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
