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
	"github.com/kozaktomas/memory-anchor/internal/display"
	"github.com/kozaktomas/memory-anchor/internal/registry"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan the camera and print who is in front of it",
	Long: `Start the recognition loop in the terminal. Every change of the person in
front of the camera is printed once. Stop with Ctrl+C.

Examples:
  # Use an IP camera snapshot URL
  CAMERA_SNAPSHOT_URL=http://camera.local/snapshot.jpg memory-anchor scan

  # Replay frames from a directory, checking twice a second
  memory-anchor scan --frames ./testdata/frames --interval 500ms

  # Stricter matching
  memory-anchor scan --threshold 0.5`,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().Duration("interval", 0, "Time between two scans (overrides SCAN_INTERVAL)")
	scanCmd.Flags().Float64("threshold", 0, "Maximum face distance for a match (overrides MATCH_THRESHOLD)")
	scanCmd.Flags().String("snapshot-url", "", "Camera snapshot URL (overrides CAMERA_SNAPSHOT_URL)")
	scanCmd.Flags().String("frames", "", "Directory of frames to replay (overrides CAMERA_FRAME_DIR)")
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	overrideDuration(cmd, "interval", &cfg.Scan.Interval)
	overrideFloat64(cmd, "threshold", &cfg.Matching.Threshold)
	overrideString(cmd, "snapshot-url", &cfg.Camera.SnapshotURL)
	overrideString(cmd, "frames", &cfg.Camera.FrameDir)

	if !cfg.Camera.HasCamera() {
		return errors.New("no camera configured: set CAMERA_SNAPSHOT_URL, CAMERA_FRAME_DIR or use --snapshot-url/--frames")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	n := a.registry.Len()
	fmt.Println(registry.RegisteredMessage(n))
	if n == 0 {
		fmt.Println("Nobody is enrolled yet, every face will show as Unknown Visitor.")
	}
	a.checkEmbeddingService(ctx)

	disp, stopPublisher, err := a.withPublisher(display.NewTerminal(os.Stdout))
	if err != nil {
		return err
	}
	defer stopPublisher()

	ctrl := a.newScanner(disp)
	if err := ctrl.Start(ctx); err != nil {
		return fmt.Errorf("starting scan: %w", err)
	}
	fmt.Printf("Scanning every %s with threshold %.2f, press Ctrl+C to stop\n", cfg.Scan.Interval, cfg.Matching.Threshold)

	<-ctx.Done()

	status := ctrl.Status()
	if err := ctrl.Stop(context.Background()); err != nil {
		fmt.Printf("Warning: %v\n", err)
	}
	fmt.Printf("Scanned %d frames (%d skipped, %d failed)\n", status.Ticks, status.SkippedTicks, status.FailedTicks)
	return nil
}
