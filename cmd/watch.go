package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/conneroisu/docsite/internal/config"
	"github.com/conneroisu/docsite/internal/services"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Aliases: []string{"w"},
	Short:   "Watch content and broadcast reloads to browsers",
	Long: `Watch the content directory recursively and send a reload notification to
every connected browser whenever a file is added, changed or removed.
Dotfiles are ignored. Browsers connect to ws://localhost:3001.

Examples:
  docsite watch                        # Watch ./content on port 3001
  docsite watch --port 4000            # Serve on another port
  docsite watch --relocate             # Also mirror changed files into public/content
  docsite watch --ignore "*.tmp"       # Skip editor temp files`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return BindFlags(cmd, map[string]string{
			"ignore":   "watch.ignore",
			"debounce": "watch.debounce",
			"relocate": "watch.relocate_on_change",
		})
	},
	RunE: runWatch,
}

var (
	watchFlags    *StandardFlags
	watchIgnore   []string
	watchDebounce time.Duration
	watchRelocate bool
)

// shutdownTimeout bounds how long Ctrl+C waits for connections to close.
const shutdownTimeout = 5 * time.Second

func init() {
	rootCmd.AddCommand(watchCmd)

	watchFlags = AddStandardFlags(watchCmd, "server", "content")
	watchCmd.Flags().StringSliceVar(&watchIgnore, "ignore", nil, "Extra glob patterns to ignore")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 0, "Coalesce changes to the same file within this window")
	watchCmd.Flags().BoolVar(&watchRelocate, "relocate", false, "Mirror changed files into the public content directory")

	AddFlagValidation(watchCmd, "port", ValidatePort)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serveHotReload(ctx, cfg)
}

// serveHotReload runs the hot-reload service until ctx is done or the
// server fails.
func serveHotReload(ctx context.Context, cfg *config.Config) error {
	logger := newLogger(cfg)

	svc, err := services.NewHotReloadService(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create hot-reload service: %w", err)
	}

	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start hot-reload service: %w", err)
	}

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info(context.Background(), "Shutting down...")
	case serveErr = <-svc.Errors():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := svc.Stop(shutdownCtx); err != nil {
		logger.Warn(context.Background(), err, "Error during shutdown")
	}

	if serveErr != nil {
		return fmt.Errorf("websocket server failed: %w", serveErr)
	}
	return nil
}
