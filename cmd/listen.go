package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/conneroisu/docsite/internal/client"
	"github.com/conneroisu/docsite/internal/config"
	"github.com/conneroisu/docsite/internal/websocket"
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Connect to a running watcher and report the next reload",
	Long: `Connect to the hot-reload WebSocket server the way a browser does, reconnecting
one second after every disconnect, and exit after the first reload
notification. The listener only runs in development mode.

Examples:
  docsite listen                              # Connect to ws://localhost:3001
  docsite listen --url ws://127.0.0.1:4000    # Connect elsewhere
  docsite listen --max-retries 10             # Give up after 10 failed attempts`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return BindFlags(cmd, map[string]string{
			"url":         "client.url",
			"mode":        "mode",
			"max-retries": "client.max_retries",
		})
	},
	RunE: runListen,
}

var (
	listenURL        string
	listenMode       string
	listenMaxRetries int
)

func init() {
	rootCmd.AddCommand(listenCmd)

	listenCmd.Flags().StringVar(&listenURL, "url", "", "WebSocket URL of the watcher (default ws://<host>:<port>)")
	listenCmd.Flags().StringVar(&listenMode, "mode", "", "Runtime mode; the listener is disabled outside development")
	listenCmd.Flags().IntVar(&listenMaxRetries, "max-retries", 0, "Give up after this many failed reconnects (0 retries forever)")
}

func runListen(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return listen(ctx, cfg, cmd)
}

func listen(ctx context.Context, cfg *config.Config, cmd *cobra.Command) error {
	if !cfg.IsDevelopment() {
		fmt.Fprintf(cmd.ErrOrStderr(), "Hot reload is disabled in %s mode\n", cfg.Mode)
		return nil
	}

	l := client.New(client.Options{
		URL:            cfg.Client.URL,
		Mode:           cfg.Mode,
		ReconnectDelay: cfg.Client.ReconnectDelay,
		MaxRetries:     cfg.Client.MaxRetries,
		Logger:         newLogger(cfg),
		Reloader: func(_ context.Context, n websocket.Notification) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "reload %s\n", n.File)
			return err
		},
	})

	err := l.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
