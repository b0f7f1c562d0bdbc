package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/KaramelBytes/salesloom/internal/logging"
	"github.com/KaramelBytes/salesloom/internal/server"
	"github.com/spf13/cobra"
)

var serveAddr string

const shutdownGrace = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the catalog over HTTP (REST + /metrics)",
	Example: `  salesloom serve
  salesloom serve --addr :8080 --data ./data/vendas.csv`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, t, err := buildRegistry()
		if err != nil {
			return err
		}
		addr := cfg.ListenAddr
		if serveAddr != "" {
			addr = serveAddr
		}
		app := server.New(server.NewHandler(reg, t, runTimeout))

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			logging.Info("server listening", zap.String("addr", addr), zap.Int("rows", t.Len()))
			errCh <- app.Listen(addr)
		}()
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Serving %d operations on http://%s (Ctrl+C to stop)\n", len(reg.Operations()), addr)

		select {
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("listen %s: %w", addr, err)
			}
			return nil
		case <-ctx.Done():
		}
		logging.Info("shutting down server")
		if err := app.ShutdownWithTimeout(shutdownGrace); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
			logging.Warn("listener stopped with error", zap.Error(err))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default listen_addr)")
}
