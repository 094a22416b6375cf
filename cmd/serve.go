package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/huangsam/shiftpoint/core"
	"github.com/huangsam/shiftpoint/internal/httpapi"
	"github.com/spf13/cobra"
)

// shutdownTimeout bounds how long in-flight requests may finish after a signal.
const shutdownTimeout = 30 * time.Second

// serveCmd serves dispatch requests over HTTP.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve dispatch requests and metrics over HTTP.",
	Long: `Load the dataset once and answer concurrent dispatch requests.

Endpoints:
  POST /dispatch  {"trigger":..., "date":..., "clicks":..., "metric":..., "k":...}
  GET  /metrics   Prometheus metrics
  GET  /healthz   liveness

Examples:
  shiftpoint serve -m covid=covid.csv -e events.csv --addr :9090`,
	PreRunE: sharedSetupWrapper,
	RunE: func(_ *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(rootCtx, os.Interrupt, syscall.SIGTERM)
		defer stop()

		disp, err := core.PrepareDispatcher(ctx, cfg, cacheManager)
		if err != nil {
			return err
		}
		srv := httpapi.NewServer(cfg.Addr, httpapi.New(disp))

		errCh := make(chan error, 1)
		go func() {
			fmt.Fprintf(os.Stderr, "🌐 Listening on %s\n", cfg.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		fmt.Fprintln(os.Stderr, "Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}
