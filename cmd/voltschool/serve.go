package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"voltschool/internal/adapters/api"
	"voltschool/internal/remote"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(root *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the district read API",
		Long: `Load every collection from the remote store and serve the read API.

Endpoints:
  GET /api?code=<district code>
  GET /api/students, /api/buses, /api/incidents
  GET /api/events   (websocket stream of incident events)
  GET /metrics      (Prometheus)
  GET /debug/vars   (expvar operation counters)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := openApp(ctx, root, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeApp(context.Background(), a, &err)
			if addr != "" {
				a.cfg.HTTP.Addr = addr
			}
			a.svc.Start(ctx)
			if err := a.svc.WaitReady(ctx); err != nil {
				return err
			}
			return serve(ctx, a, cmd)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	return cmd
}

func newHandler(a *app) *api.Handler {
	remoteCfg := a.cfg.RemoteConfig()
	connect := func(ctx context.Context) (*remote.Adapter, error) {
		return remote.Open(ctx, remoteCfg, a.logger)
	}
	return api.NewHandler(a.cfg.DistrictCode, connect,
		api.WithEvents(a.svc.Events()),
		api.WithMetrics(a.registry),
		api.WithDebugVars(),
		api.WithLogger(a.logger),
	)
}

func serve(ctx context.Context, a *app, cmd *cobra.Command) error {
	srv := &http.Server{
		Addr:              a.cfg.HTTP.Addr,
		Handler:           newHandler(a),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Serving on %s. Press Ctrl-C to stop.\n", srv.Addr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
