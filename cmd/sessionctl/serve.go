package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/resumeforge/sessionkit"
	promexport "github.com/resumeforge/sessionkit/metrics/export/prometheus"
	"github.com/urfave/cli/v2"
)

const shutdownTimeout = 10 * time.Second

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the cleanup sweeper and serve /metrics and /healthz",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address, overrides metrics.addr",
			},
		},
		Action: serve,
	}
}

func serve(c *cli.Context) error {
	rt, err := openService(c, func(cfg *sessionkit.Config) {
		cfg.Metrics.Enabled = true
		cfg.Metrics.EnableLatencyHistograms = true
	})
	if err != nil {
		return err
	}
	defer rt.Close()

	addr := rt.cfg.Metrics.Addr
	if v := c.String("addr"); v != "" {
		addr = v
	}

	ctx, stop := signal.NotifyContext(commandContext(c), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sweeper := sessionkit.NewSweeper(rt.svc)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           newServeMux(rt.svc),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	rt.log.Info().Str("addr", ln.Addr().String()).Msg("sessionctl serving")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	rt.log.Info().Msg("sessionctl stopped")
	return nil
}

func newServeMux(svc *sessionkit.Service) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promexport.NewPrometheusExporter(svc).Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if _, err := svc.Ping(r.Context()); err != nil {
			http.Error(w, "store unavailable", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok\n"))
	})
	return mux
}
