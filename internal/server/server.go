// Package server runs the HTTP processes and their background loops.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dimitrije/shipyard/internal/logger"
	"github.com/dimitrije/shipyard/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

// Wrap puts request logging and metrics around app.
func Wrap(log *zap.Logger, app http.Handler) http.Handler {
	return logger.Middleware(log, metrics.Middleware(app))
}

// Run serves handler on addr until ctx is cancelled, then drains in-flight
// requests.
func Run(ctx context.Context, log *zap.Logger, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Every calls fn each interval until ctx is done.
func Every(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}
