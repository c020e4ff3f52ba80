// Package api assembles the management REST API (spec.md §6) behind a
// standard net/http.Server.
//
// Grounded on the teacher's pkg/api/server.go Serve(ctx, address,
// debugMode): same chi.NewRouter + RequestID/Timeout middleware + mounted
// sub-router + BaseContext/ReadHeaderTimeout server shape, narrowed from
// the teacher's container-lifecycle REST surface to the bridge's
// status/capabilities/events/reload/reconnect surface (pkg/api/management).
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mcpfabric/gateway/pkg/api/management"
	"github.com/mcpfabric/gateway/pkg/logger"
)

const (
	middlewareTimeout = 60 * time.Second
	readHeaderTimeout = 10 * time.Second
)

// Serve mounts the management API under /api/v1 and blocks until ctx is
// cancelled, then gracefully shuts the server down. It is assumed that
// the caller sets up appropriate signal handling.
func Serve(ctx context.Context, address string, deps management.Deps) error {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Timeout(middlewareTimeout))
	r.Mount("/api/v1", management.Router(deps))

	srv := &http.Server{
		BaseContext:       func(net.Listener) context.Context { return ctx },
		Addr:              address,
		Handler:           r,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	logger.Infow("starting management API", "address", srv.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), readHeaderTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("management API shutdown failed: %w", err)
	}
	logger.Infow("management API stopped")
	return nil
}
