package httpserver

import (
	"context"
	"fmt"
	"time"
)

// ShutdownTimeout controls how long to wait for graceful shutdowns.
var ShutdownTimeout = 10 * time.Second

// Run serves using start until ctx is cancelled, then drains in-flight
// requests for at most ShutdownTimeout. An error from start that happens
// before cancellation is returned as is.
func Run(ctx context.Context, srv *Server, start func() error) error {
	srvErr := make(chan error, 1)
	go func() {
		srvErr <- start()
	}()

	select {
	case err := <-srvErr:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return <-srvErr
}
