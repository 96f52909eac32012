package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"
)

const shutdownTimeout = 5 * time.Second

// ServeCallback serves h on addr until it produces a result or ctx is done.
//
// ready runs once the listener is bound; its error is logged and does not abort the wait,
// since the user can still open the URL by hand.
func ServeCallback(
	ctx context.Context,
	addr string,
	h *OAuthHandler,
	logger *log.Logger,
	ready func() error,
) (*oauth2.Token, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to bind callback server: %w", err)
	}

	router := NewCallbackRouter()
	if logger != nil {
		router.Use(Logging(logger))
	}
	router.Get(h, h.Routes()...)

	httpServer := &http.Server{Handler: router, ReadHeaderTimeout: 10 * time.Second}
	serverErrors := make(chan error, 1)
	go func() {
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil && logger != nil {
			logger.Warn("error shutting down callback server", "error", err)
		}
	}()

	if ready != nil {
		if err := ready(); err != nil && logger != nil {
			logger.Warn("callback ready hook failed", "error", err)
		}
	}

	select {
	case result := <-h.Result():
		if result.Error() != nil {
			return nil, result.Error()
		}
		if result.Token == nil {
			return nil, fmt.Errorf("no token received")
		}
		return result.Token, nil
	case err := <-serverErrors:
		return nil, fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
