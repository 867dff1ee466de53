package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mkrupp/homecase-accounts/internal/infra/logging"
)

// HTTPTransportConfig contains configuration parameters for HTTP servers.
type HTTPTransportConfig struct {
	// ServerAddr is the network address to listen on
	ServerAddr string `env:"SERVER_ADDR" default:":8080"`
	// ReadHeaderTimeout is the timeout for reading request headers
	ReadHeaderTimeout time.Duration `env:"READ_HEADER_TIMEOUT" default:"5s"`

	ReadTimeout     time.Duration `env:"READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" default:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" default:"10s"`

	// MetricsEnabled exposes GET /metrics on the same listener
	MetricsEnabled bool `env:"METRICS_ENABLED" default:"true"`
}

// HTTPTransport defines the interface for HTTP handlers that can serve requests.
type HTTPTransport interface {
	http.Handler
}

// NewHandler wraps handler with the standard middleware chain: tracing,
// logging, metrics and panic recovery. When registry is non-nil its
// collectors are served on GET /metrics.
func NewHandler(handler HTTPTransport, registry *prometheus.Registry, log logging.Logger) http.Handler {
	var next http.Handler = handler

	if registry != nil {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", MetricsHandler(registry))
		mux.Handle("/", handler)
		next = MetricsMiddleware(mux, NewHTTPMetrics(registry))
	}

	next = RescueingMiddleware(next, log)
	next = LoggingMiddleware(next, log)
	next = TracingMiddleware(next)

	return next
}

// ListenAndServe starts an HTTP server with the given handler and configuration.
// It blocks until ctx is cancelled, then shuts the server down gracefully.
// Returns an error if the server fails to start or encounters an error while running.
func ListenAndServe(
	ctx context.Context,
	handler HTTPTransport,
	registry *prometheus.Registry,
	cfg HTTPTransportConfig,
) (err error) {
	log := logging.GetLogger("infra.transport.http")

	if !cfg.MetricsEnabled {
		registry = nil
	}

	//nolint:exhaustruct
	server := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           NewHandler(handler, registry, log),
		ErrorLog:          logging.GetLogLogger(log, logging.LevelError),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	sock, err := net.Listen("tcp", cfg.ServerAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	return Serve(ctx, server, sock, cfg.ShutdownTimeout)
}

// Serve runs server on sock until ctx is done.
func Serve(ctx context.Context, server *http.Server, sock net.Listener, shutdownTimeout time.Duration) error {
	log := logging.GetLogger("infra.transport.http")

	errCh := make(chan error, 1)

	go func() {
		log.InfoContext(ctx, "listening", "addr", sock.Addr().String())
		errCh <- server.Serve(sock)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	log.InfoContext(ctx, "shutting down")

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}

	return nil
}
