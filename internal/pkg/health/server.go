package health

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Vodeneev/matchfeed/internal/pkg/health/handlers"
)

// Options wires the query endpoint to the running engine.
type Options struct {
	Store handlers.SnapshotReader
	// SupervisorState is reported on /health. Optional.
	SupervisorState func() string
}

// NewRouter builds the query endpoint routes.
func NewRouter(opts Options) http.Handler {
	router := chi.NewRouter()
	router.Use(corsMiddleware)

	router.Get("/", handlers.HandleSnapshot(opts.Store))
	router.Get("/ping", handlers.HandlePing)
	router.Get("/health", handlers.HandleHealth(opts.SupervisorState))
	router.Get("/metrics", handlers.HandleMetrics)
	return router
}

// corsMiddleware lets any origin read the endpoint.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Run serves handler on addr until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, addr string, service string, handler http.Handler, readHeaderTimeout time.Duration) error {
	if readHeaderTimeout <= 0 {
		return errors.New("read_header_timeout must be specified in config")
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Health server listening", "service", service, "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("health server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("health server shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Health server error", "service", service, "error", err)
	}
	return nil
}

func AddrFor(port int) string {
	return fmt.Sprintf(":%d", port)
}
