package health

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/Vodeneev/ttmonitor/internal/pkg/health/handlers"
)

const defaultReadHeaderTimeout = 5 * time.Second

// NewRouter builds the health and records routes. records may be nil.
func NewRouter(status handlers.HealthReporter, records handlers.RecordReader) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/ping", handlers.HandlePing).Methods(http.MethodGet)
	r.HandleFunc("/health", handlers.HandleHealth(status)).Methods(http.MethodGet)
	r.HandleFunc("/metrics", handlers.HandleMetrics).Methods(http.MethodGet)
	if records != nil {
		handlers.NewRecords(records).Register(r)
	}
	return r
}

// Run serves h on addr until ctx is cancelled. It does not block.
func Run(ctx context.Context, addr, service string, h http.Handler) {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: defaultReadHeaderTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	go func() {
		slog.Info("Health server listening", "service", service, "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Health server error", "service", service, "error", err)
		}
	}()
}

func AddrFor(port int) string {
	return fmt.Sprintf(":%d", port)
}
