package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"go-antiraid/internal/logging"
)

// HealthReporter reports per-component health for /healthz.
type HealthReporter interface {
	Status() map[string]bool
}

// Exporter serves /metrics and /healthz. It runs as a supervised service.
type Exporter struct {
	addr   string
	health HealthReporter
}

func NewExporter(addr string, health HealthReporter) *Exporter {
	return &Exporter{addr: addr, health: health}
}

func (e *Exporter) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", e.handleHealth)
	return r
}

func (e *Exporter) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := map[string]bool{}
	if e.health != nil {
		status = e.health.Status()
	}

	healthy := true
	for _, ok := range status {
		healthy = healthy && ok
	}

	w.Header().Set("Content-Type", "application/json")
	if !healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"healthy":    healthy,
		"components": status,
	})
}

// Serve blocks until ctx is cancelled or the listener fails.
func (e *Exporter) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              e.addr,
		Handler:           e.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info("Metrics listening on %s", e.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logging.Warn("Metrics server shutdown: %v", err)
		}
		return ctx.Err()
	}
}

func (e *Exporter) String() string {
	return "metrics-exporter"
}
