// pkg/api/api.go
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/lucid-vigil/aegis/pkg/events"
)

// Server exposes the operational HTTP surface: health checks, Prometheus
// metrics, and event-bus statistics. The pipeline itself is event-driven;
// nothing here is on the processing path.
type Server struct {
	httpServer *http.Server
	logger     zerolog.Logger
}

// NewServer builds the HTTP server. The registry must already hold the
// pipeline collectors.
func NewServer(logger zerolog.Logger, port string, registry *prometheus.Registry, bus *events.EventBus) *Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", healthzHandler)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/status", statusHandler(bus))

	return &Server{
		httpServer: &http.Server{
			Addr:              ":" + port,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger.With().Str("component", "api").Logger(),
	}
}

// Start runs the server in a goroutine until Shutdown is called.
func (s *Server) Start() {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("API server starting")
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("API server failed")
		}
	}()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("API server shutting down")
	return s.httpServer.Shutdown(ctx)
}

func healthzHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func statusHandler(bus *events.EventBus) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		status := map[string]interface{}{
			"time": time.Now().UTC(),
		}
		if bus != nil {
			status["events"] = bus.GetMetrics()
		}
		if err := json.NewEncoder(w).Encode(status); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}
