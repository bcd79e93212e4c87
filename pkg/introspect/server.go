// Package introspect serves liveness, readiness, client listing and
// Prometheus metrics over HTTP, routed with gorilla/mux for its path
// variables (/clients/{device}/inflight).
package introspect

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/baidu-iot/shadow-go/log"
	"github.com/baidu-iot/shadow-go/pkg/metrics"
	"github.com/baidu-iot/shadow-go/registry"
)

// Inspectable is the slice of a client's surface the introspection server
// reports on. A registered registry.Reapable that also implements this is
// listed by name and in-flight occupancy; one that doesn't is left out of
// every response.
type Inspectable interface {
	registry.Reapable
	Name() string
	InFlightLen() int
	Ready() bool
}

// Server is the introspection HTTP server.
type Server struct {
	httpServer *http.Server
	registry   *registry.Registry
	metrics    *metrics.Metrics
}

// New builds a Server bound to addr, backed by reg for /clients and m for
// /metrics.
func New(addr string, reg *registry.Registry, m *metrics.Metrics) *Server {
	s := &Server{registry: reg, metrics: m}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReadyz).Methods(http.MethodGet)
	r.HandleFunc("/clients", s.handleClients).Methods(http.MethodGet)
	r.HandleFunc("/clients/{device}/inflight", s.handleClientInFlight).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	s.httpServer = &http.Server{Addr: addr, Handler: r}
	return s
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	log.Info("starting introspection server", "addr", s.httpServer.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReadyz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type clientSummary struct {
	Name     string `json:"name"`
	Ready    bool   `json:"ready"`
	InFlight int    `json:"inFlight"`
}

func (s *Server) handleClients(w http.ResponseWriter, _ *http.Request) {
	var out []clientSummary
	s.registry.Iterate(func(c registry.Reapable) {
		insp, ok := c.(Inspectable)
		if !ok {
			return
		}
		out = append(out, clientSummary{Name: insp.Name(), Ready: insp.Ready(), InFlight: insp.InFlightLen()})
	})
	writeJSON(w, out)
}

func (s *Server) handleClientInFlight(w http.ResponseWriter, r *http.Request) {
	device := mux.Vars(r)["device"]

	var found *clientSummary
	s.registry.Iterate(func(c registry.Reapable) {
		insp, ok := c.(Inspectable)
		if !ok || insp.Name() != device {
			return
		}
		found = &clientSummary{Name: insp.Name(), Ready: insp.Ready(), InFlight: insp.InFlightLen()}
	})

	if found == nil {
		http.Error(w, "client not found", http.StatusNotFound)
		return
	}
	writeJSON(w, found)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error(err, "failed to encode introspection response")
	}
}
