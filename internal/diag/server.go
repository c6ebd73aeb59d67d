// Package diag implements a small read-only introspection HTTP
// server: /healthz, /status, /metrics. Grounded on cmd/ns-api's
// mux.NewRouter + http.Server + graceful Shutdown shape, repurposed
// from a flow-query API to status introspection since the core has no
// persisted state to query (spec.md: "Persisted state: none").
package diag

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hostwatch/agent/internal/metrics"
)

// Status is the snapshot /status reports, read fresh on every
// request by calling its three func fields.
type Status struct {
	ConnectionTableSize func() int
	EndpointTableSize   func() int
	TransportReady      func() bool
}

type statusResponse struct {
	ConnectionTableSize int  `json:"connection_table_size"`
	EndpointTableSize   int  `json:"endpoint_table_size"`
	TransportReady      bool `json:"transport_ready"`
}

// Server wraps an http.Server serving the introspection routes.
type Server struct {
	http *http.Server
}

// New builds a Server listening on addr.
func New(addr string, status Status, m *metrics.Metrics) *Server {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", healthzHandler).Methods(http.MethodGet)
	r.HandleFunc("/status", statusHandler(status)).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	return &Server{
		http: &http.Server{
			Addr:    addr,
			Handler: r,
		},
	}
}

// Start begins serving in the background. Call Stop to shut down.
func (s *Server) Start() {
	go func() {
		log.Printf("diag: introspection server starting on %s", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("diag: server error: %v", err)
		}
	}()
}

// Stop gracefully shuts the server down.
func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.http.Shutdown(ctx); err != nil {
		log.Printf("diag: forced shutdown: %v", err)
	}
}

func healthzHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func statusHandler(status Status) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := statusResponse{
			ConnectionTableSize: status.ConnectionTableSize(),
			EndpointTableSize:   status.EndpointTableSize(),
			TransportReady:      status.TransportReady(),
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}
