// Package metrics registers the Prometheus metric sets for the
// ingestor, predictor and API service, serves them over HTTP, and
// provides a simple health JSON handler (HealthStatus). Server mounts
// only /metrics; it does not mount the health handler.
package metrics

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Ingestor holds the ingestor's Prometheus metrics.
type Ingestor struct {
	CandlesIngested *prometheus.CounterVec // labels: symbol
	FetchErrors     *prometheus.CounterVec // labels: symbol
	TickDuration    prometheus.Histogram
}

// NewIngestor registers and returns the ingestor metric set.
func NewIngestor() *Ingestor {
	m := &Ingestor{
		CandlesIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingestor_candles_ingested_total",
			Help: "Total real candles upserted, by symbol",
		}, []string{"symbol"}),
		FetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingestor_fetch_errors_total",
			Help: "Upstream fetch failures that exhausted retries, by symbol",
		}, []string{"symbol"}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ingestor_tick_duration_seconds",
			Help:    "Time to process one full ingest tick across all symbols",
			Buckets: prometheus.DefBuckets,
		}),
	}
	prometheus.MustRegister(m.CandlesIngested, m.FetchErrors, m.TickDuration)
	return m
}

// Predictor holds the predictor's Prometheus metrics.
type Predictor struct {
	HoursPredicted     *prometheus.CounterVec // labels: symbol
	TrainingDuration   *prometheus.HistogramVec
	InferenceDuration  *prometheus.HistogramVec
	InsufficientData   *prometheus.CounterVec // labels: symbol
	TrainingFailures   *prometheus.CounterVec // labels: symbol
	ModelSetsOnDisk    *prometheus.GaugeVec   // labels: symbol
}

// NewPredictor registers and returns the predictor metric set.
func NewPredictor() *Predictor {
	m := &Predictor{
		HoursPredicted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "predictor_hours_predicted_total",
			Help: "Total hour blocks successfully predicted and persisted, by symbol",
		}, []string{"symbol"}),
		TrainingDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "predictor_training_duration_seconds",
			Help:    "Time to train a full horizon model set for a symbol",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
		}, []string{"symbol"}),
		InferenceDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "predictor_inference_duration_seconds",
			Help:    "Time to run inference for one hour block",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"symbol"}),
		InsufficientData: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "predictor_insufficient_data_total",
			Help: "Ticks skipped because real data did not cover the needed window, by symbol",
		}, []string{"symbol"}),
		TrainingFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "predictor_training_failures_total",
			Help: "Training attempts abandoned due to error, by symbol",
		}, []string{"symbol"}),
		ModelSetsOnDisk: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "predictor_model_sets_on_disk",
			Help: "Whether a valid (today-tagged) model set is currently on disk, by symbol",
		}, []string{"symbol"}),
	}
	prometheus.MustRegister(m.HoursPredicted, m.TrainingDuration, m.InferenceDuration,
		m.InsufficientData, m.TrainingFailures, m.ModelSetsOnDisk)
	return m
}

// Gateway holds the WebSocket broker's Prometheus metrics.
type Gateway struct {
	ActiveConnections prometheus.Gauge
	MessagesSent      *prometheus.CounterVec // labels: type
	BrokerDrops       prometheus.Counter
	ClientProtoErrors prometheus.Counter
}

// NewGateway registers and returns the gateway metric set.
func NewGateway() *Gateway {
	m := &Gateway{
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gateway_active_connections",
			Help: "Currently open WebSocket connections",
		}),
		MessagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_messages_sent_total",
			Help: "Messages sent to WebSocket clients, by message type",
		}, []string{"type"}),
		BrokerDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gateway_broker_drops_total",
			Help: "Queued outbound events dropped due to a full per-connection queue",
		}),
		ClientProtoErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gateway_client_protocol_errors_total",
			Help: "Malformed or unknown client frames",
		}),
	}
	prometheus.MustRegister(m.ActiveConnections, m.MessagesSent, m.BrokerDrops, m.ClientProtoErrors)
	return m
}

// HealthStatus tracks the liveness of the storage dependency for the
// /health endpoint.
type HealthStatus struct {
	mu sync.RWMutex

	StorageConnected bool      `json:"-"`
	LastCheckAt      time.Time `json:"-"`
	StartedAt        time.Time `json:"-"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{StartedAt: time.Now()}
}

func (h *HealthStatus) SetStorageConnected(v bool) {
	h.mu.Lock()
	h.StorageConnected = v
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

func (h *HealthStatus) IsHealthy() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.StorageConnected
}

// ServeHTTP handles /health: {status, service, database}.
func (h *HealthStatus) ServeHTTP(service string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.mu.RLock()
		healthy := h.StorageConnected
		h.mu.RUnlock()

		status := "ok"
		code := http.StatusOK
		database := "connected"
		if !healthy {
			status = "degraded"
			code = http.StatusServiceUnavailable
			database = "disconnected"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]string{
			"status":   status,
			"service":  service,
			"database": database,
		})
	}
}

// Server runs an HTTP server exposing /metrics for a single process.
type Server struct {
	addr string
	srv  *http.Server
}

// NewServer creates a metrics-only server (ingestor, predictor).
func NewServer(addr string) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &Server{addr: addr, srv: &http.Server{Addr: addr, Handler: mux}}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
