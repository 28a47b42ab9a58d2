package metrics

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/push"
)

var (
	// Registry is the dedicated Prometheus registry for the planner
	Registry = prometheus.NewRegistry()

	// Solves counts optimizer runs by stage (clusters, leg) and solver status
	Solves = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "crewplan_solves_total", Help: "Optimizer runs by stage and status."},
		[]string{"stage", "status"},
	)
	// SolveDuration records wall-clock solve time in seconds
	SolveDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "crewplan_solve_duration_seconds", Help: "Optimizer run duration in seconds.", Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 20, 30, 60}},
		[]string{"stage", "status"},
	)
	// Objective is the objective value of the latest run per stage
	Objective = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "crewplan_objective", Help: "Objective of the latest run."},
		[]string{"stage"},
	)
	// SearchNodes counts branch-and-bound nodes explored
	SearchNodes = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "crewplan_search_nodes_total", Help: "Search nodes explored."},
		[]string{"stage"},
	)
	// LNSImprovements counts incumbents improved by neighbourhood search
	LNSImprovements = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "crewplan_lns_improvements_total", Help: "Incumbent improvements found by LNS workers."},
		[]string{"stage"},
	)
	// ModelSize is the size of the latest model per stage
	ModelSize = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "crewplan_model_size", Help: "Variables and constraints of the latest model."},
		[]string{"stage", "kind"},
	)
	// Failures counts failed runs by error kind (input, solve, internal)
	Failures = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "crewplan_failures_total", Help: "Failed planner requests by error kind."},
		[]string{"kind"},
	)

	// HTTPRequests counts requests by method, path, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)
	// CacheLookups counts manifest cache lookups by result (hit, miss, error)
	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "crewplan_cache_lookups_total", Help: "Result cache lookups."},
		[]string{"result"},
	)
)

// RegisterDefault registers collectors to the default registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(Solves)
		Registry.MustRegister(SolveDuration)
		Registry.MustRegister(Objective)
		Registry.MustRegister(SearchNodes)
		Registry.MustRegister(LNSImprovements)
		Registry.MustRegister(ModelSize)
		Registry.MustRegister(Failures)
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(CacheLookups)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once

// WriteTextfile dumps the registry in the node-exporter textfile format.
func WriteTextfile(path string) error {
	RegisterDefault()
	if err := prometheus.WriteToTextfile(path, Registry); err != nil {
		return fmt.Errorf("write metrics textfile %s: %w", path, err)
	}
	return nil
}

// Push sends the registry to a Prometheus pushgateway under job.
func Push(url, job string) error {
	RegisterDefault()
	if err := push.New(url, job).Gatherer(Registry).Push(); err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}
