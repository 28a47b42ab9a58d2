package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"crewplan/internal/config"
	"crewplan/internal/metrics"
	"crewplan/internal/opt"
	"crewplan/internal/store"
)

// maxBody bounds request payloads.
const maxBody = 8 << 20

type Server struct {
	Planner  *opt.Planner
	Cache    store.Cache
	Broker   EventBroker
	Logger   zerolog.Logger
	Options  opt.Options
	CacheTTL time.Duration

	// optionsKey is folded into cache keys so a config change misses.
	optionsKey []byte
}

// NewServer wires the planner, cache and broker from cfg. With RedisURL
// unset the cache and broker stay in process.
func NewServer(cfg *config.Config, log zerolog.Logger) (*Server, error) {
	var (
		cache  store.Cache
		broker EventBroker
	)
	if cfg.RedisURL == "" {
		cache = store.NewMemory(512)
		broker = NewBroker()
	} else {
		rc, err := store.NewRedis(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		rb, err := NewRedisBroker(cfg.RedisURL, log)
		if err != nil {
			return nil, err
		}
		cache, broker = rc, rb
	}
	return newServer(opt.NewPlanner(log), cache, broker, log, cfg.Options, time.Duration(cfg.CacheTTLSeconds)*time.Second), nil
}

func newServer(pl *opt.Planner, cache store.Cache, broker EventBroker, log zerolog.Logger, o opt.Options, ttl time.Duration) *Server {
	metrics.RegisterDefault()
	key, _ := json.Marshal(o)
	return &Server{Planner: pl, Cache: cache, Broker: broker, Logger: log, Options: o, CacheTTL: ttl, optionsKey: key}
}

// Routes returns the API handler with logging and metrics applied.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	// Planning
	mux.HandleFunc("/v1/groups", s.GroupsHandler)
	mux.HandleFunc("/v1/legs", s.LegsHandler)
	mux.HandleFunc("/v1/campaigns", s.CampaignsHandler)
	mux.HandleFunc("/v1/legs/stream", s.StreamHandler)
	mux.HandleFunc("/v1/progress", s.ProgressHandler)

	// Optimizer
	mux.HandleFunc("/v1/optimizer/config", s.OptimizerConfigHandler)
	mux.HandleFunc("/v1/runs", s.RunsHandler)
	mux.HandleFunc("/v1/runs/", s.RunByIDHandler)

	// Health
	mux.HandleFunc("/healthz", s.HealthHandler)
	mux.HandleFunc("/readyz", s.ReadyHandler)
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	return s.observe(mux)
}
