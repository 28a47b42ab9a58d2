package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"crewplan/internal/buildinfo"
	"crewplan/internal/config"
	"crewplan/internal/metrics"
	"crewplan/internal/opt"
	"crewplan/internal/store"
	"crewplan/internal/transform"
)

// ProgressHeader names the broker topic a POST request reports solver
// progress to; watch it with GET /v1/progress?topic=...
const ProgressHeader = "X-Progress-Topic"

// GroupsHandler handles POST /v1/groups
func (s *Server) GroupsHandler(w http.ResponseWriter, r *http.Request) {
	s.plan(w, r, transform.ModeGroups)
}

// LegsHandler handles POST /v1/legs
func (s *Server) LegsHandler(w http.ResponseWriter, r *http.Request) {
	s.plan(w, r, transform.ModeLeg)
}

// CampaignsHandler handles POST /v1/campaigns
func (s *Server) CampaignsHandler(w http.ResponseWriter, r *http.Request) {
	s.plan(w, r, transform.ModeCampaign)
}

func (s *Server) plan(w http.ResponseWriter, r *http.Request, mode transform.Mode) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeProblem(w, http.StatusMethodNotAllowed, "Method Not Allowed", "", r.URL.Path)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
	if err != nil {
		writeProblem(w, http.StatusRequestEntityTooLarge, "Request too large", err.Error(), r.URL.Path)
		return
	}

	key := store.Key(string(mode), body, s.optionsKey)
	if cached, ok := s.cached(r.Context(), key); ok {
		w.Header().Set("X-Cache", "HIT")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(cached)
		return
	}

	pl := s.Planner
	if topic := r.Header.Get(ProgressHeader); topic != "" {
		pl = s.publishing(topic)
	}
	out, err := s.run(r.Context(), pl, mode, body)
	if err != nil {
		metrics.Failures.WithLabelValues(string(opt.KindOf(err))).Inc()
		s.Logger.Warn().Err(err).Str("mode", string(mode)).Msg("plan failed")
		writeError(w, r, err)
		return
	}
	data, err := json.Marshal(out)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if complete(out) {
		s.remember(r.Context(), key, anonymous(out))
	}
	w.Header().Set("X-Cache", "MISS")
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(append(data, '\n'))
}

func (s *Server) run(ctx context.Context, pl *opt.Planner, mode transform.Mode, body []byte) (any, error) {
	p, err := transform.Parse(body)
	if err != nil {
		return nil, err
	}
	return transform.Run(ctx, pl, mode, p, s.Options)
}

// publishing returns a planner reporting progress to topic.
func (s *Server) publishing(topic string) *opt.Planner {
	return s.Planner.WithProgress(func(p opt.Progress) {
		s.Broker.Publish(topic, Event{Type: "progress", Data: p})
	})
}

func (s *Server) cached(ctx context.Context, key string) ([]byte, bool) {
	if s.Cache == nil {
		return nil, false
	}
	b, err := s.Cache.Get(ctx, key)
	switch {
	case err == nil:
		metrics.CacheLookups.WithLabelValues("hit").Inc()
		return b, true
	case errors.Is(err, store.ErrNotFound):
		metrics.CacheLookups.WithLabelValues("miss").Inc()
	default:
		metrics.CacheLookups.WithLabelValues("error").Inc()
		s.Logger.Warn().Err(err).Msg("cache lookup failed")
	}
	return nil, false
}

func (s *Server) remember(ctx context.Context, key string, data []byte) {
	if s.Cache == nil {
		return
	}
	if err := s.Cache.Put(ctx, key, append(data, '\n'), s.CacheTTL); err != nil {
		s.Logger.Warn().Err(err).Msg("cache store failed")
	}
}

// complete reports whether every solve behind out was proven optimal,
// group formation included; only those responses are worth caching.
func complete(out any) bool {
	const optimal = "OPTIMAL"
	switch o := out.(type) {
	case transform.ClusterOutput:
		return o.Status == optimal
	case transform.LegOutput:
		return o.Status == optimal && o.ClusterStatus == optimal
	case transform.CampaignOutput:
		for _, l := range o.Legs {
			if l.Status != optimal || l.ClusterStatus != optimal {
				return false
			}
		}
		return len(o.Legs) > 0
	}
	return false
}

// anonymous encodes out without run ids. A cached response is served to
// later requests whose solves never ran, so it must not point at a run log
// entry.
func anonymous(out any) []byte {
	switch o := out.(type) {
	case transform.ClusterOutput:
		o.RunID = ""
		out = o
	case transform.LegOutput:
		o.RunID = ""
		out = o
	case transform.CampaignOutput:
		legs := make([]transform.LegOutput, len(o.Legs))
		for i, l := range o.Legs {
			l.RunID = ""
			legs[i] = l
		}
		o.Legs = legs
		out = o
	}
	data, _ := json.Marshal(out)
	return data
}

// OptimizerConfigHandler returns the effective solver options; ?format=yaml
// renders them as YAML.
func (s *Server) OptimizerConfigHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeProblem(w, http.StatusMethodNotAllowed, "Method Not Allowed", "", r.URL.Path)
		return
	}
	if strings.EqualFold(r.URL.Query().Get("format"), "yaml") {
		b, err := config.OptionsYAML(s.Options)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Render config failed", err.Error(), r.URL.Path)
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write(b)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"defaults": s.Options})
}

// RunsHandler lists recent optimizer runs, newest first.
func (s *Server) RunsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeProblem(w, http.StatusMethodNotAllowed, "Method Not Allowed", "", r.URL.Path)
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeProblem(w, http.StatusBadRequest, "Invalid limit", v, r.URL.Path)
			return
		}
		limit = n
	}
	stage := r.URL.Query().Get("stage")
	items := []opt.RunMetrics{}
	for _, m := range s.Planner.Runs.Recent(0) {
		if stage != "" && m.Stage != stage {
			continue
		}
		if limit > 0 && len(items) == limit {
			break
		}
		items = append(items, m)
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// RunByIDHandler handles GET /v1/runs/{runId}
func (s *Server) RunByIDHandler(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/runs/")
	if id == "" || strings.Contains(id, "/") || r.Method != http.MethodGet {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	stages := s.Planner.Runs.Get(id)
	if len(stages) == 0 {
		writeProblem(w, http.StatusNotFound, "Run not found", id, r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runId": id, "stages": stages})
}

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	body := map[string]string{"status": "ok"}
	for k, v := range buildinfo.Info() {
		body[k] = v
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	if s.Cache != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		if err := s.Cache.Ping(ctx); err != nil {
			writeProblem(w, http.StatusServiceUnavailable, "Not Ready", err.Error(), r.URL.Path)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
