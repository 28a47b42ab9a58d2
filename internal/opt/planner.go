package opt

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"crewplan/internal/metrics"
	"crewplan/internal/mip"
)

const (
	StageClusters = "clusters"
	StageLeg      = "leg"
)

// Progress is reported for every improved incumbent while a stage solves.
type Progress struct {
	RunID     string        `json:"runId"`
	Stage     string        `json:"stage"`
	Leg       int           `json:"leg"`
	Objective float64       `json:"objective"`
	Worker    int           `json:"worker"`
	Elapsed   time.Duration `json:"elapsedNs"`
}

// Planner runs the clustering and crew optimizers. A Planner is safe for
// concurrent use; every call builds its own model.
type Planner struct {
	Solver mip.Solver
	Logger zerolog.Logger
	Runs   *RunLog
	Tracer trace.Tracer

	progress func(Progress)
}

func NewPlanner(log zerolog.Logger) *Planner {
	return &Planner{
		Solver: mip.NewSearch(),
		Logger: log,
		Runs:   NewRunLog(200),
		Tracer: otel.Tracer("crewplan/opt"),
	}
}

// WithProgress returns a copy of the planner reporting progress to fn.
func (pl *Planner) WithProgress(fn func(Progress)) *Planner {
	c := *pl
	c.progress = fn
	return &c
}

func (pl *Planner) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tr := pl.Tracer
	if tr == nil {
		tr = otel.Tracer("crewplan/opt")
	}
	return tr.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

type solveRequest struct {
	runID   string
	stage   string
	leg     int
	model   *mip.Model
	limit   time.Duration
	workers int
	seed    int64
}

// solve runs the backend and records logs, metrics and the run log entry.
func (pl *Planner) solve(ctx context.Context, req solveRequest) (*mip.Solution, error) {
	if req.runID == "" {
		req.runID = uuid.NewString()
	}
	log := pl.Logger.With().Str("runId", req.runID).Str("stage", req.stage).Int("leg", req.leg).Logger()
	started := time.Now()
	params := mip.Params{
		TimeLimit: req.limit,
		Workers:   req.workers,
		Seed:      req.seed,
		Logger:    log,
	}
	if pl.progress != nil {
		params.OnSolution = func(p mip.Progress) {
			pl.progress(Progress{RunID: req.runID, Stage: req.stage, Leg: req.leg, Objective: p.Objective, Worker: p.Worker, Elapsed: p.Elapsed})
		}
	}
	solver := pl.Solver
	if solver == nil {
		solver = mip.NewSearch()
	}
	metrics.ModelSize.WithLabelValues(req.stage, "vars").Set(float64(req.model.NumVars()))
	metrics.ModelSize.WithLabelValues(req.stage, "constraints").Set(float64(req.model.NumConstraints()))
	log.Info().Str("model", req.model.String()).Dur("timeLimit", req.limit).Int("workers", req.workers).Msg("solving")

	sol, err := solver.Solve(ctx, req.model, params)
	elapsed := time.Since(started)
	if err != nil {
		metrics.Solves.WithLabelValues(req.stage, "error").Inc()
		log.Error().Err(err).Dur("elapsed", elapsed).Msg("solver failed")
		return nil, err
	}
	status := sol.Status.String()
	metrics.Solves.WithLabelValues(req.stage, status).Inc()
	metrics.SolveDuration.WithLabelValues(req.stage, status).Observe(elapsed.Seconds())
	metrics.SearchNodes.WithLabelValues(req.stage).Add(float64(sol.Stats.Nodes))
	metrics.LNSImprovements.WithLabelValues(req.stage).Add(float64(sol.Stats.LNSImprovements))
	if sol.Status.HasSolution() {
		metrics.Objective.WithLabelValues(req.stage).Set(sol.Objective)
	}
	pl.Runs.Record(RunMetrics{
		RunID:           req.runID,
		Stage:           req.stage,
		Leg:             req.leg,
		Status:          status,
		Objective:       sol.Objective,
		Vars:            req.model.NumVars(),
		Constraints:     req.model.NumConstraints(),
		Nodes:           sol.Stats.Nodes,
		Solutions:       sol.Stats.Solutions,
		LNSIterations:   sol.Stats.LNSIterations,
		LNSImprovements: sol.Stats.LNSImprovements,
		OperatorWeights: sol.Stats.OperatorWeights,
		Workers:         sol.Stats.Workers,
		Winner:          sol.Stats.Winner,
		ElapsedMs:       elapsed.Milliseconds(),
		StartedAt:       started,
	})
	log.Info().Str("status", status).Float64("objective", sol.Objective).Int64("nodes", sol.Stats.Nodes).
		Int("solutions", sol.Stats.Solutions).Dur("elapsed", elapsed).Msg("solved")
	return sol, nil
}

type runIDKey struct{}

// withRunID makes every stage solved under ctx share one run id.
func withRunID(ctx context.Context) context.Context {
	return context.WithValue(ctx, runIDKey{}, uuid.NewString())
}

func runIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(runIDKey{}).(string); ok {
		return id
	}
	return uuid.NewString()
}
