package opt

import (
	"sync"
	"time"
)

// RunMetrics summarises one optimizer invocation.
type RunMetrics struct {
	RunID           string    `json:"runId"`
	Stage           string    `json:"stage"`
	Leg             int       `json:"leg"`
	Status          string    `json:"status"`
	Objective       float64   `json:"objective"`
	Vars            int       `json:"vars"`
	Constraints     int       `json:"constraints"`
	Nodes           int64     `json:"nodes"`
	Solutions       int       `json:"solutions"`
	LNSIterations   int64     `json:"lnsIterations"`
	LNSImprovements int64     `json:"lnsImprovements"`
	OperatorWeights []float64 `json:"operatorWeights,omitempty"`
	Workers         int       `json:"workers"`
	Winner          int       `json:"winner"`
	ElapsedMs       int64     `json:"elapsedMs"`
	StartedAt       time.Time `json:"startedAt"`
}

// RunLog keeps the most recent runs in memory, newest last.
type RunLog struct {
	mu   sync.Mutex
	size int
	runs []RunMetrics
}

func NewRunLog(size int) *RunLog {
	if size <= 0 {
		size = 100
	}
	return &RunLog{size: size}
}

func (l *RunLog) Record(m RunMetrics) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.runs = append(l.runs, m)
	if len(l.runs) > l.size {
		l.runs = append([]RunMetrics(nil), l.runs[len(l.runs)-l.size:]...)
	}
}

// Recent returns up to n runs, newest first. n <= 0 returns all.
func (l *RunLog) Recent(n int) []RunMetrics {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n <= 0 || n > len(l.runs) {
		n = len(l.runs)
	}
	out := make([]RunMetrics, 0, n)
	for i := len(l.runs) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, l.runs[i])
	}
	return out
}

// Get returns the stages recorded for a run id, keyed by stage.
func (l *RunLog) Get(runID string) map[string]RunMetrics {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := map[string]RunMetrics{}
	for _, r := range l.runs {
		if r.RunID == runID {
			out[r.Stage] = r
		}
	}
	return out
}
