package api

import (
	"encoding/json"
	"net/http"

	"crewplan/internal/opt"
)

// Problem represents an RFC7807 problem details response body.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
	Kind     string `json:"kind,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, status int, title, detail, instance string) {
	writeJSON(w, status, Problem{
		Type:     "about:blank",
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: instance,
	})
}

// statusFor maps planner error kinds to HTTP statuses.
func statusFor(k opt.Kind) (int, string) {
	switch k {
	case opt.KindInput:
		return http.StatusBadRequest, "Invalid planning request"
	case opt.KindSolve:
		return http.StatusUnprocessableEntity, "No feasible plan"
	default:
		return http.StatusInternalServerError, "Planner failure"
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := opt.KindOf(err)
	status, title := statusFor(kind)
	writeJSON(w, status, Problem{
		Type:     "about:blank",
		Title:    title,
		Status:   status,
		Detail:   err.Error(),
		Instance: r.URL.Path,
		Kind:     string(kind),
	})
}
