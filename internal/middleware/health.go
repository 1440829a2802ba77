package middleware

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/render"
)

const checkTimeout = 5 * time.Second

// HealthChecker is a dependency the service can report on (archive bucket, ...).
type HealthChecker interface {
	Check(ctx context.Context) error
}

// CheckFunc adapts a function to HealthChecker
type CheckFunc func(ctx context.Context) error

func (f CheckFunc) Check(ctx context.Context) error { return f(ctx) }

type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckStatus `json:"checks,omitempty"`
}

type CheckStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthHandler runs every checker under one shared deadline. Any failing
// checker turns the whole report unhealthy with 503.
func HealthHandler(checkers map[string]HealthChecker) http.HandlerFunc {
	names := make([]string, 0, len(checkers))
	for name := range checkers {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		defer cancel()

		report := HealthStatus{Status: "healthy", Timestamp: time.Now().UTC()}
		if len(names) > 0 {
			report.Checks = make(map[string]CheckStatus, len(names))
		}
		for _, name := range names {
			st := CheckStatus{Status: "healthy"}
			if err := checkers[name].Check(ctx); err != nil {
				st = CheckStatus{Status: "unhealthy", Message: err.Error()}
				report.Status = "unhealthy"
			}
			report.Checks[name] = st
		}

		if report.Status != "healthy" {
			render.Status(r, http.StatusServiceUnavailable)
		}
		render.JSON(w, r, report)
	}
}

// ReadinessHandler: process is up and the router is mounted
func ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, HealthStatus{Status: "ready", Timestamp: time.Now().UTC()})
}

// LivenessHandler: plain "ok", nothing else is touched
func LivenessHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}
