// Package health serves the haulvox liveness and readiness probes.
//
//   - /healthz reports the process alive and its uptime; always 200.
//   - /readyz evaluates the dependency checkers and returns 200 only when
//     every one passes.
//
// The readiness body carries one entry per checker with its status, latency,
// and failure detail, so a failing probe names the broken dependency instead
// of a bare 503.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"
)

// checkTimeout bounds a single readiness check.
const checkTimeout = 5 * time.Second

// Checker probes one dependency. Check must return nil when the dependency
// is usable and must respect context cancellation.
type Checker struct {
	// Name labels the check in the readiness body, e.g. "store".
	Name string

	// Check probes the dependency.
	Check func(ctx context.Context) error
}

// Pinger is the probe surface the persistence store exposes.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Store returns the persistence readiness check. A nil store reports failing:
// the server could still hold conversations, but summaries and call results
// would be dropped.
func Store(p Pinger) Checker {
	return Checker{
		Name: "store",
		Check: func(ctx context.Context) error {
			if p == nil {
				return errors.New("persistence not configured")
			}
			return p.Ping(ctx)
		},
	}
}

// Telephony returns the outbound-calling readiness check. configured reports
// whether a carrier client is wired.
func Telephony(configured func() bool) Checker {
	return Checker{
		Name: "telephony",
		Check: func(context.Context) error {
			if !configured() {
				return errors.New("carrier not configured")
			}
			return nil
		},
	}
}

// checkStatus is one checker's entry in the readiness body.
type checkStatus struct {
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
	Latency string `json:"latency"`
}

// report is the JSON body both probes return.
type report struct {
	Status string                 `json:"status"`
	Uptime string                 `json:"uptime,omitempty"`
	Checks map[string]checkStatus `json:"checks,omitempty"`
}

// Handler serves the probe endpoints. Safe for concurrent use; the checker
// list is fixed at construction.
type Handler struct {
	checkers []Checker
	started  time.Time
}

// New creates a Handler over the given checkers.
func New(checkers ...Checker) *Handler {
	c := make([]Checker, len(checkers))
	copy(c, checkers)
	return &Handler{checkers: c, started: time.Now()}
}

// Healthz is the liveness probe. A process that can serve HTTP is alive.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, report{
		Status: "ok",
		Uptime: time.Since(h.started).Round(time.Second).String(),
	})
}

// Readyz is the readiness probe. The checkers run concurrently, each under
// its own checkTimeout deadline; one slow dependency must not starve the
// others of probe budget.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]checkStatus, len(h.checkers))
	ready := true

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, c := range h.checkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
			defer cancel()

			start := time.Now()
			err := c.Check(ctx)
			entry := checkStatus{Status: "ok", Latency: time.Since(start).Round(time.Microsecond).String()}
			if err != nil {
				entry.Status = "fail"
				entry.Error = err.Error()
			}

			mu.Lock()
			checks[c.Name] = entry
			if err != nil {
				ready = false
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	res := report{Status: "ok", Checks: checks}
	status := http.StatusOK
	if !ready {
		res.Status = "fail"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, res)
}

// Register adds the probe routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

// writeJSON encodes v with the given status code. On encoding failure it
// falls back to a plain 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
