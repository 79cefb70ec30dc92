package httpapi

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/fairyhunter13/catalog-delta-sync/internal/config"
	"github.com/fairyhunter13/catalog-delta-sync/internal/model"
	"github.com/fairyhunter13/catalog-delta-sync/internal/obs"
)

// Runner is the sync orchestrator's single entry point as seen by the
// trigger surface.
type Runner interface {
	Run(ctx context.Context) (model.RunReport, error)
}

type App struct {
	Cfg    config.Config
	Runner Runner

	mu         sync.Mutex
	running    bool
	closing    bool
	lastReport *model.RunReport
	runsTotal  uint64
	started    time.Time
}

func NewApp(cfg config.Config, r Runner) *App {
	return &App{Cfg: cfg, Runner: r, started: time.Now()}
}

// StartShutdown rejects further run requests; a run already in flight
// finishes on its own budget.
func (a *App) StartShutdown() {
	a.mu.Lock()
	a.closing = true
	a.mu.Unlock()
}

// RunInFlight reports whether a sync run is currently executing.
func (a *App) RunInFlight() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

// postRunsHandler triggers one sync run and returns its report. Runs are
// serialized: a second trigger while one is in flight gets 409.
func (a *App) postRunsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}
	a.mu.Lock()
	if a.closing {
		a.mu.Unlock()
		WriteJSONError(w, http.StatusServiceUnavailable, "shutting_down", "")
		return
	}
	if a.running {
		a.mu.Unlock()
		WriteJSONError(w, http.StatusConflict, "run_in_progress", "a sync run is already executing")
		return
	}
	a.running = true
	a.mu.Unlock()

	report, err := a.Runner.Run(r.Context())

	a.mu.Lock()
	a.running = false
	if err == nil {
		a.lastReport = &report
		a.runsTotal++
	}
	a.mu.Unlock()

	if err != nil {
		obs.Logger.Error("run_trigger_failed", "request_id", RequestIDFromContext(r.Context()), "error", err)
		WriteJSONError(w, http.StatusBadGateway, "run_failed", err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, report)
}

func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *App) metricsHandler(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	last := a.lastReport
	runs := a.runsTotal
	running := a.running
	a.mu.Unlock()
	m := map[string]any{
		"runs_total":    runs,
		"run_in_flight": running,
		"uptime_sec":    time.Since(a.started).Seconds(),
	}
	if last != nil {
		m["last_report"] = last
	}
	WriteJSON(w, http.StatusOK, m)
}
