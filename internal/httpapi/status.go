package httpapi

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"time"

	"irrigation-node/internal/connectivity"
	"irrigation-node/internal/journal"
	"irrigation-node/internal/utils"
	"irrigation-node/internal/views"
)

const (
	defaultCycleLimit = 20
	maxCycleLimit     = 500
)

// Link reports the connectivity flags.
type Link interface {
	State() connectivity.State
}

// Loop exposes the most recent control cycle.
type Loop interface {
	Last() (journal.Cycle, bool)
}

type Clock interface {
	Now() time.Time
}

// Status is the body of GET /api/v1/status.
type Status struct {
	DeviceID         string         `json:"device_id"`
	Version          string         `json:"version"`
	RunID            string         `json:"run_id"`
	Connected        bool           `json:"connected"`
	TimeSynchronized bool           `json:"time_synchronized"`
	LocalTime        string         `json:"local_time"`
	PumpRuns24h      int            `json:"pump_runs_24h"`
	LastCycle        *journal.Cycle `json:"last_cycle"`
}

type statusHandlers struct {
	deps Deps
}

func (h *statusHandlers) status(ctx context.Context) (Status, error) {
	now := h.deps.Clock.Now()
	state := h.deps.Link.State()

	runs, err := h.deps.Journal.CountPumpRunsSince(ctx, now.Add(-24*time.Hour))
	if err != nil {
		return Status{}, err
	}

	st := Status{
		DeviceID:         h.deps.DeviceID,
		Version:          h.deps.Version,
		RunID:            h.deps.RunID,
		Connected:        state.Connected,
		TimeSynchronized: state.TimeSynchronized,
		LocalTime:        now.Format(time.RFC3339),
		PumpRuns24h:      runs,
	}
	if last, ok := h.deps.Loop.Last(); ok {
		st.LastCycle = &last
	}
	return st, nil
}

func (h *statusHandlers) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.status(r.Context())
	if err != nil {
		slog.Error("failed to count pump runs", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to count pump runs")
		return
	}
	utils.WriteJSON(w, http.StatusOK, st)
}

func (h *statusHandlers) handleDashboard(w http.ResponseWriter, r *http.Request) {
	st, err := h.status(r.Context())
	if err != nil {
		slog.Error("dashboard: count pump runs failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to count pump runs")
		return
	}
	cycles, err := h.deps.Journal.LatestCycles(r.Context(), defaultCycleLimit)
	if err != nil {
		slog.Error("dashboard: load cycles failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load cycles")
		return
	}

	var buf bytes.Buffer
	err = views.RenderDashboard(&buf, &views.DashboardData{
		DeviceID:         st.DeviceID,
		Version:          st.Version,
		LocalTime:        st.LocalTime,
		Connected:        st.Connected,
		TimeSynchronized: st.TimeSynchronized,
		PumpRuns24h:      st.PumpRuns24h,
		LastCycle:        st.LastCycle,
		Cycles:           cycles,
	})
	if err != nil {
		slog.Error("dashboard template render failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to render page")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Error("dashboard: write response failed", "error", err)
	}
}

func (h *statusHandlers) handleCycles(w http.ResponseWriter, r *http.Request) {
	limit, err := utils.QueryLimit(r, defaultCycleLimit, maxCycleLimit)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	cycles, err := h.deps.Journal.LatestCycles(r.Context(), limit)
	if err != nil {
		slog.Error("failed to load cycles", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load cycles")
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]any{
		"limit": limit,
		"items": cycles,
	})
}

// handleCyclesPartial serves the cycle table alone for in-page refresh.
func (h *statusHandlers) handleCyclesPartial(w http.ResponseWriter, r *http.Request) {
	limit, err := utils.QueryLimit(r, defaultCycleLimit, maxCycleLimit)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	cycles, err := h.deps.Journal.LatestCycles(r.Context(), limit)
	if err != nil {
		slog.Error("cycles partial: load cycles failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load cycles")
		return
	}

	var buf bytes.Buffer
	if err := views.RenderCyclesPartial(&buf, cycles); err != nil {
		slog.Error("cycles partial render failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to render")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Error("cycles partial: write response failed", "error", err)
	}
}

func registerStatus(mux *http.ServeMux, deps Deps) {
	h := &statusHandlers{deps: deps}
	mux.HandleFunc("GET /{$}", h.handleDashboard)
	mux.HandleFunc("GET /api/v1/status", h.handleStatus)
	mux.HandleFunc("GET /api/v1/cycles", h.handleCycles)
	mux.HandleFunc("GET /partials/cycles", h.handleCyclesPartial)
}
