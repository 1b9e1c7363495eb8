package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/11-rizwan/health-mirror-stage-3/server/internal/aggregate"
	"github.com/11-rizwan/health-mirror-stage-3/server/internal/alerts"
	"github.com/11-rizwan/health-mirror-stage-3/server/internal/analyzer"
	"github.com/11-rizwan/health-mirror-stage-3/server/internal/auth"
	"github.com/11-rizwan/health-mirror-stage-3/server/internal/config"
	"github.com/11-rizwan/health-mirror-stage-3/server/internal/metrics"
	"github.com/11-rizwan/health-mirror-stage-3/server/internal/shipper"
	"github.com/11-rizwan/health-mirror-stage-3/server/internal/store"
)

const (
	historyTimeLayout = "2006-01-02 15:04"
	maxSummaryBytes   = 64 << 10
)

var (
	naJSON   = json.RawMessage(`"N/A"`)
	zeroJSON = json.RawMessage(`0`)
)

// Deps are the collaborators the API reads from. Alerts and Metrics may be nil.
type Deps struct {
	Store    store.Store
	Shipper  *shipper.Shipper
	Sessions *analyzer.Registry
	Alerts   *alerts.Engine
	Metrics  *metrics.Metrics
}

// Handler is the HTTP handler for all /api/v1/* endpoints.
type Handler struct {
	deps     Deps
	loc      *time.Location
	identity config.IdentityConfig
	limit    int
	now      func() time.Time
	mux      *http.ServeMux
}

// New creates a Handler and registers all routes.
func New(cfg *config.Config, deps Deps) http.Handler {
	h := &Handler{
		deps:     deps,
		loc:      cfg.Server.Location(),
		identity: cfg.Server.Identity,
		limit:    cfg.Storage.HistoryLimit,
		now:      time.Now,
		mux:      http.NewServeMux(),
	}

	h.mux.Handle("/api/v1/dashboard", h.route(http.MethodGet, auth.NeedTeam, h.dashboard))
	h.mux.Handle("/api/v1/history", h.route(http.MethodGet, auth.NeedUser, h.history))
	h.mux.Handle("/api/v1/sessions", h.route(http.MethodPost, auth.NeedBoth, h.saveSession))
	h.mux.Handle("/api/v1/alerts", h.route(http.MethodGet, auth.NeedTeam, h.alerts))
	h.mux.Handle("/api/v1/status", h.route(http.MethodGet, 0, h.status))

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// route checks the method before the identity headers.
func (h *Handler) route(method string, need auth.Need, fn http.HandlerFunc) http.Handler {
	inner := auth.Require(h.identity, need, fn)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			w.Header().Set("Allow", method)
			jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		inner.ServeHTTP(w, r)
	})
}

// --- route handlers ---------------------------------------------------------

// dashboard returns GET /api/v1/dashboard: the team aggregate.
func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	recs, err := h.deps.Store.TeamRecords(r.Context(), id.TeamID)
	if err != nil {
		slog.Error("api: load team records", "team", id.TeamID, "err", err)
		jsonErr(w, http.StatusInternalServerError, "could not load sessions")
		return
	}
	in := make([]aggregate.Record, len(recs))
	for i, rec := range recs {
		in[i] = aggregate.Record{Payload: rec.Payload, CreatedAt: rec.CreatedAt}
	}
	jsonResp(w, http.StatusOK, aggregate.Build(in, h.loc))
}

// history returns GET /api/v1/history: the caller's latest summaries.
func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	recs, err := h.deps.Store.History(r.Context(), id.UserID, h.limit)
	if err != nil {
		slog.Error("api: load history", "user", id.UserID, "err", err)
		jsonErr(w, http.StatusInternalServerError, "could not load history")
		return
	}
	out := make([]HistoryItem, 0, len(recs))
	for _, rec := range recs {
		out = append(out, h.historyItem(rec))
	}
	jsonResp(w, http.StatusOK, out)
}

func (h *Handler) historyItem(rec store.Record) HistoryItem {
	item := HistoryItem{
		Timestamp:       rec.CreatedAt.In(h.loc).Format(historyTimeLayout),
		DominantEmotion: naJSON,
		AvgScore:        naJSON,
		FatigueEvents:   zeroJSON,
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(rec.Payload, &fields); err != nil {
		slog.Warn("api: history record is not a JSON object", "id", rec.ID, "err", err)
		return item
	}
	if v, ok := fields["dominantEmotion"]; ok {
		item.DominantEmotion = v
	}
	if v, ok := fields["avgScore"]; ok {
		item.AvgScore = v
	}
	if v, ok := fields["fatigueEvents"]; ok {
		item.FatigueEvents = v
	}
	return item
}

// saveSession handles POST /api/v1/sessions: the body is stored verbatim.
func (h *Handler) saveSession(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxSummaryBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonErr(w, http.StatusRequestEntityTooLarge, "summary too large")
			return
		}
		jsonErr(w, http.StatusBadRequest, "could not read body")
		return
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 || !json.Valid(body) {
		jsonErr(w, http.StatusBadRequest, "body must be JSON")
		return
	}

	id, _ := auth.FromContext(r.Context())
	done := make(chan error, 1)
	h.deps.Shipper.Ship(shipper.Job{
		Record: store.Record{
			UserID:  id.UserID,
			TeamID:  id.TeamID,
			Payload: body,
		},
		Done: func(err error) { done <- err },
	})

	select {
	case err := <-done:
		if h.deps.Metrics != nil {
			h.deps.Metrics.SummarySaved(err)
		}
		if err != nil {
			jsonErr(w, http.StatusServiceUnavailable, "could not save session")
			return
		}
		jsonResp(w, http.StatusCreated, SavedResponse{Status: "success"})
	case <-r.Context().Done():
		// The client left; the shipper still owns the write.
	}
}

// alerts returns GET /api/v1/alerts: the team's firing and recently
// resolved alerts.
func (h *Handler) alerts(w http.ResponseWriter, r *http.Request) {
	out := make([]alerts.Alert, 0)
	if h.deps.Alerts != nil {
		id, _ := auth.FromContext(r.Context())
		for _, a := range h.deps.Alerts.Active() {
			if a.TeamID == id.TeamID {
				out = append(out, a)
			}
		}
	}
	jsonResp(w, http.StatusOK, out)
}

// status returns GET /api/v1/status: readiness and counters.
func (h *Handler) status(w http.ResponseWriter, _ *http.Request) {
	resp := StatusResponse{
		Status:        "ok",
		Sessions:      h.deps.Sessions.Count(),
		PendingWrites: h.deps.Shipper.Pending(),
		GeneratedAt:   h.now().UTC().Format(time.RFC3339),
	}
	if h.deps.Sessions.Degraded() {
		resp.Status = "degraded"
	}
	if h.deps.Metrics != nil {
		vals, err := h.deps.Metrics.Values()
		if err != nil {
			slog.Warn("api: gather metrics", "err", err)
		}
		resp.Metrics = vals
	}
	jsonResp(w, http.StatusOK, resp)
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
