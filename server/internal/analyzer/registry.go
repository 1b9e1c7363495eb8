package analyzer

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/11-rizwan/health-mirror-stage-3/pkg/types"
	"github.com/11-rizwan/health-mirror-stage-3/server/internal/config"
)

// ErrSessionExists is returned by Open for an ID that is already live.
var ErrSessionExists = errors.New("analyzer: session already open")

// Registry is the arena of live sessions, keyed by session ID. Sessions
// share nothing but the read-only capabilities in Deps.
//
// A registry created degraded stays degraded: every session it opens
// returns the model-error result and nothing is retried.
//
// All exported methods are safe for concurrent use.
type Registry struct {
	deps     Deps
	degraded bool

	mu       sync.RWMutex
	cfg      config.AnalyzerConfig
	sessions map[string]*Analyzer
}

// NewRegistry returns an empty Registry. Landmarks and Model in deps may be
// nil only when degraded is true.
func NewRegistry(cfg config.AnalyzerConfig, deps Deps, degraded bool) *Registry {
	return &Registry{
		deps:     deps.withDefaults(),
		degraded: degraded,
		cfg:      cfg,
		sessions: make(map[string]*Analyzer),
	}
}

// Open creates the analyzer for a new session with the current settings.
func (r *Registry) Open(id string) (*Analyzer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionExists, id)
	}
	a := newAnalyzer(id, r.cfg, r.deps, r.degraded)
	r.sessions[id] = a
	slog.Debug("analyzer: session opened", "session", id, "degraded", r.degraded)
	return a, nil
}

// Get returns the live analyzer for id.
func (r *Registry) Get(id string) (*Analyzer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.sessions[id]
	return a, ok
}

// Close discards the session and returns its final summary. ok is false if
// the session was not open.
func (r *Registry) Close(id string) (types.SessionSummary, bool) {
	r.mu.Lock()
	a, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return types.SessionSummary{}, false
	}
	a.close()
	slog.Debug("analyzer: session closed", "session", id)
	return a.Summary(), true
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Degraded reports whether the registry runs without a model.
func (r *Registry) Degraded() bool { return r.degraded }

// SetConfig replaces the analyzer settings for sessions opened afterwards.
// Live sessions keep the settings they were opened with.
func (r *Registry) SetConfig(cfg config.AnalyzerConfig) {
	r.mu.Lock()
	r.cfg = cfg
	r.mu.Unlock()
}
