package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/11-rizwan/health-mirror-stage-3/pkg/types"
	"github.com/11-rizwan/health-mirror-stage-3/server/internal/config"
)

const (
	defaultCooldown = 15 * time.Minute
	defaultSeverity = "warning"
	maxHistoryLen   = 200
	recentWindow    = time.Hour
	deliveryTimeout = 10 * time.Second

	stateFiring   = "firing"
	stateResolved = "resolved"
)

// Alert represents a single alert event produced by the rule engine.
type Alert struct {
	ID         string     `json:"id"`
	RuleName   string     `json:"rule_name"`
	SessionID  string     `json:"session_id"`
	TeamID     string     `json:"team_id,omitempty"`
	Severity   string     `json:"severity"`
	Message    string     `json:"message"`
	Value      float64    `json:"value"`
	FiredAt    time.Time  `json:"fired_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	State      string     `json:"state"` // "firing" | "resolved"
}

// Sink delivers alert state changes to one external target.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, a Alert) error
}

// Engine evaluates alert rules against each session's analysis results and
// hands firing and resolved alerts to its sinks.
//
// Engine is safe for concurrent use.
type Engine struct {
	sinks []Sink

	// OnFire, if set, is called synchronously for every alert that fires.
	OnFire func(Alert)

	now func() time.Time

	mu       sync.Mutex
	rules    []config.AlertRule
	active   map[string]*Alert    // key: "ruleName:sessionID"
	lastFire map[string]time.Time // last fire time per key (for cooldown)
	history  []*Alert             // recently resolved alerts
	wg       sync.WaitGroup
}

// New creates an Engine with rules from cfg delivering to sinks.
// An Engine with no rules is valid; Evaluate becomes a no-op.
func New(cfg config.AlertsConfig, sinks ...Sink) *Engine {
	return &Engine{
		sinks:    sinks,
		now:      time.Now,
		rules:    usableRules(cfg.Rules),
		active:   make(map[string]*Alert),
		lastFire: make(map[string]time.Time),
	}
}

// SetRules replaces the rule set. Alerts of removed rules stay in place
// until their session is forgotten.
func (e *Engine) SetRules(rules []config.AlertRule) {
	e.mu.Lock()
	e.rules = usableRules(rules)
	e.mu.Unlock()
	slog.Info("alerts: rules updated", "count", len(rules))
}

func usableRules(rules []config.AlertRule) []config.AlertRule {
	out := make([]config.AlertRule, 0, len(rules))
	for _, r := range rules {
		if !validCondition(r.Condition) {
			slog.Warn("alerts: ignoring rule with unsupported condition",
				"rule", r.Name, "condition", r.Condition)
			continue
		}
		out = append(out, r)
	}
	return out
}

// Evaluate tests every rule against one result of sessionID and returns the
// alerts that fired. Alerts whose condition no longer holds are resolved.
// Delivery to sinks happens in the background.
func (e *Engine) Evaluate(sessionID, teamID string, r types.AnalysisResult) []Alert {
	e.mu.Lock()
	rules := e.rules
	e.mu.Unlock()
	if len(rules) == 0 {
		return nil
	}

	now := e.now()
	var fired []Alert
	for _, rule := range rules {
		key := rule.Name + ":" + sessionID
		fires, value := evalCondition(rule.Condition, r)

		e.mu.Lock()
		if fires {
			cooldown := rule.Cooldown
			if cooldown <= 0 {
				cooldown = defaultCooldown
			}
			last, seen := e.lastFire[key]
			if seen && now.Sub(last) <= cooldown {
				e.mu.Unlock()
				continue
			}
			sev := rule.Severity
			if sev == "" {
				sev = defaultSeverity
			}
			a := &Alert{
				ID:        uuid.NewString(),
				RuleName:  rule.Name,
				SessionID: sessionID,
				TeamID:    teamID,
				Severity:  sev,
				Value:     value,
				Message: fmt.Sprintf("[%s] %s fired for session %s: %s (value %.2f)",
					sev, rule.Name, sessionID, rule.Condition, value),
				FiredAt: now,
				State:   stateFiring,
			}
			if prev, ok := e.active[key]; ok {
				// Superseded by the re-fire; keep it visible in history.
				e.resolveLocked(key, prev, now)
			}
			e.active[key] = a
			e.lastFire[key] = now
			cp := *a
			e.mu.Unlock()

			slog.Warn("alerts: alert fired",
				"rule", rule.Name,
				"session", sessionID,
				"value", value,
				"severity", sev,
			)
			if e.OnFire != nil {
				e.OnFire(cp)
			}
			fired = append(fired, cp)
			e.dispatch(cp)
			continue
		}

		a, ok := e.active[key]
		if !ok {
			e.mu.Unlock()
			continue
		}
		cp := e.resolveLocked(key, a, now)
		e.mu.Unlock()

		slog.Info("alerts: alert resolved", "rule", rule.Name, "session", sessionID)
		e.dispatch(cp)
	}
	return fired
}

// Forget resolves every active alert of sessionID without delivery and
// drops its cooldown state. Called when a session closes.
func (e *Engine) Forget(sessionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.now()
	for key, a := range e.active {
		if a.SessionID == sessionID {
			e.resolveLocked(key, a, now)
		}
	}
	for key := range e.lastFire {
		if keySession(key) == sessionID {
			delete(e.lastFire, key)
		}
	}
}

func keySession(key string) string {
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == ':' {
			return key[i+1:]
		}
	}
	return ""
}

// resolveLocked moves a from active to history. e.mu must be held.
func (e *Engine) resolveLocked(key string, a *Alert, now time.Time) Alert {
	resolved := now
	a.State = stateResolved
	a.ResolvedAt = &resolved
	delete(e.active, key)

	e.history = append(e.history, a)
	if len(e.history) > maxHistoryLen {
		e.history = e.history[len(e.history)-maxHistoryLen:]
	}
	return *a
}

// Active returns copies of all currently firing alerts plus any alerts
// resolved within the past hour, newest first.
func (e *Engine) Active() []Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	cutoff := e.now().Add(-recentWindow)
	out := make([]Alert, 0, len(e.active))
	for _, a := range e.active {
		out = append(out, *a)
	}
	for _, a := range e.history {
		if a.ResolvedAt != nil && a.ResolvedAt.After(cutoff) {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FiredAt.After(out[j].FiredAt) })
	return out
}

// Wait blocks until all in-flight deliveries finish.
func (e *Engine) Wait() {
	e.wg.Wait()
}

func (e *Engine) dispatch(a Alert) {
	if len(e.sinks) == 0 {
		return
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.deliver(a)
	}()
}

// deliver sends a to every sink. Errors are logged but do not affect the
// caller.
func (e *Engine) deliver(a Alert) {
	for _, s := range e.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
		err := s.Deliver(ctx, a)
		cancel()
		if err != nil {
			slog.Error("alerts: delivery failed",
				"sink", s.Name(),
				"rule", a.RuleName,
				"err", err,
			)
			continue
		}
		slog.Debug("alerts: delivered",
			"sink", s.Name(),
			"rule", a.RuleName,
			"state", a.State,
		)
	}
}
