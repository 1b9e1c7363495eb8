package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/11-rizwan/health-mirror-stage-3/server/internal/config"
)

// Need selects which identity headers a route requires.
type Need int

const (
	NeedUser Need = 1 << iota
	NeedTeam

	NeedBoth = NeedUser | NeedTeam
)

// Identity is the caller as asserted by the authenticating proxy.
type Identity struct {
	UserID string
	TeamID string
}

type ctxKey struct{}

// FromContext returns the Identity stored by Require.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// Read extracts the identity headers named in cfg. Values are trimmed.
func Read(r *http.Request, cfg config.IdentityConfig) Identity {
	return Identity{
		UserID: strings.TrimSpace(r.Header.Get(cfg.UserHeader)),
		TeamID: strings.TrimSpace(r.Header.Get(cfg.TeamHeader)),
	}
}

// Require wraps next so that requests lacking a needed header are rejected
// with 400 and a JSON error body. Accepted requests carry the Identity in
// their context.
func Require(cfg config.IdentityConfig, need Need, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := Read(r, cfg)
		if need&NeedUser != 0 && id.UserID == "" {
			reject(w, cfg.UserHeader)
			return
		}
		if need&NeedTeam != 0 && id.TeamID == "" {
			reject(w, cfg.TeamHeader)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

func reject(w http.ResponseWriter, header string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(map[string]string{ //nolint:errcheck
		"error": "missing " + header + " header",
	})
}
