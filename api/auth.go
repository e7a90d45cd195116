/*
auth.go - Session verification and the scheduler credential

PURPOSE:
  Builds the core.Actor that every service call requires. Two ways in:

  1. Session JWT (HMAC-SHA256, SESSION_SECRET): issued by the identity
     layer in front of this engine. We only VERIFY: subject is the
     employee ID, "wsp" the workspace. The role is loaded fresh from
     the store on every request so demotions apply immediately.

  2. Scheduler secret (SCHEDULER_SECRET): a shared bearer credential
     for the background scheduler and ops scripts. It carries no
     workspace; handlers on the automation routes detect it and sweep
     every workspace with a system actor.

SECURITY NOTE:
  Issuing sessions (login, password, MFA) is out of scope here; the
  engine trusts any token signed with SESSION_SECRET.

SEE ALSO:
  - server.go: which routes are gated
  - core/actor.go: the Actor and role model
*/
package api

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/schichtwerk/shift-engine/core"
)

// =============================================================================
// SESSION CLAIMS
// =============================================================================

// SessionClaims is the verified payload of a session token.
type SessionClaims struct {
	WorkspaceID string `json:"wsp"`
	jwt.RegisteredClaims
}

// Auth verifies credentials and resolves actors.
type Auth struct {
	SessionSecret   []byte
	SchedulerSecret string
	Store           core.Store
}

type ctxKey int

const (
	actorKey ctxKey = iota
	schedulerKey
)

// ActorFrom returns the authenticated actor stored by the middleware.
func ActorFrom(ctx context.Context) (core.Actor, bool) {
	a, ok := ctx.Value(actorKey).(core.Actor)
	return a, ok
}

// IsScheduler reports whether the request authenticated with the
// scheduler secret instead of a session.
func IsScheduler(ctx context.Context) bool {
	ok, _ := ctx.Value(schedulerKey).(bool)
	return ok
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

// RequireSession rejects requests without a valid session token and
// stores the resolved Actor in the request context.
func (a *Auth) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, err := a.resolveSession(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Authentication required", err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey, actor)))
	})
}

// RequireSessionOrScheduler additionally accepts the shared scheduler
// secret. Secret-authenticated requests get no actor; handlers check
// IsScheduler and sweep all workspaces.
func (a *Auth) RequireSessionOrScheduler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if a.SchedulerSecret != "" &&
			subtle.ConstantTimeCompare([]byte(token), []byte(a.SchedulerSecret)) == 1 {
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), schedulerKey, true)))
			return
		}
		actor, err := a.resolveSession(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Authentication required", err)
			return
		}
		if !actor.Role.IsManagement() {
			writeError(w, http.StatusForbidden, "Management role required", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey, actor)))
	})
}

func (a *Auth) resolveSession(r *http.Request) (core.Actor, error) {
	raw := bearerToken(r)
	if raw == "" {
		return core.Actor{}, fmt.Errorf("missing bearer token")
	}

	claims := &SessionClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.SessionSecret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return core.Actor{}, fmt.Errorf("invalid session token: %w", err)
	}
	if claims.Subject == "" || claims.WorkspaceID == "" {
		return core.Actor{}, fmt.Errorf("session token missing subject or workspace")
	}

	// The role is authoritative in the store, not in the token.
	emp, err := a.Store.GetEmployee(r.Context(), claims.WorkspaceID, claims.Subject)
	if err != nil {
		return core.Actor{}, fmt.Errorf("unknown employee %s: %w", claims.Subject, err)
	}
	return core.Actor{
		EmployeeID:  emp.ID,
		WorkspaceID: claims.WorkspaceID,
		Role:        emp.Role,
	}, nil
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
}
