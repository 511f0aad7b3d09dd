package authz

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/staffhive/staffhive/internal/observability"
	"github.com/staffhive/staffhive/internal/platform/httpx"
	"github.com/staffhive/staffhive/internal/shared"
)

// Middleware wires the decision engine in front of HTTP handlers. Denials
// are generic on the wire — the missing permission or role is never named to
// the caller — while the full detail goes to the log and audit trail.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
	Audit   *shared.AuditLogger
	Metrics *observability.Metrics
}

// RequirePermission ensures the caller's effective permission set contains
// the named permission.
func (m Middleware) RequirePermission(permission string) func(http.Handler) http.Handler {
	return m.guard("permission", func(ctx context.Context, userID int64) (bool, error) {
		return m.Service.HasPermission(ctx, userID, permission)
	})
}

// RequireRole ensures the caller actively holds the named role.
func (m Middleware) RequireRole(roleName string) func(http.Handler) http.Handler {
	return m.guard("role", func(ctx context.Context, userID int64) (bool, error) {
		return m.Service.HasRole(ctx, userID, roleName)
	})
}

// RequireAnyRole ensures the caller holds at least one of the named roles.
func (m Middleware) RequireAnyRole(roleNames ...string) func(http.Handler) http.Handler {
	return m.guard("any_role", func(ctx context.Context, userID int64) (bool, error) {
		return m.Service.HasAnyRole(ctx, userID, roleNames...)
	})
}

// RequireMinimumRole ensures the caller's highest-privilege role sits at or
// above the named role's hierarchy level.
func (m Middleware) RequireMinimumRole(roleName string) func(http.Handler) http.Handler {
	return m.guard("minimum_role", func(ctx context.Context, userID int64) (bool, error) {
		return m.Service.CanAccessResource(ctx, userID, roleName)
	})
}

func (m Middleware) guard(check string, decide func(context.Context, int64) (bool, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			userID, ok := m.currentUserID(r)
			if !ok {
				m.record(check, "unauthenticated")
				httpx.RespondError(w, shared.ErrUnauthenticated)
				return
			}

			allowed, err := decide(ctx, userID)
			if err != nil {
				m.record(check, "error")
				if m.Logger != nil {
					m.Logger.Error("authz decision failed",
						slog.String("check", check),
						slog.Int64("user_id", userID),
						slog.Any("error", err))
				}
				// Opaque: storage failures must not leak detail.
				httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
				return
			}
			if !allowed {
				m.record(check, "deny")
				if m.Audit != nil {
					_ = m.Audit.Record(ctx, shared.AuditLog{
						ActorID:  userID,
						Action:   "authz.deny",
						Entity:   "authz",
						EntityID: r.URL.Path,
						Meta:     map[string]any{"check": check},
					})
				}
				httpx.RespondError(w, shared.ErrForbidden)
				return
			}

			m.record(check, "allow")
			next.ServeHTTP(w, r.WithContext(ContextWithCaller(ctx, userID)))
		})
	}
}

func (m Middleware) currentUserID(r *http.Request) (int64, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return 0, false
	}
	raw := strings.TrimSpace(sess.User())
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		if m.Logger != nil {
			m.Logger.Error("authz parse user id", slog.String("value", raw))
		}
		return 0, false
	}
	return id, true
}

func (m Middleware) record(check, decision string) {
	if m.Metrics != nil {
		m.Metrics.AuthzDecision(check, decision)
	}
}
