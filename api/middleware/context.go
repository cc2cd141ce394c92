package middleware

import (
	"context"

	"github.com/tomaskub292929/to-korea-sub000/internal/authctx"
	"github.com/tomaskub292929/to-korea-sub000/pkg/db/models"
	"github.com/tomaskub292929/to-korea-sub000/pkg/enums"
)

type contextKey string

const (
	ctxUserID  contextKey = "user_id"
	ctxRole    contextKey = "actor_role"
	ctxSession contextKey = "session"
)

func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxUserID).(string); ok {
		return v
	}
	return ""
}

func RoleFromContext(ctx context.Context) enums.Role {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRole).(enums.Role); ok {
		return v
	}
	return ""
}

// SessionFromContext returns the restored caller session, or nil on public
// routes.
func SessionFromContext(ctx context.Context) *authctx.Session {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxSession).(*authctx.Session); ok {
		return v
	}
	return nil
}

// ProfileFromContext returns the caller's profile held by the session.
func ProfileFromContext(ctx context.Context) *models.User {
	if s := SessionFromContext(ctx); s != nil {
		return s.Profile()
	}
	return nil
}

// WithUserID injects the user identifier into the context.
func WithUserID(ctx context.Context, userID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxUserID, userID)
}

// WithRole injects the caller's role into the context.
func WithRole(ctx context.Context, role enums.Role) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxRole, role)
}

// WithSession injects a restored session into the context.
func WithSession(ctx context.Context, s *authctx.Session) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxSession, s)
}
