package middleware

import (
	"net/http"

	"github.com/tomaskub292929/to-korea-sub000/api/responses"
	"github.com/tomaskub292929/to-korea-sub000/api/validators"
	"github.com/tomaskub292929/to-korea-sub000/internal/authctx"
	pkgerrors "github.com/tomaskub292929/to-korea-sub000/pkg/errors"
	"github.com/tomaskub292929/to-korea-sub000/pkg/logger"
)

// SessionOpener hands out started caller sessions.
type SessionOpener interface {
	Open() (*authctx.Session, error)
}

// Auth restores a session from the bearer token and requires a profile.
// The session lives for the duration of the request.
func Auth(opener SessionOpener, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if opener == nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "session factory unavailable"))
				return
			}
			token, err := validators.BearerToken(r)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}

			sess, err := opener.Open()
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "open session"))
				return
			}
			defer sess.Close()

			if err := sess.Restore(r.Context(), token); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			profile := sess.Profile()
			if profile == nil {
				msg := sess.Err()
				if msg == "" {
					msg = "User profile not found"
				}
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, msg))
				return
			}

			ctx := WithSession(r.Context(), sess)
			ctx = WithUserID(ctx, profile.ID)
			ctx = WithRole(ctx, profile.Role)
			if logg != nil {
				ctx = logg.WithFields(ctx, map[string]any{
					"user_id":    profile.ID,
					"actor_role": string(profile.Role),
				})
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
