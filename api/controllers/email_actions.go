package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/tomaskub292929/to-korea-sub000/api/middleware"
	"github.com/tomaskub292929/to-korea-sub000/api/responses"
	"github.com/tomaskub292929/to-korea-sub000/api/validators"
	"github.com/tomaskub292929/to-korea-sub000/internal/authprovider"
	"github.com/tomaskub292929/to-korea-sub000/internal/users"
	"github.com/tomaskub292929/to-korea-sub000/pkg/db/models"
	pkgerrors "github.com/tomaskub292929/to-korea-sub000/pkg/errors"
	"github.com/tomaskub292929/to-korea-sub000/pkg/logger"
)

// emailActionBackend redeems emailed action codes. No session is needed.
type emailActionBackend interface {
	ConfirmEmail(ctx context.Context, token string) (*authprovider.Account, error)
	ConfirmPasswordReset(ctx context.Context, token, newPassword string) error
}

type verifiedMarker interface {
	SetEmailVerified(ctx context.Context, accountID string, verified bool) (*models.User, error)
}

type passwordResetRequest struct {
	Email string `json:"email" validate:"required"`
}

type confirmEmailRequest struct {
	OobCode string `json:"oobCode" validate:"required"`
}

type confirmPasswordResetRequest struct {
	OobCode     string `json:"oobCode" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required"`
}

type emailVerifiedResponse struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"emailVerified"`
}

// AuthSendVerification mails a fresh verification link to the caller.
func AuthSendVerification(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := middleware.SessionFromContext(r.Context())
		if sess == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "No user logged in"))
			return
		}
		if err := sess.SendVerificationEmail(r.Context()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusAccepted, map[string]string{"status": "verification_sent"})
	}
}

// AuthReloadUser re-reads the caller's account and returns the refreshed
// profile.
func AuthReloadUser(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := middleware.SessionFromContext(r.Context())
		if sess == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "No user logged in"))
			return
		}
		profile, err := sess.ReloadUser(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, users.FromModel(profile))
	}
}

// AuthPasswordReset mails a reset link for a password account.
func AuthPasswordReset(opener sessionOpener, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body passwordResetRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if opener == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "session factory unavailable"))
			return
		}
		sess, err := opener.Open()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "open session"))
			return
		}
		defer sess.Close()

		if err := sess.ResetPassword(r.Context(), strings.TrimSpace(body.Email)); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusAccepted, map[string]string{"status": "reset_sent"})
	}
}

// AuthConfirmEmail redeems a verification code. The profile flag follows on a
// best-effort basis; a signed-in client picks it up on reload otherwise.
func AuthConfirmEmail(backend emailActionBackend, profiles verifiedMarker, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if backend == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auth provider unavailable"))
			return
		}
		var body confirmEmailRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		acct, err := backend.ConfirmEmail(r.Context(), strings.TrimSpace(body.OobCode))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if profiles != nil {
			_ = pkgerrors.RunStep(r.Context(), pkgerrors.Step{
				Name:     "sync_profile_verified",
				Severity: pkgerrors.SeverityBestEffort,
				Run: func(ctx context.Context) error {
					_, err := profiles.SetEmailVerified(ctx, acct.ID, true)
					if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
						return nil
					}
					return err
				},
			}, bestEffortReporter(logg))
		}
		responses.WriteSuccess(w, emailVerifiedResponse{Email: acct.Email, EmailVerified: acct.EmailVerified})
	}
}

// AuthConfirmPasswordReset redeems a reset code and sets the new password.
func AuthConfirmPasswordReset(backend emailActionBackend, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if backend == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auth provider unavailable"))
			return
		}
		var body confirmPasswordResetRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := backend.ConfirmPasswordReset(r.Context(), strings.TrimSpace(body.OobCode), body.NewPassword); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "password_reset"})
	}
}

func bestEffortReporter(logg *logger.Logger) pkgerrors.Reporter {
	return func(ctx context.Context, step string, err error) {
		if logg == nil {
			return
		}
		logCtx := logg.WithFields(ctx, map[string]any{"step": step, "error": err.Error()})
		logg.Warn(logCtx, "best-effort step failed")
	}
}
