package controllers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/tomaskub292929/to-korea-sub000/api/responses"
	"github.com/tomaskub292929/to-korea-sub000/api/validators"
	"github.com/tomaskub292929/to-korea-sub000/internal/authctx"
	"github.com/tomaskub292929/to-korea-sub000/internal/authprovider"
	"github.com/tomaskub292929/to-korea-sub000/internal/users"
	"github.com/tomaskub292929/to-korea-sub000/pkg/db/models"
	"github.com/tomaskub292929/to-korea-sub000/pkg/enums"
	pkgerrors "github.com/tomaskub292929/to-korea-sub000/pkg/errors"
	"github.com/tomaskub292929/to-korea-sub000/pkg/logger"
)

// RefreshCookieName carries the refresh token for browser clients.
const RefreshCookieName = "tokorea_refresh"

const refreshCookiePath = "/api/v1/auth"

type sessionOpener interface {
	Open() (*authctx.Session, error)
}

// tokenBackend is the part of the provider that works on raw tokens and
// accepts an expired access token.
type tokenBackend interface {
	Refresh(ctx context.Context, accessToken, refreshToken string) (*authprovider.Credential, error)
	SignOut(ctx context.Context, accessToken string) error
}

type registerRequest struct {
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required"`
	FirstName  string `json:"firstName" validate:"required,max=100"`
	LastName   string `json:"lastName" validate:"required,max=100"`
	Country    string `json:"country" validate:"max=100"`
	RememberMe bool   `json:"rememberMe"`
}

type loginRequest struct {
	Email      string `json:"email" validate:"required"`
	Password   string `json:"password" validate:"required"`
	RememberMe bool   `json:"rememberMe"`
}

type socialLoginRequest struct {
	Token      string `json:"token" validate:"required"`
	RememberMe bool   `json:"rememberMe"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type authResponse struct {
	User         *users.UserDTO    `json:"user"`
	AccessToken  string            `json:"accessToken"`
	RefreshToken string            `json:"refreshToken"`
	ExpiresAt    time.Time         `json:"expiresAt"`
	Persistence  enums.Persistence `json:"persistence"`
	IsNewUser    bool              `json:"isNewUser"`
}

type tokenResponse struct {
	AccessToken  string            `json:"accessToken"`
	RefreshToken string            `json:"refreshToken"`
	ExpiresAt    time.Time         `json:"expiresAt"`
	Persistence  enums.Persistence `json:"persistence"`
}

// AuthRegister creates an account and its student profile.
func AuthRegister(opener sessionOpener, secureCookies bool, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body registerRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input := authctx.RegisterInput{
			Email:       strings.TrimSpace(body.Email),
			Password:    body.Password,
			FirstName:   validators.SanitizeString(body.FirstName, 100),
			LastName:    validators.SanitizeString(body.LastName, 100),
			Country:     validators.SanitizeString(body.Country, 100),
			Persistence: enums.PersistenceFromRememberMe(body.RememberMe),
		}
		signIn(w, r, opener, secureCookies, logg, http.StatusCreated, func(ctx context.Context, sess *authctx.Session) (*models.User, error) {
			return sess.Register(ctx, input)
		})
	}
}

// AuthLogin signs in with email and password.
func AuthLogin(opener sessionOpener, secureCookies bool, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body loginRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		persistence := enums.PersistenceFromRememberMe(body.RememberMe)
		signIn(w, r, opener, secureCookies, logg, http.StatusOK, func(ctx context.Context, sess *authctx.Session) (*models.User, error) {
			return sess.Login(ctx, strings.TrimSpace(body.Email), body.Password, persistence)
		})
	}
}

// AuthGoogle exchanges a Google ID token for a session.
func AuthGoogle(opener sessionOpener, secureCookies bool, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body socialLoginRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		persistence := enums.PersistenceFromRememberMe(body.RememberMe)
		signIn(w, r, opener, secureCookies, logg, http.StatusOK, func(ctx context.Context, sess *authctx.Session) (*models.User, error) {
			return sess.LoginWithGoogle(ctx, body.Token, persistence)
		})
	}
}

// AuthFacebook exchanges a Facebook access token for a session.
func AuthFacebook(opener sessionOpener, secureCookies bool, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body socialLoginRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		persistence := enums.PersistenceFromRememberMe(body.RememberMe)
		signIn(w, r, opener, secureCookies, logg, http.StatusOK, func(ctx context.Context, sess *authctx.Session) (*models.User, error) {
			return sess.LoginWithFacebook(ctx, body.Token, persistence)
		})
	}
}

func signIn(
	w http.ResponseWriter,
	r *http.Request,
	opener sessionOpener,
	secureCookies bool,
	logg *logger.Logger,
	status int,
	fn func(ctx context.Context, sess *authctx.Session) (*models.User, error),
) {
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

	profile, err := fn(r.Context(), sess)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return
	}
	cred := sess.Credential()
	if cred == nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "sign-in produced no credential"))
		return
	}

	setRefreshCookie(w, cred, secureCookies)
	responses.WriteSuccessStatus(w, status, authResponse{
		User:         users.FromModel(profile),
		AccessToken:  cred.AccessToken,
		RefreshToken: cred.RefreshToken,
		ExpiresAt:    cred.ExpiresAt,
		Persistence:  cred.Persistence,
		IsNewUser:    cred.IsNewAccount,
	})
}

// AuthRefresh rotates the refresh token. The access token may be expired; the
// refresh token comes from the body or the refresh cookie.
func AuthRefresh(backend tokenBackend, secureCookies bool, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if backend == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auth provider unavailable"))
			return
		}
		accessToken, err := validators.BearerToken(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body refreshRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &body); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}
		refreshToken := strings.TrimSpace(body.RefreshToken)
		if refreshToken == "" {
			if cookie, err := r.Cookie(RefreshCookieName); err == nil {
				refreshToken = cookie.Value
			}
		}
		if refreshToken == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "refresh token is required"))
			return
		}

		cred, err := backend.Refresh(r.Context(), accessToken, refreshToken)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		setRefreshCookie(w, cred, secureCookies)
		responses.WriteSuccess(w, tokenResponse{
			AccessToken:  cred.AccessToken,
			RefreshToken: cred.RefreshToken,
			ExpiresAt:    cred.ExpiresAt,
			Persistence:  cred.Persistence,
		})
	}
}

// AuthLogout revokes the refresh mapping tied to the presented access token.
func AuthLogout(backend tokenBackend, secureCookies bool, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if backend == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auth provider unavailable"))
			return
		}
		accessToken, err := validators.BearerToken(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := backend.SignOut(r.Context(), accessToken); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		clearRefreshCookie(w, secureCookies)
		responses.WriteSuccess(w, map[string]string{"status": "logged_out"})
	}
}

// setRefreshCookie persists across browser restarts only for "remember me".
func setRefreshCookie(w http.ResponseWriter, cred *authprovider.Credential, secure bool) {
	if cred == nil || cred.RefreshToken == "" {
		return
	}
	cookie := &http.Cookie{
		Name:     RefreshCookieName,
		Value:    cred.RefreshToken,
		Path:     refreshCookiePath,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	if cred.Persistence == enums.PersistenceLocal && cred.RefreshTTL > 0 {
		cookie.MaxAge = int(cred.RefreshTTL / time.Second)
	}
	http.SetCookie(w, cookie)
}

func clearRefreshCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    "",
		Path:     refreshCookiePath,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}
