package controllers

import (
	"net/http"

	"github.com/tomaskub292929/to-korea-sub000/api/middleware"
	"github.com/tomaskub292929/to-korea-sub000/api/responses"
	"github.com/tomaskub292929/to-korea-sub000/api/validators"
	"github.com/tomaskub292929/to-korea-sub000/internal/users"
	pkgerrors "github.com/tomaskub292929/to-korea-sub000/pkg/errors"
	"github.com/tomaskub292929/to-korea-sub000/pkg/logger"
)

type profileUpdateRequest struct {
	FirstName        *string `json:"firstName,omitempty" validate:"omitempty,min=1,max=100"`
	LastName         *string `json:"lastName,omitempty" validate:"omitempty,min=1,max=100"`
	Country          *string `json:"country,omitempty" validate:"omitempty,max=100"`
	PhotoURL         *string `json:"photoUrl,omitempty" validate:"omitempty,url,max=2048"`
	ProfileCompleted *bool   `json:"profileCompleted,omitempty"`
}

// MeGet returns the caller's profile.
func MeGet(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		profile := middleware.ProfileFromContext(r.Context())
		if profile == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "No user logged in"))
			return
		}
		responses.WriteSuccess(w, users.FromModel(profile))
	}
}

// MeUpdate merges the supplied fields into the caller's profile.
func MeUpdate(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := middleware.SessionFromContext(r.Context())
		if sess == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "No user logged in"))
			return
		}
		var body profileUpdateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		update := users.ProfileUpdate{
			FirstName:        sanitized(body.FirstName, 100),
			LastName:         sanitized(body.LastName, 100),
			Country:          sanitized(body.Country, 100),
			PhotoURL:         body.PhotoURL,
			ProfileCompleted: body.ProfileCompleted,
		}
		if update.IsEmpty() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "no fields to update"))
			return
		}
		updated, err := sess.UpdateProfile(r.Context(), update)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, users.FromModel(updated))
	}
}

func sanitized(value *string, maxLen int) *string {
	if value == nil {
		return nil
	}
	clean := validators.SanitizeString(*value, maxLen)
	return &clean
}
