package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/tomaskub292929/to-korea-sub000/api/middleware"
	"github.com/tomaskub292929/to-korea-sub000/api/responses"
	"github.com/tomaskub292929/to-korea-sub000/api/validators"
	"github.com/tomaskub292929/to-korea-sub000/internal/applications"
	"github.com/tomaskub292929/to-korea-sub000/pkg/db/models"
	pkgerrors "github.com/tomaskub292929/to-korea-sub000/pkg/errors"
	"github.com/tomaskub292929/to-korea-sub000/pkg/logger"
)

const (
	minStep = 1
	maxStep = 3
)

type applicationService interface {
	GetOrCreateApplication(ctx context.Context, userID, schoolID, schoolName string) (*models.Application, error)
	GetApplication(ctx context.Context, id uuid.UUID) (*models.Application, error)
	GetApplicationsByUserID(ctx context.Context, userID string) ([]models.Application, error)
	UpdateApplicationStep(ctx context.Context, id uuid.UUID, step int, data applications.StepData) (*models.Application, error)
	SubmitApplication(ctx context.Context, id uuid.UUID) (*models.Application, error)
}

type createApplicationRequest struct {
	SchoolID   string `json:"schoolId" validate:"required,max=128"`
	SchoolName string `json:"schoolName" validate:"required,max=256"`
}

// ApplicationCreate returns the caller's draft for the school, creating one
// when none exists.
func ApplicationCreate(svc applicationService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body createApplicationRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		app, err := svc.GetOrCreateApplication(
			r.Context(),
			middleware.UserIDFromContext(r.Context()),
			validators.SanitizeString(body.SchoolID, 128),
			validators.SanitizeString(body.SchoolName, 256),
		)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, applications.FromModel(app))
	}
}

// ApplicationListMine lists the caller's applications, newest first.
func ApplicationListMine(svc applicationService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.GetApplicationsByUserID(r.Context(), middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, applications.FromModels(list))
	}
}

// ApplicationGet is readable by the owner and by any admin.
func ApplicationGet(svc applicationService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "applicationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		app, err := loadVisible(r.Context(), svc, id, true)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, applications.FromModel(app))
	}
}

// ApplicationUpdateStep merges one wizard step into the caller's application.
func ApplicationUpdateStep(svc applicationService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "applicationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		step, err := validators.ParseIntParam(r, "step", minStep, maxStep)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body applications.StepData
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if _, err := loadVisible(r.Context(), svc, id, false); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		app, err := svc.UpdateApplicationStep(r.Context(), id, step, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, applications.FromModel(app))
	}
}

// ApplicationSubmit marks the caller's application submitted.
func ApplicationSubmit(svc applicationService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "applicationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if _, err := loadVisible(r.Context(), svc, id, false); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		app, err := svc.SubmitApplication(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, applications.FromModel(app))
	}
}

// loadVisible returns the application when the caller owns it, or when
// adminRead is set and the caller holds an admin role.
func loadVisible(ctx context.Context, svc applicationService, id uuid.UUID, adminRead bool) (*models.Application, error) {
	app, err := svc.GetApplication(ctx, id)
	if err != nil {
		return nil, err
	}
	if app.UserID == middleware.UserIDFromContext(ctx) {
		return app, nil
	}
	if adminRead && middleware.RoleFromContext(ctx).IsAdmin() {
		return app, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeForbidden, "Unauthorized access")
}
