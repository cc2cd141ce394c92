package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tomaskub292929/to-korea-sub000/api/middleware"
	"github.com/tomaskub292929/to-korea-sub000/api/responses"
	"github.com/tomaskub292929/to-korea-sub000/api/validators"
	"github.com/tomaskub292929/to-korea-sub000/internal/applications"
	"github.com/tomaskub292929/to-korea-sub000/internal/users"
	"github.com/tomaskub292929/to-korea-sub000/pkg/db/models"
	"github.com/tomaskub292929/to-korea-sub000/pkg/enums"
	pkgerrors "github.com/tomaskub292929/to-korea-sub000/pkg/errors"
	"github.com/tomaskub292929/to-korea-sub000/pkg/logger"
)

type adminApplicationService interface {
	ListApplications(ctx context.Context, filter applications.ListFilter) ([]models.Application, error)
	UpdateApplicationStatus(ctx context.Context, id uuid.UUID, status enums.ApplicationStatus, changedBy string) (*models.Application, error)
	DeleteApplication(ctx context.Context, id uuid.UUID) error
}

type adminUserService interface {
	ListByRole(ctx context.Context, role enums.Role) ([]models.User, error)
	ListAdmins(ctx context.Context) ([]models.User, error)
	DeleteProfile(ctx context.Context, accountID string) error
	AssignRole(ctx context.Context, userID string, role enums.Role, assignedBy string) error
	LoadProfile(ctx context.Context, accountID string) (*models.User, error)
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

type roleRequest struct {
	Role string `json:"role" validate:"required"`
}

// AdminListApplications lists every application, optionally filtered by
// status, schoolId or userId.
func AdminListApplications(svc adminApplicationService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := applications.ListFilter{
			SchoolID: validators.QueryString(r, "schoolId", 128),
			UserID:   validators.QueryString(r, "userId", 128),
		}
		if raw := validators.QueryString(r, "status", 32); raw != "" {
			status, err := enums.ParseApplicationStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter"))
				return
			}
			filter.Status = status
		}
		list, err := svc.ListApplications(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, applications.FromModels(list))
	}
}

func AdminUpdateApplicationStatus(svc adminApplicationService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "applicationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body statusRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := enums.ParseApplicationStatus(strings.TrimSpace(body.Status))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
			return
		}
		app, err := svc.UpdateApplicationStatus(r.Context(), id, status, middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, applications.FromModel(app))
	}
}

func AdminDeleteApplication(svc adminApplicationService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "applicationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.DeleteApplication(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}

// AdminListUsers lists profiles holding ?role=, students by default.
func AdminListUsers(svc adminUserService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role := enums.RoleStudent
		if raw := validators.QueryString(r, "role", 32); raw != "" {
			parsed, err := enums.ParseRole(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid role filter"))
				return
			}
			role = parsed
		}
		list, err := svc.ListByRole(r.Context(), role)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, users.FromModels(list))
	}
}

func AdminListAdmins(svc adminUserService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.ListAdmins(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, users.FromModels(list))
	}
}

// AdminDeleteUser removes the profile only; the provider account survives.
func AdminDeleteUser(svc adminUserService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := validators.SanitizeString(chi.URLParam(r, "userId"), 128)
		if userID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "user id is required"))
			return
		}
		if userID == middleware.UserIDFromContext(r.Context()) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeConflict, "cannot delete your own profile"))
			return
		}
		if err := svc.DeleteProfile(r.Context(), userID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}

// AdminAssignRole sets the single role of a user. Route-gated to super_admin.
func AdminAssignRole(svc adminUserService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := validators.SanitizeString(chi.URLParam(r, "userId"), 128)
		if userID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "user id is required"))
			return
		}
		var body roleRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		role, err := enums.ParseRole(strings.TrimSpace(body.Role))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid role"))
			return
		}
		if err := svc.AssignRole(r.Context(), userID, role, middleware.UserIDFromContext(r.Context())); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		profile, err := svc.LoadProfile(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if profile == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "user not found"))
			return
		}
		responses.WriteSuccess(w, users.FromModel(profile))
	}
}
