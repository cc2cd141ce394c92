package applications

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tomaskub292929/to-korea-sub000/internal/repo"
	"github.com/tomaskub292929/to-korea-sub000/pkg/db/models"
	"github.com/tomaskub292929/to-korea-sub000/pkg/enums"
)

// draftIndex enforces at most one draft per (user, school).
const draftIndex = "ux_applications_one_draft"

// Repository persists applications.
type Repository struct {
	base repo.Base
}

// NewRepository constructs an applications repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{base: repo.NewBase(db)}
}

// WithTx returns a repository that runs on tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{base: r.base.Bind(tx)}
}

func (r *Repository) Create(ctx context.Context, app *models.Application) error {
	if app.ID == uuid.Nil {
		app.ID = uuid.New()
	}
	return r.base.DB(ctx).Create(app).Error
}

// FindByID returns nil, nil when the application does not exist.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Application, error) {
	var app models.Application
	if err := r.base.DB(ctx).First(&app, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &app, nil
}

// FindDraft returns the oldest draft for the pair, or nil.
func (r *Repository) FindDraft(ctx context.Context, userID, schoolID string) (*models.Application, error) {
	var rows []models.Application
	err := r.base.DB(ctx).
		Where("user_id = ? AND school_id = ? AND status = ?", userID, schoolID, enums.ApplicationStatusDraft).
		Order("created_at ASC").
		Limit(1).
		Find(&rows).Error
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return &rows[0], nil
}

// ListByUser returns a user's applications newest first.
func (r *Repository) ListByUser(ctx context.Context, userID string) ([]models.Application, error) {
	var rows []models.Application
	err := r.base.DB(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&rows).Error
	return rows, err
}

// List applies filter and returns matches newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]models.Application, error) {
	q := r.base.DB(ctx).Model(&models.Application{})
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.SchoolID != "" {
		q = q.Where("school_id = ?", filter.SchoolID)
	}
	if filter.UserID != "" {
		q = q.Where("user_id = ?", filter.UserID)
	}
	var rows []models.Application
	err := q.Order("created_at DESC").Find(&rows).Error
	return rows, err
}

// queryColumns maps live-query filter keys onto columns.
var queryColumns = map[string]string{
	FieldUserID:   "user_id",
	FieldSchoolID: "school_id",
	FieldStatus:   "status",
	"createdAt":   "created_at",
	"updatedAt":   "updated_at",
}

// Query runs an equality-filtered, ordered read for live queries.
func (r *Repository) Query(ctx context.Context, filters map[string]string, orderBy string, descending bool) ([]models.Application, error) {
	q := r.base.DB(ctx).Model(&models.Application{})
	for key, value := range filters {
		column, ok := queryColumns[key]
		if !ok {
			return nil, fmt.Errorf("unsupported filter %q", key)
		}
		q = q.Where(column+" = ?", value)
	}
	column := "created_at"
	if orderBy != "" {
		mapped, ok := queryColumns[orderBy]
		if !ok {
			return nil, fmt.Errorf("unsupported order %q", orderBy)
		}
		column = mapped
	}
	direction := " ASC"
	if descending {
		direction = " DESC"
	}
	var rows []models.Application
	err := q.Order(column + direction).Find(&rows).Error
	return rows, err
}

// UpdateColumns applies a partial merge and reports whether a row matched.
func (r *Repository) UpdateColumns(ctx context.Context, id uuid.UUID, cols map[string]any) (bool, error) {
	res := r.base.DB(ctx).Model(&models.Application{}).Where("id = ?", id).Updates(cols)
	return res.RowsAffected > 0, res.Error
}

// Delete removes an application and reports whether it existed.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.base.DB(ctx).Delete(&models.Application{}, "id = ?", id)
	return res.RowsAffected > 0, res.Error
}
