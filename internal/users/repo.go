package users

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tomaskub292929/to-korea-sub000/pkg/db/models"
	"github.com/tomaskub292929/to-korea-sub000/pkg/enums"
)

// Repository exposes user-related persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a users repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new profile. A duplicate id surfaces as a unique violation.
func (r *Repository) Create(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

// FindByID returns nil, nil when no profile exists.
func (r *Repository) FindByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// Exists reports whether a profile is stored at id.
func (r *Repository) Exists(ctx context.Context, id string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

// UpdateLastLogin refreshes the user's last_login_at timestamp.
func (r *Repository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn("last_login_at", at).Error
}

// SaveProviders overwrites the auth_providers array.
func (r *Repository) SaveProviders(ctx context.Context, id string, providers []models.AuthProvider, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.User{ID: id}).
		Updates(map[string]any{
			"auth_providers": datatypes.JSONSlice[models.AuthProvider](providers),
			"updated_at":     at,
		}).Error
}

// UpdateColumns applies a partial merge and reports whether a row matched.
func (r *Repository) UpdateColumns(ctx context.Context, id string, cols map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(cols)
	return res.RowsAffected > 0, res.Error
}

// ListByRole returns profiles holding any of roles, newest first.
func (r *Repository) ListByRole(ctx context.Context, roles ...enums.Role) ([]models.User, error) {
	var rows []models.User
	q := r.db.WithContext(ctx).Order("created_at DESC")
	if len(roles) > 0 {
		q = q.Where("role IN ?", roles)
	}
	err := q.Find(&rows).Error
	return rows, err
}

// Delete removes a profile and reports whether it existed.
func (r *Repository) Delete(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).Delete(&models.User{}, "id = ?", id)
	return res.RowsAffected > 0, res.Error
}
