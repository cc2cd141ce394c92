package authprovider

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tomaskub292929/to-korea-sub000/pkg/db/models"
	"github.com/tomaskub292929/to-korea-sub000/pkg/enums"
)

// Repository persists provider identities in auth_identities.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs an identity repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts identity. A taken (provider, subject) pair surfaces as a
// unique violation on ux_auth_identities_provider_subject.
func (r *Repository) Create(ctx context.Context, identity *models.AuthIdentity) error {
	if identity.ID == uuid.Nil {
		identity.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(identity).Error
}

// FindByID returns nil, nil when id is unknown.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.AuthIdentity, error) {
	return r.first(ctx, "id = ?", id)
}

// FindBySubject returns nil, nil when the provider subject is unknown.
func (r *Repository) FindBySubject(ctx context.Context, provider enums.AuthProviderID, subject string) (*models.AuthIdentity, error) {
	return r.first(ctx, "provider_id = ? AND subject = ?", provider, subject)
}

// FindByAccount returns the identity an account signed in with.
func (r *Repository) FindByAccount(ctx context.Context, accountID string, provider enums.AuthProviderID) (*models.AuthIdentity, error) {
	return r.first(ctx, "account_id = ? AND provider_id = ?", accountID, provider)
}

// FindByEmail lists every identity claiming email, oldest first.
func (r *Repository) FindByEmail(ctx context.Context, email string) ([]models.AuthIdentity, error) {
	var rows []models.AuthIdentity
	err := r.db.WithContext(ctx).
		Where("email = ?", email).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

// TouchSignIn stamps last_sign_in_at.
func (r *Repository) TouchSignIn(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.AuthIdentity{}).
		Where("id = ?", id).
		UpdateColumn("last_sign_in_at", at).Error
}

// UpdatePasswordHash replaces the stored hash after a cost upgrade.
func (r *Repository) UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	return r.db.WithContext(ctx).
		Model(&models.AuthIdentity{}).
		Where("id = ?", id).
		UpdateColumn("password_hash", hash).Error
}

// MarkEmailVerified flags the identity's email as confirmed.
func (r *Repository) MarkEmailVerified(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.AuthIdentity{}).
		Where("id = ?", id).
		UpdateColumn("email_verified", true).Error
}

func (r *Repository) first(ctx context.Context, query string, args ...any) (*models.AuthIdentity, error) {
	var identity models.AuthIdentity
	if err := r.db.WithContext(ctx).Where(query, args...).First(&identity).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &identity, nil
}
