package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/tomaskub292929/to-korea-sub000/pkg/enums"
)

// AuthIdentity maps one provider subject onto a platform account id.
// Password identities use the normalized email as subject and carry the hash.
type AuthIdentity struct {
	ID            uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	AccountID     string               `gorm:"column:account_id;type:text;not null;index"`
	ProviderID    enums.AuthProviderID `gorm:"column:provider_id;type:text;not null;uniqueIndex:ux_auth_identities_provider_subject"`
	Subject       string               `gorm:"column:subject;type:text;not null;uniqueIndex:ux_auth_identities_provider_subject"`
	Email         string               `gorm:"column:email;type:text;not null;default:'';index"`
	EmailVerified bool                 `gorm:"column:email_verified;not null;default:false"`
	DisplayName   string               `gorm:"column:display_name;type:text;not null;default:''"`
	PhotoURL      *string              `gorm:"column:photo_url;type:text"`
	PasswordHash  *string              `gorm:"column:password_hash;type:text"`
	CreatedAt     time.Time            `gorm:"column:created_at;not null"`
	LastSignInAt  time.Time            `gorm:"column:last_sign_in_at;not null"`
}

func (AuthIdentity) TableName() string { return "auth_identities" }
