package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/tomaskub292929/to-korea-sub000/pkg/enums"
)

// AuthProvider is one sign-in method linked to a profile.
type AuthProvider struct {
	ProviderID enums.AuthProviderID `json:"providerId"`
	Email      string               `json:"email"`
}

// User is the platform profile keyed by the auth layer's account id.
type User struct {
	ID               string                            `gorm:"column:id;type:text;primaryKey"`
	Email            string                            `gorm:"column:email;type:text;not null;index"`
	FirstName        string                            `gorm:"column:first_name;type:text;not null;default:''"`
	LastName         string                            `gorm:"column:last_name;type:text;not null;default:''"`
	Country          *string                           `gorm:"column:country;type:text"`
	PhotoURL         *string                           `gorm:"column:photo_url;type:text"`
	Role             enums.Role                        `gorm:"column:role;type:text;not null;default:student;index"`
	EmailVerified    bool                              `gorm:"column:email_verified;not null;default:false"`
	AuthProviders    datatypes.JSONSlice[AuthProvider] `gorm:"column:auth_providers;not null;default:'[]'"`
	ProfileCompleted bool                              `gorm:"column:profile_completed;not null;default:false"`
	CreatedAt        time.Time                         `gorm:"column:created_at;not null"`
	LastLoginAt      time.Time                         `gorm:"column:last_login_at;not null"`
	UpdatedAt        time.Time                         `gorm:"column:updated_at;not null"`
}

func (User) TableName() string { return "users" }

// HasProvider reports whether providerID is already linked.
func (u *User) HasProvider(providerID enums.AuthProviderID) bool {
	if u == nil {
		return false
	}
	for _, p := range u.AuthProviders {
		if p.ProviderID == providerID {
			return true
		}
	}
	return false
}
