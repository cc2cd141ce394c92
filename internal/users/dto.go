package users

import (
	"time"

	"github.com/tomaskub292929/to-korea-sub000/pkg/db/models"
	"github.com/tomaskub292929/to-korea-sub000/pkg/enums"
)

// ProviderLink is one sign-in method attached to a profile.
type ProviderLink struct {
	ProviderID enums.AuthProviderID
	Email      string
}

// ProfileSeed carries the fields used to create a profile.
type ProfileSeed struct {
	Email            string
	FirstName        string
	LastName         string
	Country          string
	PhotoURL         string
	EmailVerified    bool
	Role             enums.Role
	ProfileCompleted bool
	AuthProviders    []ProviderLink
}

// ProfileUpdate is a partial merge; nil fields are left untouched.
type ProfileUpdate struct {
	FirstName        *string `json:"firstName,omitempty"`
	LastName         *string `json:"lastName,omitempty"`
	Country          *string `json:"country,omitempty"`
	PhotoURL         *string `json:"photoUrl,omitempty"`
	ProfileCompleted *bool   `json:"profileCompleted,omitempty"`
}

// IsEmpty reports whether no field is set.
func (u ProfileUpdate) IsEmpty() bool {
	return u.FirstName == nil && u.LastName == nil && u.Country == nil && u.PhotoURL == nil && u.ProfileCompleted == nil
}

func (u ProfileUpdate) columns() map[string]any {
	cols := map[string]any{}
	if u.FirstName != nil {
		cols["first_name"] = *u.FirstName
	}
	if u.LastName != nil {
		cols["last_name"] = *u.LastName
	}
	if u.Country != nil {
		cols["country"] = *u.Country
	}
	if u.PhotoURL != nil {
		cols["photo_url"] = *u.PhotoURL
	}
	if u.ProfileCompleted != nil {
		cols["profile_completed"] = *u.ProfileCompleted
	}
	return cols
}

// AuthProviderDTO is the transport shape of a linked provider.
type AuthProviderDTO struct {
	ProviderID enums.AuthProviderID `json:"providerId"`
	Email      string               `json:"email"`
}

// UserDTO is the transport shape of a profile.
type UserDTO struct {
	ID               string            `json:"id"`
	Email            string            `json:"email"`
	FirstName        string            `json:"firstName"`
	LastName         string            `json:"lastName"`
	Country          *string           `json:"country,omitempty"`
	PhotoURL         *string           `json:"photoUrl,omitempty"`
	Role             enums.Role        `json:"role"`
	EmailVerified    bool              `json:"emailVerified"`
	AuthProviders    []AuthProviderDTO `json:"authProviders"`
	ProfileCompleted bool              `json:"profileCompleted"`
	CreatedAt        time.Time         `json:"createdAt"`
	LastLoginAt      time.Time         `json:"lastLoginAt"`
	UpdatedAt        time.Time         `json:"updatedAt"`
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}
	providers := make([]AuthProviderDTO, 0, len(u.AuthProviders))
	for _, p := range u.AuthProviders {
		providers = append(providers, AuthProviderDTO{ProviderID: p.ProviderID, Email: p.Email})
	}
	return &UserDTO{
		ID:               u.ID,
		Email:            u.Email,
		FirstName:        u.FirstName,
		LastName:         u.LastName,
		Country:          u.Country,
		PhotoURL:         u.PhotoURL,
		Role:             u.Role,
		EmailVerified:    u.EmailVerified,
		AuthProviders:    providers,
		ProfileCompleted: u.ProfileCompleted,
		CreatedAt:        u.CreatedAt,
		LastLoginAt:      u.LastLoginAt,
		UpdatedAt:        u.UpdatedAt,
	}
}

// FromModels maps a slice of profiles.
func FromModels(list []models.User) []UserDTO {
	out := make([]UserDTO, 0, len(list))
	for i := range list {
		out = append(out, *FromModel(&list[i]))
	}
	return out
}

func (s ProfileSeed) toModel(accountID string, now time.Time) *models.User {
	role := s.Role
	if role == "" {
		role = enums.RoleStudent
	}
	providers := make([]models.AuthProvider, 0, len(s.AuthProviders))
	for _, p := range s.AuthProviders {
		if containsProvider(providers, p.ProviderID) {
			continue
		}
		providers = append(providers, models.AuthProvider{ProviderID: p.ProviderID, Email: p.Email})
	}
	return &models.User{
		ID:               accountID,
		Email:            s.Email,
		FirstName:        s.FirstName,
		LastName:         s.LastName,
		Country:          optionalString(s.Country),
		PhotoURL:         optionalString(s.PhotoURL),
		Role:             role,
		EmailVerified:    s.EmailVerified,
		AuthProviders:    providers,
		ProfileCompleted: s.ProfileCompleted,
		CreatedAt:        now,
		LastLoginAt:      now,
		UpdatedAt:        now,
	}
}

func containsProvider(list []models.AuthProvider, id enums.AuthProviderID) bool {
	for _, p := range list {
		if p.ProviderID == id {
			return true
		}
	}
	return false
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
