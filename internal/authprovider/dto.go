package authprovider

import (
	"time"

	"github.com/tomaskub292929/to-korea-sub000/pkg/db/models"
	"github.com/tomaskub292929/to-korea-sub000/pkg/enums"
)

// Account is the provider's view of a signed-in principal.
type Account struct {
	ID            string
	Email         string
	EmailVerified bool
	DisplayName   string
	PhotoURL      string
	ProviderID    enums.AuthProviderID
}

// Credential is the result of a successful sign-in or refresh.
type Credential struct {
	Account      Account
	AccessToken  string
	AccessID     string
	RefreshToken string
	Persistence  enums.Persistence
	ExpiresAt    time.Time
	RefreshTTL   time.Duration
	IsNewAccount bool
}

// SocialProfile is what an external identity provider vouches for.
type SocialProfile struct {
	Subject       string
	Email         string
	EmailVerified bool
	DisplayName   string
	PhotoURL      string
}

func accountFromIdentity(identity *models.AuthIdentity) Account {
	acct := Account{
		ID:            identity.AccountID,
		Email:         identity.Email,
		EmailVerified: identity.EmailVerified,
		DisplayName:   identity.DisplayName,
		ProviderID:    identity.ProviderID,
	}
	if identity.PhotoURL != nil {
		acct.PhotoURL = *identity.PhotoURL
	}
	return acct
}
