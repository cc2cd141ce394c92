package auth

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/tomaskub292929/to-korea-sub000/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	AccountID   string
	ProviderID  enums.AuthProviderID
	Persistence enums.Persistence
	JTI         string
}

// AccessTokenClaims represents the typed JWT issued to clients. Roles are not
// embedded; they are read from the user profile on every request so that a
// role change takes effect without re-authentication.
type AccessTokenClaims struct {
	AccountID   string               `json:"account_id"`
	ProviderID  enums.AuthProviderID `json:"provider_id"`
	Persistence enums.Persistence    `json:"persistence"`
	jwt.RegisteredClaims
}
