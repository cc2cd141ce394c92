package authprovider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/api/idtoken"

	"github.com/tomaskub292929/to-korea-sub000/pkg/config"
)

// errTokenRejected marks a provider token that was checked and refused, as
// opposed to a provider that could not be reached.
var errTokenRejected = errors.New("provider token rejected")

// SocialVerifier turns a provider token into the profile it vouches for.
type SocialVerifier interface {
	Verify(ctx context.Context, token string) (SocialProfile, error)
}

type idTokenValidator interface {
	Validate(ctx context.Context, idToken string, audience string) (*idtoken.Payload, error)
}

// GoogleVerifier checks Google ID tokens against Google's signing keys.
type GoogleVerifier struct {
	validator idTokenValidator
	clientID  string
}

// NewGoogleVerifier builds a verifier for tokens issued to cfg.ClientID.
func NewGoogleVerifier(ctx context.Context, cfg config.GoogleConfig) (*GoogleVerifier, error) {
	clientID := strings.TrimSpace(cfg.ClientID)
	if clientID == "" {
		return nil, fmt.Errorf("%s is required for google sign-in", config.EnvGoogleClientID)
	}
	validator, err := idtoken.NewValidator(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating google id token validator: %w", err)
	}
	return &GoogleVerifier{validator: validator, clientID: clientID}, nil
}

// Verify validates the ID token signature, audience, and expiry.
func (g *GoogleVerifier) Verify(ctx context.Context, token string) (SocialProfile, error) {
	if strings.TrimSpace(token) == "" {
		return SocialProfile{}, fmt.Errorf("%w: empty id token", errTokenRejected)
	}
	payload, err := g.validator.Validate(ctx, token, g.clientID)
	if err != nil {
		if ctx.Err() != nil {
			return SocialProfile{}, err
		}
		return SocialProfile{}, fmt.Errorf("%w: %v", errTokenRejected, err)
	}
	if payload.Subject == "" {
		return SocialProfile{}, fmt.Errorf("%w: missing subject", errTokenRejected)
	}
	return SocialProfile{
		Subject:       payload.Subject,
		Email:         claimString(payload.Claims, "email"),
		EmailVerified: claimBool(payload.Claims, "email_verified"),
		DisplayName:   claimString(payload.Claims, "name"),
		PhotoURL:      claimString(payload.Claims, "picture"),
	}, nil
}

func claimString(claims map[string]any, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}

// claimBool accepts both JSON booleans and the "true"/"false" strings some
// Google tokens carry.
func claimBool(claims map[string]any, key string) bool {
	switch v := claims[key].(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(v, "true")
	}
	return false
}
