package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	redislib "github.com/redis/go-redis/v9"

	"github.com/tomaskub292929/to-korea-sub000/pkg/config"
	redisclient "github.com/tomaskub292929/to-korea-sub000/pkg/redis"
)

// ActionPurpose scopes an action token to the one flow that may redeem it.
type ActionPurpose string

const (
	PurposeVerifyEmail   ActionPurpose = "verify_email"
	PurposeResetPassword ActionPurpose = "reset_password"
)

var ErrInvalidActionToken = errors.New("invalid or expired action token")

type actionStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	GetDel(ctx context.Context, key string) (string, error)
}

type actionKeyer interface {
	ActionTokenKey(purpose, token string) string
}

// ActionTokens issues single-use tokens for emailed links. A token maps to
// the subject it was issued for and is deleted on first redemption.
type ActionTokens struct {
	store actionStore
	keyer actionKeyer
	ttls  map[ActionPurpose]time.Duration
}

func NewActionTokens(client *redisclient.Client, cfg config.EmailActionConfig) (*ActionTokens, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	return newActionTokens(client, client, cfg)
}

func newActionTokens(store actionStore, keyer actionKeyer, cfg config.EmailActionConfig) (*ActionTokens, error) {
	if cfg.VerifyTTL <= 0 || cfg.ResetTTL <= 0 {
		return nil, fmt.Errorf("email action ttls must be positive")
	}
	return &ActionTokens{
		store: store,
		keyer: keyer,
		ttls: map[ActionPurpose]time.Duration{
			PurposeVerifyEmail:   cfg.VerifyTTL,
			PurposeResetPassword: cfg.ResetTTL,
		},
	}, nil
}

// Issue stores a fresh token for subject under purpose.
func (a *ActionTokens) Issue(ctx context.Context, purpose ActionPurpose, subject string) (string, error) {
	ttl, ok := a.ttls[purpose]
	if !ok {
		return "", fmt.Errorf("unknown action purpose %q", purpose)
	}
	if strings.TrimSpace(subject) == "" {
		return "", fmt.Errorf("action subject is required")
	}
	token, err := generateRefreshToken()
	if err != nil {
		return "", err
	}
	if err := a.store.Set(ctx, a.keyer.ActionTokenKey(string(purpose), token), subject, ttl); err != nil {
		return "", err
	}
	return token, nil
}

// Consume redeems token and returns its subject. A token of another purpose,
// an expired one, or one already redeemed is ErrInvalidActionToken.
func (a *ActionTokens) Consume(ctx context.Context, purpose ActionPurpose, token string) (string, error) {
	if _, ok := a.ttls[purpose]; !ok {
		return "", fmt.Errorf("unknown action purpose %q", purpose)
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrInvalidActionToken
	}
	subject, err := a.store.GetDel(ctx, a.keyer.ActionTokenKey(string(purpose), token))
	if err != nil {
		if errors.Is(err, redislib.Nil) {
			return "", ErrInvalidActionToken
		}
		return "", err
	}
	if subject == "" {
		return "", ErrInvalidActionToken
	}
	return subject, nil
}

// TTL reports how long a token of purpose stays redeemable.
func (a *ActionTokens) TTL(purpose ActionPurpose) time.Duration {
	return a.ttls[purpose]
}
