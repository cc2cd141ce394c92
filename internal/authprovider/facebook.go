package authprovider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/tomaskub292929/to-korea-sub000/pkg/config"
)

const facebookProfileFields = "id,name,email,picture.type(large)"

// FacebookVerifier resolves a Facebook user access token through the Graph
// API /me endpoint.
type FacebookVerifier struct {
	client  *http.Client
	baseURL string
}

type facebookProfile struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Picture struct {
		Data struct {
			URL string `json:"url"`
		} `json:"data"`
	} `json:"picture"`
}

type facebookErrorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// NewFacebookVerifier builds a verifier. A nil client gets one bounded by
// cfg.Timeout.
func NewFacebookVerifier(cfg config.FacebookConfig, client *http.Client) (*FacebookVerifier, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.GraphURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("%s is required for facebook sign-in", config.EnvFacebookGraphURL)
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &FacebookVerifier{client: client, baseURL: baseURL}, nil
}

// Verify exchanges the access token for the profile it belongs to.
func (f *FacebookVerifier) Verify(ctx context.Context, token string) (SocialProfile, error) {
	if strings.TrimSpace(token) == "" {
		return SocialProfile{}, fmt.Errorf("%w: empty access token", errTokenRejected)
	}
	query := url.Values{}
	query.Set("fields", facebookProfileFields)
	query.Set("access_token", token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+"/me?"+query.Encode(), nil)
	if err != nil {
		return SocialProfile{}, fmt.Errorf("building facebook request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return SocialProfile{}, fmt.Errorf("calling facebook graph: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return SocialProfile{}, fmt.Errorf("reading facebook response: %w", err)
	}

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return SocialProfile{}, fmt.Errorf("facebook graph returned %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		var fbErr facebookErrorBody
		_ = json.Unmarshal(body, &fbErr)
		return SocialProfile{}, fmt.Errorf("%w: facebook %d %s", errTokenRejected, resp.StatusCode, fbErr.Error.Message)
	}

	var profile facebookProfile
	if err := json.Unmarshal(body, &profile); err != nil {
		return SocialProfile{}, fmt.Errorf("decoding facebook profile: %w", err)
	}
	if profile.ID == "" {
		return SocialProfile{}, fmt.Errorf("%w: profile without id", errTokenRejected)
	}
	return SocialProfile{
		Subject:       profile.ID,
		Email:         profile.Email,
		EmailVerified: profile.Email != "",
		DisplayName:   profile.Name,
		PhotoURL:      profile.Picture.Data.URL,
	}, nil
}
