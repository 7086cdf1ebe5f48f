package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// OAuth scopes requested for dashboard sessions.
const oauthScopes = "identify guilds"

// TokenResponse is Discord's OAuth token grant.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`
}

// OAuth performs the authorization-code exchange for dashboard logins.
type OAuth struct {
	clientID     string
	clientSecret string
	baseURL      string
	http         *http.Client
}

// NewOAuth builds the OAuth helper against the same API base as the REST
// client.
func NewOAuth(clientID, clientSecret, baseURL string) *OAuth {
	return &OAuth{
		clientID:     clientID,
		clientSecret: clientSecret,
		baseURL:      strings.TrimRight(baseURL, "/"),
		http:         &http.Client{Timeout: 15 * time.Second},
	}
}

// AuthorizationURL builds the consent URL the browser is redirected to.
func (o *OAuth) AuthorizationURL(state, redirectURI string) string {
	q := url.Values{}
	q.Set("client_id", o.clientID)
	q.Set("response_type", "code")
	q.Set("redirect_uri", redirectURI)
	q.Set("scope", oauthScopes)
	q.Set("state", state)
	return o.baseURL + "/oauth2/authorize?" + q.Encode()
}

// ExchangeCode trades an authorization code for a bearer token.
func (o *OAuth) ExchangeCode(ctx context.Context, code, redirectURI string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", redirectURI)

	return o.tokenRequest(ctx, form)
}

// RefreshToken trades a refresh token for a fresh bearer token.
func (o *OAuth) RefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	return o.tokenRequest(ctx, form)
}

func (o *OAuth) tokenRequest(ctx context.Context, form url.Values) (*TokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		o.baseURL+"/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("building token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(o.clientID, o.clientSecret)

	resp, err := o.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("token grant failed (%d): %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var token TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, fmt.Errorf("decoding token response: %w", err)
	}
	return &token, nil
}
