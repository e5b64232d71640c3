package vaillant

import (
	"context"
	"net/url"
)

const (
	tokenPath = "/oauth2/token"

	// DefaultScope grants thermostat read and write access.
	DefaultScope = "read_thermostat write_thermostat"
)

// AuthClient performs the token grants against the Netatmo OAuth endpoint:
// the resource-owner password grant to obtain the initial token, and the
// refresh grant used by the TokenStore. Requests go through the shared
// retry and error-classification pipeline.
type AuthClient struct {
	client       *Client
	clientID     string
	clientSecret string
	scope        string
}

// NewAuthClient creates a new auth client. Scope defaults to DefaultScope
// when empty.
func NewAuthClient(clientID, clientSecret, scope string, opts ...Option) (*AuthClient, error) {
	if clientID == "" {
		return nil, ErrEmptyClientID
	}
	if clientSecret == "" {
		return nil, ErrEmptyClientSecret
	}
	if scope == "" {
		scope = DefaultScope
	}

	return &AuthClient{
		client:       newClient(opts...),
		clientID:     clientID,
		clientSecret: clientSecret,
		scope:        scope,
	}, nil
}

// FetchToken exchanges the user's credentials for access and refresh tokens
// using the resource-owner password grant, with the Vaillant-specific user
// prefix and app version parameters.
func (a *AuthClient) FetchToken(ctx context.Context, username, password, userPrefix, appVersion string) (*Token, error) {
	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("client_id", a.clientID)
	form.Set("client_secret", a.clientSecret)
	form.Set("username", username)
	form.Set("password", password)
	form.Set("user_prefix", userPrefix)
	form.Set("app_version", appVersion)
	form.Set("scope", a.scope)

	body, err := a.client.postForm(ctx, tokenPath, form, "")
	if err != nil {
		return nil, err
	}

	return tokenFromResponse(body)
}

// RefreshToken exchanges a refresh token for a new Token. Implements
// TokenRefresher for use with a TokenStore.
func (a *AuthClient) RefreshToken(ctx context.Context, refreshToken string) (*Token, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("client_id", a.clientID)
	form.Set("client_secret", a.clientSecret)
	form.Set("refresh_token", refreshToken)

	body, err := a.client.postForm(ctx, tokenPath, form, "")
	if err != nil {
		return nil, err
	}

	return tokenFromResponse(body)
}

// Close releases idle connections held by the underlying transport.
func (a *AuthClient) Close() {
	a.client.close()
}

// RateLimitInfo returns the rate limit headers from the most recent
// response, or nil if none have been observed yet.
func (a *AuthClient) RateLimitInfo() *RateLimitInfo {
	return a.client.lastRateLimitInfo()
}
