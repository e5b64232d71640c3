package vaillant

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Token holds the bearer credentials issued by the token endpoint. A Token
// is never mutated in place: a refresh produces a new instance with a fresh
// expiry derived from the issuance time and the provider-reported lifetime.
type Token struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// tokenJSON is the persisted wire form of a Token. The expiry is carried as
// unix seconds so Deserialize(Serialize(t)) round-trips exactly.
type tokenJSON struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"`
}

// MarshalJSON implements json.Marshaler.
func (t Token) MarshalJSON() ([]byte, error) {
	var expiresAt int64
	if !t.ExpiresAt.IsZero() {
		expiresAt = t.ExpiresAt.Unix()
	}
	return json.Marshal(tokenJSON{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		ExpiresAt:    expiresAt,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Token) UnmarshalJSON(data []byte) error {
	var raw tokenJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	t.AccessToken = raw.AccessToken
	t.RefreshToken = raw.RefreshToken
	t.ExpiresAt = time.Time{}
	if raw.ExpiresAt != 0 {
		t.ExpiresAt = time.Unix(raw.ExpiresAt, 0).UTC()
	}
	return nil
}

// Serialize encodes the token into an opaque string for external
// persistence. The caller should treat the result as a black box.
func (t *Token) Serialize() (string, error) {
	if t == nil {
		return "", errors.New("vaillant: cannot serialize nil token")
	}
	data, err := json.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("vaillant: failed to serialize token: %w", err)
	}
	return string(data), nil
}

// DeserializeToken decodes a token previously produced by Serialize.
func DeserializeToken(s string) (*Token, error) {
	var t Token
	if err := json.Unmarshal([]byte(s), &t); err != nil {
		return nil, fmt.Errorf("vaillant: failed to deserialize token: %w", err)
	}
	return &t, nil
}

// Valid reports whether the access token is usable, refusing tokens within
// the given margin of their expiry. Tokens without expiry information are
// considered valid until the server rejects them.
func (t *Token) Valid(margin time.Duration) bool {
	if t == nil || t.AccessToken == "" {
		return false
	}
	if t.ExpiresAt.IsZero() {
		return true
	}
	return time.Now().Add(margin).Before(t.ExpiresAt)
}

// Equal reports whether two tokens carry the same credentials and expiry.
func (t *Token) Equal(other *Token) bool {
	if t == nil || other == nil {
		return t == other
	}
	return t.AccessToken == other.AccessToken &&
		t.RefreshToken == other.RefreshToken &&
		t.ExpiresAt.Unix() == other.ExpiresAt.Unix()
}

// tokenResponse is the token endpoint's success shape.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
}

// tokenFromResponse builds a Token from a token endpoint response, deriving
// the expiry from the issuance time when the provider reports a lifetime.
func tokenFromResponse(body []byte) (*Token, error) {
	var resp tokenResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("vaillant: failed to parse token response: %w (body: %s)", err, truncatePreview(body))
	}

	t := &Token{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
	}
	switch {
	case resp.ExpiresAt != 0:
		t.ExpiresAt = time.Unix(resp.ExpiresAt, 0).UTC()
	case resp.ExpiresIn > 0:
		t.ExpiresAt = time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second).UTC()
	}
	return t, nil
}
