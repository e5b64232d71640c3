package vaillant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// defaultRefreshMargin is how long before expiry a token is refreshed, so
// callers never hold a token that expires mid-request.
const defaultRefreshMargin = 5 * time.Minute

// TokenRefresher exchanges a refresh token for a new Token.
// It is implemented by AuthClient.
type TokenRefresher interface {
	RefreshToken(ctx context.Context, refreshToken string) (*Token, error)
}

// UpdateFunc is invoked with the new Token whenever a refresh succeeds,
// before the refreshing call proceeds, so persisted state never lags the
// in-memory token actually in use.
type UpdateFunc func(ctx context.Context, token *Token) error

// TokenStore holds the single live Token shared by all calls and refreshes
// it through the auth endpoint when needed. Refreshes are single-flight:
// concurrent callers needing a fresh token observe one upstream refresh and
// all receive the identical result.
type TokenStore struct {
	refresher TokenRefresher
	onUpdate  UpdateFunc
	margin    time.Duration

	mu    sync.Mutex
	token *Token

	group singleflight.Group
}

// TokenStoreOption configures a TokenStore.
type TokenStoreOption func(*TokenStore)

// WithUpdateCallback registers the function invoked after every successful
// refresh. Use it to persist tokens; see PersistUpdates.
func WithUpdateCallback(fn UpdateFunc) TokenStoreOption {
	return func(s *TokenStore) {
		s.onUpdate = fn
	}
}

// WithRefreshMargin sets how long before expiry tokens are refreshed.
func WithRefreshMargin(margin time.Duration) TokenStoreOption {
	return func(s *TokenStore) {
		if margin > 0 {
			s.margin = margin
		}
	}
}

// NewTokenStore creates a store seeded with an initial token, typically
// obtained from AuthClient.FetchToken or restored via DeserializeToken.
func NewTokenStore(refresher TokenRefresher, initial *Token, opts ...TokenStoreOption) *TokenStore {
	s := &TokenStore{
		refresher: refresher,
		token:     initial,
		margin:    defaultRefreshMargin,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Token returns the current token without refreshing. It may be expired;
// use Valid for a token guaranteed usable.
func (s *TokenStore) Token() *Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Valid returns the current token if it is not within the refresh margin of
// expiry; otherwise it refreshes first. Callers never receive an expired
// token.
func (s *TokenStore) Valid(ctx context.Context) (*Token, error) {
	s.mu.Lock()
	current := s.token
	s.mu.Unlock()

	if current == nil {
		return nil, ErrNoToken
	}
	if current.Valid(s.margin) {
		return current, nil
	}
	return s.refresh(ctx, current)
}

// ForceRefresh invalidates the cached token and refreshes regardless of
// expiry. Used after a downstream call is rejected with 401/403.
func (s *TokenStore) ForceRefresh(ctx context.Context) (*Token, error) {
	s.mu.Lock()
	current := s.token
	s.mu.Unlock()

	if current == nil {
		return nil, ErrNoToken
	}
	return s.refresh(ctx, current)
}

// refresh performs the single-flight refresh. A failed refresh keeps the
// previous token, so good state is never discarded on a transient failure.
func (s *TokenStore) refresh(ctx context.Context, stale *Token) (*Token, error) {
	result, err, _ := s.group.Do("refresh", func() (any, error) {
		s.mu.Lock()
		current := s.token
		s.mu.Unlock()

		// Another caller refreshed while we waited for the flight.
		if current != nil && !current.Equal(stale) && current.Valid(s.margin) {
			return current, nil
		}

		fresh, err := s.refresher.RefreshToken(ctx, current.RefreshToken)
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		s.token = fresh
		s.mu.Unlock()

		if s.onUpdate != nil {
			if err := s.onUpdate(ctx, fresh); err != nil {
				return nil, fmt.Errorf("vaillant: token update callback: %w", err)
			}
		}

		return fresh, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*Token), nil
}

// TokenPersistence stores the serialized token outside the process, so a
// restart can resume without repeating the password grant.
type TokenPersistence interface {
	Save(ctx context.Context, token *Token) error
	Load(ctx context.Context) (*Token, error)
}

// PersistUpdates adapts a TokenPersistence into the store's update
// callback.
//
// Example:
//
//	file := vaillant.NewFileTokenStore("/path/to/token.json")
//	store := vaillant.NewTokenStore(auth, token,
//	    vaillant.WithUpdateCallback(vaillant.PersistUpdates(file)),
//	)
func PersistUpdates(p TokenPersistence) UpdateFunc {
	return p.Save
}

// FileTokenStore persists the token in a JSON file.
type FileTokenStore struct {
	path string
	mu   sync.Mutex
}

// NewFileTokenStore creates a new FileTokenStore.
func NewFileTokenStore(path string) *FileTokenStore {
	return &FileTokenStore{path: path}
}

// Save writes the token to the file.
func (f *FileTokenStore) Save(ctx context.Context, token *Token) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if token == nil {
		return errors.New("vaillant: token cannot be nil")
	}

	dir := filepath.Dir(f.path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("vaillant: failed to create token directory: %w", err)
		}
	}

	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("vaillant: failed to marshal token: %w", err)
	}

	// Write to a temporary file first, then rename for atomicity
	tmpFile := f.path + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0600); err != nil {
		return fmt.Errorf("vaillant: failed to write token file: %w", err)
	}

	if err := os.Rename(tmpFile, f.path); err != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("vaillant: failed to save token file: %w", err)
	}

	return nil
}

// Load reads the token from the file.
func (f *FileTokenStore) Load(ctx context.Context) (*Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("vaillant: token file not found: %w", err)
		}
		return nil, fmt.Errorf("vaillant: failed to read token file: %w", err)
	}

	var token Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("vaillant: failed to parse token file: %w", err)
	}

	return &token, nil
}

// Delete removes the token file, e.g. on logout.
func (f *FileTokenStore) Delete(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("vaillant: failed to delete token file: %w", err)
	}
	return nil
}

// MemoryTokenStore persists the token in memory (useful for testing).
type MemoryTokenStore struct {
	mu    sync.Mutex
	token *Token
}

// NewMemoryTokenStore creates a new in-memory token store.
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{}
}

// Save stores the token in memory.
func (m *MemoryTokenStore) Save(ctx context.Context, token *Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	return nil
}

// Load returns the stored token.
func (m *MemoryTokenStore) Load(ctx context.Context) (*Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token == nil {
		return nil, errors.New("vaillant: no token stored")
	}
	return m.token, nil
}
