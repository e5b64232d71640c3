package vaillant

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubRefresher is a TokenRefresher for tests. When block is set, every
// refresh waits for it to be closed before returning.
type stubRefresher struct {
	calls int32
	token *Token
	err   error
	block chan struct{}
}

func (r *stubRefresher) RefreshToken(ctx context.Context, refreshToken string) (*Token, error) {
	atomic.AddInt32(&r.calls, 1)
	if r.block != nil {
		<-r.block
	}
	if r.err != nil {
		return nil, r.err
	}
	return r.token, nil
}

func validToken() *Token {
	return &Token{AccessToken: "12345", RefreshToken: "abcde", ExpiresAt: time.Now().Add(time.Hour)}
}

func expiredToken() *Token {
	return &Token{AccessToken: "12345", RefreshToken: "abcde", ExpiresAt: time.Now().Add(-time.Hour)}
}

func refreshedToken() *Token {
	return &Token{AccessToken: "67890", RefreshToken: "fghij", ExpiresAt: time.Now().Add(time.Hour)}
}

func TestTokenStore_Valid(t *testing.T) {
	ctx := context.Background()

	t.Run("returns cached token while unexpired", func(t *testing.T) {
		refresher := &stubRefresher{token: refreshedToken()}
		store := NewTokenStore(refresher, validToken())

		token, err := store.Valid(ctx)
		require.NoError(t, err)
		assert.Equal(t, "12345", token.AccessToken)
		assert.Equal(t, int32(0), atomic.LoadInt32(&refresher.calls))
	})

	t.Run("refreshes an expired token", func(t *testing.T) {
		refresher := &stubRefresher{token: refreshedToken()}
		store := NewTokenStore(refresher, expiredToken())

		token, err := store.Valid(ctx)
		require.NoError(t, err)
		assert.Equal(t, "67890", token.AccessToken)
		assert.Equal(t, int32(1), atomic.LoadInt32(&refresher.calls))
	})

	t.Run("refreshes a token within the margin", func(t *testing.T) {
		refresher := &stubRefresher{token: refreshedToken()}
		soon := &Token{AccessToken: "12345", RefreshToken: "abcde", ExpiresAt: time.Now().Add(time.Minute)}
		store := NewTokenStore(refresher, soon)

		token, err := store.Valid(ctx)
		require.NoError(t, err)
		assert.Equal(t, "67890", token.AccessToken)
	})

	t.Run("no token yields ErrNoToken", func(t *testing.T) {
		store := NewTokenStore(&stubRefresher{}, nil)

		_, err := store.Valid(ctx)
		assert.ErrorIs(t, err, ErrNoToken)
	})
}

func TestTokenStore_SingleFlight(t *testing.T) {
	const callers = 10

	refresher := &stubRefresher{token: refreshedToken(), block: make(chan struct{})}
	store := NewTokenStore(refresher, expiredToken())

	var wg sync.WaitGroup
	tokens := make([]*Token, callers)
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], errs[i] = store.Valid(context.Background())
		}(i)
	}

	// Let every caller join the in-flight refresh before it completes.
	time.Sleep(50 * time.Millisecond)
	close(refresher.block)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&refresher.calls), "expected exactly one upstream refresh")
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Same(t, tokens[0], tokens[i], "caller %d received a different token", i)
	}
	assert.Equal(t, "67890", tokens[0].AccessToken)
}

func TestTokenStore_UpdateCallback(t *testing.T) {
	ctx := context.Background()

	t.Run("invoked once per successful refresh", func(t *testing.T) {
		var updates []*Token
		refresher := &stubRefresher{token: refreshedToken()}
		store := NewTokenStore(refresher, expiredToken(),
			WithUpdateCallback(func(ctx context.Context, token *Token) error {
				updates = append(updates, token)
				return nil
			}),
		)

		token, err := store.Valid(ctx)
		require.NoError(t, err)
		require.Len(t, updates, 1)
		assert.Same(t, token, updates[0])
	})

	t.Run("callback failure surfaces to the caller", func(t *testing.T) {
		refresher := &stubRefresher{token: refreshedToken()}
		store := NewTokenStore(refresher, expiredToken(),
			WithUpdateCallback(func(ctx context.Context, token *Token) error {
				return errors.New("disk full")
			}),
		)

		_, err := store.Valid(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "token update callback")
		// The refreshed token is still committed in memory.
		assert.Equal(t, "67890", store.Token().AccessToken)
	})
}

func TestTokenStore_FailedRefreshKeepsPreviousToken(t *testing.T) {
	refresher := &stubRefresher{err: &APIError{StatusCode: 400, Code: "invalid_grant", kind: ErrInvalidCredentials}}
	stale := expiredToken()
	store := NewTokenStore(refresher, stale)

	_, err := store.Valid(context.Background())
	require.Error(t, err)
	assert.True(t, IsInvalidCredentials(err))

	// Good state is not discarded on a failed refresh attempt.
	assert.Same(t, stale, store.Token())
}

func TestTokenStore_ForceRefresh(t *testing.T) {
	t.Run("refreshes regardless of expiry", func(t *testing.T) {
		refresher := &stubRefresher{token: refreshedToken()}
		store := NewTokenStore(refresher, validToken())

		token, err := store.ForceRefresh(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "67890", token.AccessToken)
		assert.Equal(t, int32(1), atomic.LoadInt32(&refresher.calls))
	})

	t.Run("no token yields ErrNoToken", func(t *testing.T) {
		store := NewTokenStore(&stubRefresher{}, nil)

		_, err := store.ForceRefresh(context.Background())
		assert.ErrorIs(t, err, ErrNoToken)
	})
}

func TestFileTokenStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "token.json")

	store := NewFileTokenStore(path)

	t.Run("load before save fails", func(t *testing.T) {
		_, err := store.Load(ctx)
		assert.Error(t, err)
	})

	t.Run("save and load round-trip", func(t *testing.T) {
		token := &Token{AccessToken: "12345", RefreshToken: "abcde", ExpiresAt: time.Unix(1700000000, 0).UTC()}
		require.NoError(t, store.Save(ctx, token))

		got, err := store.Load(ctx)
		require.NoError(t, err)
		assert.True(t, got.Equal(token))
	})

	t.Run("delete removes the file", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx))
		_, err := store.Load(ctx)
		assert.Error(t, err)

		// Deleting again is not an error.
		assert.NoError(t, store.Delete(ctx))
	})

	t.Run("nil token is rejected", func(t *testing.T) {
		assert.Error(t, store.Save(ctx, nil))
	})
}

func TestPersistUpdates(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryTokenStore()

	refresher := &stubRefresher{token: refreshedToken()}
	store := NewTokenStore(refresher, expiredToken(), WithUpdateCallback(PersistUpdates(mem)))

	token, err := store.Valid(ctx)
	require.NoError(t, err)

	persisted, err := mem.Load(ctx)
	require.NoError(t, err)
	assert.Same(t, token, persisted)
}
