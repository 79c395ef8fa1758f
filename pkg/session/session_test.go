package session_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/wishkro/wishkro-go/pkg/apiclient"
	"github.com/wishkro/wishkro-go/pkg/credstore"
	"github.com/wishkro/wishkro-go/pkg/session"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func tokenWithExp(t *testing.T, exp time.Time) string {
	t.Helper()

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u1", "exp": exp.Unix()})
	s, err := tok.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

func validToken(t *testing.T) string   { return tokenWithExp(t, time.Now().Add(time.Hour)) }
func expiredToken(t *testing.T) string { return tokenWithExp(t, time.Now().Add(-time.Hour)) }

// newManager wires a manager to a memory store and a client pointed at the
// given test server.
func newManager(t *testing.T, baseURL string, store credstore.Store) (*session.Manager, *apiclient.Client) {
	t.Helper()

	client := apiclient.New(apiclient.Config{
		BaseURL: baseURL,
		Timeout: 5 * time.Second,
		Logger:  discardLogger(),
	})
	mgr := session.New(session.Config{
		Client: client,
		Store:  store,
		Logger: discardLogger(),
	})
	return mgr, client
}

func okJSON(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}
}

func TestHydrateAlwaysEndsHydrated(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/user/fetch", okJSON(`{"user":{"name":"fetched"}}`))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	ctx := context.Background()

	t.Run("empty store", func(t *testing.T) {
		mgr, _ := newManager(t, srv.URL, credstore.NewMemory())
		mgr.Hydrate(ctx)
		require.True(t, mgr.Hydrated())
		require.Empty(t, mgr.Token())
		require.Nil(t, mgr.User())
	})

	t.Run("valid token", func(t *testing.T) {
		store := credstore.NewMemory()
		token := validToken(t)
		require.NoError(t, store.Set(ctx, credstore.KeyToken, token))

		mgr, _ := newManager(t, srv.URL, store)
		mgr.Hydrate(ctx)
		require.True(t, mgr.Hydrated())
		require.Equal(t, token, mgr.Token())
	})

	t.Run("expired token", func(t *testing.T) {
		store := credstore.NewMemory()
		require.NoError(t, store.Set(ctx, credstore.KeyToken, expiredToken(t)))

		mgr, _ := newManager(t, srv.URL, store)
		mgr.Hydrate(ctx)
		require.True(t, mgr.Hydrated())
		require.Empty(t, mgr.Token())
	})

	t.Run("corrupt persisted user", func(t *testing.T) {
		store := credstore.NewMemory()
		require.NoError(t, store.Set(ctx, credstore.KeyUser, `{"name": oops`))

		mgr, _ := newManager(t, srv.URL, store)
		mgr.Hydrate(ctx)
		require.True(t, mgr.Hydrated())
		require.Nil(t, mgr.User())

		// The corrupted entry is gone.
		_, err := store.Get(ctx, credstore.KeyUser)
		require.ErrorIs(t, err, credstore.ErrNotFound)
	})

	t.Run("valid everything", func(t *testing.T) {
		store := credstore.NewMemory()
		require.NoError(t, store.Set(ctx, credstore.KeyToken, validToken(t)))
		require.NoError(t, store.Set(ctx, credstore.KeyUser, `{"name":"stored"}`))
		require.NoError(t, store.Set(ctx, credstore.KeyLastRefresh, "1700000000000"))

		mgr, _ := newManager(t, srv.URL, store)
		mgr.Hydrate(ctx)
		require.True(t, mgr.Hydrated())
		// The implicit post-hydration refresh replaces the stored profile.
		require.Equal(t, "fetched", mgr.User()["name"])
	})
}

func TestHydrateRunsOnce(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/user/fetch", okJSON(`{}`))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	ctx := context.Background()
	store := credstore.NewMemory()

	mgr, _ := newManager(t, srv.URL, store)
	mgr.Hydrate(ctx)
	require.True(t, mgr.Hydrated())
	require.Empty(t, mgr.Token())

	// A token written after the first hydration must not be picked up by a
	// second call.
	require.NoError(t, store.Set(ctx, credstore.KeyToken, "late-token"))
	mgr.Hydrate(ctx)
	require.Empty(t, mgr.Token())
}

func TestHydrateDiscardsExpiredTokenFromStore(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	ctx := context.Background()
	store := credstore.NewMemory()
	require.NoError(t, store.Set(ctx, credstore.KeyToken, expiredToken(t)))

	mgr, _ := newManager(t, srv.URL, store)
	mgr.Hydrate(ctx)

	require.Empty(t, mgr.Token())
	_, err := store.Get(ctx, credstore.KeyToken)
	require.ErrorIs(t, err, credstore.ErrNotFound)
}

func TestOpaqueTokenIsNeverDetectablyExpired(t *testing.T) {
	srv := httptest.NewServer(http.NewServeMux())
	t.Cleanup(srv.Close)

	mgr, _ := newManager(t, srv.URL, credstore.NewMemory())
	mgr.Login(context.Background(), session.Credentials{Token: "abc123"})

	require.False(t, mgr.IsTokenExpired())
	require.Positive(t, mgr.TokenRemaining())
}

func TestLoginAttachesCredential(t *testing.T) {
	var gotAuth atomic.Value

	mux := http.NewServeMux()
	mux.HandleFunc("/api/user/fetch", func(w http.ResponseWriter, r *http.Request) {
		gotAuth.Store(r.Header.Get("Authorization"))
		okJSON(`{"user":{"name":"A2"}}`)(w, r)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	ctx := context.Background()
	mgr, _ := newManager(t, srv.URL, credstore.NewMemory())

	mgr.Login(ctx, session.Credentials{Token: "T", User: map[string]any{"name": "A"}})
	require.Equal(t, "T", mgr.Token())
	require.Equal(t, "A", mgr.User()["name"])
	require.False(t, mgr.LastRefresh().IsZero())

	require.True(t, mgr.RefreshProfile(ctx))
	require.Equal(t, "Bearer T", gotAuth.Load())
	require.Equal(t, "A2", mgr.User()["name"])
}

func TestLoginWithoutTokenClearsSession(t *testing.T) {
	srv := httptest.NewServer(http.NewServeMux())
	t.Cleanup(srv.Close)

	ctx := context.Background()
	store := credstore.NewMemory()
	mgr, _ := newManager(t, srv.URL, store)

	mgr.Login(ctx, session.Credentials{Token: "T", User: map[string]any{"name": "A"}})
	mgr.Login(ctx, session.Credentials{})

	require.Empty(t, mgr.Token())
	require.Nil(t, mgr.User())

	_, err := store.Get(ctx, credstore.KeyToken)
	require.ErrorIs(t, err, credstore.ErrNotFound)
	_, err = store.Get(ctx, credstore.KeyUser)
	require.ErrorIs(t, err, credstore.ErrNotFound)
}

func TestLogoutSurvivesServerFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/logout", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	ctx := context.Background()
	store := credstore.NewMemory()
	mgr, _ := newManager(t, srv.URL, store)

	mgr.Login(ctx, session.Credentials{Token: "T", User: map[string]any{"name": "A"}})
	mgr.Logout(ctx)

	require.Empty(t, mgr.Token())
	require.Nil(t, mgr.User())
	require.True(t, mgr.LastRefresh().IsZero())

	for _, key := range []string{credstore.KeyToken, credstore.KeyUser, credstore.KeyLastRefresh} {
		_, err := store.Get(ctx, key)
		require.ErrorIs(t, err, credstore.ErrNotFound)
	}

	// Idempotent: logging out while logged out changes nothing.
	mgr.Logout(ctx)
	require.Empty(t, mgr.Token())
}

func TestRefreshWithoutTokenShortCircuits(t *testing.T) {
	var requests atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	mgr, _ := newManager(t, srv.URL, credstore.NewMemory())

	require.False(t, mgr.RefreshProfile(context.Background()))
	require.Zero(t, requests.Load())
}

func TestRefreshWithExpiredTokenLogsOutWithoutFetching(t *testing.T) {
	var fetches atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/api/user/fetch", func(w http.ResponseWriter, _ *http.Request) {
		fetches.Add(1)
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/api/logout", okJSON(`{}`))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	ctx := context.Background()
	mgr, _ := newManager(t, srv.URL, credstore.NewMemory())
	mgr.Login(ctx, session.Credentials{Token: expiredToken(t), User: map[string]any{"name": "A"}})

	require.False(t, mgr.RefreshProfile(ctx))
	require.Zero(t, fetches.Load())
	require.Empty(t, mgr.Token())
	require.Nil(t, mgr.User())
}

func TestRefreshOnUnauthorizedTearsDown(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/user/fetch", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	mux.HandleFunc("/api/logout", okJSON(`{}`))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	ctx := context.Background()
	store := credstore.NewMemory()
	mgr, _ := newManager(t, srv.URL, store)
	mgr.Login(ctx, session.Credentials{Token: "T", User: map[string]any{"name": "A"}})

	require.False(t, mgr.RefreshProfile(ctx))
	require.Empty(t, mgr.Token())
	require.Nil(t, mgr.User())

	_, err := store.Get(ctx, credstore.KeyToken)
	require.ErrorIs(t, err, credstore.ErrNotFound)
}

func TestRefreshKeepsStaleUserOnShapelessPayload(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/user/fetch", okJSON(`{}`))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	ctx := context.Background()
	mgr, _ := newManager(t, srv.URL, credstore.NewMemory())
	mgr.Login(ctx, session.Credentials{Token: "T", User: map[string]any{"name": "OLD"}})

	require.False(t, mgr.RefreshProfile(ctx))
	require.Equal(t, "OLD", mgr.User()["name"])
	require.Equal(t, "T", mgr.Token())
}

func TestRefreshKeepsSessionOnTransientError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/user/fetch", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	ctx := context.Background()
	mgr, _ := newManager(t, srv.URL, credstore.NewMemory())
	mgr.Login(ctx, session.Credentials{Token: "T", User: map[string]any{"name": "OLD"}})

	require.False(t, mgr.RefreshProfile(ctx))
	require.Equal(t, "T", mgr.Token())
	require.Equal(t, "OLD", mgr.User()["name"])
}

func TestConcurrentUnauthorizedCollapsesToOneLogout(t *testing.T) {
	var (
		logoutCalls atomic.Int32
		startedOnce sync.Once
		started     = make(chan struct{})
		release     = make(chan struct{})
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/user/fetch", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	mux.HandleFunc("/api/logout", func(w http.ResponseWriter, _ *http.Request) {
		logoutCalls.Add(1)
		startedOnce.Do(func() { close(started) })
		<-release
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	ctx := context.Background()
	mgr, client := newManager(t, srv.URL, credstore.NewMemory())
	mgr.Login(ctx, session.Credentials{Token: "T"})

	// First unauthorized response: the registered handler starts teardown
	// and blocks inside the server-side logout call.
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = client.FetchProfile(ctx)
	}()
	<-started

	// Second unauthorized response while teardown is still running: the
	// re-entrancy guard must skip a second teardown entirely.
	_, _ = client.FetchProfile(ctx)

	close(release)
	wg.Wait()

	require.Equal(t, int32(1), logoutCalls.Load())
	require.Empty(t, mgr.Token())
}

func TestPersistenceRoundTrip(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/user/fetch", okJSON(`{}`))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	ctx := context.Background()
	store := credstore.NewMemory()

	first, _ := newManager(t, srv.URL, store)
	first.Login(ctx, session.Credentials{Token: "T2", User: map[string]any{"id": 1}})

	// Simulated restart: a fresh manager against the same store.
	second, _ := newManager(t, srv.URL, store)
	second.Hydrate(ctx)

	require.True(t, second.Hydrated())
	require.Equal(t, "T2", second.Token())
	require.Equal(t, float64(1), second.User()["id"])
	require.False(t, second.LastRefresh().IsZero())
}

func TestSubscribersSeeLoadingTransitions(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/user/fetch", okJSON(`{"user":{"name":"A"}}`))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	ctx := context.Background()
	mgr, _ := newManager(t, srv.URL, credstore.NewMemory())
	mgr.Login(ctx, session.Credentials{Token: "T"})

	var mu sync.Mutex
	var loadingSeen []bool
	mgr.Subscribe(func(s session.State) {
		mu.Lock()
		loadingSeen = append(loadingSeen, s.Loading)
		mu.Unlock()
	})

	require.True(t, mgr.RefreshProfile(ctx))
	require.False(t, mgr.Loading())

	mu.Lock()
	defer mu.Unlock()
	require.Contains(t, loadingSeen, true)
	require.False(t, loadingSeen[len(loadingSeen)-1])
}

func TestStorageFailuresAreSoft(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/logout", okJSON(`{}`))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	ctx := context.Background()
	mgr, _ := newManager(t, srv.URL, failingStore{})

	// Every operation still converges despite the store erroring.
	mgr.Hydrate(ctx)
	require.True(t, mgr.Hydrated())

	mgr.Login(ctx, session.Credentials{Token: "T", User: map[string]any{"name": "A"}})
	require.Equal(t, "T", mgr.Token())

	mgr.Logout(ctx)
	require.Empty(t, mgr.Token())
}

type failingStore struct{}

func (failingStore) Get(context.Context, string) (string, error) {
	return "", errStorage
}
func (failingStore) Set(context.Context, string, string) error { return errStorage }
func (failingStore) Remove(context.Context, string) error      { return errStorage }
func (failingStore) Close() error                              { return nil }

var errStorage = &storageError{}

type storageError struct{}

func (*storageError) Error() string { return "disk on fire" }
