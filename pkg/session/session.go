// Package session owns the client-side authentication session: the bearer
// token, the cached user profile, and the lifecycle rules that keep them,
// the credential store, and the HTTP client's attached credential in sync.
//
// A Manager moves through four states. It boots un-hydrated, restores itself
// once from the credential store, and from then on is either holding a
// session (token present) or not, with a transient loading sub-state while a
// profile refresh is in flight. Teardown happens on explicit logout or when
// the transport reports an unauthorized response anywhere.
//
// Public operations never return errors. Failures surface as a boolean
// (RefreshProfile) or as silent convergence (Login and Logout always succeed
// locally): the UI layer must always find the session in a well-defined,
// usable state, network and storage be damned.
package session

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wishkro/wishkro-go/pkg/apiclient"
	"github.com/wishkro/wishkro-go/pkg/credstore"
	"github.com/wishkro/wishkro-go/pkg/jwtx"
)

// State is a point-in-time snapshot of the session, handed to subscribers
// and returned by State().
type State struct {
	Token       string
	User        map[string]any
	Hydrated    bool
	Loading     bool
	LastRefresh time.Time
}

// LoggedIn reports whether the snapshot holds a credential.
func (s State) LoggedIn() bool { return s.Token != "" }

type Config struct {
	Client *apiclient.Client
	Store  credstore.Store
	Logger *slog.Logger

	// Skew is the expiry safety margin; defaults to jwtx.DefaultSkew.
	Skew time.Duration

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Manager is the session manager. Construct exactly one per running
// application; it registers itself as the client's unauthorized handler, so
// a second manager would silently steal the first one's slot.
type Manager struct {
	client *apiclient.Client
	store  credstore.Store
	logger *slog.Logger
	skew   time.Duration
	now    func() time.Time

	mu          sync.RWMutex
	token       string
	user        map[string]any
	hydrated    bool
	loading     bool
	lastRefresh time.Time
	observers   []func(State)

	hydrateOnce sync.Once

	// tearingDown collapses concurrent unauthorized callbacks into one
	// teardown; see handleUnauthorized.
	tearingDown atomic.Bool
}

// New wires a manager to its collaborators and installs it as the client's
// unauthorized handler, so any 401/403/419 on any request tears the session
// down.
func New(cfg Config) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	skew := cfg.Skew
	if skew <= 0 {
		skew = jwtx.DefaultSkew
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	m := &Manager{
		client: cfg.Client,
		store:  cfg.Store,
		logger: logger,
		skew:   skew,
		now:    now,
	}

	m.client.SetUnauthorizedHandler(m.handleUnauthorized)
	return m
}

// Token returns the current bearer credential, or "".
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

// User returns a copy of the cached profile, or nil. The schema is whatever
// the backend returned; it is persisted and served verbatim.
func (m *Manager) User() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return maps.Clone(m.user)
}

// Hydrated reports whether the one-time boot restore has completed.
func (m *Manager) Hydrated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hydrated
}

// Loading reports whether a profile refresh is in flight.
func (m *Manager) Loading() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loading
}

// LastRefresh returns when the profile was last populated; zero when never.
func (m *Manager) LastRefresh() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastRefresh
}

// IsTokenExpired reports whether the current token is detectably expired.
// Opaque tokens are never detectably expired; the backend polices those.
func (m *Manager) IsTokenExpired() bool {
	return jwtx.IsExpired(m.Token(), m.skew)
}

// TokenRemaining returns the time until the current token expires, or the
// maximum duration when that cannot be determined.
func (m *Manager) TokenRemaining() time.Duration {
	return jwtx.Remaining(m.Token())
}

// BaseURL exposes the API base for consumers building absolute resource
// URLs from relative paths in profile data.
func (m *Manager) BaseURL() string { return m.client.BaseURL() }

// State returns a consistent snapshot of all session fields.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

func (m *Manager) snapshotLocked() State {
	return State{
		Token:       m.token,
		User:        maps.Clone(m.user),
		Hydrated:    m.hydrated,
		Loading:     m.loading,
		LastRefresh: m.lastRefresh,
	}
}

// Subscribe registers fn to be called with a fresh snapshot after every
// state transition. Callbacks run synchronously on the mutating goroutine
// and must not call back into the manager.
func (m *Manager) Subscribe(fn func(State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, fn)
}

func (m *Manager) notify() {
	m.mu.RLock()
	snapshot := m.snapshotLocked()
	observers := make([]func(State), len(m.observers))
	copy(observers, m.observers)
	m.mu.RUnlock()

	for _, fn := range observers {
		fn(snapshot)
	}
}

func (m *Manager) setLoading(v bool) {
	m.mu.Lock()
	m.loading = v
	m.mu.Unlock()
	m.notify()
}

// Storage helpers. Every failure is soft: logged and treated as an absent
// value, so a broken store degrades to an anonymous session instead of a
// crash.

func (m *Manager) loadEntry(ctx context.Context, key string) (string, bool) {
	v, err := m.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, credstore.ErrNotFound) {
			m.logger.Warn("credential store read failed", "key", key, "err", err)
		}
		return "", false
	}
	return v, true
}

func (m *Manager) persistEntry(ctx context.Context, key, value string) {
	if err := m.store.Set(ctx, key, value); err != nil {
		m.logger.Warn("credential store write failed", "key", key, "err", err)
	}
}

func (m *Manager) removeEntry(ctx context.Context, key string) {
	if err := m.store.Remove(ctx, key); err != nil {
		m.logger.Warn("credential store remove failed", "key", key, "err", err)
	}
}
