package session

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/wishkro/wishkro-go/pkg/credstore"
	"github.com/wishkro/wishkro-go/pkg/jwtx"
	"github.com/wishkro/wishkro-go/pkg/slogx"
)

// Credentials carry what the backend hands out after a successful sign-in.
// An empty Token is legal and clears the session.
type Credentials struct {
	Token string
	User  map[string]any
}

// Hydrate restores the session from the credential store. It runs at most
// once per manager; the hydrated flag flips to true no matter what went
// wrong along the way. When a usable token survives restoration, exactly one
// implicit profile refresh follows.
func (m *Manager) Hydrate(ctx context.Context) {
	m.hydrateOnce.Do(func() {
		m.restore(ctx)
		if m.Token() != "" {
			m.RefreshProfile(ctx)
		}
	})
}

func (m *Manager) restore(ctx context.Context) {
	defer func() {
		m.mu.Lock()
		m.hydrated = true
		m.mu.Unlock()
		m.notify()
	}()

	if token, ok := m.loadEntry(ctx, credstore.KeyToken); ok && token != "" {
		if jwtx.IsExpired(token, m.skew) {
			// A stale credential is dropped before anything can use it.
			m.removeEntry(ctx, credstore.KeyToken)
		} else {
			m.mu.Lock()
			m.token = token
			m.mu.Unlock()
			m.client.AttachAuth(token)
		}
	}

	if raw, ok := m.loadEntry(ctx, credstore.KeyUser); ok && raw != "" {
		var user map[string]any
		if err := json.Unmarshal([]byte(raw), &user); err != nil {
			m.logger.Warn("discarding corrupt persisted profile", "err", err)
			m.removeEntry(ctx, credstore.KeyUser)
		} else {
			m.mu.Lock()
			m.user = user
			m.mu.Unlock()
		}
	}

	if raw, ok := m.loadEntry(ctx, credstore.KeyLastRefresh); ok && raw != "" {
		if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
			m.mu.Lock()
			m.lastRefresh = time.UnixMilli(ms)
			m.mu.Unlock()
		}
	}
}

// Login installs a freshly issued credential and profile. In-memory state
// and the client's attached credential are consistent before this returns;
// persistence is best effort and never fails the call.
func (m *Manager) Login(ctx context.Context, creds Credentials) {
	now := m.now()

	m.mu.Lock()
	m.token = creds.Token
	m.user = creds.User
	m.lastRefresh = now
	m.mu.Unlock()
	m.client.AttachAuth(creds.Token)

	if creds.Token != "" {
		m.persistEntry(ctx, credstore.KeyToken, creds.Token)
	} else {
		m.removeEntry(ctx, credstore.KeyToken)
	}

	if creds.User != nil {
		m.persistUser(ctx, creds.User)
	} else {
		m.removeEntry(ctx, credstore.KeyUser)
	}

	m.persistEntry(ctx, credstore.KeyLastRefresh, strconv.FormatInt(now.UnixMilli(), 10))
	m.notify()
}

// Logout tears the session down. The server-side invalidation call is fire
// and forget: local teardown succeeds whether or not the network does.
// Calling Logout on an already-anonymous session is a no-op beyond that
// harmless server call.
func (m *Manager) Logout(ctx context.Context) {
	if err := m.client.Logout(ctx); err != nil {
		m.logger.Debug("server-side logout failed", "err", err)
	}

	m.mu.Lock()
	m.token = ""
	m.user = nil
	m.lastRefresh = time.Time{}
	m.mu.Unlock()
	m.client.AttachAuth("")

	m.removeEntry(ctx, credstore.KeyToken)
	m.removeEntry(ctx, credstore.KeyUser)
	m.removeEntry(ctx, credstore.KeyLastRefresh)
	m.notify()
}

// handleUnauthorized is the callback the manager registers on the client.
// Several in-flight requests can all come back 401 at once; only the first
// invocation runs teardown, the rest observe the flag and return.
func (m *Manager) handleUnauthorized(ctx context.Context) {
	if !m.tearingDown.CompareAndSwap(false, true) {
		return
	}
	defer m.tearingDown.Store(false)

	// The context carries a logger scoped to the request that got rejected.
	slogx.FromContext(ctx).Info("unauthorized response, clearing session")
	m.Logout(ctx)
}

func (m *Manager) persistUser(ctx context.Context, user map[string]any) {
	raw, err := json.Marshal(user)
	if err != nil {
		m.logger.Warn("profile not serializable, skipping persist", "err", err)
		return
	}
	m.persistEntry(ctx, credstore.KeyUser, string(raw))
}
