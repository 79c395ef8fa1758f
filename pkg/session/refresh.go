package session

import (
	"context"
	"strconv"

	"github.com/wishkro/wishkro-go/pkg/apiclient"
	"github.com/wishkro/wishkro-go/pkg/credstore"
	"github.com/wishkro/wishkro-go/pkg/jwtx"
)

// RefreshProfile pulls the latest profile from the backend and reports
// success. Every failure mode leaves the session in a well-defined state:
//
//   - no token: false, no network call
//   - token detectably expired: full logout, false
//   - unauthorized response: full logout, false
//   - unusable payload or any other transport error: false, session
//     untouched (a stale profile beats no profile)
//
// The loading flag is set for the duration of the network call.
func (m *Manager) RefreshProfile(ctx context.Context) bool {
	token := m.Token()
	if token == "" {
		return false
	}

	if jwtx.IsExpired(token, m.skew) {
		// Known-dead credential; don't bother the network with it.
		m.Logout(ctx)
		return false
	}

	m.setLoading(true)
	defer m.setLoading(false)

	profile, err := m.client.FetchProfile(ctx)
	if err != nil {
		if apiclient.IsAuthError(err) {
			m.Logout(ctx)
			return false
		}
		m.logger.Warn("profile refresh failed", "err", err)
		return false
	}
	if profile == nil {
		// Shapeless 200. Keep whatever profile we already had.
		return false
	}

	now := m.now()
	m.mu.Lock()
	m.user = profile
	m.lastRefresh = now
	m.mu.Unlock()

	m.persistUser(ctx, profile)
	m.persistEntry(ctx, credstore.KeyLastRefresh, strconv.FormatInt(now.UnixMilli(), 10))
	m.notify()
	return true
}
