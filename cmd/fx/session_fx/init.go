package session_fx

import (
	"time"

	"go.uber.org/fx"

	"gatebot/pkg/memcache"
)

// Sessions are evicted after an hour without writes; the funnel's own
// 10-minute idle policy resets flows long before eviction kicks in.
const sessionTTL = time.Hour

var Module = fx.Provide(
	provideSessions,
)

func provideSessions() memcache.SessionStore {
	return memcache.NewSessions(sessionTTL, nil)
}
