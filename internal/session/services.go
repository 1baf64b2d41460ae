package session

import (
	"github.com/zhulik/pal"

	"murmur/internal/config"
	"murmur/internal/core"
	"murmur/internal/persistence"
	"murmur/internal/persistence/sessions"
)

// Provide registers the session store for the given backend. The NATS backend expects nats.NATS to be
// provided by the caller.
func Provide(backend string) pal.ServiceDef {
	switch backend {
	case config.SessionBackendNATS:
		return pal.Provide[core.SessionStore](&KV{})
	case config.SessionBackendRedis:
		return pal.Provide[core.SessionStore](&Redis{})
	case config.SessionBackendPostgres:
		return pal.ProvideList(
			pal.Provide(&persistence.DB{}),
			pal.Provide[core.SessionStore](&sessions.Repository{}),
		)
	case config.SessionBackendMemory:
		return pal.Provide[core.SessionStore](&Memory{})
	default:
		return pal.Provide[core.SessionStore](&File{})
	}
}
