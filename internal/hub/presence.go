package hub

import (
	"context"
	"time"

	"github.com/TharinduDesh/chatAPP/internal/event"
	"github.com/TharinduDesh/chatAPP/internal/registry"
	"github.com/TharinduDesh/chatAPP/internal/repo"

	"go.uber.org/zap"
)

const lastSeenWriteTimeout = 5 * time.Second

// PresenceTracker observes registry mutations. Every connect and disconnect
// rebroadcasts the full online-set to all connected channels; disconnects
// additionally stamp the departing identity's last-seen time.
type PresenceTracker struct {
	reg         *registry.Registry
	users       repo.UserRepository
	broadcaster Broadcaster
	logger      *zap.Logger
}

func NewPresenceTracker(reg *registry.Registry, users repo.UserRepository, broadcaster Broadcaster, logger *zap.Logger) *PresenceTracker {
	return &PresenceTracker{
		reg:         reg,
		users:       users,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// ClientConnected registers the channel for its key (replacing any prior
// channel for the same identity) and broadcasts the new online-set.
func (t *PresenceTracker) ClientConnected(key registry.Key, ch registry.Channel) {
	t.reg.Register(key, ch)
	t.logger.Info("participant connected", zap.String("participant", key.String()))
	t.BroadcastActive()
}

// ClientDisconnected removes the channel's mapping if it still owns one. A
// miss means the identity reconnected elsewhere (last-connected-wins) or the
// connection was anonymous; either way there is nothing to do. The last-seen
// write is best effort: an observability gap is non-fatal, a stale registry
// entry is not, so the broadcast never waits on it.
func (t *PresenceTracker) ClientDisconnected(ch registry.Channel) {
	key, ok := t.reg.Unregister(ch)
	if !ok {
		return
	}

	t.logger.Info("participant disconnected", zap.String("participant", key.String()))
	t.BroadcastActive()

	ctx, cancel := context.WithTimeout(context.Background(), lastSeenWriteTimeout)
	defer cancel()
	if err := t.users.TouchLastSeen(ctx, key); err != nil {
		t.logger.Warn("failed to persist last seen",
			zap.String("participant", key.String()),
			zap.Error(err),
		)
	}
}

// BroadcastActive pushes the current key snapshot to every connected channel.
// Consumers filter the list client-side (admin keys carry their namespace in
// the wire form).
func (t *PresenceTracker) BroadcastActive() {
	keys := t.reg.Keys()
	wire := make([]string, 0, len(keys))
	for _, key := range keys {
		wire = append(wire, key.String())
	}
	t.broadcaster.BroadcastAll(event.NewEvent(event.EventActiveUsers, wire))
}
