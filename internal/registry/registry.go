// Package registry tracks which participant identities are reachable over a
// live channel right now. It is a process-local key-value store: one channel
// per key, last-connected-wins. It does not broadcast anything itself; the
// presence tracker observes its mutations.
package registry

import (
	"strings"
	"sync"

	"github.com/TharinduDesh/chatAPP/internal/event"
)

// Kind discriminates the two identity spaces sharing the same underlying id
// format. Tagging the key removes the prefix-parsing step the wire form
// still needs for compatibility.
type Kind int

const (
	KindUser Kind = iota
	KindAdmin
)

// adminWirePrefix namespaces administrator keys on the activeUsers event so
// consumers can filter staff presence client-side.
const adminWirePrefix = "admin_"

// Key identifies one connected participant.
type Key struct {
	Kind Kind
	ID   string
}

func UserKey(id string) Key  { return Key{Kind: KindUser, ID: id} }
func AdminKey(id string) Key { return Key{Kind: KindAdmin, ID: id} }

// String returns the wire form used on the activeUsers event.
func (k Key) String() string {
	if k.Kind == KindAdmin {
		return adminWirePrefix + k.ID
	}
	return k.ID
}

// ParseKey reverses String. Only needed by consumers of the wire form.
func ParseKey(s string) Key {
	if id, ok := strings.CutPrefix(s, adminWirePrefix); ok {
		return AdminKey(id)
	}
	return UserKey(s)
}

// Channel is one live bidirectional connection. Send returns false when the
// channel could not accept the event (closed or backed up).
type Channel interface {
	Send(ev event.WsEvent) bool
}

// Registry is the active-connection table. A single instance is built at
// process start and injected wherever reachability is decided; no other
// component mutates the table. All methods are safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	channels map[Key]Channel
}

func New() *Registry {
	return &Registry{channels: make(map[Key]Channel)}
}

// Register maps key to ch, unconditionally replacing any prior mapping for
// that key. A second connect from the same identity wins; there is no
// multi-device fan-out.
func (r *Registry) Register(key Key, ch Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channels[key] = ch
}

// Unregister removes the mapping whose channel is ch and returns its key.
// Disconnect events carry only the channel, so this is a reverse scan of the
// table; a miss (already replaced, or an anonymous connection) is a no-op.
func (r *Registry) Unregister(ch Channel) (Key, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, existing := range r.channels {
		if existing == ch {
			delete(r.channels, key)
			return key, true
		}
	}
	return Key{}, false
}

// Lookup returns the channel currently registered for key. The registry is
// the sole reachability oracle: every direct push goes through here.
func (r *Registry) Lookup(key Key) (Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.channels[key]
	return ch, ok
}

// Keys returns a snapshot of all registered keys. Order is unspecified.
func (r *Registry) Keys() []Key {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]Key, 0, len(r.channels))
	for key := range r.channels {
		keys = append(keys, key)
	}
	return keys
}

// Len returns the number of registered participants.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels)
}
