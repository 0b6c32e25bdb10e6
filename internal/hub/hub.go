package hub

import (
	"context"
	"crypto/sha1"
	"encoding/binary"
	"log"
	"net/http"
	"sync"

	"github.com/TharinduDesh/chatAPP/internal/event"
	"github.com/TharinduDesh/chatAPP/internal/registry"

	"github.com/gorilla/websocket"
)

const (
	shardCount = 64 // tune: 16/64/128 depending on load
)

// Session is what the rest of the system sees of a connected client: an
// identity, a stable connection id and a best-effort outbound channel.
type Session interface {
	ID() string
	Key() registry.Key
	Send(ev event.WsEvent) bool
}

// RoomBroadcaster is the multicast surface of the hub: dynamic, server-side
// membership groups keyed by conversation id. Distinct from registry lookups,
// which address one participant's channel directly.
type RoomBroadcaster interface {
	Join(roomID string, s Session)
	Leave(roomID string, s Session)
	Broadcast(roomID string, ev event.WsEvent)
	BroadcastExcept(roomID string, except Session, ev event.WsEvent)
}

// Broadcaster pushes an event to every connected channel, joined to a room
// or not. Used by the presence tracker.
type Broadcaster interface {
	BroadcastAll(ev event.WsEvent)
}

// EventHandler consumes inbound domain events dequeued by the worker pool.
type EventHandler interface {
	HandleEvent(ctx context.Context, ev event.WsEvent, s Session)
}

type inboundEvent struct {
	event  event.WsEvent
	client *Client
}

type roomBucket struct {
	sync.RWMutex
	rooms map[string]map[string]Session
}

// Hub owns room membership and the connected-client set, and runs the worker
// pool that drains inbound events into the chat handler.
type Hub struct {
	shards [shardCount]*roomBucket

	clientsMu sync.RWMutex
	clients   map[string]*Client

	inbound  chan inboundEvent
	handler  EventHandler
	presence *PresenceTracker

	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once
}

func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		clients: make(map[string]*Client),
		inbound: make(chan inboundEvent, 4096), // buffer for burst handling
		ctx:     ctx,
		cancel:  cancel,
	}

	for i := 0; i < shardCount; i++ {
		h.shards[i] = &roomBucket{
			rooms: make(map[string]map[string]Session),
		}
	}

	for i := 0; i < workerPoolSize; i++ {
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			for {
				select {
				case <-h.ctx.Done():
					return
				case in, ok := <-h.inbound:
					if !ok {
						return
					}
					if h.handler != nil {
						h.handler.HandleEvent(h.ctx, in.event, in.client)
					}
				}
			}
		}()
	}

	return h
}

// SetHandler wires the chat handler. Must be called before serving
// connections; the handler needs the hub too, so construction is two-phase.
func (h *Hub) SetHandler(handler EventHandler) {
	h.handler = handler
}

// SetPresence wires the presence tracker consulted on connect/disconnect.
func (h *Hub) SetPresence(p *PresenceTracker) {
	h.presence = p
}

func getShard(roomID string) uint32 {
	if roomID == "" {
		return 0
	}
	sum := sha1.Sum([]byte(roomID))
	return binary.BigEndian.Uint32(sum[:4]) % shardCount
}

// Join adds a session to a conversation room.
func (h *Hub) Join(roomID string, s Session) {
	if roomID == "" {
		return
	}
	b := h.shards[getShard(roomID)]
	b.Lock()
	defer b.Unlock()

	room, ok := b.rooms[roomID]
	if !ok {
		room = make(map[string]Session)
		b.rooms[roomID] = room
	}
	room[s.ID()] = s

	if c, ok := s.(*Client); ok {
		c.trackRoom(roomID)
	}
	log.Printf("session %s joined room %s", s.ID(), roomID)
}

// Leave removes a session from a conversation room.
func (h *Hub) Leave(roomID string, s Session) {
	b := h.shards[getShard(roomID)]
	b.Lock()
	defer b.Unlock()

	if room, ok := b.rooms[roomID]; ok {
		delete(room, s.ID())
		if len(room) == 0 {
			delete(b.rooms, roomID)
		}
	}

	if c, ok := s.(*Client); ok {
		c.untrackRoom(roomID)
	}
	log.Printf("session %s left room %s", s.ID(), roomID)
}

// Broadcast multicasts an event to every session joined to a room.
func (h *Hub) Broadcast(roomID string, ev event.WsEvent) {
	for _, s := range h.roomSnapshot(roomID, "") {
		s.Send(ev)
	}
}

// BroadcastExcept multicasts to a room minus one session, the typing
// indicator semantics.
func (h *Hub) BroadcastExcept(roomID string, except Session, ev event.WsEvent) {
	exceptID := ""
	if except != nil {
		exceptID = except.ID()
	}
	for _, s := range h.roomSnapshot(roomID, exceptID) {
		s.Send(ev)
	}
}

// roomSnapshot collects room members under the read lock so delivery happens
// without holding it.
func (h *Hub) roomSnapshot(roomID, exceptID string) []Session {
	b := h.shards[getShard(roomID)]
	b.RLock()
	defer b.RUnlock()

	room, ok := b.rooms[roomID]
	if !ok || len(room) == 0 {
		return nil
	}
	sessions := make([]Session, 0, len(room))
	for id, s := range room {
		if id == exceptID {
			continue
		}
		sessions = append(sessions, s)
	}
	return sessions
}

// BroadcastAll pushes an event to every connected client.
func (h *Hub) BroadcastAll(ev event.WsEvent) {
	h.clientsMu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.clientsMu.RUnlock()

	for _, c := range clients {
		c.Send(ev)
	}
}

func (h *Hub) addClient(c *Client) {
	h.clientsMu.Lock()
	h.clients[c.id] = c
	h.clientsMu.Unlock()
}

// clientGone runs full disconnect cleanup: drop the client from every room
// it joined and from the connected set, then let the presence tracker
// unregister it and broadcast the new online-set.
func (h *Hub) clientGone(c *Client) {
	for _, roomID := range c.joinedRooms() {
		h.Leave(roomID, c)
	}

	h.clientsMu.Lock()
	delete(h.clients, c.id)
	h.clientsMu.Unlock()

	if h.presence != nil {
		h.presence.ClientDisconnected(c)
	}
	log.Printf("client %s removed", c.id)
}

// Stop tears down the worker pool and closes every client connection. Safe
// to call more than once; the container and the server shutdown path both do.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		h.cancel()

		h.clientsMu.RLock()
		for _, c := range h.clients {
			c.Close()
		}
		h.clientsMu.RUnlock()

		close(h.inbound)
		h.wg.Wait()
	})
}

var websocketUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeWS upgrades an HTTP request to a WebSocket session. The connection
// parameters identify the participant; authentication happened upstream, so
// userId arrives pre-validated. Connections without a usable userId stay
// anonymous: they can join rooms but never enter the registry.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocketUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}

	userID := r.URL.Query().Get("userId")
	isAdmin := r.URL.Query().Get("isAdmin") == "true"

	anon := userID == "" || userID == "null" || userID == "undefined"
	var key registry.Key
	if !anon {
		if isAdmin {
			key = registry.AdminKey(userID)
		} else {
			key = registry.UserKey(userID)
		}
	}

	c := newClient(key, anon, conn, h)
	h.addClient(c)

	if c.IsAnonymous() {
		log.Printf("anonymous client %s connected", c.id)
	} else if h.presence != nil {
		h.presence.ClientConnected(key, c)
	}

	go c.ReadMessages()
	go c.WriteMessages()
}
