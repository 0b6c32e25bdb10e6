package hub

import (
	"context"
	"log"
	"net"
	"sync"
	"time"

	"github.com/TharinduDesh/chatAPP/internal/event"
	"github.com/TharinduDesh/chatAPP/internal/registry"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var (
	// tuning parameters
	writeWait          = 10 * time.Second       // time allowed to write a message to the peer
	pongWait           = 20 * time.Second       // time allowed to read the next pong message from the peer
	pingInterval       = (pongWait * 9) / 10    // send pings to peer with this period
	maxMessageSize     = 64 * 1024              // max inbound message size (64KB)
	sendBufSize        = 256                    // per-connection outbound buffer size
	workerPoolSize     = 16                     // number of workers to process inbound events
	sendTimeout        = 2 * time.Second        // timeout for enqueuing outbound events
	inboundSendTimeout = 500 * time.Millisecond // timeout for sending to inbound channel
)

// Client is one live WebSocket connection. It implements Session; the hub
// and the registry only ever see that interface.
type Client struct {
	id      string
	key     registry.Key
	anon    bool // no participant identity on this connection
	conn    *websocket.Conn
	manager *Hub
	egress  chan event.WsEvent

	// conversation rooms this client has joined, for disconnect cleanup
	rooms   map[string]struct{}
	roomsMu sync.Mutex

	ctx            context.Context
	cancel         context.CancelFunc
	once           sync.Once
	connClosed     chan struct{}
	connClosedOnce sync.Once
	closed         bool
	closedMu       sync.RWMutex
}

func newClient(key registry.Key, anon bool, conn *websocket.Conn, h *Hub) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		id:         uuid.New().String(),
		key:        key,
		anon:       anon,
		conn:       conn,
		manager:    h,
		egress:     make(chan event.WsEvent, sendBufSize),
		rooms:      make(map[string]struct{}),
		ctx:        ctx,
		cancel:     cancel,
		connClosed: make(chan struct{}),
	}
}

func (c *Client) ID() string        { return c.id }
func (c *Client) Key() registry.Key { return c.key }
func (c *Client) IsAnonymous() bool { return c.anon }

func (c *Client) trackRoom(roomID string) {
	c.roomsMu.Lock()
	defer c.roomsMu.Unlock()
	c.rooms[roomID] = struct{}{}
}

func (c *Client) untrackRoom(roomID string) {
	c.roomsMu.Lock()
	defer c.roomsMu.Unlock()
	delete(c.rooms, roomID)
}

func (c *Client) joinedRooms() []string {
	c.roomsMu.Lock()
	defer c.roomsMu.Unlock()
	rooms := make([]string, 0, len(c.rooms))
	for id := range c.rooms {
		rooms = append(rooms, id)
	}
	return rooms
}

// ReadMessages pumps inbound frames into the hub's event queue until the
// connection drops, then triggers full cleanup.
func (c *Client) ReadMessages() {
	defer func() {
		c.manager.clientGone(c)
		c.Close()
	}()

	c.conn.SetReadLimit(int64(maxMessageSize))
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(c.pongHandler)

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
			var ev event.WsEvent

			if err := c.conn.ReadJSON(&ev); err != nil {
				if websocket.IsCloseError(err,
					websocket.CloseNormalClosure,
					websocket.CloseGoingAway,
					websocket.CloseAbnormalClosure,
				) {
					log.Printf("client disconnected: %v", c.id)
					return
				}

				if websocket.IsUnexpectedCloseError(err,
					websocket.CloseInternalServerErr,
					websocket.CloseProtocolError,
				) {
					log.Printf("unexpected close for %s: %v", c.id, err)
				}

				if ne, ok := err.(net.Error); ok && ne.Timeout() {
					log.Printf("client %s timed out - closing connection", c.id)
					return
				}

				log.Printf("error reading from client %s: %v", c.id, err)
				return
			}

			// Non-blocking send into the processing queue so a slow worker
			// pool never stalls the reader.
			select {
			case c.manager.inbound <- inboundEvent{client: c, event: ev}:
			case <-time.After(inboundSendTimeout):
				log.Printf("inbound send timeout: dropping client %s", c.id)
				c.cancel()
				c.conn.Close()
			case <-c.ctx.Done():
				return
			}
		}
	}
}

// WriteMessages drains the egress channel onto the wire and keeps the
// connection alive with pings.
func (c *Client) WriteMessages() {
	ticker := time.NewTicker(pingInterval)

	defer func() {
		ticker.Stop()
		c.Close()
		_ = c.conn.Close()
		c.connClosedOnce.Do(func() {
			close(c.connClosed)
		})
	}()

	for {
		select {
		case <-c.ctx.Done():
			return
		case ev, ok := <-c.egress:
			if !ok {
				if err := c.conn.WriteMessage(websocket.CloseMessage, nil); err != nil {
					log.Printf("connection closed: %v", err)
				}
				return
			}

			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(ev); err != nil {
				log.Printf("write error for client %s: %v", c.id, err)
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Printf("ping error for client %s: %v", c.id, err)
				return
			}
		}
	}
}

func (c *Client) pongHandler(string) error {
	return c.conn.SetReadDeadline(time.Now().Add(pongWait))
}

// Send enqueues an outbound event. Returns false when the client is closed
// or its egress buffer stayed full past the send timeout; callers treat that
// the same as an unreachable channel.
func (c *Client) Send(ev event.WsEvent) bool {
	if c.IsClosed() {
		return false
	}

	select {
	case <-c.ctx.Done():
		return false
	case c.egress <- ev:
		return true
	case <-time.After(sendTimeout):
		log.Printf("egress full for client %s, dropping event %s", c.id, ev.Event)
		return false
	}
}

// Close tears the client down exactly once.
func (c *Client) Close() {
	c.once.Do(func() {
		c.closedMu.Lock()
		c.closed = true
		c.closedMu.Unlock()

		c.cancel()
		close(c.egress)

		// Wait for WriteMessages to close the conn, or force it after a
		// safety timeout.
		go func() {
			select {
			case <-c.connClosed:
			case <-time.After(5 * time.Second):
				_ = c.conn.Close()
				log.Printf("safety timeout: force closed connection for client %s", c.id)
			}
		}()
	})
}

// IsClosed reports whether the client has been torn down.
func (c *Client) IsClosed() bool {
	c.closedMu.RLock()
	defer c.closedMu.RUnlock()
	return c.closed
}
