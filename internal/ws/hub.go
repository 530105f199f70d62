package ws

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"roombook/internal/messages"
)

// ListRefreshType is the unscoped message type every connection receives on
// any state change, so resource-list views learn that totals moved even
// without a specific subscription.
const ListRefreshType = "resource-list:update"

// wire is the part of a websocket connection the hub writes to. Concurrent
// writers are serialized per connection by Connection.mu.
type wire interface {
	WriteJSON(v interface{}) error
	Close() error
}

// OutMessage is what clients receive. Type is "welcome" on connect,
// "<resourceID>:status" for scoped deliveries and ListRefreshType for the
// unscoped ones.
type OutMessage struct {
	Type         string                     `json:"type"`
	ConnectionID string                     `json:"connection_id,omitempty"`
	Event        *messages.StateChangeEvent `json:"event,omitempty"`
}

// Connection is one live client with its set of subscribed resources.
type Connection struct {
	ID string

	conn wire

	mu            sync.Mutex
	subscriptions map[string]struct{}
}

func (c *Connection) send(msg OutMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(msg)
}

func (c *Connection) subscribe(resourceID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscriptions[resourceID] = struct{}{}
}

func (c *Connection) unsubscribe(resourceID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.subscriptions, resourceID)
}

func (c *Connection) subscribedTo(resourceID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.subscriptions[resourceID]
	return ok
}

// Hub owns the connection registry for one broadcaster instance. It is
// created at startup and torn down at shutdown; nothing about it is
// process-wide.
type Hub struct {
	mu          sync.RWMutex
	connections map[*Connection]struct{}
}

func NewHub() *Hub {
	return &Hub{connections: make(map[*Connection]struct{})}
}

// Register adds a connection to the registry and sends the welcome ack
// carrying its id.
func (h *Hub) Register(conn wire) *Connection {
	c := &Connection{
		ID:            uuid.NewString(),
		conn:          conn,
		subscriptions: make(map[string]struct{}),
	}

	h.mu.Lock()
	h.connections[c] = struct{}{}
	h.mu.Unlock()

	if err := c.send(OutMessage{Type: "welcome", ConnectionID: c.ID}); err != nil {
		log.Printf("Failed to send welcome to %s: %v", c.ID, err)
	}
	return c
}

// Subscribe adds a resource to the connection's subscription set. Sets, not
// lists: subscribing twice is the same as subscribing once, so a client
// replaying its subscriptions after a reconnect never accumulates duplicates.
func (h *Hub) Subscribe(c *Connection, resourceID string) {
	c.subscribe(resourceID)
}

// Unsubscribe removes a resource from the connection's subscription set.
func (h *Hub) Unsubscribe(c *Connection, resourceID string) {
	c.unsubscribe(resourceID)
}

// OnDisconnect drops the connection and all its subscriptions.
func (h *Hub) OnDisconnect(c *Connection) {
	h.mu.Lock()
	delete(h.connections, c)
	h.mu.Unlock()

	c.conn.Close()
}

// ConnectionCount reports the number of live connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// Broadcast delivers one state change: scoped to every connection subscribed
// to the event's resource, unscoped to everyone. Delivery is at-most-once
// per connection with no replay buffer; a client that misses an event
// re-fetches state through the query path after reconnecting.
func (h *Hub) Broadcast(event messages.StateChangeEvent) {
	event.Timestamp = time.Now().Unix()

	h.mu.RLock()
	connections := make([]*Connection, 0, len(h.connections))
	for c := range h.connections {
		connections = append(connections, c)
	}
	h.mu.RUnlock()

	scoped := OutMessage{Type: event.ResourceID + ":status", Event: &event}
	refresh := OutMessage{Type: ListRefreshType, Event: &event}

	for _, c := range connections {
		if c.subscribedTo(event.ResourceID) {
			if err := c.send(scoped); err != nil {
				log.Printf("Dropping connection %s: %v", c.ID, err)
				h.OnDisconnect(c)
				continue
			}
		}
		if err := c.send(refresh); err != nil {
			log.Printf("Dropping connection %s: %v", c.ID, err)
			h.OnDisconnect(c)
		}
	}
}

// Shutdown closes every live connection and empties the registry.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	connections := make([]*Connection, 0, len(h.connections))
	for c := range h.connections {
		connections = append(connections, c)
	}
	h.connections = make(map[*Connection]struct{})
	h.mu.Unlock()

	for _, c := range connections {
		c.conn.Close()
	}
}
