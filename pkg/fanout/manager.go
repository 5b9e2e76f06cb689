package fanout

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// listenTimeout bounds how long a LISTEN command may block when a
// subscriber asks to watch a new instance channel, so a stalled
// connection cannot block the subscribing client's read loop forever.
const listenTimeout = 10 * time.Second

// Manager tracks WebSocket subscribers and their instance-channel
// subscriptions, and broadcasts NOTIFY payloads it receives from the
// NotifyListener out to every matching subscriber. One Manager per
// chatflow process.
type Manager struct {
	connections map[string]*Connection
	mu          sync.RWMutex

	// channel → set of connection IDs watching it.
	channels  map[string]map[string]bool
	channelMu sync.RWMutex

	listener   *NotifyListener
	listenerMu sync.RWMutex

	writeTimeout time.Duration
}

// Connection is a single WebSocket subscriber.
//
// subscriptions is read/written without a lock: every access happens on
// the single goroutine that owns this connection (HandleConnection's read
// loop and its deferred cleanup).
type Connection struct {
	ID            string
	Conn          *websocket.Conn
	subscriptions map[string]bool
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewManager creates a Manager. writeTimeout bounds how long a single
// subscriber send may block before it is treated as broken.
func NewManager(writeTimeout time.Duration) *Manager {
	return &Manager{
		connections:  make(map[string]*Connection),
		channels:     make(map[string]map[string]bool),
		writeTimeout: writeTimeout,
	}
}

// SetListener attaches the NotifyListener used for dynamic LISTEN/UNLISTEN.
// Called once during startup after both are constructed.
func (m *Manager) SetListener(l *NotifyListener) {
	m.listenerMu.Lock()
	defer m.listenerMu.Unlock()
	m.listener = l
}

// HandleConnection runs a subscriber's lifecycle after its WebSocket
// upgrade. Blocks until the connection closes.
func (m *Manager) HandleConnection(parentCtx context.Context, conn *websocket.Conn) {
	connID := uuid.New().String()
	ctx, cancel := context.WithCancel(parentCtx)

	c := &Connection{
		ID:            connID,
		Conn:          conn,
		subscriptions: make(map[string]bool),
		ctx:           ctx,
		cancel:        cancel,
	}

	m.register(c)
	defer m.unregister(c)

	m.sendJSON(c, map[string]string{"type": "connection.established", "connection_id": connID})

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Warn("fanout: invalid WebSocket message", "connection_id", connID, "error", err)
			continue
		}
		m.handleClientMessage(c, &msg)
	}
}

// Broadcast sends a NOTIFY payload to every subscriber watching channel.
// Delivery is best-effort: a send failure removes the subscriber (spec
// §4.7 "broken subscribers are detected on write error and removed") but
// never buffers or retries the event.
func (m *Manager) Broadcast(channel string, event []byte) {
	m.channelMu.RLock()
	connIDs, exists := m.channels[channel]
	if !exists {
		m.channelMu.RUnlock()
		return
	}
	ids := make([]string, 0, len(connIDs))
	for id := range connIDs {
		ids = append(ids, id)
	}
	m.channelMu.RUnlock()

	m.mu.RLock()
	conns := make([]*Connection, 0, len(ids))
	for _, id := range ids {
		if conn, ok := m.connections[id]; ok {
			conns = append(conns, conn)
		}
	}
	m.mu.RUnlock()

	for _, conn := range conns {
		if err := m.sendRaw(conn, event); err != nil {
			slog.Warn("fanout: send failed, dropping subscriber", "connection_id", conn.ID, "error", err)
		}
	}
}

// ActiveConnections returns the count of currently connected subscribers.
func (m *Manager) ActiveConnections() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.connections)
}

func (m *Manager) handleClientMessage(c *Connection, msg *ClientMessage) {
	switch msg.Action {
	case "subscribe":
		if msg.InstanceID == "" {
			m.sendJSON(c, map[string]string{"type": "error", "message": "instance_id is required for subscribe"})
			return
		}
		channel := InstanceChannel(msg.InstanceID)
		if err := m.subscribe(c, channel); err != nil {
			m.sendJSON(c, map[string]string{
				"type": "subscription.error", "instance_id": msg.InstanceID,
				"message": "failed to subscribe",
			})
			return
		}
		m.sendJSON(c, map[string]string{"type": "subscription.confirmed", "instance_id": msg.InstanceID})

	case "unsubscribe":
		if msg.InstanceID == "" {
			m.sendJSON(c, map[string]string{"type": "error", "message": "instance_id is required for unsubscribe"})
			return
		}
		m.unsubscribe(c, InstanceChannel(msg.InstanceID))

	case "ping":
		m.sendJSON(c, map[string]string{"type": "pong"})
	}
}

// subscribe registers c for channel and issues LISTEN if it is the first
// subscriber. LISTEN runs synchronously so the caller knows whether it
// succeeded before confirming the subscription to the client.
func (m *Manager) subscribe(c *Connection, channel string) error {
	m.channelMu.Lock()
	needsListen := false
	if _, exists := m.channels[channel]; !exists {
		m.channels[channel] = make(map[string]bool)
		needsListen = true
	}
	m.channels[channel][c.ID] = true
	m.channelMu.Unlock()

	if needsListen {
		m.listenerMu.RLock()
		l := m.listener
		m.listenerMu.RUnlock()
		if l != nil {
			listenCtx, listenCancel := context.WithTimeout(context.Background(), listenTimeout)
			defer listenCancel()
			if err := l.Subscribe(listenCtx, channel); err != nil {
				slog.Error("fanout: LISTEN failed", "channel", channel, "error", err)
				m.cleanupFailedChannel(c, channel)
				return fmt.Errorf("LISTEN on channel %s: %w", channel, err)
			}
		}
	}

	c.subscriptions[channel] = true
	return nil
}

// cleanupFailedChannel removes every subscriber registered on channel
// after a LISTEN failure — they were added to m.channels before LISTEN
// ran and would otherwise be orphaned, believing they are subscribed
// when no PostgreSQL LISTEN backs it.
func (m *Manager) cleanupFailedChannel(triggering *Connection, channel string) {
	m.channelMu.Lock()
	affectedIDs := make([]string, 0, len(m.channels[channel]))
	for connID := range m.channels[channel] {
		if connID != triggering.ID {
			affectedIDs = append(affectedIDs, connID)
		}
	}
	delete(m.channels, channel)
	m.channelMu.Unlock()

	if len(affectedIDs) == 0 {
		return
	}

	m.mu.RLock()
	conns := make([]*Connection, 0, len(affectedIDs))
	for _, id := range affectedIDs {
		if conn, ok := m.connections[id]; ok {
			conns = append(conns, conn)
		}
	}
	m.mu.RUnlock()

	for _, conn := range conns {
		m.sendJSON(conn, map[string]string{
			"type": "subscription.error", "message": "channel listen failed; subscription removed",
		})
	}
}

// unsubscribe removes c from channel and stops LISTEN once the last
// subscriber has left, re-checking m.channels before UNLISTEN to avoid
// dropping a rapid unsubscribe-then-resubscribe cycle.
func (m *Manager) unsubscribe(c *Connection, channel string) {
	m.channelMu.Lock()
	if subs, exists := m.channels[channel]; exists {
		delete(subs, c.ID)
		if len(subs) == 0 {
			delete(m.channels, channel)
			m.listenerMu.RLock()
			l := m.listener
			m.listenerMu.RUnlock()
			if l != nil {
				go func() {
					m.channelMu.RLock()
					_, resubscribed := m.channels[channel]
					m.channelMu.RUnlock()
					if resubscribed {
						return
					}
					if err := l.Unsubscribe(context.Background(), channel); err != nil {
						slog.Error("fanout: UNLISTEN failed", "channel", channel, "error", err)
					}
				}()
			}
		}
	}
	m.channelMu.Unlock()

	delete(c.subscriptions, channel)
}

func (m *Manager) register(c *Connection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connections[c.ID] = c
}

func (m *Manager) unregister(c *Connection) {
	for ch := range c.subscriptions {
		m.unsubscribe(c, ch)
	}

	m.mu.Lock()
	delete(m.connections, c.ID)
	m.mu.Unlock()

	c.cancel()
	_ = c.Conn.Close(websocket.StatusNormalClosure, "")
}

func (m *Manager) sendJSON(c *Connection, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Warn("fanout: marshal failed", "connection_id", c.ID, "error", err)
		return
	}
	if err := m.sendRaw(c, data); err != nil {
		slog.Warn("fanout: send failed", "connection_id", c.ID, "error", err)
	}
}

func (m *Manager) sendRaw(c *Connection, data []byte) error {
	writeCtx, cancel := context.WithTimeout(c.ctx, m.writeTimeout)
	defer cancel()
	return c.Conn.Write(writeCtx, websocket.MessageText, data)
}
