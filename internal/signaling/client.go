// Package signaling keeps a participant connected to the broker: it sends
// envelopes, runs the heartbeat and reconnects after transport loss.
package signaling

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/BioHazard786/Deskrelay/internal/dns"
	"github.com/BioHazard786/Deskrelay/internal/protocol"
	"github.com/BioHazard786/Deskrelay/internal/timers"
)

const (
	writeWait      = 10 * time.Second
	dialTimeout    = 10 * time.Second
	maxMessageSize = 64 * 1024
	eventBuffer    = 64

	DefaultHeartbeat = 15 * time.Second
	DefaultBackoff   = 1500 * time.Millisecond
)

const (
	timerHeartbeat timers.Kind = "heartbeat"
	timerReconnect timers.Kind = "reconnect"
)

// EventKind classifies what the client reports to its owner.
type EventKind int

const (
	EventMessage EventKind = iota
	EventConnected
	EventDisconnected
	EventReconnecting
)

func (k EventKind) String() string {
	switch k {
	case EventMessage:
		return "message"
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventReconnecting:
		return "reconnecting"
	}
	return "unknown"
}

// Event is either an inbound envelope or a transport status change.
type Event struct {
	Kind     EventKind
	Envelope *protocol.Envelope
}

// Options tune a Client. Zero values select the defaults.
type Options struct {
	Heartbeat time.Duration
	Backoff   time.Duration

	// Recreate makes the client ask for a fresh session after reconnecting
	// when it holds no session id. Hosts set it.
	Recreate bool

	Resolver *dns.Resolver
}

// Client manages the websocket connection to the broker.
type Client struct {
	url    string
	opts   Options
	dialer *websocket.Dialer
	timers *timers.Set
	events chan Event
	done   chan struct{}

	mu         sync.Mutex
	conn       *websocket.Conn
	sessionID  string
	closed     bool
	reconnects int

	writeMu   sync.Mutex
	closeOnce sync.Once
}

// NewClient creates a client for the broker at url. Nothing is dialled until
// Connect.
func NewClient(url string, opts Options) *Client {
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = DefaultHeartbeat
	}
	if opts.Backoff <= 0 {
		opts.Backoff = DefaultBackoff
	}
	if opts.Resolver == nil {
		opts.Resolver = dns.NewResolver()
	}

	return &Client{
		url:  url,
		opts: opts,
		dialer: &websocket.Dialer{
			NetDialContext:   opts.Resolver.DialContext,
			HandshakeTimeout: dialTimeout,
		},
		timers: timers.NewSet(),
		events: make(chan Event, eventBuffer),
		done:   make(chan struct{}),
	}
}

// Connect opens the transport. A failure is returned and also schedules a
// reconnect, as does any later loss of the connection.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.open(ctx); err != nil {
		slog.Debug("broker connect failed", "url", c.url, "error", err)
		c.scheduleReconnect()
		return err
	}
	return nil
}

// Events delivers inbound envelopes and status changes in order.
func (c *Client) Events() <-chan Event {
	return c.events
}

// Done is closed by Close.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Connected reports whether the transport is open.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// SessionID returns the session this participant holds, if any.
func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// ClearSession forgets the held session id.
func (c *Client) ClearSession() {
	c.mu.Lock()
	c.sessionID = ""
	c.mu.Unlock()
}

// Reconnects counts successful reconnections.
func (c *Client) Reconnects() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reconnects
}

// CreateSession asks the broker for a new session.
func (c *Client) CreateSession() bool {
	return c.Send(protocol.TypeCreateSession, nil)
}

// JoinSession remembers id and asks the broker to join it.
func (c *Client) JoinSession(id string) bool {
	c.mu.Lock()
	c.sessionID = id
	c.mu.Unlock()
	return c.Send(protocol.TypeJoinSession, nil)
}

// Signal relays a negotiation payload to the other participant.
func (c *Client) Signal(sig protocol.Signal) bool {
	return c.Send(protocol.TypeSignal, sig)
}

// Send writes an envelope stamped with the held session id. It returns false
// without queueing anything when the transport is not open.
func (c *Client) Send(t protocol.Type, payload any) bool {
	c.mu.Lock()
	conn := c.conn
	sessionID := c.sessionID
	c.mu.Unlock()

	if conn == nil {
		return false
	}

	env, err := protocol.New(t, sessionID, payload)
	if err != nil {
		slog.Error("encode envelope", "type", t, "error", err)
		return false
	}
	data, err := env.Encode()
	if err != nil {
		slog.Error("encode envelope", "type", t, "error", err)
		return false
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Debug("broker write failed", "type", t, "error", err)
		return false
	}
	return true
}

// Close stops the heartbeat and any pending reconnect, closes the transport
// and forgets the session id. It is safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		conn := c.conn
		c.conn = nil
		c.sessionID = ""
		c.mu.Unlock()

		c.timers.Stop()
		close(c.done)

		if conn != nil {
			c.writeMu.Lock()
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			c.writeMu.Unlock()
			conn.Close()
		}
	})
}

func (c *Client) open(ctx context.Context) error {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return err
	}
	conn.SetReadLimit(maxMessageSize)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return nil
	}
	c.conn = conn
	c.mu.Unlock()

	c.timers.Every(timerHeartbeat, c.opts.Heartbeat, func() {
		c.Send(protocol.TypePing, nil)
	})

	go c.readPump(conn)
	c.emit(Event{Kind: EventConnected})
	return nil
}

// readPump reads frames from conn until it fails.
func (c *Client) readPump(conn *websocket.Conn) {
	defer c.lost(conn)

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		env, err := protocol.Decode(data)
		if err != nil {
			slog.Warn("dropping broker frame", "error", err)
			continue
		}

		c.track(env)
		if !c.emit(Event{Kind: EventMessage, Envelope: env}) {
			return
		}
	}
}

// track follows the session id handed out by the broker.
func (c *Client) track(env *protocol.Envelope) {
	switch env.Type {
	case protocol.TypeSessionCreated, protocol.TypeJoinSuccess:
		if env.SessionID == "" {
			return
		}
		c.mu.Lock()
		c.sessionID = env.SessionID
		c.mu.Unlock()
	}
}

func (c *Client) lost(conn *websocket.Conn) {
	conn.Close()

	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	closed := c.closed
	c.mu.Unlock()

	c.timers.Cancel(timerHeartbeat)
	if closed {
		return
	}

	slog.Info("broker connection lost")
	c.emit(Event{Kind: EventDisconnected})
	c.scheduleReconnect()
}

// scheduleReconnect arms the reconnect timer unless one is already pending.
func (c *Client) scheduleReconnect() {
	if c.timers.Pending(timerReconnect) {
		return
	}
	c.timers.After(timerReconnect, c.opts.Backoff, c.reconnect)
}

func (c *Client) reconnect() {
	c.emit(Event{Kind: EventReconnecting})

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	if err := c.open(ctx); err != nil {
		slog.Debug("broker reconnect failed", "url", c.url, "error", err)
		c.scheduleReconnect()
		return
	}

	c.mu.Lock()
	if c.conn == nil {
		c.mu.Unlock()
		return
	}
	c.reconnects++
	sessionID := c.sessionID
	c.mu.Unlock()

	switch {
	case sessionID != "":
		slog.Info("rejoining session", "session", sessionID)
		c.Send(protocol.TypeJoinSession, nil)
	case c.opts.Recreate:
		slog.Info("requesting a new session")
		c.Send(protocol.TypeCreateSession, nil)
	}
}

// emit hands ev to the owner, giving up once the client is closed.
func (c *Client) emit(ev Event) bool {
	select {
	case c.events <- ev:
		return true
	case <-c.done:
		return false
	}
}
