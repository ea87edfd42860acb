// Package broker matches two participants into a session and relays
// negotiation and binary frames between them.
package broker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/BioHazard786/Deskrelay/internal/protocol"
	"github.com/BioHazard786/Deskrelay/internal/remote"
)

// Stats is a point-in-time view of the hub.
type Stats struct {
	Sessions int
	Clients  int
}

// Hub is the central brain of the broker. All session state is owned by the
// single goroutine running Run.
type Hub struct {
	registry *Registry
	clients  map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	inbound    chan inbound
	stats      chan chan Stats

	done chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		registry:   NewRegistry(),
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan inbound),
		stats:      make(chan chan Stats),
		done:       make(chan struct{}),
	}
}

// Attach registers an upgraded connection and starts its pumps.
func (h *Hub) Attach(conn *websocket.Conn) {
	client := newClient(h, conn)
	if !h.Register(client) {
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}

// Register hands a client to the hub. It returns false once the hub stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a client and its session membership.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) dispatch(in inbound) bool {
	select {
	case h.inbound <- in:
		return true
	case <-h.done:
		return false
	}
}

// Stats asks the hub loop for a snapshot.
func (h *Hub) Stats(ctx context.Context) (Stats, error) {
	reply := make(chan Stats, 1)
	select {
	case h.stats <- reply:
	case <-h.done:
		return Stats{}, remote.ErrClosed
	case <-ctx.Done():
		return Stats{}, ctx.Err()
	}
	select {
	case s := <-reply:
		return s, nil
	case <-ctx.Done():
		return Stats{}, ctx.Err()
	}
}

// Run starts the hub's processing loop and returns when ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				h.closeClient(c)
			}
			return

		case client := <-h.register:
			h.clients[client] = struct{}{}
			slog.Info("client registered", "remote", client.RemoteAddr())

		case client := <-h.unregister:
			h.remove(client)

		case in := <-h.inbound:
			h.handle(in.client, in.frame)

		case reply := <-h.stats:
			reply <- Stats{Sessions: h.registry.Len(), Clients: len(h.clients)}
		}
	}
}

func (h *Hub) remove(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	slog.Info("client unregistered", "remote", c.RemoteAddr())

	remaining, sessionID, destroyed := h.registry.Leave(c)
	switch {
	case destroyed:
		slog.Info("session destroyed", "session", sessionID)
	case remaining != nil:
		slog.Info("peer left session", "session", sessionID)
		h.sendEnvelope(remaining, &protocol.Envelope{Type: protocol.TypeUserDisconnected, SessionID: sessionID})
	}

	h.closeClient(c)
}

func (h *Hub) handle(c *Client, frame Frame) {
	if frame.Binary {
		h.route(c, frame)
		return
	}

	env, err := protocol.Decode(frame.Data)
	if err != nil {
		if errors.Is(err, protocol.ErrUnknownType) {
			slog.Debug("ignoring unknown message type", "remote", c.RemoteAddr(), "type", env.Type)
			return
		}
		slog.Warn("dropping unparseable frame", "remote", c.RemoteAddr(), "error", err)
		return
	}

	switch env.Type {
	case protocol.TypeCreateSession:
		session, err := h.registry.Create(c)
		if err != nil {
			h.sendError(c, err)
			return
		}
		slog.Info("session created", "session", session.ID, "remote", c.RemoteAddr())
		h.sendEnvelope(c, &protocol.Envelope{Type: protocol.TypeSessionCreated, SessionID: session.ID})

	case protocol.TypeJoinSession:
		existing, err := h.registry.Join(c, env.SessionID)
		if err != nil {
			slog.Info("session join refused", "session", env.SessionID, "remote", c.RemoteAddr(), "reason", err)
			h.sendError(c, err)
			return
		}
		if s, ok := h.registry.Session(env.SessionID); ok {
			slog.Info("client joined session", "session", s.ID, "remote", c.RemoteAddr(), "waited", time.Since(s.CreatedAt).Round(time.Millisecond))
		}
		h.sendEnvelope(c, &protocol.Envelope{Type: protocol.TypeJoinSuccess, SessionID: env.SessionID})
		if existing != nil {
			h.sendEnvelope(existing, &protocol.Envelope{Type: protocol.TypeSessionJoined, SessionID: env.SessionID})
		}

	case protocol.TypeSignal:
		h.route(c, frame)

	case protocol.TypePing:
		h.sendEnvelope(c, &protocol.Envelope{Type: protocol.TypePong})

	default:
		slog.Debug("ignoring message type", "remote", c.RemoteAddr(), "type", env.Type)
	}
}

// route forwards frame verbatim to the other member of c's session.
func (h *Hub) route(c *Client, frame Frame) {
	peer, sessionID, ok := h.registry.Peer(c)
	if !ok {
		slog.Warn("route failed: client is not in a session", "remote", c.RemoteAddr(), "binary", frame.Binary)
		h.sendError(c, remote.ErrNotInSession)
		return
	}
	if peer == nil {
		slog.Debug("route dropped: no other member", "session", sessionID)
		return
	}
	h.deliver(peer, frame)
}

func (h *Hub) sendError(c *Client, err error) {
	h.sendEnvelope(c, protocol.ErrorEnvelope(err.Error()))
}

func (h *Hub) sendEnvelope(c *Client, env *protocol.Envelope) {
	data, err := env.Encode()
	if err != nil {
		slog.Error("encode envelope", "type", env.Type, "error", err)
		return
	}
	h.deliver(c, Frame{Data: data})
}

// deliver queues frame without blocking. A client whose buffer is full is
// disconnected.
func (h *Hub) deliver(c *Client, frame Frame) {
	if c.closed {
		return
	}
	select {
	case c.send <- frame:
	default:
		slog.Warn("send buffer full, dropping client", "remote", c.RemoteAddr())
		h.closeClient(c)
	}
}

func (h *Hub) closeClient(c *Client) {
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}
