package broker

import (
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next message or pong from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 64 * 1024 // 64 KB - enough for SDP blobs and small binary frames

	// Outbound frames buffered per connection before the hub gives up on it.
	sendBuffer = 256
)

// Frame is one websocket message, text or binary, forwarded verbatim.
type Frame struct {
	Binary bool
	Data   []byte
}

func (f Frame) messageType() int {
	if f.Binary {
		return websocket.BinaryMessage
	}
	return websocket.TextMessage
}

type inbound struct {
	client *Client
	frame  Frame
}

// Client is the broker's handle on a single participant connection.
type Client struct {
	hub  *Hub
	conn *websocket.Conn

	// send is a buffered channel for all outbound frames.
	// The hub writes to it; WritePump drains it to the websocket.
	send chan Frame

	// closed is owned by the hub goroutine.
	closed bool
}

func newClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		hub:  hub,
		conn: conn,
		send: make(chan Frame, sendBuffer),
	}
}

// RemoteAddr is used for logging.
func (c *Client) RemoteAddr() string {
	if c.conn == nil {
		return "unknown"
	}
	return c.conn.RemoteAddr().String()
}

// ReadPump pumps frames from the websocket connection to the hub.
//
// The application runs ReadPump in a per-connection goroutine. The application
// ensures that there is at most one reader on a connection by executing all
// reads from this goroutine.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("websocket read failed", "remote", c.RemoteAddr(), "error", err)
			}
			return
		}

		// Any inbound frame counts as liveness.
		c.conn.SetReadDeadline(time.Now().Add(pongWait))

		frame := Frame{Binary: messageType == websocket.BinaryMessage, Data: data}
		if !c.hub.dispatch(inbound{client: c, frame: frame}) {
			return
		}
	}
}

// WritePump pumps frames from the hub to the websocket connection.
//
// A goroutine running WritePump is started for each connection. The
// application ensures that there is at most one writer to a connection by
// executing all writes from this goroutine.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(frame.messageType(), frame.Data); err != nil {
				slog.Debug("websocket write failed", "remote", c.RemoteAddr(), "error", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
