package ws

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/mcoot/geoseek/internal/broadcast"
	"github.com/mcoot/geoseek/internal/model"
	"github.com/mcoot/geoseek/internal/services/lifecycle"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4096

	sendBufferSize = 256
)

// Client is one websocket connection. It is the broadcast subscriber for
// whatever session its lifecycle connection is bound to.
type Client struct {
	id     string
	conn   *websocket.Conn
	send   chan []byte
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// Ensure Client implements the subscriber interface
var _ broadcast.Subscriber = (*Client)(nil)

// NewClient wraps an upgraded websocket connection
func NewClient(conn *websocket.Conn, logger *slog.Logger) *Client {
	id := uuid.New().String()
	return &Client{
		id:     id,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		logger: logger.With(slog.String("connection_id", id)),
	}
}

func (c *Client) ID() string {
	return c.id
}

// Deliver queues msg for the write pump. It never blocks; a full buffer drops msg.
func (c *Client) Deliver(msg []byte) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// Close stops the write pump. Safe to call more than once.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// ReadPump reads inbound envelopes and hands them to the lifecycle connection
// until the peer goes away, then disconnects it
func (c *Client) ReadPump(lc *lifecycle.Connection) {
	defer func() {
		lc.Disconnect()
		c.Close()
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read error", slog.String("error", err.Error()))
			}
			return
		}

		var env model.Envelope
		if err := json.Unmarshal(message, &env); err != nil || env.Type == "" {
			c.logger.Debug("malformed message")
			c.reply(model.EventError, model.ErrInvalidMessage)
			continue
		}

		// Rejections are already sent back to the peer as error events
		_ = lc.HandleMessage(env)
	}
}

func (c *Client) reply(event model.EventType, err error) {
	msg, encErr := broadcast.Encode(event, model.ErrorPayload{Error: err.Error()})
	if encErr != nil {
		return
	}
	c.Deliver(msg)
}

// WritePump writes queued messages and keepalive pings to the peer
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Send channel closed
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			_, _ = w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
