package ws

import (
	"encoding/json"
	"log/slog"
	"time"

	sl "tripchat/internal/lib/logger"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 4096
	sendBufferSize = 256
)

// Client is one websocket connection. Incoming frames are decoded into
// events and forwarded to the hub; outgoing payloads are drained from the
// buffered send channel by the write pump.
type Client struct {
	conn   *websocket.Conn
	send   chan []byte
	hub    *Hub
	log    *slog.Logger
	addr   string
	closed bool
}

func NewClient(conn *websocket.Conn, hub *Hub, log *slog.Logger, addr string) *Client {
	if conn != nil {
		conn.SetReadLimit(maxMessageSize)
	}

	return &Client{
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		hub:  hub,
		log:  log,
		addr: addr,
	}
}

// SendChan exposes the outgoing payload channel, read-only.
func (c *Client) SendChan() <-chan []byte {
	return c.send
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.log.Debug("failed to set read deadline", sl.Err(err))
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure) {
				c.log.Warn("unexpected websocket error", slog.String("addr", c.addr), sl.Err(err))
			}
			return
		}

		c.handleFrame(raw)
	}
}

func (c *Client) handleFrame(raw []byte) {
	var event Event
	if err := json.Unmarshal(raw, &event); err != nil {
		c.log.Debug("invalid event frame", slog.String("addr", c.addr), sl.Err(err))
		return
	}

	switch event.Name {
	case EventJoinGroup:
		if event.GroupID == "" {
			c.log.Debug("joinGroup without groupId", slog.String("addr", c.addr))
			return
		}
		c.hub.Join(c, event.GroupID)
	default:
		c.log.Debug("unknown event", slog.String("event", event.Name), slog.String("addr", c.addr))
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}

			if !ok {
				// Hub closed the channel.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.log.Debug("websocket write failed", slog.String("addr", c.addr), sl.Err(err))
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
