package collab

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
)

const (
	writeTimeout   = 10 * time.Second
	keepalive      = 30 * time.Second
	maxInboundSize = 64 * 1024
	outboxSize     = 256
)

var errUnsupportedMessage = errors.New("unsupported message type")

// Client is one designer's websocket connection to a design room.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	logger *slog.Logger

	mu     sync.Mutex
	send   chan []byte
	closed bool

	UserID      string
	DisplayName string
	RoomID      string
	ClientID    string
}

func NewClient(hub *Hub, conn *websocket.Conn, userID, displayName, roomID, clientID string) *Client {
	return &Client{
		hub:         hub,
		conn:        conn,
		logger:      hub.logger.With("user", userID, "room", roomID, "client", clientID),
		send:        make(chan []byte, outboxSize),
		UserID:      userID,
		DisplayName: displayName,
		RoomID:      roomID,
		ClientID:    clientID,
	}
}

// decodeInbound parses a frame from the browser and stamps it with the
// connection's identity, ignoring whatever the client claimed.
func (c *Client) decodeInbound(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}
	switch msg.Type {
	case TypePresenceUpdate, TypeOpSubmit:
	default:
		return nil, fmt.Errorf("%w: %q", errUnsupportedMessage, msg.Type)
	}
	msg.UserID = c.UserID
	msg.ClientID = c.ClientID
	msg.RoomID = c.RoomID
	return &msg, nil
}

// ReadPump feeds inbound frames to the hub until the connection drops.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	c.conn.SetReadLimit(maxInboundSize)

	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			default:
				c.logger.Debug("websocket read failed", "error", err)
			}
			return
		}

		msg, err := c.decodeInbound(data)
		if err != nil {
			c.logger.Warn("rejected inbound message", "error", err)
			c.Send(errorMessage("malformed or unsupported message"))
			continue
		}
		c.hub.handleMessage(c, msg)
	}
}

// WritePump drains the outbox to the socket and keeps the connection alive
// with periodic pings.
func (c *Client) WritePump(ctx context.Context) {
	ping := time.NewTicker(keepalive)
	defer func() {
		ping.Stop()
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.write(ctx, frame); err != nil {
				c.logger.Debug("websocket write failed", "error", err)
				return
			}
		case <-ping.C:
			if err := c.ping(ctx); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) write(ctx context.Context, frame []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return c.conn.Write(ctx, websocket.MessageText, frame)
}

func (c *Client) ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return c.conn.Ping(ctx)
}

// Send queues msg for the write pump. Messages are dropped when the outbox
// is full or the client has left.
func (c *Client) Send(msg *Message) {
	if msg == nil {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("marshal outbound message", "error", err, "type", msg.Type)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		c.logger.Warn("outbox full, dropping message", "type", msg.Type)
	}
}

// closeSend ends the write pump. Safe to call more than once.
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}
