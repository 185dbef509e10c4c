package notifier

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8 << 10
	sendBuffer     = 32
)

// Identity is who opened the connection. Anonymous connections may only
// join and leave rooms.
type Identity struct {
	UserID  string
	IsAdmin bool
}

func (i Identity) Authenticated() bool {
	return i.UserID != ""
}

// Client is a websocket Subscriber.
type Client struct {
	id       string
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	done     chan struct{}
	identity Identity
	logger   *slog.Logger
}

func NewClient(hub *Hub, conn *websocket.Conn, identity Identity) *Client {
	id := uuid.NewString()
	return &Client{
		id:       id,
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		done:     make(chan struct{}),
		identity: identity,
		logger:   hub.logger.With("conn_id", id),
	}
}

func (c *Client) ID() string { return c.id }

func (c *Client) Send(payload []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// Serve registers the client and blocks until the connection closes.
func (c *Client) Serve() {
	c.hub.Register(c)
	c.logger.Debug("websocket connected", "user_id", c.identity.UserID)
	go c.writePump()
	c.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		close(c.done)
		c.conn.Close()
		c.logger.Debug("websocket disconnected")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("websocket read failed", "error", err)
			}
			return
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.reject("malformed message")
			continue
		}
		c.hub.HandleInbound(c, c.identity, msg)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}

func (c *Client) reject(reason string) {
	if msg, err := NewMessage(ErrorFrame, map[string]string{"error": reason}); err == nil {
		if b, err := json.Marshal(msg); err == nil {
			c.Send(b)
		}
	}
}

type rejecter interface {
	reject(reason string)
}

// HandleInbound applies one client frame. Room membership is open to
// everyone; relays need an authenticated connection and event relays need
// an administrator.
func (h *Hub) HandleInbound(s Subscriber, who Identity, msg Message) {
	deny := func(reason string) {
		if r, ok := s.(rejecter); ok {
			r.reject(reason)
		}
	}

	switch msg.Event {
	case JoinEvent, LeaveEvent:
		id := eventIDFrom(msg.Data)
		if id == "" {
			deny("event id is required")
			return
		}
		if msg.Event == JoinEvent {
			h.Join(s, RoomForEvent(id))
		} else {
			h.Leave(s, RoomForEvent(id))
		}

	case RSVPUpdate:
		if !who.Authenticated() {
			deny("authentication required")
			return
		}
		id := eventIDFrom(msg.Data)
		if id == "" {
			deny("event id is required")
			return
		}
		h.Dispatch(Envelope{Room: RoomForEvent(id), Message: Message{Event: RSVPUpdated, Data: msg.Data}})

	case EventUpdate, NewEvent, EventDelete:
		if !who.IsAdmin {
			deny("admin access required")
			return
		}
		switch msg.Event {
		case EventUpdate:
			id := eventIDFrom(msg.Data)
			if id == "" {
				deny("event id is required")
				return
			}
			h.Dispatch(Envelope{Room: RoomForEvent(id), Message: Message{Event: EventUpdated, Data: msg.Data}})
		case NewEvent:
			h.Dispatch(Envelope{Message: Message{Event: EventCreated, Data: msg.Data}})
		case EventDelete:
			h.Dispatch(Envelope{Message: Message{Event: EventRemoved, Data: msg.Data}})
		}

	default:
		deny("unknown event " + msg.Event)
	}
}
