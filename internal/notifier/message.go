package notifier

import (
	"encoding/json"
	"strings"
)

// Client to server frames.
const (
	JoinEvent   = "join_event"
	LeaveEvent  = "leave_event"
	EventUpdate = "event_update"
	RSVPUpdate  = "rsvp_update"
	NewEvent    = "new_event"
	EventDelete = "event_deleted"
)

// Server to client frames.
const (
	EventCreated = "event_created"
	EventUpdated = "event_updated"
	EventRemoved = "event_removed"
	RSVPUpdated  = "rsvp_updated"
	ErrorFrame   = "error"
)

const roomPrefix = "event_"

// Message is the JSON frame exchanged over the socket.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Envelope is a message addressed to a room, or to everyone when Room is
// empty. It is also the payload carried over the Redis bridge.
type Envelope struct {
	Room    string  `json:"room,omitempty"`
	Message Message `json:"message"`
}

func RoomForEvent(eventID string) string {
	return roomPrefix + eventID
}

func NewMessage(event string, data any) (Message, error) {
	if data == nil {
		return Message{Event: event}, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Message{}, err
	}
	return Message{Event: event, Data: raw}, nil
}

// eventIDFrom accepts either a bare JSON string or an object carrying
// eventId (or id), which is what clients send for room scoped frames.
func eventIDFrom(data json.RawMessage) string {
	if len(data) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return cleanID(s)
	}
	var obj struct {
		EventID string `json:"eventId"`
		ID      string `json:"id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return ""
	}
	if obj.EventID != "" {
		return cleanID(obj.EventID)
	}
	return cleanID(obj.ID)
}

func cleanID(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > 64 {
		return ""
	}
	return s
}
