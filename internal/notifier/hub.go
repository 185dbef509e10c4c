package notifier

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
)

// Subscriber is one connected receiver. Send must not block; it reports
// false when the message was dropped.
type Subscriber interface {
	ID() string
	Send(payload []byte) bool
}

// Recorder receives hub activity for metrics.
type Recorder interface {
	SetConnections(n int)
	ObserveBroadcast(event, scope string, delivered, dropped int)
}

// Fanout carries envelopes to every instance, this one included.
type Fanout interface {
	Publish(ctx context.Context, env Envelope) error
}

// Hub tracks connected subscribers and their rooms. Delivery is best
// effort: a subscriber with a full buffer misses the message and nothing is
// replayed.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]Subscriber
	rooms   map[string]map[string]Subscriber

	fanout   Fanout
	recorder Recorder
	logger   *slog.Logger
}

type Option func(*Hub)

func WithFanout(f Fanout) Option {
	return func(h *Hub) { h.fanout = f }
}

func WithRecorder(r Recorder) Option {
	return func(h *Hub) { h.recorder = r }
}

func NewHub(logger *slog.Logger, opts ...Option) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Hub{
		clients: make(map[string]Subscriber),
		rooms:   make(map[string]map[string]Subscriber),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Hub) Register(s Subscriber) {
	h.mu.Lock()
	h.clients[s.ID()] = s
	n := len(h.clients)
	h.mu.Unlock()

	if h.recorder != nil {
		h.recorder.SetConnections(n)
	}
}

// Unregister removes s from the hub and every room it joined.
func (h *Hub) Unregister(s Subscriber) {
	h.mu.Lock()
	delete(h.clients, s.ID())
	for room, members := range h.rooms {
		delete(members, s.ID())
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	n := len(h.clients)
	h.mu.Unlock()

	if h.recorder != nil {
		h.recorder.SetConnections(n)
	}
}

func (h *Hub) Join(s Subscriber, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[s.ID()]; !ok {
		return
	}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[string]Subscriber)
		h.rooms[room] = members
	}
	members[s.ID()] = s
}

func (h *Hub) Leave(s Subscriber, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if members, ok := h.rooms[room]; ok {
		delete(members, s.ID())
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// BroadcastAll sends event to every connected subscriber.
func (h *Hub) BroadcastAll(event string, data any) {
	h.broadcast("", event, data)
}

// BroadcastRoom sends event to the subscribers of room only.
func (h *Hub) BroadcastRoom(room, event string, data any) {
	h.broadcast(room, event, data)
}

func (h *Hub) broadcast(room, event string, data any) {
	msg, err := NewMessage(event, data)
	if err != nil {
		h.logger.Error("failed to encode broadcast", "event", event, "error", err)
		return
	}
	h.Dispatch(Envelope{Room: room, Message: msg})
}

// Dispatch routes env through the fanout when one is configured, falling
// back to local delivery if publishing fails.
func (h *Hub) Dispatch(env Envelope) {
	if h.fanout != nil {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		err := h.fanout.Publish(ctx, env)
		cancel()
		if err == nil {
			return
		}
		h.logger.Warn("fanout publish failed, delivering locally", "event", env.Message.Event, "error", err)
	}
	h.Deliver(env)
}

// Deliver writes env to local subscribers without touching the fanout.
func (h *Hub) Deliver(env Envelope) {
	payload, err := json.Marshal(env.Message)
	if err != nil {
		h.logger.Error("failed to encode message", "event", env.Message.Event, "error", err)
		return
	}

	h.mu.RLock()
	targets := h.clients
	scope := "all"
	if env.Room != "" {
		targets = h.rooms[env.Room]
		scope = "room"
	}
	var delivered, dropped int
	for _, s := range targets {
		if s.Send(payload) {
			delivered++
		} else {
			dropped++
		}
	}
	h.mu.RUnlock()

	if dropped > 0 {
		h.logger.Debug("dropped messages for slow subscribers", "event", env.Message.Event, "room", env.Room, "dropped", dropped)
	}
	if h.recorder != nil {
		h.recorder.ObserveBroadcast(env.Message.Event, scope, delivered, dropped)
	}
}
