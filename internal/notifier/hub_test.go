package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSub struct {
	id  string
	cap int

	mu  sync.Mutex
	got []Message
}

func newFakeSub(id string) *fakeSub { return &fakeSub{id: id, cap: 100} }

func (f *fakeSub) ID() string { return f.id }

func (f *fakeSub) Send(payload []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.got) >= f.cap {
		return false
	}
	var m Message
	if err := json.Unmarshal(payload, &m); err != nil {
		return false
	}
	f.got = append(f.got, m)
	return true
}

func (f *fakeSub) events() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.got))
	for _, m := range f.got {
		out = append(out, m.Event)
	}
	return out
}

func (f *fakeSub) reject(reason string) {
	f.Send([]byte(`{"event":"error","data":{"error":"` + reason + `"}}`))
}

func TestRoomBroadcastReachesOnlyMembers(t *testing.T) {
	h := NewHub(nil)
	member, outsider := newFakeSub("a"), newFakeSub("b")
	h.Register(member)
	h.Register(outsider)
	h.Join(member, RoomForEvent("e1"))

	h.BroadcastRoom(RoomForEvent("e1"), EventUpdated, map[string]string{"id": "e1"})

	assert.Equal(t, []string{EventUpdated}, member.events())
	assert.Empty(t, outsider.events())
}

func TestGlobalBroadcastReachesEveryone(t *testing.T) {
	h := NewHub(nil)
	member, outsider := newFakeSub("a"), newFakeSub("b")
	h.Register(member)
	h.Register(outsider)
	h.Join(member, RoomForEvent("e1"))

	h.BroadcastAll(EventCreated, map[string]string{"id": "e2"})
	h.BroadcastAll(EventRemoved, map[string]string{"id": "e2"})

	assert.Equal(t, []string{EventCreated, EventRemoved}, member.events())
	assert.Equal(t, []string{EventCreated, EventRemoved}, outsider.events())
}

func TestLeaveAndUnregister(t *testing.T) {
	h := NewHub(nil)
	s := newFakeSub("a")
	h.Register(s)
	room := RoomForEvent("e1")
	h.Join(s, room)
	require.Equal(t, 1, h.RoomSize(room))

	h.Leave(s, room)
	assert.Zero(t, h.RoomSize(room))

	h.Join(s, room)
	h.Unregister(s)
	assert.Zero(t, h.RoomSize(room))
	assert.Zero(t, h.ConnectionCount())

	h.BroadcastAll(EventCreated, nil)
	assert.Empty(t, s.events())
}

func TestJoinRequiresRegistration(t *testing.T) {
	h := NewHub(nil)
	s := newFakeSub("ghost")
	h.Join(s, RoomForEvent("e1"))
	assert.Zero(t, h.RoomSize(RoomForEvent("e1")))
}

type countingRecorder struct {
	mu        sync.Mutex
	conns     int
	delivered int
	dropped   int
}

func (r *countingRecorder) SetConnections(n int) {
	r.mu.Lock()
	r.conns = n
	r.mu.Unlock()
}

func (r *countingRecorder) ObserveBroadcast(_, _ string, delivered, dropped int) {
	r.mu.Lock()
	r.delivered += delivered
	r.dropped += dropped
	r.mu.Unlock()
}

func TestFullSubscriberDropsWithoutBlocking(t *testing.T) {
	rec := &countingRecorder{}
	h := NewHub(nil, WithRecorder(rec))
	slow := &fakeSub{id: "slow", cap: 1}
	fast := newFakeSub("fast")
	h.Register(slow)
	h.Register(fast)

	h.BroadcastAll(EventCreated, nil)
	h.BroadcastAll(EventCreated, nil)

	assert.Len(t, slow.events(), 1)
	assert.Len(t, fast.events(), 2)
	assert.Equal(t, 2, rec.conns)
	assert.Equal(t, 3, rec.delivered)
	assert.Equal(t, 1, rec.dropped)
}

func TestHandleInboundPermissions(t *testing.T) {
	h := NewHub(nil)
	anon, user, admin, watcher := newFakeSub("anon"), newFakeSub("user"), newFakeSub("admin"), newFakeSub("watcher")
	for _, s := range []*fakeSub{anon, user, admin, watcher} {
		h.Register(s)
	}
	h.HandleInbound(watcher, Identity{}, Message{Event: JoinEvent, Data: json.RawMessage(`"e1"`)})
	require.Equal(t, 1, h.RoomSize(RoomForEvent("e1")))

	payload := json.RawMessage(`{"eventId":"e1","remaining_seats":3}`)

	h.HandleInbound(anon, Identity{}, Message{Event: RSVPUpdate, Data: payload})
	assert.Equal(t, []string{ErrorFrame}, anon.events())
	assert.Empty(t, watcher.events())

	h.HandleInbound(user, Identity{UserID: "u1"}, Message{Event: RSVPUpdate, Data: payload})
	assert.Equal(t, []string{RSVPUpdated}, watcher.events())

	h.HandleInbound(user, Identity{UserID: "u1"}, Message{Event: NewEvent, Data: payload})
	assert.Equal(t, []string{ErrorFrame}, user.events())

	h.HandleInbound(admin, Identity{UserID: "a1", IsAdmin: true}, Message{Event: EventUpdate, Data: payload})
	h.HandleInbound(admin, Identity{UserID: "a1", IsAdmin: true}, Message{Event: EventDelete, Data: json.RawMessage(`"e1"`)})
	assert.Equal(t, []string{RSVPUpdated, EventUpdated, EventRemoved}, watcher.events())
	// admin is not in the room but still sees the global removal
	assert.Equal(t, []string{EventRemoved}, admin.events())
}

func TestHandleInboundRejectsMissingID(t *testing.T) {
	h := NewHub(nil)
	s := newFakeSub("a")
	h.Register(s)

	h.HandleInbound(s, Identity{}, Message{Event: JoinEvent})
	h.HandleInbound(s, Identity{}, Message{Event: "shutdown"})

	assert.Equal(t, []string{ErrorFrame, ErrorFrame}, s.events())
}

type failingFanout struct{ calls int }

func (f *failingFanout) Publish(context.Context, Envelope) error {
	f.calls++
	return errors.New("redis down")
}

type loopbackFanout struct{ hub *Hub }

func (l *loopbackFanout) Publish(_ context.Context, env Envelope) error {
	l.hub.Deliver(env)
	return nil
}

func TestDispatchUsesFanout(t *testing.T) {
	lb := &loopbackFanout{}
	h := NewHub(nil, WithFanout(lb))
	lb.hub = h
	s := newFakeSub("a")
	h.Register(s)

	h.BroadcastAll(EventCreated, nil)
	assert.Equal(t, []string{EventCreated}, s.events())
}

func TestDispatchFallsBackWhenFanoutFails(t *testing.T) {
	f := &failingFanout{}
	h := NewHub(nil, WithFanout(f))
	s := newFakeSub("a")
	h.Register(s)

	h.BroadcastAll(EventCreated, nil)

	assert.Equal(t, 1, f.calls)
	assert.Equal(t, []string{EventCreated}, s.events())
}

func TestEventIDFrom(t *testing.T) {
	assert.Equal(t, "abc", eventIDFrom(json.RawMessage(`" abc "`)))
	assert.Equal(t, "abc", eventIDFrom(json.RawMessage(`{"eventId":"abc"}`)))
	assert.Equal(t, "abc", eventIDFrom(json.RawMessage(`{"id":"abc"}`)))
	assert.Empty(t, eventIDFrom(json.RawMessage(`42`)))
	assert.Empty(t, eventIDFrom(nil))
}
