package notifier

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func startRedis(t *testing.T) *redis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = testcontainers.TerminateContainer(container)
	})

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	opts, err := redis.ParseURL(uri)
	require.NoError(t, err)

	rdb := redis.NewClient(opts)
	t.Cleanup(func() { _ = rdb.Close() })
	require.NoError(t, rdb.Ping(ctx).Err())
	return rdb
}

// instance wires a hub to the shared channel the way the container does.
func instance(t *testing.T, ctx context.Context, rdb *redis.Client, channel string) (*Hub, <-chan error) {
	t.Helper()
	bridge := NewRedisBridge(rdb, channel, nil)
	hub := NewHub(nil, WithFanout(bridge))
	bridge.Attach(hub)

	done := make(chan error, 1)
	go func() { done <- bridge.Run(ctx) }()
	return hub, done
}

func TestRedisBridgeFansOutAcrossHubs(t *testing.T) {
	rdb := startRedis(t)
	const channel = "campus_events:test"

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hubA, doneA := instance(t, ctx, rdb, channel)
	hubB, doneB := instance(t, ctx, rdb, channel)

	require.Eventually(t, func() bool {
		n, err := rdb.PubSubNumSub(context.Background(), channel).Result()
		return err == nil && n[channel] == 2
	}, 10*time.Second, 50*time.Millisecond)

	onA := newFakeSub("a")
	hubA.Register(onA)
	member := newFakeSub("member")
	outsider := newFakeSub("outsider")
	hubB.Register(member)
	hubB.Register(outsider)
	room := RoomForEvent("e1")
	hubB.Join(member, room)

	// garbage on the channel is skipped without stopping the subscribers
	require.NoError(t, rdb.Publish(context.Background(), channel, "{not json").Err())

	hubA.BroadcastRoom(room, RSVPUpdated, map[string]int{"remaining_seats": 2})
	hubA.BroadcastAll(EventCreated, map[string]string{"id": "e2"})

	require.Eventually(t, func() bool { return len(member.events()) == 2 }, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, []string{RSVPUpdated, EventCreated}, member.events())
	require.Eventually(t, func() bool { return len(outsider.events()) == 1 }, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, []string{EventCreated}, outsider.events())
	require.Eventually(t, func() bool { return len(onA.events()) == 1 }, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, []string{EventCreated}, onA.events())

	cancel()
	for _, done := range []<-chan error{doneA, doneB} {
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("bridge did not stop after cancel")
		}
	}
}

func TestRedisBridgePublishEncodesEnvelope(t *testing.T) {
	rdb := startRedis(t)
	ctx := context.Background()
	sub := rdb.Subscribe(ctx, "campus_events:raw")
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	msg, err := NewMessage(EventRemoved, map[string]string{"eventId": "e9"})
	require.NoError(t, err)
	bridge := NewRedisBridge(rdb, "campus_events:raw", nil)
	require.NoError(t, bridge.Publish(ctx, Envelope{Message: msg}))

	select {
	case m := <-sub.Channel():
		assert.JSONEq(t, `{"message":{"event":"event_removed","data":{"eventId":"e9"}}}`, m.Payload)
	case <-time.After(5 * time.Second):
		t.Fatal("no message published")
	}
}
