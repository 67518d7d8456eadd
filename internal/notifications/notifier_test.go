package notifications

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestNotifier_NilClientIsNoop(t *testing.T) {
	n := NewNotifier(nil)
	assert.False(t, n.Enabled())
	assert.NoError(t, n.PublishFeedEvent(context.Background(), "payload"))
	assert.NoError(t, n.StartFeedSubscriber(context.Background(), func(string) {
		t.Fatal("unexpected message")
	}))
}

func TestConnectRedis(t *testing.T) {
	assert.Nil(t, ConnectRedis(context.Background(), ""))

	mr, err := miniredis.Run()
	require.NoError(t, err)

	rdb := ConnectRedis(context.Background(), "redis://"+mr.Addr())
	require.NotNil(t, rdb)
	_ = rdb.Close()

	addr := mr.Addr()
	mr.Close()
	assert.Nil(t, ConnectRedis(context.Background(), addr))
}

func TestFeedPublisher_ThroughRedis(t *testing.T) {
	rdb := newTestRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub()
	notifier := NewNotifier(rdb)
	require.NoError(t, hub.StartWiring(ctx, notifier))
	client, err := hub.Register(nil)
	require.NoError(t, err)

	pub := NewFeedPublisher(hub, notifier)
	pub.Publish(ctx, EventPostCreated, PostCreatedPayload{PostID: 7, Username: "alice"})

	var got []byte
	assert.Eventually(t, func() bool {
		select {
		case got = <-client.Send:
			return true
		default:
			return false
		}
	}, testEventuallyTimeout, testPollInterval)

	var event struct {
		Type    string             `json:"type"`
		Payload PostCreatedPayload `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(got, &event))
	assert.Equal(t, EventPostCreated, event.Type)
	assert.Equal(t, uint(7), event.Payload.PostID)

	// Delivered once: Redis only, no extra local copy.
	assert.Never(t, func() bool { return len(client.Send) > 0 }, 100*time.Millisecond, testPollInterval)
	_ = hub.Shutdown(context.Background())
}

func TestFeedPublisher_LocalOnly(t *testing.T) {
	hub := NewHub()
	client, err := hub.Register(nil)
	require.NoError(t, err)

	likes := 3
	NewFeedPublisher(hub, NewNotifier(nil)).Publish(context.Background(), EventPostReactionUpdated,
		ReactionPayload{PostID: 1, Actor: "bob", Action: "like", LikesCount: &likes})

	require.Len(t, client.Send, 1)
	assert.JSONEq(t,
		`{"type":"post_reaction_updated","payload":{"post_id":1,"actor":"bob","action":"like","likes_count":3}}`,
		string(<-client.Send))
}
