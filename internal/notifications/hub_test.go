package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testEventuallyTimeout = time.Second
	testPollInterval      = 10 * time.Millisecond
)

func TestHub_RegisterBroadcastUnregister(t *testing.T) {
	hub := NewHub()

	a, err := hub.Register(nil)
	require.NoError(t, err)
	b, err := hub.Register(nil)
	require.NoError(t, err)
	assert.Equal(t, 2, hub.Count())

	hub.BroadcastAll(`{"type":"post_created"}`)
	assert.Equal(t, `{"type":"post_created"}`, string(<-a.Send))
	assert.Equal(t, `{"type":"post_created"}`, string(<-b.Send))

	hub.UnregisterClient(a)
	hub.UnregisterClient(a)
	assert.Equal(t, 1, hub.Count())
	_, open := <-a.Send
	assert.False(t, open)

	require.NoError(t, hub.Shutdown(context.Background()))
	assert.Equal(t, 0, hub.Count())
	_, err = hub.Register(nil)
	assert.ErrorIs(t, err, ErrHubClosed)
}

func TestHub_ShutdownLeavesQueuedEventsToWritePump(t *testing.T) {
	hub := NewHub()
	c, err := hub.Register(nil)
	require.NoError(t, err)

	hub.BroadcastAll(`{"type":"post_replied"}`)
	require.NoError(t, hub.Shutdown(context.Background()))
	assert.Equal(t, 0, hub.Count())

	// The writer still drains the buffer before it sees the closed channel.
	msg, open := <-c.Send
	require.True(t, open)
	assert.Equal(t, `{"type":"post_replied"}`, string(msg))
	_, open = <-c.Send
	assert.False(t, open)

	// Unregistering after shutdown must not close the channel again.
	assert.NotPanics(t, func() { hub.UnregisterClient(c) })
}

func TestClient_TrySendDropsWhenFull(t *testing.T) {
	hub := NewHub()
	c, err := hub.Register(nil)
	require.NoError(t, err)

	for range sendBuffer + 5 {
		c.TrySend([]byte("x"))
	}
	assert.Len(t, c.Send, sendBuffer)

	hub.UnregisterClient(c)
	assert.NotPanics(t, func() { c.TrySend([]byte("late")) })
}
