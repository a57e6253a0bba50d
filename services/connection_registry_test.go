package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterDisplacesOldConnection(t *testing.T) {
	r := NewConnectionRegistry(time.Minute)

	first := r.Register("alice")
	second := r.Register("alice")

	// The displaced channel is closed so its stream loop exits.
	_, open := <-first.Events
	assert.False(t, open)
	assert.True(t, r.IsConnected("alice"))

	// Unregistering the stale connection must not drop the live one.
	assert.False(t, r.Unregister(first))
	assert.True(t, r.IsConnected("alice"))

	assert.True(t, r.Unregister(second))
	assert.False(t, r.IsConnected("alice"))
}

func TestSendIsBestEffort(t *testing.T) {
	r := NewConnectionRegistry(time.Minute)

	assert.False(t, r.Send("nobody", Event{Type: EventQueueJoined}))

	conn := r.Register("alice")
	require.True(t, r.Send("alice", Event{Type: EventQueueJoined}))

	event := <-conn.Events
	assert.Equal(t, EventQueueJoined, event.Type)

	// A full channel drops instead of blocking.
	for i := 0; i < cap(conn.Events); i++ {
		require.True(t, r.Send("alice", Event{Type: EventQueueStatus}))
	}
	assert.False(t, r.Send("alice", Event{Type: EventQueueStatus}))
}

func TestSendDuringReconnectChurn(t *testing.T) {
	r := NewConnectionRegistry(time.Minute)
	r.Register("alice")

	// Sends racing rapid reconnect displacements must never hit a closed
	// channel.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 5000; i++ {
			r.Send("alice", Event{Type: EventQueueStatus})
		}
	}()

	for i := 0; i < 1000; i++ {
		r.Register("alice")
	}
	<-done
}

func TestSendToClosedConnectionIsDropped(t *testing.T) {
	r := NewConnectionRegistry(time.Minute)

	conn := r.Register("alice")
	r.Register("alice") // displaces and closes conn

	assert.False(t, conn.trySend(Event{Type: EventQueueStatus}))
}

func TestSweepExpired(t *testing.T) {
	r := NewConnectionRegistry(20 * time.Millisecond)

	r.Register("alice")
	bob := r.Register("bob")

	time.Sleep(40 * time.Millisecond)
	bob.Touch(time.Minute)

	expired := r.SweepExpired()
	require.Len(t, expired, 1)
	assert.Equal(t, "alice", expired[0])
	assert.False(t, r.IsConnected("alice"))
	assert.True(t, r.IsConnected("bob"))
}
