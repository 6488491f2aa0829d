package build

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcasterDeliversInOrder(t *testing.T) {
	b := NewBroadcaster()
	ch, cancel := b.Subscribe("sess_a")
	defer cancel()

	b.Publish(Event{Type: EventStatus, SessionID: "sess_a"})
	b.Publish(Event{Type: EventPreviewReady, SessionID: "sess_a"})
	b.Publish(Event{Type: EventBuildComplete, SessionID: "sess_a"})

	var got []Event
	for i := 0; i < 3; i++ {
		select {
		case ev := <-ch:
			got = append(got, ev)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
	assert.Equal(t, EventStatus, got[0].Type)
	assert.Equal(t, EventPreviewReady, got[1].Type)
	assert.Equal(t, EventBuildComplete, got[2].Type)
	assert.Equal(t, uint64(1), got[0].Seq)
	assert.Equal(t, uint64(2), got[1].Seq)
	assert.Equal(t, uint64(3), got[2].Seq)
}

func TestBroadcasterIsolatesSessions(t *testing.T) {
	b := NewBroadcaster()
	chA, cancelA := b.Subscribe("sess_a")
	defer cancelA()
	chB, cancelB := b.Subscribe("sess_b")
	defer cancelB()

	b.Publish(Event{Type: EventStatus, SessionID: "sess_a"})

	select {
	case ev := <-chA:
		assert.Equal(t, "sess_a", ev.SessionID)
	case <-time.After(time.Second):
		t.Fatal("subscriber for sess_a got nothing")
	}
	select {
	case ev := <-chB:
		t.Fatalf("subscriber for sess_b got leaked event %v", ev.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroadcasterCancelClosesChannel(t *testing.T) {
	b := NewBroadcaster()
	ch, cancel := b.Subscribe("sess_a")
	require.Equal(t, 1, b.SubscriberCount("sess_a"))

	cancel()
	assert.Equal(t, 0, b.SubscriberCount("sess_a"))

	_, open := <-ch
	assert.False(t, open)

	// publishing after cancel must not panic
	b.Publish(Event{Type: EventStatus, SessionID: "sess_a"})
	// cancel is idempotent
	cancel()
}

func TestBroadcasterNeverBlocks(t *testing.T) {
	b := NewBroadcaster()
	_, cancel := b.Subscribe("sess_a")
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*2; i++ {
			b.Publish(Event{Type: EventStatus, SessionID: "sess_a"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a saturated subscriber")
	}
}
