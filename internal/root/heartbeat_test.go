package root

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHeartbeatQueueNoOpWhileDisabled(t *testing.T) {
	q := NewHeartbeatQueue()
	q.TrySchedule([]HeartbeatTask{{NodeID: 1}}, time.Now())
	require.Empty(t, q.TryPoll())
}

func TestHeartbeatQueueScheduleThenPoll(t *testing.T) {
	q := NewHeartbeatQueue()
	q.Enable(true)

	past := time.Now().Add(-time.Second)
	q.TrySchedule([]HeartbeatTask{{NodeID: 1}, {NodeID: 2}}, past)

	due := q.TryPoll()
	require.Len(t, due, 2)

	require.Empty(t, q.TryPoll())
}

func TestHeartbeatQueueKeepsEarlierDeadline(t *testing.T) {
	q := NewHeartbeatQueue()
	q.Enable(true)

	earlier := time.Now().Add(-time.Second)
	later := time.Now().Add(time.Hour)

	q.TrySchedule([]HeartbeatTask{{NodeID: 1}}, later)
	q.TrySchedule([]HeartbeatTask{{NodeID: 1}}, earlier)

	due := q.TryPoll()
	require.Len(t, due, 1)
}

func TestHeartbeatQueueDisableClearsEntries(t *testing.T) {
	q := NewHeartbeatQueue()
	q.Enable(true)
	q.TrySchedule([]HeartbeatTask{{NodeID: 1}}, time.Now().Add(-time.Second))
	q.Enable(false)
	q.Enable(true)

	require.Empty(t, q.TryPoll())
}

func TestWaitOneTickUnblocksAfterPoll(t *testing.T) {
	q := NewHeartbeatQueue()
	q.Enable(true)

	done := make(chan struct{})
	go func() {
		q.WaitOneTick()
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	select {
	case <-done:
		t.Fatal("WaitOneTick returned before any poll")
	default:
	}

	q.TryPoll()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WaitOneTick never unblocked after poll")
	}
}
