package reconcile

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patternlab/graphscout/pkg/annotation"
)

func strptr(s string) *string { return &s }
func intptr(n int) *int       { return &n }

// fakeListener is a scriptable Listener. Close marks it closed but leaves
// the events channel open so tests can keep pushing events through a closed
// channel boundary.
type fakeListener struct {
	events    chan UpdateEvent
	closed    atomic.Bool
	closeOnce sync.Once
	onClose   func()
}

func newFakeListener() *fakeListener {
	return &fakeListener{events: make(chan UpdateEvent, 16)}
}

func (l *fakeListener) Events() <-chan UpdateEvent { return l.events }

func (l *fakeListener) Close() error {
	l.closed.Store(true)
	if l.onClose != nil {
		l.closeOnce.Do(l.onClose)
	}
	return nil
}

func waitDone(t *testing.T, tr *Tracker) {
	t.Helper()
	select {
	case <-tr.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("tracker did not finish in time")
	}
}

func TestTracker_AppliesUpdatesInOrder(t *testing.T) {
	l := newFakeListener()
	var mu sync.Mutex
	var seen []string

	tr := NewTracker(annotation.Record{JobID: "job-1", Status: annotation.StatusPending}, TrackerOptions{
		Dial: func(context.Context, string) (Listener, error) { return l, nil },
		OnChange: func(rec annotation.Record) {
			mu.Lock()
			seen = append(seen, rec.Summary)
			mu.Unlock()
		},
	})
	tr.Start(context.Background())

	l.events <- UpdateEvent{Status: annotation.StatusPending, Update: annotation.Patch{Summary: strptr("one")}}
	l.events <- UpdateEvent{Status: annotation.StatusPending, Update: annotation.Patch{Summary: strptr("two")}}
	l.events <- UpdateEvent{Status: annotation.StatusComplete, Update: annotation.Patch{Summary: strptr("three")}}
	close(l.events)

	waitDone(t, tr)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"one", "two", "three"}, seen)
	assert.Equal(t, annotation.StatusComplete, tr.Snapshot().Status)
	assert.Equal(t, StateTerminal, tr.State())
}

func TestTracker_TerminalStatusClosesChannelAndDropsLaterEvents(t *testing.T) {
	l := newFakeListener()
	tr := NewTracker(annotation.Record{JobID: "job-1", Status: annotation.StatusPending}, TrackerOptions{
		Dial: func(context.Context, string) (Listener, error) { return l, nil },
	})
	tr.Start(context.Background())

	l.events <- UpdateEvent{Status: annotation.StatusFailed, Update: annotation.Patch{Summary: strptr("boom")}}

	require.Eventually(t, func() bool { return tr.State() == StateTerminal },
		2*time.Second, 10*time.Millisecond)
	assert.True(t, l.closed.Load(), "channel must be closed on terminal status")

	// Events delivered after the terminal transition must not be processed.
	l.events <- UpdateEvent{Status: annotation.StatusPending, Update: annotation.Patch{Summary: strptr("late")}}
	close(l.events)
	waitDone(t, tr)

	assert.Equal(t, "boom", tr.Snapshot().Summary)
	assert.Equal(t, annotation.StatusFailed, tr.Snapshot().Status)
}

func TestTracker_EmptyJobIDSkipsChannelSetup(t *testing.T) {
	dialed := atomic.Int32{}
	tr := NewTracker(annotation.Record{}, TrackerOptions{
		Dial: func(context.Context, string) (Listener, error) {
			dialed.Add(1)
			return newFakeListener(), nil
		},
	})
	tr.Start(context.Background())
	tr.Stop()

	assert.Equal(t, StateIdle, tr.State())
	assert.Zero(t, dialed.Load())
}

func TestTracker_AlreadyTerminalNeverDials(t *testing.T) {
	dialed := atomic.Int32{}
	tr := NewTracker(annotation.Record{JobID: "job-1", Status: annotation.StatusComplete}, TrackerOptions{
		Dial: func(context.Context, string) (Listener, error) {
			dialed.Add(1)
			return newFakeListener(), nil
		},
	})
	tr.Start(context.Background())
	tr.Stop()

	assert.Equal(t, StateTerminal, tr.State())
	assert.Zero(t, dialed.Load())
}

func TestTracker_RevalidateSingleFlight(t *testing.T) {
	l := newFakeListener()
	started := make(chan struct{}, 4)
	release := make(chan struct{})
	calls := atomic.Int32{}

	authoritative := annotation.Record{
		JobID:     "job-1",
		Status:    annotation.StatusPending,
		Summary:   "authoritative",
		NodeCount: 99,
	}

	tr := NewTracker(annotation.Record{JobID: "job-1", Status: annotation.StatusPending}, TrackerOptions{
		Dial: func(context.Context, string) (Listener, error) { return l, nil },
		Revalidate: func(context.Context) (*annotation.Record, error) {
			calls.Add(1)
			started <- struct{}{}
			<-release
			rec := authoritative
			return &rec, nil
		},
	})
	tr.Start(context.Background())

	// Two derived-data updates while the first revalidation is in flight:
	// only one refetch may run.
	l.events <- UpdateEvent{Status: annotation.StatusPending, Update: annotation.Patch{NodeCount: intptr(1)}}
	<-started
	l.events <- UpdateEvent{Status: annotation.StatusPending, Update: annotation.Patch{NodeCount: intptr(2)}}

	// Let the second event settle, then release the refetch.
	require.Eventually(t, func() bool { return tr.Snapshot().NodeCount == 2 },
		2*time.Second, 10*time.Millisecond)
	close(release)

	require.Eventually(t, func() bool { return tr.Snapshot().Summary == "authoritative" },
		2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 99, tr.Snapshot().NodeCount)

	close(l.events)
	waitDone(t, tr)
}

func TestTracker_RevalidateErrorIsTransient(t *testing.T) {
	l := newFakeListener()
	tr := NewTracker(annotation.Record{JobID: "job-1", Status: annotation.StatusPending}, TrackerOptions{
		Dial: func(context.Context, string) (Listener, error) { return l, nil },
		Revalidate: func(context.Context) (*annotation.Record, error) {
			return nil, errors.New("fetch failed")
		},
	})
	tr.Start(context.Background())

	l.events <- UpdateEvent{Status: annotation.StatusPending, Update: annotation.Patch{NodeCount: intptr(5)}}

	require.Eventually(t, func() bool { return tr.Snapshot().NodeCount == 5 },
		2*time.Second, 10*time.Millisecond)

	close(l.events)
	waitDone(t, tr)
	assert.Equal(t, annotation.StatusPending, tr.Snapshot().Status)
}

func TestTracker_ReconnectsAfterChannelError(t *testing.T) {
	first := newFakeListener()
	second := newFakeListener()
	dials := atomic.Int32{}

	tr := NewTracker(annotation.Record{JobID: "job-1", Status: annotation.StatusPending}, TrackerOptions{
		BackoffBase: time.Millisecond,
		BackoffCap:  5 * time.Millisecond,
		Dial: func(context.Context, string) (Listener, error) {
			switch dials.Add(1) {
			case 1:
				return first, nil
			default:
				return second, nil
			}
		},
	})
	tr.Start(context.Background())

	// First channel dies without a terminal status: the tracker reconnects.
	first.events <- UpdateEvent{Status: annotation.StatusPending, Update: annotation.Patch{Summary: strptr("partial")}}
	close(first.events)

	second.events <- UpdateEvent{Status: annotation.StatusComplete}
	close(second.events)

	waitDone(t, tr)
	assert.GreaterOrEqual(t, dials.Load(), int32(2))
	assert.Equal(t, "partial", tr.Snapshot().Summary)
	assert.Equal(t, annotation.StatusComplete, tr.Snapshot().Status)
}

func TestTracker_DialFailureBacksOffThenRecovers(t *testing.T) {
	good := newFakeListener()
	dials := atomic.Int32{}

	tr := NewTracker(annotation.Record{JobID: "job-1", Status: annotation.StatusPending}, TrackerOptions{
		BackoffBase: time.Millisecond,
		BackoffCap:  5 * time.Millisecond,
		Dial: func(context.Context, string) (Listener, error) {
			if dials.Add(1) < 3 {
				return nil, errors.New("connection refused")
			}
			return good, nil
		},
	})
	tr.Start(context.Background())

	good.events <- UpdateEvent{Status: annotation.StatusComplete}
	close(good.events)

	waitDone(t, tr)
	assert.GreaterOrEqual(t, dials.Load(), int32(3))
	assert.Equal(t, StateTerminal, tr.State())
}

func TestTracker_StopReleasesChannelBeforeTerminal(t *testing.T) {
	l := newFakeListener()
	l.onClose = func() { close(l.events) }

	tr := NewTracker(annotation.Record{JobID: "job-1", Status: annotation.StatusPending}, TrackerOptions{
		Dial: func(context.Context, string) (Listener, error) { return l, nil },
	})
	tr.Start(context.Background())

	// No events at all: teardown must still release the socket promptly.
	tr.Stop()
	waitDone(t, tr)
	assert.True(t, l.closed.Load())
}

func TestTracker_TerminalRevalidationDuringReconnectReleasesNewChannel(t *testing.T) {
	first := newFakeListener()
	second := newFakeListener()
	release := make(chan struct{})
	var releaseOnce sync.Once
	dials := atomic.Int32{}

	var tr *Tracker
	tr = NewTracker(annotation.Record{JobID: "job-1", Status: annotation.StatusPending}, TrackerOptions{
		BackoffBase: time.Millisecond,
		BackoffCap:  5 * time.Millisecond,
		Dial: func(context.Context, string) (Listener, error) {
			if dials.Add(1) == 1 {
				return first, nil
			}
			// Let the in-flight revalidation land terminal before the new
			// channel is handed back.
			releaseOnce.Do(func() { close(release) })
			deadline := time.Now().Add(2 * time.Second)
			for tr.State() != StateTerminal {
				if time.Now().After(deadline) {
					break
				}
				time.Sleep(time.Millisecond)
			}
			return second, nil
		},
		Revalidate: func(context.Context) (*annotation.Record, error) {
			<-release
			return &annotation.Record{JobID: "job-1", Status: annotation.StatusComplete}, nil
		},
	})
	tr.Start(context.Background())

	// Derived data triggers the revalidation, then the channel dies so the
	// tracker reconnects while the refetch is still in flight.
	first.events <- UpdateEvent{Status: annotation.StatusPending, Update: annotation.Patch{NodeCount: intptr(5)}}
	close(first.events)

	waitDone(t, tr)
	assert.Equal(t, StateTerminal, tr.State())
	assert.Equal(t, annotation.StatusComplete, tr.Snapshot().Status)
	assert.True(t, second.closed.Load(), "reconnected channel must be released on terminal transition")
}
