package reconcile

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoller_AppliesProgressAndSurvivesFailedTicks(t *testing.T) {
	calls := atomic.Int32{}
	fetch := func(ctx context.Context, jobID string) (Progress, error) {
		switch calls.Add(1) {
		case 1:
			return Progress{Percent: 42, Message: "halfway"}, nil
		case 2:
			return Progress{}, errors.New("transient failure")
		default:
			return Progress{Percent: 80, Message: "almost"}, nil
		}
	}

	p := NewPoller("mine-7", fetch, PollerOptions{Interval: 5 * time.Millisecond})
	p.Start(context.Background())
	defer p.Stop()

	// First tick lands.
	require.Eventually(t, func() bool { return p.Current().Percent == 42 },
		2*time.Second, time.Millisecond)
	assert.Equal(t, "halfway", p.Current().Message)

	// Failed second tick leaves progress unchanged and does not stop polling.
	require.Eventually(t, func() bool { return calls.Load() >= 2 },
		2*time.Second, time.Millisecond)
	assert.GreaterOrEqual(t, p.Current().Percent, 42.0)

	require.Eventually(t, func() bool { return p.Current().Percent == 80 },
		2*time.Second, time.Millisecond)
}

func TestPoller_EmptyJobIDSkipsTimerSetup(t *testing.T) {
	calls := atomic.Int32{}
	p := NewPoller("", func(context.Context, string) (Progress, error) {
		calls.Add(1)
		return Progress{}, nil
	}, PollerOptions{Interval: time.Millisecond})

	p.Start(context.Background())
	time.Sleep(20 * time.Millisecond)
	p.Stop()

	assert.Zero(t, calls.Load())
}

func TestPoller_StopCancelsInterval(t *testing.T) {
	calls := atomic.Int32{}
	p := NewPoller("mine-7", func(context.Context, string) (Progress, error) {
		calls.Add(1)
		return Progress{Percent: 1}, nil
	}, PollerOptions{Interval: time.Millisecond})

	p.Start(context.Background())
	require.Eventually(t, func() bool { return calls.Load() > 0 },
		2*time.Second, time.Millisecond)
	p.Stop()

	after := calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, calls.Load(), "no requests may be issued after Stop")
}

func TestPoller_DiscardsStaleResponseAfterRetarget(t *testing.T) {
	inFlight := make(chan string, 1)
	release := make(chan struct{})

	fetch := func(ctx context.Context, jobID string) (Progress, error) {
		if jobID == "old" {
			inFlight <- jobID
			<-release
			return Progress{Percent: 99, Message: "stale"}, nil
		}
		return Progress{Percent: 10, Message: "fresh"}, nil
	}

	p := NewPoller("old", fetch, PollerOptions{Interval: 5 * time.Millisecond})
	p.Start(context.Background())
	defer p.Stop()

	// Switch jobs while a request for the old job is still in flight.
	<-inFlight
	p.Retarget("new")
	close(release)

	// The stale response must never surface as the new job's progress.
	require.Eventually(t, func() bool { return p.Current().Message == "fresh" },
		2*time.Second, time.Millisecond)
	assert.Equal(t, 10.0, p.Current().Percent)

	assert.Never(t, func() bool { return p.Current().Message == "stale" },
		50*time.Millisecond, 5*time.Millisecond)
}

func TestPoller_OnUpdateObservesAcceptedProgressOnly(t *testing.T) {
	var got atomic.Value
	p := NewPoller("mine-7", func(context.Context, string) (Progress, error) {
		return Progress{Percent: 42, Message: "halfway"}, nil
	}, PollerOptions{
		Interval: 5 * time.Millisecond,
		OnUpdate: func(pr Progress) { got.Store(pr) },
	})
	p.Start(context.Background())
	defer p.Stop()

	require.Eventually(t, func() bool {
		v, ok := got.Load().(Progress)
		return ok && v.Percent == 42
	}, 2*time.Second, time.Millisecond)
}
