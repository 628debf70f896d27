package orchestrator

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStageDebounceCoalescesBurst(t *testing.T) {
	s := newStage[int, string]("test", 40*time.Millisecond, nil, nil)
	var calls atomic.Int32

	for i := 0; i < 5; i++ {
		s.trigger(i, func(ctx context.Context, key int) (string, error) {
			calls.Add(1)
			return "ok", nil
		})
		time.Sleep(2 * time.Millisecond)
	}

	require.Eventually(t, func() bool {
		return s.snapshot().Data != nil
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, int32(1), calls.Load(), "a burst of triggers must produce one fetch")
}

func TestStageDedupesEqualKey(t *testing.T) {
	s := newStage[int, string]("test", 0, nil, nil)
	var calls atomic.Int32
	release := make(chan struct{})

	fetch := func(ctx context.Context, key int) (string, error) {
		calls.Add(1)
		<-release
		return "ok", nil
	}

	s.trigger(7, fetch)
	s.trigger(7, fetch) // equal key while in flight: no-op
	close(release)

	require.Eventually(t, func() bool {
		return s.snapshot().Data != nil
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func TestStageSupersededResultIsDropped(t *testing.T) {
	s := newStage[int, string]("test", 0, nil, nil)

	firstStarted := make(chan struct{})
	firstRelease := make(chan struct{})
	s.trigger(1, func(ctx context.Context, key int) (string, error) {
		close(firstStarted)
		<-firstRelease
		return "stale", nil
	})
	<-firstStarted

	s.trigger(2, func(ctx context.Context, key int) (string, error) {
		return "fresh", nil
	})

	require.Eventually(t, func() bool {
		st := s.snapshot()
		return st.Data != nil && *st.Data == "fresh"
	}, time.Second, 5*time.Millisecond)

	// Let the superseded fetch finish late: it must not overwrite.
	close(firstRelease)
	time.Sleep(30 * time.Millisecond)

	st := s.snapshot()
	require.NotNil(t, st.Data)
	assert.Equal(t, "fresh", *st.Data)
}

func TestStageCancelsOlderInflightCall(t *testing.T) {
	s := newStage[int, string]("test", 0, nil, nil)

	cancelled := make(chan struct{})
	started := make(chan struct{})
	s.trigger(1, func(ctx context.Context, key int) (string, error) {
		close(started)
		<-ctx.Done()
		close(cancelled)
		return "", ctx.Err()
	})
	<-started

	s.trigger(2, func(ctx context.Context, key int) (string, error) {
		return "fresh", nil
	})

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("older in-flight call was not cancelled")
	}

	require.Eventually(t, func() bool {
		st := s.snapshot()
		return st.Data != nil && st.Err == ""
	}, time.Second, 5*time.Millisecond)
}

func TestStageCancellationIsSwallowed(t *testing.T) {
	s := newStage[int, string]("test", 0, nil, nil)

	started := make(chan struct{})
	s.trigger(1, func(ctx context.Context, key int) (string, error) {
		close(started)
		<-ctx.Done()
		return "", ctx.Err()
	})
	<-started
	s.reset()

	time.Sleep(30 * time.Millisecond)
	st := s.snapshot()
	assert.Empty(t, st.Err, "cancellation must never surface as an error")
	assert.Nil(t, st.Data)
	assert.False(t, st.Loading)
}

func TestStageErrorClearsDataAndIsLocal(t *testing.T) {
	s := newStage[int, string]("test", 0, nil, nil)

	s.trigger(1, func(ctx context.Context, key int) (string, error) {
		return "ok", nil
	})
	require.Eventually(t, func() bool {
		return s.snapshot().Data != nil
	}, time.Second, 5*time.Millisecond)

	s.trigger(2, func(ctx context.Context, key int) (string, error) {
		return "", errors.New("backend exploded")
	})
	require.Eventually(t, func() bool {
		return s.snapshot().Err != ""
	}, time.Second, 5*time.Millisecond)

	st := s.snapshot()
	assert.Nil(t, st.Data, "failed stage clears its data")
	assert.Equal(t, "backend exploded", st.Err)

	// Retry is implicit: the next trigger issues a fresh fetch.
	s.trigger(3, func(ctx context.Context, key int) (string, error) {
		return "recovered", nil
	})
	require.Eventually(t, func() bool {
		st := s.snapshot()
		return st.Data != nil && *st.Data == "recovered" && st.Err == ""
	}, time.Second, 5*time.Millisecond)
}

func TestStageSnapshotIsIsolatedFromUpdates(t *testing.T) {
	s := newStage[int, string]("test", 0, nil, nil)

	s.trigger(1, func(ctx context.Context, key int) (string, error) {
		return "before", nil
	})
	require.Eventually(t, func() bool {
		return s.snapshot().Data != nil
	}, time.Second, 5*time.Millisecond)

	held := s.snapshot()
	require.True(t, s.update(func(v *string) { *v = "after" }))

	assert.Equal(t, "before", *held.Data, "a held snapshot must not observe later updates")
	assert.Equal(t, "after", *s.snapshot().Data)
}

func TestStageInvalidateClearsDataOnKeyChange(t *testing.T) {
	s := newStage[int, string]("test", 10*time.Millisecond, nil, nil)
	s.invalidate = true

	s.trigger(1, func(ctx context.Context, key int) (string, error) {
		return "one", nil
	})
	require.Eventually(t, func() bool {
		return s.snapshot().Data != nil
	}, time.Second, 5*time.Millisecond)

	block := make(chan struct{})
	defer close(block)
	s.trigger(2, func(ctx context.Context, key int) (string, error) {
		<-block
		return "two", nil
	})

	st := s.snapshot()
	assert.Nil(t, st.Data, "result is invalidated when its key changes before the new result arrives")
}
