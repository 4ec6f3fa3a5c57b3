package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSupervisorRestartsFailedTasks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var failing, panicking, steady atomic.Int32
	s := New(time.Millisecond, 5*time.Millisecond)
	s.Add("failing", func(ctx context.Context) error {
		if failing.Add(1) < 3 {
			return errors.New("rpc unavailable")
		}
		<-ctx.Done()
		return nil
	})
	s.Add("panicking", func(ctx context.Context) error {
		if panicking.Add(1) == 1 {
			panic("boom")
		}
		<-ctx.Done()
		return nil
	})
	s.Add("early-exit", func(ctx context.Context) error {
		steady.Add(1)
		return nil
	})
	assert.Equal(t, []string{"failing", "panicking", "early-exit"}, s.Tasks())

	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return failing.Load() == 3 && panicking.Load() == 2 && steady.Load() >= 3
	}, 5*time.Second, time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("supervisor did not stop")
	}
}

func TestSupervisorDoesNotRestartAfterShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var runs atomic.Int32
	s := New(time.Hour, time.Hour)
	s.Add("cancelled", func(ctx context.Context) error {
		runs.Add(1)
		cancel()
		return errors.New("context canceled")
	})
	s.Start(ctx)
	assert.Equal(t, int32(1), runs.Load())
}

func TestNewClampsBackoff(t *testing.T) {
	s := New(0, 0)
	assert.Equal(t, time.Second, s.minBackoff)
	assert.Equal(t, time.Second, s.maxBackoff)
}
