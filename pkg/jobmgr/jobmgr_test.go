package jobmgr

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type events struct {
	mu  sync.Mutex
	all []Event
}

func (e *events) report(ev Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.all = append(e.all, ev)
}

func (e *events) states(job string) []State {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []State
	for _, ev := range e.all {
		if ev.Job == job {
			out = append(out, ev.State)
		}
	}
	return out
}

func TestStartAndStop(t *testing.T) {
	ev := &events{}
	m := NewManager(ev.report)

	started := make(chan struct{})
	require.NoError(t, m.StartAsync(context.Background(), "irc", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}))
	<-started

	assert.True(t, m.Running("irc"))
	assert.Equal(t, []string{"irc"}, m.List())
	assert.ErrorIs(t, m.StartAsync(context.Background(), "irc", func(context.Context) error { return nil }), ErrJobRunning)

	require.NoError(t, m.Stop("irc"))
	assert.False(t, m.Running("irc"))
	assert.ErrorIs(t, m.Stop("irc"), ErrJobNotRunning)
	assert.Equal(t, []State{StateRunning, StateDone}, ev.states("irc"))
}

func TestJobRemovedWhenFinished(t *testing.T) {
	ev := &events{}
	m := NewManager(ev.report)
	boom := errors.New("boom")

	require.NoError(t, m.StartAsync(context.Background(), "once", func(context.Context) error { return boom }))

	assert.Eventually(t, func() bool { return !m.Running("once") }, time.Second, time.Millisecond)
	assert.Eventually(t, func() bool { return len(ev.states("once")) == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, []State{StateRunning, StateFailed}, ev.states("once"))
}

func TestParentCancellation(t *testing.T) {
	m := NewManager(nil)
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, m.StartAsync(ctx, "outbox", func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	}))
	cancel()

	assert.Eventually(t, func() bool { return !m.Running("outbox") }, time.Second, time.Millisecond)
}

func TestStopAll(t *testing.T) {
	m := NewManager(nil)
	for _, name := range []string{"b", "a"} {
		require.NoError(t, m.StartAsync(context.Background(), name, func(ctx context.Context) error {
			<-ctx.Done()
			return nil
		}))
	}
	assert.Equal(t, []string{"a", "b"}, m.List())

	m.StopAll()
	assert.Empty(t, m.List())
}
