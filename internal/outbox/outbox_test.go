package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

type sink struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (s *sink) send(channel, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, channel+":"+text)
	return s.err
}

func (s *sink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func TestOutbox_DeliversInOrder(t *testing.T) {
	s := &sink{}
	o := New(s.send, nil, 0, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	o.Say("#a", "one")
	o.Say("#a", "two")
	o.Say("#b", "three")

	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()

	assert.Eventually(t, func() bool { return s.count() == 3 }, time.Second, time.Millisecond)
	assert.Equal(t, []string{"#a:one", "#a:two", "#b:three"}, s.sent)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestOutbox_DropsWhenFull(t *testing.T) {
	s := &sink{}
	o := New(s.send, nil, 2, zerolog.Nop())

	o.Say("#a", "1")
	o.Say("#a", "2")
	o.Say("#a", "3")
	assert.Equal(t, 2, o.Pending())
}

func TestOutbox_RespectsLimiter(t *testing.T) {
	s := &sink{}
	lim := rate.NewLimiter(rate.Every(time.Hour), 1)
	o := New(s.send, lim, 0, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())

	o.Say("#a", "first")
	o.Say("#a", "second")

	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()

	assert.Eventually(t, func() bool { return s.count() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, s.count())

	cancel()
	require.Error(t, <-done)
}

func TestOutbox_SendErrorDoesNotStop(t *testing.T) {
	s := &sink{err: errors.New("write: broken pipe")}
	o := New(s.send, nil, 0, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	o.Say("#a", "1")
	o.Say("#a", "2")
	go func() { _ = o.Run(ctx) }()

	assert.Eventually(t, func() bool { return s.count() == 2 }, time.Second, time.Millisecond)
}
