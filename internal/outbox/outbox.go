// Package outbox queues outbound chat messages and releases them through a
// rate limiter, so a burst of replies never trips the platform's send limits
// and never blocks the goroutine delivering inbound messages.
package outbox

import (
	"context"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const defaultQueueSize = 256

// SendFunc performs the actual write to the chat platform.
type SendFunc func(channel, text string) error

type message struct {
	channel string
	text    string
}

type Outbox struct {
	send  SendFunc
	lim   *rate.Limiter
	queue chan message
	log   zerolog.Logger
}

// New creates an outbox. A nil limiter sends without pacing.
func New(send SendFunc, lim *rate.Limiter, size int, log zerolog.Logger) *Outbox {
	if size <= 0 {
		size = defaultQueueSize
	}
	if lim == nil {
		lim = rate.NewLimiter(rate.Inf, 1)
	}
	return &Outbox{
		send:  send,
		lim:   lim,
		queue: make(chan message, size),
		log:   log,
	}
}

// Say enqueues a message. When the queue is full the message is dropped and
// logged.
func (o *Outbox) Say(channel, text string) {
	select {
	case o.queue <- message{channel: channel, text: text}:
	default:
		o.log.Warn().Str("channel", channel).Int("queued", len(o.queue)).Msg("outbox full, dropping message")
	}
}

// Pending returns the number of queued messages.
func (o *Outbox) Pending() int {
	return len(o.queue)
}

// Run drains the queue until ctx is done.
func (o *Outbox) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m := <-o.queue:
			if err := o.lim.Wait(ctx); err != nil {
				return err
			}
			if err := o.send(m.channel, m.text); err != nil {
				o.log.Error().Err(err).Str("channel", m.channel).Msg("failed to send message")
			}
		}
	}
}
