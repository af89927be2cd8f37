// Package twitch adapts a Twitch IRC connection to bot.Transport.
package twitch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"chat-commander/internal/bot"
	"chat-commander/internal/outbox"
	"chat-commander/pkg/cmd"
	"chat-commander/pkg/jobmgr"
	"chat-commander/pkg/retrylimit"

	twitch "github.com/gempir/go-twitch-irc/v4"
	"github.com/rs/zerolog"
)

const (
	jobIRC    = "irc"
	jobOutbox = "outbox"
)

var ErrConnectionClosed = errors.New("twitch connection closed")

// ircClient is the subset of *twitch.Client the transport drives.
type ircClient interface {
	OnPrivateMessage(func(twitch.PrivateMessage))
	OnConnect(func())
	Join(channels ...string)
	Connect() error
	Disconnect() error
	Say(channel, text string)
}

type Options struct {
	Username string
	// OAuth is the chat token, with or without the "oauth:" prefix.
	OAuth    string
	Channels []string
	// SayLimit messages per SayWindow are released to the server.
	SayLimit  int
	SayWindow time.Duration
	Retry     retrylimit.RetryConfig
	Logger    zerolog.Logger
}

type Client struct {
	irc      ircClient
	username string
	channels []string
	retry    retrylimit.RetryConfig
	out      *outbox.Outbox
	jobs     *jobmgr.Manager
	log      zerolog.Logger

	mu      sync.RWMutex
	handler func(bot.Message)
	ready   chan struct{}
	exited  chan error
}

var _ bot.Transport = (*Client)(nil)

// New creates a Twitch transport. Nothing is dialed until Connect.
func New(opts Options) *Client {
	token := opts.OAuth
	if token != "" && !strings.HasPrefix(token, "oauth:") {
		token = "oauth:" + token
	}
	return newClient(twitch.NewClient(opts.Username, token), opts)
}

func newClient(irc ircClient, opts Options) *Client {
	log := opts.Logger.With().Str("component", "twitch").Logger()
	if opts.Retry.InitialDelay <= 0 {
		opts.Retry = retrylimit.DefaultRetryConfig()
	}

	c := &Client{
		irc:      irc,
		username: strings.ToLower(opts.Username),
		channels: normalizeChannels(opts.Channels),
		retry:    opts.Retry,
		log:      log,
	}
	c.out = outbox.New(func(channel, text string) error {
		c.irc.Say(channel, text)
		return nil
	}, retrylimit.NewWindowLimiter(opts.SayLimit, opts.SayWindow), 0, log)
	c.jobs = jobmgr.NewManager(func(ev jobmgr.Event) {
		e := log.Debug()
		if ev.State == jobmgr.StateFailed {
			e = log.Error()
		}
		e.Err(ev.Err).Str("job", ev.Job).Str("state", string(ev.State)).Msg("job state changed")
	})

	irc.OnPrivateMessage(c.onPrivateMessage)
	irc.OnConnect(c.onConnect)
	return c
}

// OnMessage sets the inbound message callback.
func (c *Client) OnMessage(f func(bot.Message)) {
	c.mu.Lock()
	c.handler = f
	c.mu.Unlock()
}

// Say queues text for channel. Messages are paced by the outbound limiter.
func (c *Client) Say(channel, text string) {
	c.out.Say(strings.TrimPrefix(channel, "#"), text)
}

// Connect joins the configured channels and blocks until the server
// acknowledges the login, the connection gives up or ctx ends. The
// connection itself keeps running until Disconnect.
func (c *Client) Connect(ctx context.Context) error {
	if c.jobs.Running(jobIRC) {
		return fmt.Errorf("connect: %w", jobmgr.ErrJobRunning)
	}

	ready := make(chan struct{})
	exited := make(chan error, 1)
	c.mu.Lock()
	c.ready, c.exited = ready, exited
	c.mu.Unlock()

	if len(c.channels) > 0 {
		c.irc.Join(c.channels...)
	}

	runCtx := context.WithoutCancel(ctx)
	if err := c.jobs.StartAsync(runCtx, jobOutbox, c.out.Run); err != nil {
		return err
	}
	if err := c.jobs.StartAsync(runCtx, jobIRC, func(ctx context.Context) error {
		err := c.serve(ctx)
		if ctx.Err() == nil {
			exited <- err
		}
		return err
	}); err != nil {
		c.jobs.StopAll()
		return err
	}

	select {
	case <-ready:
		c.log.Info().Strs("channels", c.channels).Msg("joined channels")
		return nil
	case err := <-exited:
		c.jobs.StopAll()
		if err == nil {
			err = ErrConnectionClosed
		}
		return err
	case <-ctx.Done():
		c.jobs.StopAll()
		return ctx.Err()
	}
}

// Done delivers the error that ended the connection when it stops on its own,
// after Connect returned. It never fires for Disconnect.
func (c *Client) Done() <-chan error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.exited
}

// Disconnect closes the IRC connection and stops the outbound queue.
func (c *Client) Disconnect() error {
	if !c.jobs.Running(jobIRC) && !c.jobs.Running(jobOutbox) {
		return nil
	}
	c.jobs.StopAll()
	return nil
}

func (c *Client) serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		if err := c.irc.Disconnect(); err != nil {
			c.log.Debug().Err(err).Msg("disconnect")
		}
	})
	defer stop()

	retry := c.retry
	retry.OnRetry = func(attempt int, err error, delay time.Duration) {
		c.log.Warn().Err(err).Int("attempt", attempt).Dur("delay", delay).Msg("connection lost, retrying")
	}
	return retrylimit.WithRetry(ctx, func() error {
		err := c.irc.Connect()
		switch {
		case errors.Is(err, twitch.ErrClientDisconnected):
			return retrylimit.Fatal(err)
		case errors.Is(err, twitch.ErrLoginAuthenticationFailed):
			return retrylimit.Fatal(err)
		}
		return err
	}, retry)
}

func (c *Client) onConnect() {
	c.mu.RLock()
	ready := c.ready
	c.mu.RUnlock()
	if ready == nil {
		return
	}
	select {
	case <-ready:
	default:
		close(ready)
	}
}

func (c *Client) onPrivateMessage(m twitch.PrivateMessage) {
	c.mu.RLock()
	h := c.handler
	c.mu.RUnlock()
	if h == nil {
		return
	}
	h(toMessage(m, c.username))
}

// toMessage converts an IRC PRIVMSG into a transport-neutral message.
func toMessage(m twitch.PrivateMessage, self string) bot.Message {
	badges := make(map[string]int, len(m.User.Badges))
	for k, v := range m.User.Badges {
		badges[k] = v
	}
	raw := make(map[string]string, len(m.Tags))
	for k, v := range m.Tags {
		raw[k] = v
	}
	return bot.Message{
		Channel: m.Channel,
		Text:    m.Message,
		Self:    self != "" && strings.EqualFold(m.User.Name, self),
		Tags: cmd.UserTags{
			UserID:      m.User.ID,
			Username:    m.User.Name,
			DisplayName: m.User.DisplayName,
			Badges:      badges,
			Raw:         raw,
		},
	}
}

func normalizeChannels(in []string) []string {
	out := make([]string, 0, len(in))
	for _, ch := range in {
		ch = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ch), "#"))
		if ch != "" {
			out = append(out, ch)
		}
	}
	return out
}
