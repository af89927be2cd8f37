// Package discord adapts a Discord gateway session to bot.Transport. Guild
// roles are mapped onto the badge model used by the command core.
package discord

import (
	"context"
	"fmt"
	"sync"
	"time"

	"chat-commander/internal/bot"
	"chat-commander/internal/outbox"
	"chat-commander/pkg/jobmgr"
	"chat-commander/pkg/retrylimit"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
)

const jobOutbox = "outbox"

// session is the subset of *discordgo.Session the transport drives.
type session interface {
	AddHandler(handler interface{}) func()
	Open() error
	Close() error
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

type Options struct {
	Token     string
	SayLimit  int
	SayWindow time.Duration
	Retry     retrylimit.RetryConfig
	Logger    zerolog.Logger
}

type Client struct {
	dg    session
	retry retrylimit.RetryConfig
	out   *outbox.Outbox
	jobs  *jobmgr.Manager
	log   zerolog.Logger

	mu      sync.RWMutex
	handler func(bot.Message)

	connMu sync.Mutex
	open   bool
}

var _ bot.Transport = (*Client)(nil)

// New creates a Discord transport for a bot token.
func New(opts Options) (*Client, error) {
	dg, err := discordgo.New("Bot " + opts.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent |
		discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers
	return newClient(dg, opts), nil
}

func newClient(dg session, opts Options) *Client {
	log := opts.Logger.With().Str("component", "discord").Logger()
	if opts.Retry.InitialDelay <= 0 {
		opts.Retry = retrylimit.RetryConfig{
			MaxAttempts:  5,
			InitialDelay: time.Second,
			MaxDelay:     30 * time.Second,
			Multiplier:   2,
			Jitter:       true,
		}
	}

	c := &Client{
		dg:    dg,
		retry: opts.Retry,
		log:   log,
	}
	c.out = outbox.New(func(channelID, text string) error {
		_, err := c.dg.ChannelMessageSend(channelID, text)
		return err
	}, retrylimit.NewWindowLimiter(opts.SayLimit, opts.SayWindow), 0, log)
	c.jobs = jobmgr.NewManager(func(ev jobmgr.Event) {
		log.Debug().Err(ev.Err).Str("job", ev.Job).Str("state", string(ev.State)).Msg("job state changed")
	})

	dg.AddHandler(c.onReady)
	dg.AddHandler(c.onMessageCreate)
	return c
}

// OnMessage sets the inbound message callback.
func (c *Client) OnMessage(f func(bot.Message)) {
	c.mu.Lock()
	c.handler = f
	c.mu.Unlock()
}

// Say queues text for a channel ID.
func (c *Client) Say(channelID, text string) {
	c.out.Say(channelID, text)
}

// Connect opens the gateway session, retrying transient failures until the
// retry budget or ctx runs out.
func (c *Client) Connect(ctx context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.open {
		return nil
	}

	retry := c.retry
	retry.OnRetry = func(attempt int, err error, delay time.Duration) {
		c.log.Warn().Err(err).Int("attempt", attempt).Dur("delay", delay).Msg("failed to open session, retrying")
	}
	if err := retrylimit.WithRetry(ctx, c.dg.Open, retry); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}

	if err := c.jobs.StartAsync(context.WithoutCancel(ctx), jobOutbox, c.out.Run); err != nil {
		_ = c.dg.Close()
		return err
	}
	c.open = true
	return nil
}

// Disconnect stops the outbound queue and closes the gateway session.
func (c *Client) Disconnect() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if !c.open {
		return nil
	}
	c.open = false

	c.jobs.StopAll()
	if err := c.dg.Close(); err != nil {
		return fmt.Errorf("failed to close Discord session: %w", err)
	}
	return nil
}

func (c *Client) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	c.log.Info().Str("user", r.User.Username).Int("guilds", len(r.Guilds)).Msg("session ready")
}

func (c *Client) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil {
		return
	}

	c.mu.RLock()
	h := c.handler
	c.mu.RUnlock()
	if h == nil {
		return
	}

	var selfID string
	if s.State != nil && s.State.User != nil {
		selfID = s.State.User.ID
	}
	h(toMessage(m.Message, selfID, memberBadges(s, m)))
}
