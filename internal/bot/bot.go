// Package bot ties a chat transport to the command dispatcher: it exposes the
// connect/disconnect/register surface to embedding code and routes every
// inbound message, except the bot's own, into the dispatcher.
package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"chat-commander/pkg/cmd"

	"github.com/rs/zerolog"
)

var ErrNoTransport = errors.New("no chat transport configured")

// Message is an inbound chat event as delivered by a transport.
type Message struct {
	Channel string
	Tags    cmd.UserTags
	Text    string
	// Self is set for messages sent by the bot's own account.
	Self bool
}

// Transport is a chat connection. Connection lifecycle, reconnects and
// authentication are the transport's business.
type Transport interface {
	cmd.Sayer
	Connect(ctx context.Context) error
	Disconnect() error
	OnMessage(func(Message))
}

// Monitored is implemented by transports that can lose their connection for
// good after Connect returned.
type Monitored interface {
	Done() <-chan error
}

// BotInterface is what embedding code and command handlers get to use.
type BotInterface interface {
	cmd.Bot
	Client() Transport
	Commands() []cmd.Info
}

type Options struct {
	CommandPrefix       string
	RequiredPermissions []cmd.Permission
	StrictFailures      bool
	Middlewares         []cmd.Middleware
	Logger              *zerolog.Logger
}

type Bot struct {
	client   Transport
	commands *cmd.Dispatcher
	log      zerolog.Logger

	mu     sync.Mutex
	runCtx context.Context
	cancel context.CancelFunc
}

var _ BotInterface = (*Bot)(nil)

// CreateBot builds a bot around client. The client may be nil when the bot
// is only used to inspect its command table.
func CreateBot(client Transport, opts Options) *Bot {
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}

	b := &Bot{
		client: client,
		log:    log.With().Str("component", "bot").Logger(),
	}
	b.commands = cmd.New(cmd.Config{
		Prefix:              opts.CommandPrefix,
		RequiredPermissions: opts.RequiredPermissions,
		StrictFailures:      opts.StrictFailures,
		Bot:                 b,
		Logger:              opts.Logger,
	})
	b.commands.Use(opts.Middlewares...)

	if client != nil {
		client.OnMessage(func(m Message) { b.handleMessage(m) })
	}
	return b
}

// Client returns the underlying transport.
func (b *Bot) Client() Transport { return b.client }

// Dispatcher returns the command dispatcher.
func (b *Bot) Dispatcher() *cmd.Dispatcher { return b.commands }

// Commands lists the registered commands.
func (b *Bot) Commands() []cmd.Info { return b.commands.GetCommands() }

// Connect opens the transport. Handlers dispatched afterwards run under a
// context that keeps ctx's values but is only cancelled by Disconnect.
func (b *Bot) Connect(ctx context.Context) error {
	if b.client == nil {
		return ErrNoTransport
	}

	b.mu.Lock()
	if b.cancel != nil {
		b.cancel()
	}
	b.runCtx, b.cancel = context.WithCancel(context.WithoutCancel(ctx))
	b.mu.Unlock()

	if err := b.client.Connect(ctx); err != nil {
		b.log.Error().Err(err).Msg("failed to connect")
		return fmt.Errorf("connect: %w", err)
	}
	b.log.Info().Msg("connected")
	return nil
}

// Disconnect closes the transport and cancels in-flight handler contexts.
func (b *Bot) Disconnect() error {
	if b.client == nil {
		return ErrNoTransport
	}

	b.mu.Lock()
	if b.cancel != nil {
		b.cancel()
		b.cancel = nil
	}
	b.mu.Unlock()

	if err := b.client.Disconnect(); err != nil {
		b.log.Error().Err(err).Msg("failed to disconnect")
		return fmt.Errorf("disconnect: %w", err)
	}
	b.log.Info().Msg("disconnected")
	return nil
}

// Done fires with the transport's terminal error when the connection ends
// without Disconnect. It is nil, and never fires, for transports that
// reconnect on their own.
func (b *Bot) Done() <-chan error {
	if m, ok := b.client.(Monitored); ok {
		return m.Done()
	}
	return nil
}

// RegisterCommand adds a command to the bot's registry.
func (b *Bot) RegisterCommand(name string, handler cmd.HandlerFunc, opts cmd.Options) bool {
	return b.commands.Register(name, handler, opts)
}

// HandleMessage feeds a message to the dispatcher as if it came from the
// transport.
func (b *Bot) HandleMessage(m Message) bool {
	return b.handleMessage(m)
}

func (b *Bot) handleMessage(m Message) bool {
	if m.Self {
		return false
	}
	return b.commands.ProcessCommand(b.context(), b.client, m.Channel, m.Text, m.Tags)
}

func (b *Bot) context() context.Context {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.runCtx == nil {
		return context.Background()
	}
	return b.runCtx
}
