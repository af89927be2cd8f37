package cmd

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	DefaultPrefix = "!"

	MsgInvalidCommand   = "Invalid Command"
	MsgPermissionDenied = "Permission Denied"
)

// Outcome is the detailed result of a dispatch.
type Outcome int

const (
	// NotCommand means the message did not carry the prefix.
	NotCommand Outcome = iota
	Unknown
	Denied
	Executed
	// Failed means the handler returned an error or panicked.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case NotCommand:
		return "not_command"
	case Unknown:
		return "unknown"
	case Denied:
		return "denied"
	case Executed:
		return "executed"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Config is the construction record of a Dispatcher.
type Config struct {
	// Prefix marks a chat line as a command. Defaults to "!".
	Prefix string
	// RequiredPermissions is the registry-level default for commands
	// registered without their own. Defaults to {broadcaster}.
	RequiredPermissions []Permission
	// StrictFailures makes ProcessCommand report false when the handler
	// fails. Off by default: a found and authorized command reports true
	// even if it fails mid-execution.
	StrictFailures bool
	// Bot is exposed to handlers through Invocation.Bot.
	Bot    Bot
	Logger *zerolog.Logger
}

// Dispatcher parses chat lines, resolves them against its registry and runs
// the matched handler inside a failure boundary.
type Dispatcher struct {
	*Registry

	prefix string
	strict bool
	bot    Bot
	log    zerolog.Logger
	mws    []Middleware
}

// New creates a dispatcher with an empty registry.
func New(cfg Config) *Dispatcher {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	log := zerolog.Nop()
	if cfg.Logger != nil {
		log = cfg.Logger.With().Str("component", "dispatcher").Logger()
	}
	return &Dispatcher{
		Registry: NewRegistry(cfg.RequiredPermissions...),
		prefix:   prefix,
		strict:   cfg.StrictFailures,
		bot:      cfg.Bot,
		log:      log,
	}
}

// Prefix returns the configured command prefix.
func (d *Dispatcher) Prefix() string { return d.prefix }

// Use appends middlewares wrapped around every handler call. Call during
// setup, before messages are dispatched.
func (d *Dispatcher) Use(mws ...Middleware) {
	d.mws = append(d.mws, mws...)
}

// Register adds a command, see Registry.Register.
func (d *Dispatcher) Register(name string, handler HandlerFunc, opts Options) bool {
	ok := d.Registry.Register(name, handler, opts)
	if !ok {
		d.log.Debug().Str("command", name).Bool("nil_handler", handler == nil).Msg("command registration rejected")
	}
	return ok
}

// ProcessCommand handles a single chat line. It returns true when a
// registered command was found, authorized and run.
func (d *Dispatcher) ProcessCommand(ctx context.Context, client Sayer, channel, message string, tags UserTags) bool {
	switch d.Dispatch(ctx, client, channel, message, tags) {
	case Executed:
		return true
	case Failed:
		return !d.strict
	default:
		return false
	}
}

// Dispatch runs the full pipeline and reports how it ended.
func (d *Dispatcher) Dispatch(ctx context.Context, client Sayer, channel, message string, tags UserTags) Outcome {
	if !strings.HasPrefix(message, d.prefix) {
		return NotCommand
	}

	name, args, raw := parse(strings.TrimPrefix(message, d.prefix))

	c, ok := d.Get(name)
	if !ok {
		say(client, channel, MsgInvalidCommand)
		return Unknown
	}

	if !CheckPermissions(tags, c.Options.RequiredPermissions) {
		d.log.Debug().Str("command", c.Name).Str("user", tags.Username).Str("channel", channel).Msg("permission denied")
		say(client, channel, MsgPermissionDenied)
		return Denied
	}

	inv := &Invocation{
		ID:      uuid.NewString(),
		Bot:     d.bot,
		Client:  client,
		Channel: channel,
		Tags:    tags,
		Command: c.Name,
		Args:    args,
		Raw:     raw,
	}

	if err := d.run(ctx, c.Handler, inv); err != nil {
		e := d.log.Error().Err(err).
			Str("invocation", inv.ID).
			Str("command", inv.Command).
			Str("channel", channel).
			Str("user", tags.Username)
		var pe *PanicError
		if errors.As(err, &pe) {
			e = e.Bytes("stack", pe.Stack)
		}
		e.Msg("command execution failed")
		return Failed
	}
	return Executed
}

func (d *Dispatcher) run(ctx context.Context, h HandlerFunc, inv *Invocation) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()

	start := time.Now()
	err = Apply(h, d.mws...)(ctx, inv)
	d.log.Debug().Str("invocation", inv.ID).Str("command", inv.Command).Dur("took", time.Since(start)).Msg("command returned")
	return err
}

// PanicError wraps a value recovered from a panicking handler.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("command panicked: %v", e.Value)
}

// parse splits the text after the prefix into a lowercased command name,
// whitespace-separated arguments and the raw argument text.
func parse(body string) (name string, args []string, raw string) {
	fields := strings.Fields(body)
	if len(fields) == 0 {
		return "", []string{}, ""
	}
	trimmed := strings.TrimSpace(body)
	raw = strings.TrimSpace(strings.TrimPrefix(trimmed, fields[0]))
	return strings.ToLower(fields[0]), fields[1:], raw
}

func say(client Sayer, channel, text string) {
	if client == nil {
		return
	}
	client.Say(channel, text)
}
