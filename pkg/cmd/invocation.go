// Package cmd provides a transport-agnostic command core: a registry of named
// handlers, a dispatcher that turns chat lines into invocations, and the
// badge-based permission check that guards them. Transports (Twitch, Discord)
// feed messages in and supply the Sayer used for replies.
package cmd

import "context"

// Sayer is the transport side-channel used to write into a chat channel.
type Sayer interface {
	Say(channel, text string)
}

// Bot is the bot-level capability surface handed to every invocation so
// handlers can manage the connection or register further commands.
type Bot interface {
	Connect(ctx context.Context) error
	Disconnect() error
	RegisterCommand(name string, handler HandlerFunc, opts Options) bool
}

// Invocation is the execution context of a single dispatch. It is built
// fresh for every matched command and must not be retained by handlers.
type Invocation struct {
	// ID correlates log lines belonging to one dispatch.
	ID      string
	Bot     Bot
	Client  Sayer
	Channel string
	Tags    UserTags
	// Command is the matched, lowercased command name.
	Command string
	Args    []string
	// Raw is the argument text after the command name, untouched.
	Raw string
}

// Reply says text into the invocation's channel.
func (inv *Invocation) Reply(text string) {
	if inv.Client == nil {
		return
	}
	inv.Client.Say(inv.Channel, text)
}

// HandlerFunc executes a command. A returned error or a panic is contained
// by the dispatcher.
type HandlerFunc func(ctx context.Context, inv *Invocation) error
