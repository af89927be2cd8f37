// Package commands contains the commands every bot ships with and the reply
// commands declared in a YAML file.
package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"chat-commander/internal/storage"
	"chat-commander/pkg/cmd"
)

// Registrar is the registration surface commands are installed on.
type Registrar interface {
	RegisterCommand(name string, handler cmd.HandlerFunc, opts cmd.Options) bool
}

// Lister returns the current command table.
type Lister func() []cmd.Info

// HistoryReader is the part of storage the history command reads.
type HistoryReader interface {
	FetchCommandHistory(channel string) ([]storage.CommandHistoryRecord, error)
}

const historyShown = 5

var everyone = []cmd.Permission{}

// RegisterBuiltins installs ping, help and, when history is non-nil,
// history. It returns the names that could not be registered.
func RegisterBuiltins(r Registrar, list Lister, prefix string, history HistoryReader) []string {
	var failed []string
	add := func(name string, h cmd.HandlerFunc, opts cmd.Options) {
		if !r.RegisterCommand(name, h, opts) {
			failed = append(failed, name)
		}
	}

	add("ping", Ping, cmd.Options{
		Description:         "Check that the bot is alive.",
		RequiredPermissions: everyone,
		Usage:               prefix + "ping",
	})
	add("help", Help(list, prefix), cmd.Options{
		Description:         "List commands or describe one.",
		RequiredPermissions: everyone,
		Usage:               prefix + "help [command]",
	})
	if history != nil {
		add("history", History(history), cmd.Options{
			Description:         "Show the last commands used in this channel.",
			RequiredPermissions: []cmd.Permission{cmd.Moderator, cmd.Broadcaster},
			Usage:               prefix + "history",
		})
	}
	return failed
}

func Ping(_ context.Context, inv *cmd.Invocation) error {
	inv.Reply("pong")
	return nil
}

// Help lists command names, or describes a single command when one is named.
func Help(list Lister, prefix string) cmd.HandlerFunc {
	return func(_ context.Context, inv *cmd.Invocation) error {
		infos := list()

		if len(inv.Args) > 0 {
			name := strings.ToLower(strings.TrimPrefix(inv.Args[0], prefix))
			for _, info := range infos {
				if info.Name != name {
					continue
				}
				msg := fmt.Sprintf("%s%s: %s", prefix, info.Name, info.Description)
				if info.Usage != "" {
					msg += " | usage: " + info.Usage
				}
				inv.Reply(msg)
				return nil
			}
			inv.Reply(fmt.Sprintf("No command named %s%s", prefix, name))
			return nil
		}

		names := make([]string, 0, len(infos))
		for _, info := range infos {
			if cmd.CheckPermissions(inv.Tags, info.Permissions) {
				names = append(names, prefix+info.Name)
			}
		}
		inv.Reply("Commands: " + strings.Join(names, ", "))
		return nil
	}
}

// History replies with the most recent commands recorded for the channel.
func History(store HistoryReader) cmd.HandlerFunc {
	return func(_ context.Context, inv *cmd.Invocation) error {
		records, err := store.FetchCommandHistory(inv.Channel)
		if err != nil {
			return fmt.Errorf("fetch history: %w", err)
		}
		if len(records) == 0 {
			inv.Reply("No commands recorded yet.")
			return nil
		}
		if len(records) > historyShown {
			records = records[len(records)-historyShown:]
		}

		parts := make([]string, 0, len(records))
		for i := len(records) - 1; i >= 0; i-- {
			r := records[i]
			parts = append(parts, fmt.Sprintf("%s by %s (%s ago)", r.Command, r.Username, since(r.Datetime)))
		}
		inv.Reply(strings.Join(parts, " | "))
		return nil
	}
}

func since(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}
