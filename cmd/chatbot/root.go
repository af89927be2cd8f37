package main

import (
	"fmt"

	"chat-commander/internal/bot"
	"chat-commander/internal/commands"
	"chat-commander/internal/config"
	"chat-commander/internal/middleware"
	"chat-commander/pkg/cmd"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "chatbot",
	Short:        "chatbot is a command-driven Twitch and Discord chat bot",
	Long:         "chatbot connects to a chat platform and answers prefixed commands, e.g. !help",
	SilenceUsage: true,
}

// assemble builds a bot with every configured command registered. store and
// client may be nil.
func assemble(cfg *config.Config, client bot.Transport, store middleware.HistoryStore, log zerolog.Logger) (*bot.Bot, error) {
	var history commands.HistoryReader
	var recorder middleware.HistoryStore
	if store != nil {
		recorder = store
		if r, ok := store.(commands.HistoryReader); ok {
			history = r
		}
	}

	b := bot.CreateBot(client, bot.Options{
		CommandPrefix:       cfg.CommandPrefix,
		RequiredPermissions: cmd.ParsePermissions(cfg.DefaultPermissions),
		StrictFailures:      cfg.StrictFailures,
		Middlewares:         []cmd.Middleware{middleware.WithCommandLogger(recorder, log)},
		Logger:              &log,
	})

	if failed := commands.RegisterBuiltins(b, b.Commands, cfg.CommandPrefix, history); len(failed) > 0 {
		return nil, fmt.Errorf("register builtins: %v", failed)
	}

	if cfg.CommandsFile != "" {
		replies, err := commands.LoadReplies(cfg.CommandsFile)
		if err != nil {
			return nil, err
		}
		n := commands.RegisterReplies(b, replies, log)
		log.Info().Int("count", n).Str("file", cfg.CommandsFile).Msg("reply commands loaded")
	}
	return b, nil
}
