package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"chat-commander/internal/bot"
	"chat-commander/internal/config"
	"chat-commander/internal/discord"
	"chat-commander/internal/logging"
	"chat-commander/internal/storage"
	"chat-commander/internal/twitch"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Connect to chat and serve commands until interrupted",
	RunE: func(c *cobra.Command, _ []string) error {
		cfg, dotenv, err := config.Load()
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		log := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
		if dotenv {
			log.Debug().Msg(".env loaded")
		}
		log.Info().Str("transport", cfg.Transport).Msg("starting bot")

		store, err := storage.New(cfg.StoragePath)
		if err != nil {
			return err
		}
		defer store.Close()

		client, err := newTransport(cfg, log)
		if err != nil {
			return err
		}

		b, err := assemble(cfg, client, store, log)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(c.Context())
		defer cancel()

		errCh := make(chan error, 1)
		go func() {
			errCh <- b.Connect(ctx)
		}()

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sig)

		return supervise(b, sig, errCh, cancel, log)
	},
}

// supervise blocks until a signal arrives, the bot fails to start or the
// connection is lost for good.
func supervise(b *bot.Bot, sig <-chan os.Signal, started <-chan error, cancel context.CancelFunc, log zerolog.Logger) error {
	var done <-chan error
	for {
		select {
		case s := <-sig:
			log.Info().Str("signal", s.String()).Msg("shutting down")
			cancel()
			return shutdown(b, log)
		case err := <-started:
			if err != nil {
				log.Error().Err(err).Msg("bot failed to start")
				return err
			}
			started = nil
			done = b.Done()
			log.Info().Int("commands", len(b.Commands())).Msg("bot is running")
		case err := <-done:
			if err == nil {
				err = errConnectionLost
			}
			log.Error().Err(err).Msg("connection lost")
			cancel()
			if derr := shutdown(b, log); derr != nil {
				log.Warn().Err(derr).Msg("failed to disconnect")
			}
			return err
		}
	}
}

var errConnectionLost = errors.New("chat connection lost")

func newTransport(cfg *config.Config, log zerolog.Logger) (bot.Transport, error) {
	switch cfg.Transport {
	case config.TransportTwitch:
		return twitch.New(twitch.Options{
			Username:  cfg.Username,
			OAuth:     cfg.AccessCode,
			Channels:  cfg.Channels,
			SayLimit:  cfg.SayLimit,
			SayWindow: cfg.SayWindow,
			Logger:    log,
		}), nil
	case config.TransportDiscord:
		return discord.New(discord.Options{
			Token:     cfg.DiscordToken,
			SayLimit:  cfg.SayLimit,
			SayWindow: cfg.SayWindow,
			Logger:    log,
		})
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownTransport, cfg.Transport)
	}
}

func shutdown(b *bot.Bot, log zerolog.Logger) error {
	if err := b.Disconnect(); err != nil {
		return err
	}
	log.Info().Msg("bot exited cleanly")
	return nil
}

func init() {
	rootCmd.AddCommand(runCmd)
}
