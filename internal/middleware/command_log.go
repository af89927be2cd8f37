// Package middleware holds cmd.Middleware implementations shared by every
// transport.
package middleware

import (
	"context"
	"time"

	"chat-commander/internal/storage"
	"chat-commander/pkg/cmd"

	"github.com/rs/zerolog"
)

// HistoryStore is the part of storage the command logger writes to.
type HistoryStore interface {
	AppendCommandToHistory(channel string, record storage.CommandHistoryRecord) error
}

// WithCommandLogger logs every executed command and, when store is non-nil,
// appends it to the channel's command history.
func WithCommandLogger(store HistoryStore, log zerolog.Logger) cmd.Middleware {
	return func(next cmd.HandlerFunc) cmd.HandlerFunc {
		return func(ctx context.Context, inv *cmd.Invocation) error {
			start := time.Now()
			err := next(ctx, inv)

			log.Info().
				Str("invocation", inv.ID).
				Str("command", inv.Command).
				Str("channel", inv.Channel).
				Str("user", inv.Tags.Username).
				Strs("args", inv.Args).
				Dur("took", time.Since(start)).
				Bool("failed", err != nil).
				Msg("command executed")

			if store != nil {
				record := storage.CommandHistoryRecord{
					Channel:  inv.Channel,
					UserID:   inv.Tags.UserID,
					Username: inv.Tags.Username,
					Command:  inv.Command,
					Args:     inv.Raw,
					Failed:   err != nil,
					Datetime: start.UTC(),
				}
				if e := store.AppendCommandToHistory(inv.Channel, record); e != nil {
					log.Warn().Err(e).Str("command", inv.Command).Msg("failed to record command history")
				}
			}
			return err
		}
	}
}
