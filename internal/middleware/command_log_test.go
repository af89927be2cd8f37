package middleware

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"chat-commander/internal/storage"
	"chat-commander/pkg/cmd"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	records map[string][]storage.CommandHistoryRecord
	err     error
}

func (m *memStore) AppendCommandToHistory(channel string, r storage.CommandHistoryRecord) error {
	if m.err != nil {
		return m.err
	}
	if m.records == nil {
		m.records = map[string][]storage.CommandHistoryRecord{}
	}
	m.records[channel] = append(m.records[channel], r)
	return nil
}

func invocation() *cmd.Invocation {
	return &cmd.Invocation{
		ID:      "inv-1",
		Channel: "#chan",
		Tags:    cmd.UserTags{UserID: "42", Username: "alice"},
		Command: "so",
		Args:    []string{"bob", "now"},
		Raw:     "bob now",
	}
}

func TestWithCommandLogger_RecordsHistory(t *testing.T) {
	store := &memStore{}
	var buf bytes.Buffer
	h := WithCommandLogger(store, zerolog.New(&buf))(func(context.Context, *cmd.Invocation) error { return nil })

	require.NoError(t, h(context.Background(), invocation()))

	recs := store.records["#chan"]
	require.Len(t, recs, 1)
	assert.Equal(t, "so", recs[0].Command)
	assert.Equal(t, "bob now", recs[0].Args)
	assert.Equal(t, "alice", recs[0].Username)
	assert.Equal(t, "42", recs[0].UserID)
	assert.False(t, recs[0].Failed)
	assert.False(t, recs[0].Datetime.IsZero())
	assert.Contains(t, buf.String(), `"invocation":"inv-1"`)
	assert.Contains(t, buf.String(), "command executed")
}

func TestWithCommandLogger_PassesErrorThrough(t *testing.T) {
	store := &memStore{}
	boom := errors.New("boom")
	h := WithCommandLogger(store, zerolog.Nop())(func(context.Context, *cmd.Invocation) error { return boom })

	assert.ErrorIs(t, h(context.Background(), invocation()), boom)
	require.Len(t, store.records["#chan"], 1)
	assert.True(t, store.records["#chan"][0].Failed)
}

func TestWithCommandLogger_StoreFailureIsNotFatal(t *testing.T) {
	store := &memStore{err: errors.New("disk full")}
	var buf bytes.Buffer
	h := WithCommandLogger(store, zerolog.New(&buf))(func(context.Context, *cmd.Invocation) error { return nil })

	assert.NoError(t, h(context.Background(), invocation()))
	assert.Contains(t, buf.String(), "failed to record command history")
}

func TestWithCommandLogger_NilStore(t *testing.T) {
	h := WithCommandLogger(nil, zerolog.Nop())(func(context.Context, *cmd.Invocation) error { return nil })
	assert.NoError(t, h(context.Background(), invocation()))
}
