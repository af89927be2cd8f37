package commands

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"chat-commander/internal/storage"
	"chat-commander/pkg/cmd"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chat struct {
	lines []string
}

func (c *chat) Say(_, text string) { c.lines = append(c.lines, text) }

type registrar struct {
	*cmd.Dispatcher
}

func (r registrar) RegisterCommand(name string, h cmd.HandlerFunc, opts cmd.Options) bool {
	return r.Register(name, h, opts)
}

func newRegistrar() registrar {
	return registrar{cmd.New(cmd.Config{})}
}

type fakeHistory struct {
	records []storage.CommandHistoryRecord
	err     error
}

func (f *fakeHistory) FetchCommandHistory(string) ([]storage.CommandHistoryRecord, error) {
	return f.records, f.err
}

var (
	viewer      = cmd.UserTags{Username: "viewer"}
	broadcaster = cmd.UserTags{Username: "owner", Badges: map[string]int{"broadcaster": 1}}
)

func TestRegisterBuiltins(t *testing.T) {
	r := newRegistrar()
	failed := RegisterBuiltins(r, r.GetCommands, "!", &fakeHistory{})
	assert.Empty(t, failed)

	names := []string{}
	for _, info := range r.GetCommands() {
		names = append(names, info.Name)
	}
	assert.Equal(t, []string{"help", "history", "ping"}, names)

	// Registering twice reports every name as taken.
	assert.ElementsMatch(t, []string{"ping", "help", "history"}, RegisterBuiltins(r, r.GetCommands, "!", &fakeHistory{}))
}

func TestRegisterBuiltins_NoHistory(t *testing.T) {
	r := newRegistrar()
	RegisterBuiltins(r, r.GetCommands, "!", nil)
	_, ok := r.Get("history")
	assert.False(t, ok)
}

func TestPing(t *testing.T) {
	r := newRegistrar()
	RegisterBuiltins(r, r.GetCommands, "!", nil)
	c := &chat{}

	assert.True(t, r.ProcessCommand(context.Background(), c, "#c", "!ping", viewer))
	assert.Equal(t, []string{"pong"}, c.lines)
}

func TestHelp(t *testing.T) {
	r := newRegistrar()
	RegisterBuiltins(r, r.GetCommands, "!", &fakeHistory{})
	require.True(t, r.Register("secret", func(context.Context, *cmd.Invocation) error { return nil }, cmd.Options{}))

	c := &chat{}
	r.ProcessCommand(context.Background(), c, "#c", "!help", viewer)
	r.ProcessCommand(context.Background(), c, "#c", "!help", broadcaster)
	r.ProcessCommand(context.Background(), c, "#c", "!help !PING", viewer)
	r.ProcessCommand(context.Background(), c, "#c", "!help nope", viewer)

	require.Len(t, c.lines, 4)
	assert.Equal(t, "Commands: !help, !ping", c.lines[0])
	assert.Equal(t, "Commands: !help, !history, !ping, !secret", c.lines[1])
	assert.Equal(t, "!ping: Check that the bot is alive. | usage: !ping", c.lines[2])
	assert.Equal(t, "No command named !nope", c.lines[3])
}

func TestHistory(t *testing.T) {
	now := time.Now()
	store := &fakeHistory{}
	for i, name := range []string{"a", "b", "c", "d", "e", "f"} {
		store.records = append(store.records, storage.CommandHistoryRecord{
			Command:  name,
			Username: "u",
			Datetime: now.Add(time.Duration(i-10) * time.Minute),
		})
	}

	c := &chat{}
	inv := &cmd.Invocation{Client: c, Channel: "#c"}
	require.NoError(t, History(store)(context.Background(), inv))
	require.Len(t, c.lines, 1)
	assert.Contains(t, c.lines[0], "f by u (5m ago)")
	assert.NotContains(t, c.lines[0], "a by u")
}

func TestHistory_Empty(t *testing.T) {
	c := &chat{}
	inv := &cmd.Invocation{Client: c, Channel: "#c"}
	require.NoError(t, History(&fakeHistory{})(context.Background(), inv))
	assert.Equal(t, []string{"No commands recorded yet."}, c.lines)
}

func TestHistory_StoreError(t *testing.T) {
	boom := errors.New("boom")
	err := History(&fakeHistory{err: boom})(context.Background(), &cmd.Invocation{})
	assert.ErrorIs(t, err, boom)
}

func TestHistory_RequiresModerator(t *testing.T) {
	r := newRegistrar()
	RegisterBuiltins(r, r.GetCommands, "!", &fakeHistory{})
	c := &chat{}

	assert.False(t, r.ProcessCommand(context.Background(), c, "#c", "!history", viewer))
	assert.Equal(t, []string{cmd.MsgPermissionDenied}, c.lines)

	mod := cmd.UserTags{Badges: map[string]int{"moderator": 1}}
	assert.True(t, r.ProcessCommand(context.Background(), c, "#c", "!history", mod))
}

func TestParseReplies(t *testing.T) {
	replies, err := ParseReplies([]byte(`
commands:
  - name: discord
    response: "Join us, {user}!"
    description: Discord invite
  - name: so
    response: "Go follow {args} over in {channel}"
    permissions: [Moderator, broadcaster]
  - name: lurk
    response: "{user} is lurking"
    permissions: []
`))
	require.NoError(t, err)
	require.Len(t, replies, 3)
	assert.Nil(t, replies[0].Permissions)
	assert.Equal(t, []string{"Moderator", "broadcaster"}, replies[1].Permissions)
	assert.NotNil(t, replies[2].Permissions)
	assert.Empty(t, replies[2].Permissions)
}

func TestParseReplies_Invalid(t *testing.T) {
	for name, doc := range map[string]string{
		"no name":     "commands:\n  - response: hi\n",
		"no response": "commands:\n  - name: hi\n",
		"whitespace":  "commands:\n  - name: two words\n    response: hi\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseReplies([]byte(doc))
			assert.ErrorIs(t, err, ErrInvalidReplyCommand)
		})
	}

	_, err := ParseReplies([]byte("commands: ["))
	assert.Error(t, err)
}

func TestLoadReplies(t *testing.T) {
	path := filepath.Join(t.TempDir(), "commands.yaml")
	require.NoError(t, os.WriteFile(path, []byte("commands:\n  - name: hi\n    response: hello\n"), 0o644))

	replies, err := LoadReplies(path)
	require.NoError(t, err)
	assert.Equal(t, []Reply{{Name: "hi", Response: "hello"}}, replies)

	_, err = LoadReplies(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestRegisterReplies(t *testing.T) {
	r := newRegistrar()
	RegisterBuiltins(r, r.GetCommands, "!", nil)

	added := RegisterReplies(r, []Reply{
		{Name: "so", Response: "Go follow {args} over in {channel}", Permissions: []string{"moderator"}},
		{Name: "lurk", Response: "{user} is lurking", Permissions: []string{}},
		{Name: "ping", Response: "not pong"},
		{Name: "owner", Response: "hi boss"},
	}, zerolog.Nop())
	assert.Equal(t, 3, added)

	c := &chat{}
	ctx := context.Background()
	mod := cmd.UserTags{Username: "mod", Badges: map[string]int{"moderator": 1}}
	lurker := cmd.UserTags{Username: "lurker", DisplayName: "Lurker"}

	assert.True(t, r.ProcessCommand(ctx, c, "#chan", "!so someone cool", mod))
	assert.True(t, r.ProcessCommand(ctx, c, "#chan", "!lurk", lurker))
	assert.True(t, r.ProcessCommand(ctx, c, "#chan", "!ping", lurker))
	assert.False(t, r.ProcessCommand(ctx, c, "#chan", "!owner", lurker))

	assert.Equal(t, []string{
		"Go follow someone cool over in chan",
		"Lurker is lurking",
		"pong",
		cmd.MsgPermissionDenied,
	}, c.lines)
}
