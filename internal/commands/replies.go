package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"chat-commander/pkg/cmd"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

var ErrInvalidReplyCommand = errors.New("invalid reply command")

// Reply is a command that answers with a fixed, templated response.
type Reply struct {
	Name        string   `yaml:"name"`
	Response    string   `yaml:"response"`
	Description string   `yaml:"description"`
	Usage       string   `yaml:"usage"`
	Permissions []string `yaml:"permissions"`
}

type replyFile struct {
	Commands []Reply `yaml:"commands"`
}

// LoadReplies reads reply commands from a YAML file of the form
//
//	commands:
//	  - name: discord
//	    response: "Join us at https://example.org, {user}!"
//	    permissions: []
func LoadReplies(path string) ([]Reply, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read reply commands: %w", err)
	}
	return ParseReplies(data)
}

// ParseReplies decodes and validates reply commands.
func ParseReplies(data []byte) ([]Reply, error) {
	var f replyFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode reply commands: %w", err)
	}
	for i, r := range f.Commands {
		if strings.TrimSpace(r.Name) == "" {
			return nil, fmt.Errorf("%w: entry %d has no name", ErrInvalidReplyCommand, i)
		}
		if strings.ContainsAny(strings.TrimSpace(r.Name), " \t") {
			return nil, fmt.Errorf("%w: %q contains whitespace", ErrInvalidReplyCommand, r.Name)
		}
		if r.Response == "" {
			return nil, fmt.Errorf("%w: %q has no response", ErrInvalidReplyCommand, r.Name)
		}
	}
	return f.Commands, nil
}

// RegisterReplies installs reply commands and returns how many were added.
// Names already taken are skipped with a warning.
func RegisterReplies(r Registrar, replies []Reply, log zerolog.Logger) int {
	added := 0
	for _, rep := range replies {
		opts := cmd.Options{
			Description: rep.Description,
			Usage:       rep.Usage,
		}
		// A missing permissions key keeps the registry default, an empty
		// list opens the command to everyone.
		if rep.Permissions != nil {
			opts.RequiredPermissions = cmd.ParsePermissions(rep.Permissions)
		}
		if !r.RegisterCommand(strings.TrimSpace(rep.Name), ReplyHandler(rep.Response), opts) {
			log.Warn().Str("command", rep.Name).Msg("reply command skipped, name already registered")
			continue
		}
		added++
	}
	return added
}

// ReplyHandler answers with response after expanding {user}, {args} and
// {channel}.
func ReplyHandler(response string) cmd.HandlerFunc {
	return func(_ context.Context, inv *cmd.Invocation) error {
		inv.Reply(expand(response, inv))
		return nil
	}
}

func expand(response string, inv *cmd.Invocation) string {
	return strings.NewReplacer(
		"{user}", inv.Tags.Name(),
		"{args}", inv.Raw,
		"{channel}", strings.TrimPrefix(inv.Channel, "#"),
	).Replace(response)
}
