// Package config loads bot settings from the environment, reading a local
// .env file first when one is present.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	TransportTwitch  = "twitch"
	TransportDiscord = "discord"
)

var (
	ErrMissingToken     = errors.New("missing transport token")
	ErrUnknownTransport = errors.New("unknown transport")
	ErrInvalidSayLimit  = errors.New("invalid say limit")
)

type Config struct {
	Transport string `env:"TRANSPORT" envDefault:"twitch"`

	// Twitch identity; ACCESS_CODE is the oauth token.
	Username   string   `env:"USERNAME"`
	AccessCode string   `env:"ACCESS_CODE"`
	Channels   []string `env:"CHANNELS" envSeparator:","`

	DiscordToken string `env:"DISCORD_TOKEN"`

	CommandPrefix      string   `env:"COMMAND_PREFIX" envDefault:"!"`
	DefaultPermissions []string `env:"DEFAULT_PERMISSIONS" envSeparator:"," envDefault:"broadcaster"`
	StrictFailures     bool     `env:"STRICT_FAILURES"`

	Debug    bool   `env:"DEBUG"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile  string `env:"LOG_FILE"`

	StoragePath  string `env:"STORAGE_PATH" envDefault:"datastore.json"`
	CommandsFile string `env:"COMMANDS_FILE"`

	// Outbound messages allowed per SayWindow.
	SayLimit  int           `env:"SAY_LIMIT" envDefault:"20"`
	SayWindow time.Duration `env:"SAY_WINDOW" envDefault:"30s"`
}

// Load reads an optional .env file and parses the environment. It reports
// whether a .env file was found so the caller can log it.
func Load() (*Config, bool, error) {
	loaded := godotenv.Load() == nil
	cfg, err := Parse(env.Options{})
	return cfg, loaded, err
}

// Parse builds a Config using the given env options; tests pass an explicit
// Environment map.
func Parse(opts env.Options) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	cfg.normalize()
	return &cfg, nil
}

func (c *Config) normalize() {
	c.Transport = strings.ToLower(strings.TrimSpace(c.Transport))
	if c.CommandPrefix == "" {
		c.CommandPrefix = "!"
	}
	if c.Debug && c.LogLevel == "info" {
		c.LogLevel = "debug"
	}
	channels := c.Channels[:0]
	for _, ch := range c.Channels {
		ch = strings.ToLower(strings.TrimSpace(ch))
		if ch != "" {
			channels = append(channels, ch)
		}
	}
	c.Channels = channels
}

// Validate checks that the selected transport has the credentials it needs.
func (c *Config) Validate() error {
	switch c.Transport {
	case TransportTwitch:
		if c.Username == "" || c.AccessCode == "" {
			return fmt.Errorf("%w: USERNAME and ACCESS_CODE are required for twitch", ErrMissingToken)
		}
	case TransportDiscord:
		if c.DiscordToken == "" {
			return fmt.Errorf("%w: DISCORD_TOKEN is required for discord", ErrMissingToken)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownTransport, c.Transport)
	}
	if c.SayLimit < 1 || c.SayWindow <= 0 {
		return fmt.Errorf("%w: %d per %s", ErrInvalidSayLimit, c.SayLimit, c.SayWindow)
	}
	return nil
}
