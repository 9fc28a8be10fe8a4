package config

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/JJ-Intelligence/SR-Battleships/pkg/comms"
	"github.com/JJ-Intelligence/SR-Battleships/pkg/fleet"
	"github.com/JJ-Intelligence/SR-Battleships/pkg/game"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

// Modes.
const (
	ModePeer  = "peer"
	ModeRelay = "relay"
)

// Transports.
const (
	TransportTCP       = "tcp"
	TransportWebsocket = "websocket"
)

// RawYamlConfig is the shape of the config file. Unset keys keep their
// defaults.
type RawYamlConfig struct {
	Mode              string        `yaml:"mode"`
	Transport         string        `yaml:"transport"`
	Listen            string        `yaml:"listen"`
	Connect           string        `yaml:"connect"`
	Path              string        `yaml:"path"`
	Origin            string        `yaml:"origin"`
	DialTimeout       time.Duration `yaml:"dialTimeout"`
	ReceiveTimeout    time.Duration `yaml:"receiveTimeout"`
	MaxTimeouts       int           `yaml:"maxTimeouts"`
	Strict            *bool         `yaml:"strict"`
	Fleet             []int         `yaml:"fleet"`
	PlacementAttempts int           `yaml:"placementAttempts"`
	PlacementRounds   int           `yaml:"placementRounds"`
	MaxFrameSize      int           `yaml:"maxFrameSize"`
	MaxMatches        int           `yaml:"maxMatches"`
	History           string        `yaml:"history"`
}

type Config struct {
	// Mode is peer for direct games or relay to play through a relay.
	Mode string

	// Transport is tcp or websocket.
	Transport string

	// Listen is the address hosts and relays listen on.
	Listen string

	// Connect is the address guests dial.
	Connect string

	// Path is the websocket path.
	Path string

	// Origin is the host browsers may open websockets from, e.g.
	// "game.example.com". Empty accepts every origin.
	Origin string

	DialTimeout    time.Duration
	ReceiveTimeout time.Duration
	MaxTimeouts    int
	Strict         bool

	Fleet             fleet.Manifest
	PlacementAttempts int
	PlacementRounds   int

	MaxFrameSize int

	// MaxMatches bounds concurrent relay matches. Zero means no limit.
	MaxMatches int

	// History is the match history file. Empty disables history.
	History string
}

// Default returns the configuration used without a config file.
func Default() *Config {
	return &Config{
		Mode:              ModePeer,
		Transport:         TransportTCP,
		Listen:            ":5555",
		Connect:           "127.0.0.1:5555",
		Path:              "/play",
		DialTimeout:       10 * time.Second,
		ReceiveTimeout:    game.DefaultReceiveTimeout,
		MaxTimeouts:       game.DefaultMaxTimeouts,
		Fleet:             append(fleet.Manifest(nil), fleet.DefaultManifest...),
		PlacementAttempts: fleet.DefaultAttempts,
		PlacementRounds:   fleet.DefaultRounds,
		MaxFrameSize:      1 << 20,
		MaxMatches:        64,
		History:           "battleships-history.yaml",
	}
}

// ParseConfig reads a YAML config file on top of the defaults.
func ParseConfig(path string) (*Config, error) {
	configFile, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read config: %w", err)
	}

	var rawConfig RawYamlConfig
	if err := yaml.UnmarshalStrict(configFile, &rawConfig); err != nil {
		return nil, fmt.Errorf("unable to parse yaml config %s: %w", path, err)
	}

	c := Default()
	c.apply(rawConfig)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return c, nil
}

func (c *Config) apply(raw RawYamlConfig) {
	if raw.Mode != "" {
		c.Mode = raw.Mode
	}
	if raw.Transport != "" {
		c.Transport = raw.Transport
	}
	if raw.Listen != "" {
		c.Listen = raw.Listen
	}
	if raw.Connect != "" {
		c.Connect = raw.Connect
	}
	if raw.Path != "" {
		c.Path = raw.Path
	}
	if raw.Origin != "" {
		c.Origin = raw.Origin
	}
	if raw.DialTimeout != 0 {
		c.DialTimeout = raw.DialTimeout
	}
	if raw.ReceiveTimeout != 0 {
		c.ReceiveTimeout = raw.ReceiveTimeout
	}
	if raw.MaxTimeouts != 0 {
		c.MaxTimeouts = raw.MaxTimeouts
	}
	if raw.Strict != nil {
		c.Strict = *raw.Strict
	}
	if raw.Fleet != nil {
		c.Fleet = fleet.Manifest(raw.Fleet)
	}
	if raw.PlacementAttempts != 0 {
		c.PlacementAttempts = raw.PlacementAttempts
	}
	if raw.PlacementRounds != 0 {
		c.PlacementRounds = raw.PlacementRounds
	}
	if raw.MaxFrameSize != 0 {
		c.MaxFrameSize = raw.MaxFrameSize
	}
	if raw.MaxMatches != 0 {
		c.MaxMatches = raw.MaxMatches
	}
	if raw.History != "" {
		c.History = raw.History
	}
}

// Validate rejects settings the game cannot run with.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModePeer, ModeRelay:
	default:
		return fmt.Errorf("mode must be %q or %q, got %q", ModePeer, ModeRelay, c.Mode)
	}
	switch c.Transport {
	case TransportTCP, TransportWebsocket:
	default:
		return fmt.Errorf("transport must be %q or %q, got %q", TransportTCP, TransportWebsocket, c.Transport)
	}
	if c.DialTimeout <= 0 || c.ReceiveTimeout <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	if c.MaxTimeouts < 1 {
		return fmt.Errorf("maxTimeouts must be at least 1, got %d", c.MaxTimeouts)
	}
	if err := c.Fleet.Validate(); err != nil {
		return fmt.Errorf("fleet: %w", err)
	}
	if c.PlacementAttempts < 1 || c.PlacementRounds < 1 {
		return fmt.Errorf("placement bounds must be at least 1")
	}
	if c.MaxFrameSize < 64 {
		return fmt.Errorf("maxFrameSize must be at least 64 bytes, got %d", c.MaxFrameSize)
	}
	if c.MaxMatches < 0 {
		return fmt.Errorf("maxMatches must not be negative, got %d", c.MaxMatches)
	}
	return nil
}

// GameConfig returns the session settings.
func (c *Config) GameConfig() game.Config {
	return game.Config{
		ReceiveTimeout: c.ReceiveTimeout,
		MaxTimeouts:    c.MaxTimeouts,
		Strict:         c.Strict,
		Manifest:       c.Manifest(),
	}
}

// Manifest returns a copy of the configured fleet.
func (c *Config) Manifest() fleet.Manifest {
	return append(fleet.Manifest(nil), c.Fleet...)
}

// CommsOptions returns the listener and dialer settings.
func (c *Config) CommsOptions(log *zap.Logger) comms.Options {
	opts := comms.Options{
		MaxFrameSize: c.MaxFrameSize,
		Log:          log,
	}
	if c.Origin != "" {
		opts.CheckOrigin = c.CheckOrigin
	}
	return opts
}

// CheckOrigin accepts websocket upgrades from the configured origin host.
// Requests without an Origin header do not come from a browser and are
// accepted.
func (c *Config) CheckOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || c.Origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, c.Origin)
}

// URL returns the websocket URL guests dial.
func (c *Config) URL() string {
	return "ws://" + c.Connect + c.Path
}
