package config_test

import (
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/JJ-Intelligence/SR-Battleships/pkg/config"
	"github.com/JJ-Intelligence/SR-Battleships/pkg/fleet"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	c := config.Default()
	if err := c.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if !c.Fleet.Equal(fleet.DefaultManifest) {
		t.Errorf("unexpected default fleet %v", c.Fleet)
	}
	if c.Strict {
		t.Errorf("expected lenient mode by default")
	}
}

func TestParseConfig(t *testing.T) {
	path := writeConfig(t, `
mode: relay
transport: websocket
connect: relay.example.com:80
path: /battle
receiveTimeout: 250ms
maxTimeouts: 4
strict: true
fleet: [3, 2, 1]
history: games.yaml
`)
	c, err := config.ParseConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if want, have := config.ModeRelay, c.Mode; want != have {
		t.Errorf("unexpected mode. want %s, have %s", want, have)
	}
	if want, have := 250*time.Millisecond, c.ReceiveTimeout; want != have {
		t.Errorf("unexpected receive timeout. want %s, have %s", want, have)
	}
	if want, have := "ws://relay.example.com:80/battle", c.URL(); want != have {
		t.Errorf("unexpected url. want %s, have %s", want, have)
	}
	if want, have := ":5555", c.Listen; want != have {
		t.Errorf("unset keys must keep defaults. want %s, have %s", want, have)
	}

	g := c.GameConfig()
	if !g.Strict || g.MaxTimeouts != 4 || !g.Manifest.Equal(fleet.Manifest{1, 2, 3}) {
		t.Errorf("unexpected game config %+v", g)
	}
	g.Manifest[0] = 9
	if c.Fleet[0] == 9 {
		t.Errorf("game config must not share the fleet slice")
	}
}

func TestParseConfig_Invalid(t *testing.T) {
	tests := map[string]string{
		"mode":         "mode: solo",
		"transport":    "transport: carrier-pigeon",
		"timeouts":     "maxTimeouts: -1",
		"fleet":        "fleet: [11]",
		"frame size":   "maxFrameSize: 8",
		"matches":      "maxMatches: -2",
		"unknown key":  "colour: blue",
		"not yaml":     "mode: [peer",
		"bad duration": "receiveTimeout: soon",
	}
	for name, contents := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := config.ParseConfig(writeConfig(t, contents)); err == nil {
				t.Errorf("expected error for %q", contents)
			}
		})
	}
}

func TestParseConfig_Missing(t *testing.T) {
	if _, err := config.ParseConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Errorf("expected error for a missing file")
	}
}

func TestCommsOptions(t *testing.T) {
	c := config.Default()
	c.MaxFrameSize = 4096
	if want, have := 4096, c.CommsOptions(nil).MaxFrameSize; want != have {
		t.Errorf("unexpected frame size. want %d, have %d", want, have)
	}
}

func TestParseConfig_Example(t *testing.T) {
	c, err := config.ParseConfig(filepath.Join("..", "..", "config.example.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want, have := *config.Default(), *c; !want.Fleet.Equal(have.Fleet) || want.ReceiveTimeout != have.ReceiveTimeout || want.MaxMatches != have.MaxMatches {
		t.Errorf("example config drifted from the defaults. want %+v, have %+v", want, have)
	}
}

func TestCheckOrigin(t *testing.T) {
	c, err := config.ParseConfig(writeConfig(t, "transport: websocket\norigin: game.example.com\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	check := c.CommsOptions(nil).CheckOrigin
	if check == nil {
		t.Fatalf("expected an origin check when origin is set")
	}

	tests := map[string]bool{
		"":                              true,
		"https://game.example.com":      true,
		"https://GAME.example.com":      true,
		"https://evil.example.com":      false,
		"https://game.example.com.evil": false,
	}
	for origin, want := range tests {
		r := httptest.NewRequest("GET", "/play", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		if have := check(r); want != have {
			t.Errorf("origin %q: want %v, have %v", origin, want, have)
		}
	}

	if config.Default().CommsOptions(nil).CheckOrigin != nil {
		t.Errorf("expected no origin check by default")
	}
}
