package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/dalnet/tmichat/internal/irc"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml", `
identity: TestBot
oauth_token: oauth:secret
channels:
  - first
  - "#second"
command_prefix: "?"
mod_account: true
handshake_timeout: 5s
pacing: 250ms
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Identity != "TestBot" || cfg.OAuthToken != "oauth:secret" {
		t.Errorf("credentials = %q %q", cfg.Identity, cfg.OAuthToken)
	}
	if !reflect.DeepEqual(cfg.Channels, []string{"first", "#second"}) {
		t.Errorf("Channels = %v", cfg.Channels)
	}
	if cfg.CommandPrefix != "?" || !cfg.ModAccount {
		t.Errorf("prefix %q mod %v", cfg.CommandPrefix, cfg.ModAccount)
	}
	if cfg.HandshakeTimeout != 5*time.Second || cfg.Pacing != 250*time.Millisecond {
		t.Errorf("timeout %v pacing %v", cfg.HandshakeTimeout, cfg.Pacing)
	}

	// Defaults
	if cfg.Server != irc.DefaultHost || cfg.Port != irc.DefaultPort {
		t.Errorf("gateway %s:%d", cfg.Server, cfg.Port)
	}
	if cfg.DataDir != "./data" || cfg.LogLevel != "info" {
		t.Errorf("data dir %q log level %q", cfg.DataDir, cfg.LogLevel)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file accepted")
	}
	path := writeFile(t, t.TempDir(), "bad.yaml", "channels: [unterminated")
	if _, err := Load(path); err == nil {
		t.Error("malformed yaml accepted")
	}
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := writeFile(t, dir, ".env", "TMICHAT_IDENTITY=fromfile\nTMICHAT_OAUTH_TOKEN=filetoken\n")

	t.Run("env file", func(t *testing.T) {
		t.Setenv(EnvIdentity, "")
		t.Setenv(EnvOAuthToken, "")
		cfg := &Config{Identity: "yaml", OAuthToken: "oauth:yaml"}
		if err := cfg.LoadEnv(envFile); err != nil {
			t.Fatalf("LoadEnv: %v", err)
		}
		if cfg.Identity != "fromfile" || cfg.OAuthToken != "oauth:filetoken" {
			t.Errorf("got %q %q", cfg.Identity, cfg.OAuthToken)
		}
	})

	t.Run("process env wins", func(t *testing.T) {
		t.Setenv(EnvIdentity, "")
		t.Setenv(EnvOAuthToken, "oauth:processtoken")
		cfg := &Config{}
		if err := cfg.LoadEnv(envFile); err != nil {
			t.Fatalf("LoadEnv: %v", err)
		}
		if cfg.Identity != "fromfile" || cfg.OAuthToken != "oauth:processtoken" {
			t.Errorf("got %q %q", cfg.Identity, cfg.OAuthToken)
		}
	})

	t.Run("missing env file", func(t *testing.T) {
		t.Setenv(EnvIdentity, "")
		t.Setenv(EnvOAuthToken, "")
		cfg := &Config{Identity: "yaml", OAuthToken: "rawtoken"}
		if err := cfg.LoadEnv(filepath.Join(dir, "nope.env")); err != nil {
			t.Fatalf("LoadEnv: %v", err)
		}
		if cfg.Identity != "yaml" || cfg.OAuthToken != "oauth:rawtoken" {
			t.Errorf("got %q %q", cfg.Identity, cfg.OAuthToken)
		}
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"valid", Config{Identity: "bot", OAuthToken: "oauth:x", Port: 6667}, true},
		{"no identity", Config{OAuthToken: "oauth:x"}, false},
		{"no token", Config{Identity: "bot"}, false},
		{"bad port", Config{Identity: "bot", OAuthToken: "oauth:x", Port: 70000}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.ok && err != nil {
				t.Errorf("Validate = %v", err)
			}
			if !tt.ok && !errors.Is(err, irc.ErrInvalidArgument) {
				t.Errorf("Validate = %v, want ErrInvalidArgument", err)
			}
		})
	}
}

func TestSessionConfig(t *testing.T) {
	cfg := &Config{Identity: "bot", OAuthToken: "oauth:x"}
	cfg.setDefaults()

	sc := cfg.Session(nil)
	if sc.Host != irc.DefaultHost || sc.Port != irc.DefaultPort || sc.Pacing != irc.DefaultPacing {
		t.Errorf("session config %+v", sc)
	}
	if _, err := irc.New(sc); err != nil {
		t.Errorf("irc.New rejected a valid config: %v", err)
	}
	if got := cfg.DatabasePath(); got != filepath.Join("data", "tmichat.db") {
		t.Errorf("DatabasePath = %q", got)
	}
}
