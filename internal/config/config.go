package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/dalnet/tmichat/internal/irc"
)

// Environment variables that override the credentials in the config file.
const (
	EnvIdentity   = "TMICHAT_IDENTITY"
	EnvOAuthToken = "TMICHAT_OAUTH_TOKEN"
)

const tokenPrefix = "oauth:"

// Config holds all bot configuration
type Config struct {
	Identity      string   `yaml:"identity"`
	OAuthToken    string   `yaml:"oauth_token"`
	Channels      []string `yaml:"channels"`
	CommandPrefix string   `yaml:"command_prefix"`
	ModAccount    bool     `yaml:"mod_account"`
	DirectSend    bool     `yaml:"direct_send"`

	Server           string        `yaml:"server"`
	Port             int           `yaml:"port"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	Pacing           time.Duration `yaml:"pacing"`

	LogLevel     string `yaml:"log_level"`
	DataDir      string `yaml:"data_dir"`
	ViewerAPIURL string `yaml:"viewer_api_url"`
}

// Load reads and parses a YAML configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.setDefaults()
	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Server == "" {
		c.Server = irc.DefaultHost
	}
	if c.Port == 0 {
		c.Port = irc.DefaultPort
	}
	if c.CommandPrefix == "" {
		c.CommandPrefix = irc.DefaultCommandPrefix
	}
	if c.HandshakeTimeout == 0 {
		c.HandshakeTimeout = irc.DefaultHandshakeTimeout
	}
	if c.Pacing == 0 {
		c.Pacing = irc.DefaultPacing
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.DataDir == "" {
		c.DataDir = "./data"
	}
}

// LoadEnv overlays credentials from envFile, if it exists, and then from
// the process environment. The token always ends up with its "oauth:" prefix.
func (c *Config) LoadEnv(envFile string) error {
	if envFile != "" {
		vars, err := godotenv.Read(envFile)
		switch {
		case err == nil:
			c.overlay(vars)
		case errors.Is(err, fs.ErrNotExist):
		default:
			return fmt.Errorf("failed to read env file: %w", err)
		}
	}
	c.overlay(map[string]string{
		EnvIdentity:   os.Getenv(EnvIdentity),
		EnvOAuthToken: os.Getenv(EnvOAuthToken),
	})
	c.OAuthToken = normalizeToken(c.OAuthToken)
	return nil
}

func (c *Config) overlay(vars map[string]string) {
	if v := strings.TrimSpace(vars[EnvIdentity]); v != "" {
		c.Identity = v
	}
	if v := strings.TrimSpace(vars[EnvOAuthToken]); v != "" {
		c.OAuthToken = v
	}
}

func normalizeToken(token string) string {
	token = strings.TrimSpace(token)
	if token == "" || strings.HasPrefix(token, tokenPrefix) {
		return token
	}
	return tokenPrefix + token
}

// Validate reports a configuration the session would refuse.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Identity) == "" {
		return fmt.Errorf("%w: identity is required", irc.ErrInvalidArgument)
	}
	if strings.TrimSpace(c.OAuthToken) == "" {
		return fmt.Errorf("%w: oauth_token is required", irc.ErrInvalidArgument)
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", irc.ErrInvalidArgument, c.Port)
	}
	return nil
}

// DatabasePath is the bot's SQLite file inside DataDir.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "tmichat.db")
}

// Session returns the session settings for this configuration.
func (c *Config) Session(log *zap.Logger) irc.Config {
	return irc.Config{
		Token:            c.OAuthToken,
		Identity:         c.Identity,
		CommandPrefix:    c.CommandPrefix,
		Host:             c.Server,
		Port:             c.Port,
		HandshakeTimeout: c.HandshakeTimeout,
		ModAccount:       c.ModAccount,
		DirectSend:       c.DirectSend,
		Pacing:           c.Pacing,
		Logger:           log,
	}
}
