package config

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseDSN       string
	ServerAddr        string
	SigningKey        []byte
	AllowedOrigins    []string
	OpportunitiesPath string
	RedisAddr         string
	NotifyChannel     string
}

type Option func(*Config)

func WithOpportunitiesPath(path string) Option {
	return func(c *Config) { c.OpportunitiesPath = path }
}

func WithRedisAddr(addr string) Option {
	return func(c *Config) { c.RedisAddr = addr }
}

// WithNotifyChannel routes row changes through Postgres LISTEN/NOTIFY on the
// named channel instead of the in-process hub.
func WithNotifyChannel(channel string) Option {
	return func(c *Config) { c.NotifyChannel = channel }
}

func decodeSigningSecret(base64Secret string) ([]byte, error) {
	if base64Secret == "" {
		return nil, fmt.Errorf("empty secret")
	}
	return base64.StdEncoding.DecodeString(base64Secret)
}

func NewConfig(serverAddr, databaseDSN, base64Secret string, allowedOrigins []string, opts ...Option) (*Config, error) {
	if serverAddr == "" {
		return nil, fmt.Errorf("server address cannot be empty")
	}
	if databaseDSN == "" {
		return nil, fmt.Errorf("database DSN cannot be empty")
	}
	if base64Secret == "" {
		return nil, fmt.Errorf("signing secret cannot be empty")
	}

	signingKey, err := decodeSigningSecret(base64Secret)
	if err != nil {
		return nil, fmt.Errorf("decode signing secret: %w", err)
	}

	cfg := &Config{
		DatabaseDSN:    databaseDSN,
		ServerAddr:     serverAddr,
		SigningKey:     signingKey,
		AllowedOrigins: allowedOrigins,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	return cfg, nil
}

// LoadEnv reads a .env file when present. A missing file is not an error.
func LoadEnv(filenames ...string) error {
	if len(filenames) == 0 {
		filenames = []string{".env"}
	}

	var existing []string
	for _, f := range filenames {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}

	return godotenv.Load(existing...)
}

// Getenv returns the value of key, or def when unset or empty.
func Getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

type ClientConfig struct {
	APIURL       *url.URL
	Email        string
	Password     string
	RankingURL   string
	PollInterval time.Duration
}

// LoadClient builds the planner client configuration from PLANNER_* variables.
func LoadClient() (*ClientConfig, error) {
	if err := LoadEnv(); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	return NewClientConfig(
		Getenv("PLANNER_API_URL", "http://localhost:8000"),
		os.Getenv("PLANNER_EMAIL"),
		os.Getenv("PLANNER_PASSWORD"),
		os.Getenv("PLANNER_RANKING_URL"),
		Getenv("PLANNER_POLL_INTERVAL", "2s"),
	)
}

func NewClientConfig(apiURL, email, password, rankingURL, pollInterval string) (*ClientConfig, error) {
	if apiURL == "" {
		return nil, fmt.Errorf("api url cannot be empty")
	}

	u, err := url.Parse(apiURL)
	if err != nil {
		return nil, fmt.Errorf("parse api url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("api url must be http or https, got %q", u.Scheme)
	}

	interval, err := time.ParseDuration(pollInterval)
	if err != nil {
		return nil, fmt.Errorf("parse poll interval: %w", err)
	}
	if interval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive")
	}

	return &ClientConfig{
		APIURL:       u,
		Email:        email,
		Password:     password,
		RankingURL:   rankingURL,
		PollInterval: interval,
	}, nil
}
