package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	BackendFile  = "file"
	BackendRedis = "redis"

	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
)

// Config represents configuration data for the domain poller.
type Config struct {
	IntervalSeconds int           `yaml:"interval_seconds"`
	Source          SourceConfig  `yaml:"source"`
	Notify          NotifyConfig  `yaml:"notify"`
	History         HistoryConfig `yaml:"history"`
	Log             LogConfig     `yaml:"log"`
	Server          ServerConfig  `yaml:"server"`
}

// SourceConfig describes the remote domain list endpoint.
type SourceConfig struct {
	URL            string            `yaml:"url"`
	TimeoutSeconds int               `yaml:"timeout_seconds"`
	UserAgent      string            `yaml:"user_agent"`
	Headers        map[string]string `yaml:"headers"`
	ListKey        string            `yaml:"list_key"`
}

// NotifyConfig describes the chat webhook and message texts.
type NotifyConfig struct {
	WebhookURL     string  `yaml:"webhook_url"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	Locale         string  `yaml:"locale"`
	RatePerSecond  float64 `yaml:"rate_per_second"`
	SendStartup    bool    `yaml:"send_startup"`
	StartupTitle   string  `yaml:"startup_title"`
	StartupBody    string  `yaml:"startup_body"`
	DetectionTitle string  `yaml:"detection_title"`
}

// HistoryConfig selects where seen domains are persisted.
type HistoryConfig struct {
	Backend         string      `yaml:"backend"`
	Path            string      `yaml:"path"`
	Strict          bool        `yaml:"strict"`
	DetectionsPath  string      `yaml:"detections_path"`
	DetectionsLimit int         `yaml:"detections_limit"`
	Redis           RedisConfig `yaml:"redis"`
}

// RedisConfig holds connection settings for the redis history backend.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Key      string `yaml:"key"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ServerConfig controls the status API. An empty address disables it.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// DefaultConfig returns sensible defaults in case no configuration file is provided.
func DefaultConfig() Config {
	return Config{
		IntervalSeconds: 60,
		Source: SourceConfig{
			TimeoutSeconds: 10,
			UserAgent:      defaultUserAgent,
			ListKey:        "domains",
		},
		Notify: NotifyConfig{
			TimeoutSeconds: 10,
			Locale:         "zh_cn",
			RatePerSecond:  5,
			SendStartup:    true,
			StartupTitle:   "Domain monitor",
			StartupBody:    "Domain monitor started, watching for new domains.",
			DetectionTitle: "New domains detected",
		},
		History: HistoryConfig{
			Backend:         BackendFile,
			Path:            "domain_history.json",
			DetectionsLimit: 1000,
			Redis: RedisConfig{
				Addr: "localhost:6379",
				Key:  "domainwatch:history",
			},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
	}
}

// Load reads configuration from yaml file. Missing files fall back to defaults,
// which still have to name a source URL to be valid.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		content, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(content, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.IntervalSeconds <= 0 {
		c.IntervalSeconds = def.IntervalSeconds
	}
	if c.Source.TimeoutSeconds <= 0 {
		c.Source.TimeoutSeconds = def.Source.TimeoutSeconds
	}
	if strings.TrimSpace(c.Source.UserAgent) == "" {
		c.Source.UserAgent = def.Source.UserAgent
	}
	if c.Source.ListKey == "" {
		c.Source.ListKey = def.Source.ListKey
	}
	if c.Notify.TimeoutSeconds <= 0 {
		c.Notify.TimeoutSeconds = def.Notify.TimeoutSeconds
	}
	if c.Notify.Locale == "" {
		c.Notify.Locale = def.Notify.Locale
	}
	if c.Notify.RatePerSecond <= 0 {
		c.Notify.RatePerSecond = def.Notify.RatePerSecond
	}
	if c.Notify.StartupTitle == "" {
		c.Notify.StartupTitle = def.Notify.StartupTitle
	}
	if c.Notify.StartupBody == "" {
		c.Notify.StartupBody = def.Notify.StartupBody
	}
	if c.Notify.DetectionTitle == "" {
		c.Notify.DetectionTitle = def.Notify.DetectionTitle
	}
	c.History.Backend = strings.ToLower(strings.TrimSpace(c.History.Backend))
	if c.History.Backend == "" {
		c.History.Backend = def.History.Backend
	}
	if c.History.Path == "" {
		c.History.Path = def.History.Path
	}
	if c.History.DetectionsLimit <= 0 {
		c.History.DetectionsLimit = def.History.DetectionsLimit
	}
	if c.History.Redis.Addr == "" {
		c.History.Redis.Addr = def.History.Redis.Addr
	}
	if c.History.Redis.Key == "" {
		c.History.Redis.Key = def.History.Redis.Key
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = def.Log.Format
	}
}

// Validate checks the settings that have no usable default.
func (c Config) Validate() error {
	if c.Source.URL == "" {
		return errors.New("source.url is required")
	}
	if err := checkURL("source.url", c.Source.URL); err != nil {
		return err
	}
	if c.Notify.WebhookURL != "" {
		if err := checkURL("notify.webhook_url", c.Notify.WebhookURL); err != nil {
			return err
		}
	}
	switch c.History.Backend {
	case BackendFile:
		if filepath.Base(c.History.Path) == "." {
			return fmt.Errorf("history.path %q is not a file", c.History.Path)
		}
	case BackendRedis:
	default:
		return fmt.Errorf("unknown history.backend %q", c.History.Backend)
	}
	return nil
}

func checkURL(key, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must be an http(s) URL, got %q", key, raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%s is missing a host", key)
	}
	return nil
}
