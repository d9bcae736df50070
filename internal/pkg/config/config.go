package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Target     TargetConfig     `yaml:"target"`
	Browser    BrowserConfig    `yaml:"browser"`
	Extract    ExtractConfig    `yaml:"extract"`
	Poller     PollerConfig     `yaml:"poller"`
	Supervisor SupervisorConfig `yaml:"supervisor"`
	Health     HealthConfig     `yaml:"health"`
	Logging    LoggingConfig    `yaml:"logging"`
	Checkpoint CheckpointConfig `yaml:"checkpoint"`
	Redis      RedisConfig      `yaml:"redis"`
	Telegram   TelegramConfig   `yaml:"telegram"`
}

type TargetConfig struct {
	URL               string        `yaml:"url"`
	NavigationTimeout time.Duration `yaml:"navigation_timeout"`
}

type BrowserConfig struct {
	Headless         *bool    `yaml:"headless"`
	ExecPath         string   `yaml:"exec_path"`
	RemoteURL        string   `yaml:"remote_url"` // DevTools websocket of an already running browser
	UserAgent        string   `yaml:"user_agent"`
	ViewportWidth    int64    `yaml:"viewport_width"`
	ViewportHeight   int64    `yaml:"viewport_height"`
	Flags            []string `yaml:"flags"` // Extra chrome flags, "name" or "name=value"
	BlockedResources []string `yaml:"blocked_resources"`
}

// IsHeadless defaults to true when unset.
func (b BrowserConfig) IsHeadless() bool {
	return b.Headless == nil || *b.Headless
}

type ExtractConfig struct {
	PrimarySelector   string   `yaml:"primary_selector"`
	AlternateSelector string   `yaml:"alternate_selector"`
	SeparatorSelector string   `yaml:"separator_selector"`
	SeparatorTokens   []string `yaml:"separator_tokens"`
	SanitizeNames     bool     `yaml:"sanitize_names"` // drop control chars, cap length
}

type PollerConfig struct {
	Interval               time.Duration `yaml:"interval"`
	MaxConsecutiveFailures int           `yaml:"max_consecutive_failures"` // 0 = unlimited
}

type SupervisorConfig struct {
	RestartCooldown time.Duration `yaml:"restart_cooldown"`
}

type HealthConfig struct {
	Port              int           `yaml:"port"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
}

type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	File  string `yaml:"file"`  // Optional JSON log file in addition to stdout
}

type CheckpointConfig struct {
	Driver string `yaml:"driver"` // "postgres", "sqlite" or empty to disable
	DSN    string `yaml:"dsn"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr"` // Empty disables the mirror
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Key      string        `yaml:"key"`
	Channel  string        `yaml:"channel"`
	TTL      time.Duration `yaml:"ttl"`
}

type TelegramConfig struct {
	BotToken     string        `yaml:"bot_token"` // Empty disables notifications
	ChatID       int64         `yaml:"chat_id"`
	SendInterval time.Duration `yaml:"send_interval"`
}

// Load reads the YAML file at configPath, applies env overrides and defaults,
// and validates the result. A missing file yields the defaults.
func Load(configPath string) (*Config, error) {
	var config Config

	data, err := os.ReadFile(configPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := config.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	config.applyDefaults()

	if err := Validate(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		c.Health.Port = port
	}
	if v := getenv("TARGET_URL"); v != "" {
		c.Target.URL = v
	}
	if v := getenv("CHROME_REMOTE_URL"); v != "" {
		c.Browser.RemoteURL = v
	}
	return nil
}
