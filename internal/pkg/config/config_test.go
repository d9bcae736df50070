package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("TARGET_URL", "")
	t.Setenv("CHROME_REMOTE_URL", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load() err=%v", err)
	}

	if cfg.Target.URL != DefaultTargetURL {
		t.Errorf("Target.URL = %q", cfg.Target.URL)
	}
	if cfg.Target.NavigationTimeout != 60*time.Second {
		t.Errorf("NavigationTimeout = %v", cfg.Target.NavigationTimeout)
	}
	if cfg.Poller.Interval != 2*time.Second {
		t.Errorf("Poller.Interval = %v", cfg.Poller.Interval)
	}
	if cfg.Supervisor.RestartCooldown != 15*time.Second {
		t.Errorf("RestartCooldown = %v", cfg.Supervisor.RestartCooldown)
	}
	if cfg.Health.Port != 3000 {
		t.Errorf("Health.Port = %d", cfg.Health.Port)
	}
	if got := strings.Join(cfg.Browser.BlockedResources, ","); got != "image,stylesheet,font,media" {
		t.Errorf("BlockedResources = %s", got)
	}
	if !cfg.Browser.IsHeadless() {
		t.Errorf("IsHeadless() = false")
	}
}

func TestLoad_FileValues(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("TARGET_URL", "")
	t.Setenv("CHROME_REMOTE_URL", "")

	path := writeConfig(t, `
target:
  url: https://example.com/virtual
  navigation_timeout: 30s
browser:
  headless: false
  blocked_resources: []
poller:
  interval: 5s
  max_consecutive_failures: 3
supervisor:
  restart_cooldown: 10s
extract:
  separator_tokens: ["vs"]
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() err=%v", err)
	}
	if cfg.Target.URL != "https://example.com/virtual" {
		t.Errorf("Target.URL = %q", cfg.Target.URL)
	}
	if cfg.Target.NavigationTimeout != 30*time.Second {
		t.Errorf("NavigationTimeout = %v", cfg.Target.NavigationTimeout)
	}
	if cfg.Browser.IsHeadless() {
		t.Errorf("IsHeadless() = true")
	}
	if len(cfg.Browser.BlockedResources) != 0 {
		t.Errorf("explicit empty blocked_resources replaced by %v", cfg.Browser.BlockedResources)
	}
	if cfg.Poller.Interval != 5*time.Second || cfg.Poller.MaxConsecutiveFailures != 3 {
		t.Errorf("Poller = %+v", cfg.Poller)
	}
	if cfg.Supervisor.RestartCooldown != 10*time.Second {
		t.Errorf("RestartCooldown = %v", cfg.Supervisor.RestartCooldown)
	}
	if len(cfg.Extract.SeparatorTokens) != 1 || cfg.Extract.SeparatorTokens[0] != "vs" {
		t.Errorf("SeparatorTokens = %v", cfg.Extract.SeparatorTokens)
	}
	if cfg.Extract.PrimarySelector != DefaultPrimarySelector {
		t.Errorf("PrimarySelector = %q", cfg.Extract.PrimarySelector)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "8081")
	t.Setenv("TARGET_URL", "https://override.example/page")
	t.Setenv("CHROME_REMOTE_URL", "ws://chrome:9222/devtools/browser/x")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load() err=%v", err)
	}
	if cfg.Health.Port != 8081 {
		t.Errorf("Health.Port = %d", cfg.Health.Port)
	}
	if cfg.Target.URL != "https://override.example/page" {
		t.Errorf("Target.URL = %q", cfg.Target.URL)
	}
	if cfg.Browser.RemoteURL != "ws://chrome:9222/devtools/browser/x" {
		t.Errorf("RemoteURL = %q", cfg.Browser.RemoteURL)
	}
}

func TestLoad_InvalidPortEnv(t *testing.T) {
	t.Setenv("PORT", "eighty")
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for non-numeric PORT")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"relative url", func(c *Config) { c.Target.URL = "/virtual" }, "target.url"},
		{"ftp url", func(c *Config) { c.Target.URL = "ftp://x.example" }, "target.url"},
		{"unknown resource", func(c *Config) { c.Browser.BlockedResources = []string{"image", "script"} }, "unknown category"},
		{"other resource", func(c *Config) { c.Browser.BlockedResources = []string{"Other"} }, ""},
		{"empty token", func(c *Config) { c.Extract.SeparatorTokens = []string{"v", " "} }, "separator_tokens"},
		{"negative failures", func(c *Config) { c.Poller.MaxConsecutiveFailures = -1 }, "max_consecutive_failures"},
		{"zero interval", func(c *Config) { c.Poller.Interval = 0 }, ""},
		{"negative interval", func(c *Config) { c.Poller.Interval = -time.Second }, "poller.interval must be >= 0 (0 = default)"},
		{"negative cooldown", func(c *Config) { c.Supervisor.RestartCooldown = -time.Second }, "supervisor.restart_cooldown must be >= 0"},
		{"negative navigation timeout", func(c *Config) { c.Target.NavigationTimeout = -time.Second }, "target.navigation_timeout must be >= 0"},
		{"bad port", func(c *Config) { c.Health.Port = 70000 }, "health.port"},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"checkpoint without dsn", func(c *Config) { c.Checkpoint.Driver = "sqlite" }, "checkpoint.dsn"},
		{"checkpoint driver", func(c *Config) { c.Checkpoint.Driver = "mysql"; c.Checkpoint.DSN = "x" }, "checkpoint.driver"},
		{"telegram without chat", func(c *Config) { c.Telegram.BotToken = "t" }, "telegram.chat_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg Config
			cfg.applyDefaults()
			tt.mutate(&cfg)

			err := Validate(&cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() err=%v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() err=%v, want containing %q", err, tt.wantErr)
			}
		})
	}
}
