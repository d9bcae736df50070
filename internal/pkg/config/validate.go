package config

import (
	"fmt"
	"net/url"
	"strings"
)

// KnownResourceTypes lists the sub-resource categories the asset filter understands.
var KnownResourceTypes = []string{"image", "stylesheet", "font", "media", "other"}

// Validate checks configuration correctness after defaults are applied.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	u, err := url.Parse(cfg.Target.URL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("target.url must be an absolute http(s) URL, got %q", cfg.Target.URL)
	}
	if cfg.Target.NavigationTimeout < 0 {
		return fmt.Errorf("target.navigation_timeout must be >= 0 (0 = default)")
	}

	if cfg.Browser.ViewportWidth <= 0 || cfg.Browser.ViewportHeight <= 0 {
		return fmt.Errorf("browser viewport must be positive, got %dx%d",
			cfg.Browser.ViewportWidth, cfg.Browser.ViewportHeight)
	}
	for _, r := range cfg.Browser.BlockedResources {
		if !isKnownResourceType(r) {
			return fmt.Errorf("browser.blocked_resources: unknown category %q (known: %s)",
				r, strings.Join(KnownResourceTypes, ", "))
		}
	}

	if strings.TrimSpace(cfg.Extract.PrimarySelector) == "" {
		return fmt.Errorf("extract.primary_selector is required")
	}
	for _, tok := range cfg.Extract.SeparatorTokens {
		if strings.TrimSpace(tok) == "" {
			return fmt.Errorf("extract.separator_tokens must not contain empty tokens")
		}
	}

	if cfg.Poller.Interval < 0 {
		return fmt.Errorf("poller.interval must be >= 0 (0 = default)")
	}
	if cfg.Poller.MaxConsecutiveFailures < 0 {
		return fmt.Errorf("poller.max_consecutive_failures must be >= 0")
	}
	if cfg.Supervisor.RestartCooldown < 0 {
		return fmt.Errorf("supervisor.restart_cooldown must be >= 0 (0 = default)")
	}

	if cfg.Health.Port <= 0 || cfg.Health.Port > 65535 {
		return fmt.Errorf("health.port out of range: %d", cfg.Health.Port)
	}
	if cfg.Health.ReadHeaderTimeout <= 0 {
		return fmt.Errorf("health.read_header_timeout must be specified")
	}

	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level: unknown level %q", cfg.Logging.Level)
	}

	switch cfg.Checkpoint.Driver {
	case "":
	case "postgres", "sqlite":
		if cfg.Checkpoint.DSN == "" {
			return fmt.Errorf("checkpoint.dsn is required for driver %q", cfg.Checkpoint.Driver)
		}
	default:
		return fmt.Errorf("checkpoint.driver must be postgres or sqlite, got %q", cfg.Checkpoint.Driver)
	}

	if cfg.Telegram.BotToken != "" && cfg.Telegram.ChatID == 0 {
		return fmt.Errorf("telegram.chat_id is required when telegram.bot_token is set")
	}

	return nil
}

func isKnownResourceType(name string) bool {
	n := strings.ToLower(strings.TrimSpace(name))
	for _, k := range KnownResourceTypes {
		if n == k {
			return true
		}
	}
	return false
}
