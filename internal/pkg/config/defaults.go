package config

import "time"

const (
	DefaultTargetURL         = "https://www.betpawa.com.gh/virtual-sports"
	DefaultNavigationTimeout = 60 * time.Second
	DefaultUserAgent         = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/114.0.0.0 Safari/537.36"
	DefaultViewportWidth     = 1280
	DefaultViewportHeight    = 720

	DefaultPrimarySelector   = ".virtual-match-team"
	DefaultAlternateSelector = ".virtual-event-teams .team-name"
	DefaultSeparatorSelector = "span, div, p, strong, b, td, li"

	DefaultPollInterval      = 2 * time.Second
	DefaultRestartCooldown   = 15 * time.Second
	DefaultPort              = 3000
	DefaultReadHeaderTimeout = 5 * time.Second

	DefaultRedisKey     = "matchfeed:snapshot"
	DefaultRedisChannel = "matchfeed:updates"
	DefaultRedisTTL     = time.Hour

	DefaultTelegramSendInterval = 2 * time.Second
)

var (
	DefaultBlockedResources = []string{"image", "stylesheet", "font", "media"}
	DefaultSeparatorTokens  = []string{"v", "VS"}
)

// applyDefaults fills every unset field. It never overrides explicit values.
func (c *Config) applyDefaults() {
	if c.Target.URL == "" {
		c.Target.URL = DefaultTargetURL
	}
	if c.Target.NavigationTimeout == 0 {
		c.Target.NavigationTimeout = DefaultNavigationTimeout
	}

	if c.Browser.UserAgent == "" {
		c.Browser.UserAgent = DefaultUserAgent
	}
	if c.Browser.ViewportWidth == 0 {
		c.Browser.ViewportWidth = DefaultViewportWidth
	}
	if c.Browser.ViewportHeight == 0 {
		c.Browser.ViewportHeight = DefaultViewportHeight
	}
	// nil means "not configured"; an explicit empty list disables blocking.
	if c.Browser.BlockedResources == nil {
		c.Browser.BlockedResources = append([]string(nil), DefaultBlockedResources...)
	}

	if c.Extract.PrimarySelector == "" {
		c.Extract.PrimarySelector = DefaultPrimarySelector
	}
	if c.Extract.AlternateSelector == "" {
		c.Extract.AlternateSelector = DefaultAlternateSelector
	}
	if c.Extract.SeparatorSelector == "" {
		c.Extract.SeparatorSelector = DefaultSeparatorSelector
	}
	if len(c.Extract.SeparatorTokens) == 0 {
		c.Extract.SeparatorTokens = append([]string(nil), DefaultSeparatorTokens...)
	}

	if c.Poller.Interval == 0 {
		c.Poller.Interval = DefaultPollInterval
	}
	if c.Supervisor.RestartCooldown == 0 {
		c.Supervisor.RestartCooldown = DefaultRestartCooldown
	}

	if c.Health.Port == 0 {
		c.Health.Port = DefaultPort
	}
	if c.Health.ReadHeaderTimeout == 0 {
		c.Health.ReadHeaderTimeout = DefaultReadHeaderTimeout
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}

	if c.Redis.Key == "" {
		c.Redis.Key = DefaultRedisKey
	}
	if c.Redis.Channel == "" {
		c.Redis.Channel = DefaultRedisChannel
	}
	if c.Redis.TTL == 0 {
		c.Redis.TTL = DefaultRedisTTL
	}

	if c.Telegram.SendInterval == 0 {
		c.Telegram.SendInterval = DefaultTelegramSendInterval
	}
}
