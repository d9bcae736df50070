// Package notify sends feed events to a Telegram chat.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"github.com/Vodeneev/matchfeed/internal/pkg/config"
	"github.com/Vodeneev/matchfeed/internal/pkg/metrics"
	"github.com/Vodeneev/matchfeed/internal/pkg/models"
)

const queueSize = 100

// sender is the part of the bot API the notifier uses.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram announces match changes, crashes and recoveries.
// It is a sink: Write never blocks, messages go out from Run at a limited rate.
type Telegram struct {
	bot     sender
	chatID  int64
	limiter *rate.Limiter
	queue   chan string
	logger  *slog.Logger

	mu        sync.Mutex
	lastMatch string
	crashed   bool
}

// NewTelegram connects to the bot API and checks the token.
func NewTelegram(cfg config.TelegramConfig, logger *slog.Logger) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	bot.Debug = false

	t := newTelegram(bot, cfg.ChatID, cfg.SendInterval, logger)
	t.logger.Info("Telegram notifier initialized", "chat_id", cfg.ChatID, "bot", bot.Self.UserName)
	return t, nil
}

func newTelegram(bot sender, chatID int64, interval time.Duration, logger *slog.Logger) *Telegram {
	if interval <= 0 {
		interval = config.DefaultTelegramSendInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Telegram{
		bot:     bot,
		chatID:  chatID,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		queue:   make(chan string, queueSize),
		logger:  logger,
	}
}

func (t *Telegram) Name() string { return "telegram" }

// Write queues a message if snap is a transition worth announcing.
func (t *Telegram) Write(_ context.Context, snap models.Snapshot) error {
	text, ok := t.transition(snap)
	if !ok {
		return nil
	}
	select {
	case t.queue <- text:
	default:
		metrics.NotificationsDropped.Inc()
		t.logger.Warn("Telegram queue full, dropping message", "message_preview", truncateString(text, 50))
	}
	return nil
}

// QueueLen returns current number of messages in the send queue.
func (t *Telegram) QueueLen() int {
	return len(t.queue)
}

// transition compares snap with what was last announced.
func (t *Telegram) transition(snap models.Snapshot) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch snap.Status {
	case models.StatusLive:
		label := snap.MatchLabel()
		switch {
		case t.crashed:
			t.crashed = false
			t.lastMatch = label
			return recoveredText(snap), true
		case label != t.lastMatch:
			t.lastMatch = label
			return matchChangedText(snap), true
		}
	case models.StatusCrashed:
		if !t.crashed {
			t.crashed = true
			return crashedText(snap), true
		}
	}
	return "", false
}

// Run sends queued messages until ctx is cancelled.
func (t *Telegram) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			if n := len(t.queue); n > 0 {
				t.logger.Info("Telegram notifier stopped", "dropped_messages", n)
			}
			return nil
		case text := <-t.queue:
			if err := t.limiter.Wait(ctx); err != nil {
				return nil
			}
			t.send(text)
		}
	}
}

func (t *Telegram) send(text string) {
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2

	start := time.Now()
	if _, err := t.bot.Send(msg); err != nil {
		metrics.SinkErrors.WithLabelValues(t.Name()).Inc()
		t.logger.Error("Telegram send: failed", "error", err, "message_preview", truncateString(text, 50))
		return
	}
	t.logger.Info("Telegram send: success", "send_duration", time.Since(start), "queue_length", len(t.queue))
}

func matchChangedText(snap models.Snapshot) string {
	return fmt.Sprintf("⚽ *Now playing*\n%s", escapeMarkdown(snap.MatchLabel()))
}

func crashedText(snap models.Snapshot) string {
	var b strings.Builder
	b.WriteString("⚠️ *Feed crashed, restarting*\n")
	b.WriteString(escapeMarkdown(snap.Diagnostic))
	if label := snap.MatchLabel(); label != "" {
		b.WriteString("\nLast match: ")
		b.WriteString(escapeMarkdown(label))
	}
	return b.String()
}

func recoveredText(snap models.Snapshot) string {
	return fmt.Sprintf("✅ *Feed recovered*\n%s", escapeMarkdown(snap.MatchLabel()))
}

// truncateString truncates a string to maxLen runes
func truncateString(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen]) + "..."
}

func escapeMarkdown(text string) string {
	replacer := strings.NewReplacer(
		"_", "\\_",
		"*", "\\*",
		"[", "\\[",
		"]", "\\]",
		"(", "\\(",
		")", "\\)",
		"~", "\\~",
		"`", "\\`",
		">", "\\>",
		"#", "\\#",
		"+", "\\+",
		"-", "\\-",
		"=", "\\=",
		"|", "\\|",
		"{", "\\{",
		"}", "\\}",
		".", "\\.",
		"!", "\\!",
	)
	return replacer.Replace(text)
}
