package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"coinwatch/internal/quote"
)

// Sink delivers a notification. Callers log and swallow returned errors.
type Sink interface {
	Show(ctx context.Context, title, body string) error
}

// RenderNotification builds the title and body for a triggered rule.
func RenderNotification(rule Rule, q quote.Quote) (string, string) {
	name := q.Name
	if name == "" {
		name = rule.CoinID
	}
	title := fmt.Sprintf("%s - alert triggered", name)

	var body string
	switch rule.Kind {
	case PriceAtLeast, PriceAtMost:
		body = fmt.Sprintf("%s, now $%s", rule.Describe(), q.PriceUSD.StringFixed(2))
	case Change24hAtLeast, Change24hAtMost:
		body = fmt.Sprintf("%s, now %s%%", rule.Describe(), q.Change24h.StringFixed(2))
	default:
		body = fmt.Sprintf("%s alert triggered", name)
	}
	return title, body
}

// LogSink writes notifications to the structured log.
type LogSink struct {
	logger zerolog.Logger
}

// NewLogSink constructs a LogSink.
func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger.With().Str("component", "alert_log").Logger()}
}

// Show implements Sink.
func (s *LogSink) Show(_ context.Context, title, body string) error {
	s.logger.Warn().Str("title", title).Msg(body)
	return nil
}

// TelegramSink pushes notifications through the Telegram Bot API.
type TelegramSink struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramSink constructs a Telegram sink.
func NewTelegramSink(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramSink {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramSink{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Show calls sendMessage with the rendered text.
func (n *TelegramSink) Show(ctx context.Context, title, body string) error {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    "[coinwatch] " + title + "\n" + body,
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram unexpected status: %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram returned ok=false")
		}
	}

	n.logger.Info().Str("title", title).Msg("notification sent (Telegram)")
	return nil
}

// MultiSink fans a notification out to every sink, collecting failures.
type MultiSink []Sink

// Show implements Sink.
func (m MultiSink) Show(ctx context.Context, title, body string) error {
	var errs []error
	for _, s := range m {
		if err := s.Show(ctx, title, body); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ToggleSink forwards to next only while enabled. Suppressed notifications
// still count as delivered, so episode state is unaffected.
type ToggleSink struct {
	next    Sink
	enabled atomic.Bool
}

// NewToggleSink wraps next, initially enabled.
func NewToggleSink(next Sink) *ToggleSink {
	t := &ToggleSink{next: next}
	t.enabled.Store(true)
	return t
}

// SetEnabled switches delivery on or off.
func (t *ToggleSink) SetEnabled(enabled bool) {
	t.enabled.Store(enabled)
}

// Show implements Sink.
func (t *ToggleSink) Show(ctx context.Context, title, body string) error {
	if !t.enabled.Load() || t.next == nil {
		return nil
	}
	return t.next.Show(ctx, title, body)
}

var (
	_ Sink = (*LogSink)(nil)
	_ Sink = (*TelegramSink)(nil)
	_ Sink = MultiSink(nil)
	_ Sink = (*ToggleSink)(nil)
)
