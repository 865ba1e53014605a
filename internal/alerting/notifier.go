package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Notification carries the context of a verified attack for dispatch.
type Notification struct {
	EventID        string
	Ticker         string
	Headline       string
	Confidence     int
	PanicScore     int
	LatencyMinutes float64
	CurrentPrice   decimal.Decimal
	ProjectedLoss  float64
	CrashTime      time.Time
}

// Notifier dispatches crisis notifications.
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// TelegramNotifier pushes attack notifications via the Telegram Bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier constructs a Telegram notifier.
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Notify calls the sendMessage API with the rendered attack summary.
func (n *TelegramNotifier) Notify(ctx context.Context, note Notification) error {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    renderMessage(note),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
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
		return fmt.Errorf("unexpected telegram status: %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram returned ok=false")
		}
	}

	n.logger.Info().Str("event_id", note.EventID).
		Str("ticker", note.Ticker).
		Int("confidence", note.Confidence).
		Msg("attack alert dispatched")
	return nil
}

func renderMessage(note Notification) string {
	builder := strings.Builder{}
	builder.WriteString("[VERIFIED MISINFORMATION ATTACK]\n")
	builder.WriteString(fmt.Sprintf("Event: %s\n", note.EventID))
	builder.WriteString(fmt.Sprintf("Ticker: %s\n", note.Ticker))
	builder.WriteString(fmt.Sprintf("Crash: %s UTC\n", note.CrashTime.UTC().Format(time.RFC3339)))
	builder.WriteString(fmt.Sprintf("Price: %s\n", note.CurrentPrice.StringFixed(2)))
	builder.WriteString(fmt.Sprintf("Projected Loss: %.2f%%\n", note.ProjectedLoss))
	builder.WriteString(fmt.Sprintf("Headline: %s\n", note.Headline))
	builder.WriteString(fmt.Sprintf("Latency: %.1f min before crash\n", note.LatencyMinutes))
	builder.WriteString(fmt.Sprintf("Panic: %d/100 | Confidence: %d%%\n", note.PanicScore, note.Confidence))
	return builder.String()
}

var _ Notifier = (*TelegramNotifier)(nil)
