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

// Notification carries a freshly persisted signal for push delivery.
type Notification struct {
	Ticker       string
	CompanyName  string
	AgencyName   string
	AwardAmount  decimal.Decimal
	MarketCap    decimal.Decimal
	ImpactRatio  decimal.Decimal
	Tier         string
	ContractDate *time.Time
	SourceURL    string
}

// Notifier delivers signal notifications.
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// TelegramNotifier pushes signal messages via the Telegram Bot API.
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

// Notify sends the rendered signal message via sendMessage.
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

	n.logger.Info().Str("ticker", note.Ticker).
		Str("tier", note.Tier).
		Msg("signal alert sent (Telegram)")
	return nil
}

var million = decimal.NewFromInt(1_000_000)
var billion = decimal.NewFromInt(1_000_000_000)

func renderMessage(note Notification) string {
	builder := strings.Builder{}
	builder.WriteString("[GovContract Signal]\n")
	builder.WriteString(fmt.Sprintf("Ticker: %s", note.Ticker))
	if note.CompanyName != "" {
		builder.WriteString(fmt.Sprintf(" (%s)", note.CompanyName))
	}
	builder.WriteString("\n")
	builder.WriteString(fmt.Sprintf("Award: $%sM\n", note.AwardAmount.Div(million).StringFixed(1)))
	builder.WriteString(fmt.Sprintf("Market cap: $%sB\n", note.MarketCap.Div(billion).StringFixed(2)))
	builder.WriteString(fmt.Sprintf("Impact: %s%% (%s)\n", note.ImpactRatio.StringFixed(2), note.Tier))
	if note.AgencyName != "" {
		builder.WriteString(fmt.Sprintf("Agency: %s\n", note.AgencyName))
	}
	if note.ContractDate != nil {
		builder.WriteString(fmt.Sprintf("Contract date: %s\n", note.ContractDate.UTC().Format("2006-01-02")))
	}
	if note.SourceURL != "" {
		builder.WriteString(note.SourceURL)
	}
	return builder.String()
}

var _ Notifier = (*TelegramNotifier)(nil)
