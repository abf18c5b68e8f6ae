package notifier

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"OptionSentinel/internal/logger"
)

// Telegram sends messages to a single chat through the Bot API.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	// backoff is the base delay between retries; attempt i waits backoff<<i.
	backoff time.Duration
}

// NewTelegram authorizes the bot against the public Bot API endpoint.
func NewTelegram(token string, chatID int64, proxyURL string) (*Telegram, error) {
	return NewTelegramWithEndpoint(token, chatID, tgbotapi.APIEndpoint, newHTTPClient(proxyURL))
}

// NewTelegramWithEndpoint is NewTelegram with an explicit endpoint format
// ("…/bot%s/%s") and client.
func NewTelegramWithEndpoint(token string, chatID int64, endpoint string, client *http.Client) (*Telegram, error) {
	if token == "" || chatID == 0 {
		return nil, fmt.Errorf("telegram: bot token and chat id are required")
	}
	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("telegram: authorize: %w", err)
	}
	logger.Infof("telegram authorized as @%s", bot.Self.UserName)
	return &Telegram{bot: bot, chatID: chatID, backoff: time.Second}, nil
}

// Send delivers an HTML-formatted message to the configured chat.
func (t *Telegram) Send(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram: send: %w", err)
	}
	return nil
}

// SendWithRetry retries Send with exponential backoff.
func (t *Telegram) SendWithRetry(ctx context.Context, text string, maxRetries int) error {
	var lastErr error
	for i := 0; i < maxRetries; i++ {
		err := t.Send(ctx, text)
		if err == nil {
			return nil
		}
		lastErr = err
		logger.Warnf("telegram send attempt %d/%d failed: %v", i+1, maxRetries, err)
		if i == maxRetries-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(t.backoff << uint(i)):
		}
	}
	return fmt.Errorf("telegram: all %d attempts failed: %w", maxRetries, lastErr)
}

func newHTTPClient(proxyURL string) *http.Client {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	// Long polling holds requests for up to 30s.
	return &http.Client{Timeout: 45 * time.Second, Transport: transport}
}
