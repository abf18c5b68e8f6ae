package notifier

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"OptionSentinel/internal/logger"
)

// CommandHandler answers a chat command such as "/summary put".
// An empty reply sends nothing.
type CommandHandler func(ctx context.Context, command string) string

// StartPolling long-polls for updates and answers commands from the
// configured chat. Blocks until ctx is cancelled.
func (t *Telegram) StartPolling(ctx context.Context, handler CommandHandler) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := t.bot.GetUpdatesChan(u)
	defer t.bot.StopReceivingUpdates()

	logger.Infof("telegram polling started")
	for {
		select {
		case <-ctx.Done():
			logger.Infof("telegram polling stopped")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			msg := update.Message
			if msg == nil || msg.Chat == nil || msg.Text == "" {
				continue
			}
			if msg.Chat.ID != t.chatID {
				logger.Warnf("ignoring message from chat %d", msg.Chat.ID)
				continue
			}
			text := strings.TrimSpace(msg.Text)
			logger.Infof("received command: %s", text)
			reply := handler(ctx, text)
			if reply == "" {
				continue
			}
			if err := t.Send(ctx, reply); err != nil {
				logger.Errorf("send reply: %v", err)
			}
		}
	}
}
