package notify

import (
	"context"
	"fmt"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"trade_engine/internal/bus"
	"trade_engine/internal/models"
	"trade_engine/pkg/logger"
)

type Notifier interface {
	Send(msg string)
	Sendf(format string, args ...any)
}

// Telegram — пассивный нотифайер: пушит события шины в чат.
type Telegram struct {
	bot    *tgbot.BotAPI
	chatID int64
}

func NewTelegram(token string, chatID int64) (*Telegram, error) {
	b, err := tgbot.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return &Telegram{bot: b, chatID: chatID}, nil
}

func (t *Telegram) Send(msg string) {
	if t == nil || t.bot == nil || t.chatID == 0 {
		return
	}
	_, _ = t.bot.Send(tgbot.NewMessage(t.chatID, msg))
}

func (t *Telegram) Sendf(format string, args ...any) { t.Send(fmt.Sprintf(format, args...)) }

// Stdout — запасной вариант, когда телеграм не сконфигурен.
type Stdout struct{}

func NewStdout() *Stdout { return &Stdout{} }

func (s *Stdout) Send(msg string)                  { logger.Info("notify: %s", msg) }
func (s *Stdout) Sendf(format string, args ...any) { logger.Info("notify: "+format, args...) }

// Run — подписка на шину: закрытия позиций и падение фида уходят в чат.
// Тики не шлём, их слишком много.
func Run(ctx context.Context, b *bus.Bus, n Notifier) {
	sub := b.Subscribe()
	defer sub.Cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			switch e := ev.(type) {
			case models.PositionClosed:
				n.Sendf("✅ [%s] позиция закрыта (вход ≈ %s)",
					e.Symbol, e.EnteredAt.Format("15:04:05"))
			case models.FeedUnavailable:
				n.Sendf("❌ Фид недоступен после %d попыток: %s", e.Attempts, e.LastErr)
			}
		}
	}
}
