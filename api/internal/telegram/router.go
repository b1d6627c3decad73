package telegram

import (
	"context"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"study-bot/api/internal/assistant"
)

// API — часть *tgbotapi.BotAPI, которой пользуется адаптер.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdates(cfg tgbotapi.UpdateConfig) ([]tgbotapi.Update, error)
	GetFileDirectURL(fileID string) (string, error)
	HandleUpdate(r *http.Request) (*tgbotapi.Update, error)
}

const maxMessageLen = 3900

// Router — транспорт: апдейты Telegram в события диспетчера и ответы обратно.
type Router struct {
	Bot      API
	Markdown bool // отправлять Rich-ответы с parse_mode=Markdown

	httpc *http.Client
	log   *zap.Logger
}

func NewRouter(bot API, markdown bool, log *zap.Logger) *Router {
	return &Router{Bot: bot, Markdown: markdown, httpc: httpClient(), log: log.Named("telegram")}
}

// Reply реализует assistant.Replier.
func (r *Router) Reply(_ context.Context, chatID int64, rep assistant.Reply) error {
	msg := tgbotapi.NewMessage(chatID, truncate(rep.Text, maxMessageLen))
	if rep.Menu {
		msg.ReplyMarkup = menuKeyboard()
	}
	if rep.Rich && r.Markdown {
		msg.ParseMode = tgbotapi.ModeMarkdown
	}

	_, err := r.Bot.Send(msg)
	if err != nil && msg.ParseMode != "" && isMarkupError(err) {
		// модель прислала разметку, которую Telegram не принял — шлём как есть
		r.log.Debug("markdown rejected, resending plain", zap.Int64("chat_id", chatID), zap.Error(err))
		msg.ParseMode = ""
		_, err = r.Bot.Send(msg)
	}
	return err
}

func isMarkupError(err error) bool {
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "can't parse entities") || strings.Contains(s, "can't find end of the entity")
}

func truncate(s string, limit int) string {
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit]) + "…"
}

var _ assistant.Replier = (*Router)(nil)
