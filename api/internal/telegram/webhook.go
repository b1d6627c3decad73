package telegram

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"study-bot/api/internal/assistant"
)

// WebhookPath — секретный путь вебхука, производный от токена.
func WebhookPath(token string) string {
	return "/webhook/" + shortHash(token)
}

func shortHash(s string) string {
	// лёгкий хэш для пути вебхука (не крипто, но стабильно для токена)
	h := uint64(1469598103934665603)
	const prime = 1099511628211
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= prime
	}
	// 16-символный hex
	const hexdigits = "0123456789abcdef"
	out := make([]byte, 16)
	for i := 15; i >= 0; i-- {
		out[i] = hexdigits[h&0xF]
		h >>= 4
	}
	return string(out)
}

// SetWebhook регистрирует baseURL+path в Telegram, старые апдейты отбрасываются.
func (r *Router) SetWebhook(baseURL, path string) error {
	public := strings.TrimRight(baseURL, "/") + path
	wh, err := tgbotapi.NewWebhook(public)
	if err != nil {
		return fmt.Errorf("webhook url: %w", err)
	}
	wh.DropPendingUpdates = true
	if _, err := r.Bot.Request(wh); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	return nil
}

// WebhookHandler принимает апдейты и кладёт события в канал диспетчера.
func (r *Router) WebhookHandler(ctx context.Context, events chan<- assistant.Event) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		upd, err := r.Bot.HandleUpdate(req)
		if err != nil {
			r.log.Warn("bad webhook update", zap.Error(err))
			http.Error(w, "bad update", http.StatusBadRequest)
			return
		}
		r.Push(ctx, *upd, events)
		w.WriteHeader(http.StatusOK)
	})
}
