package telegram

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"study-bot/api/internal/assistant"
)

// Event переводит апдейт в событие диспетчера. false, если апдейт не про сообщение в чат.
func (r *Router) Event(upd tgbotapi.Update) (assistant.Event, bool) {
	msg := upd.Message
	if msg == nil || msg.Chat == nil {
		return assistant.Event{}, false
	}
	ev := assistant.Event{ChatID: msg.Chat.ID, Text: msg.Text}

	switch {
	case msg.IsCommand():
		ev.Kind = assistant.KindCommand
		ev.Command = strings.ToLower(msg.Command())
	case len(msg.Photo) > 0:
		ev.Kind = assistant.KindPhoto
		ev.Text = msg.Caption
		ev.FetchImage = r.fetcher(largestPhoto(msg.Photo).FileID)
	case msg.Document != nil && strings.HasPrefix(msg.Document.MimeType, "image/"):
		// картинка, отправленная файлом
		ev.Kind = assistant.KindPhoto
		ev.Text = msg.Caption
		ev.FetchImage = r.fetcher(msg.Document.FileID)
	case msg.Text != "":
		ev.Kind = assistant.KindText
	default:
		ev.Kind = assistant.KindOther
	}
	return ev, true
}

func largestPhoto(sizes []tgbotapi.PhotoSize) tgbotapi.PhotoSize {
	best := sizes[len(sizes)-1]
	for _, p := range sizes {
		if p.Width*p.Height > best.Width*best.Height {
			best = p
		}
	}
	return best
}

func (r *Router) fetcher(fileID string) func(ctx context.Context) ([]byte, error) {
	return func(ctx context.Context) ([]byte, error) {
		return r.fetchImage(ctx, fileID)
	}
}

// Push отправляет событие в канал диспетчера, если апдейт что-то значит.
func (r *Router) Push(ctx context.Context, upd tgbotapi.Update, events chan<- assistant.Event) {
	ev, ok := r.Event(upd)
	if !ok {
		return
	}
	select {
	case events <- ev:
	case <-ctx.Done():
	}
}
