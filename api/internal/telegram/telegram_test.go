package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"study-bot/api/internal/assistant"
)

type fakeAPI struct {
	mu      sync.Mutex
	sent    []tgbotapi.MessageConfig
	sendErr []error // по одной ошибке на вызов Send, дальше nil
	fileURL string
	updates [][]tgbotapi.Update
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c.(tgbotapi.MessageConfig))
	if len(f.sendErr) > 0 {
		err := f.sendErr[0]
		f.sendErr = f.sendErr[1:]
		return tgbotapi.Message{}, err
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetUpdates(tgbotapi.UpdateConfig) ([]tgbotapi.Update, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.updates) == 0 {
		return nil, nil
	}
	u := f.updates[0]
	f.updates = f.updates[1:]
	return u, nil
}

func (f *fakeAPI) GetFileDirectURL(string) (string, error) { return f.fileURL, nil }

func (f *fakeAPI) HandleUpdate(r *http.Request) (*tgbotapi.Update, error) {
	var upd tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		return nil, err
	}
	return &upd, nil
}

func newTestRouter(t *testing.T, api *fakeAPI, markdown bool) *Router {
	return NewRouter(api, markdown, zaptest.NewLogger(t))
}

func textMessage(chatID int64, text string) *tgbotapi.Message {
	return &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: chatID}, Text: text}
}

func TestReply_MenuAndMarkdown(t *testing.T) {
	api := &fakeAPI{}
	r := newTestRouter(t, api, true)

	require.NoError(t, r.Reply(context.Background(), 1, assistant.Reply{Text: "*hi*", Menu: true, Rich: true}))
	require.NoError(t, r.Reply(context.Background(), 1, assistant.Reply{Text: "plain"}))

	require.Len(t, api.sent, 2)
	assert.Equal(t, tgbotapi.ModeMarkdown, api.sent[0].ParseMode)
	kb, ok := api.sent[0].ReplyMarkup.(tgbotapi.ReplyKeyboardMarkup)
	require.True(t, ok)
	assert.True(t, kb.ResizeKeyboard)
	require.Len(t, kb.Keyboard, 2)
	assert.Equal(t, assistant.LabelSolve, kb.Keyboard[0][0].Text)
	assert.Equal(t, assistant.LabelShorten, kb.Keyboard[1][1].Text)

	assert.Empty(t, api.sent[1].ParseMode)
	assert.Nil(t, api.sent[1].ReplyMarkup)
}

func TestReply_PlainFormat(t *testing.T) {
	api := &fakeAPI{}
	r := newTestRouter(t, api, false)

	require.NoError(t, r.Reply(context.Background(), 1, assistant.Reply{Text: "x^2", Rich: true}))
	assert.Empty(t, api.sent[0].ParseMode)
}

func TestReply_MarkdownFallback(t *testing.T) {
	api := &fakeAPI{sendErr: []error{errors.New("Bad Request: can't parse entities: Can't find end of the entity starting at byte offset 3")}}
	r := newTestRouter(t, api, true)

	require.NoError(t, r.Reply(context.Background(), 1, assistant.Reply{Text: "a_b", Rich: true}))

	require.Len(t, api.sent, 2)
	assert.Equal(t, tgbotapi.ModeMarkdown, api.sent[0].ParseMode)
	assert.Empty(t, api.sent[1].ParseMode)
	assert.Equal(t, "a_b", api.sent[1].Text)
}

func TestReply_OtherErrorsAreReturned(t *testing.T) {
	api := &fakeAPI{sendErr: []error{errors.New("Forbidden: bot was blocked by the user")}}
	r := newTestRouter(t, api, true)

	err := r.Reply(context.Background(), 1, assistant.Reply{Text: "hi", Rich: true})
	assert.Error(t, err)
	assert.Len(t, api.sent, 1)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "абв", truncate("абв", 3))
	assert.Equal(t, "аб…", truncate("абв", 2))

	long := strings.Repeat("я", maxMessageLen+10)
	got := truncate(long, maxMessageLen)
	assert.Equal(t, maxMessageLen+1, len([]rune(got)))
}

func TestEvent(t *testing.T) {
	r := newTestRouter(t, &fakeAPI{}, true)

	cmd := textMessage(1, "/Start")
	cmd.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: 6}}
	ev, ok := r.Event(tgbotapi.Update{Message: cmd})
	require.True(t, ok)
	assert.Equal(t, assistant.KindCommand, ev.Kind)
	assert.Equal(t, "start", ev.Command)

	ev, ok = r.Event(tgbotapi.Update{Message: textMessage(2, assistant.LabelSolve)})
	require.True(t, ok)
	assert.Equal(t, assistant.KindText, ev.Kind)
	assert.Equal(t, int64(2), ev.ChatID)
	assert.Equal(t, assistant.LabelSolve, ev.Text)

	photo := textMessage(3, "")
	photo.Photo = []tgbotapi.PhotoSize{{FileID: "s", Width: 90, Height: 90}, {FileID: "l", Width: 1280, Height: 960}}
	ev, ok = r.Event(tgbotapi.Update{Message: photo})
	require.True(t, ok)
	assert.Equal(t, assistant.KindPhoto, ev.Kind)
	assert.NotNil(t, ev.FetchImage)
	assert.Nil(t, ev.Image)

	doc := textMessage(4, "")
	doc.Document = &tgbotapi.Document{FileID: "d", MimeType: "image/png"}
	ev, _ = r.Event(tgbotapi.Update{Message: doc})
	assert.Equal(t, assistant.KindPhoto, ev.Kind)

	pdf := textMessage(4, "")
	pdf.Document = &tgbotapi.Document{FileID: "d", MimeType: "application/pdf"}
	ev, _ = r.Event(tgbotapi.Update{Message: pdf})
	assert.Equal(t, assistant.KindOther, ev.Kind)

	sticker := textMessage(5, "")
	sticker.Sticker = &tgbotapi.Sticker{FileID: "st"}
	ev, _ = r.Event(tgbotapi.Update{Message: sticker})
	assert.Equal(t, assistant.KindOther, ev.Kind)

	_, ok = r.Event(tgbotapi.Update{EditedMessage: textMessage(6, "x")})
	assert.False(t, ok)
}

func TestLargestPhoto(t *testing.T) {
	got := largestPhoto([]tgbotapi.PhotoSize{
		{FileID: "m", Width: 320, Height: 240},
		{FileID: "xl", Width: 1280, Height: 960},
		{FileID: "s", Width: 90, Height: 68},
	})
	assert.Equal(t, "xl", got.FileID)
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func TestFetchImage(t *testing.T) {
	img := pngBytes(t, 4, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(img)
	}))
	defer srv.Close()

	api := &fakeAPI{fileURL: srv.URL + "/file.png"}
	r := newTestRouter(t, api, true)

	got, err := r.fetcher("id")(context.Background())
	require.NoError(t, err)
	assert.Equal(t, img, got)

	api.fileURL = srv.URL + "/missing"
	_, err = r.fetcher("id")(context.Background())
	assert.ErrorContains(t, err, "status 404")
}

func TestFitImage(t *testing.T) {
	small := pngBytes(t, 10, 10)
	out, err := fitImage(small, 100)
	require.NoError(t, err)
	assert.Equal(t, small, out)

	out, err = fitImage(pngBytes(t, 40, 20), 200)
	require.NoError(t, err)
	cfg, format, err := image.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.LessOrEqual(t, cfg.Width*cfg.Height, 200)

	_, err = fitImage([]byte("not an image"), 100)
	assert.Error(t, err)
}

func TestRetryDelayFromError(t *testing.T) {
	assert.Equal(t, time.Duration(0), retryDelayFromError(nil))
	assert.Equal(t, 7*time.Second, retryDelayFromError(errors.New("Too Many Requests: retry after 7")))
	assert.Equal(t, 3*time.Second, retryDelayFromError(errors.New("too many requests")))
	assert.Equal(t, time.Second, retryDelayFromError(errors.New("boom")))
}

func TestWebhookPath(t *testing.T) {
	p := WebhookPath("123:abc")
	assert.Equal(t, p, WebhookPath("123:abc"))
	assert.NotEqual(t, p, WebhookPath("123:abd"))
	assert.Len(t, strings.TrimPrefix(p, "/webhook/"), 16)
	assert.NotContains(t, p, "abc")
}

func TestWebhookHandler(t *testing.T) {
	r := newTestRouter(t, &fakeAPI{}, true)
	events := make(chan assistant.Event, 1)
	h := r.WebhookHandler(context.Background(), events)

	body := `{"update_id":1,"message":{"message_id":5,"chat":{"id":42,"type":"private"},"text":"привет"}}`
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook/x", strings.NewReader(body)))

	assert.Equal(t, http.StatusOK, rec.Code)
	ev := <-events
	assert.Equal(t, int64(42), ev.ChatID)
	assert.Equal(t, assistant.KindText, ev.Kind)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook/x", strings.NewReader("{")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPoll(t *testing.T) {
	api := &fakeAPI{updates: [][]tgbotapi.Update{
		{{UpdateID: 10, Message: textMessage(1, "a")}, {UpdateID: 11, CallbackQuery: &tgbotapi.CallbackQuery{}}},
		{{UpdateID: 12, Message: textMessage(2, "b")}},
	}}
	r := newTestRouter(t, api, true)
	events := make(chan assistant.Event, 4)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Poll(ctx, events) }()

	first, second := <-events, <-events
	assert.Equal(t, int64(1), first.ChatID)
	assert.Equal(t, int64(2), second.ChatID)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Poll did not stop")
	}
}
