package assistant

import (
	"context"
	"errors"
	"time"

	"study-bot/api/internal/llm"
	"study-bot/api/internal/session"
)

// ErrInvalidInputForState — тип сообщения не подходит текущему состоянию сессии.
var ErrInvalidInputForState = errors.New("input kind not accepted in current state")

type Kind int

const (
	KindText Kind = iota
	KindPhoto
	KindCommand
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindPhoto:
		return "photo"
	case KindCommand:
		return "command"
	default:
		return "other"
	}
}

// Event — входящее сообщение от транспорта.
type Event struct {
	ChatID  int64
	Kind    Kind
	Text    string
	Command string // без "/", только для KindCommand
	Image   []byte

	// FetchImage скачивает фото лениво: только если сессия его принимает.
	FetchImage func(ctx context.Context) ([]byte, error)
}

func (e Event) image(ctx context.Context) ([]byte, error) {
	if len(e.Image) > 0 || e.FetchImage == nil {
		return e.Image, nil
	}
	return e.FetchImage(ctx)
}

// Reply — один исходящий текст.
type Reply struct {
	Text string
	Menu bool // показать клавиатуру меню
	Rich bool // можно отправить с Markdown (если включено политикой форматирования)
}

type Replier interface {
	Reply(ctx context.Context, chatID int64, r Reply) error
}

type Backend interface {
	Complete(ctx context.Context, req llm.Request) llm.Result
	Model(c llm.Capability) string
}

// Entry — запись журнала об одном обращении к модели.
type Entry struct {
	RequestID  string
	ChatID     int64
	Mode       session.Mode
	Capability llm.Capability
	Model      string
	OK         bool
	Error      string
	Latency    time.Duration
	CreatedAt  time.Time
}

type Journal interface {
	Record(ctx context.Context, e Entry) error
}
