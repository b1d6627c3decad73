package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"study-bot/api/internal/util"
)

var (
	// ErrBackendUnavailable — сеть/транспорт или ошибка на стороне модели.
	ErrBackendUnavailable = errors.New("backend unavailable")
	// ErrEmptyResponse — вызов прошёл, но ответа нет (нет choices / пустой текст).
	ErrEmptyResponse = errors.New("empty response")
	// ErrInvalidRequest — запрос собран неверно, до провайдера не дошёл.
	ErrInvalidRequest = errors.New("invalid request")
)

type Capability int

const (
	TextCompletion Capability = iota
	VisionCompletion
)

func (c Capability) String() string {
	if c == VisionCompletion {
		return "vision"
	}
	return "text"
}

// Request — то, что собирает prompt builder и исполняет Gateway.
type Request struct {
	Capability Capability
	Prompt     string
	Image      []byte
}

// ChatRequest — один вызов chat completion у провайдера.
type ChatRequest struct {
	Model       string
	System      string
	Prompt      string
	Image       []byte
	MIME        string
	MaxTokens   int
	Temperature float64
}

type Provider interface {
	Name() string
	Chat(ctx context.Context, in ChatRequest) (string, error)
}

// Result — Ok(content) или Failed(err). Ошибка не пробрасывается дальше Gateway.
type Result struct {
	Content string
	Err     error
}

func Ok(content string) Result { return Result{Content: content} }
func Failed(err error) Result  { return Result{Err: err} }

func (r Result) OK() bool { return r.Err == nil }

// Reason — текст ошибки как есть, его видит пользователь.
func (r Result) Reason() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

const DefaultSystem = "Ты полезный помощник для школьников. Объясняй понятно, используй простые примеры."

type Options struct {
	TextModel   string
	VisionModel string
	System      string
	MaxTokens   int
	Temperature float64
}

type Gateway struct {
	p    Provider
	opts Options
	log  *zap.Logger
}

func NewGateway(p Provider, opts Options, log *zap.Logger) *Gateway {
	if opts.System == "" {
		opts.System = DefaultSystem
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 1500
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Gateway{p: p, opts: opts, log: log.Named("llm")}
}

func (g *Gateway) Provider() string { return g.p.Name() }

// Model — фиксированная модель для capability.
func (g *Gateway) Model(c Capability) string {
	if c == VisionCompletion {
		return g.opts.VisionModel
	}
	return g.opts.TextModel
}

func (g *Gateway) CompleteText(ctx context.Context, prompt string) Result {
	return g.Complete(ctx, Request{Capability: TextCompletion, Prompt: prompt})
}

func (g *Gateway) CompleteImage(ctx context.Context, prompt string, image []byte) Result {
	return g.Complete(ctx, Request{Capability: VisionCompletion, Prompt: prompt, Image: image})
}

// Complete делает ровно один блокирующий вызов провайдера. Без ретраев.
func (g *Gateway) Complete(ctx context.Context, req Request) (res Result) {
	in := ChatRequest{
		Model:       g.Model(req.Capability),
		Prompt:      req.Prompt,
		MaxTokens:   g.opts.MaxTokens,
		Temperature: g.opts.Temperature,
	}
	if req.Capability == VisionCompletion {
		if len(req.Image) == 0 {
			return Failed(fmt.Errorf("%w: image payload is empty", ErrInvalidRequest))
		}
		in.Image = req.Image
		in.MIME = util.ImageMIME(req.Image)
	} else {
		in.System = g.opts.System
	}

	log := g.log.With(
		zap.String("provider", g.p.Name()),
		zap.String("capability", req.Capability.String()),
		zap.String("model", in.Model),
	)
	log.Info("sending completion request")

	defer func() {
		if r := recover(); r != nil {
			log.Error("provider panicked", zap.Any("panic", r))
			res = Failed(fmt.Errorf("%w: %v", ErrBackendUnavailable, r))
		}
	}()

	start := time.Now()
	out, err := g.p.Chat(ctx, in)
	if err != nil {
		log.Error("completion failed", zap.Error(err), zap.Duration("took", time.Since(start)))
		return Failed(err)
	}
	// текст модели уходит пользователю как есть, без обрезки и снятия ```
	if util.IsBlank(out) {
		log.Warn("completion returned no content", zap.Duration("took", time.Since(start)))
		return Failed(ErrEmptyResponse)
	}
	log.Info("completion done", zap.Duration("took", time.Since(start)), zap.Int("chars", len(out)))
	return Ok(out)
}

// Probe — проверка связи с текстовой моделью при старте.
func (g *Gateway) Probe(ctx context.Context) error {
	_, err := g.p.Chat(ctx, ChatRequest{
		Model:     g.opts.TextModel,
		Prompt:    "Тестовое сообщение. Ответь 'ok' если работаешь.",
		MaxTokens: 10,
	})
	return err
}
