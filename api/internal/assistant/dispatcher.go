package assistant

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"study-bot/api/internal/llm"
	"study-bot/api/internal/session"
	"study-bot/api/internal/worker"
)

type Dispatcher struct {
	sessions *session.Store
	intents  *Intents
	backend  Backend
	pool     *worker.Pool
	out      Replier
	journal  Journal
	log      *zap.Logger
}

type Option func(*Dispatcher)

// WithJournal включает запись результатов обращений к модели.
func WithJournal(j Journal) Option { return func(d *Dispatcher) { d.journal = j } }

func WithLogger(l *zap.Logger) Option { return func(d *Dispatcher) { d.log = l } }

func NewDispatcher(sessions *session.Store, backend Backend, pool *worker.Pool, out Replier, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		sessions: sessions,
		backend:  backend,
		pool:     pool,
		out:      out,
		log:      zap.NewNop(),
	}
	for _, o := range opts {
		o(d)
	}
	d.log = d.log.Named("dispatcher")
	d.intents = NewIntents(sessions, d.log)
	return d
}

// Handle обрабатывает одно сообщение одного чата до конца, включая ответ
// модели. Сам запрос к модели выполняется в пуле.
func (d *Dispatcher) Handle(ctx context.Context, ev Event) {
	log := d.log.With(zap.Int64("chat_id", ev.ChatID), zap.Stringer("kind", ev.Kind))

	switch ev.Kind {
	case KindCommand:
		if ev.Command == "start" {
			log.Debug("start command")
			d.reply(ctx, log, ev.ChatID, d.intents.Start(ev.ChatID))
			return
		}
		d.reply(ctx, log, ev.ChatID, Reply{Text: menuOnlyText, Menu: true})
		return
	case KindText:
		// кнопка меню всегда важнее ожидаемого ввода
		if mode, ok := ModeForLabel(ev.Text); ok {
			log.Debug("mode selected", zap.Stringer("mode", mode))
			d.reply(ctx, log, ev.ChatID, d.intents.Select(ev.ChatID, mode))
			return
		}
	}

	state, mode := d.sessions.Snapshot(ev.ChatID)
	kind, err := accept(state, ev.Kind)
	if err != nil {
		log.Debug("input rejected", zap.Stringer("state", state), zap.Error(err))
		d.reply(ctx, log, ev.ChatID, guidanceFor(state, ev.Kind))
		return
	}
	d.complete(ctx, log, ev, mode, kind)
}

// accept решает, какой ввод допустим в состоянии. Состояние при отказе не меняется.
func accept(state session.State, kind Kind) (PayloadKind, error) {
	switch {
	case state == session.AwaitingInput && kind == KindText:
		return TextPayload, nil
	case state == session.AwaitingInput && kind == KindPhoto:
		return ImagePayload, nil
	case state == session.AwaitingText && kind == KindText:
		return TextPayload, nil
	default:
		return 0, fmt.Errorf("%w: %s in %s", ErrInvalidInputForState, kind, state)
	}
}

func (d *Dispatcher) complete(ctx context.Context, log *zap.Logger, ev Event, mode session.Mode, kind PayloadKind) {
	// сессия сбрасывается ровно один раз при любом исходе
	defer d.sessions.Clear(ev.ChatID)

	rid := uuid.NewString()
	log = log.With(zap.String("request_id", rid), zap.Stringer("mode", mode))

	d.reply(ctx, log, ev.ChatID, Reply{Text: thinkingFor(mode, kind)})

	p := Payload{Kind: kind, Text: ev.Text}
	if kind == ImagePayload {
		img, err := ev.image(ctx)
		if err != nil {
			log.Error("image download failed", zap.Error(err))
			d.reply(ctx, log, ev.ChatID, errorReply(err))
			return
		}
		p.Image = img
	}

	req, err := NewRequest(mode, p)
	if err != nil {
		log.Error("build request failed", zap.Error(err))
		d.reply(ctx, log, ev.ChatID, errorReply(err))
		return
	}

	// начатый запрос к модели доводим до конца и при остановке процесса
	callCtx := context.WithoutCancel(ctx)
	start := time.Now()
	fut := worker.Submit(callCtx, d.pool, func(ctx context.Context) (llm.Result, error) {
		return d.backend.Complete(ctx, req), nil
	})
	res, err := fut.Await(callCtx)
	if err != nil {
		res = llm.Failed(err)
	}
	took := time.Since(start)

	log.Info("completion finished",
		zap.Stringer("capability", req.Capability),
		zap.Bool("ok", res.OK()),
		zap.Duration("took", took))

	d.reply(ctx, log, ev.ChatID, resultReply(req.Capability, res))
	d.record(ctx, log, Entry{
		RequestID:  rid,
		ChatID:     ev.ChatID,
		Mode:       mode,
		Capability: req.Capability,
		Model:      d.backend.Model(req.Capability),
		OK:         res.OK(),
		Error:      res.Reason(),
		Latency:    took,
		CreatedAt:  start,
	})
}

func (d *Dispatcher) reply(ctx context.Context, log *zap.Logger, chatID int64, r Reply) {
	// ответ отправляем и после отмены ctx (остановка процесса)
	if err := d.out.Reply(context.WithoutCancel(ctx), chatID, r); err != nil {
		log.Warn("send reply failed", zap.Error(err))
	}
}

func (d *Dispatcher) record(ctx context.Context, log *zap.Logger, e Entry) {
	if d.journal == nil {
		return
	}
	if err := d.journal.Record(context.WithoutCancel(ctx), e); err != nil {
		log.Warn("journal write failed", zap.Error(err))
	}
}
