package assistant

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// lanes — по горутине на чат с очередью событий. Чаты обрабатываются
// параллельно, сообщения одного чата — строго по порядку.
type lanes struct {
	mu sync.Mutex
	m  map[int64][]Event // есть ключ = горутина чата жива
	wg sync.WaitGroup
}

func (l *lanes) push(ctx context.Context, ev Event, handle func(context.Context, Event), log *zap.Logger) {
	l.mu.Lock()
	if q, ok := l.m[ev.ChatID]; ok {
		l.m[ev.ChatID] = append(q, ev)
		l.mu.Unlock()
		return
	}
	l.m[ev.ChatID] = nil
	l.mu.Unlock()

	l.wg.Add(1)
	go l.drain(ctx, ev, handle, log)
}

func (l *lanes) drain(ctx context.Context, ev Event, handle func(context.Context, Event), log *zap.Logger) {
	defer l.wg.Done()
	id := ev.ChatID
	for {
		handle(ctx, ev)

		l.mu.Lock()
		q := l.m[id]
		if len(q) == 0 || ctx.Err() != nil {
			if len(q) > 0 {
				log.Warn("dropping queued events on shutdown", zap.Int64("chat_id", id), zap.Int("count", len(q)))
			}
			delete(l.m, id)
			l.mu.Unlock()
			return
		}
		ev = q[0]
		l.m[id] = q[1:]
		l.mu.Unlock()
	}
}

// Run — цикл диспетчера: читает события и раздаёт их по чатам, сам не
// блокируется на обработке. Возвращается после закрытия events или отмены
// ctx, дождавшись уже начатых обработчиков.
func (d *Dispatcher) Run(ctx context.Context, events <-chan Event) error {
	l := &lanes{m: make(map[int64][]Event)}
	defer l.wg.Wait()

	d.log.Info("dispatch loop started")
	for {
		select {
		case <-ctx.Done():
			d.log.Info("dispatch loop stopped", zap.Error(ctx.Err()))
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				d.log.Info("event stream closed")
				return nil
			}
			l.push(ctx, ev, d.Handle, d.log)
		}
	}
}
