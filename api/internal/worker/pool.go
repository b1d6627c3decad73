// Package worker выносит долгие блокирующие вызовы (запросы к LLM) из
// горутины диспетчера. Pool может ограничивать число одновременных задач,
// результат отдаётся через Future.
package worker

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
)

type Pool struct {
	sem *semaphore.Weighted // nil: без лимита
	wg  sync.WaitGroup
}

// NewPool создаёт пул на size одновременных задач. size <= 0 — без лимита:
// зависший запрос одного чата тогда не занимает слот остальных.
func NewPool(size int) *Pool {
	if size <= 0 {
		return &Pool{}
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size))}
}

// Wait блокируется, пока не завершатся все запущенные задачи.
func (p *Pool) Wait() { p.wg.Wait() }

type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

// Await ждёт результат задачи. Отмена ctx прерывает ожидание, но не саму задачу.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Submit запускает fn в пуле. Слот ждём внутри горутины задачи, поэтому
// вызывающий не блокируется даже при полностью занятом пуле.
func Submit[T any](ctx context.Context, p *Pool, fn func(context.Context) (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer close(f.done)

		if p.sem != nil {
			if err := p.sem.Acquire(ctx, 1); err != nil {
				f.err = err
				return
			}
			defer p.sem.Release(1)
		}

		defer func() {
			if r := recover(); r != nil {
				f.err = fmt.Errorf("worker: task panicked: %v", r)
			}
		}()
		f.val, f.err = fn(ctx)
	}()
	return f
}
