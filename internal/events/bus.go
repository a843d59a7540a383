// Package events is the in-process, fire-and-forget event bus. Subscribers
// run in their own goroutines; a failing or panicking subscriber is logged
// and never reaches the publisher.
package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

type Handler[T any] func(ctx context.Context, evt T) error

type subscription[T any] struct {
	name string
	fn   Handler[T]
}

type BusOptions struct {
	// Timeout bounds a single delivery. Zero means 10s.
	Timeout time.Duration
	// OnFailure is called with the subscriber name after an error or panic.
	OnFailure func(subscriber string)
}

type Bus[T any] struct {
	log  *zap.Logger
	opts BusOptions

	mu   sync.RWMutex
	subs []subscription[T]
	wg   sync.WaitGroup
}

func NewBus[T any](log *zap.Logger, opts BusOptions) *Bus[T] {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &Bus[T]{log: log, opts: opts}
}

func (b *Bus[T]) Subscribe(name string, fn Handler[T]) {
	b.mu.Lock()
	b.subs = append(b.subs, subscription[T]{name: name, fn: fn})
	b.mu.Unlock()
}

// Publish returns immediately. Deliveries outlive the caller's context
// cancellation but keep its values (trace ids).
func (b *Bus[T]) Publish(ctx context.Context, evt T) {
	b.mu.RLock()
	subs := append([]subscription[T](nil), b.subs...)
	b.mu.RUnlock()

	base := context.WithoutCancel(ctx)
	for _, s := range subs {
		b.wg.Add(1)
		go b.deliver(base, s, evt)
	}
}

func (b *Bus[T]) deliver(ctx context.Context, s subscription[T], evt T) {
	defer b.wg.Done()
	ctx, cancel := context.WithTimeout(ctx, b.opts.Timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			b.fail(s.name, fmt.Errorf("panic: %v", r))
		}
	}()
	if err := s.fn(ctx, evt); err != nil {
		b.fail(s.name, err)
	}
}

func (b *Bus[T]) fail(name string, err error) {
	b.log.Error("event subscriber failed", zap.String("subscriber", name), zap.Error(err))
	if b.opts.OnFailure != nil {
		b.opts.OnFailure(name)
	}
}

// Wait blocks until every delivery started so far has returned.
func (b *Bus[T]) Wait() {
	b.wg.Wait()
}
