package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap/zaptest"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	fail   bool
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fail {
		return errors.New("broker down")
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	return nil
}

func TestProducer_FlushesOnClose(t *testing.T) {
	t.Parallel()

	w := &fakeWriter{}
	p := newProducer(w, 16, zaptest.NewLogger(t))
	p.Start()

	for i := 0; i < 5; i++ {
		if err := p.Publish(context.Background(), []byte("t1"), []byte("v")); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}
	p.Close()
	p.WaitClosed()

	if len(w.msgs) != 5 {
		t.Fatalf("expected 5 messages flushed, got %d", len(w.msgs))
	}
	if !w.closed {
		t.Fatalf("expected writer to be closed")
	}
	if err := p.Publish(context.Background(), nil, []byte("late")); !errors.Is(err, ErrProducerClosed) {
		t.Fatalf("expected ErrProducerClosed, got %v", err)
	}
	p.Close()
}

func TestProducer_WriteErrorsDoNotStopLoop(t *testing.T) {
	t.Parallel()

	w := &fakeWriter{fail: true}
	p := newProducer(w, 4, zaptest.NewLogger(t))
	p.Start()
	_ = p.Publish(context.Background(), nil, []byte("a"))
	_ = p.Publish(context.Background(), nil, []byte("b"))
	p.Close()
	p.WaitClosed()

	if !w.closed {
		t.Fatalf("expected loop to finish and close writer")
	}
}

func TestProducer_PublishRespectsContext(t *testing.T) {
	t.Parallel()

	p := newProducer(&fakeWriter{}, 1, zaptest.NewLogger(t))
	// not started: the inbox fills after one message
	if err := p.Publish(context.Background(), nil, []byte("a")); err != nil {
		t.Fatalf("publish: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.Publish(ctx, nil, []byte("b")); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
