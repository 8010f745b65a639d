package logger

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Closer flushes buffered log output on shutdown.
type Closer interface {
	Close()
}

type nopCloser struct{}

func (nopCloser) Close() {}

// asyncCore is the buffer shared by an AsyncHandler and every derived
// handler produced via WithAttrs or WithGroup. A record is either queued
// here or counted as dropped; after Close the queue is fully drained, so
// delivered plus dropped always equals the number of Handle calls.
type asyncCore struct {
	queue   chan slog.Record
	workers sync.WaitGroup
	dropped atomic.Int64
}

// AsyncHandler decouples log emission from the stdout write path. Assessment
// runs log from many goroutines at once and must not stall on I/O.
type AsyncHandler struct {
	inner slog.Handler
	core  *asyncCore
}

// NewAsyncHandler starts workers goroutines draining a buffer of chanSize
// records into inner.
func NewAsyncHandler(inner slog.Handler, chanSize, workers int) *AsyncHandler {
	core := &asyncCore{queue: make(chan slog.Record, chanSize)}
	for range workers {
		core.workers.Add(1)
		go func() {
			defer core.workers.Done()
			for rec := range core.queue {
				_ = inner.Handle(context.Background(), rec)
			}
		}()
	}
	return &AsyncHandler{inner: inner, core: core}
}

func (h *AsyncHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle queues the record, or drops it when the buffer is full. Never blocks.
func (h *AsyncHandler) Handle(_ context.Context, rec slog.Record) error { //nolint:gocritic // slog.Handler interface requires value receiver
	select {
	case h.core.queue <- rec:
	default:
		h.core.dropped.Add(1)
	}
	return nil
}

func (h *AsyncHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &AsyncHandler{inner: h.inner.WithAttrs(attrs), core: h.core}
}

func (h *AsyncHandler) WithGroup(name string) slog.Handler {
	return &AsyncHandler{inner: h.inner.WithGroup(name), core: h.core}
}

// DroppedCount reports how many records were discarded on a full buffer.
func (h *AsyncHandler) DroppedCount() int64 {
	return h.core.dropped.Load()
}

// Close stops accepting records and blocks until the buffer is drained.
func (h *AsyncHandler) Close() {
	close(h.core.queue)
	h.core.workers.Wait()
}
