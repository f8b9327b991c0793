package authcore

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// sinkTimeout bounds one sink delivery so a wedged sink cannot stall the
	// worker or shutdown.
	sinkTimeout = 2 * time.Second
	// flushDeadline bounds how long Close drains the queue before discarding
	// the remainder.
	flushDeadline = 5 * time.Second
)

// auditDispatcher moves security events off the request path. A single worker
// drains the queue into the sink; every delivery runs under its own deadline,
// and Close flushes the backlog for at most flushDeadline before counting the
// rest as dropped.
type auditDispatcher struct {
	sink       AuditSink
	queue      chan AuditEvent
	quit       chan struct{}
	workerDone chan struct{}
	dropIfFull bool

	delivered atomic.Uint64
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

func newAuditDispatcher(cfg AuditConfig, sink AuditSink) *auditDispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &auditDispatcher{
		sink:       sink,
		queue:      make(chan AuditEvent, cfg.BufferSize),
		quit:       make(chan struct{}),
		workerDone: make(chan struct{}),
		dropIfFull: cfg.DropIfFull,
	}
	go d.worker()
	return d
}

func (d *auditDispatcher) worker() {
	defer close(d.workerDone)

	for {
		select {
		case event := <-d.queue:
			d.deliver(event)
		case <-d.quit:
			d.flush()
			return
		}
	}
}

// flush empties the queue into the sink until it is drained or the deadline
// passes; whatever remains afterwards is accounted as dropped.
func (d *auditDispatcher) flush() {
	deadline := time.NewTimer(flushDeadline)
	defer deadline.Stop()

	for {
		select {
		case event := <-d.queue:
			d.deliver(event)
		case <-deadline.C:
			d.dropped.Add(uint64(len(d.queue)))
			return
		default:
			return
		}
	}
}

func (d *auditDispatcher) deliver(event AuditEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
	d.sink.Emit(ctx, event)
	cancel()
	d.delivered.Add(1)
}

// Emit queues an event. With DropIfFull the call never blocks; otherwise it
// waits for queue space until the caller's context is cancelled.
func (d *auditDispatcher) Emit(ctx context.Context, event AuditEvent) {
	if d == nil || d.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if d.dropIfFull {
		select {
		case d.queue <- event:
		default:
			d.dropped.Add(1)
		}
		return
	}

	select {
	case d.queue <- event:
	case <-ctx.Done():
		d.dropped.Add(1)
	case <-d.quit:
	}
}

// Close stops intake, flushes the backlog, and waits for the worker.
func (d *auditDispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.quit)
		<-d.workerDone
	})
}

func (d *auditDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

func (d *auditDispatcher) Delivered() uint64 {
	if d == nil {
		return 0
	}
	return d.delivered.Load()
}
