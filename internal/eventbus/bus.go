// Package eventbus implements loom.EventBus: a type-keyed publish/
// subscribe bus with synchronous (publisher-thread) and asynchronous
// (bounded worker pool) delivery, grounded on the teacher's
// message/bus.go channel-and-goroutine shape. Unlike the teacher, which
// spawns one goroutine per async message, the pool here is fixed-size
// (spec §4.5 requires a bounded worker pool, not unbounded fan-out) and
// listener handles are uuid-backed rather than %p-pointer strings.
package eventbus

import (
	"context"
	"reflect"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/toutaio/loom/internal/errs"
	"github.com/toutaio/loom/pkg/loom"
)

type subscription struct {
	handle   loom.ListenerHandle
	listener loom.Listener
}

type job struct {
	eventType reflect.Type
	event     any
	listener  loom.Listener
}

// Bus is the concrete loom.EventBus implementation.
type Bus struct {
	log *zap.Logger

	mu    sync.RWMutex
	sync_ map[reflect.Type][]subscription
	async map[reflect.Type][]subscription

	queue   chan job
	workers int
	wg      sync.WaitGroup

	closeOnce sync.Once
	closed    bool
	closedMu  sync.RWMutex
}

var _ loom.EventBus = (*Bus)(nil)

// New builds a Bus with the given worker pool size and queue capacity.
// workers and capacity are both clamped to at least 1.
func New(log *zap.Logger, workers, capacity int) *Bus {
	if log == nil {
		log = zap.NewNop()
	}
	if workers < 1 {
		workers = 1
	}
	if capacity < 1 {
		capacity = 1
	}

	b := &Bus{
		log:     log,
		sync_:   make(map[reflect.Type][]subscription),
		async:   make(map[reflect.Type][]subscription),
		queue:   make(chan job, capacity),
		workers: workers,
	}

	for i := 0; i < workers; i++ {
		b.wg.Add(1)
		go b.worker()
	}
	return b
}

func (b *Bus) worker() {
	defer b.wg.Done()
	for j := range b.queue {
		b.dispatchSafely(j.listener, j.event)
	}
}

func (b *Bus) dispatchSafely(l loom.Listener, event any) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("event listener panicked", zap.Any("recover", r))
		}
	}()
	l(event)
}

func (b *Bus) isClosed() bool {
	b.closedMu.RLock()
	defer b.closedMu.RUnlock()
	return b.closed
}

// Subscribe registers a synchronous listener for eventType.
func (b *Bus) Subscribe(eventType reflect.Type, listener loom.Listener) (loom.ListenerHandle, error) {
	return b.subscribe(eventType, listener, false)
}

// SubscribeAsync registers an asynchronous listener for eventType.
func (b *Bus) SubscribeAsync(eventType reflect.Type, listener loom.Listener) (loom.ListenerHandle, error) {
	return b.subscribe(eventType, listener, true)
}

func (b *Bus) subscribe(eventType reflect.Type, listener loom.Listener, async bool) (loom.ListenerHandle, error) {
	if b.isClosed() {
		return "", errs.BusClosed()
	}
	handle := loom.ListenerHandle(uuid.NewString())
	sub := subscription{handle: handle, listener: listener}

	b.mu.Lock()
	defer b.mu.Unlock()
	if async {
		b.async[eventType] = append(b.async[eventType], sub)
	} else {
		b.sync_[eventType] = append(b.sync_[eventType], sub)
	}
	return handle, nil
}

// Unsubscribe removes a previously registered listener, sync or async.
func (b *Bus) Unsubscribe(handle loom.ListenerHandle) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for t, subs := range b.sync_ {
		for i, s := range subs {
			if s.handle == handle {
				b.sync_[t] = append(subs[:i], subs[i+1:]...)
				return nil
			}
		}
	}
	for t, subs := range b.async {
		for i, s := range subs {
			if s.handle == handle {
				b.async[t] = append(subs[:i], subs[i+1:]...)
				return nil
			}
		}
	}
	return errs.New(errs.CodeBeanNotFound, "listener handle not found", nil).
		WithContext("handle", string(handle))
}

// Publish delivers event to every sync listener on the publisher's own
// goroutine (registration order), then enqueues a job per async
// listener onto the bounded worker pool.
func (b *Bus) Publish(event any) error {
	if b.isClosed() {
		return errs.BusClosed()
	}
	t := reflect.TypeOf(event)

	b.mu.RLock()
	syncSubs := append([]subscription{}, b.sync_[t]...)
	asyncSubs := append([]subscription{}, b.async[t]...)
	b.mu.RUnlock()

	for _, s := range syncSubs {
		b.dispatchSafely(s.listener, event)
	}

	for _, s := range asyncSubs {
		// A full queue blocks the publisher rather than dropping the
		// event, preserving at-least-once delivery for async listeners.
		b.queue <- job{eventType: t, event: event, listener: s.listener}
	}
	return nil
}

// ListenerCount returns the number of sync + async listeners registered
// for eventType.
func (b *Bus) ListenerCount(eventType reflect.Type) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.sync_[eventType]) + len(b.async[eventType])
}

// Close stops accepting new publications and waits (up to deadline)
// for every already-enqueued async job to drain.
func (b *Bus) Close(deadline context.Context) error {
	var err error
	b.closeOnce.Do(func() {
		b.closedMu.Lock()
		b.closed = true
		b.closedMu.Unlock()

		close(b.queue)

		drained := make(chan struct{})
		go func() {
			b.wg.Wait()
			close(drained)
		}()

		select {
		case <-drained:
		case <-deadline.Done():
			err = deadline.Err()
		}
	})
	return err
}
