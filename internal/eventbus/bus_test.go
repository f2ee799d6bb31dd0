package eventbus

import (
	"context"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/toutaio/loom/internal/errs"
)

type orderPlaced struct{ ID int }

func TestSyncDeliveryRunsBeforePublishReturns(t *testing.T) {
	b := New(nil, 2, 8)
	defer b.Close(context.Background())

	var delivered int32
	if _, err := b.Subscribe(reflect.TypeOf(orderPlaced{}), func(e any) {
		atomic.AddInt32(&delivered, 1)
	}); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	if err := b.Publish(orderPlaced{ID: 1}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if atomic.LoadInt32(&delivered) != 1 {
		t.Fatalf("expected sync listener to run before Publish returned")
	}
}

func TestAsyncDeliveryEventuallyRuns(t *testing.T) {
	b := New(nil, 2, 8)
	defer b.Close(context.Background())

	var wg sync.WaitGroup
	wg.Add(1)
	if _, err := b.SubscribeAsync(reflect.TypeOf(orderPlaced{}), func(e any) {
		wg.Done()
	}); err != nil {
		t.Fatalf("SubscribeAsync: %v", err)
	}

	if err := b.Publish(orderPlaced{ID: 2}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("async listener never ran")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New(nil, 1, 8)
	defer b.Close(context.Background())

	var calls int32
	handle, err := b.Subscribe(reflect.TypeOf(orderPlaced{}), func(e any) {
		atomic.AddInt32(&calls, 1)
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if err := b.Unsubscribe(handle); err != nil {
		t.Fatalf("Unsubscribe: %v", err)
	}
	if err := b.Publish(orderPlaced{ID: 3}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Fatalf("expected 0 calls after unsubscribe, got %d", calls)
	}
}

func TestListenerCount(t *testing.T) {
	b := New(nil, 1, 8)
	defer b.Close(context.Background())

	et := reflect.TypeOf(orderPlaced{})
	if _, err := b.Subscribe(et, func(e any) {}); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if _, err := b.SubscribeAsync(et, func(e any) {}); err != nil {
		t.Fatalf("SubscribeAsync: %v", err)
	}
	if got := b.ListenerCount(et); got != 2 {
		t.Fatalf("expected 2 listeners, got %d", got)
	}
}

func TestPublishAfterCloseFails(t *testing.T) {
	b := New(nil, 1, 8)
	if err := b.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	err := b.Publish(orderPlaced{ID: 4})
	if !errs.Is(err, errs.CodeBusClosed) {
		t.Fatalf("expected BUS_CLOSED, got %v", err)
	}
}

func TestPanickingListenerDoesNotStopOtherDelivery(t *testing.T) {
	b := New(nil, 1, 8)
	defer b.Close(context.Background())

	et := reflect.TypeOf(orderPlaced{})
	var secondRan int32
	if _, err := b.Subscribe(et, func(e any) { panic("boom") }); err != nil {
		t.Fatalf("Subscribe panicker: %v", err)
	}
	if _, err := b.Subscribe(et, func(e any) { atomic.AddInt32(&secondRan, 1) }); err != nil {
		t.Fatalf("Subscribe second: %v", err)
	}

	if err := b.Publish(orderPlaced{ID: 5}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if atomic.LoadInt32(&secondRan) != 1 {
		t.Fatalf("expected second listener to still run after first panicked")
	}
}
