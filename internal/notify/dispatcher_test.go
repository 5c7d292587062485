package notify

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"storefront/internal/obs"
)

type recordingChannel struct {
	name  string
	mu    sync.Mutex
	got   []Event
	err   error
	panic bool
	block chan struct{}
}

func (r *recordingChannel) Name() string { return r.name }

func (r *recordingChannel) Deliver(ctx context.Context, ev Event) error {
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if r.panic {
		panic("boom")
	}
	r.mu.Lock()
	r.got = append(r.got, ev)
	r.mu.Unlock()
	return r.err
}

func (r *recordingChannel) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.got)
}

func TestDispatcher_DeliversToAllChannels(t *testing.T) {
	a := &recordingChannel{name: "a"}
	b := &recordingChannel{name: "b", err: errors.New("down")}
	c := &recordingChannel{name: "c", panic: true}
	d := NewDispatcher(obs.Discard(), 8, time.Second, a, b, c)
	d.Start(context.Background(), 2)

	for i := 0; i < 5; i++ {
		if !d.Submit(Event{Kind: OrderCreated}) {
			t.Fatalf("submit %d rejected", i)
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := d.Drain(ctx); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if a.count() != 5 || b.count() != 5 {
		t.Fatalf("a=%d b=%d", a.count(), b.count())
	}
	st := d.Stats()
	if st.Processed != 5 || st.Failed != 10 {
		t.Fatalf("stats %+v", st)
	}
}

func TestDispatcher_SubmitNeverBlocks(t *testing.T) {
	block := make(chan struct{})
	slow := &recordingChannel{name: "slow", block: block}
	d := NewDispatcher(obs.Discard(), 1, time.Second, slow)
	d.Start(context.Background(), 1)

	var accepted atomic.Int32
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			if d.Submit(Event{Kind: OrderCreated}) {
				accepted.Add(1)
			}
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("submit blocked")
	}
	if d.Stats().Dropped == 0 {
		t.Fatalf("expected drops with a full queue")
	}
	close(block)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = d.Drain(ctx)
	if slow.count() != int(accepted.Load()) {
		t.Fatalf("delivered %d accepted %d", slow.count(), accepted.Load())
	}
}

func TestDispatcher_SubmitAfterDrain(t *testing.T) {
	d := NewDispatcher(obs.Discard(), 4, time.Second)
	d.Start(context.Background(), 1)
	_ = d.Drain(context.Background())
	if d.Submit(Event{Kind: OrderCreated}) {
		t.Fatalf("closed dispatcher accepted an event")
	}
}

func TestDispatcher_ChannelTimeout(t *testing.T) {
	stuck := &recordingChannel{name: "stuck", block: make(chan struct{})}
	d := NewDispatcher(obs.Discard(), 4, 50*time.Millisecond, stuck)
	d.Start(context.Background(), 1)
	d.Submit(Event{Kind: OrderStatusChanged})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := d.Drain(ctx); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if d.Stats().Failed != 1 {
		t.Fatalf("timeout should count as failure: %+v", d.Stats())
	}
}
