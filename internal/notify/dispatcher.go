package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// Stats счётчики диспетчера
type Stats struct {
	Submitted uint64 `json:"submitted"`
	Dropped   uint64 `json:"dropped"`
	Processed uint64 `json:"processed"`
	Failed    uint64 `json:"failed"`
	Pending   int    `json:"pending"`
}

// Dispatcher decouples request handling from notification delivery.
// Events wait in a bounded queue; a fixed pool of workers hands each event
// to every channel concurrently. Delivery is at most once.
type Dispatcher struct {
	channels []Channel
	log      *slog.Logger
	timeout  time.Duration

	mu     sync.RWMutex
	queue  chan Event
	closed bool
	wg     sync.WaitGroup

	submitted atomic.Uint64
	dropped   atomic.Uint64
	processed atomic.Uint64
	failed    atomic.Uint64
}

// NewDispatcher создаёт диспетчер с очередью размера queueSize
func NewDispatcher(logger *slog.Logger, queueSize int, timeout time.Duration, channels ...Channel) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 256
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{
		channels: channels,
		log:      logger,
		timeout:  timeout,
		queue:    make(chan Event, queueSize),
	}
}

// Start запускает workers обработчиков. Отмена ctx прерывает текущие доставки.
func (d *Dispatcher) Start(ctx context.Context, workers int) {
	if workers <= 0 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case ev, ok := <-d.queue:
					if !ok {
						return
					}
					d.dispatch(ctx, ev)
				}
			}
		}()
	}
}

// Submit enqueues ev without blocking. It returns false when the queue is full
// or the dispatcher is closed; the event is then dropped.
func (d *Dispatcher) Submit(ev Event) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.dropped.Add(1)
		d.log.Warn("notify_dropped", "reason", "closed", "kind", ev.Kind, "order_id", ev.Order.ID)
		return false
	}
	select {
	case d.queue <- ev:
		d.submitted.Add(1)
		return true
	default:
		d.dropped.Add(1)
		d.log.Warn("notify_dropped", "reason", "queue_full", "kind", ev.Kind, "order_id", ev.Order.ID)
		return false
	}
}

// Drain stops intake and waits until queued events are handled or ctx expires.
func (d *Dispatcher) Drain(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain notifications: %w (pending %d)", ctx.Err(), len(d.queue))
	}
}

func (d *Dispatcher) Stats() Stats {
	return Stats{
		Submitted: d.submitted.Load(),
		Dropped:   d.dropped.Load(),
		Processed: d.processed.Load(),
		Failed:    d.failed.Load(),
		Pending:   len(d.queue),
	}
}

// dispatch gives every channel its own goroutine and timeout; a failing or
// panicking channel never affects the others.
func (d *Dispatcher) dispatch(ctx context.Context, ev Event) {
	g := new(errgroup.Group)
	for _, ch := range d.channels {
		ch := ch
		g.Go(func() error {
			d.deliver(ctx, ch, ev)
			return nil
		})
	}
	_ = g.Wait()
	d.processed.Add(1)
}

func (d *Dispatcher) deliver(ctx context.Context, ch Channel, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			d.failed.Add(1)
			d.log.Error("notify_channel_panic", "channel", ch.Name(), "kind", ev.Kind, "order_id", ev.Order.ID, "panic", fmt.Sprint(r))
		}
	}()
	cctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	start := time.Now()
	if err := ch.Deliver(cctx, ev); err != nil {
		d.failed.Add(1)
		d.log.Warn("notify_channel_failed", "channel", ch.Name(), "kind", ev.Kind, "order_id", ev.Order.ID, "error", err)
		return
	}
	d.log.Debug("notify_channel_delivered", "channel", ch.Name(), "kind", ev.Kind, "order_id", ev.Order.ID, "took_ms", time.Since(start).Milliseconds())
}
