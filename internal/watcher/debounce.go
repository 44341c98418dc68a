package watcher

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Debouncer groups rapid changes into one batch per path, emitted once no
// change has arrived for the configured delay.
type Debouncer struct {
	delay  time.Duration
	events chan ChangeEvent
	output chan []ChangeEvent

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
	pending map[string]ChangeEvent
}

// NewDebouncer creates a debouncer. Call Run to start it.
func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{
		delay:   delay,
		events:  make(chan ChangeEvent, 256),
		output:  make(chan []ChangeEvent, 16),
		pending: make(map[string]ChangeEvent),
	}
}

// Add queues a change without blocking. Changes beyond the queue capacity
// are dropped.
func (d *Debouncer) Add(event ChangeEvent) {
	select {
	case d.events <- event:
	default:
	}
}

// Output delivers the batches.
func (d *Debouncer) Output() <-chan []ChangeEvent {
	return d.output
}

// Run consumes queued changes until ctx is done.
func (d *Debouncer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			d.Stop()
			return
		case event := <-d.events:
			d.add(event)
		}
	}
}

// Stop cancels a pending flush. Changes added afterwards are never emitted.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
}

func (d *Debouncer) add(event ChangeEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}

	// The latest change for a path wins.
	d.pending[event.Path] = event

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.flush)
}

func (d *Debouncer) flush() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped || len(d.pending) == 0 {
		return
	}

	events := make([]ChangeEvent, 0, len(d.pending))
	for _, event := range d.pending {
		events = append(events, event)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Path < events[j].Path })

	select {
	case d.output <- events:
		d.pending = make(map[string]ChangeEvent)
	default:
		// Consumer is behind; keep the batch and retry.
		d.timer = time.AfterFunc(d.delay, d.flush)
	}
}
