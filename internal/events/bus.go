// Package events fans progress events out to in-process subscribers (the SSE
// endpoint, the CLI) and optional external sinks.
package events

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cuihairu/arcade/internal/events/sink"
	"github.com/cuihairu/arcade/internal/ports"
)

const (
	defaultBuffer       = 64
	terminalSendTimeout = 2 * time.Second
	sinkQueue           = 256
)

// Bus is an in-process pub/sub keyed by task id. Events of one task reach each
// subscriber in publish order; progress never goes backwards.
type Bus struct {
	mu    sync.Mutex
	subs  map[string]map[*Subscription]struct{}
	last  map[string]float64
	sinks []*sinkWorker
	log   *slog.Logger

	dropped atomic.Int64
}

var _ ports.Publisher = (*Bus)(nil)

func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		subs: make(map[string]map[*Subscription]struct{}),
		last: make(map[string]float64),
		log:  logger.With("component", "events"),
	}
}

// Subscription receives events on C. Task subscriptions are closed after the
// task's terminal event; wildcard subscriptions stay open until Close.
type Subscription struct {
	C <-chan ports.Event

	ch     chan ports.Event
	task   string
	bus    *Bus
	mu     sync.Mutex
	closed bool
}

// Subscribe listens to taskID, or to every task when taskID is empty.
func (b *Bus) Subscribe(taskID string, buffer int) *Subscription {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	ch := make(chan ports.Event, buffer)
	s := &Subscription{C: ch, ch: ch, task: taskID, bus: b}
	b.mu.Lock()
	set := b.subs[taskID]
	if set == nil {
		set = make(map[*Subscription]struct{})
		b.subs[taskID] = set
	}
	set[s] = struct{}{}
	b.mu.Unlock()
	return s
}

// Close detaches the subscription and closes C. Safe to call twice.
func (s *Subscription) Close() {
	s.bus.remove(s)
	s.shut()
}

func (s *Subscription) shut() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

func (s *Subscription) deliver(ev ports.Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true
	}
	if !ev.Terminal {
		select {
		case s.ch <- ev:
			return true
		default:
			return false
		}
	}
	t := time.NewTimer(terminalSendTimeout)
	defer t.Stop()
	select {
	case s.ch <- ev:
		return true
	case <-t.C:
		return false
	}
}

func (b *Bus) remove(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if set := b.subs[s.task]; set != nil {
		delete(set, s)
		if len(set) == 0 {
			delete(b.subs, s.task)
		}
	}
}

// Publish delivers ev. Non-terminal events are dropped for subscribers that
// are not keeping up; terminal events wait briefly.
func (b *Bus) Publish(ev ports.Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	b.mu.Lock()
	b.clamp(&ev)
	targets := make([]*Subscription, 0, 4)
	for s := range b.subs[ev.TaskID] {
		targets = append(targets, s)
	}
	if ev.TaskID != "" {
		for s := range b.subs[""] {
			targets = append(targets, s)
		}
	}
	var finished []*Subscription
	if ev.Terminal && ev.TaskID != "" {
		for s := range b.subs[ev.TaskID] {
			finished = append(finished, s)
		}
		delete(b.subs, ev.TaskID)
		delete(b.last, ev.TaskID)
	}
	sinks := b.sinks
	b.mu.Unlock()

	for _, s := range targets {
		if !s.deliver(ev) {
			b.dropped.Add(1)
		}
	}
	for _, s := range finished {
		s.shut()
	}
	for _, w := range sinks {
		w.enqueue(ev, &b.dropped)
	}
}

// clamp keeps per-task progress non-decreasing. Caller holds b.mu.
func (b *Bus) clamp(ev *ports.Event) {
	if ev.TaskID == "" {
		return
	}
	switch ev.Kind {
	case ports.EventDownloadProgress:
		if ev.Percent == nil {
			return
		}
		p := *ev.Percent
		if last, ok := b.last[ev.TaskID]; ok && p < last {
			p = last
		}
		b.last[ev.TaskID] = p
		ev.Percent = &p
	case ports.EventScanProgress:
		if last, ok := b.last[ev.TaskID]; ok && ev.Progress < last {
			ev.Progress = last
		}
		b.last[ev.TaskID] = ev.Progress
	}
}

// Dropped reports how many deliveries were skipped because a consumer lagged.
func (b *Bus) Dropped() int64 { return b.dropped.Load() }

// AddSink mirrors every subsequent event to s from a dedicated goroutine.
func (b *Bus) AddSink(s sink.Sink) {
	w := &sinkWorker{sink: s, ch: make(chan ports.Event, sinkQueue), done: make(chan struct{}), log: b.log}
	go w.run()
	b.mu.Lock()
	b.sinks = append(b.sinks, w)
	b.mu.Unlock()
}

// Close stops the sink workers after they drain and closes the sinks.
func (b *Bus) Close() error {
	b.mu.Lock()
	sinks := b.sinks
	b.sinks = nil
	subs := b.subs
	b.subs = make(map[string]map[*Subscription]struct{})
	b.mu.Unlock()

	for _, set := range subs {
		for s := range set {
			s.shut()
		}
	}
	var firstErr error
	for _, w := range sinks {
		if err := w.stop(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

type sinkWorker struct {
	sink sink.Sink
	ch   chan ports.Event
	done chan struct{}
	log  *slog.Logger

	mu     sync.Mutex
	closed bool
}

func (w *sinkWorker) enqueue(ev ports.Event, dropped *atomic.Int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		dropped.Add(1)
		return
	}
	select {
	case w.ch <- ev:
	default:
		dropped.Add(1)
	}
}

func (w *sinkWorker) run() {
	defer close(w.done)
	for ev := range w.ch {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := w.sink.Send(ctx, ev); err != nil {
			w.log.Warn("event sink send failed", "sink", w.sink.Name(), "kind", ev.Kind, "error", err)
		}
		cancel()
	}
}

func (w *sinkWorker) stop() error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.ch)
	}
	w.mu.Unlock()
	<-w.done
	return w.sink.Close()
}
