// Package wire implements the event bus that broadcasts agent-loop events
// to any number of subscribers (a CLI renderer, a websocket bridge, a tape
// recorder). Droppable events never block the sender; a non-droppable
// event blocks it while a subscriber's high-priority lane is full.
package wire

import (
	"sync"
	"sync/atomic"

	"github.com/reagent-go/reagent/pkg/models"
)

// BackpressureConfig sizes a Subscriber's two lanes.
type BackpressureConfig struct {
	// HighPriBuffer sizes the lane for events that must never be dropped:
	// lifecycle, tool results, errors, findings.
	HighPriBuffer int
	// LowPriBuffer sizes the lane for droppable high-volume events: text
	// and thinking deltas.
	LowPriBuffer int
}

// DefaultBackpressureConfig returns sensible lane sizes.
func DefaultBackpressureConfig() BackpressureConfig {
	return BackpressureConfig{HighPriBuffer: 64, LowPriBuffer: 512}
}

// isDroppable reports whether an event type may be dropped under
// backpressure. Only high-volume streaming content is droppable; every
// lifecycle, result, and knowledge event is delivered or the subscriber
// blocks the sender.
func isDroppable(t models.EventType) bool {
	switch t {
	case models.EventText, models.EventThinking:
		return true
	default:
		return false
	}
}

// Subscriber is one consumer's view of the wire: a channel of events
// terminated by exactly one TerminalEvent, plus a count of events dropped
// due to backpressure.
type Subscriber struct {
	id      uint64
	highPri chan models.Event
	lowPri  chan models.Event
	merged  chan models.Event
	dropped uint64
	closed  uint32
}

// Events returns the channel of events for this subscriber. It yields a
// models.TerminalEvent exactly once, after which it is closed.
func (s *Subscriber) Events() <-chan models.Event { return s.merged }

// DroppedCount returns how many droppable events this subscriber has
// missed due to a full low-priority lane.
func (s *Subscriber) DroppedCount() uint64 {
	return atomic.LoadUint64(&s.dropped)
}

func (s *Subscriber) emit(e models.Event) {
	if atomic.LoadUint32(&s.closed) == 1 {
		return
	}
	if isDroppable(e.Type) {
		select {
		case s.lowPri <- e:
		default:
			atomic.AddUint64(&s.dropped, 1)
		}
		return
	}
	s.highPri <- e
}

func (s *Subscriber) mergeLoop() {
	defer close(s.merged)
	for {
		select {
		case e, ok := <-s.highPri:
			if !ok {
				s.drainLowPri()
				return
			}
			if e.IsTerminal() {
				s.drainLowPri()
				s.merged <- e
				return
			}
			s.merged <- e
			continue
		default:
		}

		select {
		case e, ok := <-s.highPri:
			if !ok {
				s.drainLowPri()
				return
			}
			if e.IsTerminal() {
				s.drainLowPri()
				s.merged <- e
				return
			}
			s.merged <- e
		case e, ok := <-s.lowPri:
			if ok {
				s.merged <- e
			}
		}
	}
}

func (s *Subscriber) drainLowPri() {
	for {
		select {
		case e, ok := <-s.lowPri:
			if !ok {
				return
			}
			s.merged <- e
		default:
			return
		}
	}
}

func (s *Subscriber) closeLanes() {
	if !atomic.CompareAndSwapUint32(&s.closed, 0, 1) {
		return
	}
	close(s.highPri)
	close(s.lowPri)
}

// Wire is a broadcast pub/sub bus: every event sent is fanned out to every
// current subscriber, each with its own two-lane backpressure buffer. A
// subscriber with a full low-priority lane loses droppable events without
// slowing anyone; a subscriber with a full high-priority lane blocks Send,
// and with it delivery to every other subscriber, until it drains.
type Wire struct {
	mu     sync.RWMutex
	subs   map[uint64]*Subscriber
	nextID uint64
	cfg    BackpressureConfig
	closed bool
}

// New constructs an empty Wire.
func New(cfg BackpressureConfig) *Wire {
	if cfg.HighPriBuffer <= 0 {
		cfg.HighPriBuffer = DefaultBackpressureConfig().HighPriBuffer
	}
	if cfg.LowPriBuffer <= 0 {
		cfg.LowPriBuffer = DefaultBackpressureConfig().LowPriBuffer
	}
	return &Wire{subs: make(map[uint64]*Subscriber), cfg: cfg}
}

// Subscribe registers a new subscriber and returns it. Call Unsubscribe
// (or let Close handle it) to release its resources.
func (w *Wire) Subscribe() *Subscriber {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.nextID++
	s := &Subscriber{
		id:      w.nextID,
		highPri: make(chan models.Event, w.cfg.HighPriBuffer),
		lowPri:  make(chan models.Event, w.cfg.LowPriBuffer),
		merged:  make(chan models.Event, w.cfg.HighPriBuffer),
	}
	go s.mergeLoop()

	if w.closed {
		s.emit(models.TerminalEvent())
		s.closeLanes()
		return s
	}

	w.subs[s.id] = s
	return s
}

// Unsubscribe removes a subscriber and releases its lanes. Events already
// queued for it are still delivered on Events(), which then closes without
// a TerminalEvent.
func (w *Wire) Unsubscribe(s *Subscriber) {
	w.mu.Lock()
	_, ok := w.subs[s.id]
	delete(w.subs, s.id)
	w.mu.Unlock()
	if ok {
		s.closeLanes()
	}
}

// Send broadcasts an event to every current subscriber.
func (w *Wire) Send(e models.Event) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return
	}
	for _, s := range w.subs {
		s.emit(e)
	}
}

// Close sends the terminal sentinel to every subscriber and marks the wire
// closed; further Send calls are no-ops and further Subscribe calls
// receive only the terminal sentinel.
func (w *Wire) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	subs := make([]*Subscriber, 0, len(w.subs))
	for _, s := range w.subs {
		subs = append(subs, s)
	}
	w.subs = make(map[uint64]*Subscriber)
	w.mu.Unlock()

	for _, s := range subs {
		s.emit(models.TerminalEvent())
		s.closeLanes()
	}
}

// SubscriberCount returns the number of currently registered subscribers.
func (w *Wire) SubscriberCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.subs)
}
