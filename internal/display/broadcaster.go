package display

import (
	"sync"

	"github.com/kozaktomas/memory-anchor/internal/constants"
	"github.com/kozaktomas/memory-anchor/internal/scanner"
)

// Broadcaster fans events out to listener channels. Slow listeners lose
// events instead of blocking the scanner.
type Broadcaster struct {
	listeners []chan Event
	last      *Event
	degraded  *Event
	mu        sync.RWMutex
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{}
}

// AddListener adds an event listener.
func (b *Broadcaster) AddListener() chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Event, constants.EventChannelBuffer)
	b.listeners = append(b.listeners, ch)
	return ch
}

// RemoveListener removes and closes an event listener.
func (b *Broadcaster) RemoveListener(ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, listener := range b.listeners {
		if listener == ch {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// Listeners returns the number of connected listeners.
func (b *Broadcaster) Listeners() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// Last returns the most recent transition event, if any. The SSE stream
// replays it to new subscribers.
func (b *Broadcaster) Last() (Event, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.last == nil {
		return Event{}, false
	}
	return *b.last, true
}

func (b *Broadcaster) Show(t scanner.Transition) {
	b.send(transitionEvent(t), &b.last)
}

func (b *Broadcaster) SetDegraded(degraded bool, failures int) {
	b.send(degradedEvent(degraded, failures), &b.degraded)
}

func (b *Broadcaster) send(ev Event, keep **Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	*keep = &ev
	for _, listener := range b.listeners {
		select {
		case listener <- ev:
		default:
		}
	}
}
