// Package display implements the receiving side of scanner transitions:
// in-process fan-out for the web UI, Redis pub/sub for other processes and a
// plain terminal printer.
package display

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/kozaktomas/memory-anchor/internal/scanner"
)

// Event types.
const (
	EventTransition = "transition"
	EventDegraded   = "degraded"
)

// Event is what subscribers receive.
type Event struct {
	Type       string              `json:"type"`
	Transition *scanner.Transition `json:"transition,omitempty"`
	Degraded   *DegradedStatus     `json:"degraded,omitempty"`
}

// DegradedStatus reports extractor health.
type DegradedStatus struct {
	Degraded            bool      `json:"degraded"`
	ConsecutiveFailures int       `json:"consecutiveFailures"`
	At                  time.Time `json:"at"`
}

func transitionEvent(t scanner.Transition) Event {
	return Event{Type: EventTransition, Transition: &t}
}

func degradedEvent(degraded bool, failures int) Event {
	return Event{Type: EventDegraded, Degraded: &DegradedStatus{
		Degraded:            degraded,
		ConsecutiveFailures: failures,
		At:                  time.Now(),
	}}
}

// Multi forwards to several displays in order.
type Multi []scanner.Display

func (m Multi) Show(t scanner.Transition) {
	for _, d := range m {
		d.Show(t)
	}
}

func (m Multi) SetDegraded(degraded bool, failures int) {
	for _, d := range m {
		if n, ok := d.(scanner.DegradedNotifier); ok {
			n.SetDegraded(degraded, failures)
		}
	}
}

// Terminal prints one line per transition.
type Terminal struct {
	mu sync.Mutex
	w  io.Writer
}

// NewTerminal writes to w.
func NewTerminal(w io.Writer) *Terminal {
	return &Terminal{w: w}
}

func (t *Terminal) Show(tr scanner.Transition) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ts := tr.At.Format("15:04:05.000")
	switch {
	case tr.Profile == nil && tr.State == scanner.Idle:
		fmt.Fprintf(t.w, "[%s] scanner stopped\n", ts)
	case tr.Profile == nil:
		fmt.Fprintf(t.w, "[%s] nobody in view\n", ts)
	case tr.State == scanner.Unknown:
		fmt.Fprintf(t.w, "[%s] %s %s (nearest distance %.3f)\n", ts, tr.Profile.Avatar, tr.Profile.Name, tr.Distance)
	default:
		p := tr.Profile
		fmt.Fprintf(t.w, "[%s] %s %s, %s (distance %.3f)\n", ts, p.Avatar, p.Name, p.Relation, tr.Distance)
		fmt.Fprintf(t.w, "           last visit: %s\n", p.LastVisit)
		fmt.Fprintf(t.w, "           last talk:  %s\n", p.ConversationSummary)
		fmt.Fprintf(t.w, "           news:       %s\n", p.CurrentUpdate)
	}
}

func (t *Terminal) SetDegraded(degraded bool, failures int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if degraded {
		fmt.Fprintf(t.w, "WARNING: face extraction failed %d times in a row, still scanning\n", failures)
	} else {
		fmt.Fprintln(t.w, "face extraction recovered")
	}
}
