// Package sequence numbers the matching loop's two ordered streams.
// Admission sequences define time priority: one is stamped on every
// command as the loop dequeues it. Event sequences order the emitted
// stream: strictly monotonic and contiguous across all event types.
// Keeping both counters in one type keeps their coupling explicit —
// they advance only on the loop goroutine and are resumed together
// after a rebuild.
package sequence

import "sync/atomic"

// Sequencer issues admission and event sequence numbers. Only the
// matching loop advances it; the current values may be read from any
// goroutine (health probes, logging).
type Sequencer struct {
	admission atomic.Uint64
	events    atomic.Uint64
}

// New creates a sequencer with both streams at zero, the fresh-market
// state. Restarted markets call Resume after replay.
func New() *Sequencer {
	return &Sequencer{}
}

// NextAdmission returns the next admission sequence. Assigned at
// dequeue, never earlier: arrival order at the loop is the only
// arrival order there is.
func (s *Sequencer) NextAdmission() uint64 {
	return s.admission.Add(1)
}

// NextEvent returns the next event-stream sequence.
func (s *Sequencer) NextEvent() uint64 {
	return s.events.Add(1)
}

// Admission returns the last admission sequence issued.
func (s *Sequencer) Admission() uint64 {
	return s.admission.Load()
}

// Events returns the last event sequence issued.
func (s *Sequencer) Events() uint64 {
	return s.events.Load()
}

// Resume sets both streams to the high-water marks recovered from the
// durable event log, so a restarted market never reissues a sequence.
func (s *Sequencer) Resume(admission, events uint64) {
	s.admission.Store(admission)
	s.events.Store(events)
}
