// Package sequence issues strictly monotonic identifiers. One
// instance backs each concern that needs gapless ordering: arrival
// sequences and engine order ids at the routing boundary, trade-report
// sequences inside the books.
package sequence

import "sync/atomic"

type Sequencer struct {
	next atomic.Uint64
}

// New returns a sequencer whose first issued value is start+1.
func New(start uint64) *Sequencer {
	s := &Sequencer{}
	s.next.Store(start)
	return s
}

// Next issues the next value. Safe for concurrent use.
func (s *Sequencer) Next() uint64 {
	return s.next.Add(1)
}

// Current returns the last issued value.
func (s *Sequencer) Current() uint64 {
	return s.next.Load()
}

// Reset rewinds the sequencer, e.g. after book state has been restored
// from the external source of truth. Must not race with Next.
func (s *Sequencer) Reset(v uint64) {
	s.next.Store(v)
}
