package report

import (
	"sync"
	"time"

	"fenrir/domain/book"
)

// DoneEvent is a recorded terminal-state notification. The order is
// copied at notification time so later book activity cannot mutate it.
type DoneEvent struct {
	Order  book.Order
	Reason book.DoneReason
}

// SkipEvent is a recorded min-qty skip.
type SkipEvent struct {
	TakerID uint64
	MakerID uint64
}

// Collector records every event for inspection. Safe for concurrent
// use across shards; used by tests and the sample process.
type Collector struct {
	mu     sync.Mutex
	trades []book.MatchedPair
	dones  []DoneEvent
	skips  []SkipEvent
}

func NewCollector() *Collector { return &Collector{} }

func (c *Collector) Trade(p book.MatchedPair) {
	c.mu.Lock()
	c.trades = append(c.trades, p)
	c.mu.Unlock()
}

func (c *Collector) Done(o *book.Order, reason book.DoneReason) {
	c.mu.Lock()
	c.dones = append(c.dones, DoneEvent{Order: *o, Reason: reason})
	c.mu.Unlock()
}

func (c *Collector) Skip(taker, maker *book.Order) {
	c.mu.Lock()
	c.skips = append(c.skips, SkipEvent{TakerID: taker.OrderID, MakerID: maker.OrderID})
	c.mu.Unlock()
}

func (c *Collector) Trades() []book.MatchedPair {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]book.MatchedPair, len(c.trades))
	copy(out, c.trades)
	return out
}

// TradesFor returns the recorded trades for one symbol, in delivery
// order.
func (c *Collector) TradesFor(symbol string) []book.MatchedPair {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []book.MatchedPair
	for _, p := range c.trades {
		if p.Symbol == symbol {
			out = append(out, p)
		}
	}
	return out
}

func (c *Collector) Dones() []DoneEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]DoneEvent, len(c.dones))
	copy(out, c.dones)
	return out
}

func (c *Collector) Skips() []SkipEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]SkipEvent, len(c.skips))
	copy(out, c.skips)
	return out
}

// WaitDones polls until at least n terminal-state events have been
// recorded or the deadline passes.
func (c *Collector) WaitDones(n int, timeout time.Duration) bool {
	return c.wait(timeout, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return len(c.dones) >= n
	})
}

// WaitTrades polls until at least n trades have been recorded or the
// deadline passes.
func (c *Collector) WaitTrades(n int, timeout time.Duration) bool {
	return c.wait(timeout, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return len(c.trades) >= n
	})
}

func (c *Collector) wait(timeout time.Duration, ok func() bool) bool {
	deadline := time.Now().Add(timeout)
	for {
		if ok() {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(time.Millisecond)
	}
}
