// Package report implements the trade-reporting collaborator side of
// the engine boundary. The engine's contract is: every MatchedPair is
// delivered exactly once, in the order it was generated, for the
// symbol that produced it. Reporters run on the shard goroutine and
// must not block it.
package report

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"fenrir/domain/book"
	"fenrir/infra/codec"
	"fenrir/infra/kafka"
	"fenrir/infra/outbox"
)

// Fanout forwards every event to each reporter in order. Because the
// calls are synchronous on the shard goroutine, fan-out preserves the
// per-symbol event order for every member.
type Fanout []book.Events

func (f Fanout) Trade(p book.MatchedPair) {
	for _, r := range f {
		r.Trade(p)
	}
}

func (f Fanout) Done(o *book.Order, reason book.DoneReason) {
	for _, r := range f {
		r.Done(o, reason)
	}
}

func (f Fanout) Skip(taker, maker *book.Order) {
	for _, r := range f {
		r.Skip(taker, maker)
	}
}

// Log writes every event to the structured log. Rejected post-only
// orders, expired IOC remainders and min-qty skips are reportable
// outcomes, not debug noise, so they log at info.
type Log struct {
	L *zap.Logger
}

func (l Log) Trade(p book.MatchedPair) {
	l.L.Info("trade",
		zap.Uint64("report_seq", p.ReportSeq),
		zap.String("exec_id", p.ExecID),
		zap.String("symbol", p.Symbol),
		zap.Int64("qty", p.Qty),
		zap.Int64("price", p.Price),
		zap.Uint64("taker", p.Taker.OrderID),
		zap.Uint64("maker", p.Maker.OrderID),
	)
}

func (l Log) Done(o *book.Order, reason book.DoneReason) {
	l.L.Info("order done",
		zap.Uint64("order_id", o.OrderID),
		zap.String("symbol", o.Symbol),
		zap.String("reason", reason.String()),
		zap.Int64("cum_qty", o.CumQty),
		zap.Int64("leave_qty", o.LeaveQty),
	)
}

func (l Log) Skip(taker, maker *book.Order) {
	l.L.Info("min qty skip",
		zap.String("symbol", maker.Symbol),
		zap.Uint64("taker", taker.OrderID),
		zap.Uint64("maker", maker.OrderID),
		zap.Int64("maker_min_qty", maker.MinQty),
	)
}

// Durable persists each trade to the outbox before the matching pass
// moves on, and pushes a best-effort live tick. Terminal states and
// skips are not durable concerns; other fanout members carry those.
type Durable struct {
	ob    *outbox.Outbox
	ticks *kafka.TickProducer // optional
	log   *zap.Logger
}

func NewDurable(ob *outbox.Outbox, ticks *kafka.TickProducer, log *zap.Logger) *Durable {
	return &Durable{ob: ob, ticks: ticks, log: log}
}

func (d *Durable) Trade(p book.MatchedPair) {
	payload := codec.EncodeTrade(codec.FromPair(p))
	if err := d.ob.Put(p.ReportSeq, payload); err != nil {
		// The match already happened; losing the report is worse than
		// a loud log, but failing the shard would desync the book
		// from reality.
		d.log.Error("outbox write failed",
			zap.Uint64("report_seq", p.ReportSeq), zap.Error(err))
		return
	}
	if d.ticks != nil {
		if err := d.ticks.Publish(context.Background(), p.Symbol, payload); err != nil {
			d.log.Warn("tick publish failed",
				zap.Uint64("report_seq", p.ReportSeq), zap.Error(err))
		}
	}
}

func (d *Durable) Done(*book.Order, book.DoneReason) {}
func (d *Durable) Skip(taker, maker *book.Order)     {}

// Relay forwards to a target bound after engine construction. The
// gateway both feeds the engine and consumes its events, so it cannot
// exist before the engine does; the relay breaks that cycle. Events
// arriving before Set are dropped.
type Relay struct {
	mu   sync.RWMutex
	next book.Events
}

func (r *Relay) Set(ev book.Events) {
	r.mu.Lock()
	r.next = ev
	r.mu.Unlock()
}

func (r *Relay) Trade(p book.MatchedPair) {
	r.mu.RLock()
	next := r.next
	r.mu.RUnlock()
	if next != nil {
		next.Trade(p)
	}
}

func (r *Relay) Done(o *book.Order, reason book.DoneReason) {
	r.mu.RLock()
	next := r.next
	r.mu.RUnlock()
	if next != nil {
		next.Done(o, reason)
	}
}

func (r *Relay) Skip(taker, maker *book.Order) {
	r.mu.RLock()
	next := r.next
	r.mu.RUnlock()
	if next != nil {
		next.Skip(taker, maker)
	}
}
