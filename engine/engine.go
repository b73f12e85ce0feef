// Package engine is the boundary the external collaborators call:
// submit for matching, add a resting quote, cancel, shut down. An
// Engine is an explicitly constructed value owned by the caller; there
// is no process-wide instance, so tests can run several engines with
// different shard layouts side by side.
package engine

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"fenrir/domain/book"
	"fenrir/infra/sequence"
	"fenrir/metrics"
)

var (
	// ErrClosed is returned for operations issued after Shutdown.
	ErrClosed = errors.New("engine: closed")
	// ErrAborted is returned when an invariant violation aborted the
	// operation inside its shard.
	ErrAborted = errors.New("engine: operation aborted")
)

// Config is the immutable engine configuration, produced once at
// initialization and threaded through construction; nothing reads
// ambient global state.
type Config struct {
	// SymbolGroups assigns symbols to shards: one shard per group,
	// fixed for the engine's lifetime.
	SymbolGroups [][]string
	// QueueDepth is the per-shard inbound queue capacity. 0 means the
	// default of 1024.
	QueueDepth int
	// DrainOnShutdown makes Shutdown process queued work before
	// stopping; otherwise the remainder is refused with ErrClosed.
	DrainOnShutdown bool
}

func (c Config) queueDepth() int {
	if c.QueueDepth <= 0 {
		return 1024
	}
	return c.QueueDepth
}

func (c Config) validate() error {
	if len(c.SymbolGroups) == 0 {
		return errors.New("engine: no symbol groups")
	}
	seen := make(map[string]struct{})
	for i, group := range c.SymbolGroups {
		if len(group) == 0 {
			return fmt.Errorf("engine: symbol group %d is empty", i)
		}
		for _, sym := range group {
			if sym == "" {
				return fmt.Errorf("engine: empty symbol in group %d", i)
			}
			if _, dup := seen[sym]; dup {
				return fmt.Errorf("engine: symbol %q mapped twice", sym)
			}
			seen[sym] = struct{}{}
		}
	}
	return nil
}

type Engine struct {
	d       *Dispatcher
	reports *sequence.Sequencer
	log     *zap.Logger
	m       *metrics.Metrics
	once    sync.Once
}

// New constructs an engine from cfg. Trade and terminal-state events
// are delivered to ev on the owning shard's goroutine, in generation
// order per symbol.
func New(cfg Config, ev book.Events, log *zap.Logger, m *metrics.Metrics) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if ev == nil {
		ev = book.NopEvents{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	if m != nil {
		ev = instrumentedEvents{next: ev, m: m}
	}
	reports := sequence.New(0)
	e := &Engine{
		d:       newDispatcher(cfg, reports, ev, log, m),
		reports: reports,
		log:     log,
		m:       m,
	}
	log.Info("engine started",
		zap.Int("shards", len(cfg.SymbolGroups)),
		zap.Int("queue_depth", cfg.queueDepth()),
		zap.Bool("drain_on_shutdown", cfg.DrainOnShutdown),
	)
	return e, nil
}

// Submit enqueues the order for matching on its symbol's shard and
// returns without waiting for the pass. StatusSymbolNotFound is the
// only synchronous failure; fills and terminal states arrive through
// the events collaborator.
func (e *Engine) Submit(o *book.Order) (book.StatusCode, error) {
	o.CumQty = 0
	o.LeaveQty = o.OrderQty
	st, err := e.d.route(o.Symbol, task{
		kind:   opMatch,
		order:  o,
		symbol: o.Symbol,
	})
	e.count("submit", st, err)
	return st, err
}

// AddResting inserts a market-maker quote without matching. It blocks
// until the owning shard has processed the insertion, so the duplicate
// check result is synchronous while ordering against interleaved
// Submit traffic is preserved.
func (e *Engine) AddResting(o *book.Order) (book.StatusCode, error) {
	o.CumQty = 0
	o.LeaveQty = o.OrderQty
	reply := make(chan response, 1)
	st, err := e.d.route(o.Symbol, task{
		kind:   opAdd,
		order:  o,
		symbol: o.Symbol,
		reply:  reply,
	})
	st, err = await(st, err, reply)
	e.count("add_resting", st, err)
	return st, err
}

// Cancel removes a resting order. Blocks like AddResting for the same
// reason.
func (e *Engine) Cancel(info book.CancelInfo) (book.StatusCode, error) {
	reply := make(chan response, 1)
	st, err := e.d.route(info.Symbol, task{
		kind:   opCancel,
		cancel: info,
		symbol: info.Symbol,
		reply:  reply,
	})
	st, err = await(st, err, reply)
	e.count("cancel", st, err)
	return st, err
}

// Snapshot visits every order resting for symbol, bids best-to-worst
// then asks best-to-worst. The visit runs on the owning shard, so it
// is ordered with mutations; it must be fast and must not retain the
// orders it sees.
func (e *Engine) Snapshot(symbol string, visit func(*book.Order)) (book.StatusCode, error) {
	return e.inspect(symbol, func(b *book.Book) { b.Snapshot(visit) })
}

// Depth returns up to max aggregated levels per side, best first.
func (e *Engine) Depth(symbol string, max int) (bids, asks []book.LevelView, st book.StatusCode, err error) {
	st, err = e.inspect(symbol, func(b *book.Book) {
		bids, asks = b.Depth(max)
	})
	return bids, asks, st, err
}

func (e *Engine) inspect(symbol string, fn func(*book.Book)) (book.StatusCode, error) {
	reply := make(chan response, 1)
	st, err := e.d.route(symbol, task{
		kind:    opInspect,
		inspect: fn,
		symbol:  symbol,
		reply:   reply,
	})
	return await(st, err, reply)
}

// Shutdown stops intake, drains or abandons queued work per
// configuration, and joins every shard. Idempotent.
func (e *Engine) Shutdown() {
	e.once.Do(func() {
		e.d.shutdown()
		e.log.Info("engine stopped",
			zap.Uint64("orders_seen", e.d.arrival.Current()),
			zap.Uint64("trades_reported", e.reports.Current()),
		)
	})
}

func await(st book.StatusCode, err error, reply chan response) (book.StatusCode, error) {
	if err != nil || st != book.StatusOK {
		return st, err
	}
	r := <-reply
	return r.status, r.err
}

func (e *Engine) count(op string, st book.StatusCode, err error) {
	if e.m == nil {
		return
	}
	label := st.String()
	if err != nil {
		label = "ERROR"
	}
	e.m.Operations.WithLabelValues(op, label).Inc()
}

// instrumentedEvents forwards to next and keeps the match-side
// counters current.
type instrumentedEvents struct {
	next book.Events
	m    *metrics.Metrics
}

func (i instrumentedEvents) Trade(p book.MatchedPair) {
	i.m.Trades.Inc()
	i.next.Trade(p)
}

func (i instrumentedEvents) Done(o *book.Order, reason book.DoneReason) {
	i.m.OrdersDone.WithLabelValues(reason.String()).Inc()
	i.next.Done(o, reason)
}

func (i instrumentedEvents) Skip(taker, maker *book.Order) {
	i.m.MinQtySkips.Inc()
	i.next.Skip(taker, maker)
}
