// Package book implements one symbol's order book: the price-time
// ordered resting structure and the matching algorithm. A Book has no
// internal locking; the dispatcher guarantees that exactly one shard
// goroutine touches it for its entire lifetime.
package book

import (
	"fmt"

	"fenrir/infra/sequence"
)

type clientKey struct {
	session  string
	account  string
	clientID string
}

// Book owns all resting orders for exactly one symbol.
type Book struct {
	symbol string
	bids   *Ladder
	asks   *Ladder

	byID     map[uint64]*Order
	byClient map[clientKey]uint64

	// Engine-wide trade-report sequencer, shared across books. Atomic,
	// so sharing it does not break the single-writer invariant.
	reports *sequence.Sequencer
}

func New(symbol string, reports *sequence.Sequencer) *Book {
	return &Book{
		symbol:   symbol,
		bids:     NewLadder(Buy),
		asks:     NewLadder(Sell),
		byID:     make(map[uint64]*Order),
		byClient: make(map[clientKey]uint64),
		reports:  reports,
	}
}

func (b *Book) Symbol() string { return b.symbol }

// RestingCount returns the number of orders resting on both sides.
func (b *Book) RestingCount() int { return len(b.byID) }

// BestBid returns the highest-priced bid level, or nil.
func (b *Book) BestBid() *PriceLevel { return b.bids.Best() }

// BestAsk returns the lowest-priced ask level, or nil.
func (b *Book) BestAsk() *PriceLevel { return b.asks.Best() }

// Match runs the aggressive order against the opposing side in
// price-time priority order. Trades execute at the resting order's
// price. A resting order whose minimum executable quantity cannot be
// met is skipped, not removed. IOC remainders are discarded; DAY
// remainders rest at the order's price-time key. A post-only order
// that would cross on arrival is rejected outright.
func (b *Book) Match(o *Order, ev Events) StatusCode {
	if o.PostOnly && b.wouldCross(o) {
		ev.Done(o, DoneRejectedPostOnly)
		return StatusOK
	}

	opp := b.ladder(o.Side.Opposite())

	// Prices in the book are fixed for the duration of the pass, so
	// the crossing levels can be pinned up front; levels emptied by
	// the pass are dropped afterwards.
	var crossing []*PriceLevel
	opp.Walk(func(pl *PriceLevel) bool {
		if !crosses(o, pl.Price) {
			return false
		}
		crossing = append(crossing, pl)
		return true
	})

	for _, pl := range crossing {
		if o.LeaveQty == 0 {
			break
		}
		for maker := pl.Head(); maker != nil && o.LeaveQty > 0; {
			next := maker.Next()
			qty := min(o.LeaveQty, maker.LeaveQty)
			if maker.MinQty > 0 && qty < maker.MinQty {
				ev.Skip(o, maker)
				maker = next
				continue
			}
			b.execute(o, maker, qty, pl, ev)
			maker = next
		}
		if pl.OrderCount == 0 {
			opp.Remove(pl.Price)
		}
	}

	switch {
	case o.Filled():
		ev.Done(o, DoneFilled)
	case o.TIF == IOC:
		ev.Done(o, DoneExpired)
	default:
		b.rest(o)
	}
	return StatusOK
}

// JustAdd inserts a resting order without attempting to match. Used by
// market-maker quoting flows; a crossing quote rests marketable, the
// caller owns that risk.
func (b *Book) JustAdd(o *Order) StatusCode {
	ck := clientKey{o.SessionID, o.Account, o.ClientOrderID}
	if _, dup := b.byClient[ck]; dup {
		return StatusClientOrderIDDuplicate
	}
	b.rest(o)
	return StatusOK
}

// Cancel removes the resting order named by info. The book is left
// unchanged on a miss.
func (b *Book) Cancel(info CancelInfo, ev Events) StatusCode {
	o, ok := b.byID[info.OrderID]
	if !ok {
		return StatusCancelOrderIDNotFound
	}
	side := b.ladder(o.Side)
	pl := side.Find(o.Price)
	if pl == nil {
		panic(fmt.Sprintf("book %s: order %d indexed but level %d missing",
			b.symbol, o.OrderID, o.Price))
	}
	pl.unlink(o)
	if pl.OrderCount == 0 {
		side.Remove(pl.Price)
	}
	b.forget(o)
	ev.Done(o, DoneCanceled)
	return StatusOK
}

// Snapshot visits every resting order, bids best-to-worst then asks
// best-to-worst, FIFO within each level.
func (b *Book) Snapshot(visit func(*Order)) {
	walk := func(l *Ladder) {
		l.Walk(func(pl *PriceLevel) bool {
			for o := pl.Head(); o != nil; o = o.Next() {
				visit(o)
			}
			return true
		})
	}
	walk(b.bids)
	walk(b.asks)
}

// LevelView is an aggregated price level for depth consumers.
type LevelView struct {
	Price  int64 `json:"price"`
	Qty    int64 `json:"qty"`
	Orders int   `json:"orders"`
}

// Depth returns up to max aggregated levels per side, best first.
// max <= 0 means all levels.
func (b *Book) Depth(max int) (bids, asks []LevelView) {
	collect := func(l *Ladder) []LevelView {
		var out []LevelView
		l.Walk(func(pl *PriceLevel) bool {
			out = append(out, LevelView{
				Price:  pl.Price,
				Qty:    pl.TotalQty,
				Orders: pl.OrderCount,
			})
			return max <= 0 || len(out) < max
		})
		return out
	}
	return collect(b.bids), collect(b.asks)
}

func (b *Book) execute(taker, maker *Order, qty int64, pl *PriceLevel, ev Events) {
	price := maker.Price
	taker.fill(qty, price)
	maker.fill(qty, price)
	pl.reduce(qty)

	seq := b.reports.Next()
	ev.Trade(MatchedPair{
		TradeID:       seq,
		ReportSeq:     seq,
		ExecID:        fmt.Sprintf("E%012d", seq),
		Symbol:        b.symbol,
		Qty:           qty,
		Price:         price,
		TakerLeaveQty: taker.LeaveQty,
		TakerCumQty:   taker.CumQty,
		MakerLeaveQty: maker.LeaveQty,
		MakerCumQty:   maker.CumQty,
		Taker:         taker,
		Maker:         maker,
	})

	if maker.Filled() {
		pl.unlink(maker)
		b.forget(maker)
		ev.Done(maker, DoneFilled)
	}
}

func (b *Book) rest(o *Order) {
	pl := b.ladder(o.Side).GetOrCreate(o.Price)
	pl.enqueue(o)
	b.byID[o.OrderID] = o
	ck := clientKey{o.SessionID, o.Account, o.ClientOrderID}
	if _, dup := b.byClient[ck]; !dup {
		b.byClient[ck] = o.OrderID
	}
}

func (b *Book) forget(o *Order) {
	delete(b.byID, o.OrderID)
	ck := clientKey{o.SessionID, o.Account, o.ClientOrderID}
	if id, ok := b.byClient[ck]; ok && id == o.OrderID {
		delete(b.byClient, ck)
	}
}

func (b *Book) ladder(s Side) *Ladder {
	if s == Buy {
		return b.bids
	}
	return b.asks
}

func (b *Book) wouldCross(o *Order) bool {
	best := b.ladder(o.Side.Opposite()).Best()
	return best != nil && crosses(o, best.Price)
}

func crosses(o *Order, restingPrice int64) bool {
	if o.Side == Buy {
		return o.Price >= restingPrice
	}
	return o.Price <= restingPrice
}
