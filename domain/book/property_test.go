package book

import (
	"fmt"
	"testing"

	"pgregory.net/rapid"

	"fenrir/infra/sequence"
)

type genOrder struct {
	Side   Side
	Price  int64
	Qty    int64
	MinQty int64
	TIF    TimeInForce
	Post   bool
	Cancel bool
	Target int // index of an earlier order to cancel
}

func drawOrders(t *rapid.T) []genOrder {
	n := rapid.IntRange(1, 60).Draw(t, "n")
	out := make([]genOrder, n)
	for i := range out {
		if i > 0 && rapid.Float64Range(0, 1).Draw(t, fmt.Sprintf("cancel%d", i)) < 0.15 {
			out[i] = genOrder{Cancel: true, Target: rapid.IntRange(0, i-1).Draw(t, fmt.Sprintf("tgt%d", i))}
			continue
		}
		out[i] = genOrder{
			Side:   Side(rapid.IntRange(0, 1).Draw(t, fmt.Sprintf("side%d", i))),
			Price:  rapid.Int64Range(95, 105).Draw(t, fmt.Sprintf("px%d", i)),
			Qty:    rapid.Int64Range(1, 50).Draw(t, fmt.Sprintf("qty%d", i)),
			MinQty: rapid.Int64Range(0, 5).Draw(t, fmt.Sprintf("min%d", i)),
			TIF:    TimeInForce(rapid.IntRange(0, 1).Draw(t, fmt.Sprintf("tif%d", i))),
			Post:   rapid.Float64Range(0, 1).Draw(t, fmt.Sprintf("post%d", i)) < 0.1,
		}
	}
	return out
}

func replay(orders []genOrder, r *recorder) *Book {
	b := New("PROP", sequence.New(0))
	for i, g := range orders {
		if g.Cancel {
			b.Cancel(CancelInfo{Symbol: "PROP", OrderID: uint64(g.Target + 1)}, r)
			continue
		}
		o := &Order{
			SessionID:     "s",
			Account:       "acct",
			ClientOrderID: fmt.Sprintf("c%d", i+1),
			OrderID:       uint64(i + 1),
			ArrivalSeq:    uint64(i + 1),
			Symbol:        "PROP",
			Side:          g.Side,
			Price:         g.Price,
			OrderQty:      g.Qty,
			LeaveQty:      g.Qty,
			MinQty:        g.MinQty,
			PostOnly:      g.Post,
			TIF:           g.TIF,
		}
		b.Match(o, r)
	}
	return b
}

// The book is a pure function of its input stream: replaying the same
// stream yields identical trades and an identical resting state.
func TestPropReplayDeterminism(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		orders := drawOrders(t)

		r1, r2 := &recorder{}, &recorder{}
		b1 := replay(orders, r1)
		b2 := replay(orders, r2)

		if len(r1.trades) != len(r2.trades) {
			t.Fatalf("trade count diverged: %d vs %d", len(r1.trades), len(r2.trades))
		}
		for i := range r1.trades {
			a, b := r1.trades[i], r2.trades[i]
			if a.Qty != b.Qty || a.Price != b.Price ||
				a.Taker.OrderID != b.Taker.OrderID || a.Maker.OrderID != b.Maker.OrderID {
				t.Fatalf("trade %d diverged: %+v vs %+v", i, a, b)
			}
		}
		if b1.RestingCount() != b2.RestingCount() {
			t.Fatalf("resting count diverged: %d vs %d", b1.RestingCount(), b2.RestingCount())
		}
	})
}

// Every trade executes at the resting price, inside both parties'
// limits, and keeps both quantity ledgers consistent.
func TestPropTradeInvariants(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		orders := drawOrders(t)
		r := &recorder{}
		b := replay(orders, r)

		for _, p := range r.trades {
			if p.Qty <= 0 {
				t.Fatalf("non-positive trade qty %d", p.Qty)
			}
			buy, sell := p.Taker, p.Maker
			if buy.Side == Sell {
				buy, sell = sell, buy
			}
			if buy.Price < p.Price {
				t.Fatalf("buy limit %d violated by trade at %d", buy.Price, p.Price)
			}
			if sell.Price > p.Price {
				t.Fatalf("sell limit %d violated by trade at %d", sell.Price, p.Price)
			}
			if p.Price != p.Maker.Price {
				t.Fatalf("trade at %d, resting price was %d", p.Price, p.Maker.Price)
			}
			if p.TakerCumQty+p.TakerLeaveQty != p.Taker.OrderQty {
				t.Fatalf("taker ledger broken: %+v", p)
			}
			if p.MakerCumQty+p.MakerLeaveQty != p.Maker.OrderQty {
				t.Fatalf("maker ledger broken: %+v", p)
			}
		}

		// No crossed book can survive a full replay.
		bid, ask := b.BestBid(), b.BestAsk()
		if bid != nil && ask != nil && bid.Price >= ask.Price {
			// A crossed top of book is legal only when minimum
			// quantity guards or post-only rests left it that way.
			guarded := false
			b.Snapshot(func(o *Order) {
				if o.MinQty > 0 || o.PostOnly {
					guarded = true
				}
			})
			if !guarded {
				t.Fatalf("book crossed at %d/%d with no guarded orders", bid.Price, ask.Price)
			}
		}

		b.Snapshot(func(o *Order) {
			if o.LeaveQty <= 0 {
				t.Fatalf("resting order %d has leave qty %d", o.OrderID, o.LeaveQty)
			}
			if o.CumQty+o.LeaveQty != o.OrderQty {
				t.Fatalf("resting order %d ledger broken", o.OrderID)
			}
		})
	})
}
