package book

import "fmt"

// PriceTimeKey orders resting orders within a side: better price first,
// then earlier arrival. The tie-break is a strictly monotonic arrival
// sequence assigned at the routing boundary, never wall-clock time, so
// priority is deterministic regardless of clock resolution.
type PriceTimeKey struct {
	Price      int64
	ArrivalSeq uint64
}

// HigherPriority reports whether k is matched before other on the
// given side. Equal keys are never higher priority than each other.
func (k PriceTimeKey) HigherPriority(other PriceTimeKey, side Side) bool {
	if k.Price != other.Price {
		if side == Buy {
			return k.Price > other.Price
		}
		return k.Price < other.Price
	}
	return k.ArrivalSeq < other.ArrivalSeq
}

// Order is one order instance. Prices are integer ticks and quantities
// integer lots. An order is owned by the caller until it is accepted,
// then exclusively by the book it rests in; only the owning shard
// mutates its execution state.
type Order struct {
	// Identity.
	SessionID     string
	Account       string
	ClientOrderID string
	OrderID       uint64 // engine-internal, monotonically assigned
	ArrivalSeq    uint64 // price-time tie break, assigned at routing

	// Economics.
	Symbol   string
	Side     Side
	Price    int64
	OrderQty int64
	MinQty   int64 // minimum executable quantity, 0 = none
	PostOnly bool
	TIF      TimeInForce

	// Execution state. Invariant: CumQty + LeaveQty == OrderQty.
	CumQty    int64
	LeaveQty  int64
	LastQty   int64
	LastPrice int64

	// Intrusive FIFO links within a price level.
	next, prev *Order
}

// Key returns the order's price-time ordering key.
func (o *Order) Key() PriceTimeKey {
	return PriceTimeKey{Price: o.Price, ArrivalSeq: o.ArrivalSeq}
}

// Filled reports whether the order has no remaining quantity.
func (o *Order) Filled() bool { return o.LeaveQty == 0 }

// Next returns the order behind o at the same price level.
func (o *Order) Next() *Order { return o.next }

// fill applies a single execution. qty must not exceed LeaveQty; a
// violation means book state is corrupt and the current operation is
// aborted (the shard recovers, the process does not die).
func (o *Order) fill(qty, price int64) {
	if qty <= 0 || qty > o.LeaveQty {
		panic(fmt.Sprintf(
			"book: fill qty %d outside (0, %d] for order %d",
			qty, o.LeaveQty, o.OrderID,
		))
	}
	o.LeaveQty -= qty
	o.CumQty += qty
	o.LastQty = qty
	o.LastPrice = price
}
