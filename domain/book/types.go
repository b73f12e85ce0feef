package book

// Side of the book an order belongs to.
type Side uint8

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Sell {
		return "SELL"
	}
	return "BUY"
}

// Opposite returns the side the order matches against.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// TimeInForce controls what happens to an unfilled remainder.
type TimeInForce uint8

const (
	// Day rests any remainder in the book.
	Day TimeInForce = iota
	// IOC discards any remainder at the end of the matching pass.
	IOC
)

func (t TimeInForce) String() string {
	if t == IOC {
		return "IOC"
	}
	return "DAY"
}

// StatusCode is the synchronous result of an engine operation.
type StatusCode uint8

const (
	StatusOK StatusCode = iota
	StatusSymbolNotFound
	StatusClientOrderIDDuplicate
	StatusCancelOrderIDNotFound
)

func (c StatusCode) String() string {
	switch c {
	case StatusOK:
		return "OK"
	case StatusSymbolNotFound:
		return "SYMBOL_NOT_FOUND"
	case StatusClientOrderIDDuplicate:
		return "CLIENT_ORDER_ID_DUPLICATE"
	case StatusCancelOrderIDNotFound:
		return "CANCEL_ORDER_ID_NOT_FOUND"
	default:
		return "UNKNOWN"
	}
}

// DoneReason says why an order left the book (or never entered it).
type DoneReason uint8

const (
	DoneFilled DoneReason = iota
	DoneCanceled
	// DoneExpired is an IOC remainder discarded after its single pass.
	DoneExpired
	// DoneRejectedPostOnly is a post-only order that would have crossed.
	DoneRejectedPostOnly
)

func (r DoneReason) String() string {
	switch r {
	case DoneFilled:
		return "FILLED"
	case DoneCanceled:
		return "CANCELED"
	case DoneExpired:
		return "EXPIRED"
	case DoneRejectedPostOnly:
		return "REJECTED_POST_ONLY"
	default:
		return "UNKNOWN"
	}
}

// CancelInfo identifies a resting order to remove. Transient request
// value, no lifecycle of its own.
type CancelInfo struct {
	Symbol  string
	OrderID uint64
}

// Events receives everything the matching pass produces beyond its
// return value: trades, terminal order states, and min-qty skips.
// Implementations are invoked on the shard goroutine that owns the
// book and must not block it.
type Events interface {
	// Trade is called once per match, in the order matches were
	// generated for this symbol.
	Trade(p MatchedPair)
	// Done is called when an order reaches a terminal state.
	Done(o *Order, reason DoneReason)
	// Skip is called when a resting order is passed over because the
	// tradable quantity is below its minimum executable quantity.
	Skip(taker, maker *Order)
}

// NopEvents discards everything. Useful in tests and benchmarks.
type NopEvents struct{}

func (NopEvents) Trade(MatchedPair)        {}
func (NopEvents) Done(*Order, DoneReason)  {}
func (NopEvents) Skip(taker, maker *Order) {}
