package book

// MatchedPair is one matching event between an aggressive (taker)
// order and a resting (maker) order. Created once per match, immutable
// afterwards, handed to the trade-reporting collaborator; the book
// does not retain it.
type MatchedPair struct {
	TradeID   uint64
	ReportSeq uint64 // monotonically assigned trade-report sequence
	ExecID    string
	Symbol    string

	Qty   int64
	Price int64 // always the resting order's price

	// Post-match execution state of both sides.
	TakerLeaveQty int64
	TakerCumQty   int64
	MakerLeaveQty int64
	MakerCumQty   int64

	Taker *Order
	Maker *Order
}
