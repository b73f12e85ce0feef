package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fenrir/domain/book"
	"fenrir/infra/codec"
	"fenrir/infra/outbox"
)

func pair(seq uint64) book.MatchedPair {
	return book.MatchedPair{
		TradeID:   seq,
		ReportSeq: seq,
		ExecID:    "E1",
		Symbol:    "AAPL",
		Qty:       1,
		Price:     100,
		Taker:     &book.Order{OrderID: 2, Account: "t"},
		Maker:     &book.Order{OrderID: 1, Account: "m"},
	}
}

func TestFanoutDeliversInOrder(t *testing.T) {
	a, b := NewCollector(), NewCollector()
	var order []string
	first := fnEvents{onTrade: func(book.MatchedPair) { order = append(order, "first") }}
	second := fnEvents{onTrade: func(book.MatchedPair) { order = append(order, "second") }}

	f := Fanout{first, a, second, b}
	f.Trade(pair(1))
	f.Done(&book.Order{OrderID: 1}, book.DoneFilled)
	f.Skip(&book.Order{OrderID: 2}, &book.Order{OrderID: 1})

	assert.Equal(t, []string{"first", "second"}, order)
	assert.Len(t, a.Trades(), 1)
	assert.Len(t, b.Trades(), 1)
	assert.Len(t, a.Dones(), 1)
	assert.Len(t, a.Skips(), 1)
}

func TestRelayBeforeAndAfterSet(t *testing.T) {
	r := &Relay{}
	// Unset relays swallow events instead of panicking.
	r.Trade(pair(1))
	r.Done(&book.Order{}, book.DoneFilled)
	r.Skip(&book.Order{}, &book.Order{})

	col := NewCollector()
	r.Set(col)
	r.Trade(pair(2))
	require.Len(t, col.Trades(), 1)
	assert.Equal(t, uint64(2), col.Trades()[0].ReportSeq)
}

func TestDurablePersistsBeforeReturn(t *testing.T) {
	ob, err := outbox.Open(t.TempDir())
	require.NoError(t, err)
	defer ob.Close()

	d := NewDurable(ob, nil, zap.NewNop())
	d.Trade(pair(7))

	rec, err := ob.Get(7)
	require.NoError(t, err)
	assert.Equal(t, outbox.StateNew, rec.State)

	ev, err := codec.DecodeTrade(rec.Payload)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), ev.TradeID)
	assert.Equal(t, "AAPL", ev.Symbol)
	assert.Equal(t, "t", ev.TakerAccount)
}

func TestCollectorWaitHelpers(t *testing.T) {
	col := NewCollector()
	go func() {
		time.Sleep(5 * time.Millisecond)
		col.Trade(pair(1))
		col.Done(&book.Order{OrderID: 1}, book.DoneFilled)
	}()
	assert.True(t, col.WaitTrades(1, time.Second))
	assert.True(t, col.WaitDones(1, time.Second))
	assert.False(t, col.WaitTrades(2, 20*time.Millisecond))
}

func TestCollectorTradesFor(t *testing.T) {
	col := NewCollector()
	p1 := pair(1)
	p2 := pair(2)
	p2.Symbol = "TSLA"
	col.Trade(p1)
	col.Trade(p2)

	aapl := col.TradesFor("AAPL")
	require.Len(t, aapl, 1)
	assert.Equal(t, uint64(1), aapl[0].ReportSeq)
}

// fnEvents adapts closures to the events interface.
type fnEvents struct {
	onTrade func(book.MatchedPair)
}

func (f fnEvents) Trade(p book.MatchedPair) {
	if f.onTrade != nil {
		f.onTrade(p)
	}
}
func (f fnEvents) Done(*book.Order, book.DoneReason) {}
func (f fnEvents) Skip(taker, maker *book.Order)     {}
