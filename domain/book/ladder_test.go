package book

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLadderBestBySide(t *testing.T) {
	bids := NewLadder(Buy)
	for _, p := range []int64{99, 101, 100} {
		bids.GetOrCreate(p)
	}
	require.NotNil(t, bids.Best())
	assert.Equal(t, int64(101), bids.Best().Price, "best bid is the highest price")

	asks := NewLadder(Sell)
	for _, p := range []int64{102, 100, 101} {
		asks.GetOrCreate(p)
	}
	require.NotNil(t, asks.Best())
	assert.Equal(t, int64(100), asks.Best().Price, "best ask is the lowest price")
}

func TestLadderWalkOrder(t *testing.T) {
	asks := NewLadder(Sell)
	for _, p := range []int64{105, 101, 103} {
		asks.GetOrCreate(p)
	}
	var seen []int64
	asks.Walk(func(pl *PriceLevel) bool {
		seen = append(seen, pl.Price)
		return true
	})
	assert.Equal(t, []int64{101, 103, 105}, seen)
}

func TestLadderWalkStopsEarly(t *testing.T) {
	bids := NewLadder(Buy)
	for p := int64(1); p <= 10; p++ {
		bids.GetOrCreate(p)
	}
	var n int
	bids.Walk(func(pl *PriceLevel) bool {
		n++
		return n < 3
	})
	assert.Equal(t, 3, n)
}

func TestLadderGetOrCreateReuses(t *testing.T) {
	l := NewLadder(Sell)
	a := l.GetOrCreate(100)
	b := l.GetOrCreate(100)
	assert.Same(t, a, b)
	assert.Equal(t, 1, l.Len())
}

func TestLadderRemove(t *testing.T) {
	l := NewLadder(Sell)
	l.GetOrCreate(100)
	l.GetOrCreate(101)
	l.Remove(100)
	assert.Nil(t, l.Find(100))
	require.NotNil(t, l.Best())
	assert.Equal(t, int64(101), l.Best().Price)
	l.Remove(101)
	assert.Nil(t, l.Best())
	assert.Equal(t, 0, l.Len())
}

func TestLevelFIFO(t *testing.T) {
	pl := &PriceLevel{Price: 100}
	o1 := &Order{OrderID: 1, LeaveQty: 3}
	o2 := &Order{OrderID: 2, LeaveQty: 4}
	o3 := &Order{OrderID: 3, LeaveQty: 5}
	pl.enqueue(o1)
	pl.enqueue(o2)
	pl.enqueue(o3)

	assert.Equal(t, int64(12), pl.TotalQty)
	assert.Equal(t, 3, pl.OrderCount)

	var ids []uint64
	for o := pl.Head(); o != nil; o = o.Next() {
		ids = append(ids, o.OrderID)
	}
	assert.Equal(t, []uint64{1, 2, 3}, ids)

	// Removing from the middle keeps the chain intact.
	pl.unlink(o2)
	ids = ids[:0]
	for o := pl.Head(); o != nil; o = o.Next() {
		ids = append(ids, o.OrderID)
	}
	assert.Equal(t, []uint64{1, 3}, ids)
	assert.Equal(t, int64(8), pl.TotalQty)
	assert.Equal(t, 2, pl.OrderCount)
}

func TestPriceTimeKeyPriority(t *testing.T) {
	a := PriceTimeKey{Price: 100, ArrivalSeq: 1}
	b := PriceTimeKey{Price: 100, ArrivalSeq: 2}
	assert.True(t, a.HigherPriority(b, Buy), "same price, earlier arrival wins")
	assert.True(t, a.HigherPriority(b, Sell))

	hi := PriceTimeKey{Price: 101, ArrivalSeq: 9}
	lo := PriceTimeKey{Price: 100, ArrivalSeq: 1}
	assert.True(t, hi.HigherPriority(lo, Buy), "higher bid price wins despite later arrival")
	assert.True(t, lo.HigherPriority(hi, Sell), "lower ask price wins despite later arrival")
}
