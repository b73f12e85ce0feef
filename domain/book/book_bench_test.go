package book

import (
	"math/rand"
	"testing"

	"fenrir/infra/sequence"
)

// ---------------- Helpers ---------------- //

func benchOrder(id uint64, side Side, price, qty int64) *Order {
	return &Order{
		SessionID:  "bench",
		Account:    "bench",
		OrderID:    id,
		ArrivalSeq: id,
		Symbol:     "BENCH",
		Side:       side,
		Price:      price,
		OrderQty:   qty,
		LeaveQty:   qty,
		TIF:        Day,
	}
}

func preload(b *Book, n int) {
	for i := 0; i < n; i++ {
		side := Buy
		price := int64(90 - i%40)
		if i%2 == 1 {
			side = Sell
			price = int64(110 + i%40)
		}
		b.Match(benchOrder(uint64(i+1), side, price, 10), NopEvents{})
	}
}

// ---------------- Basic Benchmarks ---------------- //

func BenchmarkAddResting(b *testing.B) {
	bk := New("BENCH", sequence.New(0))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		// Price spread keeps the two sides from crossing.
		bk.Match(benchOrder(uint64(i+1), Buy, int64(50+i%40), 10), NopEvents{})
	}
}

func BenchmarkFullFill(b *testing.B) {
	bk := New("BENCH", sequence.New(0))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		id := uint64(2*i + 1)
		bk.Match(benchOrder(id, Sell, 100, 10), NopEvents{})
		bk.Match(benchOrder(id+1, Buy, 100, 10), NopEvents{})
	}
}

func BenchmarkCancel(b *testing.B) {
	bk := New("BENCH", sequence.New(0))
	for i := 0; i < b.N; i++ {
		bk.Match(benchOrder(uint64(i+1), Buy, int64(50+i%40), 10), NopEvents{})
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		bk.Cancel(CancelInfo{Symbol: "BENCH", OrderID: uint64(i + 1)}, NopEvents{})
	}
}

// ---------------- Mixed Workload ---------------- //

func BenchmarkMixedFlow(b *testing.B) {
	bk := New("BENCH", sequence.New(0))
	preload(bk, 10_000)
	rng := rand.New(rand.NewSource(42))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		id := uint64(20_000 + i)
		switch rng.Intn(10) {
		case 0, 1:
			bk.Cancel(CancelInfo{Symbol: "BENCH", OrderID: id - 100}, NopEvents{})
		case 2, 3, 4:
			o := benchOrder(id, Buy, int64(95+rng.Intn(10)), int64(1+rng.Intn(20)))
			o.TIF = IOC
			bk.Match(o, NopEvents{})
		default:
			side := Buy
			price := int64(90 - rng.Intn(20))
			if rng.Intn(2) == 1 {
				side = Sell
				price = int64(110 + rng.Intn(20))
			}
			bk.Match(benchOrder(id, side, price, int64(1+rng.Intn(20))), NopEvents{})
		}
	}
}

func BenchmarkDeepSweep(b *testing.B) {
	b.StopTimer()
	for i := 0; i < b.N; i++ {
		bk := New("BENCH", sequence.New(0))
		for j := 0; j < 100; j++ {
			bk.Match(benchOrder(uint64(j+1), Sell, int64(100+j), 5), NopEvents{})
		}
		sweep := benchOrder(1000, Buy, 200, 500)
		sweep.TIF = IOC
		b.StartTimer()
		bk.Match(sweep, NopEvents{})
		b.StopTimer()
	}
}

func BenchmarkDepth(b *testing.B) {
	bk := New("BENCH", sequence.New(0))
	preload(bk, 10_000)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		bk.Depth(10)
	}
}
