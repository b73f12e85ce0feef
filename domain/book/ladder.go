package book

import "github.com/google/btree"

const ladderDegree = 16

// Ladder holds one side's price levels ordered by priority: descending
// price for bids, ascending for asks, so the best level is always the
// tree minimum.
type Ladder struct {
	side Side
	tree *btree.BTreeG[*PriceLevel]
}

func NewLadder(side Side) *Ladder {
	less := func(a, b *PriceLevel) bool { return a.Price < b.Price }
	if side == Buy {
		less = func(a, b *PriceLevel) bool { return a.Price > b.Price }
	}
	return &Ladder{side: side, tree: btree.NewG(ladderDegree, less)}
}

func (l *Ladder) Len() int { return l.tree.Len() }

// Best returns the highest-priority level, or nil when the side is
// empty.
func (l *Ladder) Best() *PriceLevel {
	pl, ok := l.tree.Min()
	if !ok {
		return nil
	}
	return pl
}

// Find returns the level at price, or nil.
func (l *Ladder) Find(price int64) *PriceLevel {
	pl, ok := l.tree.Get(&PriceLevel{Price: price})
	if !ok {
		return nil
	}
	return pl
}

// GetOrCreate returns the level at price, creating it if absent.
func (l *Ladder) GetOrCreate(price int64) *PriceLevel {
	if pl := l.Find(price); pl != nil {
		return pl
	}
	pl := &PriceLevel{Price: price}
	l.tree.ReplaceOrInsert(pl)
	return pl
}

// Remove deletes the level at price. Returns false if absent.
func (l *Ladder) Remove(price int64) bool {
	_, ok := l.tree.Delete(&PriceLevel{Price: price})
	return ok
}

// Walk visits levels in priority order (best first) until fn returns
// false. fn must not create or delete levels.
func (l *Ladder) Walk(fn func(*PriceLevel) bool) {
	l.tree.Ascend(fn)
}
