package book

// PriceLevel is the FIFO queue of resting orders at one price. Orders
// are linked intrusively; arrival order is append order, which the
// routing boundary guarantees matches arrival-sequence order.
type PriceLevel struct {
	Price      int64
	TotalQty   int64
	OrderCount int

	head *Order
	tail *Order
}

// Head returns the highest-priority order at this level.
func (p *PriceLevel) Head() *Order { return p.head }

func (p *PriceLevel) enqueue(o *Order) {
	if p.head == nil {
		p.head = o
		p.tail = o
	} else {
		p.tail.next = o
		o.prev = p.tail
		p.tail = o
	}
	p.TotalQty += o.LeaveQty
	p.OrderCount++
}

// unlink removes o from the level. o must be linked here.
func (p *PriceLevel) unlink(o *Order) {
	if o.prev != nil {
		o.prev.next = o.next
	} else {
		p.head = o.next
	}
	if o.next != nil {
		o.next.prev = o.prev
	} else {
		p.tail = o.prev
	}
	o.next = nil
	o.prev = nil
	p.TotalQty -= o.LeaveQty
	p.OrderCount--
}

// reduce lowers the level's aggregate quantity after a partial fill of
// a resting order.
func (p *PriceLevel) reduce(qty int64) {
	p.TotalQty -= qty
}
