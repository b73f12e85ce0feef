package engine

import (
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"fenrir/domain/book"
	"fenrir/infra/sequence"
	"fenrir/metrics"
)

type opKind uint8

const (
	opMatch opKind = iota
	opAdd
	opCancel
	opInspect
)

type response struct {
	status book.StatusCode
	err    error
}

type task struct {
	kind    opKind
	order   *book.Order
	cancel  book.CancelInfo
	inspect func(*book.Book)
	symbol  string
	// reply is a 1-slot channel for the operations with synchronous
	// semantics; nil for match, which reports out-of-band.
	reply chan response
}

// shard owns a set of books and the only goroutine allowed to touch
// them. enqMu makes arrival-sequence assignment and enqueue one atomic
// step, so FIFO processing order equals arrival-sequence order.
type shard struct {
	id    int
	enqMu sync.Mutex
	queue chan task
	books map[string]*book.Book
}

// Dispatcher partitions symbols across a fixed pool of shards. The
// assignment is static for the dispatcher's lifetime; that is what
// makes the books safe without internal locking.
type Dispatcher struct {
	shards   []*shard
	bySymbol map[string]int
	arrival  *sequence.Sequencer
	ev       book.Events
	log      *zap.Logger
	m        *metrics.Metrics
	drain    bool

	mu       sync.RWMutex // guards closed against in-flight routes
	closed   bool
	stopping atomic.Bool
	wg       sync.WaitGroup
}

func newDispatcher(
	cfg Config,
	reports *sequence.Sequencer,
	ev book.Events,
	log *zap.Logger,
	m *metrics.Metrics,
) *Dispatcher {
	d := &Dispatcher{
		shards:   make([]*shard, 0, len(cfg.SymbolGroups)),
		bySymbol: make(map[string]int),
		arrival:  sequence.New(0),
		ev:       ev,
		log:      log,
		m:        m,
		drain:    cfg.DrainOnShutdown,
	}
	for i, group := range cfg.SymbolGroups {
		s := &shard{
			id:    i,
			queue: make(chan task, cfg.queueDepth()),
			books: make(map[string]*book.Book, len(group)),
		}
		for _, sym := range group {
			s.books[sym] = book.New(sym, reports)
			d.bySymbol[sym] = i
		}
		d.shards = append(d.shards, s)
	}
	d.wg.Add(len(d.shards))
	for _, s := range d.shards {
		go d.runShard(s)
	}
	return d
}

// route enqueues t on the shard owning symbol and returns. It fails
// synchronously, before anything is queued, when the symbol is
// unmapped. It never waits for processing.
func (d *Dispatcher) route(symbol string, t task) (book.StatusCode, error) {
	idx, ok := d.bySymbol[symbol]
	if !ok {
		return book.StatusSymbolNotFound, nil
	}
	s := d.shards[idx]

	d.mu.RLock()
	if d.closed {
		d.mu.RUnlock()
		return 0, ErrClosed
	}
	s.enqMu.Lock()
	if t.order != nil {
		seq := d.arrival.Next()
		t.order.OrderID = seq
		t.order.ArrivalSeq = seq
	}
	s.queue <- t
	s.enqMu.Unlock()
	d.mu.RUnlock()

	d.gauge(s)
	return book.StatusOK, nil
}

func (d *Dispatcher) runShard(s *shard) {
	defer d.wg.Done()
	for t := range s.queue {
		if d.stopping.Load() && !d.drain {
			if t.reply != nil {
				t.reply <- response{err: ErrClosed}
			}
			continue
		}
		d.handle(s, t)
		d.gauge(s)
	}
}

// handle runs one operation. An invariant violation aborts only this
// operation; the shard keeps serving its queue.
func (d *Dispatcher) handle(s *shard, t task) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("shard operation aborted",
				zap.Int("shard", s.id),
				zap.String("symbol", t.symbol),
				zap.Any("panic", r),
			)
			if d.m != nil {
				d.m.OpsAborted.Inc()
			}
			if t.reply != nil {
				t.reply <- response{err: fmt.Errorf("%w: %v", ErrAborted, r)}
			}
		}
	}()

	bk := s.books[t.symbol]
	if bk == nil {
		panic(fmt.Sprintf("shard %d has no book for %q", s.id, t.symbol))
	}

	switch t.kind {
	case opMatch:
		bk.Match(t.order, d.ev)
	case opAdd:
		t.reply <- response{status: bk.JustAdd(t.order)}
	case opCancel:
		t.reply <- response{status: bk.Cancel(t.cancel, d.ev)}
	case opInspect:
		t.inspect(bk)
		t.reply <- response{status: book.StatusOK}
	}
}

// shutdown stops intake, lets every shard drain or abandon its queue
// remainder per configuration, and joins the workers. Safe to call
// more than once.
func (d *Dispatcher) shutdown() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.mu.Unlock()

	if !d.drain {
		d.stopping.Store(true)
	}
	for _, s := range d.shards {
		close(s.queue)
	}
	d.wg.Wait()
}

func (d *Dispatcher) gauge(s *shard) {
	if d.m != nil {
		d.m.QueueDepth.WithLabelValues(strconv.Itoa(s.id)).Set(float64(len(s.queue)))
	}
}
