// Package outbox is the durable hand-off between the matching shards
// and the execution-report broadcaster. Every trade is persisted NEW
// before the engine considers it reported; the broadcaster walks
// pending records in report-sequence order and advances them
// NEW -> SENT -> ACKED, which is what makes exactly-once delivery to
// the reporting collaborator provable across restarts.
package outbox

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"
)

type State uint8

const (
	StateNew State = iota
	StateSent
	StateAcked
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateSent:
		return "SENT"
	case StateAcked:
		return "ACKED"
	default:
		return "UNKNOWN"
	}
}

const headerSize = 1 + 4 + 8 // state, retries, last attempt

var ErrCorruptRecord = errors.New("outbox: corrupted record")

// Record is one trade report awaiting (or past) delivery.
type Record struct {
	Seq         uint64
	State       State
	Retries     uint32
	LastAttempt int64 // unix nanos of the last publish attempt
	Payload     []byte
}

type Outbox struct {
	db *pebble.DB
}

func Open(dir string) (*Outbox, error) {
	db, err := pebble.Open(dir, &pebble.Options{
		// Durability is the point of this store.
		DisableWAL: false,
	})
	if err != nil {
		return nil, fmt.Errorf("outbox: open %s: %w", dir, err)
	}
	return &Outbox{db: db}, nil
}

func (o *Outbox) Close() error {
	return o.db.Close()
}

// Put persists a NEW record for the trade with the given report
// sequence. Called on the shard goroutine; synced before return.
func (o *Outbox) Put(seq uint64, payload []byte) error {
	rec := Record{Seq: seq, State: StateNew, Payload: payload}
	return o.db.Set(keyFor(seq), encode(rec), pebble.Sync)
}

// MarkSent records a publish attempt.
func (o *Outbox) MarkSent(seq uint64) error {
	return o.update(seq, func(r *Record) {
		r.State = StateSent
		r.Retries++
		r.LastAttempt = time.Now().UnixNano()
	})
}

// MarkAcked records broker acknowledgement.
func (o *Outbox) MarkAcked(seq uint64) error {
	return o.update(seq, func(r *Record) {
		r.State = StateAcked
	})
}

// Purge removes an ACKED record.
func (o *Outbox) Purge(seq uint64) error {
	return o.db.Delete(keyFor(seq), pebble.Sync)
}

// Get returns the record at seq.
func (o *Outbox) Get(seq uint64) (Record, error) {
	val, closer, err := o.db.Get(keyFor(seq))
	if err != nil {
		return Record{}, err
	}
	defer closer.Close()
	return decode(seq, val)
}

// ScanPending visits, in report-sequence order, every record that
// still needs delivery: NEW records, and SENT records whose last
// attempt is older than resendAfter (the publish died before the ack
// was recorded).
func (o *Outbox) ScanPending(resendAfter time.Duration, fn func(Record) error) error {
	iter, err := o.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: []byte(keyPrefix + "~"),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	cutoff := time.Now().Add(-resendAfter).UnixNano()
	for iter.First(); iter.Valid(); iter.Next() {
		seq, err := parseKey(iter.Key())
		if err != nil {
			return err
		}
		rec, err := decode(seq, iter.Value())
		if err != nil {
			return err
		}
		switch rec.State {
		case StateNew:
		case StateSent:
			if rec.LastAttempt > cutoff {
				continue
			}
		default:
			continue
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return iter.Error()
}

func (o *Outbox) update(seq uint64, mutate func(*Record)) error {
	rec, err := o.Get(seq)
	if err != nil {
		return err
	}
	mutate(&rec)
	return o.db.Set(keyFor(seq), encode(rec), pebble.Sync)
}

// encoding: [state:1][retries:4][lastAttempt:8][payload]
func encode(r Record) []byte {
	buf := make([]byte, headerSize+len(r.Payload))
	buf[0] = byte(r.State)
	binary.BigEndian.PutUint32(buf[1:5], r.Retries)
	binary.BigEndian.PutUint64(buf[5:13], uint64(r.LastAttempt))
	copy(buf[headerSize:], r.Payload)
	return buf
}

func decode(seq uint64, b []byte) (Record, error) {
	if len(b) < headerSize {
		return Record{}, ErrCorruptRecord
	}
	payload := make([]byte, len(b)-headerSize)
	copy(payload, b[headerSize:])
	return Record{
		Seq:         seq,
		State:       State(b[0]),
		Retries:     binary.BigEndian.Uint32(b[1:5]),
		LastAttempt: int64(binary.BigEndian.Uint64(b[5:13])),
		Payload:     payload,
	}, nil
}

const keyPrefix = "trade/"

func keyFor(seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", keyPrefix, seq))
}

func parseKey(b []byte) (uint64, error) {
	var seq uint64
	if _, err := fmt.Sscanf(string(b), keyPrefix+"%d", &seq); err != nil {
		return 0, fmt.Errorf("outbox: bad key %q: %w", b, err)
	}
	return seq, nil
}
