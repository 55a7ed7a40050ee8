// Package outbox persists encoded event batches before they are
// forwarded downstream. It is the durability anchor of the event
// stream: a batch is written with pebble's synchronous WAL before the
// sink ever sees it, walks NEW→SENT→ACKED, and is pruned only after
// acknowledgement. On restart, pending batches are rescanned and
// resent in sequence order.
package outbox

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"time"

	"github.com/cockroachdb/pebble"
)

// State of an outbox record.
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

// ErrCorrupt indicates a record whose checksum does not match.
var ErrCorrupt = errors.New("outbox: corrupt record")

// Record is one persisted batch. FirstSeq keys the record; batches
// never overlap so the key order is the delivery order.
type Record struct {
	FirstSeq    uint64
	LastSeq     uint64
	State       State
	Retries     uint32
	LastAttempt int64 // unix nanos of the last send attempt
	BatchID     string
	Payload     []byte // wire-encoded EventBatch
}

// Outbox is a pebble-backed batch store.
type Outbox struct {
	db *pebble.DB
}

// Open opens (creating if needed) the outbox at dir.
func Open(dir string) (*Outbox, error) {
	db, err := pebble.Open(dir, &pebble.Options{
		DisableWAL: false, // durability is the point
	})
	if err != nil {
		return nil, fmt.Errorf("outbox: open %s: %w", dir, err)
	}
	return &Outbox{db: db}, nil
}

// Close closes the underlying store.
func (o *Outbox) Close() error {
	return o.db.Close()
}

func keyFor(firstSeq uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, firstSeq)
	return k
}

// encoding:
//
//	[state:1][retries:4][lastAttempt:8][lastSeq:8]
//	[batchIDLen:2][batchID][payloadLen:4][payload][crc32:4]
//
// The trailing checksum covers everything before it.
func encodeRecord(r *Record) []byte {
	n := 1 + 4 + 8 + 8 + 2 + len(r.BatchID) + 4 + len(r.Payload) + 4
	buf := make([]byte, 0, n)
	buf = append(buf, byte(r.State))
	buf = binary.BigEndian.AppendUint32(buf, r.Retries)
	buf = binary.BigEndian.AppendUint64(buf, uint64(r.LastAttempt))
	buf = binary.BigEndian.AppendUint64(buf, r.LastSeq)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(r.BatchID)))
	buf = append(buf, r.BatchID...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(r.Payload)))
	buf = append(buf, r.Payload...)
	buf = binary.BigEndian.AppendUint32(buf, crc32.ChecksumIEEE(buf))
	return buf
}

func decodeRecord(firstSeq uint64, b []byte) (*Record, error) {
	if len(b) < 1+4+8+8+2+4+4 {
		return nil, ErrCorrupt
	}
	body, sum := b[:len(b)-4], binary.BigEndian.Uint32(b[len(b)-4:])
	if crc32.ChecksumIEEE(body) != sum {
		return nil, ErrCorrupt
	}
	r := &Record{FirstSeq: firstSeq}
	r.State = State(body[0])
	r.Retries = binary.BigEndian.Uint32(body[1:5])
	r.LastAttempt = int64(binary.BigEndian.Uint64(body[5:13]))
	r.LastSeq = binary.BigEndian.Uint64(body[13:21])
	idLen := int(binary.BigEndian.Uint16(body[21:23]))
	if len(body) < 23+idLen+4 {
		return nil, ErrCorrupt
	}
	r.BatchID = string(body[23 : 23+idLen])
	pOff := 23 + idLen
	pLen := int(binary.BigEndian.Uint32(body[pOff : pOff+4]))
	if len(body) != pOff+4+pLen {
		return nil, ErrCorrupt
	}
	r.Payload = append([]byte(nil), body[pOff+4:]...)
	return r, nil
}

// Append persists r in StateNew with a synchronous write. Must
// complete before the batch is offered to any sink.
func (o *Outbox) Append(r *Record) error {
	r.State = StateNew
	if err := o.db.Set(keyFor(r.FirstSeq), encodeRecord(r), pebble.Sync); err != nil {
		return fmt.Errorf("outbox: append batch %d: %w", r.FirstSeq, err)
	}
	return nil
}

// Get returns the record keyed by firstSeq.
func (o *Outbox) Get(firstSeq uint64) (*Record, error) {
	v, closer, err := o.db.Get(keyFor(firstSeq))
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	return decodeRecord(firstSeq, v)
}

func (o *Outbox) updateState(firstSeq uint64, state State) error {
	rec, err := o.Get(firstSeq)
	if err != nil {
		return fmt.Errorf("outbox: load batch %d: %w", firstSeq, err)
	}
	rec.State = state
	if state == StateSent {
		rec.Retries++
	}
	rec.LastAttempt = time.Now().UnixNano()
	if err := o.db.Set(keyFor(firstSeq), encodeRecord(rec), pebble.Sync); err != nil {
		return fmt.Errorf("outbox: mark batch %d %s: %w", firstSeq, state, err)
	}
	return nil
}

// MarkSent records a send attempt.
func (o *Outbox) MarkSent(firstSeq uint64) error {
	return o.updateState(firstSeq, StateSent)
}

// MarkAcked records downstream acknowledgement.
func (o *Outbox) MarkAcked(firstSeq uint64) error {
	return o.updateState(firstSeq, StateAcked)
}

// ScanPending visits every non-acked record in sequence order.
// Returning an error from fn stops the scan.
func (o *Outbox) ScanPending(fn func(*Record) error) error {
	it, err := o.db.NewIter(nil)
	if err != nil {
		return fmt.Errorf("outbox: iterator: %w", err)
	}
	defer it.Close()
	for it.First(); it.Valid(); it.Next() {
		firstSeq := binary.BigEndian.Uint64(it.Key())
		rec, err := decodeRecord(firstSeq, it.Value())
		if err != nil {
			return fmt.Errorf("outbox: batch %d: %w", firstSeq, err)
		}
		if rec.State == StateAcked {
			continue
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return it.Error()
}

// PruneAcked deletes acked records with LastSeq at or below upTo.
func (o *Outbox) PruneAcked(upTo uint64) error {
	it, err := o.db.NewIter(nil)
	if err != nil {
		return fmt.Errorf("outbox: iterator: %w", err)
	}
	defer it.Close()
	for it.First(); it.Valid(); it.Next() {
		firstSeq := binary.BigEndian.Uint64(it.Key())
		rec, err := decodeRecord(firstSeq, it.Value())
		if err != nil {
			return fmt.Errorf("outbox: batch %d: %w", firstSeq, err)
		}
		if rec.State != StateAcked || rec.LastSeq > upTo {
			continue
		}
		if err := o.db.Delete(keyFor(firstSeq), pebble.Sync); err != nil {
			return fmt.Errorf("outbox: prune batch %d: %w", firstSeq, err)
		}
	}
	return it.Error()
}

// LastSequence returns the highest event sequence present in the
// outbox, or ok=false when empty. Used on restart to resume the
// event-stream sequencer.
func (o *Outbox) LastSequence() (seq uint64, ok bool, err error) {
	it, e := o.db.NewIter(nil)
	if e != nil {
		return 0, false, fmt.Errorf("outbox: iterator: %w", e)
	}
	defer it.Close()
	if !it.Last() {
		return 0, false, it.Error()
	}
	firstSeq := binary.BigEndian.Uint64(it.Key())
	rec, e := decodeRecord(firstSeq, it.Value())
	if e != nil {
		return 0, false, fmt.Errorf("outbox: batch %d: %w", firstSeq, e)
	}
	return rec.LastSeq, true, it.Error()
}
