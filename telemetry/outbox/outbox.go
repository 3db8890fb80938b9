// Package outbox is the durable event store the telemetry sidecar drains
// from: an event appended here (cmd/allocatord appends a periodic
// stats-sample event; nothing else in the repository appends events) is
// published only once persisted, matching the teacher's
// write-ahead-then-publish exit-WAL discipline.
package outbox

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/pebble"
)

// State is a record's position in the publish pipeline.
type State uint8

const (
	StateNew State = iota
	StateSent
	StateAcked
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateSent:
		return "SENT"
	case StateAcked:
		return "ACKED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Record is one telemetry event as stored in the outbox. Kind and Handle
// identify what happened and to which region-chunk/handle, if any;
// Payload carries whatever structured detail (typically JSON) the
// eventual publisher forwards verbatim.
type Record struct {
	Kind        uint8
	Handle      uint32
	State       State
	Retries     uint32
	LastAttempt int64
	Payload     []byte
}

// encoding: [kind:1][handle:4][state:1][retries:4][lastAttempt:8][payload:rest]
func encodeRecord(r Record) []byte {
	buf := make([]byte, 1+4+1+4+8+len(r.Payload))
	buf[0] = r.Kind
	binary.BigEndian.PutUint32(buf[1:5], r.Handle)
	buf[5] = byte(r.State)
	binary.BigEndian.PutUint32(buf[6:10], r.Retries)
	binary.BigEndian.PutUint64(buf[10:18], uint64(r.LastAttempt))
	copy(buf[18:], r.Payload)
	return buf
}

func decodeRecord(b []byte) (Record, error) {
	if len(b) < 18 {
		return Record{}, errors.New("outbox: record too short")
	}
	rec := Record{
		Kind:        b[0],
		Handle:      binary.BigEndian.Uint32(b[1:5]),
		State:       State(b[5]),
		Retries:     binary.BigEndian.Uint32(b[6:10]),
		LastAttempt: int64(binary.BigEndian.Uint64(b[10:18])),
	}
	if len(b) > 18 {
		rec.Payload = append([]byte(nil), b[18:]...)
	}
	return rec, nil
}

// Outbox is a pebble-backed durable store of telemetry events awaiting
// publish. It also owns the monotonic event-id counter events are keyed
// by, seeded from whatever is already durable on disk, so callers never
// carry a second, separately-wired sequencer alongside it.
type Outbox struct {
	db  *pebble.DB
	seq atomic.Uint64
}

// Open opens (creating if absent) the outbox database at dir. WAL is left
// enabled — durability here is the entire point. The id sequence resumes
// from the highest id already stored, so a restart never reissues one.
func Open(dir string) (*Outbox, error) {
	db, err := pebble.Open(dir, &pebble.Options{
		DisableWAL: false,
	})
	if err != nil {
		return nil, err
	}
	o := &Outbox{db: db}
	max, err := o.maxID()
	if err != nil {
		db.Close()
		return nil, err
	}
	o.seq.Store(max)
	return o, nil
}

func (o *Outbox) Close() error {
	return o.db.Close()
}

// NextID returns the next strictly monotonic event id.
func (o *Outbox) NextID() uint64 { return o.seq.Add(1) }

// maxID returns the highest id currently stored, 0 if the outbox is empty.
// Keys are zero-padded decimal, so they sort lexicographically in id order
// and the last entry is always the maximum.
func (o *Outbox) maxID() (uint64, error) {
	iter, err := o.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte("event/"),
		UpperBound: []byte("event/~"),
	})
	if err != nil {
		return 0, err
	}
	defer iter.Close()
	if !iter.Last() {
		return 0, iter.Error()
	}
	return parseKey(iter.Key())
}

// PutNew inserts a new event in StateNew, awaiting the broadcaster's next
// sweep.
func (o *Outbox) PutNew(id uint64, kind uint8, handle uint32, payload []byte) error {
	rec := Record{Kind: kind, Handle: handle, State: StateNew, Payload: payload}
	return o.db.Set(keyFor(id), encodeRecord(rec), pebble.Sync)
}

// Append allocates the next event id via NextID and inserts it in StateNew,
// the usual way a caller appends a new telemetry event.
func (o *Outbox) Append(kind uint8, handle uint32, payload []byte) (uint64, error) {
	id := o.NextID()
	if err := o.PutNew(id, kind, handle, payload); err != nil {
		return 0, err
	}
	return id, nil
}

// UpdateState rewrites id's state and retry count after a send/ack/fail.
func (o *Outbox) UpdateState(id uint64, state State, retries uint32) error {
	rec, err := o.Get(id)
	if err != nil {
		return err
	}
	rec.State = state
	rec.Retries = retries
	rec.LastAttempt = time.Now().UnixNano()
	return o.db.Set(keyFor(id), encodeRecord(rec), pebble.Sync)
}

// Delete removes an ACKED record during cleanup.
func (o *Outbox) Delete(id uint64) error {
	return o.db.Delete(keyFor(id), pebble.Sync)
}

// Get returns the current record for id.
func (o *Outbox) Get(id uint64) (Record, error) {
	val, closer, err := o.db.Get(keyFor(id))
	if err != nil {
		return Record{}, err
	}
	defer closer.Close()
	return decodeRecord(val)
}

// ScanByState iterates every record currently in state, in key (id) order.
// This is what the broadcaster's replay sweep calls.
func (o *Outbox) ScanByState(state State, fn func(id uint64, rec Record) error) error {
	iter, err := o.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte("event/"),
		UpperBound: []byte("event/~"),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		rec, err := decodeRecord(iter.Value())
		if err != nil {
			return err
		}
		if rec.State != state {
			continue
		}
		id, err := parseKey(iter.Key())
		if err != nil {
			return err
		}
		if err := fn(id, rec); err != nil {
			return err
		}
	}
	return iter.Error()
}

func keyFor(id uint64) []byte {
	return []byte(fmt.Sprintf("event/%020d", id))
}

func parseKey(b []byte) (uint64, error) {
	var id uint64
	_, err := fmt.Sscanf(string(bytes.TrimPrefix(b, []byte("event/"))), "%d", &id)
	return id, err
}
