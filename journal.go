package oxalis

import (
	"context"
	"encoding/binary"
	"iter"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/go-softwarelab/common/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var actionsBucket = []byte("actions")
var snapshotBucket = []byte("snapshot")
var snapshotKey = []byte("state")

// - bucket: actionsBucket - "actions"
// 		- <action id, big endian uint64> -> <serialized journalRecord>
// - bucket: snapshotBucket - "snapshot"
// 		- snapshotKey -> <serialized snapshotRecord>

type journalRecord struct {
	Tag       string         `cbor:"1,keyasint"`
	Fields    map[string]any `cbor:"2,keyasint,omitempty"`
	Timestamp int64          `cbor:"3,keyasint"`
}

type snapshotRecord struct {
	Version string `cbor:"1,keyasint"`
	UpTo    uint64 `cbor:"2,keyasint"`
	State   []byte `cbor:"3,keyasint"`
}

// Journal is a durable, append-only log of committed actions with an
// optional whole-state snapshot, backed by a bolt database. It lets an
// application rebuild a store after a restart: load the snapshot, then
// Replay the tail of the log.
//
// The store itself stays purely in-memory; attach RecordTo as a listener
// to journal every committed transition.
type Journal struct {
	db *bolt.DB

	mu       sync.Mutex
	latestID uint64
}

func OpenJournal(dbFile string) (*Journal, error) {
	db, err := bolt.Open(dbFile, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}

	j := &Journal{db: db}
	if err := j.init(); err != nil {
		db.Close()
		return nil, err
	}
	return j, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

func (j *Journal) init() error {
	return j.db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(snapshotBucket); err != nil {
			return err
		}
		acts, err := tx.CreateBucketIfNotExists(actionsBucket)
		if err != nil {
			return err
		}

		c := acts.Cursor()
		latestK, _ := c.Last()

		if latestK != nil {
			j.latestID = binary.BigEndian.Uint64(latestK)
		} else {
			j.latestID = 0
		}

		slog.Debug("journal initialized", "latest_id", j.latestID)

		return nil
	})
}

// LatestID returns the id of the most recently appended action, 0 for an
// empty journal.
func (j *Journal) LatestID() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.latestID
}

// Append writes actions to the log in order, assigning sequential ids.
func (j *Journal) Append(acts ...Action) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	next := j.latestID
	err := j.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(actionsBucket)
		for _, act := range acts {
			raw, err := cborMarshal(&journalRecord{
				Tag:       act.Tag,
				Fields:    act.Fields,
				Timestamp: time.Now().UnixMicro(),
			})
			if err != nil {
				return err
			}

			next++
			idRaw := make([]byte, 8)
			binary.BigEndian.PutUint64(idRaw, next)
			if err := bucket.Put(idRaw, raw); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	j.latestID = next
	return nil
}

// RecordTo returns a listener that journals every committed transition.
func RecordTo[S any](j *Journal) Listener[S] {
	return func(_ S, act Action) error {
		return j.Append(act)
	}
}

// Actions iterates the log from fromID (inclusive) in id order.
func (j *Journal) Actions(fromID uint64) iter.Seq2[uint64, Action] {
	return func(yield func(uint64, Action) bool) {
		for {
			batch := loadActionsFromPos(j.db, fromID, 64000)
			n := 0
			for p := range batch {
				n++
				fromID = p.Left + 1
				if !yield(p.Left, p.Right) {
					// drain so the loader goroutine can exit
					for range batch {
					}
					return
				}
			}
			if n == 0 {
				return
			}
		}
	}
}

// Replay dispatches every journaled action from fromID (inclusive) into the
// store and returns the id of the last action applied. A dispatch failure
// stops the replay.
func Replay[S any](ctx context.Context, j *Journal, st *Store[S], fromID uint64) (uint64, error) {
	last := fromID
	if last > 0 {
		last--
	}

	for {
		batch := loadActionsFromPos(j.db, last+1, 64000)
		n := 0
		for p := range batch {
			n++
			last = p.Left
			if _, err := st.Dispatch(ctx, p.Right); err != nil {
				for range batch {
				}
				return last, err
			}
		}
		if n == 0 {
			return last, nil
		}
	}
}

// normalizeFields rewrites decoded payloads in place so replayed actions
// carry the numeric types dispatch delivered: the decoder produces uint64
// and int64 for integers that were plain ints when the action was recorded.
func normalizeFields(fields map[string]any) map[string]any {
	for k, v := range fields {
		fields[k] = normalizeValue(v)
	}
	return fields
}

func normalizeValue(v any) any {
	switch x := v.(type) {
	case uint64:
		if x <= uint64(math.MaxInt) {
			return int(x)
		}
		return x
	case int64:
		if x >= math.MinInt && x <= math.MaxInt {
			return int(x)
		}
		return x
	case map[string]any:
		for k, val := range x {
			x[k] = normalizeValue(val)
		}
		return x
	case map[any]any:
		for k, val := range x {
			x[k] = normalizeValue(val)
		}
		return x
	case []any:
		for i, val := range x {
			x[i] = normalizeValue(val)
		}
		return x
	default:
		return v
	}
}

func loadActionsFromPos(
	db *bolt.DB,
	fromID uint64,
	maxCount int,
) <-chan types.Pair[uint64, Action] {
	out := make(chan types.Pair[uint64, Action], 1024)
	go func() {
		defer close(out)

		err := db.View(func(tx *bolt.Tx) error {
			bucket := tx.Bucket(actionsBucket)
			if bucket == nil {
				return nil
			}

			c := bucket.Cursor()

			startKey := make([]byte, 8)
			binary.BigEndian.PutUint64(startKey, fromID)

			read := 0
			for k, v := c.Seek(startKey); k != nil; k, v = c.Next() {
				id := binary.BigEndian.Uint64(k)
				var rec journalRecord
				if err := cborUnmarshal(v, &rec); err != nil {
					slog.Error("failed to deserialize journal record", "error", err, "id", id)
					return err
				}
				out <- types.Pair[uint64, Action]{
					Left:  id,
					Right: Action{Tag: rec.Tag, Fields: normalizeFields(rec.Fields)},
				}
				read++
				if read >= maxCount {
					break
				}
			}

			return nil
		})
		if err != nil {
			slog.Error("failed to load actions from journal", "error", err)
		}
	}()

	return out
}

// SaveSnapshot stores a whole-state checkpoint covering journaled actions
// up to and including upTo. version identifies the reducer logic the state
// was produced with; LoadSnapshot rejects snapshots taken under a different
// version. Any previous snapshot is replaced.
func (j *Journal) SaveSnapshot(version string, upTo uint64, state any) error {
	raw, err := cborMarshal(state)
	if err != nil {
		return err
	}
	return j.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(snapshotBucket)
		return writeRecordValue(bucket, snapshotKey, &snapshotRecord{
			Version: version,
			UpTo:    upTo,
			State:   raw,
		})
	})
}

// LoadSnapshot decodes the stored checkpoint into the provided value and
// returns the id of the last journaled action it covers. ErrNoSnapshot when
// none was saved, ErrSnapshotVersion when it was taken under a different
// reducer version.
func (j *Journal) LoadSnapshot(version string, into any) (uint64, error) {
	var upTo uint64
	err := j.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(snapshotBucket)
		rec, err := readRecordValue[snapshotRecord](bucket, snapshotKey)
		if err != nil {
			return err
		}
		if rec == nil {
			return ErrNoSnapshot
		}
		if rec.Version != version {
			return ErrSnapshotVersion
		}
		upTo = rec.UpTo
		return cborUnmarshal(rec.State, into)
	})
	return upTo, err
}

func readRecordValue[V any](bucket *bolt.Bucket, key []byte) (*V, error) {
	rawData := bucket.Get(key)
	if rawData == nil {
		return nil, nil
	}
	var data *V
	if err := cborUnmarshal(rawData, &data); err != nil {
		return nil, err
	}
	return data, nil
}

func writeRecordValue[V any](bucket *bolt.Bucket, key []byte, value *V) error {
	bin, err := cborMarshal(value)
	if err != nil {
		return err
	}
	return bucket.Put(key, bin)
}
