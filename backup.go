package oxalis

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"iter"
	"os"
	"time"

	"github.com/DataDog/zstd"
	"github.com/fxamacker/cbor/v2"
	"github.com/go-softwarelab/common/pkg/seq"
	bolt "go.etcd.io/bbolt"
)

type backupAction struct {
	ID   uint64 `cbor:"1,keyasint"`
	Data []byte `cbor:"2,keyasint"`
}

type backupSnapshot struct {
	Data []byte `cbor:"1,keyasint"`
}

type backupItem struct {
	Action   *backupAction   `cbor:"1,keyasint,omitempty"`
	Snapshot *backupSnapshot `cbor:"2,keyasint,omitempty"`
}

func writeBackup(
	ctx context.Context,
	writer io.Writer,
	zstdCompressionLevel int,
	items iter.Seq[backupItem],
) error {
	w := zstd.NewWriterLevel(writer, zstdCompressionLevel)
	defer w.Close()

	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		return err
	}
	encoder := em.NewEncoder(w)
	n := 0
	for i := range items {
		n++
		if n%1000 == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}
		if err := encoder.Encode(i); err != nil {
			return err
		}
	}
	return nil
}

func loadBackup(reader io.Reader) iter.Seq[backupItem] {
	return func(yield func(backupItem) bool) {
		r := zstd.NewReader(reader)
		defer r.Close()

		dec, err := cbor.DecOptions{}.DecMode()
		if err != nil {
			panic(err)
		}
		decoder := dec.NewDecoder(r)

		for {
			var item backupItem
			err := decoder.Decode(&item)
			if err == io.EOF {
				break
			}
			if err != nil {
				panic(err)
			}
			if !yield(item) {
				break
			}
		}
	}
}

// BackupTo streams the whole journal, snapshot included, into w as a
// zstd-compressed sequence of CBOR items.
func (j *Journal) BackupTo(
	ctx context.Context,
	zstdCompressionLevel int,
	w io.Writer,
) error {
	return j.db.View(func(tx *bolt.Tx) error {
		actsSeq := func(yield func(backupItem) bool) {
			acts := tx.Bucket(actionsBucket)
			c := acts.Cursor()
			for k, v := c.First(); k != nil; k, v = c.Next() {
				id := binary.BigEndian.Uint64(k)
				if !yield(backupItem{
					Action: &backupAction{
						ID:   id,
						Data: v,
					},
				}) {
					break
				}
			}
		}

		snapSeq := func(yield func(backupItem) bool) {
			snap := tx.Bucket(snapshotBucket)
			if raw := snap.Get(snapshotKey); raw != nil {
				yield(backupItem{
					Snapshot: &backupSnapshot{Data: raw},
				})
			}
		}

		return writeBackup(ctx, w, zstdCompressionLevel, seq.Concat(actsSeq, snapSeq))
	})
}

// RestoreJournal creates a fresh journal database at dbFile from a backup
// stream. It refuses to overwrite an existing file.
func RestoreJournal(
	ctx context.Context,
	dbFile string,
	r io.Reader,
) error {
	if _, err := os.Stat(dbFile); !os.IsNotExist(err) {
		return fmt.Errorf("journal file %s already exists", dbFile)
	}

	db, err := bolt.Open(dbFile, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return err
	}
	defer db.Close()

	return db.Update(func(tx *bolt.Tx) error {
		acts, err := tx.CreateBucket(actionsBucket)
		if err != nil {
			return err
		}

		snap, err := tx.CreateBucket(snapshotBucket)
		if err != nil {
			return err
		}

		n := 0
		for item := range loadBackup(r) {
			n++
			if n%1000 == 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
				}
			}

			if item.Action != nil {
				idRaw := make([]byte, 8)
				binary.BigEndian.PutUint64(idRaw, item.Action.ID)
				if err := acts.Put(idRaw, item.Action.Data); err != nil {
					return err
				}
			} else if item.Snapshot != nil {
				if err := snap.Put(snapshotKey, item.Snapshot.Data); err != nil {
					return err
				}
			}
		}

		return nil
	})
}
