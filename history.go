package oxalis

import (
	"iter"
	"sync"
	"time"

	"github.com/google/btree"
)

// HistoryEntry is one committed action as kept by History. Seq grows
// monotonically per History instance; it is unrelated to journal ids.
type HistoryEntry struct {
	Seq    uint64
	At     time.Time
	Action Action
}

// History is a bounded in-memory index of recently committed actions,
// ordered by commit sequence. Attach it to a store with ObserveInto. When
// the limit is exceeded the oldest entries are evicted.
type History struct {
	mu    sync.RWMutex
	tree  *btree.BTreeG[HistoryEntry]
	next  uint64
	limit int
}

func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = 1024
	}
	return &History{
		tree: btree.NewG(8, func(a, b HistoryEntry) bool {
			return a.Seq < b.Seq
		}),
		next:  1,
		limit: limit,
	}
}

// ObserveInto returns a listener recording every committed action into h.
func ObserveInto[S any](h *History) Listener[S] {
	return func(_ S, act Action) error {
		h.add(act)
		return nil
	}
}

func (h *History) add(act Action) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.tree.ReplaceOrInsert(HistoryEntry{
		Seq:    h.next,
		At:     time.Now(),
		Action: act,
	})
	h.next++

	for h.tree.Len() > h.limit {
		h.tree.DeleteMin()
	}
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.tree.Len()
}

// Since iterates entries with Seq >= seq in ascending order. The entries
// are copied out under the lock, so the sequence is safe to consume while
// the store keeps committing.
func (h *History) Since(seq uint64) iter.Seq[HistoryEntry] {
	h.mu.RLock()
	entries := make([]HistoryEntry, 0, h.tree.Len())
	h.tree.AscendGreaterOrEqual(HistoryEntry{Seq: seq}, func(e HistoryEntry) bool {
		entries = append(entries, e)
		return true
	})
	h.mu.RUnlock()

	return func(yield func(HistoryEntry) bool) {
		for _, e := range entries {
			if !yield(e) {
				return
			}
		}
	}
}

// Recent returns up to n entries, newest first.
func (h *History) Recent(n int) []HistoryEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()

	entries := make([]HistoryEntry, 0, n)
	h.tree.Descend(func(e HistoryEntry) bool {
		entries = append(entries, e)
		return len(entries) < n
	})
	return entries
}
