package oxalis

import (
	"context"
	"slices"
	"sync"
)

// Listener observes committed transitions. It receives the state that was
// just committed together with the action that produced it. A returned
// error is routed to the store's reporter; it never reverts the commit and
// never prevents sibling listeners from running.
type Listener[S any] func(state S, act Action) error

type subscription[S any] struct {
	fn  Listener[S]
	tag string
	all bool
}

// registry keeps subscriptions in registration order. Each notification
// pass iterates a point-in-time snapshot, so subscribing or unsubscribing
// mid-pass takes effect starting with the next dispatch.
type registry[S any] struct {
	mu   sync.Mutex
	subs []*subscription[S]
}

func (r *registry[S]) add(sub *subscription[S]) func() {
	r.mu.Lock()
	r.subs = append(r.subs, sub)
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			if i := slices.Index(r.subs, sub); i >= 0 {
				r.subs = slices.Delete(slices.Clone(r.subs), i, i+1)
			}
			r.mu.Unlock()
		})
	}
}

func (r *registry[S]) snapshot() []*subscription[S] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.subs
}

// Change is one committed transition as seen by a channel subscriber.
type Change[S any] struct {
	State  S
	Action Action
}

type changeFeed[T any] struct {
	mu         sync.RWMutex
	subs       map[uint64]*feedSub[T]
	next       uint64
	closed     bool
	done       chan struct{}
	dropIfSlow bool
	buf        int
}

type feedSub[T any] struct {
	ch  chan T
	ctx context.Context
}

func newChangeFeed[T any](bufferPerSub int, dropIfSlow bool) *changeFeed[T] {
	return &changeFeed[T]{
		subs:       make(map[uint64]*feedSub[T]),
		done:       make(chan struct{}),
		buf:        bufferPerSub,
		dropIfSlow: dropIfSlow,
	}
}

func (f *changeFeed[T]) subscribe(ctx context.Context) <-chan T {
	ch := make(chan T, f.buf)

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		close(ch)
		return ch
	}
	id := f.next
	f.next++
	f.subs[id] = &feedSub[T]{
		ch:  ch,
		ctx: ctx,
	}
	f.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			f.mu.Lock()
			s, ok := f.subs[id]
			if ok {
				delete(f.subs, id)
			}
			f.mu.Unlock()
			if ok {
				close(s.ch)
			}
		})
	}

	// also watch the feed-wide done channel, otherwise a subscriber with a
	// never-cancelled context would pin this goroutine past closeAll
	go func() {
		select {
		case <-ctx.Done():
		case <-f.done:
		}
		unsub()
	}()

	return ch
}

func (f *changeFeed[T]) emit(v T) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	for _, s := range f.subs {
		if !f.dropIfSlow {
			select {
			case s.ch <- v:
			case <-s.ctx.Done():
			}
		} else {
			select {
			case s.ch <- v:
			default:
			}
		}
	}
}

func (f *changeFeed[T]) closeAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	close(f.done)
	for id, s := range f.subs {
		delete(f.subs, id)
		close(s.ch)
	}
}
