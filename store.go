package oxalis

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// Store is the sole owner of an application's current state. State only
// changes through dispatched actions run through the reducer; the sequence
// {reduce, swap, notify} is serialized on a single commit goroutine, FIFO
// among already-resolved actions. Reads never block on in-flight
// dispatches.
type Store[S any] struct {
	state   atomic.Pointer[S]
	reducer atomic.Pointer[Reducer[S]]
	chain   DispatchFunc
	reg     *registry[S]
	feed    *changeFeed[Change[S]]
	report  ReportFunc

	queue    chan *commitEnvelope
	loopDone chan struct{}
	closeMu  sync.RWMutex
	closed   bool

	// spill for queued re-entrant dispatches issued while the queue is
	// full. The commit loop is the only consumer of queue, so it must
	// never block sending to it; spilled envelopes run right after the
	// transition in flight.
	pendingMu sync.Mutex
	pending   []*commitEnvelope
}

// commitEnvelope carries one resolved action to the commit loop. done is
// nil for queued re-entrant dispatches, whose commit errors go to the
// reporter instead.
type commitEnvelope struct {
	ctx  context.Context
	act  Action
	done chan error
}

type config[S any] struct {
	middlewares []Middleware[S]
	report      ReportFunc
	queueSize   int
	feedBuf     int
	dropIfSlow  bool
}

type Option[S any] func(*config[S])

// WithMiddleware appends middlewares to the chain. The chain is fixed for
// the store's lifetime; the first middleware is the outermost wrapper.
func WithMiddleware[S any](mws ...Middleware[S]) Option[S] {
	return func(c *config[S]) {
		c.middlewares = append(c.middlewares, mws...)
	}
}

// WithReporter sets the sink for post-commit failures: listener errors and
// commit errors of queued re-entrant dispatches. Defaults to slog.
func WithReporter[S any](report ReportFunc) Option[S] {
	return func(c *config[S]) {
		c.report = report
	}
}

// WithQueueSize sets the capacity of the commit queue.
func WithQueueSize[S any](n int) Option[S] {
	return func(c *config[S]) {
		if n > 0 {
			c.queueSize = n
		}
	}
}

// WithChangeBuffer sets the per-subscriber buffer of the Changes feed.
func WithChangeBuffer[S any](n int) Option[S] {
	return func(c *config[S]) {
		if n > 0 {
			c.feedBuf = n
		}
	}
}

// WithDropSlowSubscribers makes the Changes feed drop updates for
// subscribers whose buffer is full instead of waiting for them.
func WithDropSlowSubscribers[S any]() Option[S] {
	return func(c *config[S]) {
		c.dropIfSlow = true
	}
}

// New constructs a store around an initial state and a root reducer and
// starts its commit loop. The store must be released with Close.
func New[S any](initial S, root Reducer[S], opts ...Option[S]) *Store[S] {
	if root == nil {
		panic("oxalis: nil root reducer")
	}

	cfg := config[S]{
		report:    defaultReport,
		queueSize: 1024,
		feedBuf:   64,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	st := &Store[S]{
		reg:      &registry[S]{},
		feed:     newChangeFeed[Change[S]](cfg.feedBuf, cfg.dropIfSlow),
		report:   cfg.report,
		queue:    make(chan *commitEnvelope, cfg.queueSize),
		loopDone: make(chan struct{}),
	}
	st.state.Store(&initial)
	st.reducer.Store(&root)

	caps := Capabilities[S]{
		State:    st.State,
		Dispatch: st.Enqueue,
	}
	st.chain = buildChain(caps, cfg.middlewares, st.commit)

	go st.loop()

	return st
}

// State returns the latest committed state. It never waits on in-flight
// dispatches.
func (st *Store[S]) State() S {
	return *st.state.Load()
}

// Reducer returns the active root reducer.
func (st *Store[S]) Reducer() Reducer[S] {
	return *st.reducer.Load()
}

// ReplaceReducer atomically swaps the active reducer. The state is left
// untouched; dispatches committing after the swap use the new reducer.
func (st *Store[S]) ReplaceReducer(next Reducer[S]) {
	if next == nil {
		panic("oxalis: nil root reducer")
	}
	st.reducer.Store(&next)
}

// Dispatch resolves input into a concrete action, runs it through the
// middleware chain and the reducer, and waits for the commit. It returns
// the resolved action; the error covers resolution, middleware and reducer
// failures, each of which leaves the state untouched.
//
// Resolution of thunks and async computations may run concurrently across
// callers; commits are serialized FIFO. Cancelling ctx after resolution has
// produced a concrete action is not honored: the transition completes.
func (st *Store[S]) Dispatch(ctx context.Context, input Dispatchable) (Action, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	act, err := resolve(ctx, input)
	if err != nil {
		return Action{}, err
	}

	done := make(chan error, 1)
	if err := st.enqueue(&commitEnvelope{ctx: ctx, act: act, done: done}); err != nil {
		return act, err
	}
	return act, <-done
}

// Enqueue is the re-entrant form of Dispatch: it resolves input, queues the
// commit and returns without waiting for it. Safe to call from middlewares
// and listeners; the queued commit runs after the transition currently in
// flight. Its commit errors are routed to the reporter.
func (st *Store[S]) Enqueue(ctx context.Context, input Dispatchable) (Action, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	act, err := resolve(ctx, input)
	if err != nil {
		return Action{}, err
	}
	if err := st.enqueue(&commitEnvelope{ctx: ctx, act: act}); err != nil {
		return act, err
	}
	return act, nil
}

// Subscribe registers a listener for every committed transition. The
// returned function unregisters it; calling it more than once is fine.
func (st *Store[S]) Subscribe(fn Listener[S]) func() {
	if fn == nil {
		panic("oxalis: nil listener")
	}
	return st.reg.add(&subscription[S]{fn: fn, all: true})
}

// SubscribeTo registers a listener invoked only for transitions whose
// action carries the given tag. Tag listeners run after all global
// listeners, in registration order.
func (st *Store[S]) SubscribeTo(tag string, fn Listener[S]) func() {
	if fn == nil {
		panic("oxalis: nil listener")
	}
	return st.reg.add(&subscription[S]{fn: fn, tag: tag})
}

// Changes returns a channel of committed transitions. The subscription
// ends when ctx is cancelled or the store closes.
func (st *Store[S]) Changes(ctx context.Context) <-chan Change[S] {
	return st.feed.subscribe(ctx)
}

// Close stops the commit loop after draining dispatches already queued and
// closes all change feeds. Dispatches issued after Close fail with
// ErrClosed.
func (st *Store[S]) Close() error {
	st.closeMu.Lock()
	if st.closed {
		st.closeMu.Unlock()
		return ErrClosed
	}
	st.closed = true
	close(st.queue)
	st.closeMu.Unlock()

	<-st.loopDone
	st.feed.closeAll()
	return nil
}

func (st *Store[S]) enqueue(env *commitEnvelope) error {
	st.closeMu.RLock()
	defer st.closeMu.RUnlock()
	if st.closed {
		return ErrClosed
	}
	if env.done == nil {
		// may run on the commit loop itself; never block on the queue
		select {
		case st.queue <- env:
		default:
			st.pendingMu.Lock()
			st.pending = append(st.pending, env)
			st.pendingMu.Unlock()
		}
		return nil
	}
	st.queue <- env
	return nil
}

func (st *Store[S]) loop() {
	defer close(st.loopDone)

	for env := range st.queue {
		st.process(env)
		st.drainPending()
	}
	st.drainPending()
}

func (st *Store[S]) process(env *commitEnvelope) {
	err := st.run(env)
	if env.done != nil {
		env.done <- err
	} else if err != nil {
		st.report(err)
	}
}

func (st *Store[S]) drainPending() {
	for {
		st.pendingMu.Lock()
		pend := st.pending
		st.pending = nil
		st.pendingMu.Unlock()

		if len(pend) == 0 {
			return
		}
		for _, env := range pend {
			st.process(env)
		}
	}
}

// run executes the full chain for one envelope. A panic escaping the chain
// is converted into an error here so the loop survives; the state was not
// swapped in that case.
func (st *Store[S]) run(env *commitEnvelope) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("oxalis: dispatch %s panicked: %v", env.act.Tag, v)
		}
	}()
	_, err = st.chain(env.ctx, env.act)
	return err
}

// commit is the terminal step of the chain: reduce, swap, notify. Only
// reached when no middleware short-circuited.
func (st *Store[S]) commit(_ context.Context, act Action) (Action, error) {
	red := *st.reducer.Load()
	cur := *st.state.Load()

	next, err := red(cur, act)
	if err != nil {
		return act, &ReduceError{Tag: act.Tag, Err: err}
	}

	st.state.Store(&next)
	st.notify(next, act)
	return act, nil
}

// notify runs global listeners then tag listeners, each in registration
// order, over a snapshot of the registry taken at commit time.
func (st *Store[S]) notify(state S, act Action) {
	snap := st.reg.snapshot()
	for _, sub := range snap {
		if sub.all {
			st.invoke(sub, state, act)
		}
	}
	for _, sub := range snap {
		if !sub.all && sub.tag == act.Tag {
			st.invoke(sub, state, act)
		}
	}
	st.feed.emit(Change[S]{State: state, Action: act})
}

func (st *Store[S]) invoke(sub *subscription[S], state S, act Action) {
	defer func() {
		if v := recover(); v != nil {
			st.report(&ListenerError{Tag: act.Tag, Err: fmt.Errorf("panic: %v", v)})
		}
	}()
	if err := sub.fn(state, act); err != nil {
		st.report(&ListenerError{Tag: act.Tag, Err: err})
	}
}
