// Package oxalis is a predictable, single-writer state container: one
// current state value, updated only through pure reducers driven by
// immutable actions, with a composable middleware chain and a
// publish/subscribe notification layer.
//
// A store is constructed explicitly, owned by its application, and released
// with Close:
//
//	addSitups := oxalis.NewCreator("add_situps", "num")
//
//	root := oxalis.Match[map[string]any]().
//	    WhenAction(addSitups).
//	    Then(func(s map[string]any, a oxalis.Action) (map[string]any, error) {
//	        // return a new state, never mutate s
//	    }).
//	    Build()
//
//	store := oxalis.New(initial, root)
//	defer store.Close()
//
//	store.Subscribe(func(s map[string]any, a oxalis.Action) error {
//	    slog.Info("committed", "tag", a.Tag)
//	    return nil
//	})
//
//	store.Dispatch(ctx, addSitups.New(3))
//
// Concurrent callers may dispatch simultaneously; thunk and async inputs
// resolve in parallel, but every transition commits through one FIFO
// serialization point, so an observed state is always the result of
// complete transitions. State() reads never block.
//
// The optional Journal persists committed actions to a bolt database and
// can replay them into a fresh store; BackupTo and RestoreJournal move a
// journal through a compressed stream.
package oxalis
