package main

import (
	"context"
	"embed"
	"log/slog"
	"os"

	"github.com/lymar/oxalis"
	"github.com/lymar/oxalis/internal/log"
)

//go:embed rules
var rulesFS embed.FS

// snapshots taken under different reducer rules must not be loaded
var reducerVersion = oxalis.VersionFromFS(rulesFS)

var addSitups = oxalis.NewCreator("add_situps", "num")
var addPushups = oxalis.NewCreator("add_pushups", "num")

func repsReducer(creator oxalis.Creator) oxalis.Reducer[any] {
	return func(state any, act oxalis.Action) (any, error) {
		if !creator.Match(act) {
			return state, nil
		}
		cur, _ := state.([]int)
		num := act.Field("num").(int)
		next := make([]int, 0, len(cur)+num)
		next = append(next, cur...)
		for range num {
			next = append(next, 1)
		}
		return next, nil
	}
}

func rootReducer() oxalis.Reducer[map[string]any] {
	return oxalis.Combine(map[string]oxalis.Reducer[any]{
		"situps":  repsReducer(addSitups),
		"pushups": repsReducer(addPushups),
	})
}

func newStore() *oxalis.Store[map[string]any] {
	initial := map[string]any{
		"situps":  []int(nil),
		"pushups": []int(nil),
	}
	return oxalis.New(initial, rootReducer(),
		oxalis.WithMiddleware(
			oxalis.Logging[map[string]any](slog.Default()),
		),
	)
}

func trackAndBackup() {
	journal, err := oxalis.OpenJournal("dev.db")
	if err != nil {
		panic(err)
	}
	defer journal.Close()

	store := newStore()
	defer store.Close()

	history := oxalis.NewHistory(100)
	store.Subscribe(oxalis.RecordTo[map[string]any](journal))
	store.Subscribe(oxalis.ObserveInto[map[string]any](history))

	ctx := context.Background()

	if _, err := store.Dispatch(ctx, addSitups.New(3)); err != nil {
		panic(err)
	}

	// thunks and async computations resolve to actions before committing
	workoutOfTheDay := oxalis.Thunk(func() (oxalis.Dispatchable, error) {
		return addPushups.New(2), nil
	})
	if _, err := store.Dispatch(ctx, workoutOfTheDay); err != nil {
		panic(err)
	}

	slog.Debug("current state", "state", store.State())

	for e := range history.Since(0) {
		slog.Debug("history entry", "seq", e.Seq, "tag", e.Action.Tag)
	}

	if err := journal.SaveSnapshot(reducerVersion, journal.LatestID(), store.State()); err != nil {
		panic(err)
	}

	f, err := os.Create("dev.backup")
	if err != nil {
		panic(err)
	}
	defer f.Close()

	if err := journal.BackupTo(ctx, 5, f); err != nil {
		panic(err)
	}
}

func restoreAndReplay() {
	dbName := "dev2.db"
	if err := os.Remove(dbName); err != nil {
		if !os.IsNotExist(err) {
			panic(err)
		}
	}

	backup, err := os.Open("dev.backup")
	if err != nil {
		panic(err)
	}
	defer backup.Close()

	ctx := context.Background()

	if err := oxalis.RestoreJournal(ctx, dbName, backup); err != nil {
		panic(err)
	}

	journal, err := oxalis.OpenJournal(dbName)
	if err != nil {
		panic(err)
	}
	defer journal.Close()

	var snapshot map[string]any
	upTo, err := journal.LoadSnapshot(reducerVersion, &snapshot)
	if err != nil {
		panic(err)
	}
	slog.Debug("restored snapshot", "up_to", upTo, "state", snapshot)

	store := newStore()
	defer store.Close()

	last, err := oxalis.Replay(ctx, journal, store, 1)
	if err != nil {
		panic(err)
	}

	slog.Debug("replayed journal", "last_id", last, "state", store.State())
}

func main() {
	log.InitDevLog()

	trackAndBackup()
	restoreAndReplay()
}
