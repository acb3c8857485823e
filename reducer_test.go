package oxalis

import (
	"errors"
	"testing"
)

var testAddSitups = NewCreator("add_situps", "num")
var testAddPushups = NewCreator("add_pushups", "num")

func testRepsReducer(creator Creator) Reducer[any] {
	return func(state any, act Action) (any, error) {
		if !creator.Match(act) {
			return state, nil
		}
		cur, _ := state.([]int)
		next := make([]int, 0, len(cur)+1)
		next = append(next, cur...)
		for range act.Field("num").(int) {
			next = append(next, 1)
		}
		return next, nil
	}
}

func testWorkoutReducer() Reducer[map[string]any] {
	return Combine(map[string]Reducer[any]{
		"situps":  testRepsReducer(testAddSitups),
		"pushups": testRepsReducer(testAddPushups),
	})
}

func TestCombineIdentityNoOp(t *testing.T) {
	root := testWorkoutReducer()
	state := map[string]any{
		"situps":  []int{1, 1},
		"pushups": []int(nil),
	}

	next, err := root(state, Action{Tag: "unrelated"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !identical(state, next) {
		t.Fatal("no-op transition must return the same composite state")
	}
}

func TestCombineReplacesOnlyChangedKeys(t *testing.T) {
	root := testWorkoutReducer()
	initial := map[string]any{
		"situps":  []int(nil),
		"pushups": []int(nil),
	}

	afterSitups, err := root(initial, testAddSitups.New(3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if identical(initial, afterSitups) {
		t.Fatal("changed transition must return a fresh composite")
	}
	if got := len(afterSitups["situps"].([]int)); got != 3 {
		t.Fatalf("situps = %d, want 3", got)
	}
	if !identical(initial["pushups"], afterSitups["pushups"]) {
		t.Fatal("untouched key must keep its previous value by reference")
	}

	afterPushups, err := root(afterSitups, testAddPushups.New(2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := len(afterPushups["pushups"].([]int)); got != 2 {
		t.Fatalf("pushups = %d, want 2", got)
	}
	if !identical(afterSitups["situps"], afterPushups["situps"]) {
		t.Fatal("situps must keep the value from the previous state by reference")
	}
}

func TestCombinePropagatesSubReducerError(t *testing.T) {
	boom := errors.New("boom")
	root := Combine(map[string]Reducer[any]{
		"a": func(state any, act Action) (any, error) {
			return nil, boom
		},
	})

	state := map[string]any{"a": 1}
	next, err := root(state, Action{Tag: "x"})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if !identical(state, next) {
		t.Fatal("failed transition must return the input state")
	}
}

func TestIdentical(t *testing.T) {
	s := []int{1}
	m := map[string]int{}

	cases := []struct {
		name string
		a, b any
		want bool
	}{
		{"both nil", nil, nil, true},
		{"nil vs value", nil, 1, false},
		{"same slice", s, s, true},
		{"equal but distinct slices", []int{1}, []int{1}, false},
		{"same map", m, m, true},
		{"comparable equal", 5, 5, true},
		{"comparable unequal", 5, 6, false},
		{"different types", int32(5), int64(5), false},
		{"strings", "a", "a", true},
	}
	for _, c := range cases {
		if got := identical(c.a, c.b); got != c.want {
			t.Errorf("%s: identical = %v, want %v", c.name, got, c.want)
		}
	}
}
