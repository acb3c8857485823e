package oxalis

import "testing"

func TestCreatorBindsFields(t *testing.T) {
	addSitups := NewCreator("add_situps", "num", "note")

	act := addSitups.New(3, "morning")
	if act.Tag != "add_situps" {
		t.Fatalf("unexpected tag %q", act.Tag)
	}
	if got := act.Field("num"); got != 3 {
		t.Fatalf("num = %v", got)
	}
	if got := act.Field("note"); got != "morning" {
		t.Fatalf("note = %v", got)
	}
	if got := act.Field("missing"); got != nil {
		t.Fatalf("missing = %v", got)
	}
}

func TestCreatorArityPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	NewCreator("add_situps", "num").New(1, 2)
}

func TestActionEquality(t *testing.T) {
	add := NewCreator("add", "num")

	if !add.New(3).Equal(add.New(3)) {
		t.Fatal("equal actions reported unequal")
	}
	if add.New(3).Equal(add.New(4)) {
		t.Fatal("payload ignored in equality")
	}
	if add.New(3).Equal(Action{Tag: "other", Fields: map[string]any{"num": 3}}) {
		t.Fatal("tag ignored in equality")
	}

	// creators with no fields produce actions equal to bare tag structs
	reset := NewCreator("reset")
	if !reset.New().Equal(Action{Tag: "reset"}) {
		t.Fatal("empty payload should equal nil payload")
	}
}

func TestCreatorMatchIgnoresPayload(t *testing.T) {
	add := NewCreator("add", "num")

	if !add.Match(add.New(1)) || !add.Match(Action{Tag: "add"}) {
		t.Fatal("tag match failed")
	}
	if add.Match(Action{Tag: "sub"}) {
		t.Fatal("matched foreign tag")
	}
}

func TestTagPredicates(t *testing.T) {
	if !TagIs("a")("a") || TagIs("a")("b") {
		t.Fatal("TagIs")
	}
	p := AnyOf("a", "b")
	if !p("a") || !p("b") || p("c") {
		t.Fatal("AnyOf")
	}
}
