package oxalis

import (
	"bytes"
	"testing"
)

func TestCBORDeterministic(t *testing.T) {
	rec := &journalRecord{
		Tag:       "add",
		Fields:    map[string]any{"num": 3, "note": "x", "z": 1, "a": 2},
		Timestamp: 12345,
	}

	first, err := cborMarshal(rec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := cborMarshal(rec)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		if !bytes.Equal(first, again) {
			t.Fatal("encoding is not deterministic")
		}
	}
}

func TestCBORRoundTrip(t *testing.T) {
	rec := &journalRecord{
		Tag:       "add",
		Fields:    map[string]any{"note": "hi"},
		Timestamp: 42,
	}

	raw, err := cborMarshal(rec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var back journalRecord
	if err := cborUnmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Tag != rec.Tag || back.Timestamp != rec.Timestamp {
		t.Fatalf("round trip mismatch: %+v", back)
	}
	if back.Fields["note"] != "hi" {
		t.Fatalf("fields = %v", back.Fields)
	}
}
