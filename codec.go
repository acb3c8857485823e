package oxalis

import "github.com/fxamacker/cbor/v2"

// Journal records and snapshots are encoded with deterministic CBOR so the
// same value always produces the same bytes.

var cborEncMode cbor.EncMode

func init() {
	opts := cbor.CoreDetEncOptions()
	opts.Time = cbor.TimeRFC3339Nano
	em, err := opts.EncMode()
	if err != nil {
		panic(err)
	}
	cborEncMode = em
}

func cborMarshal(v any) ([]byte, error) {
	return cborEncMode.Marshal(v)
}

func cborUnmarshal(data []byte, v any) error {
	return cbor.Unmarshal(data, v)
}
