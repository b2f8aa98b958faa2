package canon

import "encoding/json"

// CanonicalizeRaw re-encodes an arbitrary JSON blob with object keys sorted
// recursively at every depth, matching the determinism contract that every
// JSON object written by a translator must sort keys. encoding/json already
// sorts map[string]any keys at marshal time, so decoding into any and
// re-marshaling is sufficient; this avoids hand-rolling a key-sort walk.
func CanonicalizeRaw(raw json.RawMessage) (json.RawMessage, error) {
	if len(raw) == 0 {
		return raw, nil
	}
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, err
	}
	out, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(out), nil
}

// EmptyObject is the canonical encoding of `{}`.
var EmptyObject = json.RawMessage(`{}`)
