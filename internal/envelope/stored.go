package envelope

import (
	"bytes"
	"encoding/json"
)

// Marker is the object key that distinguishes a sealed column from plain JSON.
const Marker = "_enc"

type stored struct {
	Enc *Blob `json:"_enc"`
}

// Wrap encodes a Blob in its stored form: {"_enc": {...}}.
func Wrap(b Blob) ([]byte, error) {
	return json.Marshal(stored{Enc: &b})
}

// Unwrap reports whether raw is a stored envelope and returns its Blob.
// Anything that is not a JSON object carrying the marker key is not sealed.
func Unwrap(raw []byte) (Blob, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Blob{}, false
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &probe); err != nil {
		return Blob{}, false
	}
	inner, ok := probe[Marker]
	if !ok {
		return Blob{}, false
	}
	var b Blob
	if err := json.Unmarshal(inner, &b); err != nil {
		// Marker present but unreadable: still sealed, Open will reject it.
		return Blob{Algo: Algo}, true
	}
	return b, true
}
