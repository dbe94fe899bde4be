package model

import (
	"bytes"
	"encoding/json"
)

// envelope is the {data: ...} wrapper most endpoints use.
type envelope struct {
	Data json.RawMessage `json:"data"`
}

// DecodeList decodes a collection that arrives either as a bare array or
// wrapped as {data: [...]}. ok is false when neither shape matches.
func DecodeList[T any](raw []byte) (items []T, ok bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, false
	}
	if raw[0] == '{' {
		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return nil, false
		}
		raw = bytes.TrimSpace(env.Data)
	}
	if len(raw) == 0 || raw[0] != '[' {
		return nil, false
	}
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, false
	}
	if items == nil {
		items = []T{}
	}
	return items, true
}

// DecodeItem decodes a single record from {data: {...}} or, failing that,
// from the body itself. ok is false when the body is not a JSON object.
func DecodeItem[T any](raw []byte) (item *T, ok bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil, false
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil {
		if data := bytes.TrimSpace(env.Data); len(data) > 0 && data[0] == '{' {
			raw = data
		}
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, false
	}
	return &v, true
}

// Message extracts the "message" field the API attaches to errors and
// some successes. Returns "" when absent.
func Message(raw []byte) string {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return ""
	}
	return body.Message
}
