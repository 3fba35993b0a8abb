package backend

import (
	"bytes"
	"encoding/json"
)

// object is a JSON object decoded one level deep. Field values stay raw so
// tool inputs can be passed on byte for byte.
type object map[string]json.RawMessage

// decodeObject decodes s as a JSON object. ok is false for invalid JSON, for
// non-object JSON and for null.
func decodeObject(s string) (object, bool) {
	return asObject(json.RawMessage(s))
}

func asObject(raw json.RawMessage) (object, bool) {
	if firstByte(raw) != '{' {
		return nil, false
	}
	var o object
	if err := json.Unmarshal(raw, &o); err != nil {
		return nil, false
	}
	return o, true
}

// asString returns the value of a JSON string. A JSON null is not a string.
func asString(raw json.RawMessage) (string, bool) {
	if firstByte(raw) != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func asArray(raw json.RawMessage) ([]json.RawMessage, bool) {
	if firstByte(raw) != '[' {
		return nil, false
	}
	var a []json.RawMessage
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, false
	}
	return a, true
}

func firstByte(raw json.RawMessage) byte {
	raw = bytes.TrimLeft(raw, " \t\r\n")
	if len(raw) == 0 {
		return 0
	}
	return raw[0]
}

func (o object) str(key string) string {
	s, _ := asString(o[key])
	return s
}

func (o object) has(key string) bool {
	_, ok := o[key]
	return ok
}

func (o object) obj(key string) object {
	v, _ := asObject(o[key])
	return v
}

// objects returns the elements of an array field that are JSON objects.
func (o object) objects(key string) []object {
	arr, _ := asArray(o[key])
	out := make([]object, 0, len(arr))
	for _, el := range arr {
		if v, ok := asObject(el); ok {
			out = append(out, v)
		}
	}
	return out
}

func (o object) number(key string) (float64, bool) {
	var n float64
	raw := o[key]
	if b := firstByte(raw); b != '-' && (b < '0' || b > '9') {
		return 0, false
	}
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, false
	}
	return n, true
}

// raw returns a field's JSON verbatim, or nil when absent.
func (o object) raw(key string) json.RawMessage {
	v, ok := o[key]
	if !ok {
		return nil
	}
	return append(json.RawMessage(nil), v...)
}

// compact renders raw JSON on one line. Invalid input is returned unchanged.
func compact(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

// toolPayload is the Data of a tool_use StreamEvent.
type toolPayload struct {
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

func toolUseEvent(name string, input json.RawMessage) StreamEvent {
	if len(input) == 0 {
		input = nil
	}
	data, err := json.Marshal(toolPayload{Name: name, Input: input})
	if err != nil {
		// Input is not valid JSON; fall back to carrying it as a string.
		data, _ = json.Marshal(map[string]string{"name": name, "input": string(input)})
	}
	return StreamEvent{Kind: EventToolUse, Data: string(data)}
}
