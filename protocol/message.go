package protocol

import (
	"encoding/json"
	"strings"
)

// Message is one decoded inbound line from the bridge. It is a tagged
// variant: either a structured object, or raw text that did not parse
// as JSON. Raw lines are preserved rather than discarded so that
// firmware boot chatter and partial lines survive into the feedback
// snapshot.
type Message struct {
	Object map[string]any
	Raw    string
}

// Decode parses one line into a Message. Malformed input never fails;
// it is wrapped as a Raw message.
func Decode(line string) Message {
	line = strings.TrimRight(line, "\r")

	var obj map[string]any
	if err := json.Unmarshal([]byte(line), &obj); err != nil || obj == nil {
		return Message{Raw: line}
	}
	return Message{Object: obj}
}

// IsRaw reports whether the line failed structured decoding.
func (m Message) IsRaw() bool {
	return m.Object == nil
}

// Fields returns the key/value pairs to merge into the feedback
// snapshot. Raw lines surface under the "message" key.
func (m Message) Fields() map[string]any {
	if m.Object != nil {
		return m.Object
	}
	return map[string]any{"message": m.Raw}
}

// Event returns the event discriminator, if this message carries one.
func (m Message) Event() (string, bool) {
	s, ok := m.Object["event"].(string)
	return s, ok
}

// ID returns the correlating axis id of an event message.
func (m Message) ID() (int, bool) {
	return AsInt(m.Object["id"])
}

// AsInt converts a decoded JSON value to an int. encoding/json decodes
// numbers as float64 when the target type is any.
func AsInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	default:
		return 0, false
	}
}
