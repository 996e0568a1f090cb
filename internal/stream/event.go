package stream

import "encoding/json"

// Event is one server-push payload. Exactly one of the fields is set.
type Event struct {
	Content    string
	References []string
	Error      string
}

func (e Event) MarshalJSON() ([]byte, error) {
	switch {
	case e.Error != "":
		return json.Marshal(map[string]string{"error": e.Error})
	case len(e.References) > 0:
		return json.Marshal(map[string][]string{"references": e.References})
	default:
		return json.Marshal(map[string]string{"content": e.Content})
	}
}

// IsError reports whether e is the terminal failure event.
func (e Event) IsError() bool { return e.Error != "" }
