package llm

import (
	"encoding/json"
	"strings"
)

// StringList decodes a JSON array of strings, tolerating a single
// comma-separated string and non-string array members. Any other shape
// decodes to nil rather than failing the enclosing object.
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	var items []any
	if err := json.Unmarshal(data, &items); err == nil {
		out := make([]string, 0, len(items))
		for _, item := range items {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		*l = out
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err != nil {
		*l = nil
		return nil
	}
	*l = strings.Split(single, ",")
	return nil
}

// Clean returns the trimmed, non-empty items. The result is never nil.
func (l StringList) Clean() []string {
	out := make([]string, 0, len(l))
	for _, item := range l {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Flag decodes booleans that models sometimes send as strings ("yes", "true").
type Flag bool

func (f *Flag) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = Flag(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "true", "yes", "y", "1", "explicit":
			*f = true
		default:
			*f = false
		}
		return nil
	}
	*f = false
	return nil
}
