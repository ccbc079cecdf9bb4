package records

import (
	"sort"
	"strings"
)

// Payload is a submitted record body. Form submissions carry strings or
// []string (repeated keys); JSON bodies carry decoded JSON values.
type Payload map[string]any

// FormPayload flattens multipart or urlencoded values. Single values become
// plain strings so scalars and structured fields read them uniformly. When
// both "tags" and "tags[]" are sent, the plain key's values come first.
func FormPayload(values map[string][]string) Payload {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	p := make(Payload, len(values))
	for _, name := range names {
		vals := values[name]
		key := strings.TrimSuffix(name, "[]")
		switch len(vals) {
		case 0:
		case 1:
			if existing, ok := p[key]; ok {
				p[key] = appendValue(existing, vals[0])
				continue
			}
			p[key] = vals[0]
		default:
			out := make([]string, len(vals))
			copy(out, vals)
			if existing, ok := p[key]; ok {
				for _, v := range out {
					existing = appendValue(existing, v)
				}
				p[key] = existing
				continue
			}
			p[key] = out
		}
	}
	return p
}

func appendValue(existing any, v string) any {
	switch cur := existing.(type) {
	case string:
		return []string{cur, v}
	case []string:
		return append(cur, v)
	default:
		return v
	}
}
