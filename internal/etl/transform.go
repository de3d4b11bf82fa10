package etl

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Transform is a closed set of field-value coercions. Names are resolved
// once at config load; record processing only ever sees valid members.
type Transform string

const (
	TransformNone       Transform = ""
	TransformLowercase  Transform = "lowercase"
	TransformUppercase  Transform = "uppercase"
	TransformTimestamp  Transform = "timestamp"
	TransformStructured Transform = "structured-parse"
	TransformStringify  Transform = "stringify"
)

func ParseTransform(name string) (Transform, error) {
	switch Transform(strings.TrimSpace(name)) {
	case TransformNone, TransformLowercase, TransformUppercase,
		TransformTimestamp, TransformStructured, TransformStringify:
		return Transform(strings.TrimSpace(name)), nil
	default:
		return TransformNone, &ConfigurationError{
			Field:  "transform",
			Reason: fmt.Sprintf("unknown transform %q", name),
		}
	}
}

// Layouts accepted by the timestamp transform, most specific first.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Apply coerces a single value. A nil value passes through untouched so
// that defaults and optional fields survive every transform.
func (t Transform) Apply(value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	switch t {
	case TransformNone:
		return value, nil
	case TransformLowercase:
		return strings.ToLower(asString(value)), nil
	case TransformUppercase:
		return strings.ToUpper(asString(value)), nil
	case TransformStringify:
		return asString(value), nil
	case TransformTimestamp:
		if ts, ok := value.(time.Time); ok {
			return ts, nil
		}
		s := strings.TrimSpace(asString(value))
		for _, layout := range timestampLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts, nil
			}
		}
		return nil, fmt.Errorf("unparsable timestamp %q", s)
	case TransformStructured:
		s, ok := value.(string)
		if !ok {
			// Already structured (e.g. decoded from a JSON source).
			return value, nil
		}
		var out any
		if err := json.Unmarshal([]byte(s), &out); err != nil {
			return nil, fmt.Errorf("unparsable structured value: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown transform %q", string(t))
	}
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	default:
		return fmt.Sprint(v)
	}
}
