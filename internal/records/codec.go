package records

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/studyabroad-backend/pkg/errors"
)

// Mode selects create or partial-update encoding.
type Mode int

const (
	ModeCreate Mode = iota
	ModeUpdate
)

const dateLayout = "2006-01-02"

// Codec converts payloads into stored fields and stored fields into views.
type Codec struct {
	validate *validator.Validate
}

func NewCodec() *Codec {
	return &Codec{validate: validator.New()}
}

// Encode validates payload against schema and returns the stored fields. In
// ModeCreate required fields are enforced and defaults applied; in ModeUpdate
// only fields present in payload are returned. All offending fields are
// reported together.
func (c *Codec) Encode(schema *Schema, payload Payload, mode Mode) (map[string]any, error) {
	out := make(map[string]any)
	var missing []string
	problems := map[string]string{}

	for _, field := range schema.Fields {
		raw, present := payload[field.Name]
		if present && isBlank(raw) {
			present = false
		}

		if !present {
			if mode == ModeUpdate {
				if _, sent := payload[field.Name]; sent && field.Required {
					missing = append(missing, field.Name)
				} else if sent && !field.Structured() {
					out[field.Name] = blankValue(field)
				}
				continue
			}
			if field.Required {
				missing = append(missing, field.Name)
				continue
			}
			switch {
			case field.Kind == KindEnum:
				out[field.Name] = field.enumDefault()
			case field.Kind == KindList || field.Kind == KindObjectList:
				out[field.Name] = "[]"
			case field.Kind == KindObject:
				out[field.Name] = "{}"
			}
			continue
		}

		value, err := c.encodeValue(field, raw)
		if err != nil {
			problems[field.Name] = err.Error()
			continue
		}
		out[field.Name] = value
	}

	if len(missing) > 0 || len(problems) > 0 {
		return nil, validationError(missing, problems)
	}
	return out, nil
}

// Structured is shorthand for Kind.Structured.
func (f Field) Structured() bool {
	return f.Kind.Structured()
}

func blankValue(field Field) any {
	switch field.Kind {
	case KindString, KindText, KindEmail, KindURL, KindDate, KindDecimal:
		return ""
	default:
		return nil
	}
}

func validationError(missing []string, problems map[string]string) error {
	sort.Strings(missing)
	invalid := make([]string, 0, len(problems))
	for name := range problems {
		invalid = append(invalid, name)
	}
	sort.Strings(invalid)

	var parts []string
	if len(missing) > 0 {
		parts = append(parts, "missing required fields: "+strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		parts = append(parts, "invalid fields: "+strings.Join(invalid, ", "))
	}
	err := pkgerrors.Validation(strings.Join(parts, "; "), append(missing, invalid...)...)

	if len(invalid) > 0 {
		details := make([]string, 0, len(invalid))
		for _, name := range invalid {
			details = append(details, name+": "+problems[name])
		}
		err.WithDetails(strings.Join(details, "; "))
	}
	return err
}

func isBlank(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []string:
		for _, s := range t {
			if strings.TrimSpace(s) != "" {
				return false
			}
		}
		return true
	}
	return false
}

func (c *Codec) encodeValue(field Field, raw any) (any, error) {
	switch field.Kind {
	case KindString, KindText:
		s, err := scalarString(raw)
		if err != nil {
			return nil, err
		}
		return s, checkLen(field, s)
	case KindEmail:
		return c.tagged(field, raw, "email")
	case KindURL:
		return c.tagged(field, raw, "url")
	case KindInt:
		return encodeInt(field, raw)
	case KindDecimal:
		return encodeDecimal(raw)
	case KindDate:
		return encodeDate(raw)
	case KindBool:
		return encodeBool(raw)
	case KindEnum:
		s, err := scalarString(raw)
		if err != nil {
			return nil, err
		}
		if !field.allows(s) {
			return nil, fmt.Errorf("must be one of %s", strings.Join(field.Options, ", "))
		}
		return s, nil
	case KindList:
		list, err := toList(raw)
		if err != nil {
			return nil, err
		}
		return encodeStructured(field, list)
	case KindObject:
		obj, err := toObject(raw)
		if err != nil {
			return nil, err
		}
		return encodeStructured(field, obj)
	case KindObjectList:
		list, err := toObjectList(raw)
		if err != nil {
			return nil, err
		}
		return encodeStructured(field, list)
	default:
		return nil, fmt.Errorf("unsupported field kind")
	}
}

func (c *Codec) tagged(field Field, raw any, tag string) (any, error) {
	s, err := scalarString(raw)
	if err != nil {
		return nil, err
	}
	if err := c.validate.Var(s, tag); err != nil {
		return nil, fmt.Errorf("must be a valid %s", tag)
	}
	return s, checkLen(field, s)
}

func checkLen(field Field, s string) error {
	if field.MaxLen > 0 && utf8.RuneCountInString(s) > field.MaxLen {
		return fmt.Errorf("must be at most %d characters", field.MaxLen)
	}
	return nil
}

func scalarString(raw any) (string, error) {
	switch v := raw.(type) {
	case string:
		return strings.TrimSpace(v), nil
	case []string:
		if len(v) == 1 {
			return strings.TrimSpace(v[0]), nil
		}
		return "", fmt.Errorf("expected a single value")
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(v), nil
	case json.Number:
		return v.String(), nil
	default:
		return "", fmt.Errorf("expected a string")
	}
}

func encodeInt(field Field, raw any) (any, error) {
	var n int64
	switch v := raw.(type) {
	case float64:
		i, ok := exactInt(v)
		if !ok {
			return nil, fmt.Errorf("must be an integer")
		}
		n = i
	default:
		s, err := scalarString(raw)
		if err != nil {
			return nil, err
		}
		parsed, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("must be an integer")
		}
		n = parsed
	}
	if field.Min != nil && n < int64(*field.Min) {
		return nil, fmt.Errorf("must be at least %d", *field.Min)
	}
	if field.Max != nil && n > int64(*field.Max) {
		return nil, fmt.Errorf("must be at most %d", *field.Max)
	}
	return n, nil
}

// exactInt converts f when it is a whole number inside the int64 range.
// 2^63 itself is representable as a float64 but not as an int64.
func exactInt(f float64) (int64, bool) {
	if f != math.Trunc(f) || f < math.MinInt64 || f >= -math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}

func encodeDecimal(raw any) (any, error) {
	var d decimal.Decimal
	switch v := raw.(type) {
	case float64:
		d = decimal.NewFromFloat(v)
	default:
		s, err := scalarString(raw)
		if err != nil {
			return nil, err
		}
		parsed, err := decimal.NewFromString(s)
		if err != nil {
			return nil, fmt.Errorf("must be a decimal number")
		}
		d = parsed
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("must not be negative")
	}
	return d.StringFixed(2), nil
}

func encodeDate(raw any) (any, error) {
	s, err := scalarString(raw)
	if err != nil {
		return nil, err
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t.Format(dateLayout), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, fmt.Errorf("must be a date (YYYY-MM-DD) or RFC3339 timestamp")
	}
	return t.UTC().Format(time.RFC3339), nil
}

func encodeBool(raw any) (any, error) {
	if b, ok := raw.(bool); ok {
		return b, nil
	}
	s, err := scalarString(raw)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(s) {
	case "true", "1", "on", "yes":
		return true, nil
	case "false", "0", "off", "no":
		return false, nil
	}
	return nil, fmt.Errorf("must be a boolean")
}

func encodeStructured(field Field, value any) (any, error) {
	b, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("cannot be encoded: %v", err)
	}
	if limit := field.maxEncodedLen(); len(b) > limit {
		return nil, fmt.Errorf("encoded size %d exceeds limit of %d bytes", len(b), limit)
	}
	return string(b), nil
}

// toList accepts a JSON array, repeated form values, a JSON array string or a
// comma-separated string. Elements must be scalars.
func toList(raw any) ([]any, error) {
	var list []any
	switch v := raw.(type) {
	case []any:
		list = v
	case []string:
		list = make([]any, 0, len(v))
		for _, s := range v {
			if s = strings.TrimSpace(s); s != "" {
				list = append(list, s)
			}
		}
	case string:
		s := strings.TrimSpace(v)
		if strings.HasPrefix(s, "[") {
			if err := json.Unmarshal([]byte(s), &list); err != nil {
				return nil, fmt.Errorf("must be a JSON array")
			}
			break
		}
		list = []any{}
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				list = append(list, part)
			}
		}
	default:
		return nil, fmt.Errorf("must be a list")
	}
	for _, item := range list {
		switch item.(type) {
		case string, float64, bool:
		default:
			return nil, fmt.Errorf("list items must be strings, numbers or booleans")
		}
	}
	if list == nil {
		list = []any{}
	}
	return list, nil
}

func toObject(raw any) (map[string]any, error) {
	switch v := raw.(type) {
	case map[string]any:
		return v, nil
	case string:
		var obj map[string]any
		if err := json.Unmarshal([]byte(strings.TrimSpace(v)), &obj); err != nil || obj == nil {
			return nil, fmt.Errorf("must be a JSON object")
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("must be an object")
	}
}

func toObjectList(raw any) ([]any, error) {
	var list []any
	switch v := raw.(type) {
	case []any:
		list = v
	case string:
		if err := json.Unmarshal([]byte(strings.TrimSpace(v)), &list); err != nil {
			return nil, fmt.Errorf("must be a JSON array of objects")
		}
	case []string:
		list = make([]any, 0, len(v))
		for _, s := range v {
			obj, err := toObject(s)
			if err != nil {
				return nil, fmt.Errorf("must be a JSON array of objects")
			}
			list = append(list, obj)
		}
	default:
		return nil, fmt.Errorf("must be a list of objects")
	}
	for _, item := range list {
		if _, ok := item.(map[string]any); !ok {
			return nil, fmt.Errorf("items must be objects")
		}
	}
	if list == nil {
		list = []any{}
	}
	return list, nil
}

// Decode turns stored fields into view values. It never fails: malformed
// structured encodings decode to empty values and unknown enum values decode
// to the field default.
func (c *Codec) Decode(schema *Schema, stored map[string]any) map[string]any {
	out := make(map[string]any, len(schema.Fields))
	for _, field := range schema.Fields {
		raw, ok := stored[field.Name]
		switch field.Kind {
		case KindList, KindObjectList:
			out[field.Name] = decodeList(raw)
		case KindObject:
			out[field.Name] = decodeObject(raw)
		case KindEnum:
			s, _ := raw.(string)
			if !field.allows(s) {
				s = field.enumDefault()
			}
			out[field.Name] = s
		case KindInt:
			if !ok || raw == nil {
				continue
			}
			switch v := raw.(type) {
			case json.Number:
				if n, err := v.Int64(); err == nil {
					out[field.Name] = n
					continue
				}
			case float64:
				if n, isInt := exactInt(v); isInt {
					out[field.Name] = n
					continue
				}
			}
			out[field.Name] = raw
		default:
			if !ok || raw == nil {
				continue
			}
			out[field.Name] = raw
		}
	}
	return out
}

func decodeList(raw any) []any {
	switch v := raw.(type) {
	case string:
		var list []any
		if err := json.Unmarshal([]byte(v), &list); err != nil || list == nil {
			return []any{}
		}
		return list
	case []any:
		return v
	}
	return []any{}
}

func decodeObject(raw any) map[string]any {
	switch v := raw.(type) {
	case string:
		var obj map[string]any
		if err := json.Unmarshal([]byte(v), &obj); err != nil || obj == nil {
			return map[string]any{}
		}
		return obj
	case map[string]any:
		return v
	}
	return map[string]any{}
}
