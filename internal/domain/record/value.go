package record

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Kind discriminates the shapes a bitable field value can take
type Kind int

const (
	KindAbsent Kind = iota
	KindScalar
	KindNumeric
	KindRichText
)

// String returns the string representation of the kind
func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindNumeric:
		return "numeric"
	case KindRichText:
		return "rich_text"
	default:
		return "absent"
	}
}

// Fragment is one segment of a rich-text field
type Fragment struct {
	Text string `json:"text"`
	Type string `json:"type"`
}

// Value is a normalized field value. Only one of the payload fields is
// meaningful, selected by Kind.
type Value struct {
	kind      Kind
	scalar    string
	numeric   float64
	fragments []Fragment
}

// Absent returns the value of a missing field
func Absent() Value { return Value{kind: KindAbsent} }

// Scalar returns a plain string value
func Scalar(s string) Value { return Value{kind: KindScalar, scalar: s} }

// Numeric returns a number value
func Numeric(f float64) Value { return Value{kind: KindNumeric, numeric: f} }

// RichText returns a rich-text value. An empty fragment list is absent.
func RichText(fragments ...Fragment) Value {
	if len(fragments) == 0 {
		return Absent()
	}
	return Value{kind: KindRichText, fragments: fragments}
}

// Kind returns the shape of the value
func (v Value) Kind() Kind { return v.kind }

// IsAbsent reports whether the field was missing or null
func (v Value) IsAbsent() bool { return v.kind == KindAbsent }

// Fragments returns the rich-text fragments, nil for other kinds
func (v Value) Fragments() []Fragment { return v.fragments }

// String reduces the value to a plain string:
// absent is "", rich text is the first fragment's text, numbers use the
// shortest decimal representation.
func (v Value) String() string {
	switch v.kind {
	case KindScalar:
		return v.scalar
	case KindNumeric:
		return strconv.FormatFloat(v.numeric, 'f', -1, 64)
	case KindRichText:
		return v.fragments[0].Text
	default:
		return ""
	}
}

// Float returns the numeric payload; ok is false for non-numeric kinds
func (v Value) Float() (float64, bool) {
	if v.kind != KindNumeric {
		return 0, false
	}
	return v.numeric, true
}

// ValueOf classifies a raw decoded JSON value. This is the only place the
// raw shape of a bitable field is inspected.
func ValueOf(raw interface{}) Value {
	switch t := raw.(type) {
	case nil:
		return Absent()
	case string:
		return Scalar(t)
	case float64:
		return Numeric(t)
	case float32:
		return Numeric(float64(t))
	case int:
		return Numeric(float64(t))
	case int64:
		return Numeric(float64(t))
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return Numeric(f)
		}
		return Scalar(t.String())
	case bool:
		return Scalar(strconv.FormatBool(t))
	case []interface{}:
		return sequenceValue(t)
	case []Fragment:
		return RichText(t...)
	case map[string]interface{}:
		// single text object, e.g. {"text": "..", "type": "text"}
		if text, ok := t["text"]; ok && text != nil {
			return RichText(Fragment{Text: fmt.Sprint(text), Type: stringField(t, "type")})
		}
		return Scalar(encode(t))
	default:
		return Scalar(fmt.Sprint(t))
	}
}

func sequenceValue(items []interface{}) Value {
	if len(items) == 0 {
		return Absent()
	}

	first, ok := items[0].(map[string]interface{})
	if !ok || first["text"] == nil {
		if len(items) == 1 {
			switch items[0].(type) {
			case string, float64, bool:
				return ValueOf(items[0])
			}
		}
		return Scalar(encode(items))
	}

	fragments := make([]Fragment, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok || m["text"] == nil {
			continue
		}
		fragments = append(fragments, Fragment{
			Text: fmt.Sprint(m["text"]),
			Type: stringField(m, "type"),
		})
	}
	return RichText(fragments...)
}

func stringField(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}

func encode(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}
