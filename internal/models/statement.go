package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

type ValueKind int

const (
	ValueNull ValueKind = iota
	ValueString
	ValueNumber
)

// Value is one field returned by the model: a string, a number or null.
type Value struct {
	Kind ValueKind
	Str  string
	Num  decimal.Decimal
}

func NullValue() Value { return Value{Kind: ValueNull} }

func StringValue(s string) Value { return Value{Kind: ValueString, Str: s} }

func NumberValue(d decimal.Decimal) Value { return Value{Kind: ValueNumber, Num: d} }

func (v Value) IsNull() bool { return v.Kind == ValueNull }

// String renders the value as a table cell; null renders empty.
func (v Value) String() string {
	switch v.Kind {
	case ValueString:
		return v.Str
	case ValueNumber:
		return v.Num.String()
	default:
		return ""
	}
}

// ErrUnsupportedValue is returned when a field holds an object or array.
var ErrUnsupportedValue = errors.New("unsupported field value")

// Fields keeps field values in the order the model returned them.
type Fields struct {
	keys   []string
	values map[string]Value
}

func NewFields() *Fields {
	return &Fields{values: make(map[string]Value)}
}

// Set adds or replaces key. Replacing keeps the original position.
func (f *Fields) Set(key string, v Value) {
	if f.values == nil {
		f.values = make(map[string]Value)
	}
	if _, ok := f.values[key]; !ok {
		f.keys = append(f.keys, key)
	}
	f.values[key] = v
}

func (f *Fields) Get(key string) (Value, bool) {
	if f == nil {
		return Value{}, false
	}
	v, ok := f.values[key]
	return v, ok
}

func (f *Fields) Keys() []string {
	if f == nil {
		return nil
	}
	return append([]string(nil), f.keys...)
}

func (f *Fields) Len() int {
	if f == nil {
		return 0
	}
	return len(f.keys)
}

// UnmarshalJSON decodes a flat JSON object, preserving key order.
// Booleans are kept as their string form; nested objects and arrays fail
// with ErrUnsupportedValue.
func (f *Fields) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("expected JSON object, got %v", tok)
	}

	*f = Fields{values: make(map[string]Value)}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected object key, got %v", tok)
		}

		var raw any
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("field %q: %w", key, err)
		}

		switch t := raw.(type) {
		case nil:
			f.Set(key, NullValue())
		case string:
			f.Set(key, StringValue(t))
		case bool:
			f.Set(key, StringValue(strconv.FormatBool(t)))
		case json.Number:
			d, err := decimal.NewFromString(t.String())
			if err != nil {
				return fmt.Errorf("field %q: %w", key, err)
			}
			f.Set(key, NumberValue(d))
		default:
			return fmt.Errorf("field %q: %w", key, ErrUnsupportedValue)
		}
	}

	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

// MarshalJSON writes the fields back as an object in their stored order.
func (f *Fields) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range f.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')

		v := f.values[key]
		switch v.Kind {
		case ValueString:
			s, err := json.Marshal(v.Str)
			if err != nil {
				return nil, err
			}
			buf.Write(s)
		case ValueNumber:
			buf.WriteString(v.Num.String())
		default:
			buf.WriteString("null")
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
