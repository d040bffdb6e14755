package form

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// Kind identifies which variant a Value holds.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindList
	KindObject
)

// String returns the JSON-ish name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Value is a tagged input value. Integers decoded from JSON stay KindInt so
// int fields can be told apart from float64 fields without guessing.
// The zero Value is null.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	list []Value
	raw  json.RawMessage
}

func Null() Value           { return Value{} }
func Bool(b bool) Value     { return Value{kind: KindBool, b: b} }
func Int(i int64) Value     { return Value{kind: KindInt, i: i} }
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }
func String(s string) Value { return Value{kind: KindString, s: s} }
func List(items ...Value) Value {
	return Value{kind: KindList, list: append([]Value{}, items...)}
}

// Object wraps a raw JSON object. The bytes are compacted so that equal
// objects compare equal regardless of formatting.
func Object(raw json.RawMessage) (Value, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return Value{}, fmt.Errorf("form: invalid object: %w", err)
	}
	return Value{kind: KindObject, raw: buf.Bytes()}, nil
}

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

// IsNumber reports whether v is an Int or a Float.
func (v Value) IsNumber() bool { return v.kind == KindInt || v.kind == KindFloat }

func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

func (v Value) AsInt() (int64, bool) {
	switch v.kind {
	case KindInt:
		return v.i, true
	case KindFloat:
		if v.IsInteger() && math.Abs(v.f) <= math.MaxInt64 {
			return int64(v.f), true
		}
	}
	return 0, false
}

// AsFloat returns the numeric value of an Int or Float.
func (v Value) AsFloat() (float64, bool) {
	switch v.kind {
	case KindInt:
		return float64(v.i), true
	case KindFloat:
		return v.f, true
	}
	return 0, false
}

func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }

// Items returns the elements of a List, or nil for any other kind.
func (v Value) Items() []Value {
	if v.kind != KindList {
		return nil
	}
	return v.list
}

// IsInteger reports whether v is a finite number with no fractional part.
func (v Value) IsInteger() bool {
	switch v.kind {
	case KindInt:
		return true
	case KindFloat:
		return !math.IsInf(v.f, 0) && !math.IsNaN(v.f) && v.f == math.Trunc(v.f)
	}
	return false
}

// IsFinite reports whether v is a number that is neither NaN nor infinite.
func (v Value) IsFinite() bool {
	switch v.kind {
	case KindInt:
		return true
	case KindFloat:
		return !math.IsInf(v.f, 0) && !math.IsNaN(v.f)
	}
	return false
}

// Equal compares two values. Int and Float compare numerically; every
// other pair must share a kind.
func (v Value) Equal(o Value) bool {
	if v.kind == KindInt && o.kind == KindInt {
		return v.i == o.i
	}
	if v.IsNumber() && o.IsNumber() {
		a, _ := v.AsFloat()
		b, _ := o.AsFloat()
		return a == b
	}
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindString:
		return v.s == o.s
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	case KindObject:
		return bytes.Equal(v.raw, o.raw)
	}
	return false
}

// Compare orders two numbers or two strings. ok is false when the values
// have no natural ordering between them (mixed kinds, NaN, lists).
func (v Value) Compare(o Value) (n int, ok bool) {
	if v.kind == KindInt && o.kind == KindInt {
		switch {
		case v.i < o.i:
			return -1, true
		case v.i > o.i:
			return 1, true
		}
		return 0, true
	}
	if v.IsNumber() && o.IsNumber() {
		a, _ := v.AsFloat()
		b, _ := o.AsFloat()
		if math.IsNaN(a) || math.IsNaN(b) {
			return 0, false
		}
		switch {
		case a < b:
			return -1, true
		case a > b:
			return 1, true
		}
		return 0, true
	}
	if v.kind == KindString && o.kind == KindString {
		return strings.Compare(v.s, o.s), true
	}
	return 0, false
}

// String formats the value the way it is shown in option labels.
func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindString:
		return v.s
	case KindList:
		parts := make([]string, len(v.list))
		for i, item := range v.list {
			parts[i] = item.String()
		}
		return strings.Join(parts, ",")
	case KindObject:
		return string(v.raw)
	}
	return "null"
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindBool:
		return json.Marshal(v.b)
	case KindInt:
		return json.Marshal(v.i)
	case KindFloat:
		if math.IsInf(v.f, 0) || math.IsNaN(v.f) {
			return nil, fmt.Errorf("form: cannot encode non-finite number %v", v.f)
		}
		return json.Marshal(v.f)
	case KindString:
		return json.Marshal(v.s)
	case KindList:
		if v.list == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.list)
	case KindObject:
		return v.raw, nil
	}
	return []byte("null"), nil
}

func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("form: empty value")
	}
	switch data[0] {
	case 'n':
		if string(data) != "null" {
			return fmt.Errorf("form: invalid value %q", data)
		}
		*v = Null()
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = Bool(b)
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = String(s)
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		list := make([]Value, len(items))
		for i, item := range items {
			if err := list[i].UnmarshalJSON(item); err != nil {
				return err
			}
		}
		*v = Value{kind: KindList, list: list}
	case '{':
		obj, err := Object(data)
		if err != nil {
			return err
		}
		*v = obj
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("form: invalid value %q: %w", data, err)
		}
		num, err := parseNumber(n.String())
		if err != nil {
			return err
		}
		*v = num
	}
	return nil
}

func parseNumber(s string) (Value, error) {
	if !strings.ContainsAny(s, ".eE") {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return Int(i), nil
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Value{}, fmt.Errorf("form: invalid number %q: %w", s, err)
	}
	return Float(f), nil
}

// ValueOf converts a Go value into a Value. Slices and arrays become lists;
// structs and maps go through encoding/json.
func ValueOf(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t, nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case int:
		return Int(int64(t)), nil
	case int32:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case float32:
		return Float(float64(t)), nil
	case float64:
		return Float(t), nil
	case json.RawMessage:
		var v Value
		err := v.UnmarshalJSON(t)
		return v, err
	}

	rv := reflect.ValueOf(x)
	switch rv.Kind() {
	case reflect.Int8, reflect.Int16:
		return Int(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return Float(float64(u)), nil
		}
		return Int(int64(u)), nil
	case reflect.Slice, reflect.Array:
		items := make([]Value, rv.Len())
		for i := range items {
			item, err := ValueOf(rv.Index(i).Interface())
			if err != nil {
				return Value{}, err
			}
			items[i] = item
		}
		return Value{kind: KindList, list: items}, nil
	}

	bs, err := json.Marshal(x)
	if err != nil {
		return Value{}, fmt.Errorf("form: unsupported value %T: %w", x, err)
	}
	var v Value
	err = v.UnmarshalJSON(bs)
	return v, err
}

// MustValue is ValueOf for literals known to be convertible.
func MustValue(x any) Value {
	v, err := ValueOf(x)
	if err != nil {
		panic(err)
	}
	return v
}

// ParseValue converts command-line text into a Value of the declared type.
// Unknown types accept any JSON literal and fall back to a plain string.
func ParseValue(t FieldType, s string) (Value, error) {
	switch t {
	case TypeBool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return Value{}, fmt.Errorf("form: %q is not a bool", s)
		}
		return Bool(b), nil
	case TypeInt:
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("form: %q is not an int", s)
		}
		return Int(i), nil
	case TypeFloat:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Value{}, fmt.Errorf("form: %q is not a float64", s)
		}
		return Float(f), nil
	case TypeString:
		return String(s), nil
	}
	var v Value
	if err := v.UnmarshalJSON([]byte(s)); err == nil {
		return v, nil
	}
	return String(s), nil
}
