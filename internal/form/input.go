package form

import (
	"encoding/json"
	"fmt"
	"sort"
)

// defaultsKey is the JSON key holding the default-override set inside a
// module's input object.
const defaultsKey = "Defaults"

// InputSet holds the current value of every input key plus the set of
// keywords overridden to the system default. The zero value is an empty
// set ready to use; read methods are also safe on a nil *InputSet.
type InputSet struct {
	values   map[string]Value
	defaults map[string]struct{}
}

// NewInputSet returns an empty input set.
func NewInputSet() *InputSet {
	return &InputSet{
		values:   make(map[string]Value),
		defaults: make(map[string]struct{}),
	}
}

// Get returns the value bound to field and whether it is present.
func (in *InputSet) Get(field string) (Value, bool) {
	if in == nil {
		return Null(), false
	}
	v, ok := in.values[field]
	return v, ok
}

// Value returns the value bound to field, or null when absent.
func (in *InputSet) Value(field string) Value {
	v, _ := in.Get(field)
	return v
}

// Set binds a value to an input key.
func (in *InputSet) Set(field string, v Value) {
	if in.values == nil {
		in.values = make(map[string]Value)
	}
	in.values[field] = v
}

// Delete removes an input key.
func (in *InputSet) Delete(field string) {
	delete(in.values, field)
}

// Fields returns the bound input keys in sorted order.
func (in *InputSet) Fields() []string {
	if in == nil {
		return nil
	}
	out := make([]string, 0, len(in.values))
	for k := range in.values {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ToggleDefault flips the default override for keyword. It is the only
// way to change the override set.
func (in *InputSet) ToggleDefault(keyword string) {
	if _, ok := in.defaults[keyword]; ok {
		delete(in.defaults, keyword)
		return
	}
	if in.defaults == nil {
		in.defaults = make(map[string]struct{})
	}
	in.defaults[keyword] = struct{}{}
}

// IsDefault reports whether keyword is overridden to the system default.
func (in *InputSet) IsDefault(keyword string) bool {
	if in == nil {
		return false
	}
	_, ok := in.defaults[keyword]
	return ok
}

// DefaultKeywords returns the overridden keywords in sorted order.
func (in *InputSet) DefaultKeywords() []string {
	if in == nil {
		return nil
	}
	out := make([]string, 0, len(in.defaults))
	for k := range in.defaults {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Clone returns an independent copy.
func (in *InputSet) Clone() *InputSet {
	out := NewInputSet()
	if in == nil {
		return out
	}
	for k, v := range in.values {
		out.values[k] = v
	}
	for k := range in.defaults {
		out.defaults[k] = struct{}{}
	}
	return out
}

// MarshalJSON writes a flat object of input values with the override set
// under "Defaults" as {"Keyword": {}}.
func (in *InputSet) MarshalJSON() ([]byte, error) {
	obj := make(map[string]any, len(in.values)+1)
	for k, v := range in.values {
		obj[k] = v
	}
	defaults := make(map[string]struct{}, len(in.defaults))
	for k := range in.defaults {
		defaults[k] = struct{}{}
	}
	obj[defaultsKey] = defaults
	return json.Marshal(obj)
}

func (in *InputSet) UnmarshalJSON(data []byte) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("form: decoding inputs: %w", err)
	}
	fresh := NewInputSet()
	for k, raw := range obj {
		if k == defaultsKey {
			var defaults map[string]json.RawMessage
			if err := json.Unmarshal(raw, &defaults); err != nil {
				return fmt.Errorf("form: decoding %s: %w", defaultsKey, err)
			}
			for kw := range defaults {
				fresh.defaults[kw] = struct{}{}
			}
			continue
		}
		var v Value
		if err := v.UnmarshalJSON(raw); err != nil {
			return fmt.Errorf("form: decoding input %s: %w", k, err)
		}
		fresh.values[k] = v
	}
	*in = *fresh
	return nil
}
