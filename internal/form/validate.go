package form

import "fmt"

// IsValid reports whether the field's current input is acceptable.
//
// A keyword overridden to the system default is always valid. Otherwise the
// value must be present and match the declared type: bool needs an actual
// boolean, string a non-empty string, int an integer-valued number and
// float64 a finite number. Fields with Dims > 0 apply the rule to every
// list element. Types without a rule accept any present value; see
// Schema.UnknownTypes for surfacing them.
func IsValid(f FieldSpec, in *InputSet) bool {
	if in.IsDefault(f.Keyword) {
		return true
	}
	v, ok := in.Get(f.Field)
	if !ok || v.IsNull() {
		return false
	}
	if f.Dims > 0 && v.Kind() == KindList {
		for _, item := range v.Items() {
			if !validScalar(f.Type, item) {
				return false
			}
		}
		return true
	}
	return validScalar(f.Type, v)
}

func validScalar(t FieldType, v Value) bool {
	switch t {
	case TypeBool:
		return v.Kind() == KindBool
	case TypeString:
		s, ok := v.AsString()
		return ok && len(s) > 0
	case TypeInt:
		return v.IsInteger()
	case TypeFloat:
		return v.IsFinite()
	}
	return true
}

// FieldState is the computed view of one field for rendering.
type FieldState struct {
	Spec    FieldSpec
	Group   string
	Active  bool
	Valid   bool
	Default bool
	Value   Value
}

// Evaluate computes activation and validity for every field in order.
func (s *Schema) Evaluate(in *InputSet) []FieldState {
	var out []FieldState
	for _, g := range s.Groups {
		for _, f := range g.Entries {
			out = append(out, FieldState{
				Spec:    f,
				Group:   g.Name,
				Active:  IsActive(f, in),
				Valid:   IsValid(f, in),
				Default: in.IsDefault(f.Keyword),
				Value:   in.Value(f.Field),
			})
		}
	}
	return out
}

// Submittable reports whether every active field is valid. Inactive fields
// never block submission.
func (s *Schema) Submittable(in *InputSet) bool {
	for _, st := range s.Evaluate(in) {
		if st.Active && !st.Valid {
			return false
		}
	}
	return true
}

// FieldError reports an input value whose kind cannot represent the
// field's declared type.
type FieldError struct {
	Keyword string
	Field   string
	Type    FieldType
	Got     Kind
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field %s (%s): %s value cannot hold %s", e.Keyword, e.Field, e.Got, e.Type)
}

// Check reports inputs whose value kind cannot hold the declared type.
// Missing and null values are not reported; they are a validity concern,
// not a type mismatch.
func (s *Schema) Check(in *InputSet) []*FieldError {
	var errs []*FieldError
	for _, f := range s.Fields() {
		v, ok := in.Get(f.Field)
		if !ok || v.IsNull() || !f.Type.Known() {
			continue
		}
		if f.Dims > 0 && v.Kind() == KindList {
			for _, item := range v.Items() {
				if !item.IsNull() && !kindFits(f.Type, item) {
					errs = append(errs, &FieldError{Keyword: f.Keyword, Field: f.Field, Type: f.Type, Got: item.Kind()})
					break
				}
			}
			continue
		}
		if !kindFits(f.Type, v) {
			errs = append(errs, &FieldError{Keyword: f.Keyword, Field: f.Field, Type: f.Type, Got: v.Kind()})
		}
	}
	return errs
}

func kindFits(t FieldType, v Value) bool {
	switch t {
	case TypeBool:
		return v.Kind() == KindBool
	case TypeString:
		return v.Kind() == KindString
	case TypeInt:
		return v.IsInteger()
	case TypeFloat:
		return v.IsNumber()
	}
	return true
}
