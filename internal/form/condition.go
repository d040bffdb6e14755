package form

// IsActive reports whether a field should be shown for the current input.
// A field without conditions is always active; otherwise every condition
// must hold. Relations outside the known set never hold.
func IsActive(f FieldSpec, in *InputSet) bool {
	for _, c := range f.Active {
		if !c.Satisfied(in) {
			return false
		}
	}
	return true
}

// Satisfied evaluates the condition against the input value of c.Field.
// A missing input value is treated as null.
func (c Condition) Satisfied(in *InputSet) bool {
	got := in.Value(c.Field)
	switch c.Relation {
	case RelEqual:
		return got.Equal(c.Value)
	case RelNotEqual:
		return !got.Equal(c.Value)
	case RelLess:
		n, ok := got.Compare(c.Value)
		return ok && n < 0
	case RelGreater:
		n, ok := got.Compare(c.Value)
		return ok && n > 0
	case RelIn:
		if c.Value.Kind() != KindList {
			return false
		}
		for _, item := range c.Value.Items() {
			if got.Equal(item) {
				return true
			}
		}
		return false
	}
	return false
}
