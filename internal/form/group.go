package form

// DefaultGroupName names the implicit group that collects fields appearing
// before the first heading.
const DefaultGroupName = ""

// Group splits a flat entry list into ordered groups in a single pass.
// A heading entry opens a new, initially empty group and is not itself a
// field. Fields before the first heading land in a group named
// DefaultGroupName, which exists only when there are such fields.
func Group(entries []RawEntry) []SchemaGroup {
	var groups []SchemaGroup
	for _, e := range entries {
		if e.IsHeading() {
			groups = append(groups, SchemaGroup{Name: *e.Heading, Entries: []FieldSpec{}})
			continue
		}
		if len(groups) == 0 {
			groups = append(groups, SchemaGroup{Name: DefaultGroupName, Entries: []FieldSpec{}})
		}
		last := &groups[len(groups)-1]
		last.Entries = append(last.Entries, newFieldSpec(e))
	}
	return groups
}

// NormalizeOptions returns a copy of opts where every label that differs
// from its value's text is prefixed with the value ("1: metres"). Labels
// already equal to the value are left alone.
func NormalizeOptions(opts []Option) []Option {
	if opts == nil {
		return nil
	}
	out := make([]Option, len(opts))
	for i, opt := range opts {
		if v := opt.Value.String(); opt.Text != v {
			opt.Text = v + ": " + opt.Text
		}
		out[i] = opt
	}
	return out
}
