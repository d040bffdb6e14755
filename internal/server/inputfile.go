package server

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/matthewbaird/acdc/internal/form"
)

// titleKeyword is read from the second line of an input file rather than
// from a keyword line.
const titleKeyword = "Title"

// ParseInputFile reads a keyword-per-line simulation input file into an
// input set shaped by schema. Each value line has the form
//
//	<value ...>  <Keyword>  - description
//
// Keywords absent from the file are left unset. A value containing
// "default" on a field that allows it sets the default override instead.
func ParseInputFile(schema *form.Schema, data []byte) (*form.InputSet, error) {
	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	if len(lines) < 2 {
		return nil, errors.New("input file has no title line")
	}

	in := form.NewInputSet()
	for _, f := range schema.Fields() {
		if f.Keyword == titleKeyword {
			in.Set(f.Field, form.String(strings.TrimSpace(lines[1])))
			continue
		}
		text, ok := findValue(lines[2:], f.Keyword)
		if !ok {
			continue
		}
		if f.CanBeDefault && strings.Contains(strings.ToLower(text), "default") {
			in.ToggleDefault(f.Keyword)
			continue
		}
		v, err := parseText(f, text)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Keyword, err)
		}
		in.Set(f.Field, v)
	}
	return in, nil
}

// findValue returns the text preceding keyword on the first line that
// names it.
func findValue(lines []string, keyword string) (string, bool) {
	for _, line := range lines {
		before, _, _ := strings.Cut(line, "- ")
		fields := strings.Fields(before)
		for i, tok := range fields {
			if i > 0 && strings.EqualFold(tok, keyword) {
				return strings.Join(fields[:i], " "), true
			}
		}
	}
	return "", false
}

func parseText(f form.FieldSpec, text string) (form.Value, error) {
	if f.Dims == 0 {
		return parseScalar(f.Type, text)
	}
	parts := strings.FieldsFunc(text, func(r rune) bool { return r == ',' || unicode.IsSpace(r) })
	items := make([]form.Value, 0, len(parts))
	for _, p := range parts {
		v, err := parseScalar(f.Type, p)
		if err != nil {
			return form.Value{}, err
		}
		items = append(items, v)
	}
	return form.List(items...), nil
}

func parseScalar(t form.FieldType, s string) (form.Value, error) {
	switch t {
	case form.TypeString:
		return form.String(strings.Trim(s, `"'`)), nil
	case form.TypeInt:
		i, err := strconv.ParseInt(s, 0, 64)
		if err != nil {
			return form.Value{}, fmt.Errorf("%q is not an int", s)
		}
		return form.Int(i), nil
	}
	return form.ParseValue(t, s)
}
