package form

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keywords(g SchemaGroup) []string {
	var out []string
	for _, f := range g.Entries {
		out = append(out, f.Keyword)
	}
	return out
}

func TestGroup_Headings(t *testing.T) {
	groups := Group([]RawEntry{
		Heading("A"),
		{Keyword: "k1"},
		Heading("B"),
		{Keyword: "k2"},
	})

	require.Len(t, groups, 2)
	assert.Equal(t, "A", groups[0].Name)
	assert.Equal(t, []string{"k1"}, keywords(groups[0]))
	assert.Equal(t, "B", groups[1].Name)
	assert.Equal(t, []string{"k2"}, keywords(groups[1]))
}

func TestGroup_LeadingEntriesKept(t *testing.T) {
	groups := Group([]RawEntry{
		{Keyword: "k0"},
		{Keyword: "k1"},
		Heading("A"),
		{Keyword: "k2"},
	})

	require.Len(t, groups, 2)
	assert.Equal(t, DefaultGroupName, groups[0].Name)
	assert.Equal(t, []string{"k0", "k1"}, keywords(groups[0]))
	assert.Equal(t, []string{"k2"}, keywords(groups[1]))
}

func TestGroup_EmptyHeadingAndEmptyInput(t *testing.T) {
	assert.Empty(t, Group(nil))

	groups := Group([]RawEntry{Heading(""), Heading("Output")})
	require.Len(t, groups, 2)
	assert.Equal(t, "", groups[0].Name)
	assert.Empty(t, groups[0].Entries)
	assert.NotNil(t, groups[1].Entries)
}

func TestGroup_DerivesField(t *testing.T) {
	groups := Group([]RawEntry{
		{Keyword: "BDBldFile(1)", Type: TypeString},
		{Keyword: "alpha0", Type: TypeFloat},
		{Keyword: "TMax", Field: "TotalTime", Type: TypeFloat},
	})

	require.Len(t, groups, 1)
	assert.Equal(t, "BDBldFile1", groups[0].Entries[0].Field)
	assert.Equal(t, "Alpha0", groups[0].Entries[1].Field)
	assert.Equal(t, "TotalTime", groups[0].Entries[2].Field)
}

func TestNormalizeOptions(t *testing.T) {
	in := []Option{
		{Value: String("x"), Text: "x"},
		{Value: Int(1), Text: "metres"},
		{Value: Int(2), Text: "2"},
		{Value: Bool(true), Text: "Tabs"},
		{Value: Float(0.5), Text: "half"},
	}
	out := NormalizeOptions(in)

	assert.Equal(t, "x", out[0].Text)
	assert.Equal(t, "1: metres", out[1].Text)
	assert.True(t, out[1].Value.Equal(Int(1)))
	assert.Equal(t, "2", out[2].Text)
	assert.Equal(t, "true: Tabs", out[3].Text)
	assert.Equal(t, "0.5: half", out[4].Text)
	assert.Equal(t, "metres", in[1].Text, "input is not modified")
	assert.Nil(t, NormalizeOptions(nil))
}

func TestGroup_NormalizesOptionsOnce(t *testing.T) {
	data := []byte(`[
		{"Heading": "Simulation Control"},
		{"Keyword": "InterpOrder", "Type": "int", "Options": [{"value": 1, "text": "Linear"}, {"value": 2, "text": "Quadratic"}]}
	]`)
	s, err := ParseSchema("FAST", data)
	require.NoError(t, err)

	f, ok := s.Field("InterpOrder")
	require.True(t, ok)
	assert.Equal(t, "1: Linear", f.Options[0].Text)
	assert.Equal(t, "2: Quadratic", f.Options[1].Text)

	again, err := ParseSchema("FAST", data)
	require.NoError(t, err)
	assert.Equal(t, s.Groups, again.Groups, "reload yields the same groups")
}
