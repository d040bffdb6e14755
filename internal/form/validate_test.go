package form

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsValid_TypeTable(t *testing.T) {
	tests := []struct {
		typ   FieldType
		value Value
		want  bool
	}{
		{TypeBool, Bool(true), true},
		{TypeBool, Bool(false), true},
		{TypeBool, Int(1), false},
		{TypeBool, String("true"), false},
		{TypeString, String("WARNING"), true},
		{TypeString, String(""), false},
		{TypeString, Int(3), false},
		{TypeInt, Int(3), true},
		{TypeInt, Float(3.0), true},
		{TypeInt, Float(3.5), false},
		{TypeInt, Float(math.Inf(1)), false},
		{TypeInt, String("3"), false},
		{TypeFloat, Float(3.5), true},
		{TypeFloat, Int(3), true},
		{TypeFloat, Float(math.NaN()), false},
		{TypeFloat, Float(math.Inf(-1)), false},
		{TypeFloat, String("3.5"), false},
		{FieldType("float"), String("anything"), true},
		{FieldType("Turbine"), Bool(false), true},
	}
	for _, tt := range tests {
		f := FieldSpec{Keyword: "kw", Field: "Kw", Type: tt.typ}
		in := NewInputSet()
		in.Set("Kw", tt.value)
		assert.Equal(t, tt.want, IsValid(f, in), "%s with %s %v", tt.typ, tt.value.Kind(), tt.value)
	}
}

func TestIsValid_MissingOrNull(t *testing.T) {
	f := FieldSpec{Keyword: "kw", Field: "Kw", Type: FieldType("custom")}
	assert.False(t, IsValid(f, NewInputSet()))

	in := NewInputSet()
	in.Set("Kw", Null())
	assert.False(t, IsValid(f, in))
}

func TestIsValid_DefaultShortCircuits(t *testing.T) {
	f := FieldSpec{Keyword: "DT_Out", Field: "DT_Out", Type: TypeFloat}
	for _, v := range []Value{Null(), String("default"), Float(math.NaN()), Bool(true)} {
		in := NewInputSet()
		in.Set("DT_Out", v)
		in.ToggleDefault("DT_Out")
		assert.True(t, IsValid(f, in))
	}

	in := NewInputSet()
	in.ToggleDefault("DT_Out")
	assert.True(t, IsValid(f, in), "absent value is valid when overridden")
}

func TestIsValid_ListElements(t *testing.T) {
	f := FieldSpec{Keyword: "LinTimes", Field: "LinTimes", Type: TypeFloat, Dims: 1}

	in := NewInputSet()
	in.Set("LinTimes", List(Float(30), Int(60)))
	assert.True(t, IsValid(f, in))

	in.Set("LinTimes", List(Float(30), Null()))
	assert.False(t, IsValid(f, in))

	in.Set("LinTimes", List())
	assert.True(t, IsValid(f, in))
}

func TestSchema_EvaluateAndSubmittable(t *testing.T) {
	s, err := NewSchema("FAST", []RawEntry{
		Heading("Linearization"),
		{Keyword: "Linearize", Type: TypeBool},
		{Keyword: "NLinTimes", Type: TypeInt, Active: []Condition{cond("Linearize", RelEqual, true)}},
	})
	require.NoError(t, err)

	in := inputs(map[string]any{"Linearize": false})
	states := s.Evaluate(in)
	require.Len(t, states, 2)
	assert.Equal(t, "Linearization", states[1].Group)
	assert.False(t, states[1].Active)
	assert.False(t, states[1].Valid)
	assert.True(t, s.Submittable(in), "inactive invalid field does not block")

	in.Set("Linearize", Bool(true))
	assert.False(t, s.Submittable(in))

	in.Set("NLinTimes", Int(2))
	assert.True(t, s.Submittable(in))
}

func TestSchema_Check(t *testing.T) {
	s, err := NewSchema("FAST", []RawEntry{
		{Keyword: "Echo", Type: TypeBool},
		{Keyword: "NumCrctn", Type: TypeInt},
		{Keyword: "TMax", Type: TypeFloat},
		{Keyword: "LinTimes", Type: TypeFloat, Dims: 1},
		{Keyword: "Title", Type: TypeString},
	})
	require.NoError(t, err)

	in := inputs(map[string]any{
		"Echo":     1,
		"NumCrctn": 2.5,
		"TMax":     60,
		"LinTimes": []any{30.0, "x"},
		"Title":    "",
	})
	errs := s.Check(in)
	require.Len(t, errs, 3)
	assert.Equal(t, "Echo", errs[0].Keyword)
	assert.Equal(t, KindInt, errs[0].Got)
	assert.Equal(t, "NumCrctn", errs[1].Keyword)
	assert.Equal(t, "LinTimes", errs[2].Keyword)
	assert.Equal(t, KindString, errs[2].Got)
	assert.Contains(t, errs[0].Error(), "cannot hold bool")
}
