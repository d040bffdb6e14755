package form

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInputSet_ToggleDefault(t *testing.T) {
	in := NewInputSet()
	in.ToggleDefault("Other")

	in.ToggleDefault("DT_Out")
	assert.True(t, in.IsDefault("DT_Out"))
	assert.Equal(t, []string{"DT_Out", "Other"}, in.DefaultKeywords())

	in.ToggleDefault("DT_Out")
	assert.False(t, in.IsDefault("DT_Out"))
	assert.True(t, in.IsDefault("Other"), "unrelated keys untouched")

	for i := 0; i < 4; i++ {
		in.ToggleDefault("DT_Out")
	}
	assert.False(t, in.IsDefault("DT_Out"))
	assert.Equal(t, []string{"Other"}, in.DefaultKeywords())
}

func TestInputSet_NilReads(t *testing.T) {
	var in *InputSet
	_, ok := in.Get("X")
	assert.False(t, ok)
	assert.True(t, in.Value("X").IsNull())
	assert.False(t, in.IsDefault("X"))
	assert.Nil(t, in.Fields())
}

func TestInputSet_ZeroValue(t *testing.T) {
	var in InputSet
	in.ToggleDefault("DT_Out")
	in.Set("TMax", Int(60))
	in.Delete("Missing")

	assert.True(t, in.IsDefault("DT_Out"))
	assert.True(t, in.Value("TMax").Equal(Int(60)))

	out, err := json.Marshal(&in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"TMax": 60, "Defaults": {"DT_Out": {}}}`, string(out))
}

func TestInputSet_JSON(t *testing.T) {
	raw := []byte(`{"TMax": 60, "DT": 0.0125, "Echo": false, "AbortLevel": "FATAL",
		"LinTimes": [30, 60], "Defaults": {"DT_Out": {}}}`)

	in := NewInputSet()
	require.NoError(t, json.Unmarshal(raw, in))

	assert.Equal(t, []string{"AbortLevel", "DT", "Echo", "LinTimes", "TMax"}, in.Fields())
	assert.Equal(t, KindInt, in.Value("TMax").Kind())
	assert.Equal(t, KindFloat, in.Value("DT").Kind())
	assert.True(t, in.IsDefault("DT_Out"))

	out, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"TMax": 60, "DT": 0.0125, "Echo": false, "AbortLevel": "FATAL",
		"LinTimes": [30, 60], "Defaults": {"DT_Out": {}}}`, string(out))
}

func TestInputSet_CloneIsIndependent(t *testing.T) {
	in := NewInputSet()
	in.Set("TMax", Int(60))
	cp := in.Clone()
	cp.Set("TMax", Int(10))
	cp.ToggleDefault("TMax")

	assert.True(t, in.Value("TMax").Equal(Int(60)))
	assert.False(t, in.IsDefault("TMax"))
}
