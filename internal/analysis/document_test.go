package analysis

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/acdc/internal/form"
)

func TestDocument_MergeKeepsAbsentFields(t *testing.T) {
	d := New()
	d.ExecPath = "/opt/openfast"
	d.Model = map[string]json.RawMessage{"ElastoDyn": json.RawMessage(`{"RotSpeed": 12}`)}

	err := d.Merge([]byte(`{"ID": "a1", "Name": "NREL 5MW", "NumCPUs": 8,
		"Model": {"FAST": {"TMax": 60}}}`))
	require.NoError(t, err)

	assert.Equal(t, "a1", d.ID)
	assert.Equal(t, "NREL 5MW", d.Name)
	assert.Equal(t, 8, d.NumCPUs)
	assert.Equal(t, "/opt/openfast", d.ExecPath)
	assert.Equal(t, []string{"ElastoDyn", "FAST"}, d.Modules())
	assert.NotNil(t, d.Conditions)
}

func TestDocument_CloneIsDeep(t *testing.T) {
	d := New()
	d.Conditions = append(d.Conditions, ConditionEntry{WindSpeed: 8})
	d.Model = map[string]json.RawMessage{"FAST": json.RawMessage(`{"TMax":60}`)}
	d.Turbine = json.RawMessage(`{"Blades":3}`)

	cp := d.Clone()
	cp.Conditions[0].WindSpeed = 12
	cp.Model["FAST"][2] = 'X'
	cp.Turbine[2] = 'X'

	assert.Equal(t, 8.0, d.Conditions[0].WindSpeed)
	assert.JSONEq(t, `{"TMax":60}`, string(d.Model["FAST"]))
	assert.JSONEq(t, `{"Blades":3}`, string(d.Turbine))
	assert.Nil(t, (*Document)(nil).Clone())
}

func TestDocument_Inputs(t *testing.T) {
	d := New()
	in, err := d.Inputs(FASTModule)
	require.NoError(t, err)
	assert.Empty(t, in.Fields())

	in.Set("TMax", form.Int(60))
	in.ToggleDefault("DT_Out")
	require.NoError(t, d.SetInputs(FASTModule, in))

	got, err := d.Inputs(FASTModule)
	require.NoError(t, err)
	assert.True(t, got.Value("TMax").Equal(form.Int(60)))
	assert.True(t, got.IsDefault("DT_Out"))

	d.Model["Bad"] = json.RawMessage(`[1,2]`)
	_, err = d.Inputs("Bad")
	assert.Error(t, err)
}

func TestDocument_PathFor(t *testing.T) {
	d := &Document{ModelPath: "m/5MW.fst", ExecPath: "bin/openfast"}
	p, err := d.PathFor(PathModel)
	require.NoError(t, err)
	assert.Equal(t, "m/5MW.fst", p)
	p, err = d.PathFor(PathExec)
	require.NoError(t, err)
	assert.Equal(t, "bin/openfast", p)
	_, err = d.PathFor("other")
	assert.Error(t, err)
}

func TestConditions_SortNumberRemove(t *testing.T) {
	cs := []ConditionEntry{
		{WindSpeed: 10, RotorSpeed: 12},
		{WindSpeed: 5, RotorSpeed: 9},
		{WindSpeed: 10, RotorSpeed: 8, BladePitch: 1},
		{WindSpeed: 10, RotorSpeed: 8, BladePitch: 2},
	}
	SortConditions(cs)
	NumberConditions(cs)

	assert.Equal(t, []ConditionEntry{
		{ID: 1, WindSpeed: 5, RotorSpeed: 9},
		{ID: 2, WindSpeed: 10, RotorSpeed: 8, BladePitch: 1},
		{ID: 3, WindSpeed: 10, RotorSpeed: 8, BladePitch: 2},
		{ID: 4, WindSpeed: 10, RotorSpeed: 12},
	}, cs)

	out, ok := RemoveCondition(cs, 1)
	require.True(t, ok)
	assert.Len(t, out, 3)
	assert.Equal(t, 3, out[1].ID)
	assert.Len(t, cs, 4, "input slice untouched")

	_, ok = RemoveCondition(cs, 4)
	assert.False(t, ok)
	_, ok = RemoveCondition(cs, -1)
	assert.False(t, ok)
}

func TestStatus_Done(t *testing.T) {
	assert.False(t, Status(nil).Done())
	assert.False(t, Status{{ID: 1, State: StateRunning}}.Done())
	assert.True(t, Status{{ID: 1, State: StateComplete}, {ID: 2, State: StateError, Error: "diverged"}}.Done())
}

func TestUpdateLinTimes(t *testing.T) {
	d := New()
	d.Model = map[string]json.RawMessage{
		FASTModule: json.RawMessage(`{"CalcSteady": false, "LinTimes": [30, 60]}`),
	}

	changed, err := d.UpdateLinTimes(3)
	require.NoError(t, err)
	require.True(t, changed)
	assert.JSONEq(t, `{"CalcSteady": false, "LinTimes": [30, 60, null], "Defaults": {}}`, string(d.Model[FASTModule]))

	changed, err = d.UpdateLinTimes(1)
	require.NoError(t, err)
	require.True(t, changed)
	in, _ := d.Inputs(FASTModule)
	assert.Len(t, in.Value("LinTimes").Items(), 1)

	d.Model[FASTModule] = json.RawMessage(`{"CalcSteady": true, "LinTimes": [30]}`)
	changed, err = d.UpdateLinTimes(5)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.JSONEq(t, `{"CalcSteady": true, "LinTimes": [30]}`, string(d.Model[FASTModule]))
}

func TestOptionSets(t *testing.T) {
	cpus := OptionSets["NumCPUs"]
	require.Len(t, cpus, 24)
	assert.Equal(t, "24", cpus[23].Text)

	assert.Equal(t, "2 - ElastoDyn + BeamDyn for blades", OptionSets["CompElast"][1].Text)
	assert.Equal(t, "3 - Both", OptionSets["OutFileFmt"][2].Text)
	assert.Contains(t, OptionSetNames(), "TrimCase")

	own := form.FieldSpec{Keyword: "CompElast", Options: []form.Option{{Value: form.Int(9), Text: "9"}}}
	assert.Len(t, OptionsFor(own), 1)
	assert.Len(t, OptionsFor(form.FieldSpec{Keyword: "CompAero"}), 3)
	assert.Nil(t, OptionsFor(form.FieldSpec{Keyword: "TMax"}))
}
