package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/acdc/internal/form"
)

const sampleFST = `------- OpenFAST INPUT FILE -------------------------------------------
FAST Certification Test #06
---------------------- SIMULATION CONTROL --------------------------------------
True          Echo            - Echo input data to <RootName>.ech (flag)
"FATAL"       AbortLevel      - Error level when simulation should abort (string) {"WARNING", "SEVERE", "FATAL"}
35            TMax            - Total run time (s)
0.005         DT              - Recommended module time step (s)
1             InterpOrder     - Interpolation order for input/output time history (-) {1=linear, 2=quadratic}
1E+06         UJacSclFact     - Scaling factor used in Jacobians (-)
"AOC_WSt_ElastoDyn.dat"    EDFile          - Name of file containing ElastoDyn input parameters (quoted string)
"default"     DT_Out          - Time step for tabular output (s) (or "default")
True          Linearize       - Linearization analysis (flag)
False         CalcSteady      - Calculate a steady-state periodic operating point before linearization? (flag)
2             NLinTimes       - Number of times to linearize (-) [>=1]
30, 60        LinTimes        - List of times at which to linearize (s) [1 to NLinTimes]
`

func fastSchema(t *testing.T) *form.Schema {
	t.Helper()
	store, err := NewSchemaStore("")
	require.NoError(t, err)
	schema, ok := store.Schema(fastModule)
	require.True(t, ok)
	return schema
}

func TestParseInputFile(t *testing.T) {
	in, err := ParseInputFile(fastSchema(t), []byte(sampleFST))
	require.NoError(t, err)

	expect := map[string]form.Value{
		"Title":       form.String("FAST Certification Test #06"),
		"Echo":        form.Bool(true),
		"AbortLevel":  form.String("FATAL"),
		"TMax":        form.Float(35),
		"DT":          form.Float(0.005),
		"InterpOrder": form.Int(1),
		"UJacSclFact": form.Float(1e6),
		"EDFile":      form.String("AOC_WSt_ElastoDyn.dat"),
		"Linearize":   form.Bool(true),
		"CalcSteady":  form.Bool(false),
		"NLinTimes":   form.Int(2),
		"LinTimes":    form.List(form.Float(30), form.Float(60)),
	}
	for field, want := range expect {
		got, ok := in.Get(field)
		if assert.True(t, ok, field) {
			assert.True(t, want.Equal(got), "%s: got %v want %v", field, got, want)
		}
	}

	assert.True(t, in.IsDefault("DT_Out"))
	_, ok := in.Get("DT_Out")
	assert.False(t, ok)

	_, ok = in.Get("CompElast")
	assert.False(t, ok, "keywords absent from the file stay unset")
}

func TestParseInputFile_ParsedFieldsAreValid(t *testing.T) {
	schema := fastSchema(t)
	in, err := ParseInputFile(schema, []byte(sampleFST))
	require.NoError(t, err)

	for _, kw := range []string{"Echo", "TMax", "InterpOrder", "DT_Out", "LinTimes"} {
		f, ok := schema.Field(kw)
		require.True(t, ok, kw)
		assert.True(t, form.IsValid(f, in), kw)
	}
	assert.Empty(t, schema.Check(in))
}

func TestParseInputFile_BadValue(t *testing.T) {
	text := "header\ntitle\nlots    TMax   - Total run time (s)\n"
	_, err := ParseInputFile(fastSchema(t), []byte(text))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TMax")
}

func TestParseInputFile_NoTitle(t *testing.T) {
	_, err := ParseInputFile(fastSchema(t), []byte("only one line"))
	assert.Error(t, err)
}

func TestFindValue_WholeTokenMatch(t *testing.T) {
	lines := []string{
		"99999   DT_UJac   - Time between calls to get Jacobians (s)",
		"0.01    DT        - Recommended module time step (s)",
	}
	v, ok := findValue(lines, "DT")
	require.True(t, ok)
	assert.Equal(t, "0.01", v)

	_, ok = findValue(lines, "TMax")
	assert.False(t, ok)
}
