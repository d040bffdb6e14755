package analysis

import (
	"sort"

	"github.com/matthewbaird/acdc/internal/form"
)

func opt(v any, text string) form.Option {
	return form.Option{Value: form.MustValue(v), Text: text}
}

func cpuOptions(n int) []form.Option {
	out := make([]form.Option, n)
	for i := range out {
		out[i] = form.Option{Value: form.Int(int64(i + 1))}
		out[i].Text = out[i].Value.String()
	}
	return out
}

// OptionSets are the fixed choices offered for analysis settings and FAST
// inputs whose schema entries carry no options of their own.
var OptionSets = map[string][]form.Option{
	"NumCPUs": cpuOptions(24),
	"TrueFalse": {
		opt(true, "True"),
		opt(false, "False"),
	},
	"TrimCase": {
		opt(1, "1 - Yaw"),
		opt(2, "2 - Torque"),
		opt(3, "3 - Pitch"),
	},
	"LinInputs": {
		opt(0, "0 - None"),
		opt(1, "1 - Standard"),
		opt(2, "2 - All module inputs (debug)"),
	},
	"LinOutputs": {
		opt(0, "0 - None"),
		opt(1, "1 - From OutList(s)"),
		opt(2, "2 - All module outputs (debug)"),
	},
	"CompElast": {
		opt(1, "1 - ElastoDyn"),
		opt(2, "2 - ElastoDyn + BeamDyn for blades"),
	},
	"CompAero": {
		opt(0, "0 - None"),
		opt(1, "1 - AeroDyn v14"),
		opt(2, "2 - AeroDyn v15"),
	},
	"CompServo": {
		opt(0, "0 - None"),
		opt(1, "1 - ServoDyn"),
	},
	"CompHydro": {
		opt(0, "0 - None"),
		opt(1, "1 - HydroDyn"),
	},
	"CompSub": {
		opt(0, "0 - None"),
		opt(1, "1 - SubDyn"),
		opt(2, "2 - External Platform MCKF"),
	},
	"InterpOrder": {
		opt(1, "1 - Linear"),
		opt(2, "2 - Quadratic"),
	},
	"OutFileFmt": {
		opt(1, "1 - Text [<RootName>.out]"),
		opt(2, "2 - Binary [<RootName>.outb]"),
		opt(3, "3 - Both"),
	},
}

// OptionSetNames returns the keys of OptionSets, sorted.
func OptionSetNames() []string {
	out := make([]string, 0, len(OptionSets))
	for k := range OptionSets {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// OptionsFor returns the options for a field: the schema's own when it has
// any, otherwise the fixed set registered under the field's keyword.
func OptionsFor(f form.FieldSpec) []form.Option {
	if len(f.Options) > 0 {
		return f.Options
	}
	return OptionSets[f.Keyword]
}
