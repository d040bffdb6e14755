package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/matthewbaird/acdc/internal/analysis"
	"github.com/matthewbaird/acdc/internal/form"
)

// renderForm prints the fields of schema grouped under their headings.
// Each row is marked "!" when invalid and "-" when inactive; inactive rows
// are skipped unless all is set.
func renderForm(w io.Writer, schema *form.Schema, in *form.InputSet, all bool) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	group, first := "", true
	for _, st := range schema.Evaluate(in) {
		if !st.Active && !all {
			continue
		}
		if first || st.Group != group {
			group, first = st.Group, false
			name := group
			if name == form.DefaultGroupName {
				name = "General"
			}
			fmt.Fprintf(tw, "[%s]\t\t\t\n", name)
		}
		fmt.Fprintf(tw, "%s %s\t%s\t%s\t%s\n",
			stateMark(st), st.Spec.Keyword, fieldValue(st), st.Spec.Unit, optionsText(analysis.OptionsFor(st.Spec)))
	}
	tw.Flush()

	if schema.Submittable(in) {
		fmt.Fprintln(w, "all active fields are valid")
	} else {
		fmt.Fprintln(w, "some active fields are invalid (marked !)")
	}
	for _, err := range schema.Check(in) {
		fmt.Fprintf(w, "type mismatch: %v\n", err)
	}
}

func stateMark(st form.FieldState) string {
	switch {
	case !st.Active:
		return "-"
	case !st.Valid:
		return "!"
	}
	return " "
}

func fieldValue(st form.FieldState) string {
	if st.Default {
		return "default"
	}
	if st.Value.IsNull() {
		return "<unset>"
	}
	return st.Value.String()
}

func optionsText(opts []form.Option) string {
	if len(opts) == 0 {
		return ""
	}
	parts := make([]string, len(opts))
	for i, o := range opts {
		parts[i] = o.Text
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// renderDocument prints a summary of the analysis.
func renderDocument(w io.Writer, doc *analysis.Document) {
	fmt.Fprintf(w, "analysis %s\n", doc.ID)
	fmt.Fprintf(w, "  name:  %s\n", doc.Name)
	fmt.Fprintf(w, "  model: %s (%s)\n", doc.ModelPath, validText(doc.ModelPathValid))
	fmt.Fprintf(w, "  exec:  %s (%s)\n", doc.ExecPath, validText(doc.ExecPathValid))
	fmt.Fprintf(w, "  cpus:  %d\n", doc.NumCPUs)
	if mods := doc.Modules(); len(mods) > 0 {
		fmt.Fprintf(w, "  model modules: %s\n", strings.Join(mods, ", "))
	}
	if len(doc.Turbine) > 0 {
		fmt.Fprintf(w, "  turbine: %d bytes\n", len(doc.Turbine))
	}
	renderConditions(w, doc.Conditions)
}

func validText(ok bool) string {
	if ok {
		return "valid"
	}
	return "invalid"
}

func renderConditions(w io.Writer, cs []analysis.ConditionEntry) {
	if len(cs) == 0 {
		fmt.Fprintln(w, "no conditions")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "ID\tWind (m/s)\tRotor (rpm)\tPitch (deg)\tFore-aft (m)\tSide-side (m)\t")
	for _, c := range cs {
		fmt.Fprintf(tw, "%d\t%g\t%g\t%g\t%g\t%g\t\n",
			c.ID, c.WindSpeed, c.RotorSpeed, c.BladePitch, c.TowerTopDispForeAft, c.TowerTopDispSideSide)
	}
	tw.Flush()
}

// renderStatus prints one line per condition of a status snapshot.
func renderStatus(w io.Writer, st analysis.Status) {
	parts := make([]string, len(st))
	for i, s := range st {
		part := fmt.Sprintf("#%d %s %d%%", s.ID, s.State, s.Progress)
		if s.Error != "" {
			part += " (" + s.Error + ")"
		}
		parts[i] = part
	}
	fmt.Fprintln(w, strings.Join(parts, " | "))
}
