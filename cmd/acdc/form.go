package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matthewbaird/acdc/internal/analysis"
	"github.com/matthewbaird/acdc/internal/form"
	"github.com/matthewbaird/acdc/internal/syncer"
)

func createSchemaCmd(a *app) *cobra.Command {
	var (
		all    bool
		module string
	)
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Render the input form of the current analysis",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			schema, err := a.schema(ctx)
			if err != nil {
				return err
			}
			sy, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer sy.Close()

			in, err := sy.Document().Inputs(a.module(module))
			if err != nil {
				return err
			}
			renderForm(cmd.OutOrStdout(), schema, in, all)
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Include inactive fields")
	cmd.Flags().StringVar(&module, "module", "", "Model module holding the inputs (defaults to the schema name)")
	return cmd
}

func createShowCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the current analysis",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sy, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer sy.Close()

			doc := sy.Document()
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(doc)
			}
			renderDocument(cmd.OutOrStdout(), doc)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the document as JSON")
	return cmd
}

func createSetCmd(a *app) *cobra.Command {
	var module string
	cmd := &cobra.Command{
		Use:   "set <keyword> <value>",
		Short: "Set one input field and write the analysis",
		Long: `Set one input field of the current analysis. The value is parsed
according to the field's declared type; list fields take comma separated
items. Name, ModelPath, ExecPath and NumCPUs address the document itself.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sy, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer sy.Close()

			if ok, err := setDocumentField(sy, args[0], args[1]); ok || err != nil {
				if err != nil {
					return err
				}
				return a.flush(ctx, cmd, sy)
			}

			schema, err := a.schema(ctx)
			if err != nil {
				return err
			}
			f, ok := schema.Lookup(args[0])
			if !ok {
				return fmt.Errorf("unknown field %q in schema %s", args[0], schema.Name)
			}
			v, err := parseFieldValue(f, args[1])
			if err != nil {
				return err
			}
			if opts := analysis.OptionsFor(f); len(opts) > 0 && !hasOption(opts, v) {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s is not one of %s\n", v, optionsText(opts))
			}

			mod := a.module(module)
			if err := sy.EditInputs(mod, func(in *form.InputSet) { in.Set(f.Field, v) }); err != nil {
				return err
			}
			if f.Keyword == "NLinTimes" && mod == analysis.FASTModule {
				if n, ok := v.AsInt(); ok {
					if err := sy.UpdateLinTimes(int(n)); err != nil {
						return err
					}
				}
			}
			if err := a.flush(ctx, cmd, sy); err != nil {
				return err
			}
			return printField(cmd, schema, sy, mod, f)
		},
	}
	cmd.Flags().StringVar(&module, "module", "", "Model module holding the inputs (defaults to the schema name)")
	return cmd
}

func createDefaultCmd(a *app) *cobra.Command {
	var module string
	cmd := &cobra.Command{
		Use:   "default <keyword>",
		Short: "Toggle the default override of a field",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			schema, err := a.schema(ctx)
			if err != nil {
				return err
			}
			f, ok := schema.Lookup(args[0])
			if !ok {
				return fmt.Errorf("unknown field %q in schema %s", args[0], schema.Name)
			}
			if !f.CanBeDefault {
				return fmt.Errorf("field %s cannot be set to default", f.Keyword)
			}

			sy, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer sy.Close()

			mod := a.module(module)
			if err := sy.EditInputs(mod, func(in *form.InputSet) { in.ToggleDefault(f.Keyword) }); err != nil {
				return err
			}
			if err := a.flush(ctx, cmd, sy); err != nil {
				return err
			}
			return printField(cmd, schema, sy, mod, f)
		},
	}
	cmd.Flags().StringVar(&module, "module", "", "Model module holding the inputs (defaults to the schema name)")
	return cmd
}

func (a *app) module(flag string) string {
	if flag != "" {
		return flag
	}
	return a.cfg.Schema
}

// flush writes pending edits now instead of waiting for the debounce.
func (a *app) flush(ctx context.Context, cmd *cobra.Command, sy *syncer.Synchronizer) error {
	if err := sy.Flush(ctx); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "saved analysis %s\n", sy.AnalysisID())
	return nil
}

// setDocumentField handles the document-level settings. It reports false
// when key is not one of them.
func setDocumentField(sy *syncer.Synchronizer, key, value string) (bool, error) {
	var fn func(doc *analysis.Document)
	switch key {
	case "Name":
		fn = func(doc *analysis.Document) { doc.Name = value }
	case "ModelPath":
		fn = func(doc *analysis.Document) { doc.ModelPath = value }
	case "ExecPath":
		fn = func(doc *analysis.Document) { doc.ExecPath = value }
	case "NumCPUs":
		v, err := form.ParseValue(form.TypeInt, value)
		if err != nil {
			return true, err
		}
		n, _ := v.AsInt()
		if n < 1 {
			return true, fmt.Errorf("NumCPUs must be at least 1, got %d", n)
		}
		fn = func(doc *analysis.Document) { doc.NumCPUs = int(n) }
	default:
		return false, nil
	}
	return true, sy.Edit(fn)
}

func parseFieldValue(f form.FieldSpec, s string) (form.Value, error) {
	if f.Dims == 0 {
		return form.ParseValue(f.Type, s)
	}
	var items []form.Value
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := form.ParseValue(f.Type, part)
		if err != nil {
			return form.Value{}, err
		}
		items = append(items, v)
	}
	return form.List(items...), nil
}

func hasOption(opts []form.Option, v form.Value) bool {
	for _, o := range opts {
		if o.Value.Equal(v) {
			return true
		}
	}
	return false
}

func printField(cmd *cobra.Command, schema *form.Schema, sy *syncer.Synchronizer, module string, f form.FieldSpec) error {
	in, err := sy.Document().Inputs(module)
	if err != nil {
		return err
	}
	for _, st := range schema.Evaluate(in) {
		if st.Spec.Keyword != f.Keyword {
			continue
		}
		state := "valid"
		switch {
		case !st.Active:
			state = "inactive"
		case !st.Valid:
			state = "invalid"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s = %s (%s)\n", f.Keyword, fieldValue(st), state)
	}
	return nil
}
