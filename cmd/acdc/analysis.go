package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/matthewbaird/acdc/internal/analysis"
	"github.com/matthewbaird/acdc/internal/client"
	"github.com/matthewbaird/acdc/internal/syncer"
)

func createImportCmd(a *app) *cobra.Command {
	var modelPath, dir string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a model by server path or by uploading a local directory",
		Long: `Import a model into the current analysis.

With --path (or neither flag) the server reads the model itself, from the
given path or the analysis ModelPath. With --dir every file below the local
directory is uploaded and the parsed turbine is stored.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if modelPath != "" && dir != "" {
				return errors.New("--path and --dir are mutually exclusive")
			}
			ctx := cmd.Context()
			sy, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer sy.Close()

			src := syncer.ImportSource{Path: modelPath}
			if dir != "" {
				files, closeAll, err := collectFiles(dir)
				if err != nil {
					return err
				}
				defer closeAll()
				src.Files = files
			}
			if err := sy.ImportModel(ctx, src); err != nil {
				var ie *syncer.ImportError
				if errors.As(err, &ie) {
					return errors.New(ie.Message)
				}
				return err
			}
			doc := sy.Document()
			if dir != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "uploaded %d files, turbine %d bytes\n", len(src.Files), len(doc.Turbine))
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "imported modules: %v\n", doc.Modules())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&modelPath, "path", "", "Model path on the server (defaults to the analysis ModelPath)")
	cmd.Flags().StringVar(&dir, "dir", "", "Local model directory to upload")
	return cmd
}

// collectFiles opens every regular file below dir. Paths keep the
// directory's base name as their first segment.
func collectFiles(dir string) ([]client.File, func(), error) {
	var (
		files []client.File
		open  []*os.File
	)
	closeAll := func() {
		for _, f := range open {
			f.Close()
		}
	}
	base := filepath.Base(filepath.Clean(dir))
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		f, err := os.Open(p)
		if err != nil {
			return err
		}
		open = append(open, f)
		files = append(files, client.File{Path: path.Join(base, filepath.ToSlash(rel)), Content: f})
		return nil
	})
	if err != nil {
		closeAll()
		return nil, nil, err
	}
	return files, closeAll, nil
}

func createConditionsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "conditions",
		Short: "List, add or remove operating conditions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listConditions(a, cmd)
		},
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List operating conditions",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return listConditions(a, cmd)
			},
		},
		createConditionAddCmd(a),
		createConditionRemoveCmd(a),
	)
	return cmd
}

func listConditions(a *app, cmd *cobra.Command) error {
	sy, err := a.open(cmd.Context())
	if err != nil {
		return err
	}
	defer sy.Close()
	renderConditions(cmd.OutOrStdout(), sy.Document().Conditions)
	return nil
}

func createConditionAddCmd(a *app) *cobra.Command {
	var c analysis.ConditionEntry
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an operating condition",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sy, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer sy.Close()
			if err := sy.AddCondition(ctx, c); err != nil {
				return err
			}
			renderConditions(cmd.OutOrStdout(), sy.Document().Conditions)
			return nil
		},
	}
	cmd.Flags().Float64Var(&c.WindSpeed, "wind", 0, "Wind speed (m/s)")
	cmd.Flags().Float64Var(&c.RotorSpeed, "rotor", 0, "Rotor speed (rpm)")
	cmd.Flags().Float64Var(&c.BladePitch, "pitch", 0, "Blade pitch (deg)")
	cmd.Flags().Float64Var(&c.TowerTopDispForeAft, "fore-aft", 0, "Tower top fore-aft displacement (m)")
	cmd.Flags().Float64Var(&c.TowerTopDispSideSide, "side-side", 0, "Tower top side-side displacement (m)")
	return cmd
}

func createConditionRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <ID>",
		Aliases: []string{"remove"},
		Short:   "Remove the operating condition with the given ID",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("condition ID: %w", err)
			}
			ctx := cmd.Context()
			sy, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer sy.Close()
			if err := sy.RemoveCondition(ctx, id-1); err != nil {
				return err
			}
			renderConditions(cmd.OutOrStdout(), sy.Document().Conditions)
			return nil
		},
	}
}

func createValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "validate <model|exec> [path]",
		Short:     "Check that the model or executable path exists on the server",
		Long:      "Check the model or executable path of the analysis. When a path is given it is saved first.",
		Args:      cobra.RangeArgs(1, 2),
		ValidArgs: []string{string(analysis.PathModel), string(analysis.PathExec)},
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := analysis.PathKind(args[0])
			if kind != analysis.PathModel && kind != analysis.PathExec {
				return fmt.Errorf("unknown path kind %q (want model or exec)", args[0])
			}
			ctx := cmd.Context()
			sy, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer sy.Close()

			if len(args) == 2 {
				p := args[1]
				err := sy.Edit(func(doc *analysis.Document) {
					if kind == analysis.PathModel {
						doc.ModelPath = p
					} else {
						doc.ExecPath = p
					}
				})
				if err != nil {
					return err
				}
				if err := a.flush(ctx, cmd, sy); err != nil {
					return err
				}
			}
			p, _ := sy.Document().PathFor(kind)
			fmt.Fprintf(cmd.OutOrStdout(), "%s path %q is %s\n", kind, p, validText(sy.ValidatePath(ctx, kind)))
			return nil
		},
	}
}

func createNewCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "new",
		Short: "Discard the current analysis and start a new one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := a.api.ResetAnalysis(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "new analysis %s\n", doc.ID)
			return nil
		},
	}
}
