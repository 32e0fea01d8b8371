package cmd

import (
	"github.com/spf13/cobra"

	"github.com/papapumpkin/buildscript/internal/target"
	"github.com/papapumpkin/buildscript/internal/targets"
	"github.com/papapumpkin/buildscript/internal/ui"
)

var targetsCmd = &cobra.Command{
	Use:   "targets [GOALS...]",
	Short: "List targets in declaration order",
	Long: `Lists every target with its direct and transitive dependencies and flags. Targets are always
built in this order. With GOALS, also shows how each target would be enabled.`,
	RunE: runTargets,
}

func init() {
	targetsCmd.Flags().Bool("dependency-order", false, "list in dependency order instead")
	rootCmd.AddCommand(targetsCmd)
}

func runTargets(cmd *cobra.Command, args []string) error {
	reg, err := targets.Registry()
	if err != nil {
		return err
	}
	var recipe *target.Recipe
	if len(args) > 0 {
		goals, err := target.ParseGoals(reg, args)
		if err != nil {
			return err
		}
		recipe = goals.Recipe
	}
	order := reg.Kinds()
	if v, _ := cmd.Flags().GetBool("dependency-order"); v {
		order = reg.BuildOrder()
	}
	ui.New().TargetList(targetRows(reg, recipe, order))
	return nil
}

// targetRows describes the kinds in order. recipe may be nil.
func targetRows(reg *target.Registry, recipe *target.Recipe, order []target.Kind) []ui.TargetRow {
	rows := make([]ui.TargetRow, 0, len(order))
	for _, k := range order {
		spec := reg.Spec(k)
		row := ui.TargetRow{Name: spec.Name, Doc: spec.Doc}
		for _, dep := range spec.Requires {
			row.Requires = append(row.Requires, reg.Name(dep))
		}
		for _, dep := range reg.Closure(k) {
			row.Closure = append(row.Closure, reg.Name(dep))
		}
		if spec.Flags.Supervisor {
			row.Flags = append(row.Flags, "supervisor")
		}
		if spec.Flags.AlwaysLocal {
			row.Flags = append(row.Flags, "always local")
		}
		if spec.Flags.Deprecated {
			row.Flags = append(row.Flags, "deprecated")
		}
		if recipe != nil {
			row.Enablement = recipe.Get(k).String()
		}
		rows = append(rows, row)
	}
	return rows
}
