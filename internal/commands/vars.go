package commands

import (
	"fmt"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"tablereader/internal/app"
	"tablereader/internal/errors"
	"tablereader/internal/flowvar"
)

// VarsCmd groups the flow variable commands.
var VarsCmd = &cobra.Command{
	Use:   "vars",
	Short: "Manage the flow variables of a node",
	Long: `Flow variables are typed name/value pairs stored with a node.
Variables named spec_limit, skip_empty_columns, fail_on_differing_specs
and fail_on_content_errors override the node's reader settings.

Examples:
  tablereader vars set sales spec_limit 0 --type int
  tablereader vars set sales skip_empty_columns true --type boolean
  tablereader vars list sales`,
}

var varsSetType string

var varsSetCmd = &cobra.Command{
	Use:   "set <node> <name> <value>",
	Short: "Set a flow variable",
	Args:  cobra.ExactArgs(3),
	RunE:  withApp(runVarsSet),
}

var varsListCmd = &cobra.Command{
	Use:     "list <node>",
	Aliases: []string{"ls"},
	Short:   "List flow variables",
	Args:    cobra.ExactArgs(1),
	RunE:    withApp(runVarsList),
}

var varsUnsetCmd = &cobra.Command{
	Use:   "unset <node> <name>",
	Short: "Remove a flow variable",
	Args:  cobra.ExactArgs(2),
	RunE:  withApp(runVarsUnset),
}

var varsMoveCmd = &cobra.Command{
	Use:   "move <node> <name> <index>",
	Short: "Move a flow variable to another position",
	Args:  cobra.ExactArgs(3),
	RunE:  withApp(runVarsMove),
}

func init() {
	varsSetCmd.Flags().StringVar(&varsSetType, "type", "string", "Type: string, int, double, boolean")
	VarsCmd.AddCommand(varsSetCmd, varsListCmd, varsUnsetCmd, varsMoveCmd)
}

func runVarsSet(cmd *cobra.Command, args []string, a *app.App) error {
	typ, err := flowvar.ParseType(varsSetType)
	if err != nil {
		return err
	}
	v := flowvar.Variable{Name: args[1], Type: typ, Value: args[2]}
	if err := a.Readers.SetVariable(args[0], v); err != nil {
		return err
	}
	pterm.Success.WithWriter(cmd.OutOrStdout()).Printfln("Set %s", v)
	return nil
}

func runVarsList(cmd *cobra.Command, args []string, a *app.App) error {
	vars, err := a.Readers.Variables(args[0])
	if err != nil {
		return err
	}
	if len(vars) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No variables.")
		return nil
	}
	data := pterm.TableData{{"Name", "Type", "Value"}}
	for _, v := range vars {
		data = append(data, []string{v.Name, string(v.Type), v.Value})
	}
	return pterm.DefaultTable.WithHasHeader().WithWriter(cmd.OutOrStdout()).WithData(data).Render()
}

func runVarsUnset(cmd *cobra.Command, args []string, a *app.App) error {
	if err := a.Readers.UnsetVariable(args[0], args[1]); err != nil {
		return err
	}
	pterm.Success.WithWriter(cmd.OutOrStdout()).Printfln("Removed %s", args[1])
	return nil
}

func runVarsMove(cmd *cobra.Command, args []string, a *app.App) error {
	idx, err := strconv.Atoi(args[2])
	if err != nil {
		return errors.Configurationf("index %q is not a number", args[2])
	}
	return a.Readers.MoveVariable(args[0], args[1], idx)
}
