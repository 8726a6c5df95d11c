package commands

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"tablereader/internal/app"
	"tablereader/internal/domain"
	"tablereader/internal/errors"
	"tablereader/internal/service"
	"tablereader/internal/settings"
	"tablereader/internal/transform"
)

// NodeCmd groups the reader node commands.
var NodeCmd = &cobra.Command{
	Use:   "node",
	Short: "Manage stored reader nodes",
	Long: `A reader node is a stored multi-source read: its items, reader
settings, column edits, trigger and output file.

Examples:
  tablereader node create sales -i 'data/*.csv' -o out/sales.csv
  tablereader node configure sales
  tablereader node edit sales amount --type DoubleCell --rename total
  tablereader node run sales
  tablereader node create nightly -i data/orders.json --trigger schedule --cron '0 2 * * *'`,
}

var (
	nodeCreate struct {
		readFlags
		items    []string
		trigger  string
		cron     string
		watch    []string
		output   string
		disabled bool
	}
	nodeShowYAML bool
	nodeShowJSON bool
	nodeRunOut   bool
	nodeRunFmt   string
	nodeLogLimit int
	nodeEdit     struct {
		rename   string
		dataType string
		keep     bool
		position int
	}
)

var nodeCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a reader node",
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(runNodeCreate),
}

var nodeListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List reader nodes",
	Args:    cobra.NoArgs,
	RunE:    withApp(runNodeList),
}

var nodeShowCmd = &cobra.Command{
	Use:   "show <node>",
	Short: "Show a node and its configured columns",
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(runNodeShow),
}

var nodeConfigureCmd = &cobra.Command{
	Use:   "configure <node>",
	Short: "Read the node's specs and reconcile its column edits with them",
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(runNodeConfigure),
}

var nodeRunCmd = &cobra.Command{
	Use:   "run <node>",
	Short: "Execute a node",
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(runNodeRun),
}

var nodeEditCmd = &cobra.Command{
	Use:   "edit <node> <column>",
	Short: "Rename, retype, move or drop a column",
	Long: `Edit how a raw column appears in the output. Edits are kept when
sources change; configure the node first.

Types: BooleanCell, IntCell, LongCell, DoubleCell, LocalDateTimeCell, StringCell.`,
	Args: cobra.ExactArgs(2),
	RunE: withApp(runNodeEdit),
}

var nodeDeleteCmd = &cobra.Command{
	Use:     "delete <node>",
	Aliases: []string{"rm"},
	Short:   "Delete a node",
	Args:    cobra.ExactArgs(1),
	RunE:    withApp(runNodeDelete),
}

var nodeLogsCmd = &cobra.Command{
	Use:   "logs <node>",
	Short: "Show recent runs of a node",
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(runNodeLogs),
}

var nodeHistoryCmd = &cobra.Command{
	Use:   "history <node>",
	Short: "List saved versions of a node's table spec config",
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(runNodeHistory),
}

var nodeUndoCmd = &cobra.Command{
	Use:   "undo <node>",
	Short: "Restore the previous table spec config",
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(func(cmd *cobra.Command, args []string, a *app.App) error {
		spec, err := a.Readers.Undo(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return renderSpec(cmd.OutOrStdout(), spec)
	}),
}

var nodeRedoCmd = &cobra.Command{
	Use:   "redo <node>",
	Short: "Reapply the newest table spec config undone",
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(func(cmd *cobra.Command, args []string, a *app.App) error {
		spec, err := a.Readers.Redo(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return renderSpec(cmd.OutOrStdout(), spec)
	}),
}

func init() {
	f := nodeCreateCmd.Flags()
	nodeCreate.readFlags.register(nodeCreateCmd)
	f.StringArrayVarP(&nodeCreate.items, "item", "i", nil, "Item to read, repeatable; globs are expanded")
	f.StringVar(&nodeCreate.trigger, "trigger", "manual", "Trigger: manual, schedule, file_watch")
	f.StringVar(&nodeCreate.cron, "cron", "", "Cron expression for --trigger schedule")
	f.StringSliceVar(&nodeCreate.watch, "watch", nil, "Paths to watch for --trigger file_watch (default: the items)")
	f.StringVarP(&nodeCreate.output, "output", "o", "", "Output file written by runs (.csv or .jsonl)")
	f.BoolVar(&nodeCreate.disabled, "disabled", false, "Create the node without enabling its trigger")
	_ = nodeCreateCmd.MarkFlagRequired("item")

	nodeShowCmd.Flags().BoolVar(&nodeShowYAML, "yaml", false, "Print the stored table spec config as YAML")
	nodeShowCmd.Flags().BoolVar(&nodeShowJSON, "json", false, "Print JSON")

	nodeRunCmd.Flags().BoolVar(&nodeRunOut, "stdout", false, "Write rows to stdout instead of the node's output file")
	nodeRunCmd.Flags().StringVarP(&nodeRunFmt, "format", "f", "csv", "Format for --stdout: csv, jsonl")

	nodeEditCmd.Flags().StringVar(&nodeEdit.rename, "rename", "", "New output name")
	nodeEditCmd.Flags().StringVar(&nodeEdit.dataType, "type", "", "Output type")
	nodeEditCmd.Flags().BoolVar(&nodeEdit.keep, "keep", true, "Include the column in the output")
	nodeEditCmd.Flags().IntVar(&nodeEdit.position, "position", -1, "New 0-based position")

	nodeLogsCmd.Flags().IntVarP(&nodeLogLimit, "limit", "n", 20, "Runs to show")

	NodeCmd.AddCommand(nodeCreateCmd, nodeListCmd, nodeShowCmd, nodeConfigureCmd,
		nodeRunCmd, nodeEditCmd, nodeDeleteCmd, nodeLogsCmd,
		nodeHistoryCmd, nodeUndoCmd, nodeRedoCmd)
}

// expandItems expands glob patterns; anything that matches nothing is kept
// as given so database queries and missing files pass through.
func expandItems(items []string) ([]string, error) {
	var out []string
	for _, it := range items {
		if !strings.ContainsAny(it, "*?[") {
			out = append(out, it)
			continue
		}
		matches, err := filepath.Glob(it)
		if err != nil {
			return nil, errors.AsConfiguration(errors.Wrapf(err, "bad pattern %q", it))
		}
		if len(matches) == 0 {
			return nil, errors.Configurationf("pattern %q matches no files", it)
		}
		out = append(out, matches...)
	}
	return out, nil
}

// readerConfigJSON keeps only the settings given on the command line so
// that the configured defaults still apply to the rest.
func readerConfigJSON(cmd *cobra.Command, f *readFlags) (json.RawMessage, error) {
	m := map[string]any{}
	if f.mode != "" {
		m["spec_merge_mode"] = strings.ToUpper(f.mode)
	}
	if cmd.Flags().Changed("spec-limit") {
		if f.specLimit < 0 {
			return nil, errors.Configurationf("--spec-limit must be >= 0, got %d", f.specLimit)
		}
		m["spec_limit"] = f.specLimit
	}
	if f.skipEmpty {
		m["skip_empty_columns"] = true
	}
	if f.failOnDiffering {
		m["fail_on_differing_specs"] = true
	}
	if f.ignoreBadContent {
		m["fail_on_content_errors"] = false
	}
	if len(f.options) > 0 {
		m["options"] = f.options
	}
	if len(m) == 0 {
		return nil, nil
	}
	return json.Marshal(m)
}

func runNodeCreate(cmd *cobra.Command, args []string, a *app.App) error {
	items, err := expandItems(nodeCreate.items)
	if err != nil {
		return err
	}
	rc, err := readerConfigJSON(cmd, &nodeCreate.readFlags)
	if err != nil {
		return err
	}
	trigger, err := service.ParseTriggerType(nodeCreate.trigger)
	if err != nil {
		return err
	}
	triggerConfig := nodeCreate.cron
	if trigger == domain.TriggerFileWatch {
		triggerConfig = strings.Join(nodeCreate.watch, ",")
	}

	n, err := a.Readers.CreateNode(cmd.Context(), service.CreateNodeInput{
		Name:          args[0],
		SourceType:    nodeCreate.typeFor(items),
		Items:         items,
		ReaderConfig:  rc,
		TriggerType:   string(trigger),
		TriggerConfig: triggerConfig,
		OutputPath:    nodeCreate.output,
		Enabled:       !nodeCreate.disabled,
	})
	if err != nil {
		return err
	}
	pterm.Success.WithWriter(cmd.OutOrStdout()).Printfln("Created node %s (%s) with %d items", n.Name, n.ID, len(n.Items))
	return nil
}

func runNodeList(cmd *cobra.Command, _ []string, a *app.App) error {
	nodes, err := a.Readers.ListNodes()
	if err != nil {
		return err
	}
	if len(nodes) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No nodes.")
		return nil
	}
	data := pterm.TableData{{"Name", "Type", "Items", "Trigger", "Configured", "Last run", "Status"}}
	for _, n := range nodes {
		last := "-"
		if n.LastRunAt != nil {
			last = n.LastRunAt.Local().Format(time.DateTime)
		}
		data = append(data, []string{
			n.Name, n.SourceType, fmt.Sprint(len(n.Items)), string(n.TriggerType),
			yesNo(len(n.SpecConfig) > 0), last, n.LastStatus,
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithWriter(cmd.OutOrStdout()).WithData(data).Render()
}

func runNodeShow(cmd *cobra.Command, args []string, a *app.App) error {
	w := cmd.OutOrStdout()
	n, err := a.Readers.GetNode(args[0])
	if err != nil {
		return err
	}

	if nodeShowYAML {
		if len(n.SpecConfig) == 0 {
			return errors.WithHintf(errors.Configurationf("node %q is not configured", n.Name),
				"run `tablereader node configure %s` first", n.Name)
		}
		tree := settings.New()
		if err := json.Unmarshal(n.SpecConfig, tree); err != nil {
			return errors.Wrap(err, "decode stored spec config")
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(tree); err != nil {
			return errors.Wrap(err, "encode spec config")
		}
		return enc.Close()
	}

	spec, specErr := a.Readers.Spec(n.ID)
	vars, err := a.Readers.Variables(n.ID)
	if err != nil {
		return err
	}
	if nodeShowJSON {
		return printJSON(w, map[string]any{"node": n, "spec": spec, "variables": vars})
	}

	fmt.Fprintf(w, "Name:     %s\n", n.Name)
	fmt.Fprintf(w, "ID:       %s\n", n.ID)
	fmt.Fprintf(w, "Type:     %s\n", n.SourceType)
	fmt.Fprintf(w, "Trigger:  %s %s\n", n.TriggerType, n.TriggerConfig)
	fmt.Fprintf(w, "Output:   %s\n", n.OutputPath)
	fmt.Fprintf(w, "Enabled:  %s\n", yesNo(n.Enabled))
	if len(n.ReaderConfig) > 0 {
		fmt.Fprintf(w, "Settings: %s\n", n.ReaderConfig)
	}
	fmt.Fprintln(w, "Items:")
	for _, it := range n.Items {
		fmt.Fprintf(w, "  %s\n", it)
	}
	if len(vars) > 0 {
		fmt.Fprintln(w, "Variables:")
		for _, v := range vars {
			fmt.Fprintf(w, "  %s\n", v)
		}
	}
	fmt.Fprintln(w)
	if specErr != nil {
		printError(w, specErr)
		return nil
	}
	return renderSpec(w, spec)
}

func runNodeConfigure(cmd *cobra.Command, args []string, a *app.App) error {
	spec, err := a.Readers.Configure(cmd.Context(), args[0], progressMonitor(cmd))
	if err != nil {
		return err
	}
	return renderSpec(cmd.OutOrStdout(), spec)
}

func runNodeRun(cmd *cobra.Command, args []string, a *app.App) error {
	if !nodeRunOut {
		res, err := a.Readers.Execute(cmd.Context(), args[0], domain.TriggerManual, nil)
		if err != nil {
			return err
		}
		msg := fmt.Sprintf("Read %d rows from %d sources in %dms", res.Rows, res.Sources, res.DurationMS)
		if res.OutputPath != "" {
			msg += " into " + res.OutputPath
		}
		pterm.Success.WithWriter(cmd.ErrOrStderr()).Println(msg)
		if res.SkippedRows > 0 {
			pterm.Warning.WithWriter(cmd.ErrOrStderr()).Printfln("Skipped %d rows with unconvertible values", res.SkippedRows)
		}
		return nil
	}

	format, err := service.ParseFormat(nodeRunFmt)
	if err != nil {
		return err
	}
	_, err = a.Readers.ExecuteTo(cmd.Context(), args[0], domain.TriggerManual, cmd.OutOrStdout(), format)
	return err
}

func runNodeEdit(cmd *cobra.Command, args []string, a *app.App) error {
	node, column := args[0], args[1]
	flags := cmd.Flags()
	if !flags.Changed("rename") && !flags.Changed("type") && !flags.Changed("keep") && !flags.Changed("position") {
		return errors.WithHint(errors.Configurationf("nothing to edit"), "pass --rename, --type, --keep or --position")
	}

	// one edit, one history entry
	spec, err := a.Readers.EditTransformation(cmd.Context(), node, "edit "+column,
		func(tt *transform.TableTransformation) (*transform.TableTransformation, error) {
			var err error
			if flags.Changed("type") {
				if tt, err = tt.Retype(a.Readers.Paths(), column, transform.DataType(nodeEdit.dataType)); err != nil {
					return nil, err
				}
			}
			if flags.Changed("rename") {
				if tt, err = tt.Rename(column, nodeEdit.rename); err != nil {
					return nil, err
				}
			}
			if flags.Changed("keep") {
				if tt, err = tt.SetKeep(column, nodeEdit.keep); err != nil {
					return nil, err
				}
			}
			if flags.Changed("position") {
				if tt, err = tt.Move(column, nodeEdit.position); err != nil {
					return nil, err
				}
			}
			return tt, nil
		})
	if err != nil {
		return err
	}
	return renderSpec(cmd.OutOrStdout(), spec)
}

func runNodeDelete(cmd *cobra.Command, args []string, a *app.App) error {
	if err := a.Readers.DeleteNode(cmd.Context(), args[0]); err != nil {
		return err
	}
	pterm.Success.WithWriter(cmd.OutOrStdout()).Printfln("Deleted node %s", args[0])
	return nil
}

func runNodeLogs(cmd *cobra.Command, args []string, a *app.App) error {
	logs, err := a.Readers.ListRunLogs(args[0], nodeLogLimit)
	if err != nil {
		return err
	}
	data := pterm.TableData{{"Started", "Trigger", "Status", "Rows", "Skipped", "Error"}}
	for _, l := range logs {
		data = append(data, []string{
			l.StartedAt.Local().Format(time.DateTime), l.Trigger, l.Status,
			fmt.Sprint(l.RowsRead), fmt.Sprint(l.RowsSkipped), l.Error,
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithWriter(cmd.OutOrStdout()).WithData(data).Render()
}

func runNodeHistory(cmd *cobra.Command, args []string, a *app.App) error {
	h, err := a.Readers.History(args[0])
	if err != nil {
		return err
	}
	if len(h.Entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No saved versions.")
		return nil
	}
	data := pterm.TableData{{"", "Saved", "Change", "ID"}}
	for _, e := range h.Entries {
		mark := ""
		if e.ID == h.CurrentID {
			mark = "*"
		}
		data = append(data, []string{mark, e.CreatedAt.Local().Format(time.DateTime), e.Label, e.ID})
	}
	return pterm.DefaultTable.WithHasHeader().WithWriter(cmd.OutOrStdout()).WithData(data).Render()
}
