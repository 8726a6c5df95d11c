package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"tablereader/internal/app"
	"tablereader/internal/errors"
	"tablereader/internal/read"
	"tablereader/internal/service"
	"tablereader/internal/table"
)

// readFlags are the settings of an ad-hoc read over files given as args.
type readFlags struct {
	sourceType       string
	mode             string
	specLimit        int
	skipEmpty        bool
	failOnDiffering  bool
	ignoreBadContent bool
	options          map[string]string
}

func (f *readFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.sourceType, "type", "t", "", "Source type: csv, json, database (default: from the first item's extension)")
	cmd.Flags().StringVarP(&f.mode, "mode", "m", "", "Spec merge mode: union, intersection, fail_on_differing_specs")
	cmd.Flags().IntVar(&f.specLimit, "spec-limit", -1, "Rows sampled per source for type inference, 0 for all")
	cmd.Flags().BoolVar(&f.skipEmpty, "skip-empty", false, "Drop columns without any value in the sampled rows")
	cmd.Flags().BoolVar(&f.failOnDiffering, "fail-on-differing", false, "Fail when sources have different columns")
	cmd.Flags().BoolVar(&f.ignoreBadContent, "skip-bad-rows", false, "Skip rows whose values do not convert instead of failing")
	cmd.Flags().StringToStringVarP(&f.options, "option", "O", nil, "Reader option key=value, e.g. -O delimiter=';' -O connection=warehouse")
}

// config layers the flags over defaults.
func (f *readFlags) config(cmd *cobra.Command, defaults read.Config) (read.Config, error) {
	cfg := defaults
	if f.mode != "" {
		m, err := table.ParseSpecMergeMode(f.mode)
		if err != nil {
			return cfg, err
		}
		cfg.SpecMergeMode = m
	}
	if cmd.Flags().Changed("spec-limit") {
		if f.specLimit < 0 {
			return cfg, errors.Configurationf("--spec-limit must be >= 0, got %d", f.specLimit)
		}
		cfg.SpecLimit = f.specLimit
	}
	if f.skipEmpty {
		cfg.SkipEmptyColumns = true
	}
	if f.failOnDiffering {
		cfg.FailOnDifferingSpecs = true
	}
	if f.ignoreBadContent {
		cfg.FailOnContentErrors = false
	}
	cfg.Options = make(map[string]string, len(f.options))
	for k, v := range f.options {
		cfg.Options[k] = v
	}
	return cfg, nil
}

// typeFor returns the explicit source type or guesses it from items.
func (f *readFlags) typeFor(items []string) string {
	if f.sourceType != "" {
		return strings.ToLower(f.sourceType)
	}
	return sourceTypeFor(items)
}

func sourceTypeFor(items []string) string {
	if len(items) == 0 {
		return "csv"
	}
	if u := strings.ToLower(items[0]); strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
		return "http"
	}
	switch strings.ToLower(filepath.Ext(items[0])) {
	case ".json", ".jsonl", ".ndjson":
		return "json"
	default:
		return "csv"
	}
}

// ── spec ───────────────────────────────────────────────────

var (
	specFlags readFlags
	specJSON  bool
)

// SpecCmd prints the merged spec of a set of files.
var SpecCmd = &cobra.Command{
	Use:   "spec <items...>",
	Short: "Show the merged columns of several sources",
	Long: `Read the column spec of every item and show the union, the
intersection and the default output columns.`,
	Args: cobra.MinimumNArgs(1),
	RunE: withApp(runSpec),
}

func init() {
	specFlags.register(SpecCmd)
	SpecCmd.Flags().BoolVar(&specJSON, "json", false, "Print JSON")
}

func runSpec(cmd *cobra.Command, args []string, a *app.App) error {
	cfg, err := specFlags.config(cmd, a.Defaults)
	if err != nil {
		return err
	}
	spec, err := a.Readers.DiscoverSpec(cmd.Context(), specFlags.typeFor(args), args, cfg)
	if err != nil {
		return err
	}
	if specJSON {
		return printJSON(cmd.OutOrStdout(), spec)
	}
	return renderSpec(cmd.OutOrStdout(), spec)
}

func renderSpec(w io.Writer, spec *service.NodeSpec) error {
	fmt.Fprintf(w, "Filter mode:  %s\n", spec.FilterMode)
	fmt.Fprintf(w, "Union:        %s\n", strings.Join(spec.Union, ", "))
	fmt.Fprintf(w, "Intersection: %s\n", strings.Join(spec.Intersection, ", "))
	for _, s := range spec.Sources {
		fmt.Fprintf(w, "  %s: %s\n", s.Item, strings.Join(s.Columns, ", "))
	}
	fmt.Fprintln(w)

	data := pterm.TableData{{"#", "Column", "Output name", "External", "Type", "Keep", "In all"}}
	for _, c := range spec.Columns {
		ext := c.ExternalType
		if !c.HasType {
			ext = "?"
		}
		data = append(data, []string{
			fmt.Sprint(c.Position), c.OriginalName, c.Name, ext, c.Destination,
			yesNo(c.Keep), yesNo(c.InAllSources),
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithWriter(w).WithData(data).Render()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// ── preview ────────────────────────────────────────────────

var (
	previewFlags readFlags
	previewLimit int
)

// PreviewCmd renders the first rows of the merged table.
var PreviewCmd = &cobra.Command{
	Use:   "preview <items...>",
	Short: "Show the first rows of several sources read as one table",
	Args:  cobra.MinimumNArgs(1),
	RunE:  withApp(runPreview),
}

func init() {
	previewFlags.register(PreviewCmd)
	PreviewCmd.Flags().IntVarP(&previewLimit, "limit", "n", service.DefaultPreviewRows, "Rows to show")
}

func runPreview(cmd *cobra.Command, args []string, a *app.App) error {
	cfg, err := previewFlags.config(cmd, a.Defaults)
	if err != nil {
		return err
	}
	res, err := a.Readers.PreviewItems(cmd.Context(), previewFlags.typeFor(args), args, cfg, previewLimit)
	if err != nil {
		return err
	}
	return renderPreview(cmd.OutOrStdout(), res)
}

func renderPreview(w io.Writer, res *service.PreviewResult) error {
	header := []string{service.RowKeyColumn}
	for _, c := range res.Columns {
		header = append(header, c.Name)
	}
	data := pterm.TableData{header}
	for _, row := range res.Rows {
		line := []string{row.Key}
		for _, v := range row.Values {
			line = append(line, service.FormatValue(v))
		}
		data = append(data, line)
	}
	if err := pterm.DefaultTable.WithHasHeader().WithWriter(w).WithData(data).Render(); err != nil {
		return err
	}
	fmt.Fprintf(w, "%d rows\n", len(res.Rows))
	return nil
}

// ── read ───────────────────────────────────────────────────

var (
	readCmdFlags readFlags
	readOutput   string
	readFormat   string
)

// ReadCmd reads every item and writes the merged table.
var ReadCmd = &cobra.Command{
	Use:   "read <items...>",
	Short: "Read several sources as one table and write it as CSV or JSON lines",
	Args:  cobra.MinimumNArgs(1),
	RunE:  withApp(runRead),
}

func init() {
	readCmdFlags.register(ReadCmd)
	ReadCmd.Flags().StringVarP(&readOutput, "output", "o", "", "Output file (default: stdout)")
	ReadCmd.Flags().StringVarP(&readFormat, "format", "f", "", "Output format: csv, jsonl (default: from the output extension)")
}

func runRead(cmd *cobra.Command, args []string, a *app.App) error {
	cfg, err := readCmdFlags.config(cmd, a.Defaults)
	if err != nil {
		return err
	}
	format := service.FormatCSV
	if readOutput != "" {
		format = service.FormatFor(readOutput)
	}
	if readFormat != "" {
		if format, err = service.ParseFormat(readFormat); err != nil {
			return err
		}
	}

	mtr, err := a.Readers.OpenItems(cmd.Context(), readCmdFlags.typeFor(args), args, cfg, nil)
	if err != nil {
		return err
	}

	var w io.Writer = cmd.OutOrStdout()
	if readOutput != "" {
		f, err := os.Create(readOutput)
		if err != nil {
			return errors.Wrap(err, "create output file")
		}
		defer f.Close()
		w = f
	}
	rw, err := service.NewRowWriter(w, format, mtr.OutputSpec())
	if err != nil {
		return err
	}
	stats, err := mtr.FillRowOutput(cmd.Context(), rw, progressMonitor(cmd))
	if cerr := rw.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	if readOutput != "" {
		pterm.Success.WithWriter(cmd.ErrOrStderr()).Printfln("Wrote %d rows to %s", stats.Rows, readOutput)
	}
	if stats.SkippedRows > 0 {
		pterm.Warning.WithWriter(cmd.ErrOrStderr()).Printfln("Skipped %d rows with unconvertible values", stats.SkippedRows)
	}
	return nil
}

// progressMonitor logs progress at -v and above.
func progressMonitor(cmd *cobra.Command) read.ProgressMonitor {
	if verbosity == 0 {
		return nil
	}
	last := -1
	return read.ProgressFunc(func(fraction float64, message string) {
		pct := int(fraction * 100)
		if pct == last {
			return
		}
		last = pct
		fmt.Fprintf(cmd.ErrOrStderr(), "%3d%% %s\n", pct, message)
	})
}
