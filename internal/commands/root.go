// Package commands holds the tablereader cobra commands.
package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"tablereader/internal/app"
	"tablereader/internal/errors"
)

var (
	configPath string
	verbosity  int
)

// RootCmd is the tablereader entry point.
var RootCmd = &cobra.Command{
	Use:   "tablereader",
	Short: "Read many tables as one",
	Long: `tablereader - read CSV, JSON and database sources as one table.

Column specs of every source are merged (union, intersection or
fail-on-difference), types are resolved to the most specific common type,
and column edits (rename, retype, reorder, keep) survive new or changed
sources.

Examples:
  tablereader spec a.csv b.csv            # Show the merged columns
  tablereader preview a.csv b.csv         # Show the first rows
  tablereader read -o all.csv a.csv b.csv # Write the merged table
  tablereader node create sales --item 'data/*.csv' -o out/sales.csv
  tablereader node run sales
  tablereader serve                       # Run scheduled and watched nodes
  tablereader mcp                         # Serve MCP tools on stdio`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	RootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: ~/.config/tablereader/config.toml, ./tablereader.toml)")
	RootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase log verbosity (-v info, -vv debug)")

	RootCmd.AddCommand(SpecCmd)
	RootCmd.AddCommand(ReadCmd)
	RootCmd.AddCommand(PreviewCmd)
	RootCmd.AddCommand(NodeCmd)
	RootCmd.AddCommand(ConnCmd)
	RootCmd.AddCommand(VarsCmd)
	RootCmd.AddCommand(MCPCmd)
	RootCmd.AddCommand(ServeCmd)
	RootCmd.AddCommand(ConfigCmd)
}

// Execute runs the root command and prints errors with their hints.
func Execute() int {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := RootCmd.ExecuteContext(ctx); err != nil {
		printError(os.Stderr, err)
		return 1
	}
	return 0
}

func printError(w io.Writer, err error) {
	fmt.Fprintf(w, "Error: %v\n", err)
	if hint := errors.FlattenHints(err); hint != "" {
		fmt.Fprintf(w, "Hint: %s\n", hint)
	}
}

// openApp loads the configuration and builds the application context.
// -v overrides the configured log level.
func openApp() (*app.App, error) {
	return app.Open(configPath, logLevel())
}

func logLevel() string {
	switch {
	case verbosity >= 2:
		return "debug"
	case verbosity == 1:
		return "info"
	default:
		return ""
	}
}

// withApp runs fn with an open App and closes it afterwards.
func withApp(fn func(cmd *cobra.Command, args []string, a *app.App) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(cmd, args, a)
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
