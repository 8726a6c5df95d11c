package commands

import (
	"encoding/json"
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"tablereader/internal/config"
	"tablereader/internal/errors"
)

// ConfigCmd groups the configuration commands.
var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage tablereader configuration",
	Long: `Configuration sources (in order of precedence):
1. Environment variables (TABLEREADER_* prefix, e.g. TABLEREADER_READER_SPEC_LIMIT)
2. --config file, or the project file ./tablereader.toml (searched upwards)
3. User config (~/.config/tablereader/config.toml)
4. Default values`,
}

var (
	configShowFormat string
	configInitForce  bool
)

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a config file with the default values",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConfigInit,
}

func init() {
	configShowCmd.Flags().StringVar(&configShowFormat, "format", "toml", "Output format: toml, json, yaml")
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "Overwrite an existing file")
	ConfigCmd.AddCommand(configShowCmd, configInitCmd)
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	switch configShowFormat {
	case "json":
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return errors.Wrap(err, "failed to marshal config to JSON")
		}
		fmt.Fprintln(w, string(data))
	case "yaml":
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return errors.Wrap(err, "failed to marshal config to YAML")
		}
		fmt.Fprintf(w, "# tablereader configuration\n%s", data)
	case "toml":
		data, err := config.Encode(cfg)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "# tablereader configuration\n%s", data)
	default:
		return errors.Configurationf("unsupported format: %s (supported: toml, json, yaml)", configShowFormat)
	}
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := config.UserConfigPath()
	if len(args) == 1 {
		path = args[0]
	}
	if err := config.WriteDefault(path, configInitForce); err != nil {
		return err
	}
	pterm.Success.WithWriter(cmd.OutOrStdout()).Printfln("Wrote %s", path)
	return nil
}
