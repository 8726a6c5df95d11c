package commands

import (
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"tablereader/internal/app"
)

var serveGrace time.Duration

// ServeCmd runs scheduled and file-watch nodes until interrupted.
var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run scheduled and file-watch nodes until interrupted",
	Long: `Start the cron schedule and the file watchers of every enabled
triggered node. Ctrl+C stops the triggers and waits for running nodes.`,
	Args: cobra.NoArgs,
	RunE: withApp(runServe),
}

func init() {
	ServeCmd.Flags().DurationVar(&serveGrace, "grace", 30*time.Second, "Time running nodes get to finish on shutdown")
}

func runServe(cmd *cobra.Command, _ []string, a *app.App) error {
	nodes, err := a.Nodes.ListTriggeredNodes()
	if err != nil {
		return err
	}
	pterm.Info.WithWriter(cmd.ErrOrStderr()).Printfln("Serving %d triggered nodes (Ctrl+C to stop)", len(nodes))
	if err := a.Serve(cmd.Context(), serveGrace); err != nil {
		return err
	}
	pterm.Success.WithWriter(cmd.ErrOrStderr()).Println("Stopped")
	return nil
}
