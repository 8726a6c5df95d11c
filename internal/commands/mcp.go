package commands

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"tablereader/internal/app"
	mcpserver "tablereader/internal/mcp"
)

// MCPCmd serves the MCP tools on stdio.
var MCPCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve MCP tools on stdin/stdout",
	Long: `Run tablereader as an MCP server over stdio. Agents can discover
specs, preview tables and create, configure and run nodes.

With mcp.require_approval set, running a node that writes a file and
deleting a node wait for a human decision:
  tablereader mcp approvals
  tablereader mcp approve <id>`,
	Args: cobra.NoArgs,
	RunE: withApp(runMCP),
}

var mcpApprovalsCmd = &cobra.Command{
	Use:   "approvals",
	Short: "List actions waiting for approval",
	Args:  cobra.NoArgs,
	RunE:  withApp(runMCPApprovals),
}

var mcpApproveCmd = &cobra.Command{
	Use:   "approve <id>",
	Short: "Approve a pending action",
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(resolveApproval(true)),
}

var mcpRejectCmd = &cobra.Command{
	Use:   "reject <id>",
	Short: "Reject a pending action",
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(resolveApproval(false)),
}

func init() {
	MCPCmd.AddCommand(mcpApprovalsCmd, mcpApproveCmd, mcpRejectCmd)
}

func runMCP(cmd *cobra.Command, _ []string, a *app.App) error {
	return a.ServeMCP(cmd.Context())
}

func runMCPApprovals(cmd *cobra.Command, _ []string, a *app.App) error {
	pending, err := mcpserver.ListPendingApprovals(a.DB.Conn())
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "Nothing is waiting for approval.")
		return nil
	}
	data := pterm.TableData{{"ID", "Tool", "Description", "Since"}}
	for _, p := range pending {
		data = append(data, []string{p.ID, p.Tool, p.Description, p.CreatedAt})
	}
	return pterm.DefaultTable.WithHasHeader().WithWriter(cmd.OutOrStdout()).WithData(data).Render()
}

func resolveApproval(approved bool) func(*cobra.Command, []string, *app.App) error {
	return func(cmd *cobra.Command, args []string, a *app.App) error {
		if err := mcpserver.ResolveApproval(a.DB.Conn(), args[0], approved); err != nil {
			return err
		}
		verb := "Rejected"
		if approved {
			verb = "Approved"
		}
		pterm.Success.WithWriter(cmd.OutOrStdout()).Printfln("%s %s", verb, args[0])
		return nil
	}
}
