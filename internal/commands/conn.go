package commands

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"tablereader/internal/app"
	"tablereader/internal/errors"
	"tablereader/internal/secret"
	"tablereader/internal/service"
)

// ConnCmd groups the database connection commands.
var ConnCmd = &cobra.Command{
	Use:   "conn",
	Short: "Manage database connections used by database sources",
	Long: `Stored connections are referenced by database nodes with the
"connection" option. Passwords go to the secret store, never to the
SQLite file.

Examples:
  tablereader conn add warehouse --driver postgres --host db.local --database sales --user reader --password-stdin
  tablereader conn add local --driver sqlite --host ./people.db
  tablereader read -t database -O connection=local 'SELECT * FROM people'`,
}

var connAdd struct {
	service.CreateDBConnInput
	passwordStdin bool
}

var connIntrospectJSON bool

var connAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Store a connection",
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(runConnAdd),
}

var connListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List connections",
	Args:    cobra.NoArgs,
	RunE:    withApp(runConnList),
}

var connDeleteCmd = &cobra.Command{
	Use:     "delete <connection>",
	Aliases: []string{"rm"},
	Short:   "Delete a connection and its password",
	Args:    cobra.ExactArgs(1),
	RunE:    withApp(runConnDelete),
}

var connTestCmd = &cobra.Command{
	Use:   "test <connection>",
	Short: "Open the connection and ping it",
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(runConnTest),
}

var connIntrospectCmd = &cobra.Command{
	Use:   "tables <connection>",
	Short: "List the tables and columns of a connection",
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(runConnIntrospect),
}

func init() {
	f := connAddCmd.Flags()
	f.StringVar(&connAdd.Driver, "driver", "", "Driver: sqlite, mysql, postgres, mongodb")
	f.StringVar(&connAdd.Host, "host", "", "Host name, or the file path for sqlite")
	f.IntVar(&connAdd.Port, "port", 0, "Port (default: the driver's)")
	f.StringVar(&connAdd.Database, "database", "", "Database name")
	f.StringVar(&connAdd.Username, "user", "", "User name")
	f.StringVar(&connAdd.Password, "password", "", "Password (prefer --password-stdin)")
	f.BoolVar(&connAdd.passwordStdin, "password-stdin", false, "Read the password from stdin")
	f.StringVar(&connAdd.SSLMode, "sslmode", "", "Postgres sslmode")
	f.StringVar(&connAdd.ExtraJSON, "extra", "", "Driver specific options as JSON")
	_ = connAddCmd.MarkFlagRequired("driver")

	connIntrospectCmd.Flags().BoolVar(&connIntrospectJSON, "json", false, "Print JSON")

	ConnCmd.AddCommand(connAddCmd, connListCmd, connDeleteCmd, connTestCmd, connIntrospectCmd)
}

func runConnAdd(cmd *cobra.Command, args []string, a *app.App) error {
	input := connAdd.CreateDBConnInput
	input.Name = args[0]
	if connAdd.passwordStdin {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return errors.Wrap(err, "read password from stdin")
		}
		input.Password = strings.TrimRight(line, "\r\n")
	}
	c, err := a.Connections.CreateConnection(input)
	if err != nil {
		return err
	}
	pterm.Success.WithWriter(cmd.OutOrStdout()).Printfln("Stored connection %s (%s)", c.Name, c.ID)
	if _, ok := a.Secrets.(*secret.EnvStore); ok && input.Password != "" {
		pterm.Warning.WithWriter(cmd.ErrOrStderr()).Printfln(
			"No keychain available: export %s for later runs", secret.EnvName(secret.ConnectionKey(c.ID)))
	}
	return nil
}

func runConnList(cmd *cobra.Command, _ []string, a *app.App) error {
	conns, err := a.Connections.ListConnections()
	if err != nil {
		return err
	}
	if len(conns) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No connections.")
		return nil
	}
	data := pterm.TableData{{"Name", "Driver", "Host", "Port", "Database", "User"}}
	for _, c := range conns {
		port := "-"
		if c.Port != 0 {
			port = fmt.Sprint(c.Port)
		}
		data = append(data, []string{c.Name, string(c.Driver), c.Host, port, c.Database, c.Username})
	}
	return pterm.DefaultTable.WithHasHeader().WithWriter(cmd.OutOrStdout()).WithData(data).Render()
}

func runConnDelete(cmd *cobra.Command, args []string, a *app.App) error {
	if err := a.Connections.DeleteConnection(args[0]); err != nil {
		return err
	}
	pterm.Success.WithWriter(cmd.OutOrStdout()).Printfln("Deleted connection %s", args[0])
	return nil
}

func runConnTest(cmd *cobra.Command, args []string, a *app.App) error {
	if err := a.Connections.TestConnection(cmd.Context(), args[0]); err != nil {
		return err
	}
	pterm.Success.WithWriter(cmd.OutOrStdout()).Printfln("Connection %s is reachable", args[0])
	return nil
}

func runConnIntrospect(cmd *cobra.Command, args []string, a *app.App) error {
	info, err := a.Connections.Introspect(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if connIntrospectJSON {
		return printJSON(cmd.OutOrStdout(), info)
	}
	w := cmd.OutOrStdout()
	for _, t := range info.Tables {
		cols := make([]string, len(t.Columns))
		for i, c := range t.Columns {
			cols[i] = c.Name + ":" + c.Type
		}
		fmt.Fprintf(w, "%s (%s)\n", t.Name, strings.Join(cols, ", "))
	}
	return nil
}

