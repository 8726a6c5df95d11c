package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tablereader/internal/service"
)

func init() {
	pterm.DisableStyling()
}

// resetFlags puts every flag of cmd and its children back to its default so
// that consecutive executions of RootCmd do not leak state.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if f.Changed {
			if sv, ok := f.Value.(pflag.SliceValue); ok {
				_ = sv.Replace(nil)
			} else {
				_ = f.Value.Set(f.DefValue)
			}
			f.Changed = false
		}
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

type cli struct {
	t      *testing.T
	config string
	dir    string
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	dir := t.TempDir()
	cfg := filepath.Join(dir, "config.toml")
	body := "[database]\npath = " + `"` + filepath.ToSlash(filepath.Join(dir, "tr.db")) + `"` + "\n[log]\nlevel = \"error\"\n"
	require.NoError(t, os.WriteFile(cfg, []byte(body), 0o644))
	return &cli{t: t, config: cfg, dir: dir}
}

func (c *cli) file(name, content string) string {
	c.t.Helper()
	p := filepath.Join(c.dir, name)
	require.NoError(c.t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func (c *cli) run(args ...string) (string, error) {
	c.t.Helper()
	resetFlags(RootCmd)
	var out bytes.Buffer
	RootCmd.SetOut(&out)
	RootCmd.SetErr(&out)
	RootCmd.SetIn(bytes.NewReader(nil))
	RootCmd.SetArgs(append([]string{"--config", c.config}, args...))
	err := RootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (c *cli) mustRun(args ...string) string {
	c.t.Helper()
	out, err := c.run(args...)
	require.NoError(c.t, err, out)
	return out
}

func TestSourceTypeFor(t *testing.T) {
	assert.Equal(t, "json", sourceTypeFor([]string{"a.JSON"}))
	assert.Equal(t, "csv", sourceTypeFor([]string{"a.tsv"}))
	assert.Equal(t, "csv", sourceTypeFor(nil))
	assert.Equal(t, "http", sourceTypeFor([]string{"https://api.example.com/rows"}))
}

func TestExpandItems(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"a.csv", "b.csv", "c.json"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), nil, 0o644))
	}
	items, err := expandItems([]string{filepath.Join(dir, "*.csv"), "SELECT 1"})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.csv"), filepath.Join(dir, "b.csv"), "SELECT 1"}, items)

	_, err = expandItems([]string{filepath.Join(dir, "*.xlsx")})
	require.Error(t, err)
}

func TestSpecCommand(t *testing.T) {
	c := newCLI(t)
	a := c.file("a.csv", "id,name\n1,ann\n")
	b := c.file("b.csv", "id,score\n2.5,7\n")

	out := c.mustRun("spec", "--json", a, b)
	var spec service.NodeSpec
	require.NoError(t, json.Unmarshal([]byte(out), &spec))
	assert.Equal(t, []string{"id:double", "name:string", "score:int"}, spec.Union)
	assert.Equal(t, []string{"id:double"}, spec.Intersection)

	out = c.mustRun("spec", "--mode", "intersection", a, b)
	assert.Contains(t, out, "INTERSECTION")

	_, err := c.run("spec", "--fail-on-differing", a, b)
	require.Error(t, err)
}

func TestReadCommand(t *testing.T) {
	c := newCLI(t)
	a := c.file("a.csv", "id,name\n1,ann\n")
	b := c.file("b.csv", "name,id\nbob,2\n")

	out := c.mustRun("read", a, b)
	assert.Equal(t, "row_key,id,name\nRow0,1,ann\nRow1,2,bob\n", out)

	dest := filepath.Join(c.dir, "out.jsonl")
	c.mustRun("read", "-o", dest, a, b)
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t,
		`{"row_key":"Row0","id":1,"name":"ann"}`+"\n"+`{"row_key":"Row1","id":2,"name":"bob"}`+"\n",
		string(data))
}

func TestPreviewCommand(t *testing.T) {
	c := newCLI(t)
	a := c.file("a.csv", "id,name\n1,ann\n2,bob\n3,cy\n")

	out := c.mustRun("preview", "-n", "2", a)
	assert.Contains(t, out, "ann")
	assert.Contains(t, out, "bob")
	assert.NotContains(t, out, "cy")
	assert.Contains(t, out, "2 rows")
}

func TestNodeLifecycle(t *testing.T) {
	c := newCLI(t)
	c.file("a.csv", "id,name\n1,ann\n")
	c.file("b.csv", "id,name\n2,bob\n")

	out := c.mustRun("node", "create", "people", "-i", filepath.Join(c.dir, "*.csv"))
	assert.Contains(t, out, "Created node people")

	_, err := c.run("node", "edit", "people", "id", "--rename", "ID")
	require.Error(t, err, "editing before configure must fail")

	c.mustRun("node", "configure", "people")
	c.mustRun("node", "edit", "people", "id", "--rename", "person_id", "--type", "StringCell")
	c.mustRun("node", "edit", "people", "name", "--position", "0")

	out = c.mustRun("node", "history", "people")
	assert.Contains(t, out, "configure")
	assert.Contains(t, out, "edit name")

	out = c.mustRun("node", "undo", "people")
	assert.Contains(t, out, "person_id")
	c.mustRun("node", "redo", "people")
	_, err = c.run("node", "redo", "people")
	require.Error(t, err, "nothing left to redo")

	out = c.mustRun("node", "run", "people", "--stdout")
	assert.Equal(t, "row_key,name,person_id\nRow0,ann,1\nRow1,bob,2\n", out)

	out = c.mustRun("node", "list")
	assert.Contains(t, out, "people")
	assert.Contains(t, out, "success")

	out = c.mustRun("node", "show", "people", "--yaml")
	assert.Contains(t, out, "person_id")

	out = c.mustRun("node", "logs", "people")
	assert.Contains(t, out, "success")

	c.mustRun("node", "delete", "people")
	_, err = c.run("node", "show", "people")
	require.Error(t, err)
}

func TestVarsCommands(t *testing.T) {
	c := newCLI(t)
	c.file("a.csv", "id\n1\n")
	c.mustRun("node", "create", "n", "-i", filepath.Join(c.dir, "a.csv"))

	c.mustRun("vars", "set", "n", "spec_limit", "5", "--type", "int")
	c.mustRun("vars", "set", "n", "owner", "ops")
	out := c.mustRun("vars", "list", "n")
	assert.Contains(t, out, "spec_limit")
	assert.Contains(t, out, "owner")

	_, err := c.run("vars", "set", "n", "x", "abc", "--type", "int")
	require.Error(t, err)

	c.mustRun("vars", "unset", "n", "owner")
	out = c.mustRun("vars", "list", "n")
	assert.NotContains(t, out, "owner")
}

func TestConfigCommands(t *testing.T) {
	c := newCLI(t)
	out := c.mustRun("config", "show", "--format", "json")
	assert.Contains(t, out, `"spec_limit": 1000`)
	assert.Contains(t, out, `"level": "error"`)

	dest := filepath.Join(c.dir, "init", "tablereader.toml")
	c.mustRun("config", "init", dest)
	_, err := c.run("config", "init", dest)
	require.Error(t, err)
	c.mustRun("config", "init", "--force", dest)
}

func TestConnCommands(t *testing.T) {
	c := newCLI(t)
	dbPath := filepath.Join(c.dir, "people.db")

	c.mustRun("conn", "add", "local", "--driver", "sqlite", "--host", dbPath)
	out := c.mustRun("conn", "list")
	assert.Contains(t, out, "local")

	_, err := c.run("conn", "add", "bad", "--driver", "oracle", "--host", "x")
	require.Error(t, err)

	c.mustRun("conn", "delete", "local")
	out = c.mustRun("conn", "list")
	assert.Contains(t, out, "No connections.")
}

func TestMCPApprovalsEmpty(t *testing.T) {
	c := newCLI(t)
	out := c.mustRun("mcp", "approvals")
	assert.Contains(t, out, "Nothing is waiting")

	_, err := c.run("mcp", "approve", "missing")
	require.Error(t, err)
}
