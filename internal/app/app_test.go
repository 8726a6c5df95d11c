package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tablereader/internal/config"
	"tablereader/internal/domain"
	"tablereader/internal/secret"
	"tablereader/internal/service"
)

func newTestApp(t *testing.T) (*App, *service.MockEmitter) {
	t.Helper()
	cfg := config.Defaults()
	cfg.Database.Path = filepath.Join(t.TempDir(), "app.db")
	em := &service.MockEmitter{}
	a, err := New(cfg, Options{Secrets: secret.NewEnvStore(), Emitter: em, SkipLogger: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a, em
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := config.Defaults()
	cfg.Reader.SpecMergeMode = "sideways"
	_, err := New(cfg, Options{SkipLogger: true})
	require.Error(t, err)
}

func TestApp_RunsCSVNode(t *testing.T) {
	a, em := newTestApp(t)
	ctx := context.Background()

	dir := t.TempDir()
	in := filepath.Join(dir, "in.csv")
	out := filepath.Join(dir, "out.csv")
	require.NoError(t, os.WriteFile(in, []byte("id,name\n1,ann\n2,bob\n"), 0o644))

	_, err := a.Readers.CreateNode(ctx, service.CreateNodeInput{
		Name:       "people",
		SourceType: "csv",
		Items:      []string{in},
		OutputPath: out,
		Enabled:    true,
	})
	require.NoError(t, err)
	_, err = a.Readers.Configure(ctx, "people", nil)
	require.NoError(t, err)

	res, err := a.Readers.Execute(ctx, "people", domain.TriggerManual, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Rows)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "row_key,id,name\nRow0,1,ann\nRow1,2,bob\n", string(data))
	assert.Contains(t, em.Names(), service.EventRunCompleted)
}

func TestApp_ServeStopsWithContext(t *testing.T) {
	a, _ := newTestApp(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx, time.Second) }()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestApp_MCPServerRegistersTools(t *testing.T) {
	a, _ := newTestApp(t)
	srv := a.NewMCPServer(context.Background())
	require.NotNil(t, srv.MCP())
}
