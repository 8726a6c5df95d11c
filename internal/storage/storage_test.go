package storage

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tablereader/internal/domain"
	"tablereader/internal/errors"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "nested", "reader.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMigrateIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reader.db")
	db, err := New(path)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = New(path)
	require.NoError(t, err)
	assert.Equal(t, path, db.Path())
	require.NoError(t, db.Close())
}

func TestConnectionCRUD(t *testing.T) {
	s := NewDBConnectionStore(newTestDB(t))

	c := &domain.DatabaseConnection{Name: "warehouse", Driver: domain.DatabaseDriverPostgres, Host: "db", Port: 5432}
	require.NoError(t, s.CreateConnection(c))
	require.NotEmpty(t, c.ID)

	got, err := s.GetConnection(c.ID)
	require.NoError(t, err)
	assert.Equal(t, "warehouse", got.Name)
	assert.Equal(t, "{}", got.ExtraJSON)

	byName, err := s.GetConnection("warehouse")
	require.NoError(t, err)
	assert.Equal(t, c.ID, byName.ID)

	got.Port = 6543
	require.NoError(t, s.UpdateConnection(got))
	list, err := s.ListConnections()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 6543, list[0].Port)

	require.NoError(t, s.DeleteConnection(c.ID))
	_, err = s.GetConnection(c.ID)
	assert.True(t, errors.IsNotFound(err))
	assert.True(t, errors.IsNotFound(s.DeleteConnection(c.ID)))

	err = s.CreateConnection(&domain.DatabaseConnection{Name: "x", Driver: "oracle"})
	assert.True(t, errors.IsConfiguration(err))
}

func TestNodeCRUD(t *testing.T) {
	s := NewNodeStore(newTestDB(t))

	n := &domain.ReaderNode{
		Name:         "orders",
		SourceType:   "csv",
		Items:        []string{"/data/a.csv", "/data/b.csv"},
		ReaderConfig: json.RawMessage(`{"spec_limit":10}`),
		Enabled:      true,
	}
	require.NoError(t, s.CreateNode(n))

	got, err := s.GetNode("orders")
	require.NoError(t, err)
	assert.Equal(t, n.ID, got.ID)
	assert.Equal(t, n.Items, got.Items)
	assert.Equal(t, domain.TriggerManual, got.TriggerType)
	assert.JSONEq(t, `{"spec_limit":10}`, string(got.ReaderConfig))
	assert.Nil(t, got.SpecConfig)
	assert.Nil(t, got.LastRunAt)

	require.NoError(t, s.UpdateSpecConfig(n.ID, json.RawMessage(`{"items":["a"]}`)))
	require.NoError(t, s.UpdateNodeStatus(n.ID, domain.RunStatusSuccess, ""))
	got, err = s.GetNode(n.ID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"items":["a"]}`, string(got.SpecConfig))
	assert.Equal(t, domain.RunStatusSuccess, got.LastStatus)
	require.NotNil(t, got.LastRunAt)

	got.TriggerType = domain.TriggerSchedule
	got.TriggerConfig = "*/5 * * * *"
	require.NoError(t, s.UpdateNode(got))

	other := &domain.ReaderNode{Name: "manual", SourceType: "json", Items: []string{"x.json"}, Enabled: true}
	require.NoError(t, s.CreateNode(other))

	all, err := s.ListNodes()
	require.NoError(t, err)
	assert.Len(t, all, 2)
	triggered, err := s.ListTriggeredNodes()
	require.NoError(t, err)
	require.Len(t, triggered, 1)
	assert.Equal(t, "orders", triggered[0].Name)

	_, err = s.GetNode("missing")
	assert.True(t, errors.IsNotFound(err))
	assert.True(t, errors.IsNotFound(s.UpdateNodeStatus("missing", "error", "x")))
}

func TestRunLogs(t *testing.T) {
	s := NewNodeStore(newTestDB(t))
	n := &domain.ReaderNode{Name: "n", SourceType: "csv", Items: []string{"a.csv"}}
	require.NoError(t, s.CreateNode(n))

	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		finished := base.Add(time.Duration(i)*time.Hour + time.Minute)
		require.NoError(t, s.CreateRunLog(&domain.ReadRunLog{
			NodeID:     n.ID,
			Trigger:    string(domain.TriggerManual),
			StartedAt:  base.Add(time.Duration(i) * time.Hour),
			FinishedAt: &finished,
			Status:     domain.RunStatusSuccess,
			RowsRead:   int64(10 * i),
		}))
	}

	logs, err := s.ListRunLogs(n.ID, 2)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.EqualValues(t, 20, logs[0].RowsRead, "newest first")
	assert.EqualValues(t, 10, logs[1].RowsRead)

	// logs are removed with their node
	require.NoError(t, s.DeleteNode(n.ID))
	logs, err = s.ListRunLogs(n.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, logs)
}
