package storage

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tablereader/internal/domain"
)

func newHistoryFixture(t *testing.T) (*HistoryStore, *NodeStore, string) {
	t.Helper()
	db := newTestDB(t)
	nodes := NewNodeStore(db)
	n := &domain.ReaderNode{Name: "n", SourceType: "csv", Items: []string{"a.csv"}, TriggerType: domain.TriggerManual}
	require.NoError(t, nodes.CreateNode(n))
	return NewHistoryStore(db), nodes, n.ID
}

func TestHistory_PushBuildsChain(t *testing.T) {
	h, _, nodeID := newHistoryFixture(t)

	empty, err := h.Load(nodeID)
	require.NoError(t, err)
	assert.Nil(t, empty)

	a, err := h.Push(nodeID, "configure", json.RawMessage(`{"v":1}`))
	require.NoError(t, err)
	assert.Nil(t, a.ParentID)
	b, err := h.Push(nodeID, "rename id", json.RawMessage(`{"v":2}`))
	require.NoError(t, err)
	require.NotNil(t, b.ParentID)
	assert.Equal(t, a.ID, *b.ParentID)

	tree, err := h.Load(nodeID)
	require.NoError(t, err)
	require.Len(t, tree.Entries, 2)
	assert.Equal(t, a.ID, tree.RootID)
	assert.Equal(t, b.ID, tree.CurrentID)
	assert.JSONEq(t, `{"v":2}`, string(tree.Entries[1].SpecConfig))

	// saving after going back starts a branch under the current entry
	require.NoError(t, h.GoTo(nodeID, a.ID))
	c, err := h.Push(nodeID, "retype id", json.RawMessage(`{"v":3}`))
	require.NoError(t, err)
	assert.Equal(t, a.ID, *c.ParentID)
}

func TestHistory_Prune(t *testing.T) {
	h, _, nodeID := newHistoryFixture(t)
	for i := 0; i < MaxHistoryEntries+5; i++ {
		_, err := h.Push(nodeID, "configure", json.RawMessage(fmt.Sprintf(`{"v":%d}`, i)))
		require.NoError(t, err)
	}
	tree, err := h.Load(nodeID)
	require.NoError(t, err)
	assert.Len(t, tree.Entries, MaxHistoryEntries)
	assert.Nil(t, tree.Entries[0].ParentID, "oldest kept entry becomes the root")
	assert.Equal(t, tree.Entries[len(tree.Entries)-1].ID, tree.CurrentID)
}

func TestHistory_ClearedWithNode(t *testing.T) {
	h, nodes, nodeID := newHistoryFixture(t)
	_, err := h.Push(nodeID, "configure", json.RawMessage(`{}`))
	require.NoError(t, err)

	require.NoError(t, nodes.DeleteNode(nodeID))
	tree, err := h.Load(nodeID)
	require.NoError(t, err)
	assert.Nil(t, tree)
}
