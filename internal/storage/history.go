package storage

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"tablereader/internal/domain"
	"tablereader/internal/errors"
)

// MaxHistoryEntries bounds the spec config history kept per node.
const MaxHistoryEntries = 40

// HistoryStore keeps the spec config versions of reader nodes in SQLite.
type HistoryStore struct {
	db *DB
}

func NewHistoryStore(db *DB) *HistoryStore {
	return &HistoryStore{db: db}
}

// Load returns the history tree of a node, or nil if it has none.
func (s *HistoryStore) Load(nodeID string) (*domain.SpecHistory, error) {
	rows, err := s.db.conn.Query(
		`SELECT id, node_id, parent_id, label, spec_config, created_at
		 FROM spec_history WHERE node_id = ? ORDER BY seq ASC`, nodeID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "load spec history")
	}
	defer rows.Close()

	var entries []domain.SpecHistoryEntry
	var rootID string
	for rows.Next() {
		var e domain.SpecHistoryEntry
		var cfg string
		if err := rows.Scan(&e.ID, &e.NodeID, &e.ParentID, &e.Label, &cfg, &e.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan spec history entry")
		}
		e.SpecConfig = json.RawMessage(cfg)
		if e.ParentID == nil {
			rootID = e.ID
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}

	var currentID string
	err = s.db.conn.QueryRow(
		`SELECT current_id FROM spec_history_state WHERE node_id = ?`, nodeID,
	).Scan(&currentID)
	if err != nil {
		currentID = entries[len(entries)-1].ID
	}
	return &domain.SpecHistory{Entries: entries, CurrentID: currentID, RootID: rootID}, nil
}

// Push stores specConfig as a child of the current entry and makes it
// current.
func (s *HistoryStore) Push(nodeID, label string, specConfig json.RawMessage) (*domain.SpecHistoryEntry, error) {
	var parent *string
	var currentID string
	err := s.db.conn.QueryRow(`SELECT current_id FROM spec_history_state WHERE node_id = ?`, nodeID).Scan(&currentID)
	switch {
	case err == nil:
		parent = &currentID
	case !errors.Is(err, sql.ErrNoRows):
		return nil, errors.Wrap(err, "read spec history state")
	}

	e := &domain.SpecHistoryEntry{
		ID:         uuid.New().String(),
		NodeID:     nodeID,
		ParentID:   parent,
		Label:      label,
		SpecConfig: specConfig,
		CreatedAt:  time.Now(),
	}
	if _, err := s.db.conn.Exec(
		`INSERT INTO spec_history (id, node_id, parent_id, label, spec_config, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.NodeID, e.ParentID, e.Label, string(specConfig), e.CreatedAt,
	); err != nil {
		return nil, errors.Wrap(err, "insert spec history entry")
	}
	if err := s.GoTo(nodeID, e.ID); err != nil {
		return nil, err
	}

	s.pruneIfNeeded(nodeID, MaxHistoryEntries)
	return e, nil
}

// GoTo moves the current position pointer.
func (s *HistoryStore) GoTo(nodeID, entryID string) error {
	_, err := s.db.conn.Exec(
		`INSERT INTO spec_history_state (node_id, current_id) VALUES (?, ?)
		 ON CONFLICT(node_id) DO UPDATE SET current_id = excluded.current_id`,
		nodeID, entryID,
	)
	return errors.Wrap(err, "update spec history state")
}

// Clear removes the whole history of a node.
func (s *HistoryStore) Clear(nodeID string) error {
	_, _ = s.db.conn.Exec(`DELETE FROM spec_history_state WHERE node_id = ?`, nodeID)
	_, err := s.db.conn.Exec(`DELETE FROM spec_history WHERE node_id = ?`, nodeID)
	return errors.Wrap(err, "clear spec history")
}

// pruneIfNeeded removes the oldest entries above maxEntries, relinking
// their children to their parent. The current entry is never removed.
func (s *HistoryStore) pruneIfNeeded(nodeID string, maxEntries int) {
	var count int
	s.db.conn.QueryRow(`SELECT COUNT(*) FROM spec_history WHERE node_id = ?`, nodeID).Scan(&count)
	if count <= maxEntries {
		return
	}

	var currentID string
	s.db.conn.QueryRow(`SELECT current_id FROM spec_history_state WHERE node_id = ?`, nodeID).Scan(&currentID)

	// collect first: the single connection cannot serve writes while rows are open
	rows, err := s.db.conn.Query(
		`SELECT id FROM spec_history WHERE node_id = ? ORDER BY seq ASC LIMIT ?`,
		nodeID, count-maxEntries,
	)
	if err != nil {
		return
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err == nil && id != currentID {
			ids = append(ids, id)
		}
	}
	rows.Close()

	for _, id := range ids {
		var parentID sql.NullString
		s.db.conn.QueryRow(`SELECT parent_id FROM spec_history WHERE id = ?`, id).Scan(&parentID)
		s.db.conn.Exec(`UPDATE spec_history SET parent_id = ? WHERE parent_id = ?`, parentID, id)
		s.db.conn.Exec(`DELETE FROM spec_history WHERE id = ?`, id)
	}
}
