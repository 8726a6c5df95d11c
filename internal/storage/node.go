package storage

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"tablereader/internal/domain"
	"tablereader/internal/errors"
)

// NodeStore implements persistence for reader nodes and their run logs.
type NodeStore struct {
	db *DB
}

// NewNodeStore creates a new NodeStore.
func NewNodeStore(db *DB) *NodeStore {
	return &NodeStore{db: db}
}

// ── ReaderNode CRUD ────────────────────────────────────────

const nodeColumns = `id, name, source_type, items_json, reader_config, variables, spec_config,
	 trigger_type, trigger_config, output_path, enabled, last_run_at, last_status, last_error,
	 created_at, updated_at`

func scanNode(sc interface{ Scan(...any) error }) (*domain.ReaderNode, error) {
	n := &domain.ReaderNode{}
	var items, readerCfg, vars, specCfg string
	if err := sc.Scan(
		&n.ID, &n.Name, &n.SourceType, &items, &readerCfg, &vars, &specCfg,
		&n.TriggerType, &n.TriggerConfig, &n.OutputPath, &n.Enabled,
		&n.LastRunAt, &n.LastStatus, &n.LastError,
		&n.CreatedAt, &n.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(items), &n.Items); err != nil {
		return nil, errors.Wrapf(err, "items of node %s", n.ID)
	}
	n.ReaderConfig = rawOrNil(readerCfg)
	n.Variables = rawOrNil(vars)
	n.SpecConfig = rawOrNil(specCfg)
	return n, nil
}

func rawOrNil(s string) json.RawMessage {
	if s == "" {
		return nil
	}
	return json.RawMessage(s)
}

func rawString(r json.RawMessage, def string) string {
	if len(r) == 0 {
		return def
	}
	return string(r)
}

// CreateNode inserts n with a fresh ID.
func (s *NodeStore) CreateNode(n *domain.ReaderNode) error {
	now := time.Now()
	n.ID = uuid.New().String()
	n.CreatedAt = now
	n.UpdatedAt = now
	if n.TriggerType == "" {
		n.TriggerType = domain.TriggerManual
	}

	items, err := json.Marshal(n.Items)
	if err != nil {
		return errors.Wrap(err, "encode items")
	}
	_, err = s.db.conn.Exec(
		`INSERT INTO reader_nodes (`+nodeColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.Name, n.SourceType, string(items),
		rawString(n.ReaderConfig, "{}"), rawString(n.Variables, ""), rawString(n.SpecConfig, ""),
		n.TriggerType, n.TriggerConfig, n.OutputPath, n.Enabled,
		n.LastRunAt, n.LastStatus, n.LastError,
		n.CreatedAt, n.UpdatedAt,
	)
	return errors.Wrapf(err, "create node %s", n.Name)
}

// GetNode looks a node up by ID or, failing that, by name.
func (s *NodeStore) GetNode(idOrName string) (*domain.ReaderNode, error) {
	n, err := scanNode(s.db.conn.QueryRow(
		`SELECT `+nodeColumns+` FROM reader_nodes WHERE id = ? OR name = ?
		 ORDER BY id = ? DESC LIMIT 1`, idOrName, idOrName, idOrName,
	))
	if err == sql.ErrNoRows {
		return nil, errors.NotFoundf("reader node not found: %s", idOrName)
	}
	if err != nil {
		return nil, errors.Wrap(err, "get node")
	}
	return n, nil
}

// UpdateNode writes the definition of n. Run status is left alone.
func (s *NodeStore) UpdateNode(n *domain.ReaderNode) error {
	n.UpdatedAt = time.Now()
	items, err := json.Marshal(n.Items)
	if err != nil {
		return errors.Wrap(err, "encode items")
	}
	res, err := s.db.conn.Exec(
		`UPDATE reader_nodes SET name=?, source_type=?, items_json=?, reader_config=?, variables=?,
		 spec_config=?, trigger_type=?, trigger_config=?, output_path=?, enabled=?, updated_at=?
		 WHERE id=?`,
		n.Name, n.SourceType, string(items),
		rawString(n.ReaderConfig, "{}"), rawString(n.Variables, ""), rawString(n.SpecConfig, ""),
		n.TriggerType, n.TriggerConfig, n.OutputPath, n.Enabled, n.UpdatedAt,
		n.ID,
	)
	return mustAffect(res, err, "reader node", n.ID)
}

// UpdateSpecConfig stores the table spec config of a configured node.
func (s *NodeStore) UpdateSpecConfig(id string, specConfig json.RawMessage) error {
	res, err := s.db.conn.Exec(
		`UPDATE reader_nodes SET spec_config=?, updated_at=? WHERE id=?`,
		rawString(specConfig, ""), time.Now(), id,
	)
	return mustAffect(res, err, "reader node", id)
}

func (s *NodeStore) UpdateNodeStatus(id, status, errMsg string) error {
	now := time.Now()
	res, err := s.db.conn.Exec(
		`UPDATE reader_nodes SET last_run_at=?, last_status=?, last_error=?, updated_at=? WHERE id=?`,
		now, status, errMsg, now, id,
	)
	return mustAffect(res, err, "reader node", id)
}

// DeleteNode removes a node; its run logs go with it.
func (s *NodeStore) DeleteNode(id string) error {
	res, err := s.db.conn.Exec(`DELETE FROM reader_nodes WHERE id = ?`, id)
	return mustAffect(res, err, "reader node", id)
}

func (s *NodeStore) ListNodes() ([]domain.ReaderNode, error) {
	return s.queryNodes(`SELECT ` + nodeColumns + ` FROM reader_nodes ORDER BY created_at ASC`)
}

// ListTriggeredNodes returns enabled nodes with a schedule or file watch trigger.
func (s *NodeStore) ListTriggeredNodes() ([]domain.ReaderNode, error) {
	return s.queryNodes(`SELECT `+nodeColumns+` FROM reader_nodes
		 WHERE enabled = 1 AND trigger_type IN (?, ?)
		 ORDER BY created_at ASC`, domain.TriggerSchedule, domain.TriggerFileWatch)
}

func (s *NodeStore) queryNodes(query string, args ...any) ([]domain.ReaderNode, error) {
	rows, err := s.db.conn.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list nodes")
	}
	defer rows.Close()

	var nodes []domain.ReaderNode
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, *n)
	}
	return nodes, rows.Err()
}

// ── Run Logs ───────────────────────────────────────────────

// CreateRunLog inserts l, assigning an ID if it has none.
func (s *NodeStore) CreateRunLog(l *domain.ReadRunLog) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	_, err := s.db.conn.Exec(
		`INSERT INTO read_run_logs (id, node_id, trigger_type, started_at, finished_at, status, rows_read, rows_skipped, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.NodeID, l.Trigger, l.StartedAt, l.FinishedAt, l.Status, l.RowsRead, l.RowsSkipped, l.Error,
	)
	return errors.Wrap(err, "create run log")
}

// ListRunLogs returns the latest runs of a node, newest first.
func (s *NodeStore) ListRunLogs(nodeID string, limit int) ([]domain.ReadRunLog, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.conn.Query(
		`SELECT id, node_id, trigger_type, started_at, finished_at, status, rows_read, rows_skipped, error
		 FROM read_run_logs WHERE node_id = ? ORDER BY started_at DESC LIMIT ?`,
		nodeID, limit,
	)
	if err != nil {
		return nil, errors.Wrap(err, "list run logs")
	}
	defer rows.Close()

	var logs []domain.ReadRunLog
	for rows.Next() {
		var l domain.ReadRunLog
		if err := rows.Scan(&l.ID, &l.NodeID, &l.Trigger, &l.StartedAt, &l.FinishedAt, &l.Status, &l.RowsRead, &l.RowsSkipped, &l.Error); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
