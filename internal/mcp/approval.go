package mcpserver

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"

	"tablereader/internal/errors"
)

// Approval events.
const (
	EventApprovalRequired  = "mcp:approval-required"
	EventApprovalDismissed = "mcp:approval-dismissed"
)

// EventEmitter allows the approval queue to notify whoever approves.
type EventEmitter interface {
	Emit(ctx context.Context, event string, data any)
}

// PendingAction represents a destructive operation awaiting user approval.
type PendingAction struct {
	ID          string `json:"id"`
	Tool        string `json:"tool"`
	Description string `json:"description"`
	CreatedAt   string `json:"createdAt"`
	Metadata    string `json:"metadata"` // JSON with extra context (e.g. node IDs)
}

// ApprovalQueue manages human-in-the-loop approval for destructive MCP tool calls.
// It supports two modes:
//   - In-process: uses channels, resolved through Approve/Reject
//   - DB-based (stdio server): writes to mcp_approvals, resolved by
//     `tablereader mcp approve|reject` from another process
type ApprovalQueue struct {
	mu      sync.Mutex
	pending map[string]chan bool
	ctx     context.Context
	emitter EventEmitter
	timeout time.Duration
	poll    time.Duration
	db      *sql.DB
}

func NewApprovalQueue(ctx context.Context, emitter EventEmitter) *ApprovalQueue {
	return &ApprovalQueue{
		pending: make(map[string]chan bool),
		ctx:     ctx,
		emitter: emitter,
		timeout: 120 * time.Second,
		poll:    500 * time.Millisecond,
	}
}

// SetDB enables DB-based approval mode.
func (q *ApprovalQueue) SetDB(db *sql.DB) {
	q.db = db
}

// SetTimeout sets how long a request waits before it is rejected.
func (q *ApprovalQueue) SetTimeout(d time.Duration) {
	q.timeout = d
}

// Request sends an approval request and blocks until approved/rejected.
// metadata is optional JSON with extra context.
func (q *ApprovalQueue) Request(tool, description string, metadata ...string) (bool, error) {
	id := uuid.New().String()
	meta := "{}"
	if len(metadata) > 0 && metadata[0] != "" {
		meta = metadata[0]
	}

	action := PendingAction{
		ID:          id,
		Tool:        tool,
		Description: description,
		CreatedAt:   time.Now().UTC().Format(time.RFC3339),
		Metadata:    meta,
	}
	if q.db != nil {
		return q.requestViaDB(action)
	}
	return q.requestViaChannel(action)
}

// requestViaDB writes a pending approval to SQLite and polls until resolved.
func (q *ApprovalQueue) requestViaDB(a PendingAction) (bool, error) {
	_, err := q.db.Exec(
		`INSERT INTO mcp_approvals (id, tool, description, status, metadata) VALUES (?, ?, ?, 'pending', ?)`,
		a.ID, a.Tool, a.Description, a.Metadata,
	)
	if err != nil {
		return false, errors.Wrap(err, "insert approval")
	}
	q.emitter.Emit(q.ctx, EventApprovalRequired, a)
	defer q.db.Exec(`DELETE FROM mcp_approvals WHERE id = ?`, a.ID)

	deadline := time.Now().Add(q.timeout)
	ticker := time.NewTicker(q.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if time.Now().After(deadline) {
				return false, errors.Newf("action timed out after %s: %s", q.timeout, a.Tool)
			}
			var status string
			if err := q.db.QueryRow(`SELECT status FROM mcp_approvals WHERE id = ?`, a.ID).Scan(&status); err != nil {
				continue
			}
			switch status {
			case "approved":
				return true, nil
			case "rejected":
				return false, errors.Newf("action rejected by user: %s", a.Tool)
			}
		case <-q.ctx.Done():
			return false, errors.Canceled(q.ctx.Err())
		}
	}
}

// requestViaChannel waits for Approve or Reject in this process.
func (q *ApprovalQueue) requestViaChannel(a PendingAction) (bool, error) {
	ch := make(chan bool, 1)

	q.mu.Lock()
	q.pending[a.ID] = ch
	q.mu.Unlock()
	defer q.cleanup(a.ID)

	q.emitter.Emit(q.ctx, EventApprovalRequired, a)

	select {
	case approved := <-ch:
		if !approved {
			return false, errors.Newf("action rejected by user: %s", a.Tool)
		}
		return true, nil
	case <-time.After(q.timeout):
		q.emitter.Emit(q.ctx, EventApprovalDismissed, map[string]string{"id": a.ID})
		return false, errors.Newf("action timed out after %s: %s", q.timeout, a.Tool)
	case <-q.ctx.Done():
		return false, errors.Canceled(q.ctx.Err())
	}
}

// Approve marks a pending action as approved (in-process mode).
func (q *ApprovalQueue) Approve(actionID string) {
	q.resolve(actionID, true)
}

// Reject marks a pending action as rejected (in-process mode).
func (q *ApprovalQueue) Reject(actionID string) {
	q.resolve(actionID, false)
}

func (q *ApprovalQueue) resolve(actionID string, approved bool) {
	q.mu.Lock()
	ch, ok := q.pending[actionID]
	q.mu.Unlock()
	if ok {
		select {
		case ch <- approved:
		default:
		}
	}
}

func (q *ApprovalQueue) cleanup(id string) {
	q.mu.Lock()
	delete(q.pending, id)
	q.mu.Unlock()
}

// ── DB mode, other side ───────────────────────────────────

// ListPendingApprovals returns the actions a stdio server is waiting on.
func ListPendingApprovals(db *sql.DB) ([]PendingAction, error) {
	rows, err := db.Query(
		`SELECT id, tool, description, metadata, created_at FROM mcp_approvals
		 WHERE status = 'pending' ORDER BY created_at`)
	if err != nil {
		return nil, errors.Wrap(err, "list approvals")
	}
	defer rows.Close()

	var out []PendingAction
	for rows.Next() {
		var (
			a       PendingAction
			created time.Time
		)
		if err := rows.Scan(&a.ID, &a.Tool, &a.Description, &a.Metadata, &created); err != nil {
			return nil, errors.Wrap(err, "scan approval")
		}
		a.CreatedAt = created.UTC().Format(time.RFC3339)
		out = append(out, a)
	}
	return out, rows.Err()
}

// ResolveApproval approves or rejects a pending action.
func ResolveApproval(db *sql.DB, id string, approved bool) error {
	status := "rejected"
	if approved {
		status = "approved"
	}
	res, err := db.Exec(`UPDATE mcp_approvals SET status = ? WHERE id = ? AND status = 'pending'`, status, id)
	if err != nil {
		return errors.Wrap(err, "resolve approval")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NotFoundf("no pending approval %s", id)
	}
	return nil
}
