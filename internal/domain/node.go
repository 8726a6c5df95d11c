package domain

import (
	"encoding/json"
	"time"
)

// TriggerType says what starts a reader node run besides a manual request.
type TriggerType string

const (
	TriggerManual    TriggerType = "manual"
	TriggerSchedule  TriggerType = "schedule"
	TriggerFileWatch TriggerType = "file_watch"
)

// Run statuses.
const (
	RunStatusRunning = "running"
	RunStatusSuccess = "success"
	RunStatusError   = "error"
)

// ReaderNode is a configured multi-source table read.
//
// ReaderConfig holds the JSON of the read settings. SpecConfig holds the
// JSON settings tree of the table spec config saved by the last successful
// configure, and is empty before that. Variables holds the JSON settings
// tree of the node's flow variables.
type ReaderNode struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	SourceType    string          `json:"sourceType"`
	Items         []string        `json:"items"`
	ReaderConfig  json.RawMessage `json:"readerConfig"`
	Variables     json.RawMessage `json:"variables,omitempty"`
	SpecConfig    json.RawMessage `json:"specConfig,omitempty"`
	TriggerType   TriggerType     `json:"triggerType"`
	TriggerConfig string          `json:"triggerConfig"` // cron expression for schedule
	OutputPath    string          `json:"outputPath"`    // where runs write rows, empty to discard
	Enabled       bool            `json:"enabled"`
	LastRunAt     *time.Time      `json:"lastRunAt,omitempty"`
	LastStatus    string          `json:"lastStatus"`
	LastError     string          `json:"lastError"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// ReadRunLog records one execution of a reader node.
type ReadRunLog struct {
	ID          string     `json:"id"`
	NodeID      string     `json:"nodeId"`
	Trigger     string     `json:"trigger"`
	StartedAt   time.Time  `json:"startedAt"`
	FinishedAt  *time.Time `json:"finishedAt,omitempty"`
	Status      string     `json:"status"`
	RowsRead    int64      `json:"rowsRead"`
	RowsSkipped int64      `json:"rowsSkipped"`
	Error       string     `json:"error"`
}

// ReaderNodeStore persists reader nodes and their run logs.
type ReaderNodeStore interface {
	CreateNode(n *ReaderNode) error
	GetNode(id string) (*ReaderNode, error)
	ListNodes() ([]ReaderNode, error)
	ListTriggeredNodes() ([]ReaderNode, error)
	UpdateNode(n *ReaderNode) error
	UpdateSpecConfig(id string, specConfig json.RawMessage) error
	UpdateNodeStatus(id, status, errMsg string) error
	DeleteNode(id string) error

	CreateRunLog(l *ReadRunLog) error
	ListRunLogs(nodeID string, limit int) ([]ReadRunLog, error)
}

// SpecHistoryEntry is one saved version of a node's table spec config.
// Entries form a tree: undoing moves to the parent, and saving after an
// undo starts a new branch.
type SpecHistoryEntry struct {
	ID         string          `json:"id"`
	NodeID     string          `json:"nodeId"`
	ParentID   *string         `json:"parentId"`
	Label      string          `json:"label"`
	SpecConfig json.RawMessage `json:"specConfig"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// SpecHistory is the history tree of one node.
type SpecHistory struct {
	Entries   []SpecHistoryEntry `json:"entries"`
	CurrentID string             `json:"currentId"`
	RootID    string             `json:"rootId"`
}

// SpecHistoryStore persists spec config versions.
type SpecHistoryStore interface {
	Push(nodeID, label string, specConfig json.RawMessage) (*SpecHistoryEntry, error)
	Load(nodeID string) (*SpecHistory, error)
	GoTo(nodeID, entryID string) error
	Clear(nodeID string) error
}
