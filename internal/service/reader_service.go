package service

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"tablereader/internal/convert"
	"tablereader/internal/domain"
	"tablereader/internal/errors"
	"tablereader/internal/flowvar"
	"tablereader/internal/logger"
	"tablereader/internal/read"
	"tablereader/internal/settings"
	"tablereader/internal/sources"
	"tablereader/internal/table"
	"tablereader/internal/transform"
)

// DefaultRunTimeout bounds a single node execution.
const DefaultRunTimeout = 30 * time.Minute

// ─────────────────────────────────────────────────────────────
// Reader Service: configures, previews and runs reader nodes
// ─────────────────────────────────────────────────────────────

// ReaderService manages reader nodes, their table spec configs, scheduling
// and file watching. Listeners are reached through the EventEmitter.
type ReaderService struct {
	store     domain.ReaderNodeStore
	history   domain.SpecHistoryStore
	sources   *sources.Registry
	hierarchy table.TypeHierarchy
	paths     *convert.Registry
	defaults  read.Config
	emitter   EventEmitter
	running   runGuard
	log       *zap.SugaredLogger

	RunTimeout time.Duration

	// watcher / cron lifecycle
	watchMu     sync.Mutex
	watchCancel context.CancelFunc
	watcher     *fsnotify.Watcher
	cronSched   *cron.Cron
}

// NewReaderService creates a ReaderService. defaults are the read settings
// nodes start from before their own config and flow variables apply.
func NewReaderService(
	store domain.ReaderNodeStore,
	srcs *sources.Registry,
	defaults read.Config,
	emitter EventEmitter,
) *ReaderService {
	if emitter == nil {
		emitter = NewLogEmitter()
	}
	return &ReaderService{
		store:      store,
		sources:    srcs,
		hierarchy:  table.DefaultHierarchy(),
		paths:      convert.Default(),
		defaults:   defaults,
		emitter:    emitter,
		log:        logger.ComponentLogger("service.reader"),
		RunTimeout: DefaultRunTimeout,
	}
}

// SetHistory enables the spec config history used by Undo and Redo.
func (s *ReaderService) SetHistory(h domain.SpecHistoryStore) { s.history = h }

// Paths returns the production paths available to node transformations.
func (s *ReaderService) Paths() *convert.Registry { return s.paths }

// ListSources describes the registered source types.
func (s *ReaderService) ListSources() []sources.Spec {
	return s.sources.List()
}

// ── Node CRUD ──────────────────────────────────────────────

type CreateNodeInput struct {
	Name          string          `json:"name"`
	SourceType    string          `json:"sourceType"`
	Items         []string        `json:"items"`
	ReaderConfig  json.RawMessage `json:"readerConfig,omitempty"`
	TriggerType   string          `json:"triggerType"`
	TriggerConfig string          `json:"triggerConfig"`
	OutputPath    string          `json:"outputPath"`
	Enabled       bool            `json:"enabled"`
}

func (s *ReaderService) validate(input CreateNodeInput) (domain.TriggerType, error) {
	if strings.TrimSpace(input.Name) == "" {
		return "", errors.Configurationf("node name must not be empty")
	}
	if _, err := s.sources.Get(input.SourceType); err != nil {
		return "", err
	}
	if len(input.Items) == 0 {
		return "", errors.WithHint(errors.Configurationf("node %q has no items to read", input.Name),
			"add at least one file path or query")
	}
	if len(input.ReaderConfig) > 0 {
		cfg := s.defaults
		if err := json.Unmarshal(input.ReaderConfig, &cfg); err != nil {
			return "", errors.AsConfiguration(errors.Wrap(err, "parse reader config"))
		}
	}
	trigger, err := ParseTriggerType(input.TriggerType)
	if err != nil {
		return "", err
	}
	if trigger == domain.TriggerSchedule {
		if _, err := cron.ParseStandard(input.TriggerConfig); err != nil {
			return "", errors.WithHint(
				errors.AsConfiguration(errors.Wrapf(err, "invalid cron expression %q", input.TriggerConfig)),
				"use the five field form, e.g. \"*/15 * * * *\"")
		}
	}
	return trigger, nil
}

// ParseTriggerType parses a trigger name. Empty means manual.
func ParseTriggerType(s string) (domain.TriggerType, error) {
	switch t := domain.TriggerType(strings.ToLower(strings.TrimSpace(s))); t {
	case "":
		return domain.TriggerManual, nil
	case domain.TriggerManual, domain.TriggerSchedule, domain.TriggerFileWatch:
		return t, nil
	default:
		return "", errors.Configurationf("unknown trigger type %q", s)
	}
}

func (s *ReaderService) CreateNode(ctx context.Context, input CreateNodeInput) (*domain.ReaderNode, error) {
	trigger, err := s.validate(input)
	if err != nil {
		return nil, err
	}
	n := &domain.ReaderNode{
		Name:          input.Name,
		SourceType:    input.SourceType,
		Items:         input.Items,
		ReaderConfig:  input.ReaderConfig,
		TriggerType:   trigger,
		TriggerConfig: input.TriggerConfig,
		OutputPath:    input.OutputPath,
		Enabled:       input.Enabled,
	}
	if err := s.store.CreateNode(n); err != nil {
		return nil, errors.Wrap(err, "create reader node")
	}
	s.log.Infow("Reader node created", logger.FieldNodeID, n.ID, logger.FieldSourceType, n.SourceType,
		logger.FieldCount, len(n.Items))
	if trigger != domain.TriggerManual {
		s.RestartWatchers(ctx)
	}
	return n, nil
}

// GetNode accepts a node id or name.
func (s *ReaderService) GetNode(idOrName string) (*domain.ReaderNode, error) {
	return s.store.GetNode(idOrName)
}

func (s *ReaderService) ListNodes() ([]domain.ReaderNode, error) {
	return s.store.ListNodes()
}

// UpdateNode replaces the definition of a node. Its table spec config is
// kept and reconciled with the new sources on the next configure.
func (s *ReaderService) UpdateNode(ctx context.Context, idOrName string, input CreateNodeInput) (*domain.ReaderNode, error) {
	n, err := s.store.GetNode(idOrName)
	if err != nil {
		return nil, err
	}
	trigger, err := s.validate(input)
	if err != nil {
		return nil, err
	}
	n.Name = input.Name
	n.SourceType = input.SourceType
	n.Items = input.Items
	n.ReaderConfig = input.ReaderConfig
	n.TriggerType = trigger
	n.TriggerConfig = input.TriggerConfig
	n.OutputPath = input.OutputPath
	n.Enabled = input.Enabled
	if err := s.store.UpdateNode(n); err != nil {
		return nil, err
	}
	s.RestartWatchers(ctx)
	return n, nil
}

func (s *ReaderService) DeleteNode(ctx context.Context, idOrName string) error {
	n, err := s.store.GetNode(idOrName)
	if err != nil {
		return err
	}
	if err := s.store.DeleteNode(n.ID); err != nil {
		return err
	}
	if n.TriggerType != domain.TriggerManual {
		s.RestartWatchers(ctx)
	}
	return nil
}

// ListRunLogs returns the most recent runs of a node, newest first.
func (s *ReaderService) ListRunLogs(idOrName string, limit int) ([]domain.ReadRunLog, error) {
	n, err := s.store.GetNode(idOrName)
	if err != nil {
		return nil, err
	}
	return s.store.ListRunLogs(n.ID, limit)
}

// ── Settings ───────────────────────────────────────────────

func group(n *domain.ReaderNode) read.SourceGroup {
	return read.SourceGroup{ID: n.ID, Items: n.Items}
}

// nodeConfig layers the node's reader config and then its flow variables
// over the service defaults.
func (s *ReaderService) nodeConfig(n *domain.ReaderNode) (read.Config, error) {
	cfg := s.defaults
	cfg.Options = nil
	if len(n.ReaderConfig) > 0 {
		if err := json.Unmarshal(n.ReaderConfig, &cfg); err != nil {
			return read.Config{}, errors.AsConfiguration(errors.Wrapf(err, "parse reader config of node %s", n.Name))
		}
	}
	vars, err := loadVariables(n)
	if err != nil {
		return read.Config{}, err
	}
	return vars.ApplyOverrides(cfg)
}

// specConfig decodes the stored table spec config, or returns nil if the
// node was never configured. A config that no longer loads is dropped with
// a warning so the node can be configured from scratch.
func (s *ReaderService) specConfig(n *domain.ReaderNode) *read.TableSpecConfig {
	if len(n.SpecConfig) == 0 {
		return nil
	}
	tree := settings.New()
	if err := json.Unmarshal(n.SpecConfig, tree); err != nil {
		s.log.Warnw("Stored table spec config is not valid JSON", logger.FieldNodeID, n.ID, logger.FieldError, err)
		return nil
	}
	cfg, err := read.LoadTableSpecConfig(tree, s.hierarchy, s.paths)
	if err != nil {
		s.log.Warnw("Dropping stored table spec config", logger.FieldNodeID, n.ID, logger.FieldError, err)
		return nil
	}
	return cfg
}

// saveSpecConfig stores c when it differs from the node's current config
// and records the new version in the history under label.
func (s *ReaderService) saveSpecConfig(n *domain.ReaderNode, c *read.TableSpecConfig, label string) error {
	tree := settings.New()
	c.Save(tree)
	data, err := json.Marshal(tree)
	if err != nil {
		return errors.Wrap(err, "encode table spec config")
	}
	if bytes.Equal(data, n.SpecConfig) {
		return nil
	}
	if err := s.store.UpdateSpecConfig(n.ID, data); err != nil {
		return errors.Wrap(err, "save table spec config")
	}
	n.SpecConfig = data
	if s.history != nil {
		if _, err := s.history.Push(n.ID, label, data); err != nil {
			s.log.Warnw("Failed to record spec config history", logger.FieldNodeID, n.ID, logger.FieldError, err)
		}
	}
	return nil
}

// ── Configure ──────────────────────────────────────────────

// open builds the read of a node, reusing or reconciling its stored config.
func (s *ReaderService) open(ctx context.Context, n *domain.ReaderNode, monitor read.ProgressMonitor) (*read.MultiTableRead, error) {
	src, err := s.sources.Get(n.SourceType)
	if err != nil {
		return nil, err
	}
	cfg, err := s.nodeConfig(n)
	if err != nil {
		return nil, err
	}
	g := group(n)
	staged, err := read.NewMultiTableReadFactory(src, s.hierarchy, s.paths).
		Create(ctx, g, cfg, s.specConfig(n), monitor)
	if err != nil {
		return nil, err
	}
	return staged.WithoutTransformation(g)
}

// Configure reads the specs of a node's items, reconciles the stored
// transformation with them and saves the result.
func (s *ReaderService) Configure(ctx context.Context, idOrName string, monitor read.ProgressMonitor) (*NodeSpec, error) {
	n, err := s.store.GetNode(idOrName)
	if err != nil {
		return nil, err
	}
	if !s.running.TryLock(n.ID) {
		return nil, errBusy(n)
	}
	defer s.running.Unlock(n.ID)

	ctx = logger.WithNodeID(ctx, n.ID)
	mtr, err := s.open(ctx, n, monitor)
	if err != nil {
		return nil, err
	}
	if err := s.saveSpecConfig(n, mtr.TableSpecConfig(), "configure"); err != nil {
		return nil, err
	}
	view, err := newNodeSpec(n.ID, mtr.TableSpecConfig())
	if err != nil {
		return nil, err
	}
	s.emitter.Emit(ctx, EventConfigured, map[string]any{"nodeId": n.ID, "columns": len(view.Output)})
	return view, nil
}

// Spec returns the stored configuration of a node.
func (s *ReaderService) Spec(idOrName string) (*NodeSpec, error) {
	n, err := s.store.GetNode(idOrName)
	if err != nil {
		return nil, err
	}
	c := s.specConfig(n)
	if c == nil {
		return nil, errNotConfigured(n)
	}
	return newNodeSpec(n.ID, c)
}

// EditTransformation applies edit to the stored transformation of a
// configured node and saves the result.
func (s *ReaderService) EditTransformation(
	ctx context.Context,
	idOrName, label string,
	edit func(tt *transform.TableTransformation) (*transform.TableTransformation, error),
) (*NodeSpec, error) {
	n, err := s.store.GetNode(idOrName)
	if err != nil {
		return nil, err
	}
	if !s.running.TryLock(n.ID) {
		return nil, errBusy(n)
	}
	defer s.running.Unlock(n.ID)

	c := s.specConfig(n)
	if c == nil {
		return nil, errNotConfigured(n)
	}
	tt, err := edit(c.Transformation())
	if err != nil {
		return nil, err
	}
	edited, err := c.WithTransformation(tt)
	if err != nil {
		return nil, err
	}
	view, err := newNodeSpec(n.ID, edited)
	if err != nil {
		return nil, err
	}
	if err := s.saveSpecConfig(n, edited, label); err != nil {
		return nil, err
	}
	s.emitter.Emit(ctx, EventConfigured, map[string]any{"nodeId": n.ID, "columns": len(view.Output)})
	return view, nil
}

// RenameColumn sets the output name of a raw column.
func (s *ReaderService) RenameColumn(ctx context.Context, idOrName, column, name string) (*NodeSpec, error) {
	return s.EditTransformation(ctx, idOrName, "rename "+column, func(tt *transform.TableTransformation) (*transform.TableTransformation, error) {
		return tt.Rename(column, name)
	})
}

// RetypeColumn switches a raw column to the production path ending in dest.
func (s *ReaderService) RetypeColumn(ctx context.Context, idOrName, column string, dest transform.DataType) (*NodeSpec, error) {
	return s.EditTransformation(ctx, idOrName, "retype "+column, func(tt *transform.TableTransformation) (*transform.TableTransformation, error) {
		return tt.Retype(s.paths, column, dest)
	})
}

// KeepColumn includes or excludes a raw column from the output.
func (s *ReaderService) KeepColumn(ctx context.Context, idOrName, column string, keep bool) (*NodeSpec, error) {
	return s.EditTransformation(ctx, idOrName, "keep "+column, func(tt *transform.TableTransformation) (*transform.TableTransformation, error) {
		return tt.SetKeep(column, keep)
	})
}

// MoveColumn moves a raw column to pos in the output order.
func (s *ReaderService) MoveColumn(ctx context.Context, idOrName, column string, pos int) (*NodeSpec, error) {
	return s.EditTransformation(ctx, idOrName, "move "+column, func(tt *transform.TableTransformation) (*transform.TableTransformation, error) {
		return tt.Move(column, pos)
	})
}

// ── Preview ────────────────────────────────────────────────

// DefaultPreviewRows is used when a preview asks for no limit.
const DefaultPreviewRows = 20

// PreviewResult holds the first rows of a read.
type PreviewResult struct {
	Columns []OutputColumnInfo `json:"columns"`
	Rows    []read.OutputRow   `json:"rows"`
}

// Preview reads up to limit rows of a node without saving anything.
func (s *ReaderService) Preview(ctx context.Context, idOrName string, limit int) (*PreviewResult, error) {
	n, err := s.store.GetNode(idOrName)
	if err != nil {
		return nil, err
	}
	mtr, err := s.open(logger.WithNodeID(ctx, n.ID), n, nil)
	if err != nil {
		return nil, err
	}
	return preview(ctx, mtr, limit)
}

func preview(ctx context.Context, mtr *read.MultiTableRead, limit int) (*PreviewResult, error) {
	if limit <= 0 {
		limit = DefaultPreviewRows
	}
	it := mtr.CreatePreviewIterator(ctx)
	defer it.Close()

	res := &PreviewResult{Columns: outputColumnInfos(mtr.OutputSpec())}
	for len(res.Rows) < limit {
		row, err := it.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		res.Rows = append(res.Rows, row)
	}
	return res, nil
}

// ── Ad-hoc reads ───────────────────────────────────────────

// OpenItems builds a read over items without a stored node. The source
// group is identified by the items themselves.
func (s *ReaderService) OpenItems(ctx context.Context, sourceType string, items []string, cfg read.Config, monitor read.ProgressMonitor) (*read.MultiTableRead, error) {
	src, err := s.sources.Get(sourceType)
	if err != nil {
		return nil, err
	}
	g := read.SourceGroup{ID: "adhoc:" + strings.Join(items, "|"), Items: items}
	staged, err := read.NewMultiTableReadFactory(src, s.hierarchy, s.paths).Create(ctx, g, cfg, nil, monitor)
	if err != nil {
		return nil, err
	}
	return staged.WithoutTransformation(g)
}

// DiscoverSpec reads the specs of items and returns the merged columns and
// the default transformation.
func (s *ReaderService) DiscoverSpec(ctx context.Context, sourceType string, items []string, cfg read.Config) (*NodeSpec, error) {
	mtr, err := s.OpenItems(ctx, sourceType, items, cfg, nil)
	if err != nil {
		return nil, err
	}
	return newNodeSpec("", mtr.TableSpecConfig())
}

// PreviewItems reads up to limit rows of items.
func (s *ReaderService) PreviewItems(ctx context.Context, sourceType string, items []string, cfg read.Config, limit int) (*PreviewResult, error) {
	mtr, err := s.OpenItems(ctx, sourceType, items, cfg, nil)
	if err != nil {
		return nil, err
	}
	return preview(ctx, mtr, limit)
}

// ── Execute ────────────────────────────────────────────────

// RunResult summarises one execution.
type RunResult struct {
	RunID       string             `json:"runId"`
	NodeID      string             `json:"nodeId"`
	Status      string             `json:"status"`
	Rows        int64              `json:"rows"`
	SkippedRows int64              `json:"skippedRows"`
	Sources     int                `json:"sources"`
	OutputPath  string             `json:"outputPath,omitempty"`
	Columns     []OutputColumnInfo `json:"columns"`
	DurationMS  int64              `json:"durationMs"`
}

// Execute runs a node. Rows go to out, or to the node's output file when
// out is nil, or nowhere when the node has no output file. A run log is
// written whatever the outcome.
func (s *ReaderService) Execute(ctx context.Context, idOrName string, trigger domain.TriggerType, out read.RowOutput) (*RunResult, error) {
	return s.execute(ctx, idOrName, trigger, runTarget{out: out})
}

// ExecuteTo runs a node and writes its rows, header included, to w.
func (s *ReaderService) ExecuteTo(ctx context.Context, idOrName string, trigger domain.TriggerType, w io.Writer, format Format) (*RunResult, error) {
	return s.execute(ctx, idOrName, trigger, runTarget{w: w, format: format})
}

// runTarget says where the rows of a run go.
type runTarget struct {
	out    read.RowOutput
	w      io.Writer
	format Format
}

func (s *ReaderService) execute(ctx context.Context, idOrName string, trigger domain.TriggerType, target runTarget) (*RunResult, error) {
	n, err := s.store.GetNode(idOrName)
	if err != nil {
		return nil, err
	}
	// Prevent concurrent execution of the same node.
	if !s.running.TryLock(n.ID) {
		return nil, errBusy(n)
	}
	defer s.running.Unlock(n.ID)

	res := &RunResult{RunID: uuid.New().String(), NodeID: n.ID}
	ctx = logger.WithRunID(logger.WithNodeID(ctx, n.ID), res.RunID)
	log := logger.FromContext(ctx, s.log)

	if err := s.store.UpdateNodeStatus(n.ID, domain.RunStatusRunning, ""); err != nil {
		log.Warnw("Failed to mark node running", logger.FieldError, err)
	}
	s.emitter.Emit(ctx, EventRunStarted, map[string]string{"nodeId": n.ID, "runId": res.RunID})

	runCtx, cancel := context.WithTimeout(ctx, s.RunTimeout)
	defer cancel()

	start := time.Now()
	stats, runErr := s.run(runCtx, n, target, res)
	finished := time.Now()

	res.Status = domain.RunStatusSuccess
	res.Rows = stats.Rows
	res.SkippedRows = stats.SkippedRows
	res.Sources = stats.Sources
	res.DurationMS = finished.Sub(start).Milliseconds()

	runLog := &domain.ReadRunLog{
		ID:          res.RunID,
		NodeID:      n.ID,
		Trigger:     string(trigger),
		StartedAt:   start,
		FinishedAt:  &finished,
		Status:      domain.RunStatusSuccess,
		RowsRead:    stats.Rows,
		RowsSkipped: stats.SkippedRows,
	}
	errMsg := ""
	if runErr != nil {
		res.Status = domain.RunStatusError
		runLog.Status = domain.RunStatusError
		errMsg = runErr.Error()
		runLog.Error = errMsg
	}
	if err := s.store.CreateRunLog(runLog); err != nil {
		log.Warnw("Failed to write run log", logger.FieldError, err)
	}
	if err := s.store.UpdateNodeStatus(n.ID, res.Status, errMsg); err != nil {
		log.Warnw("Failed to update node status", logger.FieldError, err)
	}

	if runErr != nil {
		log.Warnw("Reader node run failed", logger.FieldTrigger, trigger, logger.FieldError, runErr)
		s.emitter.Emit(ctx, EventRunFailed, map[string]string{"nodeId": n.ID, "runId": res.RunID, "error": errMsg})
		return res, runErr
	}
	log.Infow("Reader node run completed",
		logger.FieldTrigger, trigger,
		logger.FieldCount, stats.Rows,
		"skipped", stats.SkippedRows,
		logger.FieldDurationMS, res.DurationMS,
	)
	s.emitter.Emit(ctx, EventRunCompleted, res)
	return res, nil
}

func (s *ReaderService) run(ctx context.Context, n *domain.ReaderNode, target runTarget, res *RunResult) (read.Stats, error) {
	mtr, err := s.open(ctx, n, nil)
	if err != nil {
		return read.Stats{}, err
	}
	if err := s.saveSpecConfig(n, mtr.TableSpecConfig(), "run"); err != nil {
		return read.Stats{}, err
	}
	columns := mtr.OutputSpec()
	res.Columns = outputColumnInfos(columns)

	if target.out != nil {
		return mtr.FillRowOutput(ctx, target.out, nil)
	}
	if target.w != nil {
		rw, err := NewRowWriter(target.w, target.format, columns)
		if err != nil {
			return read.Stats{}, err
		}
		stats, err := mtr.FillRowOutput(ctx, rw, nil)
		if cerr := rw.Close(); err == nil && cerr != nil {
			err = errors.Wrap(cerr, "flush output")
		}
		return stats, err
	}
	if n.OutputPath == "" {
		return mtr.FillRowOutput(ctx, read.RowOutputFunc(func(read.OutputRow) error { return nil }), nil)
	}

	res.OutputPath = n.OutputPath
	return writeFile(n.OutputPath, columns, func(w *RowWriter) (read.Stats, error) {
		return mtr.FillRowOutput(ctx, w, nil)
	})
}

// writeFile writes rows to a temporary file next to path and renames it
// into place once fill succeeded.
func writeFile(path string, columns []transform.OutputColumn, fill func(*RowWriter) (read.Stats, error)) (read.Stats, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return read.Stats{}, errors.Wrap(err, "create output directory")
	}
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return read.Stats{}, errors.Wrap(err, "create output file")
	}
	tmp := f.Name()
	defer os.Remove(tmp)

	w, err := NewRowWriter(f, FormatFor(path), columns)
	if err != nil {
		f.Close()
		return read.Stats{}, err
	}
	stats, err := fill(w)
	if err != nil {
		f.Close()
		return stats, err
	}
	if err := w.Close(); err != nil {
		f.Close()
		return stats, errors.Wrap(err, "flush output")
	}
	if err := f.Close(); err != nil {
		return stats, errors.Wrap(err, "close output")
	}
	if err := os.Rename(tmp, path); err != nil {
		return stats, errors.Wrap(err, "move output into place")
	}
	return stats, nil
}

// WaitRunning blocks until all running nodes finish or ctx is cancelled.
// Used for graceful shutdown.
func (s *ReaderService) WaitRunning(ctx context.Context) {
	s.running.WaitAll(ctx)
}

// Running returns the ids of the nodes currently configuring or running.
func (s *ReaderService) Running() []string {
	return s.running.Running()
}

// ── Flow variables ─────────────────────────────────────────

func loadVariables(n *domain.ReaderNode) (*flowvar.Table, error) {
	if len(n.Variables) == 0 {
		return flowvar.NewTable()
	}
	tree := settings.New()
	if err := json.Unmarshal(n.Variables, tree); err != nil {
		return nil, errors.AsConfiguration(errors.Wrapf(err, "parse flow variables of node %s", n.Name))
	}
	return flowvar.Load(tree)
}

// Variables returns the flow variables of a node in order.
func (s *ReaderService) Variables(idOrName string) ([]flowvar.Variable, error) {
	n, err := s.store.GetNode(idOrName)
	if err != nil {
		return nil, err
	}
	vars, err := loadVariables(n)
	if err != nil {
		return nil, err
	}
	return vars.Variables(), nil
}

// SetVariable adds v or replaces the variable of the same name.
func (s *ReaderService) SetVariable(idOrName string, v flowvar.Variable) error {
	return s.editVariables(idOrName, func(t *flowvar.Table) error { return t.Set(v) })
}

// UnsetVariable removes the named variable.
func (s *ReaderService) UnsetVariable(idOrName, name string) error {
	return s.editVariables(idOrName, func(t *flowvar.Table) error { return t.Remove(name) })
}

// MoveVariable moves the named variable to idx.
func (s *ReaderService) MoveVariable(idOrName, name string, idx int) error {
	return s.editVariables(idOrName, func(t *flowvar.Table) error { return t.Move(name, idx) })
}

func (s *ReaderService) editVariables(idOrName string, edit func(*flowvar.Table) error) error {
	n, err := s.store.GetNode(idOrName)
	if err != nil {
		return err
	}
	vars, err := loadVariables(n)
	if err != nil {
		return err
	}
	if err := edit(vars); err != nil {
		return err
	}
	tree := settings.New()
	vars.Save(tree)
	data, err := json.Marshal(tree)
	if err != nil {
		return errors.Wrap(err, "encode flow variables")
	}
	n.Variables = data
	return s.store.UpdateNode(n)
}

// ── Errors ─────────────────────────────────────────────────

func errBusy(n *domain.ReaderNode) error {
	return errors.WithHint(errors.Newf("node %s is already running", n.Name), "wait for the current run to finish")
}

func errNotConfigured(n *domain.ReaderNode) error {
	return errors.WithHintf(errors.Configurationf("node %s has not been configured", n.Name),
		"run `tablereader node configure %s` first", n.Name)
}
