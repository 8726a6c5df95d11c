package service_test

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"tablereader/internal/domain"
	"tablereader/internal/errors"
	"tablereader/internal/flowvar"
	"tablereader/internal/read"
	"tablereader/internal/service"
	"tablereader/internal/sources"
	"tablereader/internal/storage"
	"tablereader/internal/table"
	"tablereader/internal/transform"
)

// ─────────────────────────────────────────────────────────────
// ReaderService tests
// Runs against a real sqlite store and CSV files in a temp dir.
// ─────────────────────────────────────────────────────────────

type fixture struct {
	svc     *service.ReaderService
	store   *storage.NodeStore
	emitter *service.MockEmitter
	dir     string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	db, err := storage.New(filepath.Join(dir, "reader.db"))
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store := storage.NewNodeStore(db)
	emitter := &service.MockEmitter{}
	svc := service.NewReaderService(store, sources.Default(table.DefaultHierarchy(), nil), read.DefaultConfig(), emitter)
	svc.SetHistory(storage.NewHistoryStore(db))
	t.Cleanup(svc.Stop)
	return &fixture{svc: svc, store: store, emitter: emitter, dir: dir}
}

func (f *fixture) file(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(f.dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func (f *fixture) unionNode(t *testing.T, output string) *domain.ReaderNode {
	t.Helper()
	a := f.file(t, "a.csv", "id,name\n1,ann\n2,bob\n")
	b := f.file(t, "b.csv", "id,score\n3,1.5\n")
	n, err := f.svc.CreateNode(context.Background(), service.CreateNodeInput{
		Name:       "union",
		SourceType: "csv",
		Items:      []string{a, b},
		OutputPath: output,
	})
	if err != nil {
		t.Fatalf("create node: %v", err)
	}
	return n
}

func outputNames(spec *service.NodeSpec) []string {
	names := make([]string, len(spec.Output))
	for i, c := range spec.Output {
		names[i] = c.Name
	}
	return names
}

func TestReaderService_CreateNodeValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []service.CreateNodeInput{
		{Name: "", SourceType: "csv", Items: []string{"a.csv"}},
		{Name: "x", SourceType: "parquet", Items: []string{"a.csv"}},
		{Name: "x", SourceType: "csv"},
		{Name: "x", SourceType: "csv", Items: []string{"a.csv"}, TriggerType: "schedule", TriggerConfig: "every tuesday"},
		{Name: "x", SourceType: "csv", Items: []string{"a.csv"}, TriggerType: "hourly"},
		{Name: "x", SourceType: "csv", Items: []string{"a.csv"}, ReaderConfig: []byte(`{"spec_limit":"many"}`)},
	}
	for i, in := range cases {
		if _, err := f.svc.CreateNode(ctx, in); !errors.IsConfiguration(err) {
			t.Errorf("case %d: expected configuration error, got %v", i, err)
		}
	}

	n, err := f.svc.CreateNode(ctx, service.CreateNodeInput{Name: "ok", SourceType: "csv", Items: []string{"a.csv"}})
	if err != nil {
		t.Fatalf("create node: %v", err)
	}
	if n.TriggerType != domain.TriggerManual {
		t.Errorf("expected manual trigger by default, got %q", n.TriggerType)
	}
}

func TestReaderService_ConfigureAndExecute(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	out := filepath.Join(f.dir, "out", "rows.csv")
	n := f.unionNode(t, out)

	spec, err := f.svc.Configure(ctx, n.ID, nil)
	if err != nil {
		t.Fatalf("configure: %v", err)
	}
	if got, want := outputNames(spec), []string{"id", "name", "score"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("output columns = %v, want %v", got, want)
	}
	if got, want := spec.Intersection, []string{"id:int"}; !reflect.DeepEqual(got, want) {
		t.Errorf("intersection = %v, want %v", got, want)
	}

	res, err := f.svc.Execute(ctx, "union", domain.TriggerManual, nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.Rows != 3 || res.Status != domain.RunStatusSuccess || res.Sources != 2 {
		t.Fatalf("unexpected result %+v", res)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	want := "row_key,id,name,score\nRow0,1,ann,\nRow1,2,bob,\nRow2,3,,1.5\n"
	if string(data) != want {
		t.Errorf("output =\n%s\nwant\n%s", data, want)
	}

	logs, err := f.svc.ListRunLogs(n.ID, 10)
	if err != nil {
		t.Fatalf("list run logs: %v", err)
	}
	if len(logs) != 1 || logs[0].Status != domain.RunStatusSuccess || logs[0].RowsRead != 3 || logs[0].Trigger != "manual" {
		t.Fatalf("unexpected run logs %+v", logs)
	}

	got, err := f.svc.GetNode(n.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.LastStatus != domain.RunStatusSuccess || got.LastRunAt == nil {
		t.Errorf("node status not updated: %+v", got)
	}

	wantEvents := []string{service.EventConfigured, service.EventRunStarted, service.EventRunCompleted}
	if names := f.emitter.Names(); !reflect.DeepEqual(names, wantEvents) {
		t.Errorf("events = %v, want %v", names, wantEvents)
	}
}

func TestReaderService_ExecuteToRowOutput(t *testing.T) {
	f := newFixture(t)
	n := f.unionNode(t, "")

	var rows []read.OutputRow
	res, err := f.svc.Execute(context.Background(), n.ID, domain.TriggerManual, read.RowOutputFunc(func(r read.OutputRow) error {
		rows = append(rows, r)
		return nil
	}))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(rows) != 3 || res.Rows != 3 {
		t.Fatalf("expected 3 rows, got %d (result %d)", len(rows), res.Rows)
	}
	if rows[2].Key != "Row2" || rows[2].Values[0] != int32(3) || rows[2].Values[2] != 1.5 {
		t.Errorf("unexpected last row %+v", rows[2])
	}

	// running without configure stores the spec config
	if _, err := f.svc.Spec(n.ID); err != nil {
		t.Errorf("expected spec config after run: %v", err)
	}
}

func TestReaderService_ExecuteFailureIsLogged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	n, err := f.svc.CreateNode(ctx, service.CreateNodeInput{
		Name:       "missing",
		SourceType: "csv",
		Items:      []string{filepath.Join(f.dir, "nope.csv")},
	})
	if err != nil {
		t.Fatal(err)
	}

	res, err := f.svc.Execute(ctx, n.ID, domain.TriggerSchedule, nil)
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if res.Status != domain.RunStatusError {
		t.Errorf("expected error status, got %q", res.Status)
	}

	logs, _ := f.svc.ListRunLogs(n.ID, 10)
	if len(logs) != 1 || logs[0].Status != domain.RunStatusError || logs[0].Error == "" {
		t.Fatalf("unexpected run logs %+v", logs)
	}
	names := f.emitter.Names()
	if names[len(names)-1] != service.EventRunFailed {
		t.Errorf("expected last event %q, got %v", service.EventRunFailed, names)
	}
}

func TestReaderService_EditsSurviveNewSources(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	n := f.unionNode(t, "")

	if _, err := f.svc.Configure(ctx, n.ID, nil); err != nil {
		t.Fatalf("configure: %v", err)
	}
	if _, err := f.svc.RenameColumn(ctx, n.ID, "id", "ID"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	if _, err := f.svc.KeepColumn(ctx, n.ID, "score", false); err != nil {
		t.Fatalf("keep: %v", err)
	}

	c := f.file(t, "c.csv", "id,city\n4,Oslo\n")
	if _, err := f.svc.UpdateNode(ctx, n.ID, service.CreateNodeInput{
		Name:       n.Name,
		SourceType: "csv",
		Items:      append(n.Items, c),
	}); err != nil {
		t.Fatalf("update node: %v", err)
	}

	spec, err := f.svc.Configure(ctx, n.ID, nil)
	if err != nil {
		t.Fatalf("reconfigure: %v", err)
	}
	if got, want := outputNames(spec), []string{"ID", "name", "city"}; !reflect.DeepEqual(got, want) {
		t.Errorf("output columns = %v, want %v", got, want)
	}
}

func TestReaderService_RetypeAndMove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	n := f.unionNode(t, "")
	if _, err := f.svc.Configure(ctx, n.ID, nil); err != nil {
		t.Fatalf("configure: %v", err)
	}

	spec, err := f.svc.RetypeColumn(ctx, n.ID, "id", transform.DataType("StringCell"))
	if err != nil {
		t.Fatalf("retype: %v", err)
	}
	if spec.Output[0].Type != "StringCell" {
		t.Errorf("id type = %q, want StringCell", spec.Output[0].Type)
	}
	if _, err := f.svc.RetypeColumn(ctx, n.ID, "name", transform.DataType("IntCell")); !errors.IsConfiguration(err) {
		t.Errorf("expected configuration error for a missing path, got %v", err)
	}

	spec, err = f.svc.MoveColumn(ctx, n.ID, "score", 0)
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if got, want := outputNames(spec), []string{"score", "id", "name"}; !reflect.DeepEqual(got, want) {
		t.Errorf("output columns = %v, want %v", got, want)
	}
}

func TestReaderService_EditRequiresConfigure(t *testing.T) {
	f := newFixture(t)
	n := f.unionNode(t, "")

	_, err := f.svc.RenameColumn(context.Background(), n.ID, "id", "ID")
	if !errors.IsConfiguration(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestReaderService_UndoRedo(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	n := f.unionNode(t, "")

	if _, err := f.svc.Undo(ctx, n.ID); !errors.IsConfiguration(err) {
		t.Fatalf("expected configuration error before any config, got %v", err)
	}
	if _, err := f.svc.Configure(ctx, n.ID, nil); err != nil {
		t.Fatalf("configure: %v", err)
	}
	if _, err := f.svc.RenameColumn(ctx, n.ID, "id", "ID"); err != nil {
		t.Fatalf("rename: %v", err)
	}

	h, err := f.svc.History(n.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(h.Entries) != 2 || h.Entries[1].Label != "rename id" {
		t.Fatalf("unexpected history %+v", h.Entries)
	}

	spec, err := f.svc.Undo(ctx, n.ID)
	if err != nil {
		t.Fatalf("undo: %v", err)
	}
	if got, want := outputNames(spec), []string{"id", "name", "score"}; !reflect.DeepEqual(got, want) {
		t.Errorf("after undo = %v, want %v", got, want)
	}
	if _, err := f.svc.Undo(ctx, n.ID); !errors.IsConfiguration(err) {
		t.Errorf("expected nothing left to undo, got %v", err)
	}

	spec, err = f.svc.Redo(ctx, n.ID)
	if err != nil {
		t.Fatalf("redo: %v", err)
	}
	if got, want := outputNames(spec), []string{"ID", "name", "score"}; !reflect.DeepEqual(got, want) {
		t.Errorf("after redo = %v, want %v", got, want)
	}
	stored, err := f.svc.Spec(n.ID)
	if err != nil {
		t.Fatalf("spec: %v", err)
	}
	if got := outputNames(stored); got[0] != "ID" {
		t.Errorf("stored spec not restored: %v", got)
	}
}

func TestReaderService_Preview(t *testing.T) {
	f := newFixture(t)
	n := f.unionNode(t, "")

	res, err := f.svc.Preview(context.Background(), n.ID, 2)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if len(res.Rows) != 2 || len(res.Columns) != 3 {
		t.Fatalf("unexpected preview %+v", res)
	}
	if res.Rows[1].Values[1] != "bob" {
		t.Errorf("unexpected row %+v", res.Rows[1])
	}
}

func TestReaderService_Variables(t *testing.T) {
	f := newFixture(t)
	n := f.unionNode(t, "")

	if err := f.svc.SetVariable(n.ID, flowvar.Variable{Name: "region", Type: flowvar.TypeString, Value: "eu"}); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.SetVariable(n.ID, flowvar.Variable{Name: flowvar.SkipEmptyColumns, Type: flowvar.TypeBoolean, Value: "true"}); err != nil {
		t.Fatal(err)
	}
	vars, err := f.svc.Variables(n.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(vars) != 2 || vars[0].Name != "region" {
		t.Fatalf("unexpected variables %+v", vars)
	}

	if err := f.svc.UnsetVariable(n.ID, "region"); err != nil {
		t.Fatal(err)
	}
	if vars, _ = f.svc.Variables(n.ID); len(vars) != 1 {
		t.Fatalf("expected one variable, got %+v", vars)
	}

	// an override with the wrong type fails the configure
	if err := f.svc.SetVariable(n.ID, flowvar.Variable{Name: flowvar.SpecLimit, Type: flowvar.TypeString, Value: "10"}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Configure(context.Background(), n.ID, nil); !errors.IsConfiguration(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestReaderService_DiscoverSpec(t *testing.T) {
	f := newFixture(t)
	a := f.file(t, "x.csv", "a,b\n1,true\n")
	b := f.file(t, "y.csv", "a\n2.5\n")

	spec, err := f.svc.DiscoverSpec(context.Background(), "csv", []string{a, b}, read.DefaultConfig())
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if got, want := spec.Union, []string{"a:double", "b:boolean"}; !reflect.DeepEqual(got, want) {
		t.Errorf("union = %v, want %v", got, want)
	}
	if len(spec.Sources) != 2 || spec.Sources[1].Columns[0] != "a:double" {
		t.Errorf("unexpected sources %+v", spec.Sources)
	}
}

func TestReaderService_WaitRunningAndStop(t *testing.T) {
	f := newFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f.svc.WaitRunning(ctx)
	f.svc.RestartWatchers(context.Background())
	f.svc.Stop()
	f.svc.Stop()
}

func TestReaderService_FileWatchTriggerRegisters(t *testing.T) {
	f := newFixture(t)
	a := f.file(t, "w.csv", "id\n1\n")
	ctx := context.Background()

	n, err := f.svc.CreateNode(ctx, service.CreateNodeInput{
		Name:        "watched",
		SourceType:  "csv",
		Items:       []string{a},
		TriggerType: "file_watch",
		Enabled:     true,
	})
	if err != nil {
		t.Fatal(err)
	}
	nodes, err := f.store.ListTriggeredNodes()
	if err != nil {
		t.Fatal(err)
	}
	if len(nodes) != 1 || nodes[0].ID != n.ID {
		t.Fatalf("unexpected triggered nodes %+v", nodes)
	}
}

func TestReaderService_ConfigureNoticesChangedColumns(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	n := f.unionNode(t, "")
	if _, err := f.svc.Configure(ctx, n.ID, nil); err != nil {
		t.Fatalf("configure: %v", err)
	}

	f.file(t, "a.csv", "id,city,name\n1,Oslo,ann\n2,Rome,bob\n")
	spec, err := f.svc.Configure(ctx, n.ID, nil)
	if err != nil {
		t.Fatalf("reconfigure: %v", err)
	}
	if got, want := outputNames(spec), []string{"id", "name", "score", "city"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("output columns = %v, want %v", got, want)
	}

	var rows []read.OutputRow
	if _, err := f.svc.Execute(ctx, n.ID, domain.TriggerManual, read.RowOutputFunc(func(r read.OutputRow) error {
		rows = append(rows, r)
		return nil
	})); err != nil {
		t.Fatalf("execute: %v", err)
	}
	want := []any{int32(2), "bob", nil, "Rome"}
	if len(rows) != 3 || !reflect.DeepEqual(rows[1].Values, want) {
		t.Fatalf("rows = %+v, want second row %v", rows, want)
	}
}

func TestReaderService_MergeModeChangeApplies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	n := f.unionNode(t, "")
	if _, err := f.svc.Configure(ctx, n.ID, nil); err != nil {
		t.Fatalf("configure: %v", err)
	}

	if _, err := f.svc.UpdateNode(ctx, n.ID, service.CreateNodeInput{
		Name:         n.Name,
		SourceType:   "csv",
		Items:        n.Items,
		ReaderConfig: []byte(`{"spec_merge_mode":"INTERSECTION"}`),
	}); err != nil {
		t.Fatalf("update node: %v", err)
	}
	spec, err := f.svc.Configure(ctx, n.ID, nil)
	if err != nil {
		t.Fatalf("reconfigure: %v", err)
	}
	if got, want := outputNames(spec), []string{"id"}; !reflect.DeepEqual(got, want) {
		t.Errorf("output columns = %v, want %v", got, want)
	}
}

func TestReaderService_FailOnDifferingAfterConfigure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	n := f.unionNode(t, "")
	if _, err := f.svc.Configure(ctx, n.ID, nil); err != nil {
		t.Fatalf("configure: %v", err)
	}

	if _, err := f.svc.UpdateNode(ctx, n.ID, service.CreateNodeInput{
		Name:         n.Name,
		SourceType:   "csv",
		Items:        n.Items,
		ReaderConfig: []byte(`{"fail_on_differing_specs":true}`),
	}); err != nil {
		t.Fatalf("update node: %v", err)
	}
	if _, err := f.svc.Execute(ctx, n.ID, domain.TriggerManual, read.RowOutputFunc(func(read.OutputRow) error { return nil })); !errors.IsConfiguration(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
