// Package app wires configuration, storage and services into one explicit
// application context shared by the CLI commands.
package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"tablereader/internal/config"
	"tablereader/internal/errors"
	"tablereader/internal/logger"
	"tablereader/internal/read"
	"tablereader/internal/registry"
	"tablereader/internal/secret"
	"tablereader/internal/service"
	"tablereader/internal/sources"
	"tablereader/internal/storage"
	"tablereader/internal/table"
)

// App owns every long-lived component. Close releases them in reverse
// order of construction.
type App struct {
	Config   *config.Config
	Defaults read.Config

	DB          *storage.DB
	Nodes       *storage.NodeStore
	ConnStore   *storage.DBConnectionStore
	History     *storage.HistoryStore
	Secrets     secret.SecretStore
	Registry    *registry.Registry
	Sources     *sources.Registry
	Emitter     service.EventEmitter
	Connections *service.ConnectionService
	Readers     *service.ReaderService

	log *zap.SugaredLogger
}

// Options tweak New for tests and embedding.
type Options struct {
	// Secrets overrides secret.Default().
	Secrets secret.SecretStore
	// Emitter receives service events in addition to the log emitter.
	Emitter service.EventEmitter
	// SkipLogger leaves the global logger untouched.
	SkipLogger bool
}

// New opens the store at cfg.Database.Path and builds the services.
func New(cfg *config.Config, opts Options) (*App, error) {
	if cfg == nil {
		cfg = config.Defaults()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !opts.SkipLogger {
		if err := logger.Initialize(cfg.Log.JSON, cfg.Log.Level); err != nil {
			return nil, errors.Wrap(err, "failed to initialize logger")
		}
	}
	defaults, err := cfg.ReadConfig()
	if err != nil {
		return nil, err
	}

	db, err := storage.New(cfg.Database.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database %s", cfg.Database.Path)
	}

	a := &App{
		Config:    cfg,
		Defaults:  defaults,
		DB:        db,
		Nodes:     storage.NewNodeStore(db),
		ConnStore: storage.NewDBConnectionStore(db),
		History:   storage.NewHistoryStore(db),
		Secrets:   opts.Secrets,
		log:       logger.ComponentLogger("app"),
	}
	if a.Secrets == nil {
		a.Secrets = secret.Default()
	}

	var emitter service.EventEmitter = service.NewLogEmitter()
	if opts.Emitter != nil {
		emitter = service.MultiEmitter{emitter, opts.Emitter}
	}
	a.Emitter = emitter

	a.Registry = registry.New(a.ConnStore, secret.PasswordLookup(a.Secrets))
	a.Connections = service.NewConnectionService(a.ConnStore, a.Secrets, a.Registry)
	a.Sources = sources.Default(table.DefaultHierarchy(), a.Connections)
	a.Readers = service.NewReaderService(a.Nodes, a.Sources, defaults, emitter)
	a.Readers.SetHistory(a.History)

	a.log.Debugw("Application ready", logger.FieldPath, cfg.Database.Path)
	return a, nil
}

// Open loads the configuration at path (empty for the default search) and
// calls New. A non-empty level replaces the configured log level.
func Open(path, level string) (*App, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if level != "" {
		cfg.Log.Level = level
	}
	return New(cfg, Options{})
}

// Serve starts the schedule and file-watch triggers and blocks until ctx
// is done. Runs still in flight get grace to finish.
func (a *App) Serve(ctx context.Context, grace time.Duration) error {
	a.Readers.RestartWatchers(ctx)
	a.log.Infow("Watching triggered nodes")
	<-ctx.Done()

	a.Readers.Stop()
	waitCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	a.Readers.WaitRunning(waitCtx)
	if running := a.Readers.Running(); len(running) > 0 {
		a.log.Warnw("Shutting down with runs in flight", "nodes", running)
	}
	return nil
}

// Close stops triggers and releases connectors and the database.
func (a *App) Close() error {
	if a.Readers != nil {
		a.Readers.Stop()
	}
	var errs []error
	if a.Connections != nil {
		if err := a.Connections.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	logger.Cleanup()
	return errors.Join(errs...)
}
