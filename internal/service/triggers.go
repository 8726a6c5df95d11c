package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"

	"tablereader/internal/domain"
	"tablereader/internal/logger"
)

// WatchDebounce is how long a watched file must stay quiet before its node
// runs.
const WatchDebounce = 500 * time.Millisecond

// ── Watchers (cron + file_watch) ──────────────────────────

// RestartWatchers tears down the current watcher/cron and rebuilds them from
// the enabled triggered nodes. Runs started by triggers use ctx.
func (s *ReaderService) RestartWatchers(ctx context.Context) {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	s.stopWatchersLocked()

	nodes, err := s.store.ListTriggeredNodes()
	if err != nil {
		s.log.Warnw("Failed to list triggered nodes", logger.FieldError, err)
		return
	}

	// ── Cron nodes ──
	var c *cron.Cron
	scheduled := 0
	for _, n := range nodes {
		if n.TriggerType != domain.TriggerSchedule || n.TriggerConfig == "" {
			continue
		}
		if c == nil {
			c = cron.New()
		}
		nodeID := n.ID
		if _, err := c.AddFunc(n.TriggerConfig, func() {
			s.log.Debugw("Cron firing", logger.FieldNodeID, nodeID)
			// failures are logged and emitted by Execute
			_, _ = s.Execute(ctx, nodeID, domain.TriggerSchedule, nil)
		}); err != nil {
			s.log.Warnw("Invalid cron expression", logger.FieldNodeID, n.ID, "expr", n.TriggerConfig, logger.FieldError, err)
			continue
		}
		scheduled++
	}
	if c != nil {
		c.Start()
		s.cronSched = c
		s.log.Infow("Scheduled reader nodes", logger.FieldCount, scheduled)
	}

	// ── File watchers ──
	pathToNodes := make(map[string][]string)
	for _, n := range nodes {
		if n.TriggerType != domain.TriggerFileWatch {
			continue
		}
		for _, p := range watchPaths(n) {
			abs, err := filepath.Abs(p)
			if err != nil {
				s.log.Warnw("Bad watch path", logger.FieldNodeID, n.ID, logger.FieldPath, p, logger.FieldError, err)
				continue
			}
			pathToNodes[abs] = append(pathToNodes[abs], n.ID)
		}
	}
	if len(pathToNodes) == 0 {
		return
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		s.log.Warnw("Failed to create file watcher", logger.FieldError, err)
		return
	}
	s.watcher = watcher

	watchedDirs := make(map[string]bool)
	for abs := range pathToNodes {
		dir := filepath.Dir(abs)
		if watchedDirs[dir] {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			s.log.Warnw("Failed to watch directory", logger.FieldPath, dir, logger.FieldError, err)
			continue
		}
		watchedDirs[dir] = true
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	s.watchCancel = cancel
	go s.watchLoop(ctx, watchCtx, watcher, pathToNodes)

	s.log.Infow("Watching files", logger.FieldCount, len(pathToNodes))
}

func (s *ReaderService) watchLoop(runCtx, watchCtx context.Context, watcher *fsnotify.Watcher, pathToNodes map[string][]string) {
	timers := make(map[string]*time.Timer)
	defer func() {
		for _, t := range timers {
			t.Stop()
		}
	}()
	for {
		select {
		case <-watchCtx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			abs, _ := filepath.Abs(event.Name)
			for _, nodeID := range pathToNodes[abs] {
				if t, exists := timers[nodeID]; exists {
					t.Stop()
				}
				nid, changed := nodeID, abs
				timers[nodeID] = time.AfterFunc(WatchDebounce, func() {
					if watchCtx.Err() != nil {
						return
					}
					s.log.Debugw("Watched file changed", logger.FieldPath, changed, logger.FieldNodeID, nid)
					_, _ = s.Execute(runCtx, nid, domain.TriggerFileWatch, nil)
				})
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.log.Warnw("File watcher error", logger.FieldError, err)
		}
	}
}

// watchPaths returns the comma separated trigger config, or else the items
// that exist as files.
func watchPaths(n domain.ReaderNode) []string {
	if strings.TrimSpace(n.TriggerConfig) != "" {
		var paths []string
		for _, p := range strings.Split(n.TriggerConfig, ",") {
			if p = strings.TrimSpace(p); p != "" {
				paths = append(paths, p)
			}
		}
		return paths
	}
	var paths []string
	for _, item := range n.Items {
		if fi, err := os.Stat(item); err == nil && !fi.IsDir() {
			paths = append(paths, item)
		}
	}
	return paths
}

// Stop tears down all watchers and schedulers.
func (s *ReaderService) Stop() {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	s.stopWatchersLocked()
}

func (s *ReaderService) stopWatchersLocked() {
	if s.watchCancel != nil {
		s.watchCancel()
		s.watchCancel = nil
	}
	if s.watcher != nil {
		s.watcher.Close()
		s.watcher = nil
	}
	if s.cronSched != nil {
		s.cronSched.Stop()
		s.cronSched = nil
	}
}
