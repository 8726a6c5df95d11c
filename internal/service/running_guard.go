package service

import (
	"context"
	"sort"
	"sync"
)

// ExportedRunGuard is an exported alias so _test packages can test the guard.
type ExportedRunGuard = runGuard

// ─────────────────────────────────────────────────────────────
// runGuard: one run (or configure) per reader node at a time
// ─────────────────────────────────────────────────────────────

type runGuard struct {
	mu      sync.Mutex
	running map[string]struct{}
	wg      sync.WaitGroup
}

// TryLock marks nodeID as busy. It returns false if the node already is.
func (g *runGuard) TryLock(nodeID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running == nil {
		g.running = make(map[string]struct{})
	}
	if _, ok := g.running[nodeID]; ok {
		return false
	}
	g.running[nodeID] = struct{}{}
	g.wg.Add(1)
	return true
}

// Unlock releases nodeID. Must be called after TryLock returns true.
func (g *runGuard) Unlock(nodeID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.running[nodeID]; !ok {
		return
	}
	delete(g.running, nodeID)
	g.wg.Done()
}

// Running returns the busy node IDs, sorted.
func (g *runGuard) Running() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	ids := make([]string, 0, len(g.running))
	for id := range g.running {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// WaitAll blocks until all current runs complete or ctx is cancelled.
func (g *runGuard) WaitAll(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}
