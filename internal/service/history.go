package service

import (
	"context"

	"tablereader/internal/domain"
	"tablereader/internal/errors"
	"tablereader/internal/logger"
)

// ── Spec config history ────────────────────────────────────

// History returns the spec config versions of a node.
func (s *ReaderService) History(idOrName string) (*domain.SpecHistory, error) {
	if s.history == nil {
		return nil, errors.Configurationf("spec history is not enabled")
	}
	n, err := s.store.GetNode(idOrName)
	if err != nil {
		return nil, err
	}
	h, err := s.history.Load(n.ID)
	if err != nil {
		return nil, err
	}
	if h == nil {
		h = &domain.SpecHistory{}
	}
	return h, nil
}

// Undo restores the spec config saved before the current one.
func (s *ReaderService) Undo(ctx context.Context, idOrName string) (*NodeSpec, error) {
	return s.moveHistory(ctx, idOrName, func(h *domain.SpecHistory, cur *domain.SpecHistoryEntry) *domain.SpecHistoryEntry {
		if cur.ParentID == nil {
			return nil
		}
		return findEntry(h, *cur.ParentID)
	}, "undo")
}

// Redo moves to the newest version saved on top of the current one.
func (s *ReaderService) Redo(ctx context.Context, idOrName string) (*NodeSpec, error) {
	return s.moveHistory(ctx, idOrName, func(h *domain.SpecHistory, cur *domain.SpecHistoryEntry) *domain.SpecHistoryEntry {
		var next *domain.SpecHistoryEntry
		for i := range h.Entries {
			if p := h.Entries[i].ParentID; p != nil && *p == cur.ID {
				next = &h.Entries[i]
			}
		}
		return next
	}, "redo")
}

func (s *ReaderService) moveHistory(
	ctx context.Context,
	idOrName string,
	pick func(h *domain.SpecHistory, cur *domain.SpecHistoryEntry) *domain.SpecHistoryEntry,
	what string,
) (*NodeSpec, error) {
	if s.history == nil {
		return nil, errors.Configurationf("spec history is not enabled")
	}
	n, err := s.store.GetNode(idOrName)
	if err != nil {
		return nil, err
	}
	if !s.running.TryLock(n.ID) {
		return nil, errBusy(n)
	}
	defer s.running.Unlock(n.ID)

	h, err := s.history.Load(n.ID)
	if err != nil {
		return nil, err
	}
	var target *domain.SpecHistoryEntry
	if h != nil {
		if cur := findEntry(h, h.CurrentID); cur != nil {
			target = pick(h, cur)
		}
	}
	if target == nil {
		return nil, errors.Configurationf("nothing to %s for node %q", what, n.Name)
	}

	if err := s.store.UpdateSpecConfig(n.ID, target.SpecConfig); err != nil {
		return nil, errors.Wrap(err, "restore table spec config")
	}
	if err := s.history.GoTo(n.ID, target.ID); err != nil {
		return nil, err
	}
	n.SpecConfig = target.SpecConfig

	c := s.specConfig(n)
	if c == nil {
		return nil, errNotConfigured(n)
	}
	view, err := newNodeSpec(n.ID, c)
	if err != nil {
		return nil, err
	}
	s.log.Infow("Spec config restored", logger.FieldNodeID, n.ID, "action", what, "label", target.Label, "entry", target.ID)
	s.emitter.Emit(ctx, EventConfigured, map[string]any{"nodeId": n.ID, "columns": len(view.Output)})
	return view, nil
}

func findEntry(h *domain.SpecHistory, id string) *domain.SpecHistoryEntry {
	for i := range h.Entries {
		if h.Entries[i].ID == id {
			return &h.Entries[i]
		}
	}
	return nil
}
