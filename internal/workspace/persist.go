package workspace

import (
	"context"
	"errors"

	"github.com/jackzampolin/memoir/internal/history"
	"github.com/jackzampolin/memoir/internal/store"
	"github.com/jackzampolin/memoir/internal/types"
)

// persist writes the named slices of the current state. It is the only place
// the workspace saves; failures are logged and never undo the mutation.
func (w *Workspace) persist(ctx context.Context, keys ...store.Key) {
	if w.store == nil || len(keys) == 0 {
		return
	}
	// A caller abandoning its request should not lose the write.
	ctx = context.WithoutCancel(ctx)

	w.mu.RLock()
	s := w.state.clone()
	w.mu.RUnlock()

	seen := make(map[store.Key]bool, len(keys))
	for _, key := range keys {
		if seen[key] {
			continue
		}
		seen[key] = true

		var v any
		switch key {
		case store.KeySelectedSubject:
			v = s.Selection
		case store.KeySelectedText:
			v = s.Text
		case store.KeyTone:
			v = s.Tone
		case store.KeyContext:
			v = s.Context
		case store.KeyPostsResult:
			v = s.Posts
		case store.KeyImageResult:
			v = s.Image
		case store.KeyVideoResult:
			v = s.Video
		case store.KeyActiveTab:
			v = s.ActiveTab
		case store.KeyHistory:
			v = w.ledger.Entries()
		default:
			continue
		}

		if err := w.store.Save(ctx, key, v); err != nil {
			w.logger.Warn("failed to persist state", "key", key, "error", err)
		}
	}
}

// Load restores state and the ledger from the store. Missing keys keep their
// zero values; a key that fails to decode is logged and skipped.
func (w *Workspace) Load(ctx context.Context) error {
	if w.store == nil {
		return nil
	}

	var (
		s       State
		entries []history.Entry
	)
	targets := map[store.Key]any{
		store.KeySelectedSubject: &s.Selection,
		store.KeySelectedText:    &s.Text,
		store.KeyTone:            &s.Tone,
		store.KeyContext:         &s.Context,
		store.KeyPostsResult:     &s.Posts,
		store.KeyImageResult:     &s.Image,
		store.KeyVideoResult:     &s.Video,
		store.KeyActiveTab:       &s.ActiveTab,
		store.KeyHistory:         &entries,
	}

	for _, key := range store.Keys {
		target, ok := targets[key]
		if !ok {
			continue
		}
		err := w.store.Load(ctx, key, target)
		switch {
		case err == nil:
		case errors.Is(err, store.ErrNotFound):
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			w.logger.Warn("failed to restore state", "key", key, "error", err)
		}
	}

	if s.ActiveTab != "" {
		if kind, ok := types.ParseKind(string(s.ActiveTab)); ok {
			s.ActiveTab = kind
		} else {
			s.ActiveTab = ""
		}
	}

	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
	w.ledger.Restore(entries)

	w.logger.Info("state restored", "subject_id", s.Selection.ID, "history", len(entries))
	return nil
}
