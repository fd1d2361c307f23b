package sessionstore

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"conductor/internal/logging"
	"conductor/internal/schema"
)

// Event reports one artifact landing in the session tree.
type Event struct {
	Kind schema.Kind // derived from the top-level subdirectory
	Rel  string      // path relative to the session root
	Op   string      // "create" or "write"
}

// kindForDir maps session subdirectories to artifact kinds.
var kindForDir = map[string]schema.Kind{
	"prompts":  schema.KindPrompt,
	"plans":    schema.KindPlan,
	"handoffs": schema.KindHandoff,
	"state":    schema.KindState,
	"memories": schema.KindMemory,
	"evidence": schema.KindEvidence,
	"gates":    schema.KindGate,
}

// Watch tails the session directory and invokes onEvent for every artifact
// create or update until ctx is cancelled. Temp files and the history journal
// are filtered out. The call blocks; run it from the caller's goroutine of
// choice.
func (s *Store) Watch(ctx context.Context, onEvent func(Event)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return &StoreError{Kind: KindIO, Path: s.root, Err: err}
	}
	defer watcher.Close()

	for _, d := range Subdirs {
		if err := watcher.Add(filepath.Join(s.root, d)); err != nil {
			return &StoreError{Kind: KindIO, Path: filepath.Join(s.root, d), Err: err}
		}
	}
	logging.SessionDebug("Watching session %s", s.sessionID)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			rel, err := filepath.Rel(s.root, ev.Name)
			if err != nil {
				continue
			}
			base := filepath.Base(rel)
			if strings.HasPrefix(base, ".") || strings.HasSuffix(base, ".jsonl") {
				continue
			}
			kind, ok := kindForDir[topDir(rel)]
			if !ok {
				continue
			}
			op := "write"
			if ev.Op&fsnotify.Create != 0 {
				op = "create"
			}
			onEvent(Event{Kind: kind, Rel: filepath.ToSlash(rel), Op: op})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.Get(logging.CategorySession).Warn("Watcher error: %v", err)
		}
	}
}

// topDir returns the first path segment of a relative path.
func topDir(rel string) string {
	rel = filepath.ToSlash(rel)
	if i := strings.Index(rel, "/"); i >= 0 {
		return rel[:i]
	}
	return rel
}
