// Package sessionstore implements the file-backed session tree: atomic JSON
// writes, archival copies, the append-only history journal, and session
// lifecycle (create, list, age, purge).
//
// A session is a directory rooted at <base>/sessions/<sessionID> with a fixed
// skeleton of subdirectories. The store is single-process, single-writer;
// it makes no cross-process locking guarantees.
package sessionstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"conductor/internal/logging"
	"conductor/internal/schema"
)

// ErrorKind classifies store failures per the error taxonomy.
type ErrorKind string

const (
	KindNotFound    ErrorKind = "not_found"
	KindCorruptJSON ErrorKind = "corrupt_json"
	KindIO          ErrorKind = "io"
)

// StoreError wraps a filesystem or decode failure with its kind and path.
type StoreError struct {
	Kind ErrorKind
	Path string
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Path, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is a StoreError of kind not_found.
func IsNotFound(err error) bool {
	var se *StoreError
	return errors.As(err, &se) && se.Kind == KindNotFound
}

// IsCorrupt reports whether err is a StoreError of kind corrupt_json.
func IsCorrupt(err error) bool {
	var se *StoreError
	return errors.As(err, &se) && se.Kind == KindCorruptJSON
}

// Subdirs is the fixed session directory skeleton, created in full before
// the first artifact write.
var Subdirs = []string{"prompts", "plans", "handoffs", "state", "history", "gates", "memories", "evidence"}

// DefaultMaxHistory bounds the history journal length.
const DefaultMaxHistory = 50

// HistoryFile is the journal path relative to the session root.
const HistoryFile = "history/log.jsonl"

// Store is a handle on one session's directory tree.
type Store struct {
	root       string
	sessionID  string
	maxHistory int
}

// Open binds a store to <base>/sessions/<sessionID>, creating the full
// directory skeleton if any part is missing.
func Open(base, sessionID string, maxHistory int) (*Store, error) {
	if sessionID == "" {
		return nil, &StoreError{Kind: KindNotFound, Path: base, Err: errors.New("empty session id")}
	}
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}

	root := filepath.Join(base, "sessions", sessionID)
	for _, d := range Subdirs {
		if err := os.MkdirAll(filepath.Join(root, d), 0755); err != nil {
			return nil, &StoreError{Kind: KindIO, Path: filepath.Join(root, d), Err: err}
		}
	}
	logging.StoreDebug("Opened session store: %s", root)

	return &Store{root: root, sessionID: sessionID, maxHistory: maxHistory}, nil
}

// SessionID returns the bound session identifier.
func (s *Store) SessionID() string { return s.sessionID }

// Root returns the absolute session directory.
func (s *Store) Root() string { return s.root }

// Path resolves a session-relative path to an absolute one.
func (s *Store) Path(rel string) string { return filepath.Join(s.root, rel) }

// WriteJSON writes doc to rel as pretty-printed JSON. Parent directories are
// created if absent. The write goes to a sibling temp file first and is
// renamed into place, so readers only ever observe a complete document.
func (s *Store) WriteJSON(rel string, doc interface{}) error {
	path := s.Path(rel)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return &StoreError{Kind: KindIO, Path: path, Err: err}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return &StoreError{Kind: KindIO, Path: path, Err: err}
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-")
	if err != nil {
		return &StoreError{Kind: KindIO, Path: path, Err: err}
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &StoreError{Kind: KindIO, Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &StoreError{Kind: KindIO, Path: path, Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return &StoreError{Kind: KindIO, Path: path, Err: err}
	}

	logging.StoreDebug("Wrote %s (%d bytes)", rel, len(data))
	return nil
}

// ReadJSON decodes the document at rel into out.
func (s *Store) ReadJSON(rel string, out interface{}) error {
	path := s.Path(rel)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &StoreError{Kind: KindNotFound, Path: path, Err: err}
		}
		return &StoreError{Kind: KindIO, Path: path, Err: err}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &StoreError{Kind: KindCorruptJSON, Path: path, Err: err}
	}
	return nil
}

// Exists reports whether rel exists in the session tree.
func (s *Store) Exists(rel string) bool {
	_, err := os.Stat(s.Path(rel))
	return err == nil
}

// ListDir returns the entry names under rel that satisfy pred (nil matches
// everything), sorted lexicographically. Callers re-sort as needed.
func (s *Store) ListDir(rel string, pred func(name string) bool) ([]string, error) {
	entries, err := os.ReadDir(s.Path(rel))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &StoreError{Kind: KindNotFound, Path: s.Path(rel), Err: err}
		}
		return nil, &StoreError{Kind: KindIO, Path: s.Path(rel), Err: err}
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if pred == nil || pred(name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Archive copies the current file at rel alongside itself with a sanitized
// timestamp suffix, preserving the prior value before an overwrite. A missing
// source is not an error; there is simply nothing to archive.
func (s *Store) Archive(rel string) error {
	src := s.Path(rel)
	data, err := os.ReadFile(src)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return &StoreError{Kind: KindIO, Path: src, Err: err}
	}

	ext := filepath.Ext(rel)
	stamp := schema.SanitizeTimestamp(schema.Now())
	dst := s.Path(strings.TrimSuffix(rel, ext) + "-" + stamp + ext)
	if err := os.WriteFile(dst, data, 0644); err != nil {
		return &StoreError{Kind: KindIO, Path: dst, Err: err}
	}
	logging.StoreDebug("Archived %s -> %s", rel, filepath.Base(dst))
	return nil
}
