package sessionstore

import (
	"os"
	"path/filepath"
	"sort"
	"time"

	"conductor/internal/logging"
	"conductor/internal/schema"
)

// Manager performs session lifecycle operations over a base directory.
type Manager struct {
	base       string
	maxHistory int
}

// NewManager builds a Manager rooted at base.
func NewManager(base string, maxHistory int) *Manager {
	return &Manager{base: base, maxHistory: maxHistory}
}

// Base returns the manager's base directory.
func (m *Manager) Base() string { return m.base }

// New mints a session ID and creates its directory skeleton.
func (m *Manager) New() (*Store, error) {
	id := schema.NewSessionID()
	logging.Session("Creating session %s", id)
	return Open(m.base, id, m.maxHistory)
}

// Open binds to an existing session, creating any missing skeleton dirs.
func (m *Manager) Open(sessionID string) (*Store, error) {
	return Open(m.base, sessionID, m.maxHistory)
}

// List enumerates session names, sorted lexicographically (which is also
// chronological, given the session ID form).
func (m *Manager) List() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(m.base, "sessions"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &StoreError{Kind: KindIO, Path: m.base, Err: err}
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// activityMarkers are the files whose newest mtime defines a session's last
// activity. The session directory itself is the fallback.
var activityMarkers = []string{
	HistoryFile,
	"handoffs/latest-handoff.json",
	"plans/current-plan.json",
	"state/orchestrator.json",
}

// LastActivity returns the most recent activity time for a session.
func (m *Manager) LastActivity(sessionID string) (time.Time, error) {
	root := filepath.Join(m.base, "sessions", sessionID)
	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return time.Time{}, &StoreError{Kind: KindNotFound, Path: root, Err: err}
		}
		return time.Time{}, &StoreError{Kind: KindIO, Path: root, Err: err}
	}

	latest := info.ModTime()
	for _, marker := range activityMarkers {
		if fi, err := os.Stat(filepath.Join(root, marker)); err == nil && fi.ModTime().After(latest) {
			latest = fi.ModTime()
		}
	}
	return latest, nil
}

// Latest returns the session with the most recent activity, or "" when no
// sessions exist.
func (m *Manager) Latest() (string, error) {
	names, err := m.List()
	if err != nil {
		return "", err
	}

	var best string
	var bestAt time.Time
	for _, name := range names {
		at, err := m.LastActivity(name)
		if err != nil {
			continue
		}
		if best == "" || at.After(bestAt) {
			best, bestAt = name, at
		}
	}
	return best, nil
}

// Age returns the whole days since the session's last activity.
func (m *Manager) Age(sessionID string) (int, error) {
	at, err := m.LastActivity(sessionID)
	if err != nil {
		return 0, err
	}
	return int(time.Since(at).Hours() / 24), nil
}

// PurgeOld deletes sessions older than olderThanDays, always retaining the
// keep newest regardless of age. It returns the names that were (or, in
// dry-run, would be) deleted.
func (m *Manager) PurgeOld(olderThanDays, keep int, dryRun bool) ([]string, error) {
	names, err := m.List()
	if err != nil {
		return nil, err
	}

	type aged struct {
		name string
		at   time.Time
	}
	sessions := make([]aged, 0, len(names))
	for _, name := range names {
		at, err := m.LastActivity(name)
		if err != nil {
			logging.Get(logging.CategorySession).Warn("Skipping unreadable session %s: %v", name, err)
			continue
		}
		sessions = append(sessions, aged{name: name, at: at})
	}

	// Newest first; the first `keep` are always retained.
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].at.After(sessions[j].at) })

	cutoff := time.Now().Add(-time.Duration(olderThanDays) * 24 * time.Hour)
	var purged []string
	for i, s := range sessions {
		if i < keep {
			continue
		}
		if s.at.After(cutoff) {
			continue
		}
		purged = append(purged, s.name)
		if dryRun {
			continue
		}
		if err := os.RemoveAll(filepath.Join(m.base, "sessions", s.name)); err != nil {
			return purged, &StoreError{Kind: KindIO, Path: s.name, Err: err}
		}
		logging.Session("Purged session %s", s.name)
	}
	return purged, nil
}
