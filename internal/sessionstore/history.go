package sessionstore

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"

	"conductor/internal/logging"
	"conductor/internal/schema"
)

// AppendHistory appends one journal entry and trims the journal to the
// session's configured maximum, dropping the oldest lines first.
func (s *Store) AppendHistory(kind schema.Kind, id string) error {
	entry := schema.HistoryEntry{
		Timestamp: schema.Now(),
		Type:      kind,
		ID:        id,
	}
	line, err := json.Marshal(entry)
	if err != nil {
		return &StoreError{Kind: KindIO, Path: HistoryFile, Err: err}
	}

	path := s.Path(HistoryFile)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return &StoreError{Kind: KindIO, Path: path, Err: err}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return &StoreError{Kind: KindIO, Path: path, Err: err}
	}
	_, werr := f.Write(append(line, '\n'))
	cerr := f.Close()
	if werr != nil {
		return &StoreError{Kind: KindIO, Path: path, Err: werr}
	}
	if cerr != nil {
		return &StoreError{Kind: KindIO, Path: path, Err: cerr}
	}

	return s.trimHistory()
}

// trimHistory rewrites the journal keeping only the newest maxHistory lines.
func (s *Store) trimHistory() error {
	path := s.Path(HistoryFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return &StoreError{Kind: KindIO, Path: path, Err: err}
	}

	lines := bytes.Split(bytes.TrimRight(data, "\n"), []byte("\n"))
	if len(lines) <= s.maxHistory {
		return nil
	}

	keep := lines[len(lines)-s.maxHistory:]
	out := append(bytes.Join(keep, []byte("\n")), '\n')

	tmp, err := os.CreateTemp(filepath.Dir(path), ".log.jsonl.tmp-")
	if err != nil {
		return &StoreError{Kind: KindIO, Path: path, Err: err}
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(out); err != nil {
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

	logging.StoreDebug("Trimmed history to %d entries", s.maxHistory)
	return nil
}

// ReadHistory returns up to n of the newest journal entries, oldest first.
// Malformed lines are skipped. n <= 0 means all retained entries.
func (s *Store) ReadHistory(n int) ([]schema.HistoryEntry, error) {
	f, err := os.Open(s.Path(HistoryFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &StoreError{Kind: KindIO, Path: HistoryFile, Err: err}
	}
	defer f.Close()

	var entries []schema.HistoryEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e schema.HistoryEntry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			logging.Get(logging.CategoryStore).Warn("Skipping malformed history line: %v", err)
			continue
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, &StoreError{Kind: KindIO, Path: HistoryFile, Err: err}
	}

	if n > 0 && len(entries) > n {
		entries = entries[len(entries)-n:]
	}
	return entries, nil
}
