package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sort"

	"stratum/internal/fileutil"
	"stratum/internal/logging"
)

// State holds the in-memory run state. Processed is mutated only by the
// coordinator; Hashes and Counters are shared across workers and must be
// accessed through the dedup resolver's critical section.
type State struct {
	Processed map[string]struct{}
	Hashes    map[string]string
	Counters  map[string]int
}

// NewState returns an empty state.
func NewState() *State {
	return &State{
		Processed: make(map[string]struct{}),
		Hashes:    make(map[string]string),
		Counters:  make(map[string]int),
	}
}

// MarkProcessed records an artifact path as fully completed.
func (s *State) MarkProcessed(path string) {
	s.Processed[path] = struct{}{}
}

// IsProcessed reports whether an artifact path was completed by an earlier
// run or earlier in this run.
func (s *State) IsProcessed(path string) bool {
	_, ok := s.Processed[path]
	return ok
}

// document is the serialized form of State.
type document struct {
	ProcessedFiles []string          `json:"processed_files"`
	FileHashes     map[string]string `json:"file_hashes"`
	NameCounters   map[string]int    `json:"name_counters"`
}

// Store reads and writes the state document at a fixed path.
type Store struct {
	path   string
	logger *slog.Logger
}

// NewStore creates a store for the document at path.
func NewStore(path string, logger *slog.Logger) *Store {
	return &Store{
		path:   path,
		logger: logging.WithComponent(logger, "state"),
	}
}

// Path returns the state document location.
func (s *Store) Path() string {
	return s.path
}

// Load reads the state document. Any failure (missing file, unreadable
// file, malformed JSON) yields an empty state; only a real parse or read
// problem is logged.
func (s *Store) Load() *State {
	st := NewState()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("failed to read state document, starting empty",
				logging.String("path", s.path),
				logging.Error(err))
		}
		return st
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		s.logger.Warn("failed to parse state document, starting empty",
			logging.String("path", s.path),
			logging.Error(err))
		return st
	}

	for _, path := range doc.ProcessedFiles {
		st.Processed[path] = struct{}{}
	}
	if doc.FileHashes != nil {
		st.Hashes = doc.FileHashes
	}
	if doc.NameCounters != nil {
		st.Counters = doc.NameCounters
	}

	s.logger.Info("loaded state",
		logging.Int("processed_count", len(st.Processed)),
		logging.String("path", s.path))
	return st
}

// Save rewrites the state document atomically. The error is returned for
// callers that want to log it; losing one checkpoint is never fatal.
func (s *Store) Save(st *State) error {
	doc := document{
		ProcessedFiles: make([]string, 0, len(st.Processed)),
		FileHashes:     st.Hashes,
		NameCounters:   st.Counters,
	}
	for path := range st.Processed {
		doc.ProcessedFiles = append(doc.ProcessedFiles, path)
	}
	sort.Strings(doc.ProcessedFiles)

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if err := fileutil.WriteFileAtomic(s.path, data); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	return nil
}

// Reset removes the state document so the next load starts empty.
func (s *Store) Reset() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove state document: %w", err)
	}
	return nil
}
