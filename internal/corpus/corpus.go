// Package corpus loads the embedded constitution sections used for retrieval.
//
// The corpus is a static JSON artifact produced offline: an array of sections,
// each carrying optional hierarchical labels, its text, and a precomputed
// embedding vector. It is loaded at most once per process and shared read-only
// across all requests.
package corpus

import (
	"encoding/json"
	"os"
	"sync"

	"go.uber.org/zap"
)

// Section is one retrievable unit of the source document.
type Section struct {
	Part      string    `json:"part,omitempty"`
	Chapter   string    `json:"chapter,omitempty"`
	Section   string    `json:"section,omitempty"`
	Content   string    `json:"content"`
	Embedding []float32 `json:"embedding,omitempty"`
}

// Label returns the most specific identifier available for the section,
// preferring section over chapter over part. May contain non-ASCII characters
// such as "§51"; callers that need header-safe values must sanitize it.
func (s Section) Label() string {
	switch {
	case s.Section != "":
		return s.Section
	case s.Chapter != "":
		return s.Chapter
	default:
		return s.Part
	}
}

// Store loads and caches the corpus artifact.
//
// Load is safe for concurrent use: the first caller performs the read under a
// sync.Once and every later caller sees the same immutable slice.
type Store struct {
	path   string
	logger *zap.Logger

	once     sync.Once
	sections []Section
}

// NewStore creates a store for the artifact at path. Nothing is read until
// the first Load call.
func NewStore(path string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{path: path, logger: logger}
}

// Load returns the corpus sections, reading the artifact on first call.
//
// A missing or malformed artifact degrades to an empty corpus: retrieval then
// finds no context, but the request itself still succeeds. The failure is
// logged once.
func (s *Store) Load() []Section {
	s.once.Do(func() {
		data, err := os.ReadFile(s.path)
		if err != nil {
			s.logger.Warn("corpus artifact unreadable, retrieval disabled",
				zap.String("path", s.path),
				zap.Error(err),
			)
			return
		}

		var sections []Section
		if err := json.Unmarshal(data, &sections); err != nil {
			s.logger.Warn("corpus artifact malformed, retrieval disabled",
				zap.String("path", s.path),
				zap.Error(err),
			)
			return
		}

		s.sections = sections
		s.logger.Info("corpus loaded",
			zap.String("path", s.path),
			zap.Int("sections", len(sections)),
		)
	})
	return s.sections
}
