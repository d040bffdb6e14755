package server

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/matthewbaird/acdc/internal/analysis"
)

// Store holds the server's single analysis document in memory.
type Store struct {
	mu   sync.Mutex
	doc  *analysis.Document
	root string
}

// NewStore creates a store with a fresh document. Relative paths in the
// document resolve against root.
func NewStore(root string) *Store {
	s := &Store{root: root}
	s.doc = s.fresh()
	return s
}

func (s *Store) fresh() *analysis.Document {
	doc := analysis.New()
	doc.ID = uuid.NewString()
	return doc
}

// Get returns a copy of the current document.
func (s *Store) Get() *analysis.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Clone()
}

// ID returns the current analysis ID.
func (s *Store) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.ID
}

// Merge overlays a full or partial JSON document onto the current one and
// returns the canonical result. The ID is owned by the store and cannot be
// changed by a client.
func (s *Store) Merge(data []byte) (*analysis.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.doc.Clone()
	if err := next.Merge(data); err != nil {
		return nil, err
	}
	next.ID = s.doc.ID
	s.canonicalize(next)
	s.doc = next
	return next.Clone(), nil
}

// Reset replaces the document with a fresh one under a new ID.
func (s *Store) Reset() *analysis.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc = s.fresh()
	return s.doc.Clone()
}

// SetConditions replaces the condition list and returns it sorted and
// numbered.
func (s *Store) SetConditions(cs []analysis.ConditionEntry) []analysis.ConditionEntry {
	out := append([]analysis.ConditionEntry{}, cs...)
	analysis.SortConditions(out)
	analysis.NumberConditions(out)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Conditions = out
	return append([]analysis.ConditionEntry{}, out...)
}

// SetModel stores an imported model.
func (s *Store) SetModel(model map[string]json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Model = make(map[string]json.RawMessage, len(model))
	for k, v := range model {
		s.doc.Model[k] = append(json.RawMessage{}, v...)
	}
}

// SetTurbine stores an uploaded turbine.
func (s *Store) SetTurbine(raw []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Turbine = append(json.RawMessage{}, raw...)
}

func (s *Store) canonicalize(doc *analysis.Document) {
	if doc.NumCPUs < 1 {
		doc.NumCPUs = 1
	}
	analysis.SortConditions(doc.Conditions)
	analysis.NumberConditions(doc.Conditions)
	doc.ModelPathValid = s.exists(doc.ModelPath, false)
	doc.ExecPathValid = s.exists(doc.ExecPath, true)
}

// Resolve maps a client path onto the server filesystem.
func (s *Store) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(s.root, p)
}

// exists reports whether p names something on disk. With file set it must
// be a regular file.
func (s *Store) exists(p string, file bool) bool {
	if p == "" {
		return false
	}
	fi, err := os.Stat(s.Resolve(p))
	if err != nil {
		return false
	}
	return !file || fi.Mode().IsRegular()
}
