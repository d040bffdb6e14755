// Package syncer keeps a local analysis document and the server's copy in
// step. Edits apply locally at once and are written back after a quiet
// period; condition changes and model imports are written immediately.
//
// Every local mutation bumps an edit version. A write response is applied
// only if the version it was sent at is still current, so a slow response
// can never roll back newer local edits.
package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/matthewbaird/acdc/internal/analysis"
	"github.com/matthewbaird/acdc/internal/client"
	"github.com/matthewbaird/acdc/internal/clock"
	"github.com/matthewbaird/acdc/internal/form"
	"github.com/matthewbaird/acdc/internal/metrics"
)

// DefaultDebounce is the quiet period before edits are written back.
const DefaultDebounce = time.Second

// State is the synchronizer lifecycle state.
type State int

const (
	Unloaded State = iota
	Loaded
	Editing
	Syncing
)

func (s State) String() string {
	switch s {
	case Unloaded:
		return "unloaded"
	case Loaded:
		return "loaded"
	case Editing:
		return "editing"
	case Syncing:
		return "syncing"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// API is the part of the server API the synchronizer writes through.
// *client.Client implements it.
type API interface {
	GetAnalysis(ctx context.Context) (json.RawMessage, error)
	PutAnalysis(ctx context.Context, doc *analysis.Document) (*analysis.Document, error)
	UpdateConditions(ctx context.Context, cs []analysis.ConditionEntry) ([]analysis.ConditionEntry, error)
	ImportModelPath(ctx context.Context, path string) (json.RawMessage, error)
	UploadModel(ctx context.Context, files []client.File) (json.RawMessage, error)
	ValidatePath(ctx context.Context, path string) (bool, error)
}

// Config tunes a Synchronizer. Zero values select defaults.
type Config struct {
	Clock    clock.Clock
	Debounce time.Duration
	Timeout  time.Duration
	Metrics  *metrics.Client
	// Seed is the document the first Load merges into.
	Seed *analysis.Document
}

// ImportSource selects what ImportModel sends: a server-side Path (the
// document's ModelPath when empty) or a set of uploaded Files.
type ImportSource struct {
	Path  string
	Files []client.File
}

// Synchronizer owns the local copy of one analysis document.
type Synchronizer struct {
	api      API
	clock    clock.Clock
	timeout  time.Duration
	metrics  *metrics.Client
	debounce *Debouncer

	bg     context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	doc         *analysis.Document
	state       State
	version     uint64
	condVersion uint64
	inflight    int
	syncErr     error
	importErr   error
	pathValid   map[analysis.PathKind]bool
}

// New creates an unloaded synchronizer.
func New(api API, cfg Config) *Synchronizer {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	doc := cfg.Seed.Clone()
	if doc == nil {
		doc = analysis.New()
	}
	s := &Synchronizer{
		api:       api,
		clock:     cfg.Clock,
		timeout:   cfg.Timeout,
		metrics:   cfg.Metrics,
		doc:       doc,
		pathValid: make(map[analysis.PathKind]bool),
	}
	s.bg, s.cancel = context.WithCancel(context.Background())
	s.debounce = NewDebouncer(cfg.Clock, cfg.Debounce, func() {
		if err := s.Sync(s.bg); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("syncer: debounced sync: %v", err)
		}
	})
	return s
}

// Close drops any pending write and aborts background requests.
func (s *Synchronizer) Close() {
	s.debounce.Cancel()
	s.cancel()
}

func (s *Synchronizer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Document returns a copy of the local document.
func (s *Synchronizer) Document() *analysis.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Clone()
}

// AnalysisID returns the ID of the loaded analysis.
func (s *Synchronizer) AnalysisID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.ID
}

// SyncErr returns the last write failure, cleared by the next successful
// write.
func (s *Synchronizer) SyncErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.syncErr
}

// ImportErr returns the last import failure, cleared by the next
// successful import.
func (s *Synchronizer) ImportErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.importErr
}

// PathValid returns the result of the last ValidatePath for kind.
func (s *Synchronizer) PathValid(kind analysis.PathKind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pathValid[kind]
}

func (s *Synchronizer) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(ctx, s.timeout)
	}
	return context.WithCancel(ctx)
}

// settle derives the resting state. Callers hold s.mu.
func (s *Synchronizer) settle() {
	switch {
	case s.state == Unloaded:
	case s.inflight > 0:
		s.state = Syncing
	case s.debounce.Pending():
		s.state = Editing
	default:
		s.state = Loaded
	}
}

// Load fetches the remote document. The first load merges it into the
// seed so fields the server omits keep their local values; later loads
// replace the local copy and drop pending edits.
func (s *Synchronizer) Load(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	data, err := s.api.GetAnalysis(ctx)
	if err != nil {
		return fmt.Errorf("syncer: loading analysis: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Unloaded {
		if err := s.doc.Merge(data); err != nil {
			return err
		}
	} else {
		doc, err := analysis.Decode(data)
		if err != nil {
			return err
		}
		s.doc = doc
		s.debounce.Cancel()
	}
	s.version++
	s.condVersion++
	s.state = Loaded
	s.settle()
	log.Printf("syncer: loaded analysis %q (%d conditions)", s.doc.ID, len(s.doc.Conditions))
	return nil
}

// Edit applies fn to the local document and schedules a write.
func (s *Synchronizer) Edit(fn func(doc *analysis.Document)) error {
	return s.edit(func(doc *analysis.Document) (bool, error) {
		fn(doc)
		return true, nil
	})
}

// EditInputs applies fn to the input set of one model module.
func (s *Synchronizer) EditInputs(module string, fn func(in *form.InputSet)) error {
	return s.edit(func(doc *analysis.Document) (bool, error) {
		in, err := doc.Inputs(module)
		if err != nil {
			return false, err
		}
		fn(in)
		return true, doc.SetInputs(module, in)
	})
}

// UpdateLinTimes resizes the FAST LinTimes list to n entries. Steady state
// models are left alone.
func (s *Synchronizer) UpdateLinTimes(n int) error {
	return s.edit(func(doc *analysis.Document) (bool, error) {
		return doc.UpdateLinTimes(n)
	})
}

func (s *Synchronizer) edit(fn func(doc *analysis.Document) (bool, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Unloaded {
		return ErrNotLoaded
	}
	next := s.doc.Clone()
	changed, err := fn(next)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	s.doc = next
	s.version++
	s.debounce.Trigger()
	s.settle()
	return nil
}

// Flush writes the local document now, dropping any pending debounced
// write.
func (s *Synchronizer) Flush(ctx context.Context) error {
	s.debounce.Cancel()
	return s.Sync(ctx)
}

// Sync writes the full local document. On success the server's copy
// replaces the local one unless the document was edited while the request
// was in flight. On failure local state is kept and SyncErr is set.
func (s *Synchronizer) Sync(ctx context.Context) error {
	s.mu.Lock()
	if s.state == Unloaded {
		s.mu.Unlock()
		return ErrNotLoaded
	}
	doc := s.doc.Clone()
	sent := s.version
	s.inflight++
	s.settle()
	s.mu.Unlock()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	start := s.clock.Now()
	got, err := s.api.PutAnalysis(ctx, doc)
	s.metrics.SyncDone(s.clock.Now().Sub(start), err)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight--
	defer s.settle()
	if err != nil {
		s.syncErr = &SyncError{Op: "sync", Err: err}
		log.Printf("syncer: sync failed: %v", err)
		return s.syncErr
	}
	s.syncErr = nil
	if s.version != sent {
		s.discardStale("sync", sent, s.version)
		return nil
	}
	s.doc = got
	return nil
}

// discardStale drops a response that was overtaken by a newer local
// change. The server may now hold the older state, so a write of the
// local document is scheduled unless one is already pending. Callers hold
// s.mu.
func (s *Synchronizer) discardStale(op string, sent, now uint64) {
	s.metrics.StaleResponse()
	log.Printf("syncer: discarding stale %s response (sent v%d, now v%d)", op, sent, now)
	if !s.debounce.Pending() {
		s.debounce.Trigger()
	}
}

// AddCondition appends a condition and writes the list immediately.
func (s *Synchronizer) AddCondition(ctx context.Context, c analysis.ConditionEntry) error {
	s.mu.Lock()
	if s.state == Unloaded {
		s.mu.Unlock()
		return ErrNotLoaded
	}
	list := append(append([]analysis.ConditionEntry{}, s.doc.Conditions...), c)
	return s.writeConditions(ctx, list)
}

// RemoveCondition removes the condition at index i and writes the list
// immediately. An out-of-range index leaves everything untouched.
func (s *Synchronizer) RemoveCondition(ctx context.Context, i int) error {
	s.mu.Lock()
	if s.state == Unloaded {
		s.mu.Unlock()
		return ErrNotLoaded
	}
	list, ok := analysis.RemoveCondition(s.doc.Conditions, i)
	if !ok {
		n := len(s.doc.Conditions)
		s.mu.Unlock()
		return fmt.Errorf("%w: %d not in [0, %d)", ErrConditionIndex, i, n)
	}
	return s.writeConditions(ctx, list)
}

// writeConditions is entered with s.mu held and releases it.
func (s *Synchronizer) writeConditions(ctx context.Context, list []analysis.ConditionEntry) error {
	s.doc.Conditions = list
	s.version++
	s.condVersion++
	sent := s.condVersion
	s.inflight++
	s.settle()
	s.mu.Unlock()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	got, err := s.api.UpdateConditions(ctx, append([]analysis.ConditionEntry{}, list...))
	s.metrics.ConditionWrite(err)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight--
	defer s.settle()
	if err != nil {
		s.syncErr = &SyncError{Op: "conditions", Err: err}
		log.Printf("syncer: condition update failed: %v", err)
		return s.syncErr
	}
	s.syncErr = nil
	if s.condVersion != sent {
		s.discardStale("conditions", sent, s.condVersion)
		return nil
	}
	if got == nil {
		got = []analysis.ConditionEntry{}
	}
	s.doc.Conditions = got
	return nil
}

// ImportModel asks the server to import a model, by path or by upload.
// On success the parsed model (path) or turbine (upload) replaces the
// local one. On failure the document is untouched and ImportErr is set.
func (s *Synchronizer) ImportModel(ctx context.Context, src ImportSource) error {
	s.mu.Lock()
	if s.state == Unloaded {
		s.mu.Unlock()
		return ErrNotLoaded
	}
	if src.Path == "" && len(src.Files) == 0 {
		src.Path = s.doc.ModelPath
	}
	s.mu.Unlock()

	var (
		raw json.RawMessage
		err error
	)
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if len(src.Files) > 0 {
		var files []client.File
		if files, err = FilterModelFiles(src.Files); err == nil {
			raw, err = s.api.UploadModel(ctx, files)
		}
	} else {
		raw, err = s.api.ImportModelPath(ctx, src.Path)
	}

	var model map[string]json.RawMessage
	if err == nil && len(src.Files) == 0 {
		if uerr := json.Unmarshal(raw, &model); uerr != nil {
			err = fmt.Errorf("decoding model: %w", uerr)
		}
	}
	s.metrics.Import(err)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.importErr = importError(err)
		log.Printf("syncer: import failed: %v", err)
		return s.importErr
	}
	s.importErr = nil
	if len(src.Files) > 0 {
		s.doc.Turbine = raw
	} else {
		s.doc.Model = model
	}
	s.version++
	return nil
}

func importError(err error) error {
	var ie *ImportError
	if errors.As(err, &ie) {
		return ie
	}
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		return &ImportError{Message: apiErr.Message, Err: err}
	}
	return &ImportError{Message: err.Error(), Err: err}
}

// ValidatePath asks the server whether the document's path of the given
// kind exists and records the answer. The document itself is not changed.
func (s *Synchronizer) ValidatePath(ctx context.Context, kind analysis.PathKind) bool {
	s.mu.Lock()
	p, err := s.doc.PathFor(kind)
	s.mu.Unlock()
	if err != nil {
		log.Printf("syncer: %v", err)
		return false
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	ok, err := s.api.ValidatePath(ctx, p)
	if err != nil {
		log.Printf("syncer: validating %s path %q: %v", kind, p, err)
		ok = false
	}

	s.mu.Lock()
	s.pathValid[kind] = ok
	s.mu.Unlock()
	return ok
}
