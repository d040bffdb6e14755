package server

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/matthewbaird/acdc/internal/form"
)

//go:embed schemas/*.json
var builtinSchemas embed.FS

// SchemaStore serves schemas by name. Built-in schemas are always present;
// files in an optional directory override them and are reloaded when they
// change.
type SchemaStore struct {
	mu      sync.RWMutex
	raw     map[string][]byte
	schemas map[string]*form.Schema
	builtin map[string][]byte

	dir string
}

// NewSchemaStore loads the built-in schemas and every *.json file in dir.
// An empty dir serves only the built-ins.
func NewSchemaStore(dir string) (*SchemaStore, error) {
	s := &SchemaStore{
		raw:     make(map[string][]byte),
		schemas: make(map[string]*form.Schema),
		builtin: make(map[string][]byte),
		dir:     dir,
	}
	entries, err := fs.Glob(builtinSchemas, "schemas/*.json")
	if err != nil {
		return nil, err
	}
	for _, p := range entries {
		data, err := builtinSchemas.ReadFile(p)
		if err != nil {
			return nil, err
		}
		name := schemaName(p)
		s.builtin[name] = data
		if err := s.put(name, data); err != nil {
			return nil, err
		}
	}
	if dir == "" {
		return s, nil
	}
	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, err
	}
	for _, p := range files {
		if err := s.loadFile(p); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func schemaName(p string) string {
	return strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
}

func (s *SchemaStore) put(name string, data []byte) error {
	schema, err := form.ParseSchema(name, data)
	if err != nil {
		return err
	}
	for _, kw := range schema.UnknownTypes() {
		f, _ := schema.Field(kw)
		log.Printf("server: schema %s: field %s has unrecognized type %q", name, kw, f.Type)
	}
	s.mu.Lock()
	s.raw[name] = data
	s.schemas[name] = schema
	s.mu.Unlock()
	return nil
}

func (s *SchemaStore) loadFile(p string) error {
	data, err := os.ReadFile(p)
	if err != nil {
		return fmt.Errorf("reading schema %s: %w", p, err)
	}
	if err := s.put(schemaName(p), data); err != nil {
		return fmt.Errorf("loading schema %s: %w", p, err)
	}
	return nil
}

// drop removes a directory schema, restoring the built-in of the same
// name if there is one.
func (s *SchemaStore) drop(name string) {
	if data, ok := s.builtin[name]; ok {
		if err := s.put(name, data); err != nil {
			log.Printf("server: restoring schema %s: %v", name, err)
		}
		return
	}
	s.mu.Lock()
	delete(s.raw, name)
	delete(s.schemas, name)
	s.mu.Unlock()
}

// Names returns the schema names in sorted order.
func (s *SchemaStore) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.raw))
	for k := range s.raw {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Raw returns the JSON entry list of a schema as it was loaded.
func (s *SchemaStore) Raw(name string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.raw[name]
	return data, ok
}

// Schema returns the parsed schema.
func (s *SchemaStore) Schema(name string) (*form.Schema, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	schema, ok := s.schemas[name]
	return schema, ok
}

// Watch reloads directory schemas as they change until ctx is done. A
// schema that fails to parse keeps its previous version. Watch returns
// immediately when the store has no directory.
func (s *SchemaStore) Watch(ctx context.Context) error {
	if s.dir == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating schema watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(s.dir); err != nil {
		return fmt.Errorf("watching %s: %w", s.dir, err)
	}
	log.Printf("server: watching schemas in %s", s.dir)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("schema watcher events channel closed")
			}
			s.handle(event)
		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("schema watcher errors channel closed")
			}
			log.Printf("server: schema watcher: %v", err)
		}
	}
}

func (s *SchemaStore) handle(event fsnotify.Event) {
	if filepath.Ext(event.Name) != ".json" {
		return
	}
	name := schemaName(event.Name)
	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		s.drop(name)
		log.Printf("server: schema %s removed", name)
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		if err := s.loadFile(event.Name); err != nil {
			log.Printf("server: %v", err)
			return
		}
		log.Printf("server: schema %s reloaded", name)
	}
}
