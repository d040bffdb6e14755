package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

const (
	// fastModule is the model key and schema name of the main input file.
	fastModule  = "FAST"
	mainFileExt = ".fst"

	// multipartMemory is how much of a multipart form is kept in memory
	// before spilling to temporary files.
	multipartMemory = 32 << 20
)

var errNoMainFile = errors.New("please upload main file with '" + mainFileExt + "' extension")

// importModel handles POST /model. A "path" field imports a model the
// server can reach and responds with the parsed Model. Otherwise the
// "paths" and "files" parts are an uploaded model directory and the
// response is the parsed Turbine. Failures are plain text so clients can
// show them verbatim.
func (s *Server) importModel(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUpload)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, fmt.Sprintf("upload exceeds %d bytes", s.cfg.MaxUpload), http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "reading form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	if p := r.FormValue("path"); p != "" {
		s.importPath(w, p)
		return
	}
	if len(r.MultipartForm.File["files"]) > 0 {
		s.importUpload(w, r.MultipartForm)
		return
	}
	http.Error(w, "a path or model files are required", http.StatusBadRequest)
}

func (s *Server) importPath(w http.ResponseWriter, p string) {
	main, err := findMainFile(s.store.Resolve(p))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	data, err := os.ReadFile(main)
	if err != nil {
		http.Error(w, "reading model: "+err.Error(), http.StatusBadRequest)
		return
	}
	inputs, err := s.parseFAST(data)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	model := map[string]json.RawMessage{fastModule: inputs}
	s.store.SetModel(model)
	log.Printf("server: imported model from %s", main)
	writeJSON(w, http.StatusOK, model)
}

// findMainFile accepts either a main file or a directory holding one at
// its top level.
func findMainFile(p string) (string, error) {
	fi, err := os.Stat(p)
	if err != nil {
		return "", fmt.Errorf("model path not found: %s", p)
	}
	if !fi.IsDir() {
		if filepath.Ext(p) != mainFileExt {
			return "", errNoMainFile
		}
		return p, nil
	}
	matches, err := filepath.Glob(filepath.Join(p, "*"+mainFileExt))
	if err != nil || len(matches) == 0 {
		return "", errNoMainFile
	}
	sort.Strings(matches)
	return matches[0], nil
}

// turbine is the response of an uploaded model.
type turbine struct {
	Files []string        `json:"Files"`
	FAST  json.RawMessage `json:"FAST"`
}

func (s *Server) importUpload(w http.ResponseWriter, form *multipart.Form) {
	dir, err := os.MkdirTemp("", "acdc-model-*")
	if err != nil {
		http.Error(w, "creating upload dir: "+err.Error(), http.StatusInternalServerError)
		return
	}
	defer os.RemoveAll(dir)

	paths := form.Value["paths"]
	var (
		names []string
		main  string
	)
	for i, fh := range form.File["files"] {
		name := fh.Filename
		if i < len(paths) {
			name = paths[i]
		}
		rel, err := stripModelDir(name)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := saveUpload(fh, filepath.Join(dir, filepath.FromSlash(rel))); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		names = append(names, rel)
		if main == "" && !strings.Contains(rel, "/") && path.Ext(rel) == mainFileExt {
			main = rel
		}
	}
	if main == "" {
		http.Error(w, errNoMainFile.Error(), http.StatusBadRequest)
		return
	}

	data, err := os.ReadFile(filepath.Join(dir, main))
	if err != nil {
		http.Error(w, "reading model: "+err.Error(), http.StatusInternalServerError)
		return
	}
	inputs, err := s.parseFAST(data)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	sort.Strings(names)
	raw, err := json.Marshal(turbine{Files: names, FAST: inputs})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.store.SetTurbine(raw)
	log.Printf("server: uploaded model with %d files (main %s)", len(names), main)
	w.Header().Set("Content-Type", "application/json")
	w.Write(raw)
}

// stripModelDir drops the selected directory's own name from an upload
// path, so "5MW/5MW.fst" becomes "5MW.fst".
func stripModelDir(name string) (string, error) {
	name = path.Clean(strings.ReplaceAll(name, "\\", "/"))
	if _, rest, ok := strings.Cut(name, "/"); ok {
		name = rest
	}
	if name == "" || name == "." || name == ".." || strings.HasPrefix(name, "../") || path.IsAbs(name) {
		return "", fmt.Errorf("invalid upload path %q", name)
	}
	return name, nil
}

func saveUpload(fh *multipart.FileHeader, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("saving %s: %w", fh.Filename, err)
	}
	src, err := fh.Open()
	if err != nil {
		return fmt.Errorf("opening %s: %w", fh.Filename, err)
	}
	defer src.Close()
	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("saving %s: %w", fh.Filename, err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return fmt.Errorf("saving %s: %w", fh.Filename, err)
	}
	return out.Close()
}

func (s *Server) parseFAST(data []byte) (json.RawMessage, error) {
	schema, ok := s.schemas.Schema(fastModule)
	if !ok {
		return nil, fmt.Errorf("no %s schema loaded", fastModule)
	}
	in, err := ParseInputFile(schema, data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s input: %w", fastModule, err)
	}
	return json.Marshal(in)
}

// validatePath handles POST /validate-path: 200 when the path exists on
// the server, 404 otherwise.
func (s *Server) validatePath(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(1 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		http.Error(w, "reading form: "+err.Error(), http.StatusBadRequest)
		return
	}
	p := r.FormValue("path")
	if p == "" {
		http.Error(w, "path is required", http.StatusBadRequest)
		return
	}
	if _, err := os.Stat(s.store.Resolve(p)); err != nil {
		http.Error(w, "path not found: "+p, http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok\n"))
}
