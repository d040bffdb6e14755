package syncer

import (
	"path"
	"sort"
	"strings"

	"github.com/matthewbaird/acdc/internal/client"
)

// MainFileExt is the extension of the top-level FAST input file that must
// be part of every model upload.
const MainFileExt = ".fst"

const missingMainFile = "please upload main file with '" + MainFileExt + "' extension"

// FilterModelFiles prepares a directory selection for upload: hidden files
// and files inside hidden directories are dropped and the rest is sorted
// by path. It returns an *ImportError when no main file sits directly in
// the selected directory.
func FilterModelFiles(files []client.File) ([]client.File, error) {
	out := make([]client.File, 0, len(files))
	for _, f := range files {
		if hidden(f.Path) {
			continue
		}
		f.Path = path.Clean(strings.ReplaceAll(f.Path, "\\", "/"))
		out = append(out, f)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Path < out[j].Path })

	for _, f := range out {
		if isMainFile(f.Path) {
			return out, nil
		}
	}
	return nil, &ImportError{Message: missingMainFile}
}

func hidden(p string) bool {
	for _, part := range strings.FieldsFunc(p, func(r rune) bool { return r == '/' || r == '\\' }) {
		if strings.HasPrefix(part, ".") && part != "." && part != ".." {
			return true
		}
	}
	return false
}

// isMainFile reports whether p names a .fst file at the top of the selected
// directory, ignoring the directory's own name.
func isMainFile(p string) bool {
	parts := strings.Split(p, "/")
	if len(parts) > 2 {
		return false
	}
	return strings.HasSuffix(parts[len(parts)-1], MainFileExt)
}
