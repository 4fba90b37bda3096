package seed

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// FileName is the per-repository declaration file.
const FileName = "seed.yaml"

// Document is one unparsed declaration as delivered by a source. Err is set
// when the source could not deliver the content; such documents are reported
// as parse errors by BuildGraph.
type Document struct {
	Path    string
	Content []byte
	Err     error
}

// Discover walks <workspace>/<orgDir>/<repo>/seed.yaml for each orgDir and
// returns the matching paths in sorted order. Missing org dirs are skipped.
func Discover(workspace string, orgDirs []string) ([]string, error) {
	if workspace == "" {
		return nil, fmt.Errorf("workspace path required")
	}
	var out []string
	for _, org := range orgDirs {
		orgDir := filepath.Join(workspace, org)
		info, err := os.Stat(orgDir)
		if err != nil || !info.IsDir() {
			continue
		}
		entries, err := os.ReadDir(orgDir)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", orgDir, err)
		}
		for _, e := range entries {
			// Stat follows symlinked repository dirs; DirEntry type bits do not.
			repoDir := filepath.Join(orgDir, e.Name())
			if fi, err := os.Stat(repoDir); err != nil || !fi.IsDir() {
				continue
			}
			p := filepath.Join(repoDir, FileName)
			if fi, err := os.Stat(p); err == nil && fi.Mode().IsRegular() {
				out = append(out, p)
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

// ReadDocuments loads the files at paths. Read failures are kept on the
// returned documents rather than aborting.
func ReadDocuments(paths []string) []Document {
	docs := make([]Document, 0, len(paths))
	for _, p := range paths {
		b, err := os.ReadFile(p)
		docs = append(docs, Document{Path: p, Content: b, Err: err})
	}
	return docs
}

// LoadWorkspace discovers and reads every seed.yaml under workspace.
func LoadWorkspace(workspace string, orgDirs []string) ([]Document, error) {
	paths, err := Discover(workspace, orgDirs)
	if err != nil {
		return nil, err
	}
	return ReadDocuments(paths), nil
}
