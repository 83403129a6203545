// Package rulesource provides rule-pack sources: a local directory and a
// git repository.
package rulesource

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/cloudassure/engine/internal/app/ruleload"
)

// FSSource reads rule packs from a local directory tree.
type FSSource struct {
	dir string
}

// NewFSSource creates a source over a directory of YAML rule packs.
func NewFSSource(dir string) *FSSource {
	return &FSSource{dir: dir}
}

// Fetch implements ruleload.Source.
func (s *FSSource) Fetch(ctx context.Context) ([]ruleload.Document, error) {
	var docs []ruleload.Document
	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !isYAML(path) {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading rule pack %s: %w", path, err)
		}
		rel, relErr := filepath.Rel(s.dir, path)
		if relErr != nil {
			rel = path
		}
		docs = append(docs, ruleload.Document{Path: rel, Data: data})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
