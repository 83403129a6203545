// Package scanstatic provides file-backed scanners. Each YAML document in
// the assets directory declares one asset type and its current assets; a
// scanner re-reads its document on every tick. Used for local development
// and as the integration seam for real provider scanners.
package scanstatic

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cloudassure/engine/pkg/domain/asset"
	"github.com/cloudassure/engine/pkg/domain/discovery"
)

// assetDocument is the YAML shape of one static asset file.
type assetDocument struct {
	AssetType string `yaml:"assetType"`
	Group     string `yaml:"group"`
	Service   string `yaml:"service"`
	Assets    []struct {
		ID         string         `yaml:"id"`
		Name       string         `yaml:"name"`
		Properties map[string]any `yaml:"properties"`
	} `yaml:"assets"`
}

// Scanner serves the assets declared in one YAML document.
type Scanner struct {
	path string
	info discovery.ScannerInfo
}

// Info implements discovery.Scanner.
func (s *Scanner) Info() discovery.ScannerInfo {
	return s.info
}

// DiscoverAssets implements discovery.Scanner. The document is re-read on
// every call so edits show up on the next tick.
func (s *Scanner) DiscoverAssets(ctx context.Context) ([]*asset.Asset, error) {
	doc, err := readDocument(s.path)
	if err != nil {
		return nil, err
	}

	assets := make([]*asset.Asset, 0, len(doc.Assets))
	for _, entry := range doc.Assets {
		a, err := asset.New(doc.AssetType, entry.ID, entry.Name, entry.Properties)
		if err != nil {
			return nil, fmt.Errorf("asset %q in %s: %w", entry.ID, s.path, err)
		}
		assets = append(assets, a)
	}
	return assets, nil
}

// RegisterAll creates one scanner per YAML document under dir and registers
// them with the registry.
func RegisterAll(registry *discovery.Registry, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("reading assets dir: %w", err)
	}

	registered := 0
	for _, entry := range entries {
		if entry.IsDir() || !isYAML(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		doc, err := readDocument(path)
		if err != nil {
			return registered, err
		}

		scanner := &Scanner{
			path: path,
			info: discovery.ScannerInfo{
				AssetType: doc.AssetType,
				Group:     doc.Group,
				Service:   doc.Service,
			},
		}
		if err := registry.Register(scanner.info, func() discovery.Scanner { return scanner }); err != nil {
			return registered, err
		}
		registered++
	}
	return registered, nil
}

func readDocument(path string) (*assetDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading asset document %s: %w", path, err)
	}
	var doc assetDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing asset document %s: %w", path, err)
	}
	if doc.AssetType == "" {
		return nil, fmt.Errorf("asset document %s: assetType is required", path)
	}
	return &doc, nil
}

func isYAML(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}
