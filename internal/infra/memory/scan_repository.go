// Package memory provides in-memory repository implementations used in
// tests and in store-less deployments.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/cloudassure/engine/pkg/domain/discovery"
	"github.com/cloudassure/engine/pkg/domain/shared"
)

// ScanRepository is an in-memory discovery.Repository.
type ScanRepository struct {
	mu    sync.RWMutex
	scans map[string]*discovery.Scan
}

// NewScanRepository creates an empty in-memory scan repository.
func NewScanRepository() *ScanRepository {
	return &ScanRepository{scans: make(map[string]*discovery.Scan)}
}

// Save creates or replaces a scan.
func (r *ScanRepository) Save(ctx context.Context, s *discovery.Scan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *s
	r.scans[s.ID()] = &copied
	return nil
}

// GetByID retrieves a scan by its asset type.
func (r *ScanRepository) GetByID(ctx context.Context, id string) (*discovery.Scan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.scans[id]
	if !ok {
		return nil, fmt.Errorf("%w: scan %q", shared.ErrNotFound, id)
	}
	copied := *s
	return &copied, nil
}

// List lists all scans.
func (r *ScanRepository) List(ctx context.Context) ([]*discovery.Scan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*discovery.Scan, 0, len(r.scans))
	for _, s := range r.scans {
		copied := *s
		out = append(out, &copied)
	}
	return out, nil
}

// Delete deletes a scan.
func (r *ScanRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.scans[id]; !ok {
		return fmt.Errorf("%w: scan %q", shared.ErrNotFound, id)
	}
	delete(r.scans, id)
	return nil
}
