package discovery

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/cloudassure/engine/pkg/domain/asset"
	"github.com/cloudassure/engine/pkg/domain/shared"
)

// Scanner is the external collaborator that queries a cloud provider for
// raw resources. It may be slow or fail; the scheduler treats any error as
// a failed-but-non-fatal tick.
type Scanner interface {
	// Info describes the scanner: the asset type it discovers plus the
	// provider group and service it talks to.
	Info() ScannerInfo

	// DiscoverAssets fetches the current full set of assets of the
	// scanner's type.
	DiscoverAssets(ctx context.Context) ([]*asset.Asset, error)
}

// ScannerInfo describes one scanner kind.
type ScannerInfo struct {
	AssetType string
	Group     string
	Service   string
}

// ScannerFactory constructs a scanner instance.
type ScannerFactory func() Scanner

// Registry is the explicit map of scan id to scanner factory, populated at
// startup. The set of available scanners is statically known.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]ScannerFactory
}

// NewRegistry creates an empty scanner registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]ScannerFactory)}
}

// Register adds a scanner factory under the asset type it discovers.
func (r *Registry) Register(info ScannerInfo, factory ScannerFactory) error {
	if info.AssetType == "" {
		return shared.NewDomainError("VALIDATION", "scanner asset type is required", shared.ErrValidation)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[info.AssetType]; exists {
		return fmt.Errorf("%w: scanner for %q", shared.ErrAlreadyExists, info.AssetType)
	}
	r.factories[info.AssetType] = factory
	return nil
}

// New constructs the scanner registered for the given scan id.
func (r *Registry) New(scanID string) (Scanner, error) {
	r.mu.RLock()
	factory, ok := r.factories[scanID]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: scanner for %q", shared.ErrNotFound, scanID)
	}
	return factory(), nil
}

// IDs returns the registered scan ids in stable order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.factories))
	for id := range r.factories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
