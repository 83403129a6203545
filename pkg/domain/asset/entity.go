// Package asset defines the Asset entity and the PropertyBag structure
// all condition expressions query.
package asset

import (
	"fmt"

	"github.com/cloudassure/engine/pkg/domain/shared"
)

// Asset represents a structured snapshot of one discovered cloud resource.
// Identity is the ID within its discovery result; assets are recreated on
// every scan tick, never diffed against prior ticks.
type Asset struct {
	Type       string
	ID         string
	Name       string
	Properties PropertyBag
}

// New creates a new Asset.
func New(assetType, id, name string, properties PropertyBag) (*Asset, error) {
	if assetType == "" {
		return nil, fmt.Errorf("%w: asset type is required", shared.ErrValidation)
	}
	if id == "" {
		return nil, fmt.Errorf("%w: asset id is required", shared.ErrValidation)
	}
	if properties == nil {
		properties = PropertyBag{}
	}
	return &Asset{
		Type:       assetType,
		ID:         id,
		Name:       name,
		Properties: properties,
	}, nil
}

// Property resolves a dotted field path against the asset's properties.
func (a *Asset) Property(path string) any {
	return a.Properties.Resolve(path)
}
