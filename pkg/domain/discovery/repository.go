package discovery

import "context"

// Repository defines the interface for scan persistence. Scans are keyed
// by asset type.
type Repository interface {
	// Save creates or replaces a scan.
	Save(ctx context.Context, s *Scan) error

	// GetByID retrieves a scan by its asset type.
	GetByID(ctx context.Context, id string) (*Scan, error)

	// List lists all scans.
	List(ctx context.Context) ([]*Scan, error)

	// Delete deletes a scan.
	Delete(ctx context.Context, id string) error
}
