package discovery

import (
	"time"

	"github.com/cloudassure/engine/pkg/domain/asset"
)

// Result is the snapshot of all assets found by one scan tick. Each tick
// yields a fresh complete snapshot; assets are never diffed against prior
// ticks. A Result is immutable once published.
type Result struct {
	Timestamp        time.Time
	ScanID           string
	DiscoveredAssets map[string]*asset.Asset
	Failed           bool
	Error            string
}

// NewResult creates a successful discovery result from a list of assets.
// Assets are keyed by their id; a later duplicate id wins.
func NewResult(scanID string, assets []*asset.Asset) *Result {
	discovered := make(map[string]*asset.Asset, len(assets))
	for _, a := range assets {
		discovered[a.ID] = a
	}
	return &Result{
		Timestamp:        time.Now().UTC(),
		ScanID:           scanID,
		DiscoveredAssets: discovered,
	}
}

// NewFailedResult creates a failed discovery result carrying the scanner's
// error message.
func NewFailedResult(scanID string, err error) *Result {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return &Result{
		Timestamp:        time.Now().UTC(),
		ScanID:           scanID,
		DiscoveredAssets: map[string]*asset.Asset{},
		Failed:           true,
		Error:            msg,
	}
}

// Assets returns the discovered assets as a slice.
func (r *Result) Assets() []*asset.Asset {
	out := make([]*asset.Asset, 0, len(r.DiscoveredAssets))
	for _, a := range r.DiscoveredAssets {
		out = append(out, a)
	}
	return out
}
