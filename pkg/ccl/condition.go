package ccl

import (
	"github.com/cloudassure/engine/pkg/domain/asset"
)

// Condition is one compiled rule line: an asset-type selector bound to an
// expression. It is immutable once parsed. SourceText is retained verbatim
// for persistence and display; the compiled expression is never persisted
// and always re-parsed from SourceText on load.
type Condition struct {
	SourceText string
	AssetType  AssetTypeSelector
	Expression Expression
}

// AppliesTo reports whether the condition's selector matches the asset.
func (c *Condition) AppliesTo(a *asset.Asset) bool {
	return c.AssetType.Matches(a)
}

// Evaluate runs the condition's expression against the asset's properties.
func (c *Condition) Evaluate(a *asset.Asset) bool {
	return c.Expression.Evaluate(a.Properties)
}

// String returns the canonical source form of the condition. Parsing the
// result yields a condition that evaluates identically.
func (c *Condition) String() string {
	return c.AssetType.String() + " " + kwHas + " " + c.Expression.String()
}
