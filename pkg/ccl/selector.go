package ccl

import (
	"fmt"

	"github.com/cloudassure/engine/pkg/domain/asset"
)

// AssetTypeSelector decides which assets a condition applies to. Matching
// is read-only; a selector never mutates the asset it inspects.
type AssetTypeSelector interface {
	// Matches reports whether the condition applies to the asset.
	Matches(a *asset.Asset) bool

	// String returns the canonical source form of the selector.
	String() string
}

// SimpleSelector matches assets by their declared type string.
type SimpleSelector struct {
	TypeName string
}

// Matches implements AssetTypeSelector.
func (s *SimpleSelector) Matches(a *asset.Asset) bool {
	return a.Type == s.TypeName
}

func (s *SimpleSelector) String() string {
	return s.TypeName
}

// FilteredSelector matches assets where a named field passes an inner
// expression, independent of the asset's declared type. It backs "virtual"
// asset types that cut across providers.
type FilteredSelector struct {
	TypeName string
	Field    string
	Filter   Expression
}

// Matches implements AssetTypeSelector.
func (s *FilteredSelector) Matches(a *asset.Asset) bool {
	return s.Filter.Evaluate(a.Properties)
}

func (s *FilteredSelector) String() string {
	return fmt.Sprintf("%s(%s) %s", s.TypeName, s.Field, s.Filter)
}

// GroupedSelector behaves exactly like FilteredSelector and exists only so
// the bracket syntax form stays distinguishable after parsing.
type GroupedSelector struct {
	TypeName string
	Field    string
	Filter   Expression
}

// Matches implements AssetTypeSelector.
func (s *GroupedSelector) Matches(a *asset.Asset) bool {
	return s.Filter.Evaluate(a.Properties)
}

func (s *GroupedSelector) String() string {
	return fmt.Sprintf("%s[%s] %s", s.TypeName, s.Field, s.Filter)
}
