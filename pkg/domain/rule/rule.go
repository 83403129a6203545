// Package rule defines security rules and the result of evaluating them
// against discovered assets.
package rule

import (
	"time"

	"github.com/cloudassure/engine/pkg/ccl"
	"github.com/cloudassure/engine/pkg/domain/asset"
	"github.com/cloudassure/engine/pkg/domain/shared"
)

// Rule is a named set of conditions that must all hold for an asset of the
// matching type to be compliant.
type Rule struct {
	ID          shared.ID
	Name        string
	Description string
	AssetType   string
	Conditions  []*ccl.Condition
	ControlIDs  []string
}

// New creates a new rule from compiled conditions.
func New(name, description, assetType string, conditions []*ccl.Condition, controlIDs []string) (*Rule, error) {
	if name == "" {
		return nil, shared.NewDomainError("VALIDATION", "name is required", shared.ErrValidation)
	}
	if len(conditions) == 0 {
		return nil, shared.NewDomainError("VALIDATION", "at least one condition is required", shared.ErrValidation)
	}
	if assetType == "" {
		assetType = selectorTypeName(conditions[0].AssetType)
	}
	if controlIDs == nil {
		controlIDs = []string{}
	}
	return &Rule{
		ID:          shared.NewID(),
		Name:        name,
		Description: description,
		AssetType:   assetType,
		Conditions:  conditions,
		ControlIDs:  controlIDs,
	}, nil
}

// AppliesTo reports whether any of the rule's condition selectors matches
// the asset.
func (r *Rule) AppliesTo(a *asset.Asset) bool {
	for _, c := range r.Conditions {
		if c.AppliesTo(a) {
			return true
		}
	}
	return false
}

// Evaluate runs every condition against the asset's properties and records
// the failing ones. It never fails: missing or oddly-shaped properties are
// evaluation outcomes, not errors.
func (r *Rule) Evaluate(a *asset.Asset) *EvaluationResult {
	var failed []*ccl.Condition
	for _, c := range r.Conditions {
		if !c.Evaluate(a) {
			failed = append(failed, c)
		}
	}
	return newEvaluationResult(r, a, failed)
}

func selectorTypeName(sel ccl.AssetTypeSelector) string {
	switch s := sel.(type) {
	case *ccl.SimpleSelector:
		return s.TypeName
	case *ccl.FilteredSelector:
		return s.TypeName
	case *ccl.GroupedSelector:
		return s.TypeName
	default:
		return ""
	}
}

// EvaluationResult is the immutable outcome of evaluating one rule against
// one asset. A later evaluation of the same pair supersedes it; results are
// never mutated in place.
type EvaluationResult struct {
	ID                  shared.ID
	Timestamp           time.Time
	Rule                *Rule
	AssetID             string
	EvaluatedProperties asset.PropertyBag
	FailedConditions    []*ccl.Condition
}

func newEvaluationResult(r *Rule, a *asset.Asset, failed []*ccl.Condition) *EvaluationResult {
	return &EvaluationResult{
		ID:                  shared.NewID(),
		Timestamp:           time.Now().UTC(),
		Rule:                r,
		AssetID:             a.ID,
		EvaluatedProperties: a.Properties.Copy(),
		FailedConditions:    failed,
	}
}

// IsOk reports whether every condition passed.
func (e *EvaluationResult) IsOk() bool {
	return len(e.FailedConditions) == 0
}
