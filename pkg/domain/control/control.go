// Package control defines compliance controls and their fulfillment state.
package control

import (
	"github.com/cloudassure/engine/pkg/domain/asset"
	"github.com/cloudassure/engine/pkg/domain/rule"
)

// Fulfillment represents the compliance state of a control.
type Fulfillment string

const (
	// FulfillmentNotEvaluated means no rule of the control has been
	// evaluated against any asset yet.
	FulfillmentNotEvaluated Fulfillment = "not_evaluated"
	// FulfillmentGood means every in-scope asset passed every rule.
	FulfillmentGood Fulfillment = "good"
	// FulfillmentWarning means at least one in-scope asset failed a rule.
	FulfillmentWarning Fulfillment = "warning"
)

// worse folds two fulfillment states to the worse one. Warning dominates,
// NotEvaluated only survives when nothing was evaluated.
func worse(a, b Fulfillment) Fulfillment {
	if a == FulfillmentWarning || b == FulfillmentWarning {
		return FulfillmentWarning
	}
	if a == FulfillmentGood || b == FulfillmentGood {
		return FulfillmentGood
	}
	return FulfillmentNotEvaluated
}

// Control is a compliance objective backed by one or more rules.
type Control struct {
	ControlID   string
	Name        string
	Domain      string
	Description string
	Rules       []*rule.Rule
	Fulfillment Fulfillment
	Active      bool
	Automated   bool
}

// New creates a new control. A control is automated when at least one rule
// backs it.
func New(controlID, name, domain, description string, rules []*rule.Rule) *Control {
	if rules == nil {
		rules = []*rule.Rule{}
	}
	return &Control{
		ControlID:   controlID,
		Name:        name,
		Domain:      domain,
		Description: description,
		Rules:       rules,
		Fulfillment: FulfillmentNotEvaluated,
		Automated:   len(rules) > 0,
	}
}

// Evaluate recomputes the control's fulfillment by evaluating all of its
// rules against all currently known assets the rules apply to. The worst
// observed outcome wins: any failing evaluation demotes the control.
func (c *Control) Evaluate(assets []*asset.Asset) Fulfillment {
	c.Fulfillment = FulfillmentNotEvaluated
	for _, r := range c.Rules {
		for _, a := range assets {
			if !r.AppliesTo(a) {
				continue
			}
			res := r.Evaluate(a)
			c.Fulfillment = worse(c.Fulfillment, fulfillmentOf(res))
		}
	}
	return c.Fulfillment
}

// Fold recomputes fulfillment from pre-computed evaluation results instead
// of re-running the rules.
func (c *Control) Fold(results []*rule.EvaluationResult) Fulfillment {
	c.Fulfillment = FulfillmentNotEvaluated
	for _, res := range results {
		c.Fulfillment = worse(c.Fulfillment, fulfillmentOf(res))
	}
	return c.Fulfillment
}

// IsGood reports whether the control is currently fulfilled.
func (c *Control) IsGood() bool {
	return c.Fulfillment == FulfillmentGood
}

// SetActive toggles whether the control counts toward certification
// compliance.
func (c *Control) SetActive(active bool) {
	c.Active = active
}

func fulfillmentOf(res *rule.EvaluationResult) Fulfillment {
	if res.IsOk() {
		return FulfillmentGood
	}
	return FulfillmentWarning
}
