// Package certification defines certifications: named sets of compliance
// controls, e.g. a compliance framework.
package certification

import (
	"github.com/cloudassure/engine/pkg/domain/control"
)

// Certification groups controls under a published compliance framework. It
// carries no state of its own; its compliance view is always derived from
// the current fulfillment of its controls, never cached.
type Certification struct {
	ID          string
	Description string
	Publisher   string
	Website     string
	Controls    []*control.Control
}

// New creates a new certification.
func New(id, description, publisher, website string, controls []*control.Control) *Certification {
	if controls == nil {
		controls = []*control.Control{}
	}
	return &Certification{
		ID:          id,
		Description: description,
		Publisher:   publisher,
		Website:     website,
		Controls:    controls,
	}
}

// Compliance summarizes the current control fulfillment of a
// certification.
type Compliance struct {
	CertificationID string
	Good            int
	Warning         int
	NotEvaluated    int
	Inactive        int
	Compliant       bool
}

// Compliance recomputes the certification's compliance view from current
// control fulfillment. Only active controls count; the certification is
// compliant when every active automated control is good.
func (c *Certification) Compliance() Compliance {
	view := Compliance{CertificationID: c.ID, Compliant: true}
	for _, ctrl := range c.Controls {
		if !ctrl.Active {
			view.Inactive++
			continue
		}
		switch ctrl.Fulfillment {
		case control.FulfillmentGood:
			view.Good++
		case control.FulfillmentWarning:
			view.Warning++
			view.Compliant = false
		default:
			view.NotEvaluated++
			if ctrl.Automated {
				view.Compliant = false
			}
		}
	}
	return view
}

// Control returns the control with the given id, or nil.
func (c *Certification) Control(controlID string) *control.Control {
	for _, ctrl := range c.Controls {
		if ctrl.ControlID == controlID {
			return ctrl
		}
	}
	return nil
}
