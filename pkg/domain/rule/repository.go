package rule

import (
	"context"

	"github.com/cloudassure/engine/pkg/domain/shared"
)

// Repository defines the interface for rule persistence. Only condition
// source text is stored; conditions are re-parsed on load.
type Repository interface {
	// Save creates or replaces a rule.
	Save(ctx context.Context, r *Rule) error

	// GetByID retrieves a rule by ID.
	GetByID(ctx context.Context, id shared.ID) (*Rule, error)

	// List lists all rules.
	List(ctx context.Context) ([]*Rule, error)

	// Delete deletes a rule.
	Delete(ctx context.Context, id shared.ID) error
}

// ResultRepository defines the interface for evaluation result persistence.
type ResultRepository interface {
	// Save persists an evaluation result.
	Save(ctx context.Context, res *EvaluationResult) error

	// GetByID retrieves an evaluation result by ID.
	GetByID(ctx context.Context, id shared.ID) (*EvaluationResult, error)

	// ListByRule lists results for one rule.
	ListByRule(ctx context.Context, ruleID shared.ID) ([]*EvaluationResult, error)

	// Delete deletes an evaluation result.
	Delete(ctx context.Context, id shared.ID) error
}
