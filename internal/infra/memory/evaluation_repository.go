package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/cloudassure/engine/pkg/domain/rule"
	"github.com/cloudassure/engine/pkg/domain/shared"
)

// EvaluationRepository is an in-memory rule.ResultRepository.
type EvaluationRepository struct {
	mu      sync.RWMutex
	results map[shared.ID]*rule.EvaluationResult
}

// NewEvaluationRepository creates an empty in-memory result repository.
func NewEvaluationRepository() *EvaluationRepository {
	return &EvaluationRepository{results: make(map[shared.ID]*rule.EvaluationResult)}
}

// Save persists an evaluation result.
func (r *EvaluationRepository) Save(ctx context.Context, res *rule.EvaluationResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results[res.ID] = res
	return nil
}

// GetByID retrieves an evaluation result by ID.
func (r *EvaluationRepository) GetByID(ctx context.Context, id shared.ID) (*rule.EvaluationResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.results[id]
	if !ok {
		return nil, fmt.Errorf("%w: evaluation result %s", shared.ErrNotFound, id)
	}
	return res, nil
}

// ListByRule lists results for one rule.
func (r *EvaluationRepository) ListByRule(ctx context.Context, ruleID shared.ID) ([]*rule.EvaluationResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*rule.EvaluationResult
	for _, res := range r.results {
		if res.Rule != nil && res.Rule.ID == ruleID {
			out = append(out, res)
		}
	}
	return out, nil
}

// Delete deletes an evaluation result.
func (r *EvaluationRepository) Delete(ctx context.Context, id shared.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.results[id]; !ok {
		return fmt.Errorf("%w: evaluation result %s", shared.ErrNotFound, id)
	}
	delete(r.results, id)
	return nil
}
