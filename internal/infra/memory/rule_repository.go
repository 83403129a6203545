package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/cloudassure/engine/pkg/domain/rule"
	"github.com/cloudassure/engine/pkg/domain/shared"
)

// RuleRepository is an in-memory rule.Repository.
type RuleRepository struct {
	mu    sync.RWMutex
	rules map[shared.ID]*rule.Rule
}

// NewRuleRepository creates an empty in-memory rule repository.
func NewRuleRepository() *RuleRepository {
	return &RuleRepository{rules: make(map[shared.ID]*rule.Rule)}
}

// Save creates or replaces a rule.
func (r *RuleRepository) Save(ctx context.Context, ru *rule.Rule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules[ru.ID] = ru
	return nil
}

// GetByID retrieves a rule by ID.
func (r *RuleRepository) GetByID(ctx context.Context, id shared.ID) (*rule.Rule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ru, ok := r.rules[id]
	if !ok {
		return nil, fmt.Errorf("%w: rule %s", shared.ErrNotFound, id)
	}
	return ru, nil
}

// List lists all rules.
func (r *RuleRepository) List(ctx context.Context) ([]*rule.Rule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*rule.Rule, 0, len(r.rules))
	for _, ru := range r.rules {
		out = append(out, ru)
	}
	return out, nil
}

// Delete deletes a rule.
func (r *RuleRepository) Delete(ctx context.Context, id shared.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rules[id]; !ok {
		return fmt.Errorf("%w: rule %s", shared.ErrNotFound, id)
	}
	delete(r.rules, id)
	return nil
}
