package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/cloudassure/engine/pkg/ccl"
	"github.com/cloudassure/engine/pkg/domain/rule"
	"github.com/cloudassure/engine/pkg/domain/shared"
)

// RuleRepository implements rule.Repository using PostgreSQL. Conditions
// are stored as their source text and re-parsed on load.
type RuleRepository struct {
	db *DB
}

// NewRuleRepository creates a new rule repository.
func NewRuleRepository(db *DB) *RuleRepository {
	return &RuleRepository{db: db}
}

const ruleSelectQuery = `
	SELECT
		id, name, description, asset_type, conditions, control_ids
	FROM rules
`

func (r *RuleRepository) scanRule(row interface{ Scan(...any) error }) (*rule.Rule, error) {
	var (
		id          string
		name        string
		description sql.NullString
		assetType   string
		conditions  pq.StringArray
		controlIDs  pq.StringArray
	)

	err := row.Scan(&id, &name, &description, &assetType, &conditions, &controlIDs)
	if err != nil {
		return nil, err
	}

	rid, err := shared.IDFromString(id)
	if err != nil {
		return nil, fmt.Errorf("parse rule id: %w", err)
	}

	compiled := make([]*ccl.Condition, 0, len(conditions))
	for _, src := range conditions {
		cond, err := ccl.Parse(src)
		if err != nil {
			return nil, fmt.Errorf("parse stored condition: %w", err)
		}
		compiled = append(compiled, cond)
	}

	ru, err := rule.New(name, description.String, assetType, compiled, controlIDs)
	if err != nil {
		return nil, err
	}
	ru.ID = rid
	return ru, nil
}

// Save creates or replaces a rule.
func (r *RuleRepository) Save(ctx context.Context, ru *rule.Rule) error {
	conditions := make([]string, 0, len(ru.Conditions))
	for _, c := range ru.Conditions {
		conditions = append(conditions, c.SourceText)
	}

	query := `
		INSERT INTO rules (id, name, description, asset_type, conditions, control_ids)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			asset_type = EXCLUDED.asset_type,
			conditions = EXCLUDED.conditions,
			control_ids = EXCLUDED.control_ids
	`

	_, err := r.db.ExecContext(ctx, query,
		ru.ID.String(),
		ru.Name,
		nullString(ru.Description),
		ru.AssetType,
		pq.Array(conditions),
		pq.Array(ru.ControlIDs),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: rule %q", shared.ErrAlreadyExists, ru.Name)
		}
		return fmt.Errorf("save rule: %w", err)
	}

	return nil
}

// GetByID retrieves a rule by ID.
func (r *RuleRepository) GetByID(ctx context.Context, id shared.ID) (*rule.Rule, error) {
	query := ruleSelectQuery + " WHERE id = $1"
	row := r.db.QueryRowContext(ctx, query, id.String())

	ru, err := r.scanRule(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: rule %s", shared.ErrNotFound, id)
		}
		return nil, fmt.Errorf("get rule: %w", err)
	}

	return ru, nil
}

// List lists all rules.
func (r *RuleRepository) List(ctx context.Context) ([]*rule.Rule, error) {
	query := ruleSelectQuery + " ORDER BY name"
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	var rules []*rule.Rule
	for rows.Next() {
		ru, err := r.scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("list rules: %w", err)
		}
		rules = append(rules, ru)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}

	return rules, nil
}

// Delete deletes a rule.
func (r *RuleRepository) Delete(ctx context.Context, id shared.ID) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM rules WHERE id = $1", id.String())
	if err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: rule %s", shared.ErrNotFound, id)
	}

	return nil
}
