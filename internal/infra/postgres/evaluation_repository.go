package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/cloudassure/engine/pkg/ccl"
	"github.com/cloudassure/engine/pkg/domain/asset"
	"github.com/cloudassure/engine/pkg/domain/rule"
	"github.com/cloudassure/engine/pkg/domain/shared"
)

// EvaluationRepository implements rule.ResultRepository using PostgreSQL.
// The evaluated property snapshot is stored as JSONB; failed conditions as
// their source text.
type EvaluationRepository struct {
	db    *DB
	rules rule.Repository
}

// NewEvaluationRepository creates a new evaluation result repository. The
// rule repository resolves the rule a stored result refers to.
func NewEvaluationRepository(db *DB, rules rule.Repository) *EvaluationRepository {
	return &EvaluationRepository{db: db, rules: rules}
}

const evaluationSelectQuery = `
	SELECT
		id, rule_id, asset_id, evaluated_at, properties, failed_conditions
	FROM rule_evaluations
`

func (r *EvaluationRepository) scanResult(ctx context.Context, row interface{ Scan(...any) error }) (*rule.EvaluationResult, error) {
	var (
		id         string
		ruleID     string
		assetID    string
		timestamp  time.Time
		properties []byte
		failed     pq.StringArray
	)

	err := row.Scan(&id, &ruleID, &assetID, &timestamp, &properties, &failed)
	if err != nil {
		return nil, err
	}

	rid, err := shared.IDFromString(id)
	if err != nil {
		return nil, fmt.Errorf("parse result id: %w", err)
	}
	ruleRef, err := shared.IDFromString(ruleID)
	if err != nil {
		return nil, fmt.Errorf("parse rule id: %w", err)
	}

	ru, err := r.rules.GetByID(ctx, ruleRef)
	if err != nil {
		return nil, fmt.Errorf("resolve rule of result: %w", err)
	}

	props := asset.PropertyBag{}
	if err := fromJSONB(properties, &props); err != nil {
		return nil, fmt.Errorf("decode property snapshot: %w", err)
	}

	conditions := make([]*ccl.Condition, 0, len(failed))
	for _, src := range failed {
		cond, err := ccl.Parse(src)
		if err != nil {
			return nil, fmt.Errorf("parse stored condition: %w", err)
		}
		conditions = append(conditions, cond)
	}

	return &rule.EvaluationResult{
		ID:                  rid,
		Timestamp:           timestamp,
		Rule:                ru,
		AssetID:             assetID,
		EvaluatedProperties: props,
		FailedConditions:    conditions,
	}, nil
}

// Save persists an evaluation result.
func (r *EvaluationRepository) Save(ctx context.Context, res *rule.EvaluationResult) error {
	properties, err := toJSONB(res.EvaluatedProperties)
	if err != nil {
		return fmt.Errorf("encode property snapshot: %w", err)
	}

	failed := make([]string, 0, len(res.FailedConditions))
	for _, c := range res.FailedConditions {
		failed = append(failed, c.SourceText)
	}

	query := `
		INSERT INTO rule_evaluations (
			id, rule_id, asset_id, evaluated_at, properties, failed_conditions
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`

	_, err = r.db.ExecContext(ctx, query,
		res.ID.String(),
		res.Rule.ID.String(),
		res.AssetID,
		res.Timestamp,
		properties,
		pq.Array(failed),
	)
	if err != nil {
		return fmt.Errorf("save evaluation result: %w", err)
	}

	return nil
}

// GetByID retrieves an evaluation result by ID.
func (r *EvaluationRepository) GetByID(ctx context.Context, id shared.ID) (*rule.EvaluationResult, error) {
	query := evaluationSelectQuery + " WHERE id = $1"
	row := r.db.QueryRowContext(ctx, query, id.String())

	res, err := r.scanResult(ctx, row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: evaluation result %s", shared.ErrNotFound, id)
		}
		return nil, fmt.Errorf("get evaluation result: %w", err)
	}

	return res, nil
}

// ListByRule lists results for one rule, newest first.
func (r *EvaluationRepository) ListByRule(ctx context.Context, ruleID shared.ID) ([]*rule.EvaluationResult, error) {
	query := evaluationSelectQuery + " WHERE rule_id = $1 ORDER BY evaluated_at DESC"
	rows, err := r.db.QueryContext(ctx, query, ruleID.String())
	if err != nil {
		return nil, fmt.Errorf("list evaluation results: %w", err)
	}
	defer rows.Close()

	var results []*rule.EvaluationResult
	for rows.Next() {
		res, err := r.scanResult(ctx, rows)
		if err != nil {
			return nil, fmt.Errorf("list evaluation results: %w", err)
		}
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list evaluation results: %w", err)
	}

	return results, nil
}

// Delete deletes an evaluation result.
func (r *EvaluationRepository) Delete(ctx context.Context, id shared.ID) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM rule_evaluations WHERE id = $1", id.String())
	if err != nil {
		return fmt.Errorf("delete evaluation result: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete evaluation result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: evaluation result %s", shared.ErrNotFound, id)
	}

	return nil
}
