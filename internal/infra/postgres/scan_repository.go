package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cloudassure/engine/pkg/domain/discovery"
	"github.com/cloudassure/engine/pkg/domain/shared"
)

// ScanRepository implements discovery.Repository using PostgreSQL.
type ScanRepository struct {
	db *DB
}

// NewScanRepository creates a new scan repository.
func NewScanRepository(db *DB) *ScanRepository {
	return &ScanRepository{db: db}
}

const scanSelectQuery = `
	SELECT
		asset_type, scanner_name, scan_group, service, interval_seconds,
		schedule_cron, enabled, total_runs, successful_runs, failed_runs,
		last_error, created_at, updated_at
	FROM scans
`

func (r *ScanRepository) scanRow(row interface{ Scan(...any) error }) (*discovery.Scan, error) {
	var (
		assetType       string
		scannerName     string
		group           string
		service         string
		intervalSeconds int64
		scheduleCron    sql.NullString
		enabled         bool
		totalRuns       int
		successfulRuns  int
		failedRuns      int
		lastError       sql.NullString
		createdAt       time.Time
		updatedAt       time.Time
	)

	err := row.Scan(&assetType, &scannerName, &group, &service, &intervalSeconds,
		&scheduleCron, &enabled, &totalRuns, &successfulRuns, &failedRuns,
		&lastError, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	return &discovery.Scan{
		AssetType:      assetType,
		ScannerName:    scannerName,
		Group:          group,
		Service:        service,
		Interval:       time.Duration(intervalSeconds) * time.Second,
		ScheduleCron:   scheduleCron.String,
		Enabled:        enabled,
		TotalRuns:      totalRuns,
		SuccessfulRuns: successfulRuns,
		FailedRuns:     failedRuns,
		LastError:      lastError.String,
		CreatedAt:      createdAt,
		UpdatedAt:      updatedAt,
	}, nil
}

// Save creates or replaces a scan.
func (r *ScanRepository) Save(ctx context.Context, s *discovery.Scan) error {
	query := `
		INSERT INTO scans (
			asset_type, scanner_name, scan_group, service, interval_seconds,
			schedule_cron, enabled, total_runs, successful_runs, failed_runs,
			last_error, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (asset_type) DO UPDATE SET
			scanner_name = EXCLUDED.scanner_name,
			scan_group = EXCLUDED.scan_group,
			service = EXCLUDED.service,
			interval_seconds = EXCLUDED.interval_seconds,
			schedule_cron = EXCLUDED.schedule_cron,
			enabled = EXCLUDED.enabled,
			total_runs = EXCLUDED.total_runs,
			successful_runs = EXCLUDED.successful_runs,
			failed_runs = EXCLUDED.failed_runs,
			last_error = EXCLUDED.last_error,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		s.AssetType,
		s.ScannerName,
		s.Group,
		s.Service,
		int64(s.Interval/time.Second),
		nullString(s.ScheduleCron),
		s.Enabled,
		s.TotalRuns,
		s.SuccessfulRuns,
		s.FailedRuns,
		nullString(s.LastError),
		s.CreatedAt,
		s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save scan: %w", err)
	}

	return nil
}

// GetByID retrieves a scan by its asset type.
func (r *ScanRepository) GetByID(ctx context.Context, id string) (*discovery.Scan, error) {
	query := scanSelectQuery + " WHERE asset_type = $1"
	row := r.db.QueryRowContext(ctx, query, id)

	s, err := r.scanRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: scan %q", shared.ErrNotFound, id)
		}
		return nil, fmt.Errorf("get scan: %w", err)
	}

	return s, nil
}

// List lists all scans.
func (r *ScanRepository) List(ctx context.Context) ([]*discovery.Scan, error) {
	query := scanSelectQuery + " ORDER BY asset_type"
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list scans: %w", err)
	}
	defer rows.Close()

	var scans []*discovery.Scan
	for rows.Next() {
		s, err := r.scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("list scans: %w", err)
		}
		scans = append(scans, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list scans: %w", err)
	}

	return scans, nil
}

// Delete deletes a scan.
func (r *ScanRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM scans WHERE asset_type = $1", id)
	if err != nil {
		return fmt.Errorf("delete scan: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete scan: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: scan %q", shared.ErrNotFound, id)
	}

	return nil
}
