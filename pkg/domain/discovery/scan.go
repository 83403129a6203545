// Package discovery defines the Scan entity, discovery results and the
// Scanner collaborator interface.
package discovery

import (
	"time"

	"github.com/robfig/cron/v3"

	"github.com/cloudassure/engine/pkg/domain/shared"
)

// DefaultInterval is the fixed-rate discovery interval used when a scan
// does not configure its own.
const DefaultInterval = 300 * time.Second

// Scan is the schedulable configuration wrapping one scanner. The asset
// type acts as the scan's id; one Scan exists per registered scanner kind.
type Scan struct {
	AssetType   string
	ScannerName string
	Group       string
	Service     string

	Interval time.Duration
	// ScheduleCron optionally overrides the fixed interval with a cron
	// expression (standard five-field form).
	ScheduleCron string

	Enabled     bool
	Discovering bool
	LastResult  *Result

	// Run statistics.
	TotalRuns      int
	SuccessfulRuns int
	FailedRuns     int
	LastError      string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewScan creates a scan for one scanner kind.
func NewScan(assetType, scannerName, group, service string) (*Scan, error) {
	if assetType == "" {
		return nil, shared.NewDomainError("VALIDATION", "asset type is required", shared.ErrValidation)
	}
	if scannerName == "" {
		scannerName = assetType
	}
	now := time.Now()
	return &Scan{
		AssetType:   assetType,
		ScannerName: scannerName,
		Group:       group,
		Service:     service,
		Interval:    DefaultInterval,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// ID returns the scan's identifier, which is its asset type.
func (s *Scan) ID() string {
	return s.AssetType
}

// Clone returns a copy of the scan. The last result is shared; results
// are immutable once published.
func (s *Scan) Clone() *Scan {
	clone := *s
	return &clone
}

// SetInterval overrides the fixed-rate interval.
func (s *Scan) SetInterval(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	s.Interval = interval
	s.UpdatedAt = time.Now()
}

// SetScheduleCron sets a cron expression overriding the fixed interval.
func (s *Scan) SetScheduleCron(expr string) error {
	if expr != "" {
		if _, err := cron.ParseStandard(expr); err != nil {
			return shared.NewDomainError("VALIDATION", "invalid cron expression", err)
		}
	}
	s.ScheduleCron = expr
	s.UpdatedAt = time.Now()
	return nil
}

// NextDelay returns how long to wait after now until the next tick.
func (s *Scan) NextDelay(now time.Time) time.Duration {
	if s.ScheduleCron != "" {
		if schedule, err := cron.ParseStandard(s.ScheduleCron); err == nil {
			return schedule.Next(now).Sub(now)
		}
	}
	return s.Interval
}

// Enable marks the scan enabled.
func (s *Scan) Enable() {
	s.Enabled = true
	s.UpdatedAt = time.Now()
}

// Disable marks the scan disabled.
func (s *Scan) Disable() {
	s.Enabled = false
	s.Discovering = false
	s.UpdatedAt = time.Now()
}

// BeginTick marks the scan as discovering for the duration of one tick.
func (s *Scan) BeginTick() {
	s.Discovering = true
	s.UpdatedAt = time.Now()
}

// EndTick records the tick's result. The last result is replaced on every
// tick regardless of success or failure.
func (s *Scan) EndTick(result *Result) {
	s.Discovering = false
	s.LastResult = result
	s.TotalRuns++
	if result.Failed {
		s.FailedRuns++
		s.LastError = result.Error
	} else {
		s.SuccessfulRuns++
		s.LastError = ""
	}
	s.UpdatedAt = time.Now()
}
