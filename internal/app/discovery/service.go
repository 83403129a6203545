// Package discovery schedules scanners and publishes their results.
package discovery

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/cloudassure/engine/internal/config"
	"github.com/cloudassure/engine/internal/metrics"
	"github.com/cloudassure/engine/internal/pubsub"
	"github.com/cloudassure/engine/pkg/domain/discovery"
	"github.com/cloudassure/engine/pkg/domain/shared"
	"github.com/cloudassure/engine/pkg/logger"
)

// ResultCache stores the most recent result per scan for fast reads.
// Implementations may be backed by Redis or kept in memory.
type ResultCache interface {
	SetResult(ctx context.Context, result *discovery.Result) error
	GetResult(ctx context.Context, scanID string) (*discovery.Result, error)
}

// Service owns the scan schedule. Each enabled scan runs in its own
// goroutine at a fixed rate; a global semaphore bounds how many ticks
// execute at once and a rate limiter smooths start-up bursts.
type Service struct {
	cfg      config.DiscoveryConfig
	registry *discovery.Registry
	bus      *pubsub.Bus
	repo     discovery.Repository // optional
	cache    ResultCache          // optional
	log      *logger.Logger
	tracer   trace.Tracer

	sem     *semaphore.Weighted
	limiter *rate.Limiter

	// mu guards scans and jobs and serializes every mutation of a Scan
	// entity, including the tick-side BeginTick/EndTick.
	mu    sync.Mutex
	scans map[string]*discovery.Scan
	jobs  map[string]*job
}

// job is one running schedule loop.
type job struct {
	cancel context.CancelFunc
	done   chan struct{}

	// tickMu serializes ticks of the same scan so a stale tick from a
	// cancelled loop cannot interleave with its replacement.
	tickMu *sync.Mutex
}

// NewService creates the discovery scheduler.
func NewService(
	cfg config.DiscoveryConfig,
	registry *discovery.Registry,
	bus *pubsub.Bus,
	repo discovery.Repository,
	cache ResultCache,
	log *logger.Logger,
) *Service {
	concurrency := cfg.MaxConcurrentScans
	if concurrency < 1 {
		concurrency = 1
	}
	limit := rate.Inf
	if cfg.TickRatePerSecond > 0 {
		limit = rate.Limit(cfg.TickRatePerSecond)
	}
	return &Service{
		cfg:      cfg,
		registry: registry,
		bus:      bus,
		repo:     repo,
		cache:    cache,
		log:      log,
		tracer:   otel.Tracer("discovery"),
		sem:      semaphore.NewWeighted(int64(concurrency)),
		limiter:  rate.NewLimiter(limit, 1),
		scans:    make(map[string]*discovery.Scan),
		jobs:     make(map[string]*job),
	}
}

// Init creates one scan per registered scanner. Persisted scan state is
// restored where a repository is configured; scans are created disabled.
func (s *Service) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.registry.IDs() {
		scanner, err := s.registry.New(id)
		if err != nil {
			return err
		}
		info := scanner.Info()

		scan, err := discovery.NewScan(info.AssetType, info.AssetType, info.Group, info.Service)
		if err != nil {
			return err
		}
		scan.SetInterval(s.cfg.Interval)
		if s.repo != nil {
			if stored, err := s.repo.GetByID(ctx, id); err == nil {
				scan = stored
				scan.Enabled = false
				scan.Discovering = false
			} else if !shared.IsNotFound(err) {
				return fmt.Errorf("restoring scan %s: %w", id, err)
			}
		}
		s.scans[id] = scan
	}

	s.log.Info("discovery initialized", "scans", len(s.scans))
	return nil
}

// GetScans returns copies of all scans ordered by id.
func (s *Service) GetScans() []*discovery.Scan {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*discovery.Scan, 0, len(s.scans))
	for _, scan := range s.scans {
		out = append(out, scan.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// GetScan returns a copy of the scan with the given id.
func (s *Service) GetScan(scanID string) (*discovery.Scan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	scan, ok := s.scans[scanID]
	if !ok {
		return nil, shared.NewDomainError("NOT_FOUND", fmt.Sprintf("scan %s not found", scanID), shared.ErrNotFound)
	}
	return scan.Clone(), nil
}

// EnableScan starts the scan's schedule loop. Enabling an already enabled
// scan restarts its loop; exactly one loop per scan runs afterwards.
func (s *Service) EnableScan(ctx context.Context, scanID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	scan, ok := s.scans[scanID]
	if !ok {
		return shared.NewDomainError("NOT_FOUND", fmt.Sprintf("scan %s not found", scanID), shared.ErrNotFound)
	}

	// The replacement loop shares the old loop's tick mutex so a stale
	// in-flight tick finishes before the new loop's first tick starts.
	tickMu := &sync.Mutex{}
	if old, ok := s.jobs[scanID]; ok {
		old.cancel()
		tickMu = old.tickMu
	}

	scanner, err := s.registry.New(scanID)
	if err != nil {
		return err
	}

	scan.Enable()
	s.persist(ctx, scan)

	loopCtx, cancel := context.WithCancel(context.Background())
	j := &job{cancel: cancel, done: make(chan struct{}), tickMu: tickMu}
	s.jobs[scanID] = j
	metrics.ScansEnabled.Set(float64(len(s.jobs)))

	go s.run(loopCtx, j, scan, scanner)

	s.log.Info("scan enabled", "scan_id", scanID, "interval", scan.Interval)
	return nil
}

// DisableScan stops the scan's schedule loop. A tick already in flight
// finishes but its result is not published.
func (s *Service) DisableScan(ctx context.Context, scanID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	scan, ok := s.scans[scanID]
	if !ok {
		return shared.NewDomainError("NOT_FOUND", fmt.Sprintf("scan %s not found", scanID), shared.ErrNotFound)
	}

	if j, ok := s.jobs[scanID]; ok {
		j.cancel()
		delete(s.jobs, scanID)
	}
	metrics.ScansEnabled.Set(float64(len(s.jobs)))

	scan.Disable()
	s.persist(ctx, scan)

	s.log.Info("scan disabled", "scan_id", scanID)
	return nil
}

// Stop cancels every schedule loop and waits for in-flight ticks.
func (s *Service) Stop() {
	s.mu.Lock()
	jobs := make([]*job, 0, len(s.jobs))
	for id, j := range s.jobs {
		j.cancel()
		jobs = append(jobs, j)
		delete(s.jobs, id)
	}
	metrics.ScansEnabled.Set(0)
	s.mu.Unlock()

	for _, j := range jobs {
		<-j.done
	}
	s.log.Info("discovery stopped")
}

// run is one scan's schedule loop. The first tick fires immediately;
// subsequent delays are computed from the tick's start so a slow scanner
// does not stretch the period.
func (s *Service) run(ctx context.Context, j *job, scan *discovery.Scan, scanner discovery.Scanner) {
	defer close(j.done)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		start := time.Now()
		s.tick(ctx, j, scan, scanner)

		s.mu.Lock()
		delay := scan.NextDelay(start) - time.Since(start)
		s.mu.Unlock()
		if delay < 0 {
			delay = 0
		}
		timer.Reset(delay)
	}
}

// tick runs one discovery pass. A failing or panicking scanner produces a
// failed result; the schedule itself never dies.
func (s *Service) tick(ctx context.Context, j *job, scan *discovery.Scan, scanner discovery.Scanner) {
	if err := s.limiter.Wait(ctx); err != nil {
		return
	}
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return
	}
	defer s.sem.Release(1)

	j.tickMu.Lock()
	defer j.tickMu.Unlock()

	if ctx.Err() != nil {
		return
	}

	ctx, span := s.tracer.Start(ctx, "discovery.tick",
		trace.WithAttributes(attribute.String("scan.id", scan.ID())))
	defer span.End()

	s.mu.Lock()
	scan.BeginTick()
	s.mu.Unlock()
	start := time.Now()

	result := s.discover(ctx, scan, scanner)

	duration := time.Since(start)
	metrics.DiscoveryTickDuration.WithLabelValues(scan.ID()).Observe(duration.Seconds())
	status := "ok"
	if result.Failed {
		status = "failed"
		s.log.Error("discovery tick failed",
			"scan_id", scan.ID(), "duration", duration, "error", result.Error)
	} else {
		metrics.DiscoveredAssets.WithLabelValues(scan.ID()).Set(float64(len(result.DiscoveredAssets)))
		s.log.Debug("discovery tick finished",
			"scan_id", scan.ID(), "assets", len(result.DiscoveredAssets), "duration", duration)
	}
	metrics.DiscoveryTicksTotal.WithLabelValues(scan.ID(), status).Inc()

	s.mu.Lock()
	scan.EndTick(result)
	snapshot := scan.Clone()
	s.mu.Unlock()

	// A cancelled loop must not publish a late result.
	if ctx.Err() != nil {
		return
	}

	if err := s.bus.Publish(ctx, result); err != nil {
		s.log.Error("failed to publish discovery result", "scan_id", scan.ID(), "error", err)
		return
	}
	metrics.ResultsPublished.Inc()

	s.persist(ctx, snapshot)
	if s.cache != nil {
		if err := s.cache.SetResult(ctx, result); err != nil {
			s.log.Warn("failed to cache discovery result", "scan_id", scan.ID(), "error", err)
		}
	}
}

// discover invokes the scanner, converting errors and panics into a
// failed result.
func (s *Service) discover(ctx context.Context, scan *discovery.Scan, scanner discovery.Scanner) (result *discovery.Result) {
	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprint(r)
			if msg == "" {
				msg = fmt.Sprintf("%T", r)
			}
			result = discovery.NewFailedResult(scan.ID(), fmt.Errorf("scanner panic: %s", msg))
		}
	}()

	assets, err := scanner.DiscoverAssets(ctx)
	if err != nil {
		return discovery.NewFailedResult(scan.ID(), err)
	}
	return discovery.NewResult(scan.ID(), assets)
}

func (s *Service) persist(ctx context.Context, scan *discovery.Scan) {
	if s.repo == nil {
		return
	}
	if err := s.repo.Save(ctx, scan); err != nil {
		s.log.Warn("failed to persist scan state", "scan_id", scan.ID(), "error", err)
	}
}
