// Package assurance evaluates discovered assets against the loaded rules
// and derives control and certification fulfillment.
package assurance

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/cloudassure/engine/internal/metrics"
	"github.com/cloudassure/engine/pkg/domain/asset"
	"github.com/cloudassure/engine/pkg/domain/certification"
	"github.com/cloudassure/engine/pkg/domain/control"
	"github.com/cloudassure/engine/pkg/domain/discovery"
	"github.com/cloudassure/engine/pkg/domain/rule"
	"github.com/cloudassure/engine/pkg/domain/shared"
	"github.com/cloudassure/engine/pkg/logger"
)

// SubscriberName identifies the rule engine on the discovery bus.
const SubscriberName = "rule-engine"

// Service is the rule-evaluation subscriber. It keeps the latest asset
// snapshot per scan, re-evaluates every matching rule when a discovery
// result arrives, and folds the outcomes into control fulfillment.
type Service struct {
	log     *logger.Logger
	tracer  trace.Tracer
	results rule.ResultRepository // optional

	mu             sync.RWMutex
	rules          []*rule.Rule
	certifications []*certification.Certification
	controls       map[string]*control.Control
	assets         map[string]map[string]*asset.Asset // scan id -> asset id -> asset
	latest         map[string]*rule.EvaluationResult  // rule id + asset id -> latest result
}

// NewService creates the assurance service. results may be nil when
// evaluation results are not persisted.
func NewService(results rule.ResultRepository, log *logger.Logger) *Service {
	return &Service{
		log:      log,
		tracer:   otel.Tracer("assurance"),
		results:  results,
		controls: make(map[string]*control.Control),
		assets:   make(map[string]map[string]*asset.Asset),
		latest:   make(map[string]*rule.EvaluationResult),
	}
}

// Configure installs the compiled rules and certifications, replacing any
// previous configuration. Evaluation state is kept; the next discovery
// result re-evaluates under the new rules.
func (s *Service) Configure(rules []*rule.Rule, certs []*certification.Certification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = rules
	s.certifications = certs
	s.controls = make(map[string]*control.Control)
	for _, cert := range certs {
		for _, c := range cert.Controls {
			s.controls[c.ControlID] = c
		}
	}
}

// Name implements pubsub.Subscriber.
func (s *Service) Name() string {
	return SubscriberName
}

// OnNext implements pubsub.Subscriber. It replaces the asset snapshot of
// the result's scan, evaluates every rule whose selector matches against
// each asset, and recomputes control fulfillment. Evaluation of one result
// completes before the next is requested.
func (s *Service) OnNext(ctx context.Context, result *discovery.Result) error {
	ctx, span := s.tracer.Start(ctx, "assurance.evaluate",
		trace.WithAttributes(
			attribute.String("scan.id", result.ScanID),
			attribute.Int("assets", len(result.DiscoveredAssets)),
			attribute.Bool("failed", result.Failed),
		))
	defer span.End()

	if result.Failed {
		// A failed tick carries no assets. The previous snapshot stays
		// current until the scan succeeds again.
		s.log.Warn("discovery result failed, keeping previous snapshot",
			"scan_id", result.ScanID, "error", result.Error)
		return nil
	}

	start := time.Now()
	s.mu.Lock()
	previous := s.assets[result.ScanID]
	s.assets[result.ScanID] = result.DiscoveredAssets
	s.pruneVanishedLocked(previous)
	evaluated := s.evaluateLocked(ctx, result)
	s.refreshControlsLocked()
	s.mu.Unlock()

	metrics.RuleEvaluationDuration.WithLabelValues(result.ScanID).Observe(time.Since(start).Seconds())
	s.log.Debug("discovery result evaluated",
		"scan_id", result.ScanID,
		"assets", len(result.DiscoveredAssets),
		"evaluations", evaluated)
	return nil
}

// OnComplete implements pubsub.Subscriber.
func (s *Service) OnComplete() {
	s.log.Info("rule engine subscription completed")
}

// OnError implements pubsub.Subscriber.
func (s *Service) OnError(err error) {
	s.log.Error("rule engine subscription terminated", "error", err)
}

func (s *Service) evaluateLocked(ctx context.Context, result *discovery.Result) int {
	evaluated := 0
	for _, a := range result.DiscoveredAssets {
		for _, r := range s.rules {
			if !r.AppliesTo(a) {
				continue
			}
			res := r.Evaluate(a)
			s.latest[pairKey(r.ID, a.ID)] = res
			evaluated++

			outcome := "ok"
			if !res.IsOk() {
				outcome = "failed"
			}
			metrics.RuleEvaluationsTotal.WithLabelValues(r.Name, outcome).Inc()

			if s.results != nil {
				if err := s.results.Save(ctx, res); err != nil {
					s.log.Error("failed to persist evaluation result",
						"rule", r.Name, "asset_id", a.ID, "error", err)
				}
			}
		}
	}
	return evaluated
}

// pruneVanishedLocked drops the evaluation results of assets that were in
// the previous snapshot but no longer appear in any scan's current one.
// Each tick carries a complete snapshot, so a missing asset is a deleted
// asset and must stop counting against its controls.
func (s *Service) pruneVanishedLocked(previous map[string]*asset.Asset) {
	vanished := make(map[string]struct{}, len(previous))
	for id := range previous {
		vanished[id] = struct{}{}
	}
	for _, snapshot := range s.assets {
		for id := range snapshot {
			delete(vanished, id)
		}
	}
	if len(vanished) == 0 {
		return
	}
	for key, res := range s.latest {
		if _, gone := vanished[res.AssetID]; gone {
			delete(s.latest, key)
		}
	}
}

// refreshControlsLocked folds the latest evaluation results into every
// control's fulfillment.
func (s *Service) refreshControlsLocked() {
	byRule := make(map[string][]*rule.EvaluationResult)
	for _, res := range s.latest {
		key := res.Rule.ID.String()
		byRule[key] = append(byRule[key], res)
	}

	for _, c := range s.controls {
		var results []*rule.EvaluationResult
		for _, r := range c.Rules {
			results = append(results, byRule[r.ID.String()]...)
		}
		state := c.Fold(results)
		for _, known := range []control.Fulfillment{
			control.FulfillmentNotEvaluated,
			control.FulfillmentGood,
			control.FulfillmentWarning,
		} {
			value := 0.0
			if state == known {
				value = 1.0
			}
			metrics.ControlFulfillment.WithLabelValues(c.ControlID, string(known)).Set(value)
		}
	}
}

// Rules returns the currently configured rules.
func (s *Service) Rules() []*rule.Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*rule.Rule, len(s.rules))
	copy(out, s.rules)
	return out
}

// Certifications returns the currently configured certifications.
func (s *Service) Certifications() []*certification.Certification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*certification.Certification, len(s.certifications))
	copy(out, s.certifications)
	return out
}

// Control returns the control with the given id.
func (s *Service) Control(controlID string) (*control.Control, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.controls[controlID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return c, nil
}

// Compliance returns the derived compliance view of a certification.
func (s *Service) Compliance(certificationID string) (certification.Compliance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, cert := range s.certifications {
		if cert.ID == certificationID {
			return cert.Compliance(), nil
		}
	}
	return certification.Compliance{}, shared.ErrNotFound
}

// EvaluationResults returns the latest result per (rule, asset) pair.
func (s *Service) EvaluationResults() []*rule.EvaluationResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*rule.EvaluationResult, 0, len(s.latest))
	for _, res := range s.latest {
		out = append(out, res)
	}
	return out
}

// KnownAssets returns the latest asset snapshot across all scans.
func (s *Service) KnownAssets() []*asset.Asset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*asset.Asset
	for _, snapshot := range s.assets {
		for _, a := range snapshot {
			out = append(out, a)
		}
	}
	return out
}

func pairKey(ruleID shared.ID, assetID string) string {
	return ruleID.String() + "|" + assetID
}
