// Package ruleload compiles YAML rule packs into rules, controls and
// certifications.
package ruleload

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/cloudassure/engine/internal/metrics"
	"github.com/cloudassure/engine/pkg/ccl"
	"github.com/cloudassure/engine/pkg/domain/certification"
	"github.com/cloudassure/engine/pkg/domain/control"
	"github.com/cloudassure/engine/pkg/domain/rule"
	"github.com/cloudassure/engine/pkg/logger"
	"github.com/cloudassure/engine/pkg/validator"
)

// Source supplies raw rule-pack documents.
type Source interface {
	// Fetch returns all rule-pack documents the source currently holds.
	Fetch(ctx context.Context) ([]Document, error)
}

// Document is one raw rule-pack file.
type Document struct {
	Path string
	Data []byte
}

// packFile is the YAML shape of a rule pack.
type packFile struct {
	Name          string `yaml:"name" validate:"required"`
	Certification *struct {
		ID          string `yaml:"id" validate:"required"`
		Description string `yaml:"description"`
		Publisher   string `yaml:"publisher"`
		Website     string `yaml:"website"`
	} `yaml:"certification"`
	Controls []struct {
		ID          string `yaml:"id" validate:"required"`
		Name        string `yaml:"name"`
		Domain      string `yaml:"domain"`
		Description string `yaml:"description"`
	} `yaml:"controls"`
	Rules []ruleEntry `yaml:"rules"`
}

// ruleEntry is one rule definition inside a pack.
type ruleEntry struct {
	Name        string   `yaml:"name" validate:"required"`
	Description string   `yaml:"description"`
	AssetType   string   `yaml:"assetType"`
	Controls    []string `yaml:"controls"`
	Conditions  []string `yaml:"conditions" validate:"required,min=1"`
}

// Result is the outcome of loading all packs from a source.
type Result struct {
	Rules          []*rule.Rule
	Certifications []*certification.Certification
	Skipped        int
}

// Loader compiles rule packs. One malformed rule or pack is logged and
// skipped; it never fails the load.
type Loader struct {
	source   Source
	validate *validator.Validator
	log      *logger.Logger
}

// New creates a new loader reading from the given source.
func New(source Source, log *logger.Logger) *Loader {
	return &Loader{
		source:   source,
		validate: validator.New(),
		log:      log,
	}
}

// Load fetches and compiles all rule packs.
func (l *Loader) Load(ctx context.Context) (*Result, error) {
	docs, err := l.source.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching rule packs: %w", err)
	}

	res := &Result{}
	for _, doc := range docs {
		l.loadPack(doc, res)
	}

	metrics.RulesLoaded.Set(float64(len(res.Rules)))
	l.log.Info("rule packs loaded",
		"documents", len(docs),
		"rules", len(res.Rules),
		"certifications", len(res.Certifications),
		"skipped", res.Skipped)
	return res, nil
}

func (l *Loader) loadPack(doc Document, res *Result) {
	var pack packFile
	if err := yaml.Unmarshal(doc.Data, &pack); err != nil {
		l.log.Error("skipping malformed rule pack", "path", doc.Path, "error", err)
		res.Skipped++
		metrics.RulesRejected.Inc()
		return
	}
	if pack.Name == "" {
		pack.Name = doc.Path
	}

	var packRules []*rule.Rule
	for _, entry := range pack.Rules {
		r, err := l.compileRule(entry)
		if err != nil {
			l.log.Error("skipping rule", "pack", pack.Name, "rule", entry.Name, "error", err)
			res.Skipped++
			metrics.RulesRejected.Inc()
			continue
		}
		packRules = append(packRules, r)
	}
	res.Rules = append(res.Rules, packRules...)

	controls := buildControls(pack, packRules)
	if pack.Certification != nil {
		res.Certifications = append(res.Certifications, certification.New(
			pack.Certification.ID,
			pack.Certification.Description,
			pack.Certification.Publisher,
			pack.Certification.Website,
			controls,
		))
	}
}

// compileRule validates one rule entry and parses its condition lines. The
// source text of each condition is kept verbatim.
func (l *Loader) compileRule(entry ruleEntry) (*rule.Rule, error) {
	if err := l.validate.Struct(entry); err != nil {
		return nil, err
	}

	conditions := make([]*ccl.Condition, 0, len(entry.Conditions))
	for _, src := range entry.Conditions {
		cond, err := ccl.Parse(src)
		if err != nil {
			return nil, err
		}
		conditions = append(conditions, cond)
	}

	return rule.New(entry.Name, entry.Description, entry.AssetType, conditions, entry.Controls)
}

// Issue is one problem found while linting rule packs.
type Issue struct {
	Path string
	Rule string
	Err  error
}

// Lint compiles every rule pack and collects all problems instead of
// skipping them. Used by the offline rule compiler.
func (l *Loader) Lint(ctx context.Context) ([]Issue, error) {
	docs, err := l.source.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching rule packs: %w", err)
	}

	var issues []Issue
	for _, doc := range docs {
		var pack packFile
		if err := yaml.Unmarshal(doc.Data, &pack); err != nil {
			issues = append(issues, Issue{Path: doc.Path, Err: err})
			continue
		}
		for _, entry := range pack.Rules {
			if _, err := l.compileRule(entry); err != nil {
				issues = append(issues, Issue{Path: doc.Path, Rule: entry.Name, Err: err})
			}
		}
	}
	return issues, nil
}

// buildControls binds the pack's compiled rules to its control
// definitions by control id. Controls start active.
func buildControls(pack packFile, rules []*rule.Rule) []*control.Control {
	byControl := make(map[string][]*rule.Rule)
	for _, r := range rules {
		for _, id := range r.ControlIDs {
			byControl[id] = append(byControl[id], r)
		}
	}

	controls := make([]*control.Control, 0, len(pack.Controls))
	for _, def := range pack.Controls {
		c := control.New(def.ID, def.Name, def.Domain, def.Description, byControl[def.ID])
		c.SetActive(true)
		controls = append(controls, c)
	}
	return controls
}
