// Package parser turns cleaned model output into schema-conformant data.
// It runs an ordered list of parse strategies, validates against the
// dimension schema, attempts rule-based and model-assisted repair, and
// guarantees a schema-shaped result even on total failure. Parse never
// panics and always returns a Result.
package parser

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"facet/internal/llm"
	"facet/internal/parsecache"
	"facet/internal/schema"
)

// Strategy confidence levels, fixed by design: a later, more desperate
// strategy always reports lower confidence than an earlier one.
const (
	confDirect    = 1.0
	confRepaired  = 0.9
	confTolerant  = 0.7
	confSubstring = 0.6
	confFields    = 0.4
	confRepairRun = 0.5
	confFallback  = 0.1

	// minConfidence floors confidence after validation penalties so a
	// successful parse never reports below a fallback-adjacent level.
	minConfidence = 0.2
)

// Result is the outcome of one parse. Data is never nil: on fallback it
// carries the schema defaults. Results are created fresh per invocation
// and must not be mutated after return (the cache shares them).
type Result struct {
	Success     bool              `json:"success"`
	Data        map[string]any    `json:"data"`
	Strategy    string            `json:"strategy"`
	Confidence  float64           `json:"confidence"`
	Validation  schema.Validation `json:"validation"`
	Diagnostics []string          `json:"diagnostics,omitempty"`
}

// Options configures a Parser. All fields are optional.
type Options struct {
	// RepairClient enables model-assisted repair when rule-based repair
	// fails. When nil, repair skips straight to fallback synthesis.
	RepairClient RepairInvoker
	// Cache holds immutable results keyed by (cleaned content, schema
	// identity). Nil disables caching.
	Cache  *parsecache.Cache[Result]
	Logger *zap.Logger
}

// RepairInvoker is the minimal slice of the model capability the parser
// needs for model-assisted repair. Any llm.Client satisfies it.
type RepairInvoker interface {
	Invoke(ctx context.Context, msgs []llm.Message, opts llm.Options) (any, error)
}

// Parser applies the strategy chain. Safe for concurrent use.
type Parser struct {
	repair RepairInvoker
	cache  *parsecache.Cache[Result]
	logger *zap.Logger
}

// New builds a Parser from opts.
func New(opts Options) *Parser {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{
		repair: opts.RepairClient,
		cache:  opts.Cache,
		logger: logger,
	}
}

type strategy struct {
	name       string
	confidence float64
	run        func(content string, sc schema.Schema) map[string]any
}

// Strategies in priority order; the chain stops at the first strategy
// producing a non-nil object.
var strategies = []strategy{
	{"direct", confDirect, parseDirect},
	{"repaired_syntax", confRepaired, parseRepaired},
	{"tolerant_partial", confTolerant, parseTolerant},
	{"substring_extraction", confSubstring, parseSubstring},
	{"field_reconstruction", confFields, parseFields},
}

// Parse runs the strategy chain against content for the given schema.
func (p *Parser) Parse(ctx context.Context, content string, sc schema.Schema) Result {
	key := parsecache.Key(content, sc.Fingerprint())
	if cached, ok := p.cache.Get(key); ok {
		p.logger.Debug("parse cache hit", zap.String("schema", sc.Name))
		return cached
	}

	res := p.parse(ctx, content, sc)
	p.cache.Add(key, res)
	return res
}

func (p *Parser) parse(ctx context.Context, content string, sc schema.Schema) Result {
	var diags []string

	if strings.TrimSpace(content) == "" {
		p.logger.Debug("empty content, synthesizing fallback", zap.String("schema", sc.Name))
		return Result{
			Success:     false,
			Data:        sc.Defaults(),
			Strategy:    "fallback",
			Confidence:  confFallback,
			Diagnostics: []string{"empty content; synthesized fallback"},
		}
	}

	for _, s := range strategies {
		obj := runSafe(s, content, sc)
		if obj == nil {
			diags = append(diags, fmt.Sprintf("strategy %s: no object", s.name))
			continue
		}
		return p.finish(sc, obj, s.name, s.confidence, diags)
	}

	// Repair a: rule-based structural repair, then direct parse.
	if repaired := structuralRepair(content); repaired != content {
		if obj := parseDirect(repaired, sc); obj != nil {
			diags = append(diags, "structural repair recovered an object")
			return p.finish(sc, obj, "structural_repair", confRepairRun, diags)
		}
	}
	diags = append(diags, "structural repair failed")

	// Repair b: model-assisted reformat, then direct parse.
	if p.repair != nil {
		if obj := p.modelRepair(ctx, content, sc); obj != nil {
			diags = append(diags, "model-assisted repair recovered an object")
			return p.finish(sc, obj, "model_repair", confRepairRun, diags)
		}
		diags = append(diags, "model-assisted repair failed")
	} else {
		diags = append(diags, "model-assisted repair unavailable")
	}

	// Fallback synthesis: schema defaults, low confidence, non-fatal.
	diags = append(diags, "all strategies and repairs exhausted; synthesized fallback")
	p.logger.Warn("parse fell back to schema defaults",
		zap.String("schema", sc.Name),
		zap.Int("content_len", len(content)))
	return Result{
		Success:     false,
		Data:        sc.Defaults(),
		Strategy:    "fallback",
		Confidence:  confFallback,
		Diagnostics: diags,
	}
}

// finish validates a successful parse and applies confidence penalties.
// Validation issues are recorded, never fatal.
func (p *Parser) finish(sc schema.Schema, obj map[string]any, strategyName string, confidence float64, diags []string) Result {
	v := sc.Validate(obj)
	conf := confidence
	conf -= 0.1 * float64(len(v.MissingFields))
	conf -= 0.05 * float64(len(v.InvalidFields))
	if conf < minConfidence {
		conf = minConfidence
	}
	if !v.OK() {
		diags = append(diags, fmt.Sprintf("validation: %d missing, %d invalid",
			len(v.MissingFields), len(v.InvalidFields)))
	}
	p.logger.Debug("parse succeeded",
		zap.String("schema", sc.Name),
		zap.String("strategy", strategyName),
		zap.Float64("confidence", conf))
	return Result{
		Success:     true,
		Data:        obj,
		Strategy:    strategyName,
		Confidence:  conf,
		Validation:  v,
		Diagnostics: diags,
	}
}

// runSafe isolates a strategy panic; a crashing strategy counts as a miss.
func runSafe(s strategy, content string, sc schema.Schema) (obj map[string]any) {
	defer func() {
		if recover() != nil {
			obj = nil
		}
	}()
	return s.run(content, sc)
}
