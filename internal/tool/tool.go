// Package tool runs one analysis dimension end to end: render the prompt,
// invoke the model, adapt the response envelope, clean the content, and
// parse it against the dimension schema. Execute never returns an error
// and never panics outward; every failure mode degrades to a
// schema-shaped default result.
package tool

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"facet/internal/envelope"
	"facet/internal/llm"
	"facet/internal/parser"
	"facet/internal/schema"
	"facet/internal/textprep"
)

const systemPrompt = "You are a precise code analysis engine. You respond with a single JSON object and nothing else."

// Config declares one analysis dimension.
type Config struct {
	Dimension   string
	Schema      schema.Schema
	Prompt      PromptSpec
	Temperature float32
	MaxTokens   int
}

// Result is the outcome of one dimension execution. Data always conforms
// to the dimension schema: every declared field is present with a value of
// the declared type, defaults filling whatever the model failed to supply.
type Result struct {
	Dimension   string            `json:"dimension"`
	Success     bool              `json:"success"`
	Data        map[string]any    `json:"data"`
	Strategy    string            `json:"strategy"`
	Confidence  float64           `json:"confidence"`
	Validation  schema.Validation `json:"validation"`
	Diagnostics []string          `json:"diagnostics,omitempty"`
	Elapsed     time.Duration     `json:"elapsed"`
}

// Tool executes a single dimension. Safe for concurrent use.
type Tool struct {
	cfg    Config
	client llm.Client
	parser *parser.Parser
	logger *zap.Logger
}

// New builds a Tool. A nil logger disables diagnostics logging.
func New(cfg Config, client llm.Client, p *parser.Parser, logger *zap.Logger) *Tool {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tool{cfg: cfg, client: client, parser: p, logger: logger.With(zap.String("dimension", cfg.Dimension))}
}

// Dimension returns the dimension this tool analyzes.
func (t *Tool) Dimension() string { return t.cfg.Dimension }

// Schema returns the dimension's result schema.
func (t *Tool) Schema() schema.Schema { return t.cfg.Schema }

// Execute analyzes subject under this tool's dimension. It always returns
// a usable Result; a panic anywhere in the pipeline is contained and
// reported as a default result.
func (t *Tool) Execute(ctx context.Context, subject any) (res Result) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("dimension execution panicked", zap.Any("panic", r))
			res = t.defaultResult(fmt.Sprintf("execution panicked: %v", r))
		}
		res.Elapsed = time.Since(start)
	}()

	prompt, err := t.cfg.Prompt.Build(subject, t.cfg.Schema)
	if err != nil {
		t.logger.Warn("prompt build failed", zap.Error(err))
		return t.defaultResult("prompt build failed: " + err.Error())
	}

	ctx = llm.WithDimension(ctx, t.cfg.Dimension)
	raw, err := t.client.Invoke(ctx, llm.SystemUser(systemPrompt, prompt), llm.Options{
		Temperature: t.cfg.Temperature,
		MaxTokens:   t.cfg.MaxTokens,
	})
	if err != nil {
		t.logger.Warn("model invocation failed", zap.Error(err))
		return t.defaultResult("model invocation failed: " + err.Error())
	}

	adapted := envelope.Adapt(raw, envelope.Options{Logger: t.logger})
	// Syntax repair stays with the parser so repaired defects discount
	// confidence instead of passing as a clean parse.
	cleaned := textprep.Process(adapted.Content, textprep.Options{
		Logger:   t.logger,
		Disabled: []string{textprep.RuleRepairSyntax},
	})
	parsed := t.parser.Parse(ctx, cleaned.Content, t.cfg.Schema)

	confidence := parsed.Confidence * adapted.Meta.Confidence
	diags := parsed.Diagnostics
	if adapted.Meta.Confidence < 1.0 {
		diags = append(diags, fmt.Sprintf("envelope shape %s at %.2f confidence",
			adapted.Meta.Shape, adapted.Meta.Confidence))
	}

	t.logger.Debug("dimension executed",
		zap.String("shape", string(adapted.Meta.Shape)),
		zap.String("strategy", parsed.Strategy),
		zap.Bool("success", parsed.Success),
		zap.Float64("confidence", confidence))

	return Result{
		Dimension:   t.cfg.Dimension,
		Success:     parsed.Success,
		Data:        conform(t.cfg.Schema, parsed.Data),
		Strategy:    parsed.Strategy,
		Confidence:  confidence,
		Validation:  parsed.Validation,
		Diagnostics: diags,
	}
}

// defaultResult is the guaranteed floor: schema defaults, low confidence.
func (t *Tool) defaultResult(reason string) Result {
	return Result{
		Dimension:   t.cfg.Dimension,
		Success:     false,
		Data:        t.cfg.Schema.Defaults(),
		Strategy:    "fallback",
		Confidence:  0.1,
		Diagnostics: []string{reason},
	}
}

// conform returns a copy of data where every schema field is present and
// correctly typed, substituting defaults for missing or mistyped values.
// Extra fields the model volunteered are kept; the parse Validation report
// still records what was originally missing or invalid.
func conform(sc schema.Schema, data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = v
	}
	for _, f := range sc.Fields {
		v, ok := out[f.Name]
		if !ok || v == nil || !f.Type.Matches(v) {
			out[f.Name] = f.DefaultValue()
		}
	}
	return out
}
