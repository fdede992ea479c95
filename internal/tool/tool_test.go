package tool

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"facet/internal/llm"
	"facet/internal/parser"
	"facet/internal/schema"
)

type erroringClient struct{ err error }

func (c *erroringClient) Name() string { return "erroring" }
func (c *erroringClient) Close() error { return nil }
func (c *erroringClient) Invoke(ctx context.Context, msgs []llm.Message, opts llm.Options) (any, error) {
	return nil, c.err
}

type panickingClient struct{}

func (c *panickingClient) Name() string { return "panicking" }
func (c *panickingClient) Close() error { return nil }
func (c *panickingClient) Invoke(ctx context.Context, msgs []llm.Message, opts llm.Options) (any, error) {
	panic("provider library bug")
}

type staticClient struct{ resp any }

func (c *staticClient) Name() string { return "static" }
func (c *staticClient) Close() error { return nil }
func (c *staticClient) Invoke(ctx context.Context, msgs []llm.Message, opts llm.Options) (any, error) {
	return c.resp, nil
}

func newTool(t *testing.T, dim string, client llm.Client) *Tool {
	t.Helper()
	cfg, ok := Dimensions()[dim]
	require.True(t, ok, "unknown dimension %s", dim)
	return New(cfg, client, parser.New(parser.Options{}), nil)
}

func TestExecute_AllBuiltinDimensionsSucceedAgainstFake(t *testing.T) {
	fake := llm.NewFakeClient()
	for dim := range Dimensions() {
		res := newTool(t, dim, fake).Execute(context.Background(), "func add(a, b int) int { return a + b }")

		assert.Equal(t, dim, res.Dimension)
		assert.True(t, res.Success, "dimension %s", dim)
		assert.NotNil(t, res.Data["score"], "dimension %s", dim)
		assert.IsType(t, float64(0), res.Data["score"], "dimension %s", dim)
		assert.Positive(t, res.Elapsed)
	}
}

func TestExecute_FakeShapesRouteThroughExpectedStrategies(t *testing.T) {
	fake := llm.NewFakeClient()

	// Fenced payload inside a choice array cleans down to direct-parseable JSON.
	perf := newTool(t, DimPerformance, fake).Execute(context.Background(), "x")
	assert.Equal(t, "direct", perf.Strategy)

	// Trailing comma in a bare string exercises syntax repair.
	maint := newTool(t, DimMaintainability, fake).Execute(context.Background(), "x")
	assert.Equal(t, "repaired_syntax", maint.Strategy)
}

func TestExecute_ClientErrorDegradesToDefaults(t *testing.T) {
	tl := newTool(t, DimSecurity, &erroringClient{err: errors.New("connection refused")})
	res := tl.Execute(context.Background(), "subject")

	assert.False(t, res.Success)
	assert.Equal(t, "fallback", res.Strategy)
	assert.Equal(t, tl.Schema().Defaults(), res.Data)
	assert.InDelta(t, 0.1, res.Confidence, 1e-9)
	assert.NotEmpty(t, res.Diagnostics)
}

func TestExecute_PanicIsContained(t *testing.T) {
	tl := newTool(t, DimStandards, &panickingClient{})
	var res Result
	assert.NotPanics(t, func() {
		res = tl.Execute(context.Background(), "subject")
	})
	assert.False(t, res.Success)
	assert.Equal(t, tl.Schema().Defaults(), res.Data)
	assert.Positive(t, res.Elapsed)
}

func TestExecute_GarbageResponseStillSchemaShaped(t *testing.T) {
	tl := newTool(t, DimStandards, &staticClient{resp: "the model rambled with no structure at all"})
	res := tl.Execute(context.Background(), "subject")

	assert.False(t, res.Success)
	for _, f := range tl.Schema().Fields {
		v, ok := res.Data[f.Name]
		require.True(t, ok, "field %s missing", f.Name)
		assert.True(t, f.Type.Matches(v), "field %s mistyped", f.Name)
	}
}

func TestExecute_MistypedFieldReplacedByDefault(t *testing.T) {
	// score arrives as a string; conform must restore the declared type.
	tl := newTool(t, DimStandards, &staticClient{resp: `{"score": "eighty", "issues": [], "summary": "ok"}`})
	res := tl.Execute(context.Background(), "subject")

	assert.True(t, res.Success)
	assert.Equal(t, 0.0, res.Data["score"])
	assert.Contains(t, res.Validation.InvalidFields, "score")
	assert.Less(t, res.Confidence, 1.0)
}

func TestExecute_OpaqueEnvelopeLowersConfidence(t *testing.T) {
	// A number is no recognized envelope; stringified content parses but the
	// envelope confidence discounts the result.
	tl := newTool(t, DimStandards, &staticClient{resp: 12345})
	res := tl.Execute(context.Background(), "subject")
	assert.LessOrEqual(t, res.Confidence, 0.3)
}

func TestConform_KeepsExtraFields(t *testing.T) {
	sc := schema.Schema{Name: "s", Fields: []schema.Field{
		{Name: "score", Type: schema.TypeNumber, Required: true},
	}}
	out := conform(sc, map[string]any{"score": 5.0, "extra": "kept"})
	assert.Equal(t, 5.0, out["score"])
	assert.Equal(t, "kept", out["extra"])
}

func TestPromptBuild_SectionsAndFields(t *testing.T) {
	cfg := Dimensions()[DimSecurity]
	prompt, err := cfg.Prompt.Build("package main", cfg.Schema)
	require.NoError(t, err)

	for _, section := range []string{"[PURPOSE]", "[SUBJECT]", "[OUTPUT]", "[CONSTRAINTS]", "[RULES]", "[OUTPUT_FORMAT]"} {
		assert.Contains(t, prompt, section)
	}
	assert.Contains(t, prompt, "- score (number, required)")
	assert.Contains(t, prompt, "- severity (string, optional)")
	assert.Contains(t, prompt, "package main")
}

func TestPromptBuild_EmptyPurposeFails(t *testing.T) {
	_, err := PromptSpec{}.Build("x", Dimensions()[DimSecurity].Schema)
	assert.Error(t, err)
}

func TestApplyPresets_PrependOrder(t *testing.T) {
	spec := ApplyPresets(PromptSpec{
		Purpose:     "p",
		Constraints: []string{"own constraint"},
	}, PresetStrictJSON())
	require.Greater(t, len(spec.Constraints), 1)
	assert.Equal(t, "Return strict JSON only.", spec.Constraints[0])
	assert.Equal(t, "own constraint", spec.Constraints[len(spec.Constraints)-1])
}

func TestDimensions_SchemasAreWellFormed(t *testing.T) {
	for name, cfg := range Dimensions() {
		assert.Equal(t, name, cfg.Dimension)
		assert.Equal(t, name, cfg.Schema.Name)
		require.NotEmpty(t, cfg.Schema.Fields, "dimension %s", name)
		_, hasScore := cfg.Schema.Field("score")
		assert.True(t, hasScore, "dimension %s lacks a score field", name)
	}
}
