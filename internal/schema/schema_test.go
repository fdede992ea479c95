package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scoreSchema() Schema {
	return Schema{
		Name: "score",
		Fields: []Field{
			{Name: "score", Type: TypeNumber, Required: true},
			{Name: "issues", Type: TypeArray, Required: true},
			{Name: "summary", Type: TypeString, Required: false},
		},
	}
}

func TestDefaults(t *testing.T) {
	got := scoreSchema().Defaults()
	assert.Equal(t, map[string]any{
		"score":   0.0,
		"issues":  []any{},
		"summary": "",
	}, got)
}

func TestDefaults_DeclaredOverride(t *testing.T) {
	s := Schema{Name: "x", Fields: []Field{
		{Name: "grade", Type: TypeString, Default: "unknown"},
	}}
	assert.Equal(t, map[string]any{"grade": "unknown"}, s.Defaults())
}

func TestValidate(t *testing.T) {
	s := scoreSchema()

	v := s.Validate(map[string]any{"score": 85.0, "issues": []any{}, "summary": "ok"})
	assert.True(t, v.OK())

	v = s.Validate(map[string]any{"issues": []any{}})
	assert.Equal(t, []string{"score"}, v.MissingFields)

	v = s.Validate(map[string]any{"score": "eighty-five", "issues": []any{}})
	assert.Equal(t, []string{"score"}, v.InvalidFields)

	// Optional fields may be absent without complaint.
	v = s.Validate(map[string]any{"score": 1.0, "issues": []any{}})
	assert.True(t, v.OK())
}

func TestFingerprint_StableAndDistinct(t *testing.T) {
	a := scoreSchema()
	b := scoreSchema()
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	c := scoreSchema()
	c.Fields[0].Type = TypeString
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
}

func TestFromStruct(t *testing.T) {
	type report struct {
		Score      float64  `json:"score" facet_desc:"overall score 0-100"`
		Issues     []string `json:"issues"`
		Summary    string   `json:"summary" facet:"optional"`
		Internal   string   `facet:"-"`
		unexported int
	}
	s, err := FromStruct("report", report{})
	require.NoError(t, err)
	require.Len(t, s.Fields, 3)

	f, ok := s.Field("score")
	require.True(t, ok)
	assert.Equal(t, TypeNumber, f.Type)
	assert.True(t, f.Required)
	assert.Equal(t, "overall score 0-100", f.Description)

	f, ok = s.Field("issues")
	require.True(t, ok)
	assert.Equal(t, TypeArray, f.Type)

	f, ok = s.Field("summary")
	require.True(t, ok)
	assert.False(t, f.Required)
}

func TestFromStruct_SnakeCaseFallback(t *testing.T) {
	type out struct {
		RiskLevel string
	}
	s, err := FromStruct("out", out{})
	require.NoError(t, err)
	_, ok := s.Field("risk_level")
	assert.True(t, ok)
}

func TestFromStruct_Errors(t *testing.T) {
	_, err := FromStruct("x", nil)
	assert.Error(t, err)
	_, err = FromStruct("x", 42)
	assert.Error(t, err)
}
