package tool

import "facet/internal/schema"

// Built-in analysis dimensions.
const (
	DimPerformance     = "performance"
	DimSecurity        = "security"
	DimStandards       = "standards"
	DimMaintainability = "maintainability"
)

// performanceReport is the performance dimension's output contract.
type performanceReport struct {
	Score   float64  `json:"score" facet_desc:"0-100 performance rating"`
	Issues  []string `json:"issues" facet_desc:"concrete performance problems found"`
	Summary string   `json:"summary" facet_desc:"one-paragraph assessment"`
	Hotspot string   `json:"hotspot" facet:"optional" facet_desc:"worst offending location, if any"`
}

// maintainabilityReport is the maintainability dimension's output contract.
type maintainabilityReport struct {
	Score      float64  `json:"score" facet_desc:"0-100 maintainability rating"`
	Issues     []string `json:"issues" facet_desc:"maintainability problems found"`
	Summary    string   `json:"summary" facet_desc:"one-paragraph assessment"`
	Complexity string   `json:"complexity" facet:"optional" facet_desc:"low, medium, or high"`
}

// Dimensions returns the built-in dimension configs keyed by name.
func Dimensions() map[string]Config {
	return map[string]Config{
		DimPerformance: {
			Dimension: DimPerformance,
			Schema:    schema.MustFromStruct(DimPerformance, performanceReport{}),
			Prompt: ApplyPresets(PromptSpec{
				Purpose:    "Assess the runtime performance characteristics of the subject code.",
				Background: "Focus on algorithmic complexity, allocation pressure, and I/O patterns.",
				Rules: []string{
					"Score 100 means no performance concerns; 0 means unusable.",
				},
			}, PresetStrictJSON(), PresetNoInvent()),
			Temperature: 0.2,
			MaxTokens:   2048,
		},
		DimSecurity: {
			Dimension: DimSecurity,
			Schema: schema.Schema{
				Name: DimSecurity,
				Fields: []schema.Field{
					{Name: "score", Type: schema.TypeNumber, Required: true, Description: "0-100 security rating"},
					{Name: "issues", Type: schema.TypeArray, Required: true, Description: "vulnerabilities and unsafe patterns found"},
					{Name: "severity", Type: schema.TypeString, Required: false, Default: "none", Description: "highest severity found: none, low, medium, high, critical"},
					{Name: "summary", Type: schema.TypeString, Required: true, Description: "one-paragraph assessment"},
				},
			},
			Prompt: ApplyPresets(PromptSpec{
				Purpose:    "Audit the subject code for security vulnerabilities and unsafe patterns.",
				Background: "Consider input validation, injection, secrets handling, and unsafe defaults.",
				Rules: []string{
					"Report only issues visible in the subject; severity reflects the worst finding.",
				},
			}, PresetStrictJSON(), PresetNoInvent(), PresetCautious()),
			Temperature: 0.1,
			MaxTokens:   2048,
		},
		DimStandards: {
			Dimension: DimStandards,
			Schema: schema.Schema{
				Name: DimStandards,
				Fields: []schema.Field{
					{Name: "score", Type: schema.TypeNumber, Required: true, Description: "0-100 conformance rating"},
					{Name: "issues", Type: schema.TypeArray, Required: true, Description: "style and convention violations"},
					{Name: "summary", Type: schema.TypeString, Required: true, Description: "one-paragraph assessment"},
				},
			},
			Prompt: ApplyPresets(PromptSpec{
				Purpose:    "Evaluate the subject code against common style and convention standards.",
				Background: "Naming, formatting, error handling conventions, and API surface consistency.",
			}, PresetStrictJSON(), PresetNoInvent()),
			Temperature: 0.2,
			MaxTokens:   2048,
		},
		DimMaintainability: {
			Dimension: DimMaintainability,
			Schema:    schema.MustFromStruct(DimMaintainability, maintainabilityReport{}),
			Prompt: ApplyPresets(PromptSpec{
				Purpose:    "Judge how easy the subject code is to understand, modify, and extend.",
				Background: "Function length, coupling, duplication, and documentation quality.",
			}, PresetStrictJSON(), PresetCautious()),
			Temperature: 0.2,
			MaxTokens:   2048,
		},
	}
}
