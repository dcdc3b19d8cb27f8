// internal/analysis/augment/response.go
package augment

import (
	"encoding/json"
	"fmt"
	"strings"

	"menu-health-workers/internal/common/validation"
	"menu-health-workers/internal/models"
)

const (
	NutritionUnknown = "Analysis needed"

	FallbackReasonText = "Unable to perform detailed analysis at the moment. Please try again in a few minutes."
)

// Why a Result is a fallback.
const (
	ReasonSkipped         = "skipped"
	ReasonUnavailable     = "unavailable"
	ReasonInvalidResponse = "invalid_response"
)

var (
	fallbackImpacts = []string{
		"No specific health impacts could be determined at this time.",
	}
	fallbackRecommendations = []string{
		"Consider checking with staff about ingredients and preparation methods.",
		"Try analyzing this item again in a few minutes.",
	}
)

var analysisSchema = validation.MustCompile(`{
	"type": "object",
	"required": ["isHealthy", "reason", "healthImpacts", "recommendations", "nutritionalInfo"],
	"properties": {
		"isHealthy":       {"type": "boolean"},
		"reason":          {"type": "string"},
		"healthImpacts":   {"type": "array", "items": {"type": "string"}},
		"recommendations": {"type": "array", "items": {"type": "string"}},
		"nutritionalInfo": {"type": "object", "additionalProperties": {"type": "string"}}
	}
}`)

// Result is the outcome of one augmentation. Fallback results carry the
// fixed placeholder analysis and the reason the model was not used.
type Result struct {
	Analysis        models.HealthAnalysis `json:"analysis"`
	NutritionalInfo map[string]string     `json:"nutritionalInfo"`
	Fallback        bool                  `json:"fallback"`
	FallbackReason  string                `json:"fallbackReason,omitempty"`
}

// Fallback returns the deterministic placeholder result.
func Fallback(reason string) *Result {
	return &Result{
		Analysis: models.HealthAnalysis{
			IsHealthy:       true,
			Reason:          FallbackReasonText,
			HealthImpacts:   append([]string(nil), fallbackImpacts...),
			Recommendations: append([]string(nil), fallbackRecommendations...),
		},
		NutritionalInfo: models.NewNutritionalInfo(NutritionUnknown),
		Fallback:        true,
		FallbackReason:  reason,
	}
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

func newGenerateRequest(prompt string) generateRequest {
	return generateRequest{Contents: []content{{Parts: []part{{Text: prompt}}}}}
}

// candidateText extracts candidates[0].content.parts[0].text.
func candidateText(body []byte) (string, error) {
	var resp generateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("%w: decode envelope: %v", ErrInvalidResponse, err)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("%w: no candidate text", ErrInvalidResponse)
	}
	return resp.Candidates[0].Content.Parts[0].Text, nil
}

// StripCodeFences removes a surrounding Markdown code block, if any.
func StripCodeFences(text string) string {
	text = strings.TrimSpace(text)
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	return strings.TrimSpace(text)
}

type analysisPayload struct {
	IsHealthy       bool              `json:"isHealthy"`
	Reason          string            `json:"reason"`
	HealthImpacts   []string          `json:"healthImpacts"`
	Recommendations []string          `json:"recommendations"`
	NutritionalInfo map[string]string `json:"nutritionalInfo"`
}

// ParseAnalysis validates the model's text and converts it into a Result.
// Missing standard nutrition keys are filled with NutritionUnknown.
func ParseAnalysis(text string) (*Result, error) {
	doc := []byte(StripCodeFences(text))

	if res := analysisSchema.ValidateBytes(doc); !res.Valid {
		return nil, fmt.Errorf("%w: %s", ErrInvalidResponse, res.Error())
	}

	var p analysisPayload
	if err := json.Unmarshal(doc, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	info := make(map[string]string, len(models.NutritionKeys))
	for k, v := range p.NutritionalInfo {
		info[k] = v
	}
	for _, k := range models.NutritionKeys {
		if _, ok := info[k]; !ok {
			info[k] = NutritionUnknown
		}
	}

	return &Result{
		Analysis: models.HealthAnalysis{
			IsHealthy:       p.IsHealthy,
			Reason:          p.Reason,
			HealthImpacts:   nonNil(p.HealthImpacts),
			Recommendations: nonNil(p.Recommendations),
		},
		NutritionalInfo: info,
	}, nil
}

// Apply copies the result onto item. Model results also replace the
// recommendation with the model's first suggestion.
func Apply(item *models.MenuItem, result *Result) {
	if item == nil || result == nil {
		return
	}
	info := make(map[string]string, len(result.NutritionalInfo))
	for k, v := range result.NutritionalInfo {
		info[k] = v
	}
	item.NutritionalInfo = info

	if !result.Fallback && len(result.Analysis.Recommendations) > 0 {
		item.Recommendation = result.Analysis.Recommendations[0]
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
