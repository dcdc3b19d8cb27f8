// internal/models/menu.go
package models

// BoundingBox is a normalized rectangle (0..1 on both axes) reported by OCR.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// OCRObservation is one recognized line of text and where it sits on the page.
type OCRObservation struct {
	Text        string      `json:"text"`
	BoundingBox BoundingBox `json:"boundingBox"`
}

// RawLineItem is a candidate dish produced by line segmentation.
type RawLineItem struct {
	Name        string      `json:"name"`
	Price       string      `json:"price"`
	Description string      `json:"description"`
	AnchorBox   BoundingBox `json:"anchorBox"`
}

type Severity string

const (
	SeverityPositive Severity = "positive"
	SeverityNeutral  Severity = "neutral"
	SeverityNegative Severity = "negative"
)

// SafetyLevel summarizes whether a dish conflicts with the user's dietary restrictions.
type SafetyLevel string

const (
	SafetyLevelSafe    SafetyLevel = "safe"
	SafetyLevelCaution SafetyLevel = "caution"
	SafetyLevelUnsafe  SafetyLevel = "unsafe"
)

type HealthImpact struct {
	Condition      string   `json:"condition"`
	Impact         string   `json:"impact"`
	Recommendation string   `json:"recommendation"`
	Severity       Severity `json:"severity"`
}

// MenuItem is a fully annotated dish. HealthScore is always within [0, 100].
type MenuItem struct {
	ID                 string            `json:"id"`
	Name               string            `json:"name"`
	Cuisine            string            `json:"cuisine"`
	Price              string            `json:"price"`
	Description        string            `json:"description"`
	Rating             float64           `json:"rating"`
	HealthScore        int               `json:"healthScore"`
	Allergens          []string          `json:"allergens"`
	NutritionalInfo    map[string]string `json:"nutritionalInfo"`
	Recommendation     string            `json:"recommendation"`
	HealthImpacts      []HealthImpact    `json:"healthImpacts"`
	DietaryBenefits    []string          `json:"dietaryBenefits"`
	DietaryConcerns    []string          `json:"dietaryConcerns"`
	AlternativeOptions []string          `json:"alternativeOptions"`
	SafetyLevel        SafetyLevel       `json:"safetyLevel"`
}

// HealthAnalysis is the narrative assessment returned by the augmentation model.
type HealthAnalysis struct {
	IsHealthy       bool     `json:"isHealthy"`
	Reason          string   `json:"reason"`
	HealthImpacts   []string `json:"healthImpacts"`
	Recommendations []string `json:"recommendations"`
}

// NutritionKeys are the standard keys present in every nutritionalInfo map.
var NutritionKeys = []string{"Calories", "Protein", "Carbs", "Fat", "Fiber", "Sugar", "Sodium"}

// NewNutritionalInfo returns a map with every standard key set to value.
func NewNutritionalInfo(value string) map[string]string {
	info := make(map[string]string, len(NutritionKeys))
	for _, k := range NutritionKeys {
		info[k] = value
	}
	return info
}
