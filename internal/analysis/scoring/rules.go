// internal/analysis/scoring/rules.go
package scoring

import (
	"strings"

	"menu-health-workers/internal/models"
)

// Condition is a chronic condition the rule tables know about.
type Condition string

const (
	// ConditionAny marks rules that apply to every profile.
	ConditionAny          Condition = ""
	ConditionDiabetes     Condition = "diabetes"
	ConditionHypertension Condition = "hypertension"
	ConditionHeartDisease Condition = "heart disease"
)

var conditionAliases = map[string]Condition{
	"diabetes":      ConditionDiabetes,
	"hypertension":  ConditionHypertension,
	"heart disease": ConditionHeartDisease,
	"heart-disease": ConditionHeartDisease,
	"heart_disease": ConditionHeartDisease,
}

// ParseCondition maps a profile entry to a known Condition, case-insensitively.
func ParseCondition(s string) (Condition, bool) {
	c, ok := conditionAliases[strings.ToLower(strings.TrimSpace(s))]
	return c, ok
}

// ScoreRule adjusts the score by Delta once when any keyword is present.
type ScoreRule struct {
	Condition Condition
	Keywords  []string
	Delta     int
}

// ImpactRule produces the HealthImpact for a condition. Rules for one
// condition are tried in order; the first match wins.
type ImpactRule struct {
	Condition      Condition
	Keywords       []string
	Impact         string
	Recommendation string
	Severity       models.Severity
}

type ConcernRule struct {
	Condition Condition
	Keywords  []string
	Concern   string
}

// BenefitRule applies to a diet type, or to everyone when Diet is empty.
type BenefitRule struct {
	Diet     string
	Keywords []string
	Benefit  string
}

// AlternativeRule suggests substitutions for dishes of a cuisine whose name
// contains a keyword.
type AlternativeRule struct {
	Cuisine     string
	Keywords    []string
	Suggestions []string
}

var DefaultScoreRules = []ScoreRule{
	{ConditionDiabetes, []string{"sugar", "sweet", "honey"}, -40},
	{ConditionDiabetes, []string{"whole grain", "fiber"}, 10},
	{ConditionHypertension, []string{"salt", "sodium", "soy sauce"}, -40},
	{ConditionHypertension, []string{"low sodium", "unsalted"}, 10},
	{ConditionHeartDisease, []string{"fried", "fatty", "cream"}, -40},
	{ConditionHeartDisease, []string{"grilled", "baked", "steamed"}, 10},

	{ConditionAny, []string{"fried", "deep fried"}, -30},
	{ConditionAny, []string{"cream sauce", "butter sauce"}, -20},
	{ConditionAny, []string{"extra cheese", "creamy"}, -20},
	{ConditionAny, []string{"vegetable", "salad"}, 15},
	{ConditionAny, []string{"lean", "grilled"}, 10},
	{ConditionAny, []string{"whole grain", "brown rice"}, 10},
}

// Rules with no keywords always match and act as the condition's default.
var DefaultImpactRules = []ImpactRule{
	{ConditionDiabetes, []string{"sugar", "sweet"},
		"High sugar content may affect blood sugar levels",
		"Consider asking for sugar-free alternatives or smaller portions", models.SeverityNegative},
	{ConditionDiabetes, []string{"whole grain", "fiber"},
		"Good source of fiber and complex carbohydrates",
		"This is a good choice for diabetes management", models.SeverityPositive},
	{ConditionDiabetes, nil,
		"Moderate impact on blood sugar",
		"Monitor portion size and pair with protein", models.SeverityNeutral},

	// "low sodium" contains "sodium", so the positive rule goes first
	{ConditionHypertension, []string{"low sodium", "unsalted"},
		"Low sodium content is good for blood pressure",
		"This is a good choice for hypertension management", models.SeverityPositive},
	{ConditionHypertension, []string{"salt", "sodium"},
		"High sodium content may affect blood pressure",
		"Request low-sodium preparation or smaller portions", models.SeverityNegative},
	{ConditionHypertension, nil,
		"Moderate sodium content",
		"Monitor portion size and avoid adding extra salt", models.SeverityNeutral},

	{ConditionHeartDisease, []string{"fried", "fatty"},
		"High in saturated fats may affect heart health",
		"Consider grilled or baked alternatives", models.SeverityNegative},
	{ConditionHeartDisease, []string{"grilled", "baked"},
		"Low in saturated fats, good for heart health",
		"This is a good choice for heart health", models.SeverityPositive},
	{ConditionHeartDisease, nil,
		"Moderate impact on heart health",
		"Monitor portion size and fat content", models.SeverityNeutral},
}

// GenericImpact is reported for conditions without rules.
var GenericImpact = ImpactRule{
	Impact:         "General health impact",
	Recommendation: "Consider your overall dietary needs",
	Severity:       models.SeverityNeutral,
}

var DefaultConcernRules = []ConcernRule{
	{ConditionDiabetes, []string{"sugar", "sweet"}, "High in sugar"},
	{ConditionHypertension, []string{"salt", "sodium"}, "High in sodium"},
	{ConditionHeartDisease, []string{"fried", "fatty"}, "High in saturated fats"},
}

var DefaultBenefitRules = []BenefitRule{
	{"vegan", []string{"vegetable", "plant"}, "Rich in plant-based nutrients"},
	{"keto", []string{"protein", "fat"}, "Good source of protein and healthy fats"},
	{"low-sodium", []string{"low sodium", "unsalted"}, "Low in sodium"},

	{"", []string{"grilled", "baked"}, "Low in unhealthy fats"},
	{"", []string{"vegetable", "salad"}, "Rich in vitamins and minerals"},
	{"", []string{"whole grain", "fiber"}, "Good source of fiber"},
}

var DefaultAlternativeRules = []AlternativeRule{
	{"Italian", []string{"pasta"}, []string{"Zucchini Noodles", "Whole Wheat Pasta"}},
	{"Italian", []string{"pizza"}, []string{"Cauliflower Crust Pizza"}},
	{"Mexican", []string{"taco"}, []string{"Lettuce Wrap Tacos"}},
	{"Mexican", []string{"burrito"}, []string{"Bowl Style (No Tortilla)"}},
	{"Indian", []string{"curry"}, []string{"Tofu Curry", "Vegetable Curry"}},
}

var ConditionAlternatives = map[Condition]string{
	ConditionDiabetes:     "Grilled Protein with Vegetables",
	ConditionHypertension: "Low-Sodium Options",
	ConditionHeartDisease: "Grilled or Baked Options",
}

// Cuisines are checked in order; the first label found wins.
var Cuisines = []string{"Italian", "Mexican", "Indian", "Chinese", "Japanese", "American"}

const DefaultCuisine = "American"

var AllergenVocabulary = []string{
	"gluten", "dairy", "nuts", "peanuts", "shellfish",
	"fish", "eggs", "soy", "wheat", "sesame",
}

// Keyword flags that hold a dish back from the top recommendation band.
var recommendationFlags = [][]string{
	{"fried", "deep fried", "crispy"},
	{"salt", "soy sauce", "sauce"},
	{"cream", "butter", "cheese"},
	{"sweet", "sugar", "syrup"},
}

const (
	RecommendationExcellent  = "Excellent choice! This dish aligns well with your health profile."
	RecommendationGood       = "Good option, but consider portion size and preparation method."
	RecommendationPoor       = "This dish may not be the best choice for your health profile. Consider alternatives."
	RecommendationNoProfile  = "Please complete your health profile for personalized recommendations"
	excellentScoreThreshold  = 80
	acceptableScoreThreshold = 60
)

// dietaryRestrictions lists the ingredients each condition rules out.
var dietaryRestrictions = map[string][]string{
	"diabetes":            {"sugar", "high-carb foods"},
	"hypertension":        {"high-sodium foods"},
	"celiac disease":      {"gluten", "wheat"},
	"lactose intolerance": {"dairy", "milk", "cheese"},
	"nut allergy":         {"nuts", "peanuts", "tree nuts"},
	"shellfish allergy":   {"shellfish", "seafood"},
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}
