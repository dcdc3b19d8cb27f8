// internal/analysis/scoring/engine.go
package scoring

import (
	"strings"

	"menu-health-workers/internal/models"
)

const DefaultAllergenPenalty = 50

type Config struct {
	AllergenPenalty int
}

// Engine evaluates menu items against a health profile using keyword rule
// tables. It holds no mutable state and is safe for concurrent use.
type Engine struct {
	allergenPenalty  int
	scoreRules       []ScoreRule
	impactRules      []ImpactRule
	concernRules     []ConcernRule
	benefitRules     []BenefitRule
	alternativeRules []AlternativeRule
}

type Option func(*Engine)

func WithScoreRules(rules []ScoreRule) Option {
	return func(e *Engine) { e.scoreRules = rules }
}

func WithImpactRules(rules []ImpactRule) Option {
	return func(e *Engine) { e.impactRules = rules }
}

func NewEngine(cfg Config, opts ...Option) *Engine {
	penalty := cfg.AllergenPenalty
	if penalty < 0 {
		penalty = DefaultAllergenPenalty
	}
	e := &Engine{
		allergenPenalty:  penalty,
		scoreRules:       DefaultScoreRules,
		impactRules:      DefaultImpactRules,
		concernRules:     DefaultConcernRules,
		benefitRules:     DefaultBenefitRules,
		alternativeRules: DefaultAlternativeRules,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Assessment is everything the engine derives for one item.
type Assessment struct {
	HealthScore    int
	Cuisine        string
	Allergens      []string
	HealthImpacts  []models.HealthImpact
	Benefits       []string
	Concerns       []string
	Alternatives   []string
	Recommendation string
	SafetyLevel    models.SafetyLevel
}

// Evaluate runs every rule family for one item. The profile is normalized
// first; a nil profile yields the placeholder assessment.
func (e *Engine) Evaluate(name, description string, profile *models.UserHealthProfile) Assessment {
	if profile != nil {
		profile = profile.Normalized()
	}
	score := e.Score(name, description, profile)
	return Assessment{
		HealthScore:    score,
		Cuisine:        DetectCuisine(name, description),
		Allergens:      DetectAllergens(name, description),
		HealthImpacts:  e.Impacts(name, description, profile),
		Benefits:       e.Benefits(name, description, profile),
		Concerns:       e.Concerns(name, description, profile),
		Alternatives:   e.Alternatives(name, description, profile),
		Recommendation: Recommendation(name, description, score, profile),
		SafetyLevel:    SafetyLevel(name, description, profile),
	}
}

func itemText(name, description string) string {
	return strings.ToLower(name + " " + description)
}

// Score returns a 0..100 health score. Each matching rule group applies once.
// Without a profile the score is 0.
func (e *Engine) Score(name, description string, profile *models.UserHealthProfile) int {
	if profile == nil {
		return 0
	}
	text := itemText(name, description)
	score := 100

	for _, allergy := range profile.FoodAllergies {
		a := strings.ToLower(strings.TrimSpace(allergy))
		if a != "" && strings.Contains(text, a) {
			score -= e.allergenPenalty
		}
	}

	conditions := parseConditions(profile)
	for _, rule := range e.scoreRules {
		if rule.Condition != ConditionAny && !conditions[rule.Condition] {
			continue
		}
		if containsAny(text, rule.Keywords) {
			score += rule.Delta
		}
	}

	return clamp(score, 0, 100)
}

// Impacts returns one HealthImpact per chronic condition in the profile.
func (e *Engine) Impacts(name, description string, profile *models.UserHealthProfile) []models.HealthImpact {
	impacts := []models.HealthImpact{}
	if profile == nil {
		return impacts
	}
	text := itemText(name, description)

	for _, raw := range profile.ChronicConditions {
		rule := GenericImpact
		if c, ok := ParseCondition(raw); ok {
			for _, r := range e.impactRules {
				if r.Condition == c && (len(r.Keywords) == 0 || containsAny(text, r.Keywords)) {
					rule = r
					break
				}
			}
		}
		impacts = append(impacts, models.HealthImpact{
			Condition:      raw,
			Impact:         rule.Impact,
			Recommendation: rule.Recommendation,
			Severity:       rule.Severity,
		})
	}
	return impacts
}

func (e *Engine) Benefits(name, description string, profile *models.UserHealthProfile) []string {
	benefits := []string{}
	if profile == nil {
		return benefits
	}
	text := itemText(name, description)
	diet := profile.Diet()

	for _, rule := range e.benefitRules {
		if rule.Diet != "" && rule.Diet != diet {
			continue
		}
		if containsAny(text, rule.Keywords) {
			benefits = append(benefits, rule.Benefit)
		}
	}
	return benefits
}

func (e *Engine) Concerns(name, description string, profile *models.UserHealthProfile) []string {
	concerns := []string{}
	if profile == nil {
		return concerns
	}
	text := itemText(name, description)

	for _, allergy := range profile.FoodAllergies {
		a := strings.ToLower(strings.TrimSpace(allergy))
		if a != "" && strings.Contains(text, a) {
			concerns = append(concerns, "Contains "+allergy)
		}
	}

	conditions := parseConditions(profile)
	for _, rule := range e.concernRules {
		if conditions[rule.Condition] && containsAny(text, rule.Keywords) {
			concerns = append(concerns, rule.Concern)
		}
	}
	return concerns
}

// Alternatives suggests cuisine-specific substitutions keyed on the item
// name, followed by one suggestion per known condition in the profile.
func (e *Engine) Alternatives(name, description string, profile *models.UserHealthProfile) []string {
	alternatives := []string{}
	if profile == nil {
		return alternatives
	}
	cuisine := DetectCuisine(name, description)
	lowerName := strings.ToLower(name)

	for _, rule := range e.alternativeRules {
		if rule.Cuisine == cuisine && containsAny(lowerName, rule.Keywords) {
			alternatives = append(alternatives, rule.Suggestions...)
		}
	}

	seen := make(map[Condition]bool)
	for _, raw := range profile.ChronicConditions {
		c, ok := ParseCondition(raw)
		if !ok || seen[c] {
			continue
		}
		seen[c] = true
		if s, ok := ConditionAlternatives[c]; ok {
			alternatives = append(alternatives, s)
		}
	}
	return alternatives
}

// Recommendation grades the score into one of three bands. Any warning
// keyword keeps an item out of the top band.
func Recommendation(name, description string, score int, profile *models.UserHealthProfile) string {
	if profile == nil {
		return RecommendationNoProfile
	}
	text := itemText(name, description)

	flagged := false
	for _, group := range recommendationFlags {
		if containsAny(text, group) {
			flagged = true
			break
		}
	}

	switch {
	case score >= excellentScoreThreshold && !flagged:
		return RecommendationExcellent
	case score >= acceptableScoreThreshold:
		return RecommendationGood
	default:
		return RecommendationPoor
	}
}

// DetectCuisine returns the first cuisine label mentioned in the item text,
// or DefaultCuisine.
func DetectCuisine(name, description string) string {
	text := itemText(name, description)
	for _, c := range Cuisines {
		if strings.Contains(text, strings.ToLower(c)) {
			return c
		}
	}
	return DefaultCuisine
}

// DetectAllergens returns the vocabulary terms found in the item text, in
// vocabulary order.
func DetectAllergens(name, description string) []string {
	text := itemText(name, description)
	found := []string{}
	for _, a := range AllergenVocabulary {
		if strings.Contains(text, a) {
			found = append(found, a)
		}
	}
	return found
}

// SafetyLevel checks the item's ingredient list against the restrictions
// implied by the profile's conditions and allergies.
func SafetyLevel(name, description string, profile *models.UserHealthProfile) models.SafetyLevel {
	restrictions := restrictionsFor(profile)
	if len(restrictions) == 0 {
		return models.SafetyLevelSafe
	}

	ingredients := strings.FieldsFunc(strings.ToLower(name+","+description), func(r rune) bool {
		return r == ',' || r == '(' || r == ')' || r == '/'
	})

	level := models.SafetyLevelSafe
	for _, ing := range ingredients {
		ing = strings.TrimSpace(ing)
		if ing == "" {
			continue
		}
		for _, r := range restrictions {
			if strings.Contains(ing, r) {
				return models.SafetyLevelUnsafe
			}
			if strings.Contains(r, ing) {
				level = models.SafetyLevelCaution
			}
		}
	}
	return level
}

func restrictionsFor(profile *models.UserHealthProfile) []string {
	if profile == nil {
		return nil
	}
	var out []string
	for _, c := range profile.ChronicConditions {
		out = append(out, dietaryRestrictions[strings.ToLower(strings.TrimSpace(c))]...)
	}
	for _, a := range profile.FoodAllergies {
		if a = strings.ToLower(strings.TrimSpace(a)); a != "" {
			out = append(out, a)
		}
	}
	return out
}

func parseConditions(profile *models.UserHealthProfile) map[Condition]bool {
	set := make(map[Condition]bool, len(profile.ChronicConditions))
	for _, raw := range profile.ChronicConditions {
		if c, ok := ParseCondition(raw); ok {
			set[c] = true
		}
	}
	return set
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
