// internal/analysis/augment/prompt.go
package augment

import (
	"fmt"
	"strings"

	"menu-health-workers/internal/models"
)

const responseFormat = `{
    "isHealthy": false,
    "reason": "one sentence about safety for this user",
    "healthImpacts": ["key impact for user condition", "key risk if relevant"],
    "recommendations": ["main modification if needed", "alternative suggestion"],
    "nutritionalInfo": {
        "Calories": "estimated calories for a standard serving",
        "Protein": "grams",
        "Carbs": "grams",
        "Fat": "grams",
        "Fiber": "grams",
        "Sugar": "grams",
        "Sodium": "milligrams"
    }
}`

// BuildPrompt renders the analysis request for one item. The locally
// computed score and concerns are passed along as context.
func BuildPrompt(item models.MenuItem, profile *models.UserHealthProfile) string {
	profile = profile.Normalized()
	if profile == nil {
		profile = &models.UserHealthProfile{}
	}

	diet := "None"
	if profile.DietType != nil {
		diet = *profile.DietType
	}

	var b strings.Builder
	b.WriteString("Return ONLY a JSON object analyzing this menu item. Do not add explanations, questions or Markdown.\n\n")

	b.WriteString("ITEM DETAILS:\n")
	fmt.Fprintf(&b, "Name: %s\n", item.Name)
	fmt.Fprintf(&b, "Description: %s\n", item.Description)
	fmt.Fprintf(&b, "Cuisine: %s\n\n", item.Cuisine)

	b.WriteString("USER PROFILE:\n")
	fmt.Fprintf(&b, "Health Conditions: %s\n", joinOrNone(profile.ChronicConditions))
	fmt.Fprintf(&b, "Allergies: %s\n", joinOrNone(profile.FoodAllergies))
	fmt.Fprintf(&b, "Diet Type: %s\n\n", diet)

	b.WriteString("LOCAL ASSESSMENT:\n")
	fmt.Fprintf(&b, "Health Score: %d/100\n", item.HealthScore)
	fmt.Fprintf(&b, "Concerns: %s\n\n", joinOrNone(item.DietaryConcerns))

	b.WriteString("TASK:\n")
	b.WriteString("1. Analyze the dish from its name, description and cuisine.\n")
	b.WriteString("2. Estimate nutrition for a standard serving.\n")
	b.WriteString("3. Consider cooking method, ingredients and portion size against the user profile.\n\n")

	b.WriteString("REQUIRED FORMAT:\n")
	b.WriteString(responseFormat)
	b.WriteString("\n")

	return b.String()
}

func joinOrNone(values []string) string {
	if len(values) == 0 {
		return "None"
	}
	return strings.Join(values, ", ")
}
