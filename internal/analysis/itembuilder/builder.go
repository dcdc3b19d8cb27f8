// internal/analysis/itembuilder/builder.go
package itembuilder

import (
	"fmt"
	"sync"

	"menu-health-workers/internal/analysis/scoring"
	"menu-health-workers/internal/models"

	"github.com/google/uuid"
)

const (
	NutritionPending    = "Analyzing..."
	NutritionNoProfile  = "N/A"
	DefaultRating       = 0
	itemIDNamespaceName = "menu-health-workers/menu-item"
)

var itemNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte(itemIDNamespaceName))

// Builder turns raw segmented lines into annotated menu items.
type Builder struct {
	engine *scoring.Engine
}

func NewBuilder(engine *scoring.Engine) *Builder {
	return &Builder{engine: engine}
}

// Build annotates one raw item. The result depends only on its inputs.
func (b *Builder) Build(raw models.RawLineItem, profile *models.UserHealthProfile) models.MenuItem {
	if profile != nil {
		profile = profile.Normalized()
	}
	a := b.engine.Evaluate(raw.Name, raw.Description, profile)

	placeholder := NutritionPending
	if profile == nil {
		placeholder = NutritionNoProfile
	}

	return models.MenuItem{
		ID:                 ItemID(raw),
		Name:               raw.Name,
		Cuisine:            a.Cuisine,
		Price:              raw.Price,
		Description:        raw.Description,
		Rating:             DefaultRating,
		HealthScore:        a.HealthScore,
		Allergens:          a.Allergens,
		NutritionalInfo:    models.NewNutritionalInfo(placeholder),
		Recommendation:     a.Recommendation,
		HealthImpacts:      a.HealthImpacts,
		DietaryBenefits:    a.Benefits,
		DietaryConcerns:    a.Concerns,
		AlternativeOptions: a.Alternatives,
		SafetyLevel:        a.SafetyLevel,
	}
}

// BuildAll builds every item concurrently and keeps the input order.
func (b *Builder) BuildAll(raws []models.RawLineItem, profile *models.UserHealthProfile) []models.MenuItem {
	items := make([]models.MenuItem, len(raws))
	if profile != nil {
		profile = profile.Normalized()
	}

	var wg sync.WaitGroup
	for i := range raws {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			items[i] = b.Build(raws[i], profile)
		}(i)
	}
	wg.Wait()

	return items
}

// ItemID derives a stable identifier from the raw item's content and position.
func ItemID(raw models.RawLineItem) string {
	key := fmt.Sprintf("%s|%s|%s|%.4f,%.4f,%.4f,%.4f",
		raw.Name, raw.Price, raw.Description,
		raw.AnchorBox.X, raw.AnchorBox.Y, raw.AnchorBox.Width, raw.AnchorBox.Height)
	return uuid.NewSHA1(itemNamespace, []byte(key)).String()
}
