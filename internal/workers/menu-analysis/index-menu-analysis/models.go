// internal/workers/menu-analysis/index-menu-analysis/models.go
package indexmenuanalysis

import (
	"time"

	"menu-health-workers/internal/common/validation"
	"menu-health-workers/internal/models"
)

type Input struct {
	MenuID    string            `json:"menuId"`
	UserID    string            `json:"userId"`
	MenuItems []models.MenuItem `json:"menuItems"`
}

type Output struct {
	Indexed int    `json:"indexed"`
	Failed  int    `json:"failed"`
	Index   string `json:"index"`
}

// Document is the search representation of one analyzed menu item.
type Document struct {
	MenuID          string                `json:"menuId"`
	UserID          string                `json:"userId,omitempty"`
	ItemID          string                `json:"itemId"`
	Name            string                `json:"name"`
	Description     string                `json:"description,omitempty"`
	Cuisine         string                `json:"cuisine"`
	Price           string                `json:"price,omitempty"`
	HealthScore     int                   `json:"healthScore"`
	SafetyLevel     models.SafetyLevel    `json:"safetyLevel"`
	Allergens       []string              `json:"allergens"`
	Recommendation  string                `json:"recommendation"`
	DietaryBenefits []string              `json:"dietaryBenefits"`
	DietaryConcerns []string              `json:"dietaryConcerns"`
	HealthImpacts   []models.HealthImpact `json:"healthImpacts"`
	NutritionalInfo map[string]string     `json:"nutritionalInfo"`
	IndexedAt       time.Time             `json:"indexedAt"`
}

const indexMapping = `{
	"mappings": {
		"properties": {
			"menuId":          {"type": "keyword"},
			"userId":          {"type": "keyword"},
			"itemId":          {"type": "keyword"},
			"name":            {"type": "text", "fields": {"raw": {"type": "keyword"}}},
			"description":     {"type": "text"},
			"cuisine":         {"type": "keyword"},
			"price":           {"type": "keyword"},
			"healthScore":     {"type": "integer"},
			"safetyLevel":     {"type": "keyword"},
			"allergens":       {"type": "keyword"},
			"recommendation":  {"type": "text"},
			"dietaryBenefits": {"type": "keyword"},
			"dietaryConcerns": {"type": "keyword"},
			"healthImpacts":   {"type": "object", "enabled": false},
			"nutritionalInfo": {"type": "object", "enabled": false},
			"indexedAt":       {"type": "date"}
		}
	}
}`

var inputSchema = validation.MustCompile(`{
	"type": "object",
	"required": ["menuId", "menuItems"],
	"properties": {
		"menuId": {"type": "string", "minLength": 1},
		"userId": {"type": "string"},
		"menuItems": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["id", "name"],
				"properties": {
					"id":   {"type": "string"},
					"name": {"type": "string"}
				}
			}
		}
	}
}`)
