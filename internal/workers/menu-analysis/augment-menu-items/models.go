// internal/workers/menu-analysis/augment-menu-items/models.go
package augmentmenuitems

import (
	"menu-health-workers/internal/common/validation"
	"menu-health-workers/internal/models"
)

type Input struct {
	MenuItems []models.MenuItem         `json:"menuItems"`
	UserID    string                    `json:"userId,omitempty"`
	Profile   *models.UserHealthProfile `json:"profile,omitempty"`
}

// ItemAnalysis is the model narrative for one item, keyed by item id.
type ItemAnalysis struct {
	ItemID         string                `json:"itemId"`
	Analysis       models.HealthAnalysis `json:"analysis"`
	Fallback       bool                  `json:"fallback"`
	FallbackReason string                `json:"fallbackReason,omitempty"`
	ErrorCode      string                `json:"errorCode,omitempty"`
	Cached         bool                  `json:"cached"`
}

type Output struct {
	MenuItems     []models.MenuItem `json:"menuItems"`
	Analyses      []ItemAnalysis    `json:"analyses"`
	FallbackCount int               `json:"fallbackCount"`
}

var inputSchema = validation.MustCompile(`{
	"type": "object",
	"required": ["menuItems"],
	"properties": {
		"menuItems": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["id", "name"],
				"properties": {
					"id":          {"type": "string"},
					"name":        {"type": "string"},
					"healthScore": {"type": "integer", "minimum": 0, "maximum": 100}
				}
			}
		},
		"userId":  {"type": "string"},
		"profile": {"type": ["object", "null"]}
	}
}`)
