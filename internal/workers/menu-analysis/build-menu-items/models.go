// internal/workers/menu-analysis/build-menu-items/models.go
package buildmenuitems

import (
	"menu-health-workers/internal/common/validation"
	"menu-health-workers/internal/models"
)

// Input carries the segmented items and either an inline profile or the id
// of a user whose stored profile should be applied.
type Input struct {
	RawItems []models.RawLineItem      `json:"rawItems"`
	UserID   string                    `json:"userId,omitempty"`
	Profile  *models.UserHealthProfile `json:"profile,omitempty"`
}

type Output struct {
	MenuItems      []models.MenuItem `json:"menuItems"`
	ProfileApplied bool              `json:"profileApplied"`
}

var inputSchema = validation.MustCompile(`{
	"type": "object",
	"required": ["rawItems"],
	"properties": {
		"rawItems": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["name"],
				"properties": {
					"name":        {"type": "string"},
					"price":       {"type": "string"},
					"description": {"type": "string"}
				}
			}
		},
		"userId":  {"type": "string"},
		"profile": {"type": ["object", "null"]}
	}
}`)
