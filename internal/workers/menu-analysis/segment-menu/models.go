// internal/workers/menu-analysis/segment-menu/models.go
package segmentmenu

import (
	"menu-health-workers/internal/common/validation"
	"menu-health-workers/internal/models"
)

type Input struct {
	Observations []models.OCRObservation `json:"observations"`
}

type Output struct {
	RawItems  []models.RawLineItem `json:"rawItems"`
	ItemCount int                  `json:"itemCount"`
}

var inputSchema = validation.MustCompile(`{
	"type": "object",
	"required": ["observations"],
	"properties": {
		"observations": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["text", "boundingBox"],
				"properties": {
					"text": {"type": "string"},
					"boundingBox": {
						"type": "object",
						"required": ["x", "y"],
						"properties": {
							"x":      {"type": "number"},
							"y":      {"type": "number"},
							"width":  {"type": "number"},
							"height": {"type": "number"}
						}
					}
				}
			}
		}
	}
}`)
