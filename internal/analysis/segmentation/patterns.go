// internal/analysis/segmentation/patterns.go
package segmentation

import "regexp"

// Whole-line OCR noise. Matches are blanked before the line is considered.
var noisePatterns = compileAll(
	`\.{2,}`,
	`^[•\-\*]+$`,
	`^[0-9]+$`,
	`^[A-Za-z]\.$`,
	`^[•\-\*]\s*$`,
	`^\s*[•\-\*]\s*$`,
	`^[0-9]+\s*[A-Za-z]$`,
	`^[A-Za-z]\s*[0-9]+$`,
	`^[0-9]+\s*[•\-\*]$`,
	`^[•\-\*]\s*[0-9]+$`,
)

// Price formats in priority order. The first pattern with a match wins.
var pricePatterns = compileAll(
	`\$\d+(\.\d{2})?`,
	`€\d+(\.\d{2})?`,
	`£\d+(\.\d{2})?`,
	`\d+(\.\d{2})?\s*(USD|EUR|GBP)`,
	`\d+(\.\d{2})?\s*(dollars|euros|pounds)`,
	`\d+(\.\d{2})?\s*(Rs|INR)`,
	`\d+(\.\d{2})?`,
)

// Names matching any of these are dropped from the final output.
var nonFoodPatterns = compileAll(
	`^[0-9]+$`,
	`^[A-Za-z]\.$`,
	`^[•\-\*]+$`,
	`^[A-Za-z]$`,
	`^[0-9]+\s*[A-Za-z]$`,
	`^[A-Za-z]\s*[0-9]+$`,
	`^[•\-\*]\s*[A-Za-z0-9]$`,
	`^[A-Za-z0-9]\s*[•\-\*]$`,
	`^[0-9]+\s*[•\-\*]$`,
	`^[•\-\*]\s*[0-9]+$`,
	`^[0-9]+[A-Za-z]$`,
	`^[A-Za-z][0-9]+$`,
)

var (
	leadingDigits = regexp.MustCompile(`^[0-9]+`)
	onlyDigits    = regexp.MustCompile(`^[0-9]+$`)
	edgeDots      = regexp.MustCompile(`^\.+|\.+$`)
)

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(p)
	}
	return out
}
