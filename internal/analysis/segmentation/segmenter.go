// internal/analysis/segmentation/segmenter.go
package segmentation

import (
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"menu-health-workers/internal/models"
)

// Origin is the corner of the page the OCR coordinates are measured from.
type Origin string

const (
	OriginBottomLeft Origin = "bottom-left"
	OriginTopLeft    Origin = "top-left"
)

const (
	DefaultVerticalThreshold   = 0.05
	DefaultHorizontalThreshold = 0.1
)

type Config struct {
	Origin              Origin
	VerticalThreshold   float64
	HorizontalThreshold float64
}

func DefaultConfig() Config {
	return Config{
		Origin:              OriginBottomLeft,
		VerticalThreshold:   DefaultVerticalThreshold,
		HorizontalThreshold: DefaultHorizontalThreshold,
	}
}

// Segmenter groups OCR lines into candidate menu items. It is stateless
// between calls.
type Segmenter struct {
	config Config
}

func NewSegmenter(cfg Config) *Segmenter {
	if cfg.Origin == "" {
		cfg.Origin = OriginBottomLeft
	}
	if cfg.VerticalThreshold <= 0 {
		cfg.VerticalThreshold = DefaultVerticalThreshold
	}
	if cfg.HorizontalThreshold <= 0 {
		cfg.HorizontalThreshold = DefaultHorizontalThreshold
	}
	return &Segmenter{config: cfg}
}

type line struct {
	text string
	box  models.BoundingBox
}

// Segment returns the raw items found in observations, top of the page first.
// It never fails; unusable lines are dropped.
func (s *Segmenter) Segment(observations []models.OCRObservation) []models.RawLineItem {
	lines := make([]line, 0, len(observations))
	for _, obs := range s.sorted(observations) {
		if text, ok := Clean(obs.Text); ok {
			lines = append(lines, line{text: text, box: obs.BoundingBox})
		}
	}

	var (
		items   []models.RawLineItem
		current *models.RawLineItem
	)
	closeCurrent := func() {
		if current != nil {
			current.Description = strings.TrimSpace(current.Description)
			items = append(items, *current)
			current = nil
		}
	}

	for _, l := range lines {
		if price, ok := ExtractPrice(l.text); ok {
			name := strings.TrimSpace(strings.Replace(l.text, price, "", 1))
			name = strings.TrimSpace(edgeDots.ReplaceAllString(name, ""))
			if name == "" {
				// price printed in its own box belongs to the open unpriced dish
				if current != nil && current.Price == "" {
					current.Price = price
				}
				continue
			}
			closeCurrent()
			if leadingDigits.MatchString(name) {
				continue
			}
			current = &models.RawLineItem{Name: name, Price: price, AnchorBox: l.box}
			continue
		}

		if current != nil && s.isContinuation(l.box, current.AnchorBox) {
			desc := strings.TrimSpace(edgeDots.ReplaceAllString(l.text, ""))
			if desc == "" || onlyDigits.MatchString(desc) {
				continue
			}
			if current.Description != "" {
				current.Description += " "
			}
			current.Description += desc
			continue
		}

		closeCurrent()
		if onlyDigits.MatchString(l.text) {
			continue
		}
		current = &models.RawLineItem{Name: l.text, AnchorBox: l.box}
	}
	closeCurrent()

	out := make([]models.RawLineItem, 0, len(items))
	for _, item := range items {
		if !IsLikelyNotFood(item.Name) {
			out = append(out, item)
		}
	}
	return out
}

func (s *Segmenter) sorted(observations []models.OCRObservation) []models.OCRObservation {
	out := make([]models.OCRObservation, len(observations))
	copy(out, observations)
	topLeft := s.config.Origin == OriginTopLeft
	sort.SliceStable(out, func(i, j int) bool {
		if topLeft {
			return out[i].BoundingBox.Y < out[j].BoundingBox.Y
		}
		return out[i].BoundingBox.Y > out[j].BoundingBox.Y
	})
	return out
}

func (s *Segmenter) isContinuation(box, anchor models.BoundingBox) bool {
	return math.Abs(box.Y-anchor.Y) < s.config.VerticalThreshold &&
		math.Abs(box.X-anchor.X) < s.config.HorizontalThreshold
}

var glyphReplacer = strings.NewReplacer("•", "", "·", "", "…", "")

// Clean strips OCR noise from one line. It reports false when nothing
// usable remains.
func Clean(text string) (string, bool) {
	cleaned := strings.TrimSpace(text)
	if utf8.RuneCountInString(cleaned) < 2 {
		return "", false
	}
	for _, re := range noisePatterns {
		cleaned = re.ReplaceAllString(cleaned, "")
	}
	cleaned = strings.TrimSpace(glyphReplacer.Replace(cleaned))
	if cleaned == "" || leadingDigits.MatchString(cleaned) {
		return "", false
	}
	return cleaned, true
}

// ExtractPrice returns the first price found in text.
func ExtractPrice(text string) (string, bool) {
	for _, re := range pricePatterns {
		if m := re.FindString(text); m != "" {
			return m, true
		}
	}
	return "", false
}

func IsLikelyNotFood(name string) bool {
	for _, re := range nonFoodPatterns {
		if re.MatchString(name) {
			return true
		}
	}
	return utf8.RuneCountInString(name) < 3 || leadingDigits.MatchString(name)
}
