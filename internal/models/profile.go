// internal/models/profile.go
package models

import "strings"

// UserHealthProfile holds the user's declared health context. The collection
// fields behave as sets; order is preserved for stable output.
type UserHealthProfile struct {
	ChronicConditions []string `json:"chronicConditions"`
	FoodAllergies     []string `json:"foodAllergies"`
	Medications       []string `json:"medications"`
	DietType          *string  `json:"dietType,omitempty"`
	PermanentDislikes []string `json:"permanentDislikes"`
	ActivityLevel     string   `json:"activityLevel"`
	LongTermGoals     []string `json:"longTermGoals"`
}

// Normalized returns a copy with blank and "None" entries removed, values
// trimmed and duplicates (case-insensitive) dropped.
func (p *UserHealthProfile) Normalized() *UserHealthProfile {
	if p == nil {
		return nil
	}
	out := &UserHealthProfile{
		ChronicConditions: normalizeSet(p.ChronicConditions),
		FoodAllergies:     normalizeSet(p.FoodAllergies),
		Medications:       normalizeSet(p.Medications),
		PermanentDislikes: normalizeSet(p.PermanentDislikes),
		ActivityLevel:     strings.TrimSpace(p.ActivityLevel),
		LongTermGoals:     normalizeSet(p.LongTermGoals),
	}
	if p.DietType != nil {
		if dt := strings.TrimSpace(*p.DietType); dt != "" && !strings.EqualFold(dt, "none") {
			out.DietType = &dt
		}
	}
	return out
}

// Diet returns the lowercased diet type or "" when none is set.
func (p *UserHealthProfile) Diet() string {
	if p == nil || p.DietType == nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(*p.DietType))
}

func normalizeSet(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || strings.EqualFold(v, "none") {
			continue
		}
		key := strings.ToLower(v)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}
