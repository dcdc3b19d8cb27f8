// internal/workers/menu-analysis/augment-menu-items/cache.go
package augmentmenuitems

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"menu-health-workers/internal/analysis/augment"
	"menu-health-workers/internal/common/database"
	"menu-health-workers/internal/models"

	"github.com/redis/go-redis/v9"
)

const CacheKeyPrefix = "menu:analysis:"

// analysisCache stores model results so repeated menus skip the model.
// Fallback results are never stored.
type analysisCache struct {
	redis redis.Cmdable
	ttl   time.Duration
}

func (c *analysisCache) enabled() bool {
	return c != nil && c.redis != nil && c.ttl > 0
}

func (c *analysisCache) get(ctx context.Context, key string) (*augment.Result, bool, error) {
	var r augment.Result
	hit, err := database.GetJSON(ctx, c.redis, key, &r)
	if err != nil || !hit || r.Fallback {
		return nil, false, err
	}
	return &r, true, nil
}

func (c *analysisCache) set(ctx context.Context, key string, r *augment.Result) error {
	if r == nil || r.Fallback {
		return nil
	}
	return database.SetJSON(ctx, c.redis, key, r, c.ttl)
}

// CacheKey fingerprints the parts of an item and profile that reach the prompt.
func CacheKey(item models.MenuItem, profile *models.UserHealthProfile) string {
	payload, _ := json.Marshal(struct {
		Name        string                    `json:"name"`
		Description string                    `json:"description"`
		Cuisine     string                    `json:"cuisine"`
		HealthScore int                       `json:"healthScore"`
		Concerns    []string                  `json:"concerns"`
		Profile     *models.UserHealthProfile `json:"profile"`
	}{
		Name:        item.Name,
		Description: item.Description,
		Cuisine:     item.Cuisine,
		HealthScore: item.HealthScore,
		Concerns:    item.DietaryConcerns,
		Profile:     profile.Normalized(),
	})
	sum := sha256.Sum256(payload)
	return CacheKeyPrefix + hex.EncodeToString(sum[:])
}
