// internal/common/profiles/store.go
package profiles

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"menu-health-workers/internal/common/database"
	"menu-health-workers/internal/common/logger"
	"menu-health-workers/internal/models"

	"github.com/redis/go-redis/v9"
)

const CacheKeyPrefix = "user:health-profile:"

var ErrProfileNotFound = errors.New("PROFILE_NOT_FOUND")

const selectProfile = `
	SELECT chronic_conditions, food_allergies, medications, diet_type,
	       permanent_dislikes, activity_level, long_term_goals
	FROM user_health_profiles WHERE user_id = $1`

// Store loads health profiles from postgres through a redis read-through cache.
type Store struct {
	db     *sql.DB
	redis  *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

func NewStore(db *sql.DB, rdb *redis.Client, ttl time.Duration, log logger.Logger) *Store {
	return &Store{
		db:     db,
		redis:  rdb,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "profile-store"}),
	}
}

// Get returns the normalized profile for userID, or ErrProfileNotFound.
// Cache failures are logged and bypassed.
func (s *Store) Get(ctx context.Context, userID string) (*models.UserHealthProfile, error) {
	key := CacheKeyPrefix + userID

	if s.redis != nil {
		var cached models.UserHealthProfile
		hit, err := database.GetJSON(ctx, s.redis, key, &cached)
		if err != nil {
			s.logger.Warn("profile cache read failed", map[string]interface{}{
				"userId": userID,
				"error":  err.Error(),
			})
		}
		if hit {
			return cached.Normalized(), nil
		}
	}

	profile, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	if s.redis != nil {
		if err := database.SetJSON(ctx, s.redis, key, profile, s.ttl); err != nil {
			s.logger.Warn("profile cache write failed", map[string]interface{}{
				"userId": userID,
				"error":  err.Error(),
			})
		}
	}
	return profile, nil
}

func (s *Store) load(ctx context.Context, userID string) (*models.UserHealthProfile, error) {
	var (
		conditions, allergies, medications, dislikes, goals []byte
		dietType                                            sql.NullString
		activity                                            string
	)

	err := s.db.QueryRowContext(ctx, selectProfile, userID).Scan(
		&conditions, &allergies, &medications, &dietType, &dislikes, &activity, &goals,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("query profile: %w", err)
	}

	p := &models.UserHealthProfile{
		ChronicConditions: decodeList(conditions),
		FoodAllergies:     decodeList(allergies),
		Medications:       decodeList(medications),
		PermanentDislikes: decodeList(dislikes),
		ActivityLevel:     activity,
		LongTermGoals:     decodeList(goals),
	}
	if dietType.Valid {
		p.DietType = &dietType.String
	}
	return p.Normalized(), nil
}

func decodeList(raw []byte) []string {
	var out []string
	if len(raw) == 0 || json.Unmarshal(raw, &out) != nil {
		return []string{}
	}
	return out
}

// Loader is anything that can look up a profile by user id.
type Loader interface {
	Get(ctx context.Context, userID string) (*models.UserHealthProfile, error)
}

// Resolve picks the profile for a job: an inline profile wins, otherwise it
// is loaded by userID. A missing profile is not an error; callers degrade to
// profile-less output.
func Resolve(ctx context.Context, loader Loader, userID string, inline *models.UserHealthProfile) (*models.UserHealthProfile, error) {
	if inline != nil {
		return inline.Normalized(), nil
	}
	if userID == "" || loader == nil {
		return nil, nil
	}
	p, err := loader.Get(ctx, userID)
	if errors.Is(err, ErrProfileNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}
