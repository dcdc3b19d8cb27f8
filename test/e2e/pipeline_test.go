// test/e2e/pipeline_test.go
package e2e

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"menu-health-workers/internal/analysis/augment"
	"menu-health-workers/internal/analysis/itembuilder"
	"menu-health-workers/internal/analysis/scoring"
	"menu-health-workers/internal/analysis/segmentation"
	"menu-health-workers/internal/common/config"
	"menu-health-workers/internal/common/database"
	"menu-health-workers/internal/common/logger"
	"menu-health-workers/internal/common/ratelimit"
	"menu-health-workers/internal/models"

	augmentmenuitems "menu-health-workers/internal/workers/menu-analysis/augment-menu-items"
	buildmenuitems "menu-health-workers/internal/workers/menu-analysis/build-menu-items"
	indexmenuanalysis "menu-health-workers/internal/workers/menu-analysis/index-menu-analysis"
	segmentmenu "menu-health-workers/internal/workers/menu-analysis/segment-menu"
)

const modelAnalysis = `{
	"isHealthy": true,
	"reason": "Leafy greens with a moderate dressing",
	"healthImpacts": ["Low glycemic load"],
	"recommendations": ["Ask for the dressing on the side"],
	"nutritionalInfo": {"Calories": "380 kcal", "Protein": "12g", "Carbs": "14g", "Fat": "28g",
		"Fiber": "4g", "Sugar": "3g", "Sodium": "820mg"}
}`

var observations = []models.OCRObservation{
	{Text: "Caesar Salad $9.50", BoundingBox: models.BoundingBox{X: 0.10, Y: 0.80}},
	{Text: "romaine, parmesan, croutons", BoundingBox: models.BoundingBox{X: 0.12, Y: 0.77}},
	{Text: "Grilled Chicken Salad $12.99", BoundingBox: models.BoundingBox{X: 0.10, Y: 0.60}},
	{Text: "Fried Shrimp Basket $14.50", BoundingBox: models.BoundingBox{X: 0.10, Y: 0.40}},
}

func modelServer(t testing.TB, calls *atomic.Int32) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		body, _ := io.ReadAll(r.Body)
		if strings.Contains(string(body), "Fried Shrimp Basket") {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		envelope := map[string]interface{}{
			"candidates": []interface{}{map[string]interface{}{
				"content": map[string]interface{}{
					"parts": []interface{}{map[string]interface{}{"text": "```json\n" + modelAnalysis + "\n```"}},
				},
			}},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(envelope)
	}))
	t.Cleanup(srv.Close)
	return srv
}

type esRecorder struct {
	mu   sync.Mutex
	docs map[string]indexmenuanalysis.Document
}

func elasticsearchServer(t testing.TB, rec *esRecorder) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")

		switch {
		case r.Method == http.MethodHead:
			w.WriteHeader(http.StatusOK)
		case strings.HasSuffix(r.URL.Path, "/_bulk"):
			lines := strings.Split(strings.TrimSpace(readAll(r.Body)), "\n")
			var items []string
			rec.mu.Lock()
			for i := 0; i+1 < len(lines); i += 2 {
				var meta map[string]map[string]string
				var doc indexmenuanalysis.Document
				_ = json.Unmarshal([]byte(lines[i]), &meta)
				_ = json.Unmarshal([]byte(lines[i+1]), &doc)
				id := meta["index"]["_id"]
				rec.docs[id] = doc
				items = append(items, `{"index":{"_id":"`+id+`","status":201}}`)
			}
			rec.mu.Unlock()
			_, _ = w.Write([]byte(`{"errors":false,"items":[` + strings.Join(items, ",") + `]}`))
		default:
			_, _ = w.Write([]byte(`{"version":{"number":"8.11.0","build_flavor":"default"},"tagline":"You Know, for Search"}`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func readAll(r io.Reader) string {
	b, _ := io.ReadAll(r)
	return string(b)
}

type pipeline struct {
	segment *segmentmenu.Handler
	build   *buildmenuitems.Handler
	augment *augmentmenuitems.Handler
	index   *indexmenuanalysis.Handler
}

func newPipeline(t testing.TB, modelURL, esURL string, rdb redis.Cmdable) *pipeline {
	log := logger.NewNoOpLogger()

	engine := scoring.NewEngine(scoring.Config{AllergenPenalty: scoring.DefaultAllergenPenalty})
	augmenter := augment.NewClient(augment.Config{
		Endpoint:          modelURL,
		APIKey:            "test-key",
		MaxRetries:        0,
		InitialRetryDelay: time.Millisecond,
	}, ratelimit.New(0), log)

	es, err := database.NewElasticsearch(config.ElasticsearchConfig{URL: esURL})
	require.NoError(t, err)

	return &pipeline{
		segment: segmentmenu.NewHandler(segmentmenu.LoadConfig(), segmentation.NewSegmenter(segmentation.DefaultConfig()), nil, log),
		build:   buildmenuitems.NewHandler(buildmenuitems.LoadConfig(), itembuilder.NewBuilder(engine), nil, nil, log),
		augment: augmentmenuitems.NewHandler(
			&augmentmenuitems.Config{Timeout: 10 * time.Second, MaxConcurrency: 2, CacheTTL: time.Hour},
			augmenter, nil, rdb, nil, log,
		),
		index: indexmenuanalysis.NewHandler(&indexmenuanalysis.Config{Timeout: 10 * time.Second, Index: "menu-item-analyses"}, es, nil, log),
	}
}

func (p *pipeline) run(ctx context.Context, t testing.TB, menuID string, profile *models.UserHealthProfile) (*augmentmenuitems.Output, *indexmenuanalysis.Output) {
	segmented, err := p.segment.Execute(ctx, &segmentmenu.Input{Observations: observations})
	require.NoError(t, err)

	built, err := p.build.Execute(ctx, &buildmenuitems.Input{RawItems: segmented.RawItems, Profile: profile})
	require.NoError(t, err)

	augmented, err := p.augment.Execute(ctx, &augmentmenuitems.Input{MenuItems: built.MenuItems, Profile: profile})
	require.NoError(t, err)

	indexed, err := p.index.Execute(ctx, &indexmenuanalysis.Input{MenuID: menuID, UserID: "u-1", MenuItems: augmented.MenuItems})
	require.NoError(t, err)

	return augmented, indexed
}

func TestMenuAnalysisPipeline(t *testing.T) {
	var modelCalls atomic.Int32
	model := modelServer(t, &modelCalls)
	rec := &esRecorder{docs: map[string]indexmenuanalysis.Document{}}
	es := elasticsearchServer(t, rec)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	p := newPipeline(t, model.URL, es.URL, rdb)
	profile := &models.UserHealthProfile{
		ChronicConditions: []string{"Hypertension"},
		FoodAllergies:     []string{"Shrimp"},
	}

	augmented, indexed := p.run(context.Background(), t, "menu-1", profile)

	require.Len(t, augmented.MenuItems, 3)
	assert.Equal(t, 1, augmented.FallbackCount)
	assert.Equal(t, 3, indexed.Indexed)
	assert.Equal(t, int32(3), modelCalls.Load())

	caesar := augmented.MenuItems[0]
	assert.Equal(t, "Caesar Salad", caesar.Name)
	assert.Equal(t, "$9.50", caesar.Price)
	assert.Equal(t, "romaine, parmesan, croutons", caesar.Description)
	assert.Equal(t, "380 kcal", caesar.NutritionalInfo["Calories"])
	assert.Equal(t, "Ask for the dressing on the side", caesar.Recommendation)

	shrimp := augmented.MenuItems[2]
	assert.Equal(t, models.SafetyLevelUnsafe, shrimp.SafetyLevel)
	assert.Equal(t, augment.NutritionUnknown, shrimp.NutritionalInfo["Calories"])
	assert.Equal(t, augment.ReasonUnavailable, augmented.Analyses[2].FallbackReason)

	for _, item := range augmented.MenuItems {
		assert.GreaterOrEqual(t, item.HealthScore, 0)
		assert.LessOrEqual(t, item.HealthScore, 100)
		doc, ok := rec.docs[indexmenuanalysis.DocumentID("menu-1", item.ID)]
		require.True(t, ok, item.Name)
		assert.Equal(t, item.HealthScore, doc.HealthScore)
	}

	// a second pass over the same menu reuses cached model results and only
	// retries the item that fell back
	again, _ := p.run(context.Background(), t, "menu-1", profile)
	assert.Equal(t, int32(4), modelCalls.Load())
	assert.True(t, again.Analyses[0].Cached)
	assert.Equal(t, augmented.MenuItems[0].ID, again.MenuItems[0].ID)
	assert.Len(t, rec.docs, 3)
}

func TestMenuAnalysisPipeline_NoProfile(t *testing.T) {
	var modelCalls atomic.Int32
	model := modelServer(t, &modelCalls)
	rec := &esRecorder{docs: map[string]indexmenuanalysis.Document{}}
	es := elasticsearchServer(t, rec)

	p := newPipeline(t, model.URL, es.URL, nil)
	augmented, indexed := p.run(context.Background(), t, "menu-2", nil)

	assert.Equal(t, 3, indexed.Indexed)
	for _, item := range augmented.MenuItems {
		assert.Equal(t, models.SafetyLevelSafe, item.SafetyLevel)
	}
}

func BenchmarkSegmentMenu(b *testing.B) {
	h := segmentmenu.NewHandler(segmentmenu.LoadConfig(), segmentation.NewSegmenter(segmentation.DefaultConfig()), nil, logger.NewNoOpLogger())
	input := &segmentmenu.Input{Observations: observations}
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = h.Execute(ctx, input)
	}
}

func BenchmarkBuildMenuItems(b *testing.B) {
	engine := scoring.NewEngine(scoring.Config{})
	h := buildmenuitems.NewHandler(buildmenuitems.LoadConfig(), itembuilder.NewBuilder(engine), nil, nil, logger.NewNoOpLogger())
	input := &buildmenuitems.Input{
		RawItems: []models.RawLineItem{
			{Name: "Caesar Salad", Price: "$9.50", Description: "romaine, parmesan, croutons"},
			{Name: "Grilled Chicken Salad", Price: "$12.99"},
			{Name: "Fried Shrimp Basket", Price: "$14.50"},
		},
		Profile: &models.UserHealthProfile{ChronicConditions: []string{"Diabetes"}},
	}
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = h.Execute(ctx, input)
	}
}
