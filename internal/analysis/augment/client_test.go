package augment

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	commonhttp "menu-health-workers/internal/common/http"
	"menu-health-workers/internal/common/logger"
	"menu-health-workers/internal/common/ratelimit"
	"menu-health-workers/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validAnalysis = `{
	"isHealthy": false,
	"reason": "High in sugar for a diabetic profile",
	"healthImpacts": ["Raises blood sugar quickly"],
	"recommendations": ["Share a smaller slice", "Choose the fruit plate"],
	"nutritionalInfo": {"Calories": "450 kcal", "Sugar": "38g"}
}`

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	return ctx.Err()
}

func envelope(t *testing.T, text string) string {
	t.Helper()
	body := map[string]interface{}{
		"candidates": []interface{}{
			map[string]interface{}{
				"content": map[string]interface{}{
					"parts": []interface{}{map[string]interface{}{"text": text}},
				},
			},
		},
	}
	b, err := json.Marshal(body)
	require.NoError(t, err)
	return string(b)
}

func testItem() models.MenuItem {
	return models.MenuItem{
		Name:            "Chocolate Cake with extra sugar",
		Description:     "three layers",
		Cuisine:         "American",
		HealthScore:     60,
		DietaryConcerns: []string{"High in sugar"},
		Recommendation:  "Good option, but consider portion size and preparation method.",
	}
}

func testProfile() *models.UserHealthProfile {
	return &models.UserHealthProfile{ChronicConditions: []string{"Diabetes"}}
}

func newTestClient(t *testing.T, endpoint string, limiter *ratelimit.Limiter, opts ...Option) *Client {
	t.Helper()
	return NewClient(Config{
		Endpoint:          endpoint,
		APIKey:            "test-key",
		Timeout:           5 * time.Second,
		MaxRetries:        3,
		InitialRetryDelay: 2 * time.Second,
	}, limiter, logger.NewTestLogger(t), opts...)
}

func assertFallback(t *testing.T, r *Result, reason string) {
	t.Helper()
	require.NotNil(t, r)
	assert.True(t, r.Fallback)
	assert.Equal(t, reason, r.FallbackReason)
	assert.True(t, r.Analysis.IsHealthy)
	assert.Equal(t, FallbackReasonText, r.Analysis.Reason)
	assert.Len(t, r.Analysis.HealthImpacts, 1)
	assert.Len(t, r.Analysis.Recommendations, 2)
	require.Len(t, r.NutritionalInfo, len(models.NutritionKeys))
	for _, k := range models.NutritionKeys {
		assert.Equal(t, NutritionUnknown, r.NutritionalInfo[k])
	}
}

func TestAnalyzeMenuItem_ServerErrorFallsBack(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"internal"}}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, ratelimit.New(0))
	result := client.AnalyzeMenuItem(context.Background(), testItem(), testProfile())

	assertFallback(t, result, ReasonUnavailable)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "HTTP errors are not retried")
}

func TestAnalyzeMenuItem_ShortCircuit(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, ratelimit.New(0))
	for _, name := range []string{"", "Ab", "Cafe", "CAFE", " cafe "} {
		item := testItem()
		item.Name = name
		assertFallback(t, client.AnalyzeMenuItem(context.Background(), item, testProfile()), ReasonSkipped)
	}
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestAnalyzeMenuItem_Success(t *testing.T) {
	var gotBody generateRequest
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		gotKey = r.Header.Get(DefaultAPIKeyHeader)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = w.Write([]byte(envelope(t, "```json\n"+validAnalysis+"\n```")))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, ratelimit.New(0))
	result := client.AnalyzeMenuItem(context.Background(), testItem(), testProfile())

	require.NotNil(t, result)
	assert.False(t, result.Fallback)
	assert.False(t, result.Analysis.IsHealthy)
	assert.Equal(t, "High in sugar for a diabetic profile", result.Analysis.Reason)
	assert.Equal(t, "450 kcal", result.NutritionalInfo["Calories"])
	assert.Equal(t, NutritionUnknown, result.NutritionalInfo["Protein"])
	assert.Len(t, result.NutritionalInfo, len(models.NutritionKeys))

	assert.Equal(t, "test-key", gotKey)
	require.Len(t, gotBody.Contents, 1)
	require.Len(t, gotBody.Contents[0].Parts, 1)
	prompt := gotBody.Contents[0].Parts[0].Text
	assert.Contains(t, prompt, "Chocolate Cake with extra sugar")
	assert.Contains(t, prompt, "Health Conditions: Diabetes")
	assert.Contains(t, prompt, "Health Score: 60/100")
	assert.Contains(t, prompt, "Concerns: High in sugar")
}

func TestAnalyzeMenuItem_InvalidSchemaFallsBack(t *testing.T) {
	responses := []string{
		`{"isHealthy":"yes","reason":"x","healthImpacts":[],"recommendations":[],"nutritionalInfo":{}}`,
		`{"isHealthy":true,"reason":"x","healthImpacts":[],"recommendations":[]}`,
		`I think this dish is fine.`,
	}
	for _, text := range responses {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(envelope(t, text)))
		}))
		client := newTestClient(t, srv.URL, ratelimit.New(0))
		assertFallback(t, client.AnalyzeMenuItem(context.Background(), testItem(), testProfile()), ReasonInvalidResponse)
		srv.Close()
	}
}

func TestGenerate_InvalidEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, ratelimit.New(0))
	_, err := client.Generate(context.Background(), "prompt")
	assert.ErrorIs(t, err, ErrInvalidResponse)

	result := client.AnalyzeMenuItem(context.Background(), testItem(), testProfile())
	assertFallback(t, result, ReasonInvalidResponse)
}

func TestGenerate_RetriesTransportFailures(t *testing.T) {
	var attempts int32
	transport := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		if atomic.AddInt32(&attempts, 1) <= 3 {
			return nil, errors.New("connection reset by peer")
		}
		return &http.Response{
			StatusCode: http.StatusOK,
			Header:     make(http.Header),
			Body:       io.NopCloser(strings.NewReader(envelope(t, validAnalysis))),
			Request:    r,
		}, nil
	})

	clock := newFakeClock()
	sleeper := &recordingSleeper{}
	client := newTestClient(t, "http://model.invalid/generate",
		ratelimit.New(time.Second, ratelimit.WithClock(clock)),
		WithHTTPClient(&http.Client{Transport: transport}),
		WithSleeper(sleeper.Sleep),
	)

	text, err := client.Generate(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Contains(t, text, "isHealthy")
	assert.Equal(t, int32(4), atomic.LoadInt32(&attempts))
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}, sleeper.delays)
	// every attempt after the first waits on the limiter
	assert.Equal(t, []time.Duration{time.Second, time.Second, time.Second}, clock.sleeps)
}

func TestGenerate_RetriesExhausted(t *testing.T) {
	var attempts int32
	transport := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		atomic.AddInt32(&attempts, 1)
		return nil, errors.New("dial tcp: connection refused")
	})

	sleeper := &recordingSleeper{}
	client := newTestClient(t, "http://model.invalid/generate", ratelimit.New(0),
		WithHTTPClient(&http.Client{Transport: transport}),
		WithSleeper(sleeper.Sleep),
	)

	_, err := client.Generate(context.Background(), "prompt")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAugmentationUnavailable)
	assert.ErrorIs(t, err, commonhttp.ErrRetriesExhausted)
	assert.Equal(t, int32(4), atomic.LoadInt32(&attempts))

	assertFallback(t, client.AnalyzeMenuItem(context.Background(), testItem(), testProfile()), ReasonUnavailable)
}

func TestAnalyzeMenuItem_CancelledContext(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := newTestClient(t, srv.URL, ratelimit.New(time.Second))
	assertFallback(t, client.AnalyzeMenuItem(ctx, testItem(), testProfile()), ReasonUnavailable)
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestGenerate_SharedLimiterSpacesClients(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(envelope(t, validAnalysis)))
	}))
	defer srv.Close()

	clock := newFakeClock()
	limiter := ratelimit.New(time.Second, ratelimit.WithClock(clock))
	a := newTestClient(t, srv.URL, limiter)
	b := newTestClient(t, srv.URL, limiter)

	_, err := a.Generate(context.Background(), "one")
	require.NoError(t, err)
	_, err = b.Generate(context.Background(), "two")
	require.NoError(t, err)

	assert.Equal(t, []time.Duration{time.Second}, clock.sleeps)
}

func TestGenerate_NoEndpoint(t *testing.T) {
	client := newTestClient(t, "", ratelimit.New(0))
	_, err := client.Generate(context.Background(), "prompt")
	assert.ErrorIs(t, err, ErrAugmentationUnavailable)
}
