package indexmenuanalysis

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"menu-health-workers/internal/common/config"
	"menu-health-workers/internal/common/database"
	apperrors "menu-health-workers/internal/common/errors"
	"menu-health-workers/internal/common/logger"
	"menu-health-workers/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIndexer struct {
	mu          sync.Mutex
	ensureCalls int
	ensureErr   error
	bulkErr     error
	result      *database.BulkResult
	index       string
	docs        []database.BulkDocument
}

func (f *fakeIndexer) EnsureIndex(ctx context.Context, index, mapping string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensureCalls++
	return f.ensureErr
}

func (f *fakeIndexer) BulkIndex(ctx context.Context, index string, docs []database.BulkDocument) (*database.BulkResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.index = index
	f.docs = docs
	if f.bulkErr != nil {
		return nil, f.bulkErr
	}
	if f.result != nil {
		return f.result, nil
	}
	return &database.BulkResult{Indexed: len(docs)}, nil
}

var fixedNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func newTestHandler(t *testing.T, indexer Indexer) *Handler {
	h := NewHandler(&Config{Timeout: 5 * time.Second, Index: "test-analyses"}, indexer, nil, logger.NewTestLogger(t))
	h.now = func() time.Time { return fixedNow }
	return h
}

func testInput() *Input {
	return &Input{
		MenuID: "menu-42",
		UserID: "u-1",
		MenuItems: []models.MenuItem{
			{ID: "a", Name: "Greek Salad", Cuisine: "Mediterranean", HealthScore: 90, SafetyLevel: models.SafetyLevelSafe},
			{ID: "b", Name: "Fried Chicken", Cuisine: "American", HealthScore: 40, SafetyLevel: models.SafetyLevelCaution},
		},
	}
}

func TestParseInput(t *testing.T) {
	tests := []struct {
		name      string
		variables string
		wantErr   bool
	}{
		{name: "valid", variables: `{"menuId":"m","userId":"u","menuItems":[{"id":"a","name":"Greek Salad"}]}`},
		{name: "missing menu id", variables: `{"menuItems":[]}`, wantErr: true},
		{name: "empty menu id", variables: `{"menuId":"","menuItems":[]}`, wantErr: true},
		{name: "item without id", variables: `{"menuId":"m","menuItems":[{"name":"Greek Salad"}]}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseInput([]byte(tt.variables))
			if tt.wantErr {
				stdErr, ok := apperrors.AsStandardError(err)
				require.True(t, ok)
				assert.Equal(t, apperrors.ErrCodeInvalidInput, stdErr.Code)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestHandler_Execute(t *testing.T) {
	indexer := &fakeIndexer{}
	h := newTestHandler(t, indexer)

	output, err := h.Execute(context.Background(), testInput())
	require.NoError(t, err)
	assert.Equal(t, 2, output.Indexed)
	assert.Equal(t, "test-analyses", output.Index)

	assert.Equal(t, "test-analyses", indexer.index)
	require.Len(t, indexer.docs, 2)
	assert.Equal(t, "menu-42:a", indexer.docs[0].ID)

	doc := indexer.docs[1].Body.(Document)
	assert.Equal(t, "menu-42", doc.MenuID)
	assert.Equal(t, "u-1", doc.UserID)
	assert.Equal(t, "Fried Chicken", doc.Name)
	assert.Equal(t, models.SafetyLevelCaution, doc.SafetyLevel)
	assert.Equal(t, fixedNow, doc.IndexedAt)

	_, err = h.Execute(context.Background(), testInput())
	require.NoError(t, err)
	assert.Equal(t, 1, indexer.ensureCalls)
}

func TestHandler_Execute_NoItems(t *testing.T) {
	indexer := &fakeIndexer{}
	h := newTestHandler(t, indexer)

	output, err := h.Execute(context.Background(), &Input{MenuID: "menu-42"})
	require.NoError(t, err)
	assert.Zero(t, output.Indexed)
	assert.Zero(t, indexer.ensureCalls)
}

func TestHandler_Execute_Failures(t *testing.T) {
	tests := []struct {
		name    string
		indexer *fakeIndexer
	}{
		{name: "ensure index", indexer: &fakeIndexer{ensureErr: errors.New("cluster red")}},
		{name: "bulk request", indexer: &fakeIndexer{bulkErr: errors.New("connection refused")}},
		{name: "every item rejected", indexer: &fakeIndexer{result: &database.BulkResult{
			Failed: 2, Errors: []string{"a: mapper_parsing_exception: bad field"},
		}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestHandler(t, tt.indexer).Execute(context.Background(), testInput())
			stdErr, ok := apperrors.AsStandardError(err)
			require.True(t, ok)
			assert.Equal(t, apperrors.ErrCodeIndexWriteFailed, stdErr.Code)
			assert.True(t, stdErr.Retryable)
		})
	}
}

func TestHandler_Execute_PartialFailure(t *testing.T) {
	indexer := &fakeIndexer{result: &database.BulkResult{Indexed: 1, Failed: 1, Errors: []string{"b: bad"}}}

	output, err := newTestHandler(t, indexer).Execute(context.Background(), testInput())
	require.NoError(t, err)
	assert.Equal(t, 1, output.Indexed)
	assert.Equal(t, 1, output.Failed)
}

func TestHandler_Execute_Elasticsearch(t *testing.T) {
	var (
		mu      sync.Mutex
		created bool
		bulk    []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		mu.Lock()
		defer mu.Unlock()

		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/":
			_, _ = w.Write([]byte(`{"version":{"number":"8.11.0","build_flavor":"default"},"tagline":"You Know, for Search"}`))
		case r.Method == http.MethodHead:
			w.WriteHeader(http.StatusNotFound)
		case r.Method == http.MethodPut:
			body, _ := io.ReadAll(r.Body)
			assert.Contains(t, string(body), `"safetyLevel"`)
			created = true
			_, _ = w.Write([]byte(`{"acknowledged":true}`))
		case strings.HasSuffix(r.URL.Path, "/_bulk"):
			body, _ := io.ReadAll(r.Body)
			bulk = strings.Split(strings.TrimSpace(string(body)), "\n")
			_, _ = w.Write([]byte(`{"errors":false,"items":[
				{"index":{"_id":"menu-42:a","status":201}},
				{"index":{"_id":"menu-42:b","status":201}}
			]}`))
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	es, err := database.NewElasticsearch(config.ElasticsearchConfig{URL: srv.URL})
	require.NoError(t, err)

	output, err := newTestHandler(t, es).Execute(context.Background(), testInput())
	require.NoError(t, err)
	assert.Equal(t, 2, output.Indexed)
	assert.True(t, created)

	require.Len(t, bulk, 4)
	var doc Document
	require.NoError(t, json.Unmarshal([]byte(bulk[1]), &doc))
	assert.Equal(t, "Greek Salad", doc.Name)
	assert.Equal(t, 90, doc.HealthScore)
}
