// internal/workers/menu-analysis/index-menu-analysis/handler.go
package indexmenuanalysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"menu-health-workers/internal/common/database"
	apperrors "menu-health-workers/internal/common/errors"
	"menu-health-workers/internal/common/logger"
	"menu-health-workers/internal/common/metrics"
	"menu-health-workers/internal/common/observability"
	"menu-health-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "index-menu-analysis"
)

var (
	ErrInvalidInput   = errors.New("INVALID_INPUT")
	ErrAllItemsFailed = errors.New("ALL_ITEMS_FAILED")
)

// Indexer is the subset of the Elasticsearch client the worker needs.
type Indexer interface {
	EnsureIndex(ctx context.Context, index, mapping string) error
	BulkIndex(ctx context.Context, index string, docs []database.BulkDocument) (*database.BulkResult, error)
}

type Handler struct {
	config       *Config
	indexer      Indexer
	obs          *observability.Observability
	errorHandler *apperrors.ErrorHandler
	logger       logger.Logger
	now          func() time.Time

	mu           sync.Mutex
	indexEnsured bool
}

func NewHandler(config *Config, indexer Indexer, obs *observability.Observability, log logger.Logger) *Handler {
	if config.Index == "" {
		config.Index = DefaultIndex
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		indexer:      indexer,
		obs:          obs,
		errorHandler: apperrors.NewErrorHandler(log),
		logger:       log,
		now:          time.Now,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	input, err := ParseInput([]byte(job.Variables))
	if err != nil {
		h.failJob(ctx, client, job, err, start)
		return
	}

	output, err := h.execute(ctx, input)
	if err != nil {
		h.failJob(ctx, client, job, err, start)
		return
	}

	h.completeJob(ctx, client, job, output, start)
}

func ParseInput(variables []byte) (*Input, error) {
	if res := inputSchema.ValidateBytes(variables); !res.Valid {
		return nil, apperrors.NewInvalidInputError(res.Error())
	}
	var input Input
	if err := json.Unmarshal(variables, &input); err != nil {
		return nil, apperrors.NewInvalidInputError(err.Error())
	}
	return &input, nil
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil || strings.TrimSpace(input.MenuID) == "" {
		return nil, apperrors.NewInvalidInputError(ErrInvalidInput.Error())
	}

	index := h.config.Index
	if len(input.MenuItems) == 0 {
		return &Output{Index: index}, nil
	}

	if err := h.ensureIndex(ctx); err != nil {
		return nil, apperrors.NewIndexWriteFailedError(index, err)
	}

	indexedAt := h.now().UTC()
	docs := make([]database.BulkDocument, 0, len(input.MenuItems))
	for _, item := range input.MenuItems {
		docs = append(docs, database.BulkDocument{
			ID:   DocumentID(input.MenuID, item.ID),
			Body: newDocument(input, item, indexedAt),
		})
	}

	res, err := h.indexer.BulkIndex(ctx, index, docs)
	if err != nil {
		return nil, apperrors.NewIndexWriteFailedError(index, err)
	}

	if res.Failed > 0 {
		h.logger.Warn("some menu items failed to index", map[string]interface{}{
			"menuId": input.MenuID,
			"failed": res.Failed,
			"errors": res.Errors,
		})
	}
	if res.Indexed == 0 {
		return nil, apperrors.NewIndexWriteFailedError(index, fmt.Errorf("%w: %s", ErrAllItemsFailed, strings.Join(res.Errors, "; ")))
	}

	h.obs.RecordMenuItems(ctx, TaskType, res.Indexed)
	h.logger.Info("menu analysis indexed", map[string]interface{}{
		"menuId":  input.MenuID,
		"index":   index,
		"indexed": res.Indexed,
	})

	return &Output{
		Indexed: res.Indexed,
		Failed:  res.Failed,
		Index:   index,
	}, nil
}

// ensureIndex creates the index on first use. A failure is retried by the
// next job.
func (h *Handler) ensureIndex(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.indexEnsured {
		return nil
	}
	if err := h.indexer.EnsureIndex(ctx, h.config.Index, indexMapping); err != nil {
		return err
	}
	h.indexEnsured = true
	return nil
}

// DocumentID makes re-indexing the same menu overwrite its previous documents.
func DocumentID(menuID, itemID string) string {
	return menuID + ":" + itemID
}

func newDocument(input *Input, item models.MenuItem, indexedAt time.Time) Document {
	return Document{
		MenuID:          input.MenuID,
		UserID:          input.UserID,
		ItemID:          item.ID,
		Name:            item.Name,
		Description:     item.Description,
		Cuisine:         item.Cuisine,
		Price:           item.Price,
		HealthScore:     item.HealthScore,
		SafetyLevel:     item.SafetyLevel,
		Allergens:       item.Allergens,
		Recommendation:  item.Recommendation,
		DietaryBenefits: item.DietaryBenefits,
		DietaryConcerns: item.DietaryConcerns,
		HealthImpacts:   item.HealthImpacts,
		NutritionalInfo: item.NutritionalInfo,
		IndexedAt:       indexedAt,
	}
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output, start time.Time) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.failJob(ctx, client, job, apperrors.NewInternalError(err), start)
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}

	duration := time.Since(start)
	metrics.ObserveJob(TaskType, duration.Seconds(), "")
	h.obs.RecordJob(ctx, TaskType, "completed", duration)
}

func (h *Handler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, err error, start time.Time) {
	duration := time.Since(start)
	metrics.ObserveJob(TaskType, duration.Seconds(), string(apperrors.Normalize(err).Code))
	h.obs.RecordJob(ctx, TaskType, "failed", duration)

	h.errorHandler.HandleJobError(ctx, client, job, err)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
