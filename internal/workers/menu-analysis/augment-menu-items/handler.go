// internal/workers/menu-analysis/augment-menu-items/handler.go
package augmentmenuitems

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"menu-health-workers/internal/analysis/augment"
	apperrors "menu-health-workers/internal/common/errors"
	"menu-health-workers/internal/common/logger"
	"menu-health-workers/internal/common/metrics"
	"menu-health-workers/internal/common/observability"
	"menu-health-workers/internal/common/profiles"
	"menu-health-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/redis/go-redis/v9"
)

const (
	TaskType = "augment-menu-items"
)

var (
	ErrInvalidInput = errors.New("INVALID_INPUT")
)

// Outcome labels for metrics.AugmentationRequests.
const (
	resultModel    = "model"
	resultFallback = "fallback"
	resultCached   = "cached"
	resultSkipped  = "skipped"
)

// Analyzer produces the model analysis for one item. It never fails; an
// unusable model yields a fallback result.
type Analyzer interface {
	AnalyzeMenuItem(ctx context.Context, item models.MenuItem, profile *models.UserHealthProfile) *augment.Result
}

type Handler struct {
	config       *Config
	analyzer     Analyzer
	profiles     profiles.Loader
	cache        *analysisCache
	obs          *observability.Observability
	errorHandler *apperrors.ErrorHandler
	logger       logger.Logger
}

// NewHandler wires the worker. rdb may be nil, which disables the result cache.
func NewHandler(
	config *Config,
	analyzer Analyzer,
	profileLoader profiles.Loader,
	rdb redis.Cmdable,
	obs *observability.Observability,
	log logger.Logger,
) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 1
	}
	return &Handler{
		config:       config,
		analyzer:     analyzer,
		profiles:     profileLoader,
		cache:        &analysisCache{redis: rdb, ttl: config.CacheTTL},
		obs:          obs,
		errorHandler: apperrors.NewErrorHandler(log),
		logger:       log,
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
	if input == nil {
		return nil, apperrors.NewInvalidInputError(ErrInvalidInput.Error())
	}

	profile, err := profiles.Resolve(ctx, h.profiles, input.UserID, input.Profile)
	if err != nil {
		return nil, apperrors.NewProfileLookupFailedError(err).WithMetadata("userId", input.UserID)
	}
	if profile == nil && input.UserID != "" {
		missing := apperrors.NewProfileNotFoundError(input.UserID)
		h.logger.Warn("continuing without health profile", map[string]interface{}{
			"userId":    input.UserID,
			"errorCode": string(missing.Code),
		})
	}

	items := make([]models.MenuItem, len(input.MenuItems))
	analyses := make([]ItemAnalysis, len(input.MenuItems))

	var (
		wg  sync.WaitGroup
		sem = make(chan struct{}, h.config.MaxConcurrency)
	)

	for i := range input.MenuItems {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
			}

			item := input.MenuItems[i]
			result, cached := h.analyze(ctx, item, profile)
			augment.Apply(&item, result)

			items[i] = item
			analyses[i] = ItemAnalysis{
				ItemID:         item.ID,
				Analysis:       result.Analysis,
				Fallback:       result.Fallback,
				FallbackReason: result.FallbackReason,
				Cached:         cached,
			}
			if stdErr := fallbackError(item, result); stdErr != nil {
				analyses[i].ErrorCode = string(stdErr.Code)
				h.logger.Warn("menu item fell back to placeholder analysis", map[string]interface{}{
					"item":      item.Name,
					"errorCode": string(stdErr.Code),
					"retryable": apperrors.IsRetryableErrorCode(stdErr.Code),
					"details":   stdErr.Details,
				})
			}
		}(i)
	}
	wg.Wait()

	fallbacks := 0
	for _, a := range analyses {
		if a.Fallback {
			fallbacks++
		}
	}

	h.obs.RecordMenuItems(ctx, TaskType, len(items))
	h.logger.Info("menu items augmented", map[string]interface{}{
		"items":     len(items),
		"fallbacks": fallbacks,
	})

	return &Output{
		MenuItems:     items,
		Analyses:      analyses,
		FallbackCount: fallbacks,
	}, nil
}

// analyze serves item from the cache when possible and otherwise asks the
// analyzer, storing model results for next time.
func (h *Handler) analyze(ctx context.Context, item models.MenuItem, profile *models.UserHealthProfile) (*augment.Result, bool) {
	if augment.ShouldSkip(item.Name) {
		metrics.AugmentationRequests.WithLabelValues(resultSkipped).Inc()
		return augment.Fallback(augment.ReasonSkipped), false
	}

	useCache := h.cache.enabled()
	key := CacheKey(item, profile)

	if useCache {
		cached, hit, err := h.cache.get(ctx, key)
		if err != nil {
			h.cacheFailed("analysis cache read failed", item, err)
		}
		if hit {
			metrics.AugmentationRequests.WithLabelValues(resultCached).Inc()
			return cached, true
		}
	}

	if ctx.Err() != nil {
		metrics.AugmentationRequests.WithLabelValues(resultFallback).Inc()
		return augment.Fallback(augment.ReasonUnavailable), false
	}

	result := h.analyzer.AnalyzeMenuItem(ctx, item, profile)
	if result == nil {
		result = augment.Fallback(augment.ReasonUnavailable)
	}

	switch {
	case !result.Fallback:
		metrics.AugmentationRequests.WithLabelValues(resultModel).Inc()
	case result.FallbackReason == augment.ReasonSkipped:
		metrics.AugmentationRequests.WithLabelValues(resultSkipped).Inc()
	default:
		metrics.AugmentationRequests.WithLabelValues(resultFallback).Inc()
	}

	if useCache && !result.Fallback {
		if err := h.cache.set(ctx, key, result); err != nil {
			h.cacheFailed("analysis cache write failed", item, err)
		}
	}

	return result, false
}

// cacheFailed logs a cache error. The job carries on uncached.
func (h *Handler) cacheFailed(msg string, item models.MenuItem, err error) {
	stdErr := apperrors.NewCacheUnavailableError(err)
	h.logger.Warn(msg, map[string]interface{}{
		"item":      item.Name,
		"errorCode": string(stdErr.Code),
		"error":     err.Error(),
	})
}

// fallbackError is the error a fallback result stands for. Skipped items
// were never sent to the model and have none.
func fallbackError(item models.MenuItem, result *augment.Result) *apperrors.StandardError {
	if !result.Fallback {
		return nil
	}
	switch result.FallbackReason {
	case augment.ReasonUnavailable:
		return apperrors.NewAugmentationUnavailableError(fmt.Errorf("no model response for %q", item.Name))
	case augment.ReasonInvalidResponse:
		return apperrors.NewAugmentationInvalidResponseError(fmt.Sprintf("model output for %q failed validation", item.Name))
	default:
		return nil
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
