// internal/workers/menu-analysis/build-menu-items/handler.go
package buildmenuitems

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"menu-health-workers/internal/analysis/itembuilder"
	apperrors "menu-health-workers/internal/common/errors"
	"menu-health-workers/internal/common/logger"
	"menu-health-workers/internal/common/metrics"
	"menu-health-workers/internal/common/observability"
	"menu-health-workers/internal/common/profiles"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "build-menu-items"
)

var (
	ErrInvalidInput = errors.New("INVALID_INPUT")
)

type Handler struct {
	config       *Config
	builder      *itembuilder.Builder
	profiles     profiles.Loader
	obs          *observability.Observability
	errorHandler *apperrors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(
	config *Config,
	builder *itembuilder.Builder,
	profileLoader profiles.Loader,
	obs *observability.Observability,
	log logger.Logger,
) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		builder:      builder,
		profiles:     profileLoader,
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
		h.logger.Warn("no health profile available, building generic items", map[string]interface{}{
			"userId":    input.UserID,
			"errorCode": string(missing.Code),
		})
	}

	items := h.builder.BuildAll(input.RawItems, profile)

	if profile != nil {
		for _, item := range items {
			metrics.MenuItemHealthScore.Observe(float64(item.HealthScore))
		}
	}
	h.obs.RecordMenuItems(ctx, TaskType, len(items))

	h.logger.Info("menu items built", map[string]interface{}{
		"items":          len(items),
		"profileApplied": profile != nil,
	})

	return &Output{
		MenuItems:      items,
		ProfileApplied: profile != nil,
	}, nil
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
