// internal/workers/menu-analysis/segment-menu/handler.go
package segmentmenu

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"menu-health-workers/internal/analysis/segmentation"
	apperrors "menu-health-workers/internal/common/errors"
	"menu-health-workers/internal/common/logger"
	"menu-health-workers/internal/common/metrics"
	"menu-health-workers/internal/common/observability"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "segment-menu"
)

var (
	ErrInvalidInput = errors.New("INVALID_INPUT")
)

type Handler struct {
	config       *Config
	segmenter    *segmentation.Segmenter
	obs          *observability.Observability
	errorHandler *apperrors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, segmenter *segmentation.Segmenter, obs *observability.Observability, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		segmenter:    segmenter,
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

// ParseInput validates job variables against the input schema and decodes them.
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

	items := h.segmenter.Segment(input.Observations)

	metrics.MenuItemsSegmented.Observe(float64(len(items)))
	h.obs.RecordMenuItems(ctx, TaskType, len(items))

	h.logger.Info("menu segmented", map[string]interface{}{
		"observations": len(input.Observations),
		"items":        len(items),
	})

	return &Output{
		RawItems:  items,
		ItemCount: len(items),
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
