// internal/analysis/augment/client.go
package augment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	commonhttp "menu-health-workers/internal/common/http"
	"menu-health-workers/internal/common/logger"
	"menu-health-workers/internal/common/ratelimit"
	"menu-health-workers/internal/models"
)

var (
	ErrAugmentationUnavailable = errors.New("AUGMENTATION_UNAVAILABLE")
	ErrInvalidResponse         = errors.New("AUGMENTATION_INVALID_RESPONSE")
)

const (
	DefaultTimeout           = 30 * time.Second
	DefaultMaxRetries        = 3
	DefaultInitialRetryDelay = 2 * time.Second
	DefaultAPIKeyHeader      = "x-goog-api-key"

	minNameLength   = 3
	maxResponseSize = 1 << 20
)

type Config struct {
	Endpoint          string
	APIKey            string
	APIKeyHeader      string
	Timeout           time.Duration
	MaxRetries        int
	InitialRetryDelay time.Duration
}

// Client requests model-generated analyses for menu items. Every outbound
// attempt waits on the shared limiter first.
type Client struct {
	config  Config
	http    *commonhttp.Client
	limiter *ratelimit.Limiter
	logger  logger.Logger
}

type Option func(*clientOptions)

type clientOptions struct {
	httpOpts []commonhttp.Option
}

func WithHTTPClient(hc *http.Client) Option {
	return func(o *clientOptions) { o.httpOpts = append(o.httpOpts, commonhttp.WithHTTPClient(hc)) }
}

// WithSleeper replaces the backoff sleep between retries.
func WithSleeper(s commonhttp.Sleeper) Option {
	return func(o *clientOptions) { o.httpOpts = append(o.httpOpts, commonhttp.WithSleeper(s)) }
}

func NewClient(cfg Config, limiter *ratelimit.Limiter, log logger.Logger, opts ...Option) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.InitialRetryDelay <= 0 {
		cfg.InitialRetryDelay = DefaultInitialRetryDelay
	}
	if cfg.APIKeyHeader == "" {
		cfg.APIKeyHeader = DefaultAPIKeyHeader
	}
	if limiter == nil {
		limiter = ratelimit.New(0)
	}

	o := &clientOptions{}
	for _, opt := range opts {
		opt(o)
	}
	httpOpts := append([]commonhttp.Option{
		commonhttp.WithRetryPolicy(commonhttp.RetryPolicy{
			MaxRetries:   cfg.MaxRetries,
			InitialDelay: cfg.InitialRetryDelay,
		}),
	}, o.httpOpts...)

	return &Client{
		config:  cfg,
		http:    commonhttp.NewClient(cfg.Timeout, httpOpts...),
		limiter: limiter,
		logger:  log.WithFields(map[string]interface{}{"component": "augment-client"}),
	}
}

// AnalyzeMenuItem returns the model's analysis of item, or the fallback
// result when the model cannot be used. It never fails.
func (c *Client) AnalyzeMenuItem(ctx context.Context, item models.MenuItem, profile *models.UserHealthProfile) *Result {
	if ShouldSkip(item.Name) {
		c.logger.Debug("item name too short or generic, skipping model", map[string]interface{}{
			"item": item.Name,
		})
		return Fallback(ReasonSkipped)
	}

	text, err := c.Generate(ctx, BuildPrompt(item, profile))
	if err != nil {
		reason := ReasonUnavailable
		if errors.Is(err, ErrInvalidResponse) {
			reason = ReasonInvalidResponse
		}
		c.logger.Warn("augmentation failed, using fallback", map[string]interface{}{
			"item":   item.Name,
			"reason": reason,
			"error":  err.Error(),
		})
		return Fallback(reason)
	}

	result, err := ParseAnalysis(text)
	if err != nil {
		c.logger.Warn("model returned an invalid analysis, using fallback", map[string]interface{}{
			"item":  item.Name,
			"error": err.Error(),
		})
		return Fallback(ReasonInvalidResponse)
	}

	c.logger.Debug("item analyzed", map[string]interface{}{
		"item":      item.Name,
		"isHealthy": result.Analysis.IsHealthy,
	})
	return result
}

// Generate sends prompt to the model and returns the first candidate's text.
// Transport failures are retried with backoff; HTTP errors are not.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if c.config.Endpoint == "" {
		return "", fmt.Errorf("%w: endpoint not configured", ErrAugmentationUnavailable)
	}

	body, err := json.Marshal(newGenerateRequest(prompt))
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	newReq := func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if c.config.APIKey != "" {
			req.Header.Set(c.config.APIKeyHeader, c.config.APIKey)
		}
		return req, nil
	}

	resp, err := c.http.DoWithRetry(ctx, newReq, c.limiter.Wait)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrAugmentationUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", fmt.Errorf("%w: read body: %v", ErrAugmentationUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", ErrAugmentationUnavailable, resp.StatusCode)
	}

	return candidateText(raw)
}

// ShouldSkip reports names that are too short or too generic to analyze.
func ShouldSkip(name string) bool {
	name = strings.TrimSpace(name)
	return len([]rune(name)) < minNameLength || strings.EqualFold(name, "cafe")
}
