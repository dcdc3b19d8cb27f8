// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"menu-health-workers/internal/analysis/augment"
	"menu-health-workers/internal/analysis/itembuilder"
	"menu-health-workers/internal/analysis/scoring"
	"menu-health-workers/internal/analysis/segmentation"
	"menu-health-workers/internal/common/camunda"
	"menu-health-workers/internal/common/config"
	"menu-health-workers/internal/common/database"
	"menu-health-workers/internal/common/logger"
	"menu-health-workers/internal/common/observability"
	"menu-health-workers/internal/common/profiles"
	"menu-health-workers/internal/common/ratelimit"

	ami "menu-health-workers/internal/workers/menu-analysis/augment-menu-items"
	bmi "menu-health-workers/internal/workers/menu-analysis/build-menu-items"
	ima "menu-health-workers/internal/workers/menu-analysis/index-menu-analysis"
	sm "menu-health-workers/internal/workers/menu-analysis/segment-menu"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...",
		zap.String("app", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.App.Name, log)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init Zeebe Client with retry ---
	var zeebe *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		zeebe, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: cfg.Camunda.Plaintext,
			ConnectionTimeout:      config.GetDuration(cfg.Camunda.RequestTimeout),
		})
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")

	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	if err := pg.EnsureSchema(ctx); err != nil {
		zapLog.Fatal("postgres schema setup failed", zap.Error(err))
	}
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Elasticsearch with retry ---
	var esClient *database.ElasticsearchClient
	err = retryWithBackoff(func() error {
		var err error
		esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		return esClient.Ping()
	}, 15, 2*time.Second, zapLog, "Elasticsearch connection")

	if err != nil {
		zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
	}
	zapLog.Info("Elasticsearch connected successfully")

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Analysis components ---
	genai := cfg.APIs.GenAI
	limiter := ratelimit.New(config.GetDuration(genai.MinRequestInterval))
	augmenter := augment.NewClient(augment.Config{
		Endpoint:          genai.Endpoint,
		APIKey:            genai.APIKey,
		APIKeyHeader:      genai.APIKeyHeader,
		Timeout:           config.GetDuration(genai.Timeout),
		MaxRetries:        genai.MaxRetries,
		InitialRetryDelay: config.GetDuration(genai.InitialRetryDelay),
	}, limiter, log)
	if genai.Endpoint == "" {
		zapLog.Warn("no augmentation endpoint configured, items will receive fallback analyses")
	}

	segmenter := segmentation.NewSegmenter(segmentation.Config{
		Origin:              segmentation.Origin(cfg.Analysis.CoordinateOrigin),
		VerticalThreshold:   cfg.Analysis.VerticalThreshold,
		HorizontalThreshold: cfg.Analysis.HorizontalThreshold,
	})
	engine := scoring.NewEngine(scoring.Config{AllergenPenalty: cfg.Analysis.AllergenPenalty})
	builder := itembuilder.NewBuilder(engine)
	profileStore := profiles.NewStore(pg.DB, redis.Client, time.Duration(cfg.Cache.ProfileTTL)*time.Second, log)

	// --- Register workers ---
	var workers []*camunda.Worker
	register := func(w *camunda.Worker) {
		if w != nil {
			workers = append(workers, w)
		}
	}

	{
		wcfg := config.GetWorkerConfig(cfg, sm.TaskType)
		handler := sm.NewHandler(
			&sm.Config{Timeout: config.GetDuration(wcfg.Timeout)},
			segmenter, obs, log,
		)
		register(camunda.StartWorker(zeebe.GetClient(), sm.TaskType, wcfg, handler.Handle, log))
	}

	{
		wcfg := config.GetWorkerConfig(cfg, bmi.TaskType)
		handler := bmi.NewHandler(
			&bmi.Config{Timeout: config.GetDuration(wcfg.Timeout)},
			builder, profileStore, obs, log,
		)
		register(camunda.StartWorker(zeebe.GetClient(), bmi.TaskType, wcfg, handler.Handle, log))
	}

	{
		wcfg := config.GetWorkerConfig(cfg, ami.TaskType)
		handler := ami.NewHandler(
			&ami.Config{
				Timeout:        config.GetDuration(wcfg.Timeout),
				MaxConcurrency: genai.MaxConcurrency,
				CacheTTL:       time.Duration(cfg.Cache.AnalysisTTL) * time.Second,
			},
			augmenter, profileStore, redis.Client, obs, log,
		)
		register(camunda.StartWorker(zeebe.GetClient(), ami.TaskType, wcfg, handler.Handle, log))
	}

	{
		wcfg := config.GetWorkerConfig(cfg, ima.TaskType)
		handler := ima.NewHandler(
			&ima.Config{
				Timeout: config.GetDuration(wcfg.Timeout),
				Index:   cfg.Database.Elasticsearch.AnalysisIndex,
			},
			esClient, obs, log,
		)
		register(camunda.StartWorker(zeebe.GetClient(), ima.TaskType, wcfg, handler.Handle, log))
	}

	zapLog.Info("Workers registered", zap.Int("count", len(workers)))

	// --- Health & Metrics Server ---
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, map[string]interface{}{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		checkCtx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		checks := map[string]string{}
		ready := true
		record := func(name string, err error) {
			if err != nil {
				checks[name] = err.Error()
				ready = false
				return
			}
			checks[name] = "ok"
		}
		record("zeebe", zeebe.HealthCheck(checkCtx))
		record("postgres", pg.Ping(checkCtx))
		record("redis", redis.Ping(checkCtx))
		record("elasticsearch", esClient.Ping())

		status, code := "ready", http.StatusOK
		if !ready {
			status, code = "not_ready", http.StatusServiceUnavailable
		}
		writeStatus(w, code, map[string]interface{}{
			"status": status,
			"checks": checks,
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/debug/pprof/", http.DefaultServeMux)

	server := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("address", cfg.Server.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, w := range workers {
		w.Close()
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping Health/Metrics server", zap.Error(err))
	}

	if err := zeebe.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}

func writeStatus(w http.ResponseWriter, code int, body map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
