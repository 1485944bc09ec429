package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/ai"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/config/file"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/loader"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/storage"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-rag/internal/core/services"
	"github.com/custodia-labs/sercha-rag/internal/logger"
	"github.com/custodia-labs/sercha-rag/internal/postprocessors"
)

// app holds the services shared by every command of this process.
var app = &container{}

// container builds the services once per process. Settings load separately
// so the settings commands work before any backend is configured.
type container struct {
	configDir string

	settingsOnce sync.Once
	settingsErr  error
	settings     driving.SettingsService
	prompts      *file.PromptStore

	servicesOnce sync.Once
	servicesErr  error
	appSettings  domain.AppSettings
	answer       driving.AnswerService
	ingest       driving.IngestService
	eval         driving.EvalService
	diagnostics  driving.DiagnosticsService

	closeMu sync.Mutex
	closers []func() error
}

// Settings returns the settings service and prompt store.
func (c *container) Settings() (driving.SettingsService, error) {
	c.settingsOnce.Do(func() {
		c.settingsErr = c.loadSettings()
	})
	return c.settings, c.settingsErr
}

func (c *container) loadSettings() error {
	dir := c.configDir
	if dir == "" {
		var err error
		if dir, err = file.DefaultConfigDir(); err != nil {
			// Environment variables alone can still configure a run.
			logger.Warn("no config directory (%v), settings will not persist", err)
			c.settings = services.NewSettingsService(memory.NewConfigStore(), ai.Probe{})
			return nil
		}
	}

	store, err := file.NewConfigStore(dir)
	if err != nil {
		return fmt.Errorf("opening config store: %w", err)
	}
	prompts, err := file.NewPromptStore(filepath.Join(dir, "prompts"))
	if err != nil {
		return fmt.Errorf("opening prompt store: %w", err)
	}

	c.settings = services.NewSettingsService(store, ai.Probe{})
	c.prompts = prompts
	return nil
}

// Init builds the index, providers and services.
func (c *container) Init(ctx context.Context) error {
	c.servicesOnce.Do(func() {
		c.servicesErr = c.build(ctx)
	})
	return c.servicesErr
}

func (c *container) build(ctx context.Context) error {
	settingsSvc, err := c.Settings()
	if err != nil {
		return err
	}
	settings, err := settingsSvc.Get()
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}
	c.appSettings = *settings

	index, err := storage.NewVectorIndex(ctx, settings.VectorStore)
	if err != nil {
		return err
	}
	c.onClose(index.Close)

	var embedder *services.BatchEmbedder
	embedSvc, err := ai.CreateEmbeddingService(&settings.Embedding)
	switch {
	case err != nil:
		logger.Warn("embedding disabled: %v", err)
	case embedSvc == nil:
		logger.Warn("embedding disabled: provider %s is not configured", settings.Embedding.Provider)
	default:
		c.onClose(embedSvc.Close)
		embedder = services.NewBatchEmbedder(embedSvc,
			services.WithBatchSize(settings.Embedding.BatchSize),
			services.WithDimensions(settings.Embedding.Dimensions),
			services.WithRetryPolicy(services.DefaultRetryPolicy(settings.Embedding.MaxRetries)),
			services.WithRateLimit(settings.Embedding.RequestsPerSecond),
		)
	}

	var llm driven.LLMService
	llmSvc, err := ai.CreateLLMService(&settings.LLM)
	switch {
	case err != nil:
		logger.Warn("answer generation disabled: %v", err)
	case llmSvc == nil:
		logger.Warn("answer generation disabled: provider %s is not configured", settings.LLM.Provider)
	default:
		c.onClose(llmSvc.Close)
		llm = llmSvc
	}

	opts := []services.PipelineOption{services.WithRequestTimeout(settings.Server.RequestTimeout)}
	if c.prompts != nil {
		opts = append(opts, services.WithPromptStore(c.prompts))
	}
	pipeline := services.NewPipelineOrchestrator(
		embedder,
		services.NewCandidateRetriever(index),
		nil,
		llm,
		settings.Retrieval,
		opts...,
	)

	c.answer = pipeline
	c.eval = services.NewEvalService(pipeline)
	c.ingest = services.NewIngestService(index, embedder, ingestPipelines,
		settings.Chunking, settings.Ingest,
		services.WithDocumentLoader(loader.Default()),
		services.WithUpsertBatchSize(settings.Embedding.BatchSize),
	)
	c.diagnostics = services.NewDiagnosticsService(*settings, index)
	return nil
}

func (c *container) onClose(fn func() error) {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	c.closers = append(c.closers, fn)
}

// Close releases clients in reverse construction order.
func (c *container) Close() error {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()

	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

// ingestPipelines builds the segment-then-hash pipeline for c.
func ingestPipelines(c domain.ChunkingSettings) (driven.PostProcessorPipeline, error) {
	pipeline, err := postprocessors.Build(postprocessors.DefaultRegistry(), domain.PipelineConfigFor(c))
	if err != nil {
		return nil, err
	}
	return pipeline, nil
}
