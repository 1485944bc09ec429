package services

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// Ensure IngestService implements the interface.
var _ driving.IngestService = (*IngestService)(nil)

// embeddingCostPerMillionTokens is the list price of text-embedding-3-small in USD.
const embeddingCostPerMillionTokens = 0.02

// PipelineFactory builds the segment-and-hash pipeline for the given chunking parameters.
type PipelineFactory func(domain.ChunkingSettings) (driven.PostProcessorPipeline, error)

// IngestService segments documents, embeds the chunks and upserts them.
type IngestService struct {
	index     driven.VectorIndex
	embedder  *BatchEmbedder
	pipelines PipelineFactory
	loader    driven.DocumentLoader
	chunking  domain.ChunkingSettings
	defaults  domain.IngestSettings
	batchSize int
	now       func() time.Time
}

// IngestOption configures an IngestService.
type IngestOption func(*IngestService)

// WithDocumentLoader sets the loader used for file ingest.
func WithDocumentLoader(loader driven.DocumentLoader) IngestOption {
	return func(s *IngestService) {
		s.loader = loader
	}
}

// WithUpsertBatchSize sets the number of chunks embedded and upserted together.
func WithUpsertBatchSize(n int) IngestOption {
	return func(s *IngestService) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) IngestOption {
	return func(s *IngestService) {
		s.now = now
	}
}

// NewIngestService creates an ingest service.
func NewIngestService(
	index driven.VectorIndex,
	embedder *BatchEmbedder,
	pipelines PipelineFactory,
	chunking domain.ChunkingSettings,
	defaults domain.IngestSettings,
	opts ...IngestOption,
) *IngestService {
	s := &IngestService{
		index:     index,
		embedder:  embedder,
		pipelines: pipelines,
		chunking:  chunking,
		defaults:  defaults,
		batchSize: DefaultEmbedBatchSize,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IngestText replaces the points of req.Source with the chunks of req.Text.
func (s *IngestService) IngestText(ctx context.Context, req domain.IngestRequest) (*domain.IngestResponse, error) {
	logger.Section("Text Ingest")

	source := strings.TrimSpace(req.Source)
	if source == "" {
		return nil, fmt.Errorf("%w: source is required", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(req.Text) == "" {
		return nil, fmt.Errorf("%w: text is required", domain.ErrInvalidInput)
	}

	version := s.defaults.DefaultVersion
	if v, ok := req.Metadata["version"]; ok && v != nil {
		version = fmt.Sprint(v)
	}

	now := s.now().UTC()
	doc := &domain.Document{
		ID:        source,
		Name:      req.Title,
		Source:    source,
		Version:   version,
		Title:     req.Title,
		Content:   req.Text,
		Metadata:  req.Metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}

	chunks, err := s.segment(ctx, doc, s.chunking)
	if err != nil {
		return nil, err
	}

	resp := &domain.IngestResponse{Source: source, Title: req.Title, DryRun: req.DryRun}
	if len(chunks) == 0 {
		return resp, nil
	}
	if req.DryRun {
		resp.ChunksInserted = len(chunks)
		logger.Info("ingest_text dry_run source=%s chunks=%d", source, len(chunks))
		return resp, nil
	}

	if err := s.ensureReady(ctx); err != nil {
		return nil, err
	}
	deleted, err := s.replaceSource(ctx, source)
	if err != nil {
		return nil, err
	}
	inserted, err := s.upsertChunks(ctx, doc, chunks, s.batchSize)
	if err != nil {
		return nil, err
	}

	resp.ChunksDeleted = deleted
	resp.ChunksInserted = inserted
	logger.Info("ingest_text source=%s deleted=%d inserted=%d", source, deleted, inserted)
	return resp, nil
}

// IngestFile loads a document through the configured loader and indexes it.
func (s *IngestService) IngestFile(ctx context.Context, opts domain.IngestOptions) (*domain.IngestReport, error) {
	logger.Section("File Ingest")
	started := time.Now()

	if strings.TrimSpace(opts.FilePath) == "" {
		return nil, fmt.Errorf("%w: file path is required", domain.ErrInvalidInput)
	}
	if s.loader == nil {
		return nil, fmt.Errorf("%w: no document loader configured", domain.ErrConfiguration)
	}
	if !s.loader.Supports(opts.FilePath) {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedType, filepath.Ext(opts.FilePath))
	}
	opts = s.resolveOptions(opts)

	pages, err := s.loader.LoadPages(ctx, opts.FilePath)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", opts.FilePath, err)
	}
	content, spans := domain.FlattenPages(pages)

	now := s.now().UTC()
	doc := &domain.Document{
		ID:        opts.DocID,
		Name:      opts.DocName,
		Source:    opts.Source,
		Version:   opts.Version,
		Title:     opts.DocName,
		Content:   content,
		PageSpans: spans,
		CreatedAt: now,
		UpdatedAt: now,
	}

	chunks, err := s.segment(ctx, doc, domain.ChunkingSettings{
		ChunkSize:    opts.ChunkSize,
		Overlap:      opts.Overlap,
		MinChunkSize: opts.MinChunkSize,
	})
	if err != nil {
		return nil, err
	}

	tokens := EstimateTokens(chunks)
	report := &domain.IngestReport{
		FilePath:                  opts.FilePath,
		DocID:                     opts.DocID,
		DocName:                   opts.DocName,
		Source:                    opts.Source,
		Version:                   opts.Version,
		TotalPages:                len(pages),
		TotalChunks:               len(chunks),
		EstimatedTokens:           tokens,
		EstimatedEmbeddingCostUSD: EstimateEmbeddingCost(tokens),
		DryRun:                    opts.DryRun,
	}
	logger.Info("ingest_pdf start file=%s pages=%d chunks=%d dry_run=%t",
		opts.FilePath, len(pages), len(chunks), opts.DryRun)

	if opts.DryRun {
		report.Skipped = len(chunks)
		report.DurationMs = elapsedMs(started)
		return report, nil
	}

	if err := s.ensureReady(ctx); err != nil {
		return nil, err
	}
	if opts.ReplaceSource {
		deleted, err := s.replaceSource(ctx, opts.Source)
		if err != nil {
			return nil, err
		}
		report.SourceDocsDeleted = deleted
		logger.Info("ingest_pdf replace_source=true source=%s deleted=%d", opts.Source, deleted)
	}

	inserted, err := s.upsertChunks(ctx, doc, chunks, opts.BatchSize)
	if err != nil {
		return nil, err
	}
	report.Inserted = inserted
	report.DurationMs = elapsedMs(started)
	logger.Info("ingest_pdf end doc_id=%s inserted=%d duration_ms=%.2f", opts.DocID, inserted, report.DurationMs)
	return report, nil
}

// resolveOptions fills zero-valued options from the configured defaults.
func (s *IngestService) resolveOptions(opts domain.IngestOptions) domain.IngestOptions {
	stem := strings.TrimSuffix(filepath.Base(opts.FilePath), filepath.Ext(opts.FilePath))
	if opts.DocID == "" {
		opts.DocID = stem
	}
	if opts.DocName == "" {
		opts.DocName = stem
	}
	if opts.Source == "" {
		opts.Source = s.defaults.DefaultSource
	}
	if opts.Version == "" {
		opts.Version = s.defaults.DefaultVersion
	}
	if opts.ChunkSize == 0 {
		opts.ChunkSize = s.chunking.ChunkSize
	}
	if opts.Overlap == 0 {
		opts.Overlap = s.chunking.Overlap
	}
	if opts.MinChunkSize == 0 {
		opts.MinChunkSize = s.chunking.MinChunkSize
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = s.batchSize
	}
	return opts
}

func (s *IngestService) segment(ctx context.Context, doc *domain.Document, c domain.ChunkingSettings) ([]domain.Chunk, error) {
	if s.pipelines == nil {
		return nil, fmt.Errorf("%w: no ingest pipeline configured", domain.ErrConfiguration)
	}
	pipeline, err := s.pipelines(c)
	if err != nil {
		return nil, err
	}
	chunks, err := pipeline.Process(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("segment %s: %w", doc.ID, err)
	}
	return chunks, nil
}

func (s *IngestService) ensureReady(ctx context.Context) error {
	if s.index == nil {
		return domain.ErrVectorIndexUnavailable
	}
	if s.embedder == nil {
		return domain.ErrEmbeddingUnavailable
	}
	if err := s.index.EnsureCollection(ctx, s.embedder.Dimensions()); err != nil {
		return &domain.IndexBackendError{Op: "ensure collection", Err: err}
	}
	return nil
}

// replaceSource deletes every point of source and returns how many existed.
func (s *IngestService) replaceSource(ctx context.Context, source string) (int, error) {
	filter := driven.Filter{"source": source}
	existing, err := s.index.Count(ctx, filter)
	if err != nil {
		return 0, &domain.IndexBackendError{Op: "count", Err: err}
	}
	if existing == 0 {
		return 0, nil
	}
	if err := s.index.Delete(ctx, filter); err != nil {
		return 0, &domain.IndexBackendError{Op: "delete", Err: err}
	}
	return existing, nil
}

// upsertChunks embeds and upserts chunks in groups of batchSize.
func (s *IngestService) upsertChunks(ctx context.Context, doc *domain.Document, chunks []domain.Chunk, batchSize int) (int, error) {
	stamp := doc.UpdatedAt.Format(time.RFC3339)
	inserted := 0
	for start := 0; start < len(chunks); start += batchSize {
		batch := chunks[start:min(start+batchSize, len(chunks))]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}
		vectors, err := s.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			return inserted, err
		}

		points := make([]driven.Point, len(batch))
		for i, c := range batch {
			points[i] = driven.Point{ID: c.ID, Vector: vectors[i], Payload: chunkPayload(doc, c, stamp)}
		}
		if err := s.index.Upsert(ctx, points); err != nil {
			return inserted, &domain.IndexBackendError{Op: "upsert", Err: err}
		}
		inserted += len(points)
		logger.Debug("Upserted %d/%d chunks of %s", inserted, len(chunks), doc.ID)
	}
	return inserted, nil
}

// chunkPayload builds the payload stored with every point.
func chunkPayload(doc *domain.Document, c domain.Chunk, stamp string) map[string]any {
	payload := map[string]any{
		"docId":      doc.ID,
		"docName":    doc.Name,
		"source":     doc.Source,
		"version":    doc.Version,
		"title":      doc.Title,
		"chunkIndex": c.Index,
		"pageStart":  optInt(c.PageStart, doc.Metadata["pageStart"]),
		"pageEnd":    optInt(c.PageEnd, doc.Metadata["pageEnd"]),
		"text":       c.Text,
		"chunkText":  c.Text,
		"textHash":   c.TextHash,
		"createdAt":  stamp,
		"updatedAt":  stamp,
	}
	if doc.Metadata != nil {
		payload["metadata"] = doc.Metadata
	}
	return payload
}

// optInt returns the page number when set, else the fallback value.
func optInt(v *int, fallback any) any {
	if v != nil {
		return *v
	}
	return fallback
}

// EstimateTokens approximates the token count of chunks at four characters per token.
func EstimateTokens(chunks []domain.Chunk) int {
	total := 0
	for _, c := range chunks {
		total += (utf8.RuneCountInString(c.Text) + 3) / 4
	}
	return total
}

// EstimateEmbeddingCost returns the embedding cost of tokens in USD.
func EstimateEmbeddingCost(tokens int) float64 {
	return domain.RoundTo(float64(tokens)/1e6*embeddingCostPerMillionTokens, 6)
}
