package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// Ensure PipelineOrchestrator implements the interface.
var _ driving.AnswerService = (*PipelineOrchestrator)(nil)

// DefaultRequestTimeout bounds one Answer call end to end.
const DefaultRequestTimeout = 60 * time.Second

// maxReportedScores caps metrics.top5Scores.
const maxReportedScores = 5

// PipelineOrchestrator runs embed, retrieve, rerank, gate and generate for
// one question.
type PipelineOrchestrator struct {
	embedder    *BatchEmbedder
	retriever   *CandidateRetriever
	reranker    *Reranker
	llm         driven.LLMService
	promptStore driven.PromptStore
	defaults    domain.RunConfig
	timeout     time.Duration
}

// PipelineOption configures a PipelineOrchestrator.
type PipelineOption func(*PipelineOrchestrator)

// WithRequestTimeout sets the end-to-end deadline applied by Answer.
func WithRequestTimeout(d time.Duration) PipelineOption {
	return func(o *PipelineOrchestrator) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithPromptStore sets the store grounding prompts are loaded from.
func WithPromptStore(store driven.PromptStore) PipelineOption {
	return func(o *PipelineOrchestrator) {
		o.promptStore = store
	}
}

// NewPipelineOrchestrator creates an orchestrator. llm is optional; without
// it only dry runs succeed.
func NewPipelineOrchestrator(
	embedder *BatchEmbedder,
	retriever *CandidateRetriever,
	reranker *Reranker,
	llm driven.LLMService,
	defaults domain.RunConfig,
	opts ...PipelineOption,
) *PipelineOrchestrator {
	o := &PipelineOrchestrator{
		embedder:  embedder,
		retriever: retriever,
		reranker:  reranker,
		llm:       llm,
		defaults:  defaults,
		timeout:   DefaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.reranker == nil {
		o.reranker = NewReranker(llm, o.promptStore)
	}
	return o
}

// Defaults returns the run configuration used when no override is given.
func (o *PipelineOrchestrator) Defaults() domain.RunConfig {
	return o.defaults
}

// Answer validates the request and runs the pipeline under the end-to-end timeout.
func (o *PipelineOrchestrator) Answer(
	ctx context.Context, req domain.AnswerRequest, correlationID string,
) (*domain.Answer, error) {
	query, filters, err := req.Resolve()
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	eval, err := o.Evaluate(runCtx, query, filters, nil)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			logger.Warn("rag_pipeline timeout correlation_id=%s after=%s", correlationID, o.timeout)
			return nil, &domain.TimeoutError{After: o.timeout}
		}
		return nil, err
	}

	answer := domain.NewAnswer(eval, correlationID)
	logger.Info("rag_pipeline done correlation_id=%s status=%s confidence=%.4f",
		correlationID, answer.Status, answer.ConfidenceScore)
	return &answer, nil
}

// Evaluate runs the pipeline for query with explicit filters and overrides.
func (o *PipelineOrchestrator) Evaluate(
	ctx context.Context, query string, filters map[string]any, overrides *domain.RunOverrides,
) (*domain.Evaluation, error) {
	logger.Section("RAG Pipeline")

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", domain.ErrInvalidInput)
	}

	cfg := o.defaults.Merge(overrides)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if o.embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}
	if o.retriever == nil {
		return nil, domain.ErrVectorIndexUnavailable
	}

	run := &pipelineRun{cfg: cfg, started: time.Now()}

	// Embed
	stage := time.Now()
	vector, err := o.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	run.latency.Embed = elapsedMs(stage)

	// Retrieve
	retrievalFilters := BuildRetrievalFilters(filters, cfg)
	stage = time.Now()
	candidates, err := o.retriever.Retrieve(ctx, vector, cfg.CandidateTopK, retrievalFilters, cfg.IncludeEmbeddings())
	if err != nil {
		return nil, err
	}
	run.latency.Retrieval = elapsedMs(stage)
	logger.Info("rag_pipeline retrieval query_len=%d candidate_topk=%d returned=%d filters=%v top_index_scores=%v duration_ms=%.2f",
		utf8.RuneCountInString(query), cfg.CandidateTopK, len(candidates), retrievalFilters,
		indexScores(candidates, maxReportedScores), run.latency.Retrieval)

	if len(candidates) == 0 {
		return run.noEvidence(), nil
	}

	// Rerank
	mode := cfg.EffectiveRerankMode()
	stage = time.Now()
	outcome := o.reranker.Rerank(ctx, mode, query, vector, candidates)
	top := outcome.Candidates[:min(cfg.FinalK, len(outcome.Candidates))]
	run.latency.Rerank = elapsedMs(stage)
	if outcome.Fallback {
		run.rerankFallback = outcome.Reason
	}
	run.setTop(top)
	logger.Info("rag_pipeline rerank mode=%s enabled=%t final_k=%d top_scores=%v duration_ms=%.2f",
		mode, cfg.RerankEnabled, cfg.FinalK, run.topScores, run.latency.Rerank)

	// Gate
	run.thresholdTriggered = ShouldReject(run.best(), cfg.ScoreThreshold)
	if run.thresholdTriggered {
		logger.Info("rag_pipeline low_confidence best_score=%s threshold=%.3f proceeding_with_generation",
			formatScore(run.best()), cfg.ScoreThreshold)
	}

	if cfg.DryRun {
		return run.finish(DryRunAnswer, true, false), nil
	}

	// Generate
	stage = time.Now()
	answer, err := o.generate(ctx, query, top, cfg.Temperature)
	if err != nil {
		return nil, err
	}
	run.latency.Generate = elapsedMs(stage)
	if answer == "" {
		answer = NoInfoMessage
	}
	eval := run.finish(answer, !IsNoInfoAnswer(answer), true)
	logger.Info("rag_pipeline generate answer_len=%d duration_ms=%.2f total_ms=%.2f",
		utf8.RuneCountInString(answer), eval.Metrics.LatencyMs.Generate, eval.Metrics.LatencyMs.Total)
	return eval, nil
}

func (o *PipelineOrchestrator) generate(
	ctx context.Context, query string, top []domain.ChunkCandidate, temperature float64,
) (string, error) {
	if o.llm == nil {
		return "", domain.ErrLLMUnavailable
	}
	system, user := BuildGroundedPrompt(o.promptStore, query, top)
	answer, err := o.llm.Chat(ctx, []driven.ChatMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}, driven.ChatOptions{Temperature: driven.Temperature(temperature)})
	if err != nil {
		return "", &domain.GenerationError{Err: err}
	}
	return strings.TrimSpace(answer), nil
}

// BuildRetrievalFilters merges caller filters with the configured source and
// version filters. Non-empty caller source, version and docId win; other
// caller keys pass through unchanged.
func BuildRetrievalFilters(incoming map[string]any, cfg domain.RunConfig) map[string]any {
	out := make(map[string]any, len(incoming)+2)
	for k, v := range incoming {
		switch k {
		case "source", "version", "docId":
			if !isEmptyFilterValue(v) {
				out[k] = v
			}
		default:
			if v != nil {
				out[k] = v
			}
		}
	}
	if _, ok := out["source"]; !ok && cfg.SourceFilter != "" {
		out["source"] = cfg.SourceFilter
	}
	if _, ok := out["version"]; !ok && cfg.VersionFilter != "" {
		out["version"] = cfg.VersionFilter
	}
	return out
}

func isEmptyFilterValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	default:
		return false
	}
}

// pipelineRun accumulates the values reported in the final metrics.
type pipelineRun struct {
	cfg                domain.RunConfig
	started            time.Time
	latency            domain.LatencyMs
	top                []domain.ChunkCandidate
	topScores          []float64
	thresholdTriggered bool
	rerankFallback     string
}

func (r *pipelineRun) setTop(top []domain.ChunkCandidate) {
	r.top = top
	r.topScores = make([]float64, 0, min(len(top), maxReportedScores))
	for _, c := range top[:min(len(top), maxReportedScores)] {
		r.topScores = append(r.topScores, domain.RoundTo(c.Score(), 4))
	}
}

func (r *pipelineRun) best() *float64 {
	if len(r.topScores) == 0 {
		return nil
	}
	best := r.topScores[0]
	return &best
}

// noEvidence builds the result for a run that retrieved nothing.
func (r *pipelineRun) noEvidence() *domain.Evaluation {
	r.latency.Total = elapsedMs(r.started)
	return &domain.Evaluation{
		Answer:     NoSupportMessage,
		Citations:  []domain.Citation{},
		UsedChunks: []domain.UsedChunk{},
		Metrics: domain.PipelineMetrics{
			Answerable:         false,
			ThresholdTriggered: true,
			Top5Scores:         []float64{},
			UsedChunkIDs:       []string{},
			LatencyMs:          r.latency,
			Config:             r.cfg.Snapshot(),
		},
	}
}

// finish builds the evaluation once every stage has run.
func (r *pipelineRun) finish(answer string, answerable, generated bool) *domain.Evaluation {
	r.latency.Total = elapsedMs(r.started)

	citations := make([]domain.Citation, 0, len(r.top))
	used := make([]domain.UsedChunk, 0, len(r.top))
	ids := make([]string, 0, len(r.top))
	for _, c := range r.top {
		citations = append(citations, domain.Citation{Source: c.Source, ChunkIndex: c.ChunkIndex})
		used = append(used, domain.UsedChunk{
			Source:     c.Source,
			ChunkIndex: c.ChunkIndex,
			ChunkText:  c.Text,
			Score:      domain.RoundTo(c.Score(), 4),
			Title:      c.Title,
		})
		ids = append(ids, c.ChunkID)
	}

	metrics := domain.PipelineMetrics{
		Answerable:         answerable,
		ThresholdTriggered: r.thresholdTriggered,
		Top1Score:          r.best(),
		Top5Scores:         r.topScores,
		UsedChunkIDs:       ids,
		UsedChunksCount:    len(r.top),
		LatencyMs:          r.latency,
		Config:             r.cfg.Snapshot(),
		RerankFallback:     r.rerankFallback,
	}
	if generated {
		n := utf8.RuneCountInString(answer)
		metrics.AnswerLength = &n
	}

	return &domain.Evaluation{
		Answer:     answer,
		Citations:  citations,
		UsedChunks: used,
		Metrics:    metrics,
	}
}

func elapsedMs(since time.Time) float64 {
	return domain.RoundTo(float64(time.Since(since))/float64(time.Millisecond), 2)
}

func indexScores(candidates []domain.ChunkCandidate, n int) []float64 {
	out := make([]float64, 0, min(n, len(candidates)))
	for _, c := range candidates[:min(n, len(candidates))] {
		out = append(out, domain.RoundTo(c.IndexScore, 4))
	}
	return out
}

func formatScore(v *float64) string {
	if v == nil {
		return "none"
	}
	return fmt.Sprintf("%.4f", *v)
}
