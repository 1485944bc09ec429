package services

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// Ensure EvalService implements the interface.
var _ driving.EvalService = (*EvalService)(nil)

// Utility weights for the threshold recommendation.
const (
	utilityTop1Weight       = 0.35
	utilitySuspiciousWeight = 0.8
)

// suspiciousAnswerLength is the longest answer still considered suspiciously short.
const suspiciousAnswerLength = 20

// EvalService sweeps thresholds over a question set through the pipeline.
type EvalService struct {
	pipeline driving.AnswerService
}

// NewEvalService creates an evaluation service.
func NewEvalService(pipeline driving.AnswerService) *EvalService {
	return &EvalService{pipeline: pipeline}
}

// Run evaluates every question at every threshold. Per-question failures
// are recorded as error rows.
func (s *EvalService) Run(ctx context.Context, questions []string, opts domain.EvalOptions) (*domain.EvalResult, error) {
	logger.Section("Threshold Sweep")

	cleaned := make([]string, 0, len(questions))
	for _, q := range questions {
		if q = strings.TrimSpace(q); q != "" {
			cleaned = append(cleaned, q)
		}
	}
	if len(cleaned) == 0 {
		return nil, fmt.Errorf("%w: no questions to evaluate", domain.ErrInvalidInput)
	}
	if len(opts.Thresholds) == 0 {
		opts.Thresholds = domain.DefaultEvalThresholds()
	}
	if opts.RerankMode != "" && !opts.RerankMode.IsValid() {
		return nil, fmt.Errorf("%w: unknown rerank mode %q", domain.ErrInvalidInput, opts.RerankMode)
	}

	logger.Info("eval_rag start questions=%d thresholds=%v mode=%s topk=%d final_k=%d dry_run=%t source=%s",
		len(cleaned), opts.Thresholds, opts.RerankMode, opts.CandidateTopK, opts.FinalK, opts.DryRun, opts.Source)

	result := &domain.EvalResult{Options: opts}
	for _, threshold := range opts.Thresholds {
		bucket := make([]domain.EvalRow, 0, len(cleaned))
		for _, q := range cleaned {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			row := s.evaluate(ctx, q, threshold, opts)
			bucket = append(bucket, row)
		}
		result.Rows = append(result.Rows, bucket...)
		result.Summaries = append(result.Summaries, Summarize(threshold, bucket))
	}
	result.Recommendation = Recommend(result.Summaries)
	return result, nil
}

func (s *EvalService) evaluate(ctx context.Context, question string, threshold float64, opts domain.EvalOptions) domain.EvalRow {
	overrides := &domain.RunOverrides{
		ScoreThreshold: &threshold,
		RerankEnabled:  boolRef(true),
		SourceFilter:   &opts.Source,
		VersionFilter:  &opts.Version,
		DryRun:         &opts.DryRun,
	}
	if opts.CandidateTopK > 0 {
		overrides.CandidateTopK = &opts.CandidateTopK
	}
	if opts.FinalK > 0 {
		overrides.FinalK = &opts.FinalK
	}
	if opts.RerankMode != "" {
		overrides.RerankMode = &opts.RerankMode
	}

	row := domain.EvalRow{Question: question, Threshold: threshold, TopScores: []float64{}, UsedChunkIDs: []string{}}
	eval, err := s.pipeline.Evaluate(ctx, question, nil, overrides)
	if err != nil {
		logger.Warn("eval_rag question failed threshold=%.2f err=%v", threshold, err)
		row.Suspicious = true
		row.Error = err.Error()
		return row
	}

	m := eval.Metrics
	row.Answerable = m.Answerable
	row.ThresholdTriggered = m.ThresholdTriggered
	row.Top1Score = m.Top1Score
	row.TopScores = m.Top5Scores
	row.LatencyMs = m.LatencyMs
	row.UsedChunkIDs = m.UsedChunkIDs
	if !opts.DryRun {
		n := utf8.RuneCountInString(eval.Answer)
		row.AnswerLength = &n
	}
	row.Suspicious = IsSuspicious(row.Answerable, m.UsedChunksCount, row.AnswerLength)
	return row
}

// IsSuspicious flags answerable rows backed by no chunks or with a very short answer.
func IsSuspicious(answerable bool, usedChunks int, answerLength *int) bool {
	if !answerable {
		return false
	}
	if usedChunks == 0 {
		return true
	}
	return answerLength != nil && *answerLength <= suspiciousAnswerLength
}

// Summarize aggregates the rows evaluated at one threshold.
func Summarize(threshold float64, rows []domain.EvalRow) domain.EvalSummary {
	sum := domain.EvalSummary{Threshold: threshold, Queries: len(rows)}
	if len(rows) == 0 {
		return sum
	}

	var answerable, suspicious, top1Count, latencyCount int
	var top1Total, latencyTotal float64
	for _, r := range rows {
		if r.Answerable {
			answerable++
		}
		if r.ThresholdTriggered {
			sum.RejectedCount++
		}
		if r.Suspicious {
			suspicious++
		}
		if r.Top1Score != nil {
			top1Total += *r.Top1Score
			top1Count++
		}
		if r.Error == "" {
			latencyTotal += r.LatencyMs.Total
			latencyCount++
		}
	}

	n := float64(len(rows))
	sum.AnswerableRate = domain.RoundTo(float64(answerable)/n, 4)
	sum.SuspiciousRate = domain.RoundTo(float64(suspicious)/n, 4)
	if top1Count > 0 {
		sum.AvgTop1Score = domain.RoundTo(top1Total/float64(top1Count), 4)
	}
	if latencyCount > 0 {
		sum.AvgLatencyMs = domain.RoundTo(latencyTotal/float64(latencyCount), 2)
	}
	return sum
}

// Recommend returns the threshold maximizing
// answerableRate + 0.35*avgTop1 - 0.8*suspiciousRate. The first threshold
// wins ties. It returns nil when there is nothing to recommend.
func Recommend(summaries []domain.EvalSummary) *domain.EvalRecommendation {
	var best *domain.EvalRecommendation
	bestUtility := 0.0
	for _, s := range summaries {
		utility := s.AnswerableRate + utilityTop1Weight*s.AvgTop1Score - utilitySuspiciousWeight*s.SuspiciousRate
		if best != nil && utility <= bestUtility {
			continue
		}
		bestUtility = utility
		best = &domain.EvalRecommendation{
			Threshold: s.Threshold,
			Utility:   domain.RoundTo(utility, 4),
			Reason: fmt.Sprintf("best balance of answerable and suspicious results (answerableRate=%.4f, suspiciousRate=%.4f, avgTop1=%.4f)",
				s.AnswerableRate, s.SuspiciousRate, s.AvgTop1Score),
		}
	}
	return best
}

func boolRef(v bool) *bool {
	return &v
}
