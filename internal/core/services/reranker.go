package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// Rerank weights for blending the index score with recomputed similarity.
const (
	indexScoreWeight = 0.7
	cosineWeight     = 0.3
)

// Judge limits.
const (
	maxJudgeCandidates = 12
	judgePreviewChars  = 450
)

// RerankOutcome is the result of a rerank. Fallback is set when the LLM
// judge was requested but cosine ordering was applied instead.
type RerankOutcome struct {
	Candidates []domain.ChunkCandidate
	Fallback   bool
	Reason     string
}

func ranked(c []domain.ChunkCandidate) RerankOutcome {
	return RerankOutcome{Candidates: c}
}

func fallback(c []domain.ChunkCandidate, reason string) RerankOutcome {
	return RerankOutcome{Candidates: c, Fallback: true, Reason: reason}
}

// Reranker re-orders retrieved candidates by cosine blend or LLM judge.
type Reranker struct {
	judge       driven.LLMService
	promptStore driven.PromptStore
}

// NewReranker creates a reranker. judge may be nil, in which case LLM mode
// always falls back to cosine.
func NewReranker(judge driven.LLMService, promptStore driven.PromptStore) *Reranker {
	return &Reranker{judge: judge, promptStore: promptStore}
}

// Rerank orders candidates according to mode. The input slice is not modified.
func (r *Reranker) Rerank(
	ctx context.Context, mode domain.RerankMode, query string, queryVector []float32, candidates []domain.ChunkCandidate,
) RerankOutcome {
	if mode != domain.RerankModeLLM {
		return ranked(CosineRerank(queryVector, candidates))
	}

	if r.judge == nil {
		return r.fallback(queryVector, candidates, "no judge configured")
	}
	out, err := r.judgeRerank(ctx, query, candidates)
	if err != nil {
		return r.fallback(queryVector, candidates, err.Error())
	}
	return ranked(out)
}

func (r *Reranker) fallback(queryVector []float32, candidates []domain.ChunkCandidate, reason string) RerankOutcome {
	logger.Warn("rag_pipeline rerank fallback=cosine reason=%q", reason)
	return fallback(CosineRerank(queryVector, candidates), reason)
}

// CosineRerank scores each candidate as 0.7*indexScore + 0.3*similarity and
// sorts descending, keeping the input order among ties. Candidates without
// an embedding use their index score as similarity.
func CosineRerank(queryVector []float32, candidates []domain.ChunkCandidate) []domain.ChunkCandidate {
	out := make([]domain.ChunkCandidate, 0, len(candidates))
	for _, c := range candidates {
		sim := c.IndexScore
		if len(c.Embedding) > 0 {
			sim = CosineSimilarity(queryVector, c.Embedding)
		}
		out = append(out, c.WithRerankScore(indexScoreWeight*c.IndexScore+cosineWeight*sim))
	}
	sort.SliceStable(out, func(i, j int) bool { return *out[i].RerankScore > *out[j].RerankScore })
	return out
}

// CosineSimilarity returns the cosine of the angle between a and b, or 0
// when either is empty, zero-norm or the lengths differ.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

type judgeRanking struct {
	Ranking []map[string]json.RawMessage `json:"ranking"`
}

// judgeRerank asks the LLM to rank the first candidates. Candidates missing
// from the ranking follow in input order with their index score.
func (r *Reranker) judgeRerank(ctx context.Context, query string, candidates []domain.ChunkCandidate) ([]domain.ChunkCandidate, error) {
	if len(candidates) == 0 {
		return []domain.ChunkCandidate{}, nil
	}
	clipped := candidates[:min(len(candidates), maxJudgeCandidates)]

	snippets := make([]string, 0, len(clipped))
	for i, c := range clipped {
		snippets = append(snippets, fmt.Sprintf("[%d] %s", i, truncateRunes(c.Text, judgePreviewChars)))
	}
	user := fmt.Sprintf("Question: %s\n\nFragments:\n%s", query, strings.Join(snippets, "\n\n"))

	raw, err := r.judge.Chat(ctx, []driven.ChatMessage{
		{Role: "system", Content: loadPrompt(r.promptStore, driven.PromptRerankSystem, defaultRerankSystemPrompt)},
		{Role: "user", Content: user},
	}, driven.ChatOptions{Temperature: driven.Temperature(0), JSON: true})
	if err != nil {
		return nil, fmt.Errorf("judge call failed: %w", err)
	}

	var parsed judgeRanking
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &parsed); err != nil {
		return nil, fmt.Errorf("unparsable judge output: %w", err)
	}

	out := make([]domain.ChunkCandidate, 0, len(candidates))
	seen := make(map[string]bool, len(candidates))
	usedIdx := make(map[int]bool, len(clipped))
	for _, item := range parsed.Ranking {
		idx, ok := judgeIndex(item["index"])
		if !ok || idx < 0 || idx >= len(clipped) || usedIdx[idx] {
			continue
		}
		c := clipped[idx]
		if seen[c.ChunkID] {
			continue
		}
		usedIdx[idx] = true
		seen[c.ChunkID] = true
		out = append(out, c.WithRerankScore(judgeScore(item["score"], c.IndexScore)))
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty ranking")
	}

	for _, c := range candidates {
		if seen[c.ChunkID] {
			continue
		}
		seen[c.ChunkID] = true
		out = append(out, c.WithRerankScore(c.IndexScore))
	}
	logger.Debug("Judge ranked %d of %d candidates", len(usedIdx), len(candidates))
	return out, nil
}

// stripCodeFence removes surrounding backticks and a leading json tag.
func stripCodeFence(raw string) string {
	s := strings.Trim(strings.TrimSpace(raw), "`")
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "json")
	return strings.TrimSpace(s)
}

// judgeIndex accepts only integral JSON numbers.
func judgeIndex(raw json.RawMessage) (int, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(string(raw))
	if err != nil {
		return 0, false
	}
	return n, true
}

func judgeScore(raw json.RawMessage, def float64) float64 {
	if len(raw) == 0 {
		return def
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return def
	}
	return v
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
