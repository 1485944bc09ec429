package domain

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxQueryLength is the maximum number of characters accepted in a query.
const MaxQueryLength = 4000

// AnswerStatus classifies the confidence of an answer.
type AnswerStatus string

// Answer statuses.
const (
	AnswerStatusOK            AnswerStatus = "ok"
	AnswerStatusLowConfidence AnswerStatus = "low_confidence"
	AnswerStatusNoContext     AnswerStatus = "no_context"
)

// lowConfidenceCap bounds the confidence reported for non-answerable results.
const lowConfidenceCap = 0.49

// AnswerRequest is an inbound question. Query and Question are aliases;
// Query wins when both are set.
type AnswerRequest struct {
	Query    string         `json:"query,omitempty"`
	Question string         `json:"question,omitempty"`
	Source   string         `json:"source,omitempty"`
	TenantID string         `json:"tenantId,omitempty"`
	Filters  map[string]any `json:"filters,omitempty"`
}

// Resolve validates the request and returns the trimmed query and the
// filters with Source and TenantID folded in when not already present.
func (r AnswerRequest) Resolve() (string, map[string]any, error) {
	for name, v := range map[string]string{"query": r.Query, "question": r.Question} {
		if utf8.RuneCountInString(v) > MaxQueryLength {
			return "", nil, fmt.Errorf("%w: %s exceeds %d characters", ErrInvalidInput, name, MaxQueryLength)
		}
	}

	query := strings.TrimSpace(r.Query)
	if query == "" {
		query = strings.TrimSpace(r.Question)
	}
	if query == "" {
		return "", nil, fmt.Errorf("%w: query or question is required", ErrInvalidInput)
	}

	filters := make(map[string]any, len(r.Filters)+2)
	for k, v := range r.Filters {
		filters[k] = v
	}
	if _, ok := filters["source"]; !ok && r.Source != "" {
		filters["source"] = r.Source
	}
	if _, ok := filters["tenantId"]; !ok && r.TenantID != "" {
		filters["tenantId"] = r.TenantID
	}
	return query, filters, nil
}

// Answer is the outbound response to an AnswerRequest.
type Answer struct {
	Answer          string       `json:"answer"`
	Citations       []Citation   `json:"citations"`
	UsedChunks      []UsedChunk  `json:"usedChunks"`
	ConfidenceScore float64      `json:"confidenceScore"`
	BestScore       *float64     `json:"bestScore"`
	Status          AnswerStatus `json:"status"`
	CorrelationID   string       `json:"correlationId,omitempty"`
}

// NewAnswer derives the status and confidence of a finished run.
func NewAnswer(e *Evaluation, correlationID string) Answer {
	a := Answer{
		Answer:        e.Answer,
		Citations:     e.Citations,
		UsedChunks:    e.UsedChunks,
		BestScore:     e.BestScore(),
		CorrelationID: correlationID,
	}
	if a.Citations == nil {
		a.Citations = []Citation{}
	}
	if a.UsedChunks == nil {
		a.UsedChunks = []UsedChunk{}
	}
	a.Status, a.ConfidenceScore = deriveStatus(e.Metrics, a.BestScore)
	return a
}

func deriveStatus(m PipelineMetrics, best *float64) (AnswerStatus, float64) {
	if best == nil {
		return AnswerStatusNoContext, 0
	}
	confidence := clamp01(*best)
	if !m.Answerable {
		return AnswerStatusLowConfidence, min(confidence, lowConfidenceCap)
	}
	if *best < m.Config.Threshold || m.ThresholdTriggered {
		return AnswerStatusLowConfidence, confidence
	}
	return AnswerStatusOK, confidence
}

func clamp01(v float64) float64 {
	return max(0, min(1, v))
}
