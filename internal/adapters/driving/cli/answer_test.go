package cli

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

func sampleAnswer() *domain.Answer {
	best := 0.82
	return &domain.Answer{
		Answer:          "The filing deadline is 30 days [1].",
		Citations:       []domain.Citation{{Source: "manual", ChunkIndex: 3}},
		UsedChunks:      []domain.UsedChunk{{Source: "manual", ChunkIndex: 3, Score: 0.82, Title: "Procedures"}},
		ConfidenceScore: 0.82,
		BestScore:       &best,
		Status:          domain.AnswerStatusOK,
	}
}

func TestAnswerCmd_PlainOutput(t *testing.T) {
	answerSvc := &mockAnswerService{answer: sampleAnswer()}
	useTestContainer(t, &container{answer: answerSvc})

	out, err := executeCommand(t, "", "answer", "what is the deadline?", "--source", "manual")

	require.NoError(t, err)
	assert.Contains(t, out, "Status: ok")
	assert.Contains(t, out, "The filing deadline is 30 days [1].")
	assert.Contains(t, out, "[1] manual #3")
	assert.Equal(t, "what is the deadline?", answerSvc.lastReq.Query)
	assert.Equal(t, "manual", answerSvc.lastReq.Source)
}

func TestAnswerCmd_JSONOutput(t *testing.T) {
	useTestContainer(t, &container{answer: &mockAnswerService{answer: sampleAnswer()}})

	out, err := executeCommand(t, "", "answer", "deadline", "--json")
	require.NoError(t, err)

	var decoded domain.Answer
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, domain.AnswerStatusOK, decoded.Status)
	assert.Len(t, decoded.Citations, 1)
}

func TestAnswerCmd_Filters(t *testing.T) {
	answerSvc := &mockAnswerService{answer: sampleAnswer()}
	useTestContainer(t, &container{answer: answerSvc})

	_, err := executeCommand(t, "", "answer", "q",
		"--tenant", "acme", "--filter", "version=v2", "--filter", "page=4")

	require.NoError(t, err)
	assert.Equal(t, "acme", answerSvc.lastReq.TenantID)
	assert.Equal(t, map[string]any{"version": "v2", "page": 4}, answerSvc.lastReq.Filters)
}

func TestAnswerCmd_ServiceError(t *testing.T) {
	useTestContainer(t, &container{answer: &mockAnswerService{err: domain.ErrIndexBackend}})

	_, err := executeCommand(t, "", "answer", "q")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrIndexBackend))
}

func TestAnswerCmd_RequiresQuery(t *testing.T) {
	useTestContainer(t, &container{answer: &mockAnswerService{answer: sampleAnswer()}})

	_, err := executeCommand(t, "", "answer")
	assert.Error(t, err)
}

func TestParseFilters(t *testing.T) {
	tests := []struct {
		name     string
		pairs    []string
		expected map[string]any
		wantErr  bool
	}{
		{name: "none", pairs: nil, expected: nil},
		{name: "string", pairs: []string{"source=manual"}, expected: map[string]any{"source": "manual"}},
		{name: "int", pairs: []string{"page=12"}, expected: map[string]any{"page": 12}},
		{name: "bool", pairs: []string{"draft=false"}, expected: map[string]any{"draft": false}},
		{name: "value with equals", pairs: []string{"q=a=b"}, expected: map[string]any{"q": "a=b"}},
		{name: "trimmed", pairs: []string{" k = v "}, expected: map[string]any{"k": "v"}},
		{name: "missing equals", pairs: []string{"source"}, wantErr: true},
		{name: "empty key", pairs: []string{"=v"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseFilters(tt.pairs)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestRenderAnswerStyled_IncludesSources(t *testing.T) {
	out := renderAnswerStyled(sampleAnswer(), newAnswerStyles(defaultTheme()))

	assert.Contains(t, out, "ok")
	assert.Contains(t, out, "Procedures")
	assert.Contains(t, out, "score 0.820")
}

func TestRenderAnswerPlain_NoCitations(t *testing.T) {
	out := renderAnswerPlain(&domain.Answer{
		Answer: "No relevant information was found.",
		Status: domain.AnswerStatusNoContext,
	})

	assert.Contains(t, out, "Status: no_context")
	assert.NotContains(t, out, "Sources:")
}
