package services

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// --- Mock implementations ---

// mockEmbeddingService implements driven.EmbeddingService for testing.
type mockEmbeddingService struct {
	mu        sync.Mutex
	dims      int
	calls     int
	failFirst int
	err       error
	reverse   bool
	vectorFor func(text string) []float32
	batches   [][]string
}

func (m *mockEmbeddingService) EmbedBatch(_ context.Context, texts []string, _ int) ([]driven.Embedding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.batches = append(m.batches, slices.Clone(texts))
	if m.calls <= m.failFirst {
		return nil, m.err
	}

	out := make([]driven.Embedding, len(texts))
	for i, text := range texts {
		var v []float32
		if m.vectorFor != nil {
			v = m.vectorFor(text)
		} else {
			v = make([]float32, m.dims)
			v[0] = 1
		}
		out[i] = driven.Embedding{Index: i, Vector: v}
	}
	if m.reverse {
		slices.Reverse(out)
	}
	return out, nil
}

func (m *mockEmbeddingService) Dimensions() int { return m.dims }
func (m *mockEmbeddingService) ModelName() string { return "mock-embed" }
func (m *mockEmbeddingService) Ping(_ context.Context) error { return nil }
func (m *mockEmbeddingService) Close() error { return nil }

// mockVectorIndex implements driven.VectorIndex for testing.
type mockVectorIndex struct {
	hits      []driven.VectorHit
	queryErr  error
	pingErr   error
	lastQuery driven.VectorQuery
	queries   int
}

func (m *mockVectorIndex) EnsureCollection(_ context.Context, _ int) error { return nil }

func (m *mockVectorIndex) Query(_ context.Context, q driven.VectorQuery) ([]driven.VectorHit, error) {
	m.queries++
	m.lastQuery = q
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	return m.hits, nil
}

func (m *mockVectorIndex) Upsert(_ context.Context, _ []driven.Point) error { return nil }
func (m *mockVectorIndex) Delete(_ context.Context, _ driven.Filter) error { return nil }
func (m *mockVectorIndex) Count(_ context.Context, _ driven.Filter) (int, error) { return 0, nil }
func (m *mockVectorIndex) Ping(_ context.Context) error { return m.pingErr }
func (m *mockVectorIndex) Close() error { return nil }

// mockLLMService implements driven.LLMService for testing. Replies are
// consumed in order; the last one repeats.
type mockLLMService struct {
	replies []string
	err     error
	block   bool
	calls   [][]driven.ChatMessage
	opts    []driven.ChatOptions
}

func (m *mockLLMService) Chat(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	m.calls = append(m.calls, messages)
	m.opts = append(m.opts, opts)
	if m.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if m.err != nil {
		return "", m.err
	}
	if len(m.replies) == 0 {
		return "", nil
	}
	reply := m.replies[0]
	if len(m.replies) > 1 {
		m.replies = m.replies[1:]
	}
	return reply, nil
}

func (m *mockLLMService) ModelName() string { return "mock-llm" }
func (m *mockLLMService) Ping(_ context.Context) error { return nil }
func (m *mockLLMService) Close() error { return nil }

// mockPromptStore implements driven.PromptStore for testing.
type mockPromptStore struct {
	prompts map[string]string
	err     error
}

func (m *mockPromptStore) Load(name string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.prompts[name], nil
}

func (m *mockPromptStore) Reload() {}

// --- Helpers ---

func noSleepPolicy(maxRetries int) RetryPolicy {
	return RetryPolicy{
		MaxRetries: maxRetries,
		Backoff:    func(int) time.Duration { return 0 },
		Sleep:      func(context.Context, time.Duration) error { return nil },
	}
}

func hit(id string, score float64, chunkIndex int) driven.VectorHit {
	return driven.VectorHit{
		ID:    id,
		Score: score,
		Payload: map[string]any{
			"source":     "faq",
			"version":    "v1",
			"title":      "FAQ",
			"chunkIndex": chunkIndex,
			"chunkText":  "text of " + id,
		},
		Vector: []float32{1, 0},
	}
}

func newTestPipeline(index *mockVectorIndex, llm driven.LLMService, opts ...PipelineOption) *PipelineOrchestrator {
	embedder := NewBatchEmbedder(&mockEmbeddingService{dims: 2}, WithRetryPolicy(noSleepPolicy(0)))
	return NewPipelineOrchestrator(embedder, NewCandidateRetriever(index), nil, llm, domain.DefaultRunConfig(), opts...)
}

// --- Tests ---

func TestPipeline_Answer_NoCandidates(t *testing.T) {
	llm := &mockLLMService{replies: []string{"unused"}}
	p := newTestPipeline(&mockVectorIndex{}, llm)

	answer, err := p.Answer(context.Background(), domain.AnswerRequest{Query: "what is the deadline?"}, "req-1")

	require.NoError(t, err)
	assert.Equal(t, NoSupportMessage, answer.Answer)
	assert.Equal(t, domain.AnswerStatusNoContext, answer.Status)
	assert.Zero(t, answer.ConfidenceScore)
	assert.Nil(t, answer.BestScore)
	assert.Empty(t, answer.Citations)
	assert.NotNil(t, answer.Citations)
	assert.Equal(t, "req-1", answer.CorrelationID)
	assert.Empty(t, llm.calls)
}

func TestPipeline_Evaluate_Generates(t *testing.T) {
	index := &mockVectorIndex{hits: []driven.VectorHit{hit("a", 0.9, 0), hit("b", 0.8, 1)}}
	llm := &mockLLMService{replies: []string{"  The answer.  "}}
	p := newTestPipeline(index, llm)

	eval, err := p.Evaluate(context.Background(), "question", nil, nil)

	require.NoError(t, err)
	assert.Equal(t, "The answer.", eval.Answer)
	assert.True(t, eval.Metrics.Answerable)
	assert.False(t, eval.Metrics.ThresholdTriggered)
	require.NotNil(t, eval.Metrics.Top1Score)
	assert.InDelta(t, 0.93, *eval.Metrics.Top1Score, 1e-9)
	require.Len(t, eval.Metrics.Top5Scores, 2)
	assert.InDelta(t, 0.86, eval.Metrics.Top5Scores[1], 1e-9)
	assert.Equal(t, []string{"a", "b"}, eval.Metrics.UsedChunkIDs)
	assert.Equal(t, 2, eval.Metrics.UsedChunksCount)
	require.NotNil(t, eval.Metrics.AnswerLength)
	assert.Equal(t, 11, *eval.Metrics.AnswerLength)
	assert.Equal(t, []domain.Citation{{Source: "faq", ChunkIndex: 0}, {Source: "faq", ChunkIndex: 1}}, eval.Citations)
	assert.Equal(t, "text of a", eval.UsedChunks[0].ChunkText)
	assert.True(t, index.lastQuery.WithVectors)

	require.Len(t, llm.calls, 1)
	assert.Equal(t, "system", llm.calls[0][0].Role)
	assert.Contains(t, llm.calls[0][1].Content, "Question: question")
	assert.Contains(t, llm.calls[0][1].Content, "[E1] source=faq chunk=0 page=n/a-n/a\ntext of a")
	require.NotNil(t, llm.opts[0].Temperature)
	assert.InDelta(t, 0.3, *llm.opts[0].Temperature, 1e-9)
}

func TestPipeline_Answer_StatusFromScores(t *testing.T) {
	tests := []struct {
		name           string
		score          float64
		reply          string
		wantStatus     domain.AnswerStatus
		wantConfidence float64
	}{
		{"confident", 0.9, "Yes.", domain.AnswerStatusOK, 0.93},
		{"below threshold", 0.5, "Maybe.", domain.AnswerStatusLowConfidence, 0.65},
		{"no info reply", 0.9, "I do not have enough information in the document.", domain.AnswerStatusLowConfidence, 0.49},
		{"empty reply", 0.9, "   ", domain.AnswerStatusLowConfidence, 0.49},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			index := &mockVectorIndex{hits: []driven.VectorHit{hit("a", tt.score, 0)}}
			p := newTestPipeline(index, &mockLLMService{replies: []string{tt.reply}})

			answer, err := p.Answer(context.Background(), domain.AnswerRequest{Question: "q"}, "")

			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, answer.Status)
			assert.InDelta(t, tt.wantConfidence, answer.ConfidenceScore, 1e-9)
		})
	}
}

func TestPipeline_Evaluate_EmptyReplyBecomesNoInfo(t *testing.T) {
	index := &mockVectorIndex{hits: []driven.VectorHit{hit("a", 0.9, 0)}}
	p := newTestPipeline(index, &mockLLMService{replies: []string{""}})

	eval, err := p.Evaluate(context.Background(), "q", nil, nil)

	require.NoError(t, err)
	assert.Equal(t, NoInfoMessage, eval.Answer)
	assert.False(t, eval.Metrics.Answerable)
}

func TestPipeline_Evaluate_DryRun(t *testing.T) {
	index := &mockVectorIndex{hits: []driven.VectorHit{hit("a", 0.5, 0)}}
	llm := &mockLLMService{replies: []string{"unused"}}
	p := newTestPipeline(index, llm)
	dry := true

	eval, err := p.Evaluate(context.Background(), "q", nil, &domain.RunOverrides{DryRun: &dry})

	require.NoError(t, err)
	assert.Equal(t, DryRunAnswer, eval.Answer)
	assert.True(t, eval.Metrics.Answerable)
	assert.True(t, eval.Metrics.ThresholdTriggered)
	assert.Nil(t, eval.Metrics.AnswerLength)
	assert.True(t, eval.Metrics.Config.DryRun)
	assert.Empty(t, llm.calls)
}

func TestPipeline_Evaluate_FinalKTruncates(t *testing.T) {
	index := &mockVectorIndex{hits: []driven.VectorHit{hit("a", 0.9, 0), hit("b", 0.8, 1), hit("c", 0.7, 2)}}
	p := newTestPipeline(index, &mockLLMService{replies: []string{"ok answer here"}})
	finalK := 2

	eval, err := p.Evaluate(context.Background(), "q", nil, &domain.RunOverrides{FinalK: &finalK})

	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, eval.Metrics.UsedChunkIDs)
	assert.Len(t, eval.UsedChunks, 2)
	assert.Equal(t, 2, eval.Metrics.Config.FinalK)
}

func TestPipeline_Evaluate_RerankDisabledSkipsVectors(t *testing.T) {
	index := &mockVectorIndex{hits: []driven.VectorHit{hit("a", 0.9, 0)}}
	p := newTestPipeline(index, &mockLLMService{replies: []string{"answer"}})
	disabled := false
	llmMode := domain.RerankModeLLM

	eval, err := p.Evaluate(context.Background(), "q", nil, &domain.RunOverrides{
		RerankEnabled: &disabled,
		RerankMode:    &llmMode,
	})

	require.NoError(t, err)
	assert.False(t, index.lastQuery.WithVectors)
	assert.Empty(t, eval.Metrics.RerankFallback)
}

func TestPipeline_Evaluate_LLMRerank(t *testing.T) {
	index := &mockVectorIndex{hits: []driven.VectorHit{hit("a", 0.9, 0), hit("b", 0.8, 1)}}
	llm := &mockLLMService{replies: []string{`{"ranking":[{"index":1,"score":0.95}]}`, "final answer"}}
	p := newTestPipeline(index, llm)
	mode := domain.RerankModeLLM

	eval, err := p.Evaluate(context.Background(), "q", nil, &domain.RunOverrides{RerankMode: &mode})

	require.NoError(t, err)
	assert.False(t, index.lastQuery.WithVectors)
	assert.Equal(t, []string{"b", "a"}, eval.Metrics.UsedChunkIDs)
	assert.InDelta(t, 0.95, *eval.Metrics.Top1Score, 1e-9)
	assert.Empty(t, eval.Metrics.RerankFallback)
	assert.Equal(t, "final answer", eval.Answer)
	assert.Len(t, llm.calls, 2)
}

func TestPipeline_Evaluate_LLMRerankFallback(t *testing.T) {
	index := &mockVectorIndex{hits: []driven.VectorHit{hit("a", 0.9, 0)}}
	llm := &mockLLMService{replies: []string{"not json", "final answer"}}
	p := newTestPipeline(index, llm)
	mode := domain.RerankModeLLM

	eval, err := p.Evaluate(context.Background(), "q", nil, &domain.RunOverrides{RerankMode: &mode})

	require.NoError(t, err)
	assert.Contains(t, eval.Metrics.RerankFallback, "unparsable")
	assert.Equal(t, "final answer", eval.Answer)
}

func TestPipeline_Answer_Errors(t *testing.T) {
	hits := []driven.VectorHit{hit("a", 0.9, 0)}

	t.Run("empty query", func(t *testing.T) {
		p := newTestPipeline(&mockVectorIndex{}, nil)
		_, err := p.Answer(context.Background(), domain.AnswerRequest{Query: "   "}, "")
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("llm failure", func(t *testing.T) {
		p := newTestPipeline(&mockVectorIndex{hits: hits}, &mockLLMService{err: errors.New("boom")})
		_, err := p.Answer(context.Background(), domain.AnswerRequest{Query: "q"}, "")
		assert.ErrorIs(t, err, domain.ErrGeneration)
		assert.Equal(t, domain.CodeGeneration, domain.ErrorCode(err))
	})

	t.Run("no llm", func(t *testing.T) {
		p := newTestPipeline(&mockVectorIndex{hits: hits}, nil)
		_, err := p.Answer(context.Background(), domain.AnswerRequest{Query: "q"}, "")
		assert.ErrorIs(t, err, domain.ErrLLMUnavailable)
		assert.Equal(t, domain.CodeConfig, domain.ErrorCode(err))
		assert.True(t, domain.IsClientError(err))
	})

	t.Run("index failure", func(t *testing.T) {
		p := newTestPipeline(&mockVectorIndex{queryErr: errors.New("unreachable")}, nil)
		_, err := p.Answer(context.Background(), domain.AnswerRequest{Query: "q"}, "")
		assert.ErrorIs(t, err, domain.ErrIndexBackend)
	})

	t.Run("invalid overrides", func(t *testing.T) {
		p := newTestPipeline(&mockVectorIndex{hits: hits}, nil)
		zero := 0
		_, err := p.Evaluate(context.Background(), "q", nil, &domain.RunOverrides{CandidateTopK: &zero})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("no embedder", func(t *testing.T) {
		p := NewPipelineOrchestrator(nil, nil, nil, nil, domain.DefaultRunConfig())
		_, err := p.Evaluate(context.Background(), "q", nil, nil)
		assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
		assert.Equal(t, domain.CodeConfig, domain.ErrorCode(err))
	})
}

func TestPipeline_Answer_Timeout(t *testing.T) {
	index := &mockVectorIndex{hits: []driven.VectorHit{hit("a", 0.9, 0)}}
	p := newTestPipeline(index, &mockLLMService{block: true}, WithRequestTimeout(20*time.Millisecond))

	_, err := p.Answer(context.Background(), domain.AnswerRequest{Query: "q"}, "")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTimeout)
	assert.Equal(t, domain.CodeTimeout, domain.ErrorCode(err))
}

func TestPipeline_Answer_Filters(t *testing.T) {
	index := &mockVectorIndex{}
	embedder := NewBatchEmbedder(&mockEmbeddingService{dims: 2})
	defaults := domain.DefaultRunConfig()
	defaults.SourceFilter = "configured"
	defaults.VersionFilter = "v2"
	p := NewPipelineOrchestrator(embedder, NewCandidateRetriever(index), nil, nil, defaults)

	_, err := p.Answer(context.Background(), domain.AnswerRequest{
		Query:    "q",
		Source:   "faq",
		TenantID: "acme",
		Filters:  map[string]any{"docId": "d1"},
	}, "")

	require.NoError(t, err)
	assert.Equal(t, driven.Filter{"source": "faq", "version": "v2", "docId": "d1", "tenantId": "acme"}, index.lastQuery.Filter)
	assert.Equal(t, 30, index.lastQuery.TopK)
}

func TestPipeline_WithPromptStore(t *testing.T) {
	index := &mockVectorIndex{hits: []driven.VectorHit{hit("a", 0.9, 0)}}
	llm := &mockLLMService{replies: []string{"answer"}}
	store := &mockPromptStore{prompts: map[string]string{
		driven.PromptRAGSystem: "custom system",
		driven.PromptRAGUser:   "Q={question} E={context}",
	}}
	p := newTestPipeline(index, llm, WithPromptStore(store))

	_, err := p.Evaluate(context.Background(), "why", nil, nil)

	require.NoError(t, err)
	assert.Equal(t, "custom system", llm.calls[0][0].Content)
	assert.Equal(t, "Q=why E=[E1] source=faq chunk=0 page=n/a-n/a\ntext of a", llm.calls[0][1].Content)
}

func TestBuildRetrievalFilters(t *testing.T) {
	cfg := domain.RunConfig{SourceFilter: "cfg-source", VersionFilter: "cfg-version"}

	tests := []struct {
		name     string
		incoming map[string]any
		cfg      domain.RunConfig
		want     map[string]any
	}{
		{"config applies", nil, cfg, map[string]any{"source": "cfg-source", "version": "cfg-version"}},
		{"caller wins", map[string]any{"source": "faq", "version": "v9"}, cfg, map[string]any{"source": "faq", "version": "v9"}},
		{"empty caller value ignored", map[string]any{"source": "", "docId": nil}, cfg, map[string]any{"source": "cfg-source", "version": "cfg-version"}},
		{"other keys pass through", map[string]any{"tenantId": "acme", "page": 3, "skip": nil}, domain.RunConfig{}, map[string]any{"tenantId": "acme", "page": 3}},
		{"nothing", nil, domain.RunConfig{}, map[string]any{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildRetrievalFilters(tt.incoming, tt.cfg))
		})
	}
}
