package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-rag/internal/core/services"
)

// mockAnswerService is a test double for AnswerService.
type mockAnswerService struct {
	answer        *domain.Answer
	err           error
	gotReq        domain.AnswerRequest
	correlationID string
}

func (m *mockAnswerService) Answer(_ context.Context, req domain.AnswerRequest, correlationID string) (*domain.Answer, error) {
	m.gotReq = req
	m.correlationID = correlationID
	return m.answer, m.err
}

func (m *mockAnswerService) Evaluate(
	_ context.Context, _ string, _ map[string]any, _ *domain.RunOverrides,
) (*domain.Evaluation, error) {
	return nil, nil
}

// mockIngestService is a test double for IngestService.
type mockIngestService struct {
	resp   *domain.IngestResponse
	err    error
	gotReq domain.IngestRequest
}

func (m *mockIngestService) IngestText(_ context.Context, req domain.IngestRequest) (*domain.IngestResponse, error) {
	m.gotReq = req
	return m.resp, m.err
}

func (m *mockIngestService) IngestFile(_ context.Context, _ domain.IngestOptions) (*domain.IngestReport, error) {
	return nil, nil
}

// mockDiagnostics is a test double for DiagnosticsService.
type mockDiagnostics struct {
	report driving.Diagnostics
}

func (m *mockDiagnostics) Check(_ context.Context) driving.Diagnostics {
	return m.report
}

func newTestServer(t *testing.T, ports *Ports, opts ...Option) http.Handler {
	t.Helper()
	s, err := NewServer(ports, opts...)
	require.NoError(t, err)
	return s.Handler()
}

func do(h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func TestNewServer_RequiresAnswerService(t *testing.T) {
	_, err := NewServer(&Ports{})
	assert.ErrorIs(t, err, ErrMissingAnswerService)
}

func TestHealth(t *testing.T) {
	h := newTestServer(t, &Ports{Answer: &mockAnswerService{}})

	rec := do(h, http.MethodGet, PathHealth, "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","service":"sercha-rag"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(HeaderRequestID))
}

func TestRequestIDs(t *testing.T) {
	h := newTestServer(t, &Ports{Answer: &mockAnswerService{}})

	tests := []struct {
		name            string
		headers         map[string]string
		wantRequest     string
		wantCorrelation string
	}{
		{"request id only", map[string]string{HeaderRequestID: "req-1"}, "req-1", "req-1"},
		{"correlation wins", map[string]string{HeaderRequestID: "req-1", HeaderCorrelationID: "corr-1"}, "corr-1", "corr-1"},
		{"correlation only", map[string]string{HeaderCorrelationID: "corr-2"}, "corr-2", "corr-2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(h, http.MethodGet, PathHealth, "", tt.headers)
			assert.Equal(t, tt.wantRequest, rec.Header().Get(HeaderRequestID))
			assert.Equal(t, tt.wantCorrelation, rec.Header().Get(HeaderCorrelationID))
		})
	}

	t.Run("generated when absent", func(t *testing.T) {
		rec := do(h, http.MethodGet, PathHealth, "", nil)
		id := rec.Header().Get(HeaderRequestID)
		assert.Len(t, id, 36)
		assert.Equal(t, id, rec.Header().Get(HeaderCorrelationID))
	})
}

func TestAnswer(t *testing.T) {
	best := 0.83
	answerSvc := &mockAnswerService{answer: &domain.Answer{
		Answer:          "The appeal was denied.",
		Citations:       []domain.Citation{{Source: "court", ChunkIndex: 2}},
		UsedChunks:      []domain.UsedChunk{},
		ConfidenceScore: 0.83,
		BestScore:       &best,
		Status:          domain.AnswerStatusOK,
	}}
	h := newTestServer(t, &Ports{Answer: answerSvc})

	rec := do(h, http.MethodPost, PathAnswer,
		`{"question":"What happened?","source":"court","filters":{"version":"v2"}}`,
		map[string]string{HeaderCorrelationID: "corr-9"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "What happened?", answerSvc.gotReq.Question)
	assert.Equal(t, "court", answerSvc.gotReq.Source)
	assert.Equal(t, "v2", answerSvc.gotReq.Filters["version"])
	assert.Equal(t, "corr-9", answerSvc.correlationID)

	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "The appeal was denied.", got["answer"])
	assert.Equal(t, "ok", got["status"])
}

func TestAnswer_InvalidJSON(t *testing.T) {
	h := newTestServer(t, &Ports{Answer: &mockAnswerService{}})

	rec := do(h, http.MethodPost, PathAnswer, `{"query":`, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, domain.CodeValidation, decodeError(t, rec).Code)
}

func TestAnswer_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"validation", fmt.Errorf("%w: query is required", domain.ErrInvalidInput), http.StatusBadRequest, domain.CodeValidation},
		{"configuration", domain.ErrConfiguration, http.StatusBadRequest, domain.CodeConfig},
		{"index", &domain.IndexBackendError{Op: "query", Err: fmt.Errorf("unavailable")}, http.StatusBadGateway, domain.CodeIndexBackend},
		{"embedding", &domain.EmbeddingBatchError{Batch: 0, Attempts: 5, Err: fmt.Errorf("429")}, http.StatusBadGateway, domain.CodeEmbedding},
		{"generation", &domain.GenerationError{Err: fmt.Errorf("boom")}, http.StatusBadGateway, domain.CodeGeneration},
		{"timeout", &domain.TimeoutError{After: time.Minute}, http.StatusGatewayTimeout, domain.CodeTimeout},
		{"internal", fmt.Errorf("unexpected"), http.StatusInternalServerError, domain.CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(t, &Ports{Answer: &mockAnswerService{err: tt.err}})

			rec := do(h, http.MethodPost, PathAnswer, `{"query":"q"}`, nil)

			assert.Equal(t, tt.wantStatus, rec.Code)
			body := decodeError(t, rec)
			assert.Equal(t, tt.wantCode, body.Code)
			assert.NotEmpty(t, body.Message)
			assert.Equal(t, tt.err.Error(), body.Detail)
		})
	}
}

func TestIngest(t *testing.T) {
	ingest := &mockIngestService{resp: &domain.IngestResponse{
		Source: "court", Title: "Ruling", ChunksDeleted: 3, ChunksInserted: 4,
	}}
	h := newTestServer(t, &Ports{Answer: &mockAnswerService{}, Ingest: ingest})

	rec := do(h, http.MethodPost, PathIngest,
		`{"source":"court","title":"Ruling","text":"The appeal was denied.","metadata":{"year":2024}}`, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "court", ingest.gotReq.Source)
	assert.Equal(t, "The appeal was denied.", ingest.gotReq.Text)
	assert.InDelta(t, 2024, ingest.gotReq.Metadata["year"], 0)
	assert.JSONEq(t, `{"source":"court","title":"Ruling","chunksDeleted":3,"chunksInserted":4}`, rec.Body.String())
}

func TestIngest_RejectsUnknownFields(t *testing.T) {
	ingest := &mockIngestService{}
	h := newTestServer(t, &Ports{Answer: &mockAnswerService{}, Ingest: ingest})

	rec := do(h, http.MethodPost, PathIngest, `{"source":"s","text":"t","extra":true}`, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, domain.CodeValidation, decodeError(t, rec).Code)
	assert.Empty(t, ingest.gotReq.Source)
}

func TestIngest_NotConfigured(t *testing.T) {
	h := newTestServer(t, &Ports{Answer: &mockAnswerService{}})

	rec := do(h, http.MethodPost, PathIngest, `{"source":"s","text":"t"}`, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, domain.CodeConfig, decodeError(t, rec).Code)
}

func TestEnvCheck(t *testing.T) {
	diag := &mockDiagnostics{report: driving.Diagnostics{
		VectorBackend: "qdrant", VectorTarget: "localhost:6334", Collection: "rag_documents", Ping: true,
	}}
	ports := &Ports{Answer: &mockAnswerService{}, Diagnostics: diag}

	t.Run("hidden without debug", func(t *testing.T) {
		rec := do(newTestServer(t, ports), http.MethodGet, PathEnvCheck, "", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, domain.CodeNotFound, decodeError(t, rec).Code)
	})

	t.Run("debug enabled", func(t *testing.T) {
		h := newTestServer(t, ports, WithDebugEndpoints(true))
		rec := do(h, http.MethodGet, PathEnvCheck, "", map[string]string{HeaderRequestID: "req-7"})

		require.Equal(t, http.StatusOK, rec.Code)
		var got map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, "req-7", got["requestId"])
		assert.Equal(t, "qdrant", got["vectorBackend"])
		assert.Equal(t, true, got["ping"])
	})
}

func TestUnknownRoute(t *testing.T) {
	h := newTestServer(t, &Ports{Answer: &mockAnswerService{}})

	rec := do(h, http.MethodGet, "/nope", "", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, domain.CodeNotFound, decodeError(t, rec).Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, StatusFor("SOMETHING_ELSE"))
	assert.Equal(t, http.StatusNotFound, StatusFor(domain.CodeNotFound))
}

func TestAnswer_UnconfiguredEmbedder(t *testing.T) {
	pipeline := services.NewPipelineOrchestrator(
		nil, services.NewCandidateRetriever(nil), nil, nil, domain.DefaultRunConfig(),
	)
	h := newTestServer(t, &Ports{Answer: pipeline})

	rec := do(h, http.MethodPost, PathAnswer, `{"query":"hola"}`, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, domain.CodeConfig, body.Code)
	assert.Equal(t, domain.ErrEmbeddingUnavailable.Error(), body.Detail)
}
