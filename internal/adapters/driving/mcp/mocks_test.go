package mcp

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// mockAnswerService is a mock implementation of driving.AnswerService.
type mockAnswerService struct {
	answer *domain.Answer
	err    error
	gotReq domain.AnswerRequest
}

func (m *mockAnswerService) Answer(_ context.Context, req domain.AnswerRequest, _ string) (*domain.Answer, error) {
	m.gotReq = req
	return m.answer, m.err
}

func (m *mockAnswerService) Evaluate(
	_ context.Context, _ string, _ map[string]any, _ *domain.RunOverrides,
) (*domain.Evaluation, error) {
	return nil, nil
}

// mockIngestService is a mock implementation of driving.IngestService.
type mockIngestService struct {
	resp    *domain.IngestResponse
	report  *domain.IngestReport
	err     error
	gotText *domain.IngestRequest
	gotFile *domain.IngestOptions
}

func (m *mockIngestService) IngestText(_ context.Context, req domain.IngestRequest) (*domain.IngestResponse, error) {
	m.gotText = &req
	return m.resp, m.err
}

func (m *mockIngestService) IngestFile(_ context.Context, opts domain.IngestOptions) (*domain.IngestReport, error) {
	m.gotFile = &opts
	return m.report, m.err
}

// mockEvalService is a mock implementation of driving.EvalService.
type mockEvalService struct {
	result       *domain.EvalResult
	err          error
	gotQuestions []string
	gotOpts      domain.EvalOptions
}

func (m *mockEvalService) Run(_ context.Context, questions []string, opts domain.EvalOptions) (*domain.EvalResult, error) {
	m.gotQuestions = questions
	m.gotOpts = opts
	return m.result, m.err
}

// mockSettingsService is a mock implementation of driving.SettingsService.
type mockSettingsService struct {
	settings *domain.AppSettings
	err      error
}

func (m *mockSettingsService) Get() (*domain.AppSettings, error) {
	return m.settings, m.err
}

func (m *mockSettingsService) Save(_ *domain.AppSettings) error {
	return nil
}

func (m *mockSettingsService) Validate() error {
	return nil
}

func (m *mockSettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

func (m *mockSettingsService) ProbeEmbedding(context.Context) error { return nil }

func (m *mockSettingsService) ProbeLLM(context.Context) error { return nil }

func (m *mockSettingsService) SetVectorBackend(_ domain.VectorBackend, _ string) error {
	return nil
}

func (m *mockSettingsService) SetEmbeddingProvider(_ domain.AIProvider, _, _ string) error {
	return nil
}

func (m *mockSettingsService) SetLLMProvider(_ domain.AIProvider, _, _ string) error {
	return nil
}
