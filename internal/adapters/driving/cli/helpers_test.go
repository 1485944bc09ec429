package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
)

// mockAnswerService records the last request.
type mockAnswerService struct {
	answer  *domain.Answer
	err     error
	lastReq domain.AnswerRequest
}

func (m *mockAnswerService) Answer(_ context.Context, req domain.AnswerRequest, _ string) (*domain.Answer, error) {
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	return m.answer, nil
}

func (m *mockAnswerService) Evaluate(_ context.Context, _ string, _ map[string]any, _ *domain.RunOverrides) (*domain.Evaluation, error) {
	return nil, m.err
}

type mockIngestService struct {
	textResp *domain.IngestResponse
	report   *domain.IngestReport
	err      error
	lastReq  domain.IngestRequest
	lastOpts domain.IngestOptions
}

func (m *mockIngestService) IngestText(_ context.Context, req domain.IngestRequest) (*domain.IngestResponse, error) {
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	return m.textResp, nil
}

func (m *mockIngestService) IngestFile(_ context.Context, opts domain.IngestOptions) (*domain.IngestReport, error) {
	m.lastOpts = opts
	if m.err != nil {
		return nil, m.err
	}
	return m.report, nil
}

type mockEvalService struct {
	result        *domain.EvalResult
	err           error
	lastQuestions []string
	lastOpts      domain.EvalOptions
}

func (m *mockEvalService) Run(_ context.Context, questions []string, opts domain.EvalOptions) (*domain.EvalResult, error) {
	m.lastQuestions = questions
	m.lastOpts = opts
	if m.err != nil {
		return nil, m.err
	}
	m.result.Options = opts
	return m.result, nil
}

type mockSettingsService struct {
	settings    domain.AppSettings
	validateErr error
	pingErr     error

	backend      domain.VectorBackend
	target       string
	provider     domain.AIProvider
	model        string
	apiKey       string
	setLLMCalled bool
}

func (m *mockSettingsService) Get() (*domain.AppSettings, error) {
	s := m.settings
	return &s, nil
}

func (m *mockSettingsService) Save(settings *domain.AppSettings) error {
	m.settings = *settings
	return nil
}

func (m *mockSettingsService) SetEmbeddingProvider(p domain.AIProvider, model, apiKey string) error {
	m.provider, m.model, m.apiKey = p, model, apiKey
	return nil
}

func (m *mockSettingsService) SetLLMProvider(p domain.AIProvider, model, apiKey string) error {
	m.provider, m.model, m.apiKey = p, model, apiKey
	m.setLLMCalled = true
	return nil
}

func (m *mockSettingsService) SetVectorBackend(b domain.VectorBackend, target string) error {
	m.backend, m.target = b, target
	return nil
}

func (m *mockSettingsService) Validate() error                { return m.validateErr }
func (m *mockSettingsService) GetDefaults() domain.AppSettings { return domain.DefaultAppSettings() }
func (m *mockSettingsService) ProbeEmbedding(context.Context) error { return m.pingErr }
func (m *mockSettingsService) ProbeLLM(context.Context) error       { return m.pingErr }

var _ driving.SettingsService = (*mockSettingsService)(nil)

// useTestContainer swaps app for c with both build steps already done.
func useTestContainer(t *testing.T, c *container) {
	t.Helper()
	c.settingsOnce.Do(func() {})
	c.servicesOnce.Do(func() {})
	if c.appSettings.Retrieval.CandidateTopK == 0 {
		c.appSettings = domain.DefaultAppSettings()
	}
	original := app
	app = c
	t.Cleanup(func() { app = original })
}

// executeCommand runs rootCmd with args and returns its output.
func executeCommand(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
	}()

	err := rootCmd.Execute()
	return buf.String(), err
}

// resetFlags restores every flag in the tree to its default.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}
