package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-rag/internal/core/services"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and configure the embedding provider, the LLM provider and the vector
index backend.

Environment variables (RAG_*, OPENAI_API_KEY, ...) override stored settings.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsEmbeddingCmd = &cobra.Command{
	Use:   "embedding",
	Short: "Configure embedding provider",
	Long:  `Configure the provider that embeds chunks and questions.`,
	RunE:  runSettingsEmbedding,
}

var settingsLLMCmd = &cobra.Command{
	Use:   "llm",
	Short: "Configure LLM provider",
	Long:  `Configure the provider that generates answers and judges candidates.`,
	RunE:  runSettingsLLM,
}

var settingsVectorCmd = &cobra.Command{
	Use:   "vector [backend] [target]",
	Short: "Configure vector index backend",
	Long: `Configure where chunks are stored and searched.

Backends and targets:
  qdrant    host:port of the Qdrant gRPC endpoint
  pgvector  PostgreSQL connection string (required)
  sqlite    database file path
  memory    no target, points are lost on exit

Without arguments the backend is chosen interactively.`,
	Args: cobra.MaximumNArgs(2),
	RunE: runSettingsVector,
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsEmbeddingCmd)
	settingsCmd.AddCommand(settingsLLMCmd)
	settingsCmd.AddCommand(settingsVectorCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	settingsService, err := app.Settings()
	if err != nil {
		return err
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cmd.Println("Current Settings")
	cmd.Println("================")
	cmd.Println()

	cmd.Println("[Embedding]")
	cmd.Printf("  Provider: %s\n", settings.Embedding.Provider.Description())
	cmd.Printf("  Model: %s\n", settings.Embedding.Model)
	cmd.Printf("  Dimensions: %d\n", settings.Embedding.Dimensions)
	if settings.Embedding.BaseURL != "" {
		cmd.Printf("  Base URL: %s\n", settings.Embedding.BaseURL)
	}
	if settings.Embedding.Provider.RequiresAPIKey() {
		cmd.Printf("  API Key: %s\n", describeKey(settings.Embedding.APIKey))
	}
	cmd.Printf("  Status: %s\n", configuredStatus(settings.Embedding.IsConfigured()))
	cmd.Println()

	cmd.Println("[LLM]")
	cmd.Printf("  Provider: %s\n", settings.LLM.Provider.Description())
	cmd.Printf("  Model: %s\n", settings.LLM.Model)
	if settings.LLM.BaseURL != "" {
		cmd.Printf("  Base URL: %s\n", settings.LLM.BaseURL)
	}
	if settings.LLM.Provider.RequiresAPIKey() {
		cmd.Printf("  API Key: %s\n", describeKey(settings.LLM.APIKey))
	}
	cmd.Printf("  Status: %s\n", configuredStatus(settings.LLM.IsConfigured()))
	cmd.Println()

	vs := settings.VectorStore
	cmd.Println("[Vector Index]")
	cmd.Printf("  Backend: %s\n", vs.Backend.Description())
	switch vs.Backend {
	case domain.VectorBackendQdrant:
		cmd.Printf("  URL: %s\n", vs.URL)
		if vs.APIKey != "" {
			cmd.Printf("  API Key: %s\n", domain.MaskAPIKey(vs.APIKey))
		}
	case domain.VectorBackendPgvector:
		cmd.Printf("  DSN: %s\n", services.RedactDSN(vs.DSN))
	case domain.VectorBackendSQLite:
		cmd.Printf("  Path: %s\n", vs.Path)
	}
	if vs.Backend != domain.VectorBackendSQLite && vs.Backend != domain.VectorBackendMemory {
		cmd.Printf("  Collection: %s\n", vs.Collection)
	}
	cmd.Printf("  Status: %s\n", configuredStatus(vs.IsConfigured()))
	cmd.Println()

	r := settings.Retrieval
	cmd.Println("[Retrieval]")
	cmd.Printf("  Candidates: %d, Final: %d\n", r.CandidateTopK, r.FinalK)
	cmd.Printf("  Threshold: %.2f\n", r.ScoreThreshold)
	cmd.Printf("  Rerank: %s (enabled: %t)\n", r.RerankMode, r.RerankEnabled)
	cmd.Println()

	cmd.Println("[Chunking]")
	cmd.Printf("  Size: %d, Overlap: %d, Min: %d\n",
		settings.Chunking.ChunkSize, settings.Chunking.Overlap, settings.Chunking.MinChunkSize)
	cmd.Println()

	if err := settingsService.Validate(); err != nil {
		cmd.Printf("Warning: %v\n", err)
		cmd.Println("Run 'sercha-rag settings embedding|llm|vector' to fix configuration issues.")
	} else {
		cmd.Println("Configuration is valid.")
	}

	return nil
}

func runSettingsEmbedding(cmd *cobra.Command, _ []string) error {
	settingsService, err := app.Settings()
	if err != nil {
		return err
	}
	return configureProvider(cmd, bufio.NewReader(cmd.InOrStdin()), embeddingFlow(settingsService))
}

func runSettingsLLM(cmd *cobra.Command, _ []string) error {
	settingsService, err := app.Settings()
	if err != nil {
		return err
	}
	return configureProvider(cmd, bufio.NewReader(cmd.InOrStdin()), llmFlow(settingsService))
}

func runSettingsVector(cmd *cobra.Command, args []string) error {
	settingsService, err := app.Settings()
	if err != nil {
		return err
	}

	var backend domain.VectorBackend
	var target string
	if len(args) > 0 {
		backend = domain.VectorBackend(strings.ToLower(args[0]))
		if len(args) > 1 {
			target = args[1]
		}
	} else {
		reader := bufio.NewReader(cmd.InOrStdin())
		cmd.Println("Select Vector Backend")
		backends := domain.AllVectorBackends()
		for i, b := range backends {
			cmd.Printf("  %d. %s\n", i+1, b.Description())
		}
		cmd.Print("\nEnter choice [1]: ")
		backend = backends[parseChoice(readLine(reader), len(backends), 1)-1]
		if backend != domain.VectorBackendMemory {
			cmd.Print("Enter target (blank keeps current): ")
			target = readLine(reader)
		}
	}

	if err := settingsService.SetVectorBackend(backend, target); err != nil {
		return fmt.Errorf("failed to configure vector backend: %w", err)
	}
	cmd.Printf("Vector backend configured: %s\n", backend.Description())
	return nil
}

// providerFlow describes one interactive provider configuration.
type providerFlow struct {
	label     string
	providers []domain.AIProvider
	defaults  map[domain.AIProvider]string
	set       func(domain.AIProvider, string, string) error
	probe     func(context.Context) error
}

func embeddingFlow(s driving.SettingsService) providerFlow {
	return providerFlow{
		label:     "Embedding",
		providers: domain.AllEmbeddingProviders(),
		defaults:  domain.DefaultEmbeddingModels(),
		set:       s.SetEmbeddingProvider,
		probe:     s.ProbeEmbedding,
	}
}

func llmFlow(s driving.SettingsService) providerFlow {
	return providerFlow{
		label:     "LLM",
		providers: domain.AllLLMProviders(),
		defaults:  domain.DefaultLLMModels(),
		set:       s.SetLLMProvider,
		probe:     s.ProbeLLM,
	}
}

func configureProvider(cmd *cobra.Command, reader *bufio.Reader, flow providerFlow) error {
	cmd.Printf("Select %s Provider\n", flow.label)
	for i, p := range flow.providers {
		cmd.Printf("  %d. %s\n", i+1, p.Description())
	}
	cmd.Print("\nEnter choice [1]: ")
	selected := flow.providers[parseChoice(readLine(reader), len(flow.providers), 1)-1]

	defaultModel := flow.defaults[selected]
	cmd.Printf("Enter model name [%s]: ", defaultModel)
	model := readLine(reader)
	if model == "" {
		model = defaultModel
	}

	var apiKey string
	if selected.RequiresAPIKey() {
		cmd.Print("Enter API key: ")
		apiKey = readPassword(cmd.InOrStdin(), reader)
		cmd.Println()
		if apiKey == "" {
			return errors.New("API key is required for this provider")
		}
	}

	if err := flow.set(selected, model, apiKey); err != nil {
		return fmt.Errorf("failed to configure %s provider: %w", flow.label, err)
	}

	cmd.Print("Checking provider... ")
	if err := flow.probe(cmd.Context()); err != nil {
		cmd.Printf("FAILED: %v\n", err)
		return fmt.Errorf("%s configuration validation failed: %w", flow.label, err)
	}
	cmd.Println("OK")

	cmd.Printf("%s provider configured: %s (%s)\n\n", flow.label, selected.Description(), model)
	return nil
}

func configuredStatus(ok bool) string {
	if ok {
		return "configured"
	}
	return "not configured"
}

func describeKey(key string) string {
	if key == "" {
		return "(not set)"
	}
	return domain.MaskAPIKey(key)
}

//nolint:errcheck // CLI helper, error ignored for UX
func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func parseChoice(input string, maxVal, defaultVal int) int {
	input = strings.TrimSpace(input)
	if input == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(input)
	if err != nil || val < 1 || val > maxVal {
		return defaultVal
	}
	return val
}

// readPassword reads without echo when in is a terminal.
func readPassword(in io.Reader, fallback *bufio.Reader) string {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		password, err := term.ReadPassword(int(f.Fd()))
		if err == nil {
			return strings.TrimSpace(string(password))
		}
	}
	return readLine(fallback)
}
