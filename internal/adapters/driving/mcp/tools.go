package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// AnswerInput is the input schema for the rag_answer tool.
type AnswerInput struct {
	Query    string         `json:"query" jsonschema:"the question to answer from indexed documents"`
	Source   string         `json:"source,omitempty" jsonschema:"restrict evidence to this source"`
	TenantID string         `json:"tenantId,omitempty" jsonschema:"restrict evidence to this tenant"`
	Filters  map[string]any `json:"filters,omitempty" jsonschema:"exact-match payload filters"`
}

// IngestInput is the input schema for the rag_ingest tool. Exactly one of
// Text and FilePath must be set.
type IngestInput struct {
	Source        string `json:"source,omitempty" jsonschema:"source name the chunks are stored under"`
	Title         string `json:"title,omitempty" jsonschema:"document title for text ingest"`
	Text          string `json:"text,omitempty" jsonschema:"raw text to index; replaces the source"`
	FilePath      string `json:"filePath,omitempty" jsonschema:"path of a PDF or text file to index"`
	DocID         string `json:"docId,omitempty" jsonschema:"document id for file ingest (default: file stem)"`
	Version       string `json:"version,omitempty" jsonschema:"document version label"`
	ReplaceSource bool   `json:"replaceSource,omitempty" jsonschema:"delete every point of the source first"`
	DryRun        bool   `json:"dryRun,omitempty" jsonschema:"segment only, without embedding or writing"`
}

// IngestOutput is the output schema for the rag_ingest tool. One field is
// set depending on the ingest mode.
type IngestOutput struct {
	Text *domain.IngestResponse `json:"text,omitempty"`
	File *domain.IngestReport   `json:"file,omitempty"`
}

// EvaluateInput is the input schema for the rag_evaluate tool.
type EvaluateInput struct {
	Questions     []string  `json:"questions" jsonschema:"questions to run"`
	Thresholds    []float64 `json:"thresholds,omitempty" jsonschema:"score thresholds to sweep"`
	RerankMode    string    `json:"rerankMode,omitempty" jsonschema:"cosine or llm"`
	CandidateTopK int       `json:"candidateTopK,omitempty" jsonschema:"candidates retrieved per question"`
	FinalK        int       `json:"finalK,omitempty" jsonschema:"chunks kept after rerank"`
	Source        string    `json:"source,omitempty" jsonschema:"source filter"`
	Version       string    `json:"version,omitempty" jsonschema:"version filter"`
	DryRun        bool      `json:"dryRun,omitempty" jsonschema:"skip answer generation"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "rag_answer",
		Description: "Answer a question using only indexed document evidence, with citations and a confidence status",
	}, s.handleAnswer)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "rag_ingest",
		Description: "Index raw text under a source, or a PDF or text file",
	}, s.handleIngest)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "rag_evaluate",
		Description: "Run questions across score thresholds and recommend one",
	}, s.handleEvaluate)
}

func (s *Server) handleAnswer(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AnswerInput,
) (*mcp.CallToolResult, domain.Answer, error) {
	answer, err := s.ports.Answer.Answer(ctx, domain.AnswerRequest{
		Query:    input.Query,
		Source:   input.Source,
		TenantID: input.TenantID,
		Filters:  input.Filters,
	}, "")
	if err != nil {
		return nil, domain.Answer{}, toolError(err)
	}
	return nil, *answer, nil
}

func (s *Server) handleIngest(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input IngestInput,
) (*mcp.CallToolResult, IngestOutput, error) {
	if s.ports.Ingest == nil {
		return nil, IngestOutput{}, fmt.Errorf("ingest: %w", ErrServiceUnavailable)
	}

	hasText := strings.TrimSpace(input.Text) != ""
	hasFile := strings.TrimSpace(input.FilePath) != ""
	if hasText == hasFile {
		return nil, IngestOutput{}, toolError(
			fmt.Errorf("%w: exactly one of text and filePath is required", domain.ErrInvalidInput))
	}

	if hasText {
		resp, err := s.ports.Ingest.IngestText(ctx, domain.IngestRequest{
			Source: input.Source,
			Title:  input.Title,
			Text:   input.Text,
			DryRun: input.DryRun,
		})
		if err != nil {
			return nil, IngestOutput{}, toolError(err)
		}
		return nil, IngestOutput{Text: resp}, nil
	}

	report, err := s.ports.Ingest.IngestFile(ctx, domain.IngestOptions{
		FilePath:      input.FilePath,
		DocID:         input.DocID,
		DocName:       input.Title,
		Source:        input.Source,
		Version:       input.Version,
		DryRun:        input.DryRun,
		ReplaceSource: input.ReplaceSource,
	})
	if err != nil {
		return nil, IngestOutput{}, toolError(err)
	}
	return nil, IngestOutput{File: report}, nil
}

func (s *Server) handleEvaluate(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input EvaluateInput,
) (*mcp.CallToolResult, domain.EvalResult, error) {
	if s.ports.Eval == nil {
		return nil, domain.EvalResult{}, fmt.Errorf("evaluate: %w", ErrServiceUnavailable)
	}

	result, err := s.ports.Eval.Run(ctx, input.Questions, domain.EvalOptions{
		Thresholds:    input.Thresholds,
		RerankMode:    domain.RerankMode(input.RerankMode),
		CandidateTopK: input.CandidateTopK,
		FinalK:        input.FinalK,
		Source:        input.Source,
		Version:       input.Version,
		DryRun:        input.DryRun,
	})
	if err != nil {
		return nil, domain.EvalResult{}, toolError(err)
	}
	return nil, *result, nil
}
