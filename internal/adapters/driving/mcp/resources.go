package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/services"
)

const (
	// uriScheme is the custom URI scheme for sercha-rag resources.
	uriScheme = "sercha-rag://"

	// SettingsURI addresses the effective settings resource.
	SettingsURI = uriScheme + "settings"
)

// settingsView is the resource body. Credentials are masked.
type settingsView struct {
	Embedding struct {
		Provider   string `json:"provider"`
		Model      string `json:"model"`
		Dimensions int    `json:"dimensions"`
		APIKey     string `json:"apiKey,omitempty"`
	} `json:"embedding"`
	LLM struct {
		Provider string `json:"provider"`
		Model    string `json:"model"`
		APIKey   string `json:"apiKey,omitempty"`
	} `json:"llm"`
	Vector struct {
		Backend    string `json:"backend"`
		Target     string `json:"target"`
		Collection string `json:"collection"`
		APIKey     string `json:"apiKey,omitempty"`
	} `json:"vector"`
	Chunking  domain.ChunkingSettings `json:"chunking"`
	Retrieval domain.ConfigSnapshot   `json:"retrieval"`
}

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         SettingsURI,
		Name:        "settings",
		Description: "Effective retrieval defaults and backend configuration (credentials masked)",
		MIMEType:    "application/json",
	}, s.handleSettingsResource)
}

// handleSettingsResource returns the effective settings.
func (s *Server) handleSettingsResource(
	_ context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Settings == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	settings, err := s.ports.Settings.Get()
	if err != nil {
		return nil, fmt.Errorf("getting settings: %w", err)
	}

	data, err := json.MarshalIndent(newSettingsView(settings), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling settings: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

func newSettingsView(s *domain.AppSettings) settingsView {
	var v settingsView
	v.Embedding.Provider = string(s.Embedding.Provider)
	v.Embedding.Model = s.Embedding.Model
	v.Embedding.Dimensions = s.Embedding.Dimensions
	v.Embedding.APIKey = maskIfSet(s.Embedding.APIKey)

	v.LLM.Provider = string(s.LLM.Provider)
	v.LLM.Model = s.LLM.Model
	v.LLM.APIKey = maskIfSet(s.LLM.APIKey)

	v.Vector.Backend = string(s.VectorStore.Backend)
	v.Vector.Target = vectorTarget(s.VectorStore)
	v.Vector.Collection = s.VectorStore.Collection
	v.Vector.APIKey = maskIfSet(s.VectorStore.APIKey)

	v.Chunking = s.Chunking
	v.Retrieval = s.Retrieval.Snapshot()
	return v
}

func vectorTarget(vs domain.VectorStoreSettings) string {
	switch vs.Backend {
	case domain.VectorBackendPgvector:
		return services.RedactDSN(vs.DSN)
	case domain.VectorBackendSQLite:
		return vs.Path
	default:
		return vs.URL
	}
}

func maskIfSet(key string) string {
	if key == "" {
		return ""
	}
	return domain.MaskAPIKey(key)
}
