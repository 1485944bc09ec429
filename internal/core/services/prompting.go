package services

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// NoInfoMessage is the exact reply the model gives when no evidence supports an answer.
const NoInfoMessage = driven.NoInfoMessage

// NoSupportMessage is returned when retrieval finds no candidates at all.
const NoSupportMessage = "I could not find enough support in the document to answer with confidence."

// DryRunAnswer replaces the generated answer when generation is skipped.
const DryRunAnswer = "DRY_RUN: generation skipped"

const evidenceSeparator = "\n\n---\n\n"

var (
	defaultRAGSystemPrompt, _    = driven.DefaultPrompt(driven.PromptRAGSystem)
	defaultRAGUserPrompt, _      = driven.DefaultPrompt(driven.PromptRAGUser)
	defaultRerankSystemPrompt, _ = driven.DefaultPrompt(driven.PromptRerankSystem)
)

// loadPrompt loads a prompt from the store, falling back to the default if unavailable.
func loadPrompt(store driven.PromptStore, name, fallback string) string {
	if store == nil {
		return fallback
	}
	prompt, err := store.Load(name)
	if err != nil || strings.TrimSpace(prompt) == "" {
		return fallback
	}
	return prompt
}

// BuildEvidence renders the evidence blocks placed in the grounding prompt.
func BuildEvidence(chunks []domain.ChunkCandidate) string {
	blocks := make([]string, 0, len(chunks))
	for i, c := range chunks {
		blocks = append(blocks, fmt.Sprintf("[E%d] source=%s chunk=%d page=%s-%s\n%s",
			i+1, c.Source, c.ChunkIndex, pageLabel(c.PageStart), pageLabel(c.PageEnd), c.Text))
	}
	return strings.Join(blocks, evidenceSeparator)
}

// BuildGroundedPrompt returns the system and user messages for answer generation.
func BuildGroundedPrompt(store driven.PromptStore, query string, chunks []domain.ChunkCandidate) (string, string) {
	system := loadPrompt(store, driven.PromptRAGSystem, defaultRAGSystemPrompt)
	user := strings.NewReplacer(
		driven.PlaceholderQuestion, query,
		driven.PlaceholderContext, BuildEvidence(chunks),
	).Replace(loadPrompt(store, driven.PromptRAGUser, defaultRAGUserPrompt))
	return system, user
}

// IsNoInfoAnswer reports whether answer is the no-information reply,
// ignoring case, whitespace runs and a trailing period.
func IsNoInfoAnswer(answer string) bool {
	normalized := strings.ToLower(strings.Join(strings.Fields(answer), " "))
	return strings.TrimRight(normalized, ".") == strings.ToLower(NoInfoMessage)
}

func pageLabel(page *int) string {
	if page == nil {
		return "n/a"
	}
	return strconv.Itoa(*page)
}
