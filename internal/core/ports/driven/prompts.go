package driven

// PromptStore provides access to LLM prompt templates.
// Implementations may load prompts from files, embed them in the binary,
// or fetch them from a remote configuration service.
type PromptStore interface {
	// Load returns the prompt template for the given name.
	// If the prompt is not found, implementations should return a sensible
	// default or an error, depending on whether the prompt is required.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	// This is useful when prompts may have been edited on disk.
	Reload()
}

// Well-known prompt names used throughout the application.
// These constants define the contract between prompt consumers and providers.
const (
	// PromptRAGSystem is the system prompt for grounded answer generation.
	// This prompt has no format placeholders.
	PromptRAGSystem = "rag_system"

	// PromptRAGUser is the user prompt for grounded answer generation.
	// It expects the PlaceholderQuestion and PlaceholderContext placeholders.
	PromptRAGUser = "rag_user"

	// PromptRerankSystem is the system prompt for the rerank judge.
	// This prompt has no format placeholders.
	PromptRerankSystem = "rerank_system"
)

// Named placeholders substituted into PromptRAGUser. Any other text,
// including a literal %, is passed through unchanged.
const (
	PlaceholderQuestion = "{question}"
	PlaceholderContext  = "{context}"
)

// NoInfoMessage is the exact reply the model gives when no evidence supports an answer.
const NoInfoMessage = "I do not have enough information in the document"

//nolint:lll // Prompt content is intentionally long and should not be wrapped.
var defaultPrompts = map[string]string{
	PromptRAGSystem: `You are a legal assistant. Answer exclusively with evidence from the context.
Do not invent facts or cite information outside the fragments.
Only reply with "` + NoInfoMessage + `" when no fragment provides useful evidence for the question.
If the evidence is partial, answer with what is supported and briefly state the limit.
If there is not enough evidence reply exactly: "` + NoInfoMessage + `".
Always write in clear language.`,

	PromptRAGUser: `Question: ` + PlaceholderQuestion + `

Verifiable context:
` + PlaceholderContext + `

Give a brief, clear answer without mentioning sources, chunk indexes or technical references.`,

	PromptRerankSystem: `You are a reranker. Order the fragments by relevance to the question.
Reply ONLY with valid JSON: {"ranking": [{"index": 0, "score": 0.93}]}.`,
}

// DefaultPrompt returns the built-in template for name. Stores fall back to
// it when a template is missing or blank.
func DefaultPrompt(name string) (string, bool) {
	p, ok := defaultPrompts[name]
	return p, ok
}

// DefaultPromptNames lists the templates that have a built-in default.
func DefaultPromptNames() []string {
	return []string{PromptRAGSystem, PromptRAGUser, PromptRerankSystem}
}
