package domain

import (
	"fmt"
	"math"
)

// RerankMode selects how retrieved candidates are re-ordered.
type RerankMode string

// Available rerank modes.
const (
	// RerankModeCosine blends the index score with recomputed cosine similarity.
	RerankModeCosine RerankMode = "cosine"

	// RerankModeLLM asks a generative judge to rank the candidates.
	RerankModeLLM RerankMode = "llm"
)

// IsValid returns true if the rerank mode is recognised.
func (m RerankMode) IsValid() bool {
	return m == RerankModeCosine || m == RerankModeLLM
}

// String returns the string representation.
func (m RerankMode) String() string {
	return string(m)
}

// AllRerankModes returns all available rerank modes.
func AllRerankModes() []RerankMode {
	return []RerankMode{RerankModeCosine, RerankModeLLM}
}

// RunConfig is the resolved configuration of one pipeline run.
// An empty SourceFilter or VersionFilter means no filter.
type RunConfig struct {
	CandidateTopK  int
	FinalK         int
	ScoreThreshold float64
	RerankMode     RerankMode
	RerankEnabled  bool
	Temperature    float64
	SourceFilter   string
	VersionFilter  string
	DryRun         bool
}

// DefaultRunConfig returns the built-in retrieval defaults.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		CandidateTopK:  30,
		FinalK:         5,
		ScoreThreshold: 0.72,
		RerankMode:     RerankModeCosine,
		RerankEnabled:  true,
		Temperature:    0.3,
	}
}

// Validate checks the run configuration bounds.
func (c RunConfig) Validate() error {
	if c.CandidateTopK <= 0 {
		return fmt.Errorf("%w: candidateTopK must be > 0, got %d", ErrInvalidInput, c.CandidateTopK)
	}
	if c.FinalK <= 0 {
		return fmt.Errorf("%w: finalK must be > 0, got %d", ErrInvalidInput, c.FinalK)
	}
	if c.FinalK > c.CandidateTopK {
		return fmt.Errorf("%w: finalK (%d) must not exceed candidateTopK (%d)", ErrInvalidInput, c.FinalK, c.CandidateTopK)
	}
	if !c.RerankMode.IsValid() {
		return fmt.Errorf("%w: unknown rerank mode %q", ErrInvalidInput, c.RerankMode)
	}
	if math.IsNaN(c.Temperature) || c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("%w: temperature must be within [0, 2], got %v", ErrInvalidInput, c.Temperature)
	}
	if math.IsNaN(c.ScoreThreshold) {
		return fmt.Errorf("%w: score threshold is NaN", ErrInvalidInput)
	}
	return nil
}

// EffectiveRerankMode returns the mode actually applied: cosine whenever
// reranking is disabled.
func (c RunConfig) EffectiveRerankMode() RerankMode {
	if !c.RerankEnabled {
		return RerankModeCosine
	}
	return c.RerankMode
}

// IncludeEmbeddings reports whether candidate vectors should be fetched
// from the index. Only enabled cosine rerank consumes them.
func (c RunConfig) IncludeEmbeddings() bool {
	return c.RerankEnabled && c.RerankMode == RerankModeCosine
}

// RunOverrides carries optional per-call overrides. Each non-nil field
// replaces the corresponding default independently. A filter override
// pointing at "" clears that filter.
type RunOverrides struct {
	CandidateTopK  *int
	FinalK         *int
	ScoreThreshold *float64
	RerankMode     *RerankMode
	RerankEnabled  *bool
	Temperature    *float64
	SourceFilter   *string
	VersionFilter  *string
	DryRun         *bool
}

// Merge overlays o on c field by field and returns the result.
func (c RunConfig) Merge(o *RunOverrides) RunConfig {
	if o == nil {
		return c
	}
	if o.CandidateTopK != nil {
		c.CandidateTopK = *o.CandidateTopK
	}
	if o.FinalK != nil {
		c.FinalK = *o.FinalK
	}
	if o.ScoreThreshold != nil {
		c.ScoreThreshold = *o.ScoreThreshold
	}
	if o.RerankMode != nil {
		c.RerankMode = *o.RerankMode
	}
	if o.RerankEnabled != nil {
		c.RerankEnabled = *o.RerankEnabled
	}
	if o.Temperature != nil {
		c.Temperature = *o.Temperature
	}
	if o.SourceFilter != nil {
		c.SourceFilter = *o.SourceFilter
	}
	if o.VersionFilter != nil {
		c.VersionFilter = *o.VersionFilter
	}
	if o.DryRun != nil {
		c.DryRun = *o.DryRun
	}
	return c
}

// Snapshot returns the serialisable view of the configuration.
func (c RunConfig) Snapshot() ConfigSnapshot {
	s := ConfigSnapshot{
		CandidateTopK: c.CandidateTopK,
		FinalK:        c.FinalK,
		Threshold:     c.ScoreThreshold,
		RerankMode:    c.RerankMode,
		RerankEnabled: c.RerankEnabled,
		Temperature:   c.Temperature,
		DryRun:        c.DryRun,
	}
	if c.SourceFilter != "" {
		v := c.SourceFilter
		s.SourceFilter = &v
	}
	if c.VersionFilter != "" {
		v := c.VersionFilter
		s.VersionFilter = &v
	}
	return s
}

// ConfigSnapshot is the configuration actually applied to a run.
type ConfigSnapshot struct {
	CandidateTopK int        `json:"candidateTopK"`
	FinalK        int        `json:"finalK"`
	Threshold     float64    `json:"threshold"`
	RerankMode    RerankMode `json:"rerankMode"`
	RerankEnabled bool       `json:"rerankEnabled"`
	Temperature   float64    `json:"temperature"`
	SourceFilter  *string    `json:"sourceFilter"`
	VersionFilter *string    `json:"versionFilter"`
	DryRun        bool       `json:"dryRun"`
}

// LatencyMs holds per-stage wall-clock latencies in milliseconds.
type LatencyMs struct {
	Embed     float64 `json:"embed"`
	Retrieval float64 `json:"retrieval"`
	Rerank    float64 `json:"rerank"`
	Generate  float64 `json:"generate"`
	Total     float64 `json:"total"`
}

// PipelineMetrics describes one pipeline run. It is built once, at the
// end of the run, and never mutated afterwards.
type PipelineMetrics struct {
	Answerable         bool           `json:"answerable"`
	ThresholdTriggered bool           `json:"thresholdTriggered"`
	Top1Score          *float64       `json:"top1Score"`
	Top5Scores         []float64      `json:"top5Scores"`
	UsedChunkIDs       []string       `json:"usedChunkIds"`
	UsedChunksCount    int            `json:"usedChunksCount"`
	AnswerLength       *int           `json:"answerLength"`
	LatencyMs          LatencyMs      `json:"latencyMs"`
	Config             ConfigSnapshot `json:"config"`

	// RerankFallback is the reason the LLM judge was abandoned, empty when
	// no fallback happened.
	RerankFallback string `json:"rerankFallback,omitempty"`
}

// Citation identifies a chunk that backed an answer.
type Citation struct {
	Source     string `json:"source"`
	ChunkIndex int    `json:"chunkIndex"`
}

// UsedChunk is a chunk that was placed in the grounding prompt.
type UsedChunk struct {
	Source     string  `json:"source"`
	ChunkIndex int     `json:"chunkIndex"`
	ChunkText  string  `json:"chunkText"`
	Score      float64 `json:"score"`
	Title      string  `json:"title"`
}

// Evaluation is the full result of one pipeline run.
type Evaluation struct {
	Answer     string          `json:"answer"`
	Citations  []Citation      `json:"citations"`
	UsedChunks []UsedChunk     `json:"usedChunks"`
	Metrics    PipelineMetrics `json:"metrics"`
}

// BestScore returns the top score of the run, nil when nothing was retrieved.
func (e *Evaluation) BestScore() *float64 {
	return e.Metrics.Top1Score
}

// RoundTo rounds v to the given number of decimal places.
func RoundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
