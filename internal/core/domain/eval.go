package domain

// EvalOptions configures a threshold sweep.
type EvalOptions struct {
	Thresholds    []float64
	RerankMode    RerankMode
	CandidateTopK int
	FinalK        int
	Source        string
	Version       string
	DryRun        bool
}

// DefaultEvalThresholds is the threshold grid swept when none is given.
func DefaultEvalThresholds() []float64 {
	return []float64{0.60, 0.65, 0.70, 0.72, 0.75, 0.78}
}

// EvalRow is the outcome of one question at one threshold.
type EvalRow struct {
	Question           string    `json:"question"`
	Threshold          float64   `json:"threshold"`
	Answerable         bool      `json:"answerable"`
	ThresholdTriggered bool      `json:"thresholdTriggered"`
	Top1Score          *float64  `json:"top1Score"`
	TopScores          []float64 `json:"topScores"`
	LatencyMs          LatencyMs `json:"latencyMs"`
	UsedChunkIDs       []string  `json:"usedChunkIds"`
	AnswerLength       *int      `json:"answerLength"`
	Suspicious         bool      `json:"suspicious"`
	Error              string    `json:"error,omitempty"`
}

// EvalSummary aggregates the rows of one threshold.
type EvalSummary struct {
	Threshold      float64 `json:"threshold"`
	Queries        int     `json:"queries"`
	AnswerableRate float64 `json:"answerableRate"`
	RejectedCount  int     `json:"rejectedCount"`
	SuspiciousRate float64 `json:"suspiciousRate"`
	AvgTop1Score   float64 `json:"avgTop1Score"`
	AvgLatencyMs   float64 `json:"avgLatencyMs"`
}

// EvalRecommendation names the threshold with the best utility.
type EvalRecommendation struct {
	Threshold float64 `json:"threshold"`
	Utility   float64 `json:"utility"`
	Reason    string  `json:"reason"`
}

// EvalResult is the output of a full sweep.
type EvalResult struct {
	Options        EvalOptions         `json:"-"`
	Rows           []EvalRow           `json:"rows"`
	Summaries      []EvalSummary       `json:"summary"`
	Recommendation *EvalRecommendation `json:"recommendation"`
}
