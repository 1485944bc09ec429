package cli

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// evalReportPaths are the files written for one sweep.
type evalReportPaths struct {
	JSON string
	CSV  string
}

// evalReportConfig is the effective sweep configuration recorded in a report.
type evalReportConfig struct {
	Thresholds    []float64         `json:"thresholds"`
	RerankMode    domain.RerankMode `json:"rerankMode"`
	CandidateTopK int               `json:"candidateTopK"`
	FinalK        int               `json:"finalK"`
	SourceFilter  *string           `json:"sourceFilter"`
	VersionFilter *string           `json:"versionFilter"`
	DryRun        bool              `json:"dryRun"`
}

type evalReport struct {
	GeneratedAt    string                     `json:"generatedAt"`
	Config         evalReportConfig           `json:"config"`
	Summary        []domain.EvalSummary       `json:"summary"`
	Recommendation *domain.EvalRecommendation `json:"recommendation"`
	Rows           []domain.EvalRow           `json:"rows"`
}

var evalCSVHeader = []string{
	"query", "threshold", "rerankMode", "candidateTopK", "finalK",
	"sourceFilter", "versionFilter", "answerable", "thresholdTriggered",
	"top1Score", "top5Scores", "latencyTotalMs", "latencyRetrievalMs",
	"latencyRerankMs", "latencyGenerateMs", "usedChunksCount", "usedChunkIds",
	"answerLength", "suspicious", "error",
}

// effectiveEvalConfig fills unset sweep options from the run defaults.
func effectiveEvalConfig(opts domain.EvalOptions, defaults domain.RunConfig) evalReportConfig {
	cfg := evalReportConfig{
		Thresholds:    opts.Thresholds,
		RerankMode:    opts.RerankMode,
		CandidateTopK: opts.CandidateTopK,
		FinalK:        opts.FinalK,
		DryRun:        opts.DryRun,
	}
	if cfg.RerankMode == "" {
		cfg.RerankMode = defaults.RerankMode
	}
	if cfg.CandidateTopK <= 0 {
		cfg.CandidateTopK = defaults.CandidateTopK
	}
	if cfg.FinalK <= 0 {
		cfg.FinalK = defaults.FinalK
	}
	if opts.Source != "" {
		cfg.SourceFilter = &opts.Source
	}
	if opts.Version != "" {
		cfg.VersionFilter = &opts.Version
	}
	return cfg
}

// writeEvalReport writes rag_eval_<timestamp>.json and .csv into dir.
func writeEvalReport(dir string, r *domain.EvalResult, defaults domain.RunConfig, now time.Time) (evalReportPaths, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return evalReportPaths{}, fmt.Errorf("failed to create report directory: %w", err)
	}
	base := filepath.Join(dir, "rag_eval_"+now.Format("20060102_150405"))
	paths := evalReportPaths{JSON: base + ".json", CSV: base + ".csv"}
	cfg := effectiveEvalConfig(r.Options, defaults)

	report := evalReport{
		GeneratedAt:    now.UTC().Format(time.RFC3339),
		Config:         cfg,
		Summary:        r.Summaries,
		Recommendation: r.Recommendation,
		Rows:           r.Rows,
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return evalReportPaths{}, fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.WriteFile(paths.JSON, data, 0o644); err != nil {
		return evalReportPaths{}, fmt.Errorf("failed to write report: %w", err)
	}

	if err := writeEvalCSV(paths.CSV, r.Rows, cfg); err != nil {
		return evalReportPaths{}, err
	}
	return paths, nil
}

func writeEvalCSV(path string, rows []domain.EvalRow, cfg evalReportConfig) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create csv: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close csv: %w", cerr)
		}
	}()

	w := csv.NewWriter(f)
	if err := w.Write(evalCSVHeader); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	for _, row := range rows {
		if err := w.Write(evalCSVRecord(row, cfg)); err != nil {
			return fmt.Errorf("failed to write csv: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	return nil
}

func evalCSVRecord(row domain.EvalRow, cfg evalReportConfig) []string {
	top5 := row.TopScores
	if len(top5) > 5 {
		top5 = top5[:5]
	}
	return []string{
		row.Question,
		formatFloat(row.Threshold),
		string(cfg.RerankMode),
		strconv.Itoa(cfg.CandidateTopK),
		strconv.Itoa(cfg.FinalK),
		derefString(cfg.SourceFilter),
		derefString(cfg.VersionFilter),
		strconv.FormatBool(row.Answerable),
		strconv.FormatBool(row.ThresholdTriggered),
		formatOptionalFloat(row.Top1Score),
		mustJSON(nonNilFloats(top5)),
		formatFloat(row.LatencyMs.Total),
		formatFloat(row.LatencyMs.Retrieval),
		formatFloat(row.LatencyMs.Rerank),
		formatFloat(row.LatencyMs.Generate),
		strconv.Itoa(len(row.UsedChunkIDs)),
		mustJSON(nonNilStrings(row.UsedChunkIDs)),
		formatOptionalInt(row.AnswerLength),
		strconv.FormatBool(row.Suspicious),
		row.Error,
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatOptionalFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

func formatOptionalInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nonNilFloats(v []float64) []float64 {
	if v == nil {
		return []float64{}
	}
	return v
}

func nonNilStrings(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func mustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}
