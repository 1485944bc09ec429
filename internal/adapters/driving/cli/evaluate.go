package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

var (
	evalQuestions  string
	evalThresholds string
	evalMode       string
	evalTopK       int
	evalFinalK     int
	evalSource     string
	evalVersion    string
	evalDryRun     bool
	evalOutDir     string
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Sweep score thresholds over a question set",
	Long: `Runs every question through the answer pipeline once per threshold and
writes a JSON report and a CSV of per-question rows to --out-dir. The report
recommends the threshold with the best balance of answerable rate, top score
and suspicious answers.

The questions file is a YAML or JSON list of strings.`,
	Args: cobra.NoArgs,
	RunE: runEvaluate,
}

func init() {
	f := evaluateCmd.Flags()
	f.StringVarP(&evalQuestions, "questions", "q", "", "path to the questions file (required)")
	f.StringVar(&evalThresholds, "thresholds", "", "comma-separated thresholds (default 0.60,0.65,0.70,0.72,0.75,0.78)")
	f.StringVar(&evalMode, "mode", "", "rerank mode: cosine or llm")
	f.IntVar(&evalTopK, "topk", 0, "candidates fetched per question")
	f.IntVar(&evalFinalK, "final-k", 0, "chunks passed to generation")
	f.StringVar(&evalSource, "source", "", "restrict evidence to this source")
	f.StringVar(&evalVersion, "version", "", "restrict evidence to this version")
	f.BoolVar(&evalDryRun, "dry-run", false, "skip generation")
	f.StringVar(&evalOutDir, "out-dir", ".", "directory for the report files")
	_ = evaluateCmd.MarkFlagRequired("questions")
	rootCmd.AddCommand(evaluateCmd)
}

func runEvaluate(cmd *cobra.Command, _ []string) error {
	questions, err := loadQuestions(evalQuestions)
	if err != nil {
		return err
	}
	thresholds, err := parseThresholds(evalThresholds)
	if err != nil {
		return err
	}
	mode := domain.RerankMode(strings.ToLower(strings.TrimSpace(evalMode)))
	if mode != "" && !mode.IsValid() {
		return fmt.Errorf("%w: unknown rerank mode %q", domain.ErrInvalidInput, evalMode)
	}

	if err := app.Init(cmd.Context()); err != nil {
		return err
	}

	result, err := app.eval.Run(cmd.Context(), questions, domain.EvalOptions{
		Thresholds:    thresholds,
		RerankMode:    mode,
		CandidateTopK: evalTopK,
		FinalK:        evalFinalK,
		Source:        evalSource,
		Version:       evalVersion,
		DryRun:        evalDryRun,
	})
	if err != nil {
		return fmt.Errorf("evaluation failed: %w", err)
	}

	paths, err := writeEvalReport(evalOutDir, result, app.appSettings.Retrieval, time.Now())
	if err != nil {
		return err
	}

	printEvalSummary(cmd, result)
	cmd.Printf("\nReport: %s\n", paths.JSON)
	cmd.Printf("Rows:   %s\n", paths.CSV)
	return nil
}

// loadQuestions reads a YAML or JSON list of question strings.
func loadQuestions(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read questions: %w", err)
	}
	var questions []string
	if err := yaml.Unmarshal(data, &questions); err != nil {
		return nil, fmt.Errorf("%w: questions file must be a list of strings: %v", domain.ErrInvalidInput, err)
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("%w: questions file is empty", domain.ErrInvalidInput)
	}
	return questions, nil
}

func parseThresholds(raw string) ([]float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid threshold %q", domain.ErrInvalidInput, p)
		}
		if v < 0 || v > 1 {
			return nil, fmt.Errorf("%w: threshold %v must be within [0, 1]", domain.ErrInvalidInput, v)
		}
		out = append(out, v)
	}
	return out, nil
}

func printEvalSummary(cmd *cobra.Command, r *domain.EvalResult) {
	cmd.Println("THRESHOLD  QUERIES  ANSWERABLE  REJECTED  SUSPICIOUS  AVG TOP1  AVG LATENCY")
	for _, s := range r.Summaries {
		cmd.Printf("%-9.2f  %-7d  %-10.1f  %-8d  %-10.1f  %-8.3f  %.0fms\n",
			s.Threshold, s.Queries, s.AnswerableRate*100, s.RejectedCount,
			s.SuspiciousRate*100, s.AvgTop1Score, s.AvgLatencyMs)
	}
	if r.Recommendation != nil {
		cmd.Printf("\nRecommended threshold: %.2f (utility %.3f)\n",
			r.Recommendation.Threshold, r.Recommendation.Utility)
		if r.Recommendation.Reason != "" {
			cmd.Printf("  %s\n", r.Recommendation.Reason)
		}
	}
}
