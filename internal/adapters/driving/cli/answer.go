package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

var (
	answerSource  string
	answerTenant  string
	answerFilters []string
	answerJSON    bool
)

var answerCmd = &cobra.Command{
	Use:   "answer [query]",
	Short: "Answer a question from indexed documents",
	Long: `Embeds the question, retrieves and reranks candidate chunks, and generates
an answer grounded only in that evidence. The result carries citations, a
confidence score and a status (ok, low_confidence or no_context).`,
	Args: cobra.ExactArgs(1),
	RunE: runAnswer,
}

func init() {
	answerCmd.Flags().StringVar(&answerSource, "source", "", "restrict evidence to this source")
	answerCmd.Flags().StringVar(&answerTenant, "tenant", "", "restrict evidence to this tenant id")
	answerCmd.Flags().StringArrayVar(&answerFilters, "filter", nil, "payload filter as key=value (repeatable)")
	answerCmd.Flags().BoolVar(&answerJSON, "json", false, "output the answer as JSON")
	rootCmd.AddCommand(answerCmd)
}

func runAnswer(cmd *cobra.Command, args []string) error {
	filters, err := parseFilters(answerFilters)
	if err != nil {
		return err
	}
	if err := app.Init(cmd.Context()); err != nil {
		return err
	}

	answer, err := app.answer.Answer(cmd.Context(), domain.AnswerRequest{
		Query:    args[0],
		Source:   answerSource,
		TenantID: answerTenant,
		Filters:  filters,
	}, "cli")
	if err != nil {
		return fmt.Errorf("answer failed: %w", err)
	}

	if answerJSON {
		return printJSON(cmd, answer)
	}

	if isTerminal(cmd.OutOrStdout()) {
		cmd.Println(renderAnswerStyled(answer, newAnswerStyles(defaultTheme())))
		return nil
	}
	cmd.Print(renderAnswerPlain(answer))
	return nil
}

// parseFilters turns key=value pairs into payload filters. Integer and
// boolean values keep their type so they match numeric payload fields.
func parseFilters(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	filters := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: filter %q must be key=value", domain.ErrInvalidInput, pair)
		}
		filters[key] = parseFilterValue(strings.TrimSpace(value))
	}
	return filters, nil
}

func parseFilterValue(v string) any {
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	if b, err := strconv.ParseBool(v); err == nil && (v == "true" || v == "false") {
		return b
	}
	return v
}

func renderAnswerPlain(a *domain.Answer) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Status: %s (confidence %.2f)\n\n", a.Status, a.ConfidenceScore)
	b.WriteString(a.Answer)
	b.WriteString("\n")
	if len(a.Citations) > 0 {
		b.WriteString("\nSources:\n")
		for i, c := range a.Citations {
			fmt.Fprintf(&b, "  [%d] %s #%d\n", i+1, c.Source, c.ChunkIndex)
		}
	}
	return b.String()
}

func renderAnswerStyled(a *domain.Answer, s answerStyles) string {
	var b strings.Builder
	badge, ok := s.Status[a.Status]
	if !ok {
		badge = s.Muted
	}
	b.WriteString(badge.Render(string(a.Status)))
	b.WriteString(" ")
	b.WriteString(s.Muted.Render(fmt.Sprintf("confidence %.2f", a.ConfidenceScore)))
	b.WriteString("\n")
	b.WriteString(s.Answer.Render(a.Answer))
	b.WriteString("\n")
	if len(a.UsedChunks) > 0 {
		b.WriteString(s.Heading.Render("Sources"))
		b.WriteString("\n")
		for i, c := range a.UsedChunks {
			title := c.Title
			if title == "" {
				title = c.Source
			}
			fmt.Fprintf(&b, "  %s %s %s\n",
				s.Title.Render(fmt.Sprintf("[%d]", i+1)),
				title,
				s.Muted.Render(fmt.Sprintf("#%d score %.3f", c.ChunkIndex, c.Score)))
		}
	}
	return b.String()
}
