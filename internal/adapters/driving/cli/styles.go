package cli

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// theme is the colour palette for terminal output.
type theme struct {
	Primary lipgloss.Color
	Muted   lipgloss.Color
	Success lipgloss.Color
	Warning lipgloss.Color
	Error   lipgloss.Color
	Border  lipgloss.Color
}

func defaultTheme() theme {
	return theme{
		Primary: lipgloss.Color("#7C3AED"), // Purple
		Muted:   lipgloss.Color("#6C7086"), // Medium gray
		Success: lipgloss.Color("#A6E3A1"), // Green
		Warning: lipgloss.Color("#F9E2AF"), // Yellow
		Error:   lipgloss.Color("#F38BA8"), // Red
		Border:  lipgloss.Color("#45475A"), // Border gray
	}
}

// answerStyles renders answers on a terminal.
type answerStyles struct {
	Title   lipgloss.Style
	Answer  lipgloss.Style
	Muted   lipgloss.Style
	Status  map[domain.AnswerStatus]lipgloss.Style
	Heading lipgloss.Style
}

func newAnswerStyles(t theme) answerStyles {
	badge := lipgloss.NewStyle().Bold(true).Padding(0, 1).Foreground(lipgloss.Color("#1E1E2E"))
	return answerStyles{
		Title: lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Answer: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(t.Border).
			Padding(0, 1),
		Muted:   lipgloss.NewStyle().Foreground(t.Muted),
		Heading: lipgloss.NewStyle().Bold(true),
		Status: map[domain.AnswerStatus]lipgloss.Style{
			domain.AnswerStatusOK:            badge.Background(t.Success),
			domain.AnswerStatusLowConfidence: badge.Background(t.Warning),
			domain.AnswerStatusNoContext:     badge.Background(t.Error),
		},
	}
}

// isTerminal reports whether w is a terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
