package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/matzehuels/certforge/pkg/observability"
)

// Progress styles
var (
	progressBarStyle = lipgloss.NewStyle().Foreground(colorCyan)
	progressDimStyle = lipgloss.NewStyle().Foreground(colorDim)
)

// progressBarWidth is the width of the bar in cells.
const progressBarWidth = 30

// recentRows is how many finished items the progress view lists.
const recentRows = 8

// =============================================================================
// BatchModel - Live batch progress
// =============================================================================

// batchDoneMsg is sent once every item has finished.
type batchDoneMsg struct{}

// BatchModel is the bubbletea model that shows a running batch.
type BatchModel struct {
	Title   string
	Total   int
	Results []batchResult
	Counts  map[observability.Outcome]int
	Done    bool

	// Aborted is set when the user quit before the batch finished.
	Aborted bool

	results <-chan batchResult
}

// newBatchModel creates a model that reads finished items from results
// until it is closed.
func newBatchModel(title string, total int, results <-chan batchResult) BatchModel {
	return BatchModel{
		Title:   title,
		Total:   total,
		Counts:  make(map[observability.Outcome]int),
		results: results,
	}
}

// waitForResult reads the next finished item.
func waitForResult(results <-chan batchResult) tea.Cmd {
	return func() tea.Msg {
		r, ok := <-results
		if !ok {
			return batchDoneMsg{}
		}
		return r
	}
}

func (m BatchModel) Init() tea.Cmd {
	return waitForResult(m.results)
}

func (m BatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.Aborted = !m.Done
			return m, tea.Quit
		}
	case batchResult:
		m.Results = append(m.Results, msg)
		m.Counts[msg.Outcome]++
		return m, waitForResult(m.results)
	case batchDoneMsg:
		m.Done = true
		return m, tea.Quit
	}
	return m, nil
}

func (m BatchModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render(m.Title))
	b.WriteString("\n\n")
	b.WriteString(renderBar(len(m.Results), m.Total))
	b.WriteString(progressDimStyle.Render(fmt.Sprintf("  %d/%d", len(m.Results), m.Total)))
	b.WriteString("\n\n")

	start := max(0, len(m.Results)-recentRows)
	rows := make([][]string, 0, recentRows)
	for _, r := range m.Results[start:] {
		rows = append(rows, []string{r.UserID, r.Number, string(r.Outcome), r.detail()})
	}
	if len(rows) > 0 {
		headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)
		recent := m.Results[start:]
		t := table.New().
			Border(lipgloss.RoundedBorder()).
			BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
			Headers("User", "Number", "Outcome", "Detail").
			Rows(rows...).
			StyleFunc(func(row, col int) lipgloss.Style {
				if row == -1 {
					return headerStyle
				}
				if row >= len(recent) || col != 2 {
					return progressDimStyle
				}
				return outcomeStyle(recent[row].Outcome)
			})
		b.WriteString(t.Render())
		b.WriteString("\n")
	}

	b.WriteString(summaryLine(m.Counts))
	b.WriteString("\n")
	if !m.Done {
		b.WriteString(progressDimStyle.Render("q quit"))
		b.WriteString("\n")
	}
	return b.String()
}

// =============================================================================
// Helpers
// =============================================================================

func renderBar(done, total int) string {
	filled := 0
	if total > 0 {
		filled = done * progressBarWidth / total
	}
	return progressBarStyle.Render(strings.Repeat("█", filled)) +
		progressDimStyle.Render(strings.Repeat("░", progressBarWidth-filled))
}

func outcomeStyle(o observability.Outcome) lipgloss.Style {
	switch o {
	case observability.OutcomeGenerated, observability.OutcomeDuplicate:
		return outcomeOKStyle
	case observability.OutcomeFailed:
		return outcomeFailStyle
	default:
		return outcomeOtherStyle
	}
}

// outcomeOrder fixes the order outcomes are summarized in.
var outcomeOrder = []observability.Outcome{
	observability.OutcomeGenerated,
	observability.OutcomeDuplicate,
	observability.OutcomeNotEligible,
	observability.OutcomeConflict,
	observability.OutcomeFailed,
}

func summaryLine(counts map[observability.Outcome]int) string {
	var parts []string
	for _, o := range outcomeOrder {
		if n := counts[o]; n > 0 {
			parts = append(parts, outcomeStyle(o).Render(fmt.Sprintf("%d %s", n, o)))
		}
	}
	if len(parts) == 0 {
		return progressDimStyle.Render("waiting...")
	}
	return strings.Join(parts, progressDimStyle.Render(" · "))
}
