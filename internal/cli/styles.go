package cli

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/julianstephens/tally/internal/repository"
)

var (
	HeaderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true)

	DimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	SuccessStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	WarningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Italic(true)

	DangerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	badgeStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Bold(true).
			Foreground(lipgloss.Color("231"))
)

var badgeColors = map[repository.SyncState]lipgloss.Color{
	repository.StateSynced:  lipgloss.Color("28"),
	repository.StatePending: lipgloss.Color("172"),
	repository.StateSyncing: lipgloss.Color("33"),
	repository.StateOffline: lipgloss.Color("240"),
	repository.StateError:   lipgloss.Color("160"),
}

// Badge renders a sync state as a colored label
func Badge(state repository.SyncState) string {
	color, ok := badgeColors[state]
	if !ok {
		color = lipgloss.Color("240")
	}
	return badgeStyle.Background(color).Render(string(state))
}

// Outcome describes where a write ended up
func Outcome(o repository.Outcome) string {
	if o == repository.Queued {
		return WarningStyle.Render("queued, will sync later")
	}
	return SuccessStyle.Render("saved")
}

// NewTable returns a borderless table with tally's header style
func NewTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.HiddenBorder()).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return HeaderStyle.PaddingRight(2)
			}
			return lipgloss.NewStyle().PaddingRight(2)
		})
}
