package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mmcdole/kinotv/internal/domain"
)

const tickInterval = 100 * time.Millisecond

// listenRowCmd waits for the next Resource of a row. Update re-issues it after
// every message so the row keeps following its stream.
func listenRowCmd(row int, ch <-chan domain.Resource) tea.Cmd {
	return func() tea.Msg {
		r, ok := <-ch
		if !ok {
			return RowUpdateMsg{Row: row, Closed: true}
		}
		return RowUpdateMsg{Row: row, Resource: r}
	}
}

// TickCmd returns a command that sends a tick after a delay
func TickCmd(delay time.Duration) tea.Cmd {
	return tea.Tick(delay, func(t time.Time) tea.Msg {
		return TickMsg{}
	})
}
