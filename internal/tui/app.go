// Package tui renders the live suggestion rows of every supported library.
package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sahilm/fuzzy"

	"github.com/mmcdole/kinotv/internal/domain"
	"github.com/mmcdole/kinotv/internal/tui/styles"
)

// RowSource streams the Resource of one library row
type RowSource interface {
	Suggestions(ctx context.Context, libraryID string, kind domain.ItemKind) <-chan domain.Resource
}

// Row is one library and the latest state of its suggestions
type Row struct {
	Library  domain.Library
	Kind     domain.ItemKind
	Resource domain.Resource
	Received bool

	ch <-chan domain.Resource
}

// Stream returns the channel the row follows.
func (r Row) Stream() <-chan domain.Resource { return r.ch }

// Model is the Bubble Tea model of the suggestions view
type Model struct {
	Rows []Row

	keys     KeyMap
	help     help.Model
	showHelp bool

	cursor int // index into visible()

	filterInput  textinput.Model
	filterActive bool
	filteredIdx  []int // indices into Rows; nil when no filter applies

	frame  int
	width  int
	height int
}

// NewModel subscribes one row per supported library. Streams end when ctx is done.
func NewModel(ctx context.Context, source RowSource, libraries []domain.Library) Model {
	ti := textinput.New()
	ti.Placeholder = "type to filter..."
	ti.Prompt = "/ "
	ti.PromptStyle = styles.FilterPromptStyle
	ti.TextStyle = styles.FilterStyle

	m := Model{
		keys:        DefaultKeyMap(),
		help:        help.New(),
		filterInput: ti,
	}
	for _, lib := range libraries {
		kind, ok := lib.Kind()
		if !ok {
			continue
		}
		m.Rows = append(m.Rows, Row{
			Library: lib,
			Kind:    kind,
			ch:      source.Suggestions(ctx, lib.ID, kind),
		})
	}
	return m
}

// Init starts listening on every row
func (m Model) Init() tea.Cmd {
	cmds := make([]tea.Cmd, 0, len(m.Rows)+1)
	for i, row := range m.Rows {
		cmds = append(cmds, listenRowCmd(i, row.ch))
	}
	cmds = append(cmds, TickCmd(tickInterval))
	return tea.Batch(cmds...)
}

// Update handles all messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case RowUpdateMsg:
		if msg.Row < 0 || msg.Row >= len(m.Rows) {
			return m, nil
		}
		if msg.Closed {
			return m, nil
		}
		row := &m.Rows[msg.Row]
		row.Resource = msg.Resource
		row.Received = true
		return m, listenRowCmd(msg.Row, row.ch)

	case TickMsg:
		m.frame++
		return m, TickCmd(tickInterval)

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)
	}
	return m, nil
}

func (m Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.filterActive && m.filterInput.Focused() {
		switch msg.String() {
		case "esc":
			m.clearFilter()
			return m, nil
		case "enter":
			// Keep the results, hand keys back to navigation
			m.filterInput.Blur()
			return m, nil
		case "backspace":
			if m.filterInput.Value() == "" {
				m.clearFilter()
				return m, nil
			}
		}

		var cmd tea.Cmd
		m.filterInput, cmd = m.filterInput.Update(msg)
		m.applyFilter()
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Filter):
		m.filterActive = true
		m.filterInput.Focus()
		return m, textinput.Blink
	case key.Matches(msg, m.keys.Escape):
		m.clearFilter()
	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		m.help.ShowAll = m.showHelp
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.visible())-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Home):
		m.cursor = 0
	case key.Matches(msg, m.keys.End):
		m.cursor = max(0, len(m.visible())-1)
	}
	return m, nil
}

// visible returns the indices of the rows shown, in display order.
func (m Model) visible() []int {
	if m.filteredIdx != nil {
		return m.filteredIdx
	}
	idx := make([]int, len(m.Rows))
	for i := range m.Rows {
		idx[i] = i
	}
	return idx
}

// Selected returns the row under the cursor.
func (m Model) Selected() (Row, bool) {
	vis := m.visible()
	if m.cursor < 0 || m.cursor >= len(vis) {
		return Row{}, false
	}
	return m.Rows[vis[m.cursor]], true
}

// SetFilter applies query as the library name filter.
func (m *Model) SetFilter(query string) {
	m.filterActive = true
	m.filterInput.SetValue(query)
	m.applyFilter()
}

func (m *Model) applyFilter() {
	query := m.filterInput.Value()
	if query == "" {
		m.filteredIdx = nil
		m.cursor = 0
		return
	}

	names := make([]string, len(m.Rows))
	for i, row := range m.Rows {
		names[i] = strings.ToLower(row.Library.Name)
	}

	matches := fuzzy.Find(strings.ToLower(query), names)
	m.filteredIdx = make([]int, len(matches))
	for i, match := range matches {
		m.filteredIdx[i] = match.Index
	}
	m.cursor = 0
}

func (m *Model) clearFilter() {
	m.filterActive = false
	m.filterInput.Reset()
	m.filterInput.Blur()
	m.filteredIdx = nil
	m.cursor = 0
}

// View renders the rows
func (m Model) View() string {
	width := m.width
	if width <= 0 {
		width = 80
	}

	var b strings.Builder
	b.WriteString(styles.HeaderStyle.Render("Suggestions"))
	b.WriteString("\n\n")

	if m.filterActive {
		b.WriteString(m.filterInput.View())
		b.WriteString("\n\n")
	}

	vis := m.visible()
	switch {
	case len(m.Rows) == 0:
		b.WriteString(styles.DimStyle.Render("No movie or show libraries"))
		b.WriteString("\n")
	case len(vis) == 0:
		b.WriteString(styles.DimStyle.Render("No libraries match"))
		b.WriteString("\n")
	}

	for i, idx := range vis {
		style := styles.RowStyle
		if i == m.cursor {
			style = styles.SelectedRowStyle
		}
		b.WriteString(style.Render(m.renderRow(m.Rows[idx], width-4)))
		b.WriteString("\n")
	}

	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m Model) renderRow(row Row, width int) string {
	title := styles.TitleStyle.Render(row.Library.Name) + " " +
		styles.DimStyle.Render(kindLabel(row.Kind))

	var body string
	switch {
	case !row.Received:
		body = styles.DimStyle.Render("…")
	case row.Resource.State == domain.ResourceLoading:
		frame := styles.SpinnerFrames[m.frame%len(styles.SpinnerFrames)]
		body = styles.SpinnerStyle.Render(frame) + " " + styles.SubtitleStyle.Render("Refreshing suggestions")
	case row.Resource.State == domain.ResourceSuccess:
		body = renderItems(row.Resource.Items, width)
	default:
		body = styles.DimStyle.Render("nothing yet")
	}
	return lipgloss.JoinVertical(lipgloss.Left, title, body)
}

func renderItems(items []*domain.MediaItem, width int) string {
	titles := make([]string, len(items))
	for i, item := range items {
		titles[i] = item.Title
	}
	line := strings.Join(titles, " · ")
	return styles.ItemStyle.Render(styles.Truncate(line, width))
}

// Snapshot renders rows as plain text, one library per block.
func Snapshot(rows []Row) string {
	var b strings.Builder
	for _, row := range rows {
		b.WriteString(row.Library.Name)
		b.WriteString(" (")
		b.WriteString(kindLabel(row.Kind))
		b.WriteString(")\n")
		switch row.Resource.State {
		case domain.ResourceLoading:
			b.WriteString("  refreshing...\n")
		case domain.ResourceSuccess:
			for _, item := range row.Resource.Items {
				b.WriteString("  ")
				b.WriteString(item.Title)
				if d := item.Description(); d != "" {
					b.WriteString(" - ")
					b.WriteString(d)
				}
				b.WriteString("\n")
			}
		default:
			b.WriteString("  nothing yet\n")
		}
	}
	return b.String()
}

func kindLabel(k domain.ItemKind) string {
	return strings.ToLower(string(k))
}
