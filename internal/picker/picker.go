// Package picker is an interactive device chooser for --pick.
package picker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/buckleypaul/sideload/internal/device"
	"github.com/buckleypaul/sideload/internal/ui"
)

// ErrCancelled is returned when the operator closes the picker.
var ErrCancelled = errors.New("device selection cancelled")

const maxVisible = 12

type keyMap struct {
	Up     key.Binding
	Down   key.Binding
	Select key.Binding
	Close  key.Binding
}

var keys = keyMap{
	Up:     key.NewBinding(key.WithKeys("up", "ctrl+p"), key.WithHelp("↑", "up")),
	Down:   key.NewBinding(key.WithKeys("down", "ctrl+n"), key.WithHelp("↓", "down")),
	Select: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "deploy")),
	Close:  key.NewBinding(key.WithKeys("esc", "ctrl+c"), key.WithHelp("esc", "cancel")),
}

// Model is a filtered list of devices.
type Model struct {
	title    string
	items    []device.Record
	filtered []device.Record
	input    textinput.Model
	cursor   int
	width    int

	chosen    *device.Record
	cancelled bool
}

// New returns a picker over records in catalog order.
func New(title string, records []device.Record) Model {
	ti := textinput.New()
	ti.Placeholder = "type to filter..."
	ti.Prompt = "> "
	ti.Focus()
	ti.CharLimit = 128

	m := Model{title: title, items: records, input: ti, width: 72}
	m.filter()
	return m
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Close):
			m.cancelled = true
			return m, tea.Quit
		case key.Matches(msg, keys.Select):
			if len(m.filtered) > 0 {
				rec := m.filtered[m.cursor]
				m.chosen = &rec
				return m, tea.Quit
			}
			return m, nil
		case key.Matches(msg, keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}
			return m, nil
		case key.Matches(msg, keys.Down):
			if m.cursor < len(m.filtered)-1 {
				m.cursor++
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.filter()
	return m, cmd
}

func (m Model) View() string {
	if m.chosen != nil || m.cancelled {
		return ""
	}
	boxWidth := min(max(m.width-4, 40), 80)
	innerWidth := boxWidth - 4

	var b strings.Builder
	m.input.Width = innerWidth - 3
	b.WriteString(m.input.View())
	b.WriteString("\n\n")

	start, end := window(m.cursor, len(m.filtered), maxVisible)
	for i := start; i < end; i++ {
		rec := m.filtered[i]
		label := fmt.Sprintf("%s  %s", rec.Name, ui.ReachabilityBadge(rec.Reachability))
		if i == m.cursor {
			b.WriteString(ui.ActiveItemStyle.Render("▸ " + label))
		} else {
			b.WriteString(ui.ItemStyle.Render(label))
		}
		b.WriteString("\n")
	}
	if len(m.filtered) == 0 {
		b.WriteString(ui.DimStyle.Render("  No matches"))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(ui.DimStyle.Render(fmt.Sprintf("(%d/%d devices)  ", len(m.filtered), len(m.items))))
	b.WriteString(ui.HelpKey(keys.Select.Help().Key, keys.Select.Help().Desc))
	b.WriteString(" ")
	b.WriteString(ui.HelpKey(keys.Close.Help().Key, keys.Close.Help().Desc))

	return ui.Title(m.title) + "\n" + lipgloss.NewStyle().
		Width(boxWidth).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(ui.Primary).
		Padding(0, 1).
		Render(b.String())
}

// Chosen returns the selected record, if any.
func (m Model) Chosen() (device.Record, bool) {
	if m.chosen == nil {
		return device.Record{}, false
	}
	return *m.chosen, true
}

// filter keeps records whose name or identifiers fuzzy-match the query.
func (m *Model) filter() {
	query := strings.ToLower(m.input.Value())
	if query == "" {
		m.filtered = m.items
	} else {
		m.filtered = nil
		for _, rec := range m.items {
			hay := strings.ToLower(rec.Name + " " + rec.CoreID + " " + rec.LegacyID)
			if fuzzyMatch(hay, query) {
				m.filtered = append(m.filtered, rec)
			}
		}
	}
	m.cursor = min(m.cursor, len(m.filtered)-1)
	m.cursor = max(m.cursor, 0)
}

// window returns the visible slice bounds keeping cursor on screen.
func window(cursor, n, size int) (int, int) {
	size = min(size, n)
	start := 0
	if cursor >= size {
		start = cursor - size + 1
	}
	return start, min(start+size, n)
}

// fuzzyMatch checks if all characters in query appear in s in order.
func fuzzyMatch(s, query string) bool {
	qi := 0
	for i := 0; i < len(s) && qi < len(query); i++ {
		if s[i] == query[qi] {
			qi++
		}
	}
	return qi == len(query)
}

// Run shows the picker on out and returns the chosen record.
func Run(ctx context.Context, title string, records []device.Record, in io.Reader, out io.Writer) (device.Record, error) {
	if len(records) == 0 {
		return device.Record{}, device.ErrNoDeviceFound
	}
	opts := []tea.ProgramOption{tea.WithContext(ctx), tea.WithOutput(out)}
	if in != nil {
		opts = append(opts, tea.WithInput(in))
	}
	final, err := tea.NewProgram(New(title, records), opts...).Run()
	if ctx.Err() != nil {
		return device.Record{}, ctx.Err()
	}
	if err != nil {
		return device.Record{}, err
	}
	if rec, ok := final.(Model).Chosen(); ok {
		return rec, nil
	}
	return device.Record{}, ErrCancelled
}
