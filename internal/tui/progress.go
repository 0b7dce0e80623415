package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

const marqueeGap = "   "

// Row is one browser's line in the resolution table.
type Row struct {
	Browser        string
	Driver         string
	BrowserVersion string
	DriverVersion  string
	Status         string
	Path           string
}

// merge overwrites the fields of r that are set in u.
func (r Row) merge(u Row) Row {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&r.Driver, u.Driver)
	set(&r.BrowserVersion, u.BrowserVersion)
	set(&r.DriverVersion, u.DriverVersion)
	set(&r.Status, u.Status)
	set(&r.Path, u.Path)
	return r
}

type column struct {
	header string
	width  int
	value  func(Row) string
}

var columns = []column{
	{"BROWSER", 8, func(r Row) string { return r.Browser }},
	{"DRIVER", 12, func(r Row) string { return r.Driver }},
	{"BROWSER VERSION", 15, func(r Row) string { return NonEmptyOrDash(r.BrowserVersion) }},
	{"DRIVER VERSION", 15, func(r Row) string { return NonEmptyOrDash(r.DriverVersion) }},
	{"STATUS", 10, func(r Row) string { return r.Status }},
	{"PATH", 48, func(r Row) string { return NonEmptyOrDash(r.Path) }},
}

const statusColumn = 4

// Model is a bubbletea model that renders one row per browser while drivers
// are resolved concurrently.
type Model struct {
	rows    []Row
	index   map[string]int
	spinner spinner.Model
	done    bool
	err     error

	// tick advances the marquee of long paths.
	tick int
}

// NewModel creates an empty resolution table.
func NewModel() Model {
	return Model{
		index:   make(map[string]int),
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(SpinnerStyle)),
	}
}

// AddRow pre-populates a row. Call this before the program starts.
func (m *Model) AddRow(r Row) {
	if r.Status == "" {
		r.Status = StatusPending
	}
	m.index[r.Browser] = len(m.rows)
	m.rows = append(m.rows, r)
}

// Init satisfies the tea.Model interface.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update satisfies the tea.Model interface.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		m.tick++
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case RowUpdateMsg:
		if idx, ok := m.index[msg.Row.Browser]; ok {
			m.rows[idx] = m.rows[idx].merge(msg.Row)
		}
		return m, nil

	case WorkDoneMsg:
		m.done = true
		return m, tea.Quit

	case ErrorMsg:
		m.err = msg.Err
		m.done = true
		return m, tea.Quit

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.done = true
			return m, tea.Quit
		}
	}
	return m, nil
}

// View satisfies the tea.Model interface.
func (m Model) View() string {
	if m.done && m.err != nil {
		return fmt.Sprintf("Error: %v\n", m.err)
	}

	widths := make([]int, len(columns))
	for i, col := range columns {
		widths[i] = max(len(col.header), col.width)
	}

	var b strings.Builder

	headerParts := make([]string, len(columns))
	for i, col := range columns {
		headerParts[i] = HeaderStyle.Render(pad(col.header, widths[i]))
	}
	b.WriteString(strings.Join(headerParts, "  "))
	b.WriteByte('\n')

	for _, row := range m.rows {
		parts := make([]string, len(columns))
		for i, col := range columns {
			val := col.value(row)
			if !m.done && len(strings.TrimSpace(val)) > widths[i] {
				val = marqueeText(val, widths[i], m.tick)
			} else {
				val = TruncateWithEllipsis(val, widths[i])
			}
			if i == statusColumn {
				parts[i] = StatusStyle(val).Render(pad(val, widths[i]))
			} else {
				parts[i] = pad(val, widths[i])
			}
		}
		b.WriteString(strings.TrimRight(strings.Join(parts, "  "), " "))
		b.WriteByte('\n')
	}

	if !m.done {
		finished, total := m.progressCounts()
		fmt.Fprintf(&b, "\n%s Resolving %d/%d...\n", m.spinner.View(), finished, total)
	}

	return b.String()
}

// progressCounts returns (finished, total), where finished rows are ready or
// failed.
func (m Model) progressCounts() (int, int) {
	finished := 0
	for _, row := range m.rows {
		if row.Status == StatusReady || row.Status == StatusFailed {
			finished++
		}
	}
	return finished, len(m.rows)
}

// Done returns whether the model has finished (work done or error).
func (m Model) Done() bool {
	return m.done
}

// Err returns any fatal error that occurred.
func (m Model) Err() error {
	return m.err
}

// Rows returns a copy of the current table rows.
func (m Model) Rows() []Row {
	return append([]Row(nil), m.rows...)
}

func pad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

// marqueeText renders a window over text that is wider than width, shifted
// left by one character per tick.
func marqueeText(text string, width, tick int) string {
	text = strings.TrimSpace(text)
	if width <= 0 {
		return ""
	}
	if len(text) <= width {
		return text
	}
	cycle := text + marqueeGap
	offset := tick % len(cycle)
	var result strings.Builder
	result.Grow(width)
	for i := 0; i < width; i++ {
		result.WriteByte(cycle[(offset+i)%len(cycle)])
	}
	return result.String()
}

// NonEmptyOrDash returns "-" for empty/whitespace strings.
func NonEmptyOrDash(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "-"
	}
	return value
}

// TruncateWithEllipsis truncates a string and adds "..." if it exceeds max length.
func TruncateWithEllipsis(value string, max int) string {
	if max <= 0 {
		return ""
	}
	value = strings.TrimSpace(value)
	if len(value) <= max {
		return value
	}
	if max <= 3 {
		return value[:max]
	}
	return value[:max-3] + "..."
}
