package tui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"text/tabwriter"

	tea "github.com/charmbracelet/bubbletea"
)

// Reporter receives row updates from resolve workers. Implementations are
// safe for concurrent use.
type Reporter interface {
	Update(row Row)
}

// ProgramReporter forwards updates to a running bubbletea program.
type ProgramReporter struct {
	send func(tea.Msg)
}

// NewProgramReporter wraps a send function such as tea.Program.Send.
func NewProgramReporter(send func(tea.Msg)) ProgramReporter {
	return ProgramReporter{send: send}
}

// Update implements Reporter.
func (r ProgramReporter) Update(row Row) {
	r.send(RowUpdateMsg{Row: row})
}

// TableReporter accumulates rows for a static table written after all work
// completes.
type TableReporter struct {
	mu    sync.Mutex
	rows  []Row
	index map[string]int
}

// NewTableReporter starts a table with one pending row per entry.
func NewTableReporter(rows []Row) *TableReporter {
	r := &TableReporter{index: make(map[string]int, len(rows))}
	for _, row := range rows {
		if row.Status == "" {
			row.Status = StatusPending
		}
		r.index[row.Browser] = len(r.rows)
		r.rows = append(r.rows, row)
	}
	return r
}

// Update implements Reporter.
func (r *TableReporter) Update(row Row) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if idx, ok := r.index[row.Browser]; ok {
		r.rows[idx] = r.rows[idx].merge(row)
	}
}

// Rows returns a copy of the accumulated rows.
func (r *TableReporter) Rows() []Row {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Row(nil), r.rows...)
}

// Write renders the rows as an aligned plain-text table.
func (r *TableReporter) Write(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	headers := make([]string, len(columns))
	for i, col := range columns {
		headers[i] = col.header
	}
	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	for _, row := range r.Rows() {
		cells := make([]string, len(columns))
		for i, col := range columns {
			cells[i] = col.value(row)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}
