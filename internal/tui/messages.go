package tui

// RowUpdateMsg merges the non-empty fields of Row into the row of the same
// browser.
type RowUpdateMsg struct {
	Row Row
}

// WorkDoneMsg signals that every browser has been resolved or has failed.
type WorkDoneMsg struct{}

// ErrorMsg signals a fatal error; the TUI should quit.
type ErrorMsg struct {
	Err error
}
