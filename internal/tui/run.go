package tui

import (
	"context"
	"io"

	tea "github.com/charmbracelet/bubbletea"
)

// RunWithWork renders model while workFn runs in a goroutine, reporting
// into the program. Quitting the program cancels the context given to
// workFn; RunWithWork returns only after workFn has returned.
func RunWithWork(ctx context.Context, out io.Writer, model Model, workFn func(context.Context, Reporter)) error {
	workCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(model, tea.WithContext(ctx), tea.WithOutput(out), tea.WithInput(nil))

	done := make(chan struct{})
	go func() {
		defer close(done)
		workFn(workCtx, NewProgramReporter(p.Send))
		p.Send(WorkDoneMsg{})
	}()

	finalModel, err := p.Run()
	cancel()
	<-done
	if err != nil {
		return err
	}
	if m, ok := finalModel.(Model); ok && m.Err() != nil {
		return m.Err()
	}
	return nil
}
