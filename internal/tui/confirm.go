package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
)

// confirmRequest is a pending y/n question shown by the shell.
type confirmRequest struct {
	prompt string
	reply  chan bool
}

// Prompter asks the shell user to confirm destructive actions. It satisfies
// widget.Confirmer.
type Prompter struct {
	requests chan confirmRequest
}

// NewPrompter creates a prompter with no pending question.
func NewPrompter() *Prompter {
	return &Prompter{requests: make(chan confirmRequest)}
}

// Confirm blocks until the user answers or ctx is done.
func (p *Prompter) Confirm(ctx context.Context, prompt string) (bool, error) {
	req := confirmRequest{prompt: prompt, reply: make(chan bool, 1)}
	select {
	case p.requests <- req:
	case <-ctx.Done():
		return false, ctx.Err()
	}
	select {
	case ok := <-req.reply:
		return ok, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func waitForConfirm(p *Prompter) tea.Cmd {
	return func() tea.Msg {
		return confirmMsg(<-p.requests)
	}
}
