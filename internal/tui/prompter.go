// Package tui implements the selector prompts as bubbletea programs.
package tui

import (
	"context"
	"errors"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/runnerr0/codepulse/internal/selector"
)

// Prompter runs each prompt as its own short-lived bubbletea program.
type Prompter struct {
	in  io.Reader
	out io.Writer
}

// NewPrompter returns a Prompter on the given terminal streams. Nil streams
// fall back to the process stdin and stdout.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: in, out: out}
}

var _ selector.Prompter = (*Prompter)(nil)

func (p *Prompter) run(ctx context.Context, m tea.Model) (tea.Model, error) {
	opts := []tea.ProgramOption{tea.WithContext(ctx)}
	if p.in != nil {
		opts = append(opts, tea.WithInput(p.in))
	}
	if p.out != nil {
		opts = append(opts, tea.WithOutput(p.out))
	}
	final, err := tea.NewProgram(m, opts...).Run()
	if err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("run prompt: %w", err)
	}
	return final, nil
}

func (p *Prompter) PickOne(ctx context.Context, placeholder string, items []selector.Item) (selector.Item, bool, error) {
	final, err := p.run(ctx, newPickOne(placeholder, items))
	if err != nil {
		return selector.Item{}, false, err
	}
	m := final.(pickOneModel)
	if !m.chosen {
		return selector.Item{}, false, nil
	}
	return m.items[m.cursor], true, nil
}

func (p *Prompter) PickMany(ctx context.Context, placeholder string, boxes []selector.Checkbox) ([]selector.Checkbox, bool, error) {
	final, err := p.run(ctx, newPickMany(placeholder, boxes))
	if err != nil {
		return nil, false, err
	}
	m := final.(pickManyModel)
	if !m.confirmed {
		return nil, false, nil
	}
	return m.selected(), true, nil
}

func (p *Prompter) Input(ctx context.Context, prompt, placeholder, value string, validate func(string) string) (string, bool, error) {
	final, err := p.run(ctx, newInput(prompt, placeholder, value, validate))
	if err != nil {
		return "", false, err
	}
	m := final.(inputModel)
	if !m.confirmed {
		return "", false, nil
	}
	return m.value(), true, nil
}
