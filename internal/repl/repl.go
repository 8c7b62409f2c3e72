// Package repl runs the interactive chat loop on a line-oriented terminal.
package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"mentor/internal/agent"
	"mentor/internal/persona"

	"github.com/charmbracelet/lipgloss"
)

var exitWords = []string{"exit", "quit", "q"}

// IsExit reports whether a line asks to end the conversation.
func IsExit(line string) bool {
	word := strings.ToLower(strings.TrimSpace(line))
	for _, w := range exitWords {
		if word == w {
			return true
		}
	}
	return false
}

type Options struct {
	SessionID string
	Persona   *persona.Persona
	Stream    bool // print tokens as they arrive
	Color     bool
}

type REPL struct {
	runner agent.Runner
	in     io.Reader
	out    io.Writer
	opts   Options
	styles styles
}

func New(runner agent.Runner, in io.Reader, out io.Writer, opts Options) *REPL {
	if opts.Persona == nil {
		opts.Persona = persona.Default()
	}
	return &REPL{
		runner: runner,
		in:     in,
		out:    out,
		opts:   opts,
		styles: newStyles(opts.Color),
	}
}

// Run prints the banner and serves exchanges until an exit word, end of
// input, or cancellation of ctx. Failed exchanges are reported and the loop
// continues. Only a read error from in is returned.
func (r *REPL) Run(ctx context.Context) error {
	p := r.opts.Persona
	for _, line := range p.Banner {
		fmt.Fprintln(r.out, r.styles.banner(line))
	}

	lines, readErr := readLines(ctx, r.in)

	for {
		fmt.Fprint(r.out, r.styles.user(p.UserLabel))

		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(r.out, "\n"+p.Interrupted)
			return nil
		case l, ok := <-lines:
			if !ok {
				fmt.Fprintln(r.out, "\n"+p.Farewell)
				return <-readErr
			}
			line = l
		}

		text := strings.TrimSpace(line)
		if text == "" {
			continue
		}
		if IsExit(text) {
			fmt.Fprintln(r.out, p.Farewell)
			return nil
		}

		if err := r.exchange(ctx, text); err != nil {
			if ctx.Err() != nil {
				fmt.Fprintln(r.out, "\n"+p.Interrupted)
				return nil
			}
			slog.Debug("exchange failed", "session_id", r.opts.SessionID, "error", err)
			fmt.Fprintln(r.out, r.styles.err(p.ErrorPrefix+" "+err.Error()))
		}
	}
}

func (r *REPL) exchange(ctx context.Context, text string) error {
	label := r.styles.assistant(r.opts.Persona.AssistantLabel) + " "

	if !r.opts.Stream {
		reply, err := r.runner.Converse(ctx, r.opts.SessionID, text, nil)
		if err != nil {
			return err
		}
		fmt.Fprintln(r.out, label+reply)
		return nil
	}

	started := false
	_, err := r.runner.Converse(ctx, r.opts.SessionID, text, func(tok string) {
		if !started {
			fmt.Fprint(r.out, label)
			started = true
		}
		fmt.Fprint(r.out, tok)
	})
	if started {
		fmt.Fprintln(r.out)
	}
	return err
}

// readLines feeds lines from in until EOF or a read error, then closes the
// channel and reports the error (nil on EOF).
func readLines(ctx context.Context, in io.Reader) (<-chan string, <-chan error) {
	lines := make(chan string)
	errc := make(chan error, 1)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				errc <- nil
				return
			}
		}
		err := scanner.Err()
		if errors.Is(err, io.EOF) {
			err = nil
		}
		errc <- err
	}()
	return lines, errc
}

type styles struct {
	banner, user, assistant, err func(string) string
}

func newStyles(color bool) styles {
	if !color {
		plain := func(s string) string { return s }
		return styles{banner: plain, user: plain, assistant: plain, err: plain}
	}
	return styles{
		banner:    render(lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#D4A373"))),
		user:      render(lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#74C0FC"))),
		assistant: render(lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#8CE99A"))),
		err:       render(lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))),
	}
}

func render(style lipgloss.Style) func(string) string {
	return func(s string) string { return style.Render(s) }
}
