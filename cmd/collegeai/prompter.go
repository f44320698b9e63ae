package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/kalambet/collegeai/internal/document"
	"github.com/kalambet/collegeai/internal/pipeline"
	"github.com/kalambet/collegeai/internal/turn"
)

// terminalPrompter asks questions on a terminal. Options are numbered and
// may be picked by number; "quit" cancels the run.
type terminalPrompter struct {
	in  *bufio.Reader
	out io.Writer
}

func newTerminalPrompter(in io.Reader, out io.Writer) *terminalPrompter {
	return &terminalPrompter{in: bufio.NewReader(in), out: out}
}

func (p *terminalPrompter) Ask(ctx context.Context, stage pipeline.Stage, q turn.Question) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	fmt.Fprintf(p.out, "\n%s %s\n", colorize(colorCyan, "["+string(stage)+"]"), colorize(colorBold, q.Text))
	for i, o := range q.Options {
		fmt.Fprintf(p.out, "  %d) %s\n", i+1, o)
	}
	if q.AnswerType == turn.AnswerMultiChoice && len(q.Options) > 0 {
		fmt.Fprintln(p.out, "  (pick several with commas, e.g. 1,3)")
	}
	fmt.Fprint(p.out, "> ")

	line, err := p.in.ReadString('\n')
	if err != nil {
		if !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("reading answer: %w", err)
		}
		if strings.TrimSpace(line) == "" {
			return "", pipeline.ErrCancelled
		}
	}
	answer := strings.TrimSpace(line)
	switch strings.ToLower(answer) {
	case "quit", "exit", "q":
		return "", pipeline.ErrCancelled
	}
	return resolveOptions(answer, q), nil
}

// resolveOptions replaces option numbers with the option text. Anything
// that is not a valid number list is returned as typed.
func resolveOptions(answer string, q turn.Question) string {
	if len(q.Options) == 0 {
		return answer
	}
	parts := strings.Split(answer, ",")
	if len(parts) > 1 && q.AnswerType != turn.AnswerMultiChoice {
		return answer
	}
	picked := make([]string, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 1 || n > len(q.Options) {
			return answer
		}
		picked = append(picked, q.Options[n-1])
	}
	return strings.Join(picked, ", ")
}

func (p *terminalPrompter) Report(stage pipeline.Stage, result document.Document) {
	fmt.Fprintf(p.out, "\n%s\n", colorize(colorGreen, "✓ "+string(stage)+" complete"))
	if summary, ok := result["summary"].(string); ok && summary != "" {
		fmt.Fprintf(p.out, "%s\n", summary)
	}
	if summary, ok := result["strategic_summary"].(string); ok && summary != "" {
		fmt.Fprintf(p.out, "%s\n", summary)
	}
	if recs, ok := result["recommendations"].([]any); ok {
		for _, item := range recs {
			rec, _ := item.(map[string]any)
			name, _ := rec["college_name"].(string)
			if name == "" {
				name, _ = rec["name"].(string)
			}
			detail, _ := rec["category"].(string)
			if detail == "" {
				detail, _ = rec["link"].(string)
			}
			fmt.Fprintf(p.out, "  - %s  %s\n", name, detail)
		}
	}
	if suggestions, ok := result["suggestions"].([]any); ok {
		for _, item := range suggestions {
			s, _ := item.(map[string]any)
			title, _ := s["title"].(string)
			priority, _ := s["priority"].(string)
			fmt.Fprintf(p.out, "  - %s (%s)\n", title, priority)
		}
	}
}
