package tui

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// NewRenderer returns a runner.ContentRenderer that renders each line as
// markdown using glamour. Falls back to the raw text when glamour cannot be
// initialized.
func NewRenderer() func(string) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return func(s string) (string, error) { return s, nil }
	}

	return func(markdown string) (string, error) {
		out, err := r.Render(markdown)
		if err != nil {
			return "", err
		}
		return strings.TrimRight(out, "\n"), nil
	}
}
