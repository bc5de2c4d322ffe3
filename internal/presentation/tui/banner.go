package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the cadence banner to w.
func PrintBanner(w io.Writer) {
	p := termenv.ColorProfile()
	lines := []struct{ text, color string }{
		{"                 _                     ", "#818cf8"},
		{"  ___ __ _  __| | ___ _ __   ___ ___ ", "#a78bfa"},
		{" / __/ _` |/ _` |/ _ \\ '_ \\ / __/ _ \\", "#c084fc"},
		{"| (_| (_| | (_| |  __/ | | | (_|  __/", "#e879f9"},
		{" \\___\\__,_|\\__,_|\\___|_| |_|\\___\\___|", "#f472b6"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}

// Styled renders s in the given hex color for the current terminal profile.
func Styled(s, color string) string {
	p := termenv.ColorProfile()
	return termenv.String(s).Foreground(p.Color(color)).String()
}
