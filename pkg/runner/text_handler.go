package runner

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aretw0/cadence/pkg/domain"
	"github.com/rivo/uniseg"
	"golang.org/x/text/unicode/norm"
)

// TextHandler reveals lines grapheme by grapheme on a terminal and reads
// numbered choices.
type TextHandler struct {
	Writer   io.Writer
	Renderer ContentRenderer
	// Events, when set, receives one line per fired event.
	Events io.Writer

	input *linePump

	line     string
	text     string
	shown    int
	progress int
	closed   bool
}

// TextHandlerOption defines configuration for TextHandler.
type TextHandlerOption func(*TextHandler)

// WithTextHandlerRenderer configures the content renderer. Rendered lines
// are written whole once complete instead of revealed progressively.
func WithTextHandlerRenderer(renderer ContentRenderer) TextHandlerOption {
	return func(h *TextHandler) {
		h.Renderer = renderer
	}
}

// WithEventEcho writes fired events to w.
func WithEventEcho(w io.Writer) TextHandlerOption {
	return func(h *TextHandler) {
		h.Events = w
	}
}

// NewTextHandler creates a handler for standard text IO.
func NewTextHandler(r io.Reader, w io.Writer, opts ...TextHandlerOption) *TextHandler {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	h := &TextHandler{
		Writer: w,
		input:  newLinePump(r),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *TextHandler) Present(_ context.Context, snap domain.Snapshot) error {
	if snap.LineID == "" && snap.Text == "" {
		return nil
	}

	if snap.LineID != h.line || snap.Progress < h.progress || (h.closed && !snap.LineComplete) {
		h.closeLine()
		h.line = snap.LineID
		h.text = norm.NFC.String(snap.Text)
		h.shown = 0
		h.closed = false
	}
	h.progress = snap.Progress

	if h.closed {
		return nil
	}

	if h.Renderer != nil {
		if snap.LineComplete {
			out := h.text
			if rendered, err := h.Renderer(h.text); err == nil {
				out = rendered
			}
			fmt.Fprintln(h.Writer, strings.TrimSpace(out))
			h.closed = true
		}
		return nil
	}

	target := snap.Progress
	if snap.LineComplete {
		target = uniseg.GraphemeClusterCount(h.text)
	}
	if target > h.shown {
		fmt.Fprint(h.Writer, graphemeSlice(h.text, h.shown, target))
		h.shown = target
	}
	if snap.LineComplete {
		h.closeLine()
	}
	return nil
}

func (h *TextHandler) closeLine() {
	if h.closed || (h.line == "" && h.text == "") {
		return
	}
	if h.Renderer == nil {
		fmt.Fprintln(h.Writer)
	}
	h.closed = true
}

func (h *TextHandler) Choose(ctx context.Context, options []string) (int, error) {
	for i, opt := range options {
		fmt.Fprintf(h.Writer, "  %d) %s\n", i+1, opt)
	}

	for {
		fmt.Fprint(h.Writer, "> ")
		text, err := h.input.Next(ctx)
		if err != nil {
			return 0, err
		}

		clean, err := CleanInput(text)
		if err != nil {
			fmt.Fprintf(h.Writer, "Error: %v. Please try again.\n", err)
			continue
		}
		if clean == "exit" || clean == "quit" {
			return 0, io.EOF
		}

		n, err := ParseChoice(clean)
		if err != nil {
			fmt.Fprintf(h.Writer, "Error: enter a number between 1 and %d.\n", len(options))
			continue
		}
		return n - 1, nil
	}
}

func (h *TextHandler) Notify(_ context.Context, ev domain.EventPayload) error {
	if h.Events == nil {
		return nil
	}
	_, err := fmt.Fprintf(h.Events, "[event] %s\n", FormatEvent(ev))
	return err
}

func (h *TextHandler) SystemOutput(_ context.Context, msg string) error {
	fmt.Fprintf(h.Writer, "\n[System] %s\n", msg)
	return nil
}

// FormatEvent renders an event as id(arg, ...).
func FormatEvent(ev domain.EventPayload) string {
	if len(ev.Args) == 0 {
		return ev.ID
	}
	args := make([]string, len(ev.Args))
	for i, a := range ev.Args {
		args[i] = a.Display()
	}
	return ev.ID + "(" + strings.Join(args, ", ") + ")"
}

// graphemeSlice returns the grapheme clusters [from, to) of text.
func graphemeSlice(text string, from, to int) string {
	var b strings.Builder
	g := uniseg.NewGraphemes(text)
	for i := 0; g.Next() && i < to; i++ {
		if i >= from {
			b.WriteString(g.Str())
		}
	}
	return b.String()
}
