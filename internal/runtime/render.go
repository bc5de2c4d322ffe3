package runtime

import (
	"strings"

	"github.com/aretw0/cadence/pkg/domain"
	"github.com/aretw0/cadence/pkg/variables"
	"github.com/rivo/uniseg"
	"golang.org/x/text/unicode/norm"
)

// Interpolator renders line text against the variable store. It returns the
// rendered line and any recoverable errors encountered.
type Interpolator func(text string, vars *variables.Store) (Rendered, []error)

// LengthFunc measures the progress length of rendered line text.
type LengthFunc func(text string) int

// Rendered is an interpolated line. Besides the text it remembers how source
// positions moved, so thresholds written against the source stay on the
// same character after a placeholder expands.
type Rendered struct {
	Text string
	// Events are contributed by branch placeholders, already placed on the
	// rendered text.
	Events []PlacedEvent

	spans []span
}

// PlacedEvent is an event with its position on the rendered text.
type PlacedEvent struct {
	Position int
	Event    domain.EventPayload
}

// span is a stretch of source text and the text it rendered to, both
// measured in characters. Only literal spans map positions one to one.
type span struct {
	src, out int
	literal  bool
}

// Plain renders text with no substitution.
func Plain(text string) Rendered {
	n := GraphemeLength(text)
	return Rendered{Text: text, spans: []span{{src: n, out: n, literal: true}}}
}

// Position maps a character position of the source text onto the rendered
// text. Positions inside a placeholder land on the start of its expansion;
// positions past the end keep their distance from it.
func (r Rendered) Position(src int) int {
	if src <= 0 {
		return max(src, 0)
	}
	srcAt, outAt := 0, 0
	for _, sp := range r.spans {
		if src < srcAt+sp.src {
			if sp.literal {
				return outAt + src - srcAt
			}
			return outAt
		}
		srcAt += sp.src
		outAt += sp.out
	}
	return outAt + src - srcAt
}

type renderer struct {
	Rendered
	lit strings.Builder
	out int
}

func (r *renderer) literal(s string) {
	r.lit.WriteString(s)
}

func (r *renderer) flush() {
	if r.lit.Len() == 0 {
		return
	}
	s := r.lit.String()
	r.lit.Reset()
	n := GraphemeLength(s)
	r.Text += s
	r.spans = append(r.spans, span{src: n, out: n, literal: true})
	r.out += n
}

func (r *renderer) substitute(source, text string) {
	r.flush()
	n := GraphemeLength(text)
	r.Text += text
	r.spans = append(r.spans, span{src: GraphemeLength(source), out: n})
	r.out += n
}

// Interpolate replaces {name} with the display form of the variable, or with
// the matching case text when name is a branch variable. "{{" and "}}"
// produce literal braces; an unterminated "{" is kept as is. Unset variables
// and branches without a matching case render as the empty string.
func Interpolate(text string, vars *variables.Store) (Rendered, []error) {
	if !strings.ContainsAny(text, "{}") {
		return Plain(text), nil
	}

	var r renderer
	var errs []error
	for i := 0; i < len(text); {
		switch {
		case strings.HasPrefix(text[i:], "{{"):
			r.substitute("{{", "{")
			i += 2
		case strings.HasPrefix(text[i:], "}}"):
			r.substitute("}}", "}")
			i += 2
		case text[i] == '{':
			end := strings.IndexByte(text[i+1:], '}')
			if end < 0 {
				r.literal(text[i:])
				i = len(text)
				continue
			}
			source := text[i : i+end+2]
			name := strings.TrimSpace(text[i+1 : i+1+end])
			if c, ok := vars.Branch(name); ok {
				if c != nil {
					r.flush()
					for _, ev := range c.Events {
						r.Events = append(r.Events, PlacedEvent{Position: r.out + ev.Offset, Event: ev.Event})
					}
					r.substitute(source, c.Text)
				} else {
					r.substitute(source, "")
				}
			} else if v, ok := vars.Lookup(name); ok {
				r.substitute(source, v.Display())
			} else {
				errs = append(errs, &domain.UnsetVariableError{Variable: name})
				r.substitute(source, "")
			}
			i += end + 2
		default:
			// Copy up to the next brace in one go.
			next := strings.IndexAny(text[i+1:], "{}")
			if next < 0 {
				next = len(text) - i - 1
			}
			r.literal(text[i : i+1+next])
			i += 1 + next
		}
	}
	r.flush()
	return r.Rendered, errs
}

// GraphemeLength counts user-perceived characters of the NFC form of text,
// which is what a typewriter reveal advances over.
func GraphemeLength(text string) int {
	return uniseg.GraphemeClusterCount(norm.NFC.String(text))
}
