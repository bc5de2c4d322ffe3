package dsl

import "github.com/aretw0/cadence/pkg/domain"

// LineBuilder attaches events and metadata to the line just appended.
type LineBuilder struct {
	*Builder
	idx int
}

// Length sets an explicit progress length (e.g. voice-over milliseconds).
func (l *LineBuilder) Length(n int) *LineBuilder {
	l.Builder.ins[l.idx].Length = n
	return l
}

// At binds an event to the line, fired once progress reaches threshold.
func (l *LineBuilder) At(threshold int, id string, args ...domain.Value) *LineBuilder {
	l.Builder.ins = append(l.Builder.ins, domain.Instruction{
		Kind:      domain.KindEvent,
		LineID:    l.Builder.ins[l.idx].LineID,
		Threshold: threshold,
		Event:     domain.EventPayload{ID: id, Args: args},
	})
	return l
}

// AtVar binds an event whose threshold is read from a number variable when
// the line is entered.
func (l *LineBuilder) AtVar(variable, id string, args ...domain.Value) *LineBuilder {
	l.Builder.ins = append(l.Builder.ins, domain.Instruction{
		Kind:         domain.KindEvent,
		LineID:       l.Builder.ins[l.idx].LineID,
		ThresholdVar: variable,
		Event:        domain.EventPayload{ID: id, Args: args},
	})
	return l
}

// Option is one choice option pointing at a label.
type Option struct {
	Text  string
	Label string
}

// Opt builds an Option.
func Opt(text, label string) Option {
	return Option{Text: text, Label: label}
}

// ChoiceBuilder configures the choice just appended.
type ChoiceBuilder struct {
	*Builder
	idx int
}

// SaveTo stores the chosen option index in a number variable.
func (c *ChoiceBuilder) SaveTo(variable string) *ChoiceBuilder {
	c.Builder.ins[c.idx].SaveTo = variable
	return c
}
