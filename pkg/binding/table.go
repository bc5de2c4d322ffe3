// Package binding tracks the events bound to the line currently presenting
// and fires them as the host progress index passes their thresholds.
package binding

import (
	"sort"

	"github.com/aretw0/cadence/pkg/domain"
)

// Binding attaches an event to a progress threshold of a line.
type Binding struct {
	// Threshold is the progress index at or after which the event fires.
	Threshold int
	// Seq is the declaration order within the line; it breaks threshold ties.
	Seq int
	// Instr is the index of the event instruction in the program. Events
	// that come from the line text itself use negative indexes.
	Instr   int
	Payload domain.EventPayload
}

// Fired is a binding that was delivered, with the progress that triggered it.
type Fired struct {
	Binding
	Progress int
}

// Table holds the bindings of one line presentation. Bindings are kept sorted
// by (Threshold, Seq), so the fired ones always form a prefix.
type Table struct {
	lineID   string
	bindings []Binding
	cursor   int
	byInstr  map[int]int
}

// New builds a table for lineID. The input order is taken as declaration
// order when Seq values tie.
func New(lineID string, bindings []Binding) *Table {
	bs := make([]Binding, len(bindings))
	copy(bs, bindings)
	sort.SliceStable(bs, func(i, j int) bool {
		if bs[i].Threshold != bs[j].Threshold {
			return bs[i].Threshold < bs[j].Threshold
		}
		return bs[i].Seq < bs[j].Seq
	})

	byInstr := make(map[int]int, len(bs))
	for i, b := range bs {
		byInstr[b.Instr] = i
	}

	return &Table{lineID: lineID, bindings: bs, byInstr: byInstr}
}

// LineID returns the line this table belongs to.
func (t *Table) LineID() string {
	return t.lineID
}

// Advance fires every unfired binding whose threshold is <= progress, in
// order. A binding is never returned twice.
func (t *Table) Advance(progress int) []Fired {
	var out []Fired
	for t.cursor < len(t.bindings) && t.bindings[t.cursor].Threshold <= progress {
		out = append(out, Fired{Binding: t.bindings[t.cursor], Progress: progress})
		t.cursor++
	}
	return out
}

// Flush fires every remaining binding regardless of threshold.
func (t *Table) Flush() []Fired {
	var out []Fired
	for t.cursor < len(t.bindings) {
		b := t.bindings[t.cursor]
		out = append(out, Fired{Binding: b, Progress: b.Threshold})
		t.cursor++
	}
	return out
}

// Fired reports whether the binding for the given instruction has fired.
// Instructions not in the table report true so the interpreter never waits on them.
func (t *Table) Fired(instr int) bool {
	i, ok := t.byInstr[instr]
	if !ok {
		return true
	}
	return i < t.cursor
}

// Has reports whether the instruction is bound in this table.
func (t *Table) Has(instr int) bool {
	_, ok := t.byInstr[instr]
	return ok
}

// Len returns the number of bindings.
func (t *Table) Len() int {
	return len(t.bindings)
}

// FiredCount returns how many bindings have fired.
func (t *Table) FiredCount() int {
	return t.cursor
}

// Pending returns how many bindings are still waiting.
func (t *Table) Pending() int {
	return len(t.bindings) - t.cursor
}

// MaxThreshold returns the highest threshold in the table, or 0 when empty.
func (t *Table) MaxThreshold() int {
	if len(t.bindings) == 0 {
		return 0
	}
	return t.bindings[len(t.bindings)-1].Threshold
}
