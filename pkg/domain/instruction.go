package domain

// Kind identifies an instruction.
type Kind string

const (
	KindLine          Kind = "line"
	KindSetVar        Kind = "set_var"
	KindEvent         Kind = "event"
	KindChoice        Kind = "choice"
	KindJump          Kind = "jump"
	KindBranchIfFalse Kind = "branch_if_false"
	KindEnd           Kind = "end"
	KindCall          Kind = "call"
	KindReturn        Kind = "return"
)

// Valid reports whether k is a known instruction kind.
func (k Kind) Valid() bool {
	switch k {
	case KindLine, KindSetVar, KindEvent, KindChoice, KindJump,
		KindBranchIfFalse, KindEnd, KindCall, KindReturn:
		return true
	}
	return false
}

// Terminator reports whether control can never fall through past k.
func (k Kind) Terminator() bool {
	return k == KindEnd || k == KindJump || k == KindReturn || k == KindChoice
}

// AssignOp selects how set_var combines its operand with the current value.
type AssignOp string

const (
	OpSet AssignOp = "set"
	OpAdd AssignOp = "add"
)

// EventPayload is emitted to the host when an event fires.
type EventPayload struct {
	ID   string  `json:"id"`
	Args []Value `json:"args,omitempty"`
}

// ChoiceOption is one selectable branch of a choice.
type ChoiceOption struct {
	Text   string `json:"text"`
	Target int    `json:"target"`
}

// Instruction is a single step of a compiled program. Only the operand fields
// relevant to Kind are meaningful.
type Instruction struct {
	Kind   Kind   `json:"kind"`
	LineID string `json:"line_id,omitempty"`

	// line
	Text   string `json:"text,omitempty"`
	Length int    `json:"length,omitempty"`

	// set_var
	Var   string   `json:"var,omitempty"`
	Op    AssignOp `json:"op,omitempty"`
	Value Value    `json:"value,omitzero"`

	// event
	Threshold    int          `json:"threshold,omitempty"`
	ThresholdVar string       `json:"threshold_var,omitempty"`
	Event        EventPayload `json:"event,omitzero"`

	// choice
	Options []ChoiceOption `json:"options,omitempty"`
	SaveTo  string         `json:"save_to,omitempty"`

	// jump, branch_if_false, call
	Target int        `json:"target,omitempty"`
	Cond   *Condition `json:"cond,omitempty"`
}

// Bound reports whether an event instruction belongs to a line's binding
// table. Unbound events fire as soon as the program counter reaches them.
func (i Instruction) Bound() bool {
	return i.Kind == KindEvent && i.LineID != ""
}

// Targets returns every instruction index this instruction may transfer control to.
func (i Instruction) Targets() []int {
	switch i.Kind {
	case KindJump, KindBranchIfFalse, KindCall:
		return []int{i.Target}
	case KindChoice:
		out := make([]int, len(i.Options))
		for n, o := range i.Options {
			out[n] = o.Target
		}
		return out
	}
	return nil
}
