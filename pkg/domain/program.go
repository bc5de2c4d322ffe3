package domain

import (
	"slices"
	"strings"
)

// VariableDecl declares a program variable with its type and initial value.
//
// An enum variable (Enum set) is a string holding one variant of that enum
// and defaults to its first variant. A branch variable (Branch set) holds no
// value: its {name} placeholder renders the text of the matching case.
type VariableDecl struct {
	Name   string    `json:"name"`
	Type   ValueType `json:"type,omitempty"`
	Enum   string    `json:"enum,omitempty"`
	Value  Value     `json:"value,omitzero"`
	Branch *Branch   `json:"branch,omitempty"`
}

// EnumDecl names a closed set of string variants.
type EnumDecl struct {
	Name     string   `json:"name"`
	Variants []string `json:"variants"`
}

// Variant reports the variant named by s, which may be bare ("sad") or
// qualified by the enum name ("Mood.sad").
func (e EnumDecl) Variant(s string) (string, bool) {
	s = strings.TrimPrefix(s, e.Name+".")
	return s, slices.Contains(e.Variants, s)
}

// Branch selects placeholder text by case. When On names an enum variable,
// the case whose When equals its current variant is used. Otherwise the first
// case whose When names a boolean variable holding true wins.
type Branch struct {
	On    string       `json:"on,omitempty"`
	Cases []BranchCase `json:"cases"`
}

// BranchCase is one alternative of a branch variable.
type BranchCase struct {
	When   string        `json:"when"`
	Text   string        `json:"text"`
	Events []BranchEvent `json:"events,omitempty"`
}

// BranchEvent is bound to the line rendering its case, Offset characters
// after the start of the case text.
type BranchEvent struct {
	Offset int          `json:"offset"`
	Event  EventPayload `json:"event"`
}

// Constant is a named, read-only program value. Public constants are
// announced to the host when the program is installed.
type Constant struct {
	Name   string `json:"name"`
	Value  Value  `json:"value"`
	Public bool   `json:"public,omitempty"`
}

// Program is a compiled, validated instruction sequence. A Program is never
// mutated once loaded and may be shared by any number of sessions.
type Program struct {
	Name         string         `json:"name"`
	Enums        []EnumDecl     `json:"enums,omitempty"`
	Variables    []VariableDecl `json:"variables,omitempty"`
	Constants    []Constant     `json:"constants,omitempty"`
	Instructions []Instruction  `json:"instructions"`
}

// Enum returns the enum declared under name.
func (p *Program) Enum(name string) (EnumDecl, bool) {
	for _, e := range p.Enums {
		if e.Name == name {
			return e, true
		}
	}
	return EnumDecl{}, false
}

// PublicConstants returns the constants marked public, in declaration order.
func (p *Program) PublicConstants() []Constant {
	var out []Constant
	for _, c := range p.Constants {
		if c.Public {
			out = append(out, c)
		}
	}
	return out
}

// Len returns the number of instructions.
func (p *Program) Len() int {
	return len(p.Instructions)
}

// Lines returns the indices of every line instruction, in program order.
func (p *Program) Lines() []int {
	var out []int
	for i, ins := range p.Instructions {
		if ins.Kind == KindLine {
			out = append(out, i)
		}
	}
	return out
}

// BindingsFor returns the indices of the event instructions bound to lineID,
// in declaration order.
func (p *Program) BindingsFor(lineID string) []int {
	var out []int
	for i, ins := range p.Instructions {
		if ins.Bound() && ins.LineID == lineID {
			out = append(out, i)
		}
	}
	return out
}
