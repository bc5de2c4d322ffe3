package dto

// ProgramDocument is the wire form of a compiled program, as produced by the
// external compiler and stored by loaders. It uses "mapstructure" tags so it
// can be decoded from YAML/JSON maps and from Loam frontmatter alike.
type ProgramDocument struct {
	Name         string                `json:"name,omitempty" yaml:"name,omitempty" mapstructure:"name"`
	Enums        []EnumDocument        `json:"enums,omitempty" yaml:"enums,omitempty" mapstructure:"enums"`
	Variables    []VariableDocument    `json:"variables,omitempty" yaml:"variables,omitempty" mapstructure:"variables"`
	Constants    []ConstantDocument    `json:"constants,omitempty" yaml:"constants,omitempty" mapstructure:"constants"`
	Instructions []InstructionDocument `json:"instructions" yaml:"instructions" mapstructure:"instructions"`
}

// EnumDocument declares a named set of string variants.
type EnumDocument struct {
	Name     string   `json:"name" yaml:"name" mapstructure:"name"`
	Variants []string `json:"variants" yaml:"variants" mapstructure:"variants"`
}

// VariableDocument declares a program variable. Enum variables name their
// enum and may leave Type empty; branch variables carry only Branch.
type VariableDocument struct {
	Name   string          `json:"name" yaml:"name" mapstructure:"name"`
	Type   string          `json:"type,omitempty" yaml:"type,omitempty" mapstructure:"type"`
	Enum   string          `json:"enum,omitempty" yaml:"enum,omitempty" mapstructure:"enum"`
	Value  any             `json:"value,omitempty" yaml:"value,omitempty" mapstructure:"value"`
	Branch *BranchDocument `json:"branch,omitempty" yaml:"branch,omitempty" mapstructure:"branch"`
}

// BranchDocument selects placeholder text by case.
type BranchDocument struct {
	On    string         `json:"on,omitempty" yaml:"on,omitempty" mapstructure:"on"`
	Cases []CaseDocument `json:"cases" yaml:"cases" mapstructure:"cases"`
}

// CaseDocument is one branch case.
type CaseDocument struct {
	When   string          `json:"when" yaml:"when" mapstructure:"when"`
	Text   string          `json:"text" yaml:"text" mapstructure:"text"`
	Events []EventDocument `json:"events,omitempty" yaml:"events,omitempty" mapstructure:"events"`
}

// EventDocument is an event placed relative to the start of a case text.
type EventDocument struct {
	Offset int    `json:"offset,omitempty" yaml:"offset,omitempty" mapstructure:"offset"`
	ID     string `json:"id" yaml:"id" mapstructure:"id"`
	Args   []any  `json:"args,omitempty" yaml:"args,omitempty" mapstructure:"args"`
}

// ConstantDocument is a named program constant.
type ConstantDocument struct {
	Name   string `json:"name" yaml:"name" mapstructure:"name"`
	Type   string `json:"type,omitempty" yaml:"type,omitempty" mapstructure:"type"`
	Value  any    `json:"value" yaml:"value" mapstructure:"value"`
	Public bool   `json:"public,omitempty" yaml:"public,omitempty" mapstructure:"public"`
}

// InstructionDocument is one instruction with its kind-specific operands.
type InstructionDocument struct {
	Kind     string    `json:"kind" yaml:"kind" mapstructure:"kind"`
	LineID   string    `json:"line_id,omitempty" yaml:"line_id,omitempty" mapstructure:"line_id"`
	Operands *Operands `json:"operands,omitempty" yaml:"operands,omitempty" mapstructure:"operands"`
}

// Operands is the union of every instruction operand.
type Operands struct {
	// line
	Text   string `json:"text,omitempty" yaml:"text,omitempty" mapstructure:"text"`
	Length int    `json:"length,omitempty" yaml:"length,omitempty" mapstructure:"length"`

	// set_var
	Var   string `json:"var,omitempty" yaml:"var,omitempty" mapstructure:"var"`
	Op    string `json:"op,omitempty" yaml:"op,omitempty" mapstructure:"op"`
	Type  string `json:"type,omitempty" yaml:"type,omitempty" mapstructure:"type"`
	Value any    `json:"value,omitempty" yaml:"value,omitempty" mapstructure:"value"`

	// event
	Threshold    int    `json:"threshold,omitempty" yaml:"threshold,omitempty" mapstructure:"threshold"`
	ThresholdVar string `json:"threshold_var,omitempty" yaml:"threshold_var,omitempty" mapstructure:"threshold_var"`
	ID           string `json:"id,omitempty" yaml:"id,omitempty" mapstructure:"id"`
	Args         []any  `json:"args,omitempty" yaml:"args,omitempty" mapstructure:"args"`

	// choice
	Options []OptionDocument `json:"options,omitempty" yaml:"options,omitempty" mapstructure:"options"`
	SaveTo  string           `json:"save_to,omitempty" yaml:"save_to,omitempty" mapstructure:"save_to"`

	// jump, call, branch_if_false
	Target *int `json:"target,omitempty" yaml:"target,omitempty" mapstructure:"target"`
	// Cond is either a variable name or a condition tree (map).
	Cond any `json:"cond,omitempty" yaml:"cond,omitempty" mapstructure:"cond"`
}

// OptionDocument is one choice option.
type OptionDocument struct {
	Text   string `json:"text" yaml:"text" mapstructure:"text"`
	Target int    `json:"target" yaml:"target" mapstructure:"target"`
}
