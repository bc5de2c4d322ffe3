package domain

import (
	"fmt"
	"strings"
)

// ConditionType is the node type of a condition tree.
type ConditionType string

const (
	CondIdentifier ConditionType = "identifier"
	CondLiteral    ConditionType = "literal"
	CondBinary     ConditionType = "binary"
	CondUnary      ConditionType = "unary"
	CondCall       ConditionType = "call"
)

// Binary and unary operators understood by the evaluator.
const (
	OpEq  = "=="
	OpNe  = "!="
	OpLt  = "<"
	OpLe  = "<="
	OpGt  = ">"
	OpGe  = ">="
	OpAnd = "&&"
	OpOr  = "||"
	OpNot = "!"
)

// Condition is a boolean expression evaluated against a variable store.
type Condition struct {
	Type ConditionType `json:"type"`

	// identifier
	Name string `json:"name,omitempty"`
	// literal
	Value Value `json:"value,omitzero"`
	// binary / unary
	Op      string     `json:"op,omitempty"`
	Left    *Condition `json:"left,omitempty"`
	Right   *Condition `json:"right,omitempty"`
	Operand *Condition `json:"operand,omitempty"`
	// call
	Func string       `json:"func,omitempty"`
	Args []*Condition `json:"args,omitempty"`
}

// Var is shorthand for an identifier condition.
func Var(name string) *Condition {
	return &Condition{Type: CondIdentifier, Name: name}
}

// Lit is shorthand for a literal condition.
func Lit(v Value) *Condition {
	return &Condition{Type: CondLiteral, Value: v}
}

// Bin is shorthand for a binary condition.
func Bin(op string, left, right *Condition) *Condition {
	return &Condition{Type: CondBinary, Op: op, Left: left, Right: right}
}

// Not negates a condition.
func Not(c *Condition) *Condition {
	return &Condition{Type: CondUnary, Op: OpNot, Operand: c}
}

// Check validates the shape of the tree.
func (c *Condition) Check() error {
	if c == nil {
		return fmt.Errorf("empty condition")
	}
	switch c.Type {
	case CondIdentifier:
		if c.Name == "" {
			return fmt.Errorf("identifier without name")
		}
	case CondLiteral:
		if !c.Value.Type.Valid() {
			return fmt.Errorf("literal without a valid value")
		}
	case CondBinary:
		switch c.Op {
		case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe, OpAnd, OpOr:
		default:
			return fmt.Errorf("unknown binary operator %q", c.Op)
		}
		if err := c.Left.Check(); err != nil {
			return err
		}
		return c.Right.Check()
	case CondUnary:
		if c.Op != OpNot {
			return fmt.Errorf("unknown unary operator %q", c.Op)
		}
		return c.Operand.Check()
	case CondCall:
		if c.Func == "" {
			return fmt.Errorf("call without function name")
		}
		for _, a := range c.Args {
			if err := a.Check(); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unknown condition type %q", c.Type)
	}
	return nil
}

// String renders the condition in infix form, used by listings and graphs.
func (c *Condition) String() string {
	if c == nil {
		return ""
	}
	switch c.Type {
	case CondIdentifier:
		return c.Name
	case CondLiteral:
		if c.Value.Type == TypeString {
			return fmt.Sprintf("%q", c.Value.Str)
		}
		return c.Value.Display()
	case CondBinary:
		return fmt.Sprintf("(%s %s %s)", c.Left, c.Op, c.Right)
	case CondUnary:
		return c.Op + c.Operand.String()
	case CondCall:
		args := make([]string, len(c.Args))
		for i, a := range c.Args {
			args[i] = a.String()
		}
		return fmt.Sprintf("%s(%s)", c.Func, strings.Join(args, ", "))
	}
	return "?"
}
