package dsl

import (
	"errors"
	"fmt"

	"github.com/aretw0/cadence/internal/runtime"
	"github.com/aretw0/cadence/pkg/adapters/memory"
	"github.com/aretw0/cadence/pkg/domain"
)

// Builder assembles a program instruction by instruction. Jumps, calls,
// branches and choice options refer to symbolic labels resolved by Program.
type Builder struct {
	name   string
	enums  []domain.EnumDecl
	vars   []domain.VariableDecl
	consts []domain.Constant
	ins    []domain.Instruction
	labels map[string]int
	refs   []ref
	errs   []error
}

// ref is a pending label reference. opt is -1 for Target, otherwise the
// option index of a choice.
type ref struct {
	instr int
	opt   int
	label string
}

// New creates a builder for a named program.
func New(name string) *Builder {
	return &Builder{name: name, labels: make(map[string]int)}
}

// Var declares a program variable with its initial value.
func (b *Builder) Var(name string, initial domain.Value) *Builder {
	b.vars = append(b.vars, domain.VariableDecl{Name: name, Type: initial.Type, Value: initial})
	return b
}

// Label names the position of the next instruction.
func (b *Builder) Label(name string) *Builder {
	if _, dup := b.labels[name]; dup {
		b.errs = append(b.errs, fmt.Errorf("label %q defined twice", name))
	}
	b.labels[name] = len(b.ins)
	return b
}

// Line appends a line. Events attached through the returned LineBuilder are
// appended right after it, so call At before adding further instructions.
func (b *Builder) Line(id, text string) *LineBuilder {
	b.ins = append(b.ins, domain.Instruction{Kind: domain.KindLine, LineID: id, Text: text})
	return &LineBuilder{Builder: b, idx: len(b.ins) - 1}
}

// Emit appends an unbound event, fired as soon as execution reaches it.
func (b *Builder) Emit(id string, args ...domain.Value) *Builder {
	b.ins = append(b.ins, domain.Instruction{Kind: domain.KindEvent, Event: domain.EventPayload{ID: id, Args: args}})
	return b
}

// Set appends a set_var assignment.
func (b *Builder) Set(name string, v domain.Value) *Builder {
	b.ins = append(b.ins, domain.Instruction{Kind: domain.KindSetVar, Var: name, Op: domain.OpSet, Value: v})
	return b
}

// Add appends an additive set_var (numbers add, strings concatenate).
func (b *Builder) Add(name string, v domain.Value) *Builder {
	b.ins = append(b.ins, domain.Instruction{Kind: domain.KindSetVar, Var: name, Op: domain.OpAdd, Value: v})
	return b
}

// Jump appends an unconditional jump to label.
func (b *Builder) Jump(label string) *Builder {
	return b.targeted(domain.Instruction{Kind: domain.KindJump}, label)
}

// Call appends a subroutine call to label.
func (b *Builder) Call(label string) *Builder {
	return b.targeted(domain.Instruction{Kind: domain.KindCall}, label)
}

// Return appends a return from the current subroutine.
func (b *Builder) Return() *Builder {
	b.ins = append(b.ins, domain.Instruction{Kind: domain.KindReturn})
	return b
}

// Unless appends a branch_if_false: execution continues when cond holds and
// jumps to label otherwise.
func (b *Builder) Unless(cond *domain.Condition, label string) *Builder {
	return b.targeted(domain.Instruction{Kind: domain.KindBranchIfFalse, Cond: cond}, label)
}

// If is Unless with the condition negated: it jumps to label when cond holds.
func (b *Builder) If(cond *domain.Condition, label string) *Builder {
	return b.Unless(domain.Not(cond), label)
}

// Choice appends a choice point.
func (b *Builder) Choice(options ...Option) *ChoiceBuilder {
	ins := domain.Instruction{Kind: domain.KindChoice, Options: make([]domain.ChoiceOption, len(options))}
	b.ins = append(b.ins, ins)
	idx := len(b.ins) - 1
	for i, o := range options {
		b.ins[idx].Options[i].Text = o.Text
		b.refs = append(b.refs, ref{instr: idx, opt: i, label: o.Label})
	}
	return &ChoiceBuilder{Builder: b, idx: idx}
}

// End appends an end instruction.
func (b *Builder) End() *Builder {
	b.ins = append(b.ins, domain.Instruction{Kind: domain.KindEnd})
	return b
}

func (b *Builder) targeted(ins domain.Instruction, label string) *Builder {
	b.ins = append(b.ins, ins)
	b.refs = append(b.refs, ref{instr: len(b.ins) - 1, opt: -1, label: label})
	return b
}

// Program resolves labels and validates the result.
func (b *Builder) Program() (*domain.Program, error) {
	errs := append([]error(nil), b.errs...)

	ins := make([]domain.Instruction, len(b.ins))
	copy(ins, b.ins)
	for i := range ins {
		if ins[i].Options != nil {
			ins[i].Options = append([]domain.ChoiceOption(nil), ins[i].Options...)
		}
	}

	for _, r := range b.refs {
		target, ok := b.labels[r.label]
		if !ok {
			errs = append(errs, fmt.Errorf("instruction %d: unknown label %q", r.instr, r.label))
			continue
		}
		if r.opt < 0 {
			ins[r.instr].Target = target
		} else {
			ins[r.instr].Options[r.opt].Target = target
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	p := &domain.Program{
		Name:         b.name,
		Enums:        append([]domain.EnumDecl(nil), b.enums...),
		Variables:    append([]domain.VariableDecl(nil), b.vars...),
		Constants:    append([]domain.Constant(nil), b.consts...),
		Instructions: ins,
	}
	if err := runtime.Validate(p); err != nil {
		return nil, err
	}
	return p, nil
}

// MustProgram is Program for tests and examples; it panics on error.
func (b *Builder) MustProgram() *domain.Program {
	p, err := b.Program()
	if err != nil {
		panic(err)
	}
	return p
}

// Build compiles the program into a memory loader serving it under its name.
func (b *Builder) Build() (*memory.Loader, error) {
	p, err := b.Program()
	if err != nil {
		return nil, err
	}
	loader, err := memory.NewFromPrograms(p)
	if err != nil {
		return nil, fmt.Errorf("failed to build memory loader: %w", err)
	}
	return loader, nil
}
