package dsl

import "github.com/aretw0/cadence/pkg/domain"

// Enum declares a named set of string variants.
func (b *Builder) Enum(name string, variants ...string) *Builder {
	b.enums = append(b.enums, domain.EnumDecl{Name: name, Variants: variants})
	return b
}

// EnumVar declares a variable constrained to the variants of enum. An empty
// initial starts it at the first variant.
func (b *Builder) EnumVar(name, enum, initial string) *Builder {
	d := domain.VariableDecl{Name: name, Type: domain.TypeString, Enum: enum}
	if initial != "" {
		d.Value = domain.String(initial)
	}
	b.vars = append(b.vars, d)
	return b
}

// Branch declares a branch variable. With on set to an enum variable the
// case matching its variant renders; otherwise the first case whose When
// names a true boolean variable does.
func (b *Builder) Branch(name, on string, cases ...Case) *Builder {
	br := &domain.Branch{On: on}
	for _, c := range cases {
		br.Cases = append(br.Cases, c.BranchCase)
	}
	b.vars = append(b.vars, domain.VariableDecl{Name: name, Branch: br})
	return b
}

// Const declares a program constant. Public constants are reported once when
// the program is loaded.
func (b *Builder) Const(name string, v domain.Value, public bool) *Builder {
	b.consts = append(b.consts, domain.Constant{Name: name, Value: v, Public: public})
	return b
}

// Case is one branch case under construction.
type Case struct {
	domain.BranchCase
}

// When builds a case rendering text.
func When(when, text string) Case {
	return Case{domain.BranchCase{When: when, Text: text}}
}

// At places an event offset characters into the case text.
func (c Case) At(offset int, id string, args ...domain.Value) Case {
	c.Events = append(append([]domain.BranchEvent(nil), c.Events...), domain.BranchEvent{
		Offset: offset,
		Event:  domain.EventPayload{ID: id, Args: args},
	})
	return c
}
