package runtime

import (
	"fmt"

	"github.com/aretw0/cadence/pkg/domain"
)

// Validate checks that a program can be interpreted safely: every kind is
// known, every target is in range, every choice has options and control
// can never run past the last instruction. Violations are ScriptCorruptErrors.
func Validate(p *domain.Program) error {
	if p == nil || len(p.Instructions) == 0 {
		return &domain.ScriptCorruptError{PC: 0, Reason: "program has no instructions"}
	}

	decls, err := validateDecls(p)
	if err != nil {
		return err
	}

	lines := make(map[string]bool)
	for _, ins := range p.Instructions {
		if ins.Kind == domain.KindLine {
			lines[ins.LineID] = true
		}
	}

	n := len(p.Instructions)
	for pc, ins := range p.Instructions {
		corrupt := func(format string, args ...any) error {
			return &domain.ScriptCorruptError{PC: pc, LineID: ins.LineID, Reason: fmt.Sprintf(format, args...)}
		}

		if !ins.Kind.Valid() {
			return corrupt("unknown instruction kind %q", ins.Kind)
		}
		for _, t := range ins.Targets() {
			if t < 0 || t >= n {
				return corrupt("%s target %d out of range [0,%d)", ins.Kind, t, n)
			}
		}

		switch ins.Kind {
		case domain.KindLine:
			if ins.LineID == "" {
				return corrupt("line without line_id")
			}
			if ins.Length < 0 {
				return corrupt("negative line length %d", ins.Length)
			}
		case domain.KindSetVar:
			if ins.Var == "" {
				return corrupt("set_var without variable name")
			}
			if ins.Op != "" && ins.Op != domain.OpSet && ins.Op != domain.OpAdd {
				return corrupt("set_var with unknown op %q", ins.Op)
			}
			if !ins.Value.Type.Valid() {
				return corrupt("set_var %q without a typed value", ins.Var)
			}
			d := decls[ins.Var]
			if d.Branch != nil {
				return corrupt("set_var assigns branch variable %q", ins.Var)
			}
			if d.Enum != "" {
				e, _ := p.Enum(d.Enum)
				if ins.Op == domain.OpAdd || ins.Value.Type != domain.TypeString {
					return corrupt("set_var %q must assign a variant of %s", ins.Var, e.Name)
				}
				if _, ok := e.Variant(ins.Value.Str); !ok {
					return corrupt("set_var %q: %q is not a variant of %s", ins.Var, ins.Value.Str, e.Name)
				}
			}
		case domain.KindEvent:
			if ins.Event.ID == "" {
				return corrupt("event without id")
			}
			if ins.Threshold < 0 {
				return corrupt("negative event threshold %d", ins.Threshold)
			}
			if ins.LineID != "" && !lines[ins.LineID] {
				return corrupt("event bound to unknown line %q", ins.LineID)
			}
			for _, a := range ins.Event.Args {
				if !a.Type.Valid() {
					return corrupt("event %q has an untyped argument", ins.Event.ID)
				}
			}
		case domain.KindChoice:
			if len(ins.Options) == 0 {
				return corrupt("choice with zero options")
			}
		case domain.KindBranchIfFalse:
			if err := ins.Cond.Check(); err != nil {
				return corrupt("invalid condition: %v", err)
			}
		}
	}

	if last := p.Instructions[n-1]; !last.Kind.Terminator() {
		return &domain.ScriptCorruptError{PC: n - 1, LineID: last.LineID, Reason: fmt.Sprintf("program ends with %s; control would run past the last instruction", last.Kind)}
	}
	return nil
}

// validateDecls checks enum, variable and constant declarations and returns
// the variables by name.
func validateDecls(p *domain.Program) (map[string]domain.VariableDecl, error) {
	corrupt := func(format string, args ...any) error {
		return &domain.ScriptCorruptError{PC: -1, Reason: fmt.Sprintf(format, args...)}
	}

	enums := make(map[string]domain.EnumDecl, len(p.Enums))
	for _, e := range p.Enums {
		if e.Name == "" {
			return nil, corrupt("enum declaration without name")
		}
		if _, dup := enums[e.Name]; dup {
			return nil, corrupt("enum %q declared twice", e.Name)
		}
		if len(e.Variants) == 0 {
			return nil, corrupt("enum %q has no variants", e.Name)
		}
		variants := make(map[string]bool, len(e.Variants))
		for _, v := range e.Variants {
			if v == "" || variants[v] {
				return nil, corrupt("enum %q has an empty or repeated variant %q", e.Name, v)
			}
			variants[v] = true
		}
		enums[e.Name] = e
	}

	decls := make(map[string]domain.VariableDecl, len(p.Variables))
	for _, d := range p.Variables {
		if d.Name == "" {
			return nil, corrupt("variable declaration without name")
		}
		if _, dup := decls[d.Name]; dup {
			return nil, corrupt("variable %q declared twice", d.Name)
		}
		decls[d.Name] = d
	}

	for _, d := range p.Variables {
		switch {
		case d.Branch != nil:
			if d.Type != "" || d.Enum != "" || !d.Value.IsZero() {
				return nil, corrupt("branch variable %q cannot have a type, enum or value", d.Name)
			}
			if err := validateBranch(d.Name, d.Branch, decls, enums); err != nil {
				return nil, err
			}
		case d.Enum != "":
			e, ok := enums[d.Enum]
			if !ok {
				return nil, corrupt("variable %q uses unknown enum %q", d.Name, d.Enum)
			}
			if d.Type != domain.TypeString {
				return nil, corrupt("enum variable %q must have type string", d.Name)
			}
			if !d.Value.IsZero() {
				if _, ok := e.Variant(d.Value.Str); !ok || d.Value.Type != domain.TypeString {
					return nil, corrupt("variable %q starts at %s, not a variant of %s", d.Name, d.Value.Display(), e.Name)
				}
			}
		default:
			if !d.Type.Valid() {
				return nil, corrupt("variable %q has unknown type %q", d.Name, d.Type)
			}
			if !d.Value.IsZero() && d.Value.Type != d.Type {
				return nil, corrupt("variable %q declared %s with a %s value", d.Name, d.Type, d.Value.Type)
			}
		}
	}

	consts := make(map[string]bool, len(p.Constants))
	for _, c := range p.Constants {
		if c.Name == "" {
			return nil, corrupt("constant without name")
		}
		if consts[c.Name] {
			return nil, corrupt("constant %q declared twice", c.Name)
		}
		consts[c.Name] = true
		if !c.Value.Type.Valid() {
			return nil, corrupt("constant %q without a typed value", c.Name)
		}
	}
	return decls, nil
}

func validateBranch(name string, b *domain.Branch, decls map[string]domain.VariableDecl, enums map[string]domain.EnumDecl) error {
	corrupt := func(format string, args ...any) error {
		return &domain.ScriptCorruptError{PC: -1, Reason: fmt.Sprintf("branch %q: ", name) + fmt.Sprintf(format, args...)}
	}
	if len(b.Cases) == 0 {
		return corrupt("no cases")
	}

	var on domain.EnumDecl
	if b.On != "" {
		d, ok := decls[b.On]
		if !ok || d.Enum == "" {
			return corrupt("on %q is not an enum variable", b.On)
		}
		on = enums[d.Enum]
	}

	for _, c := range b.Cases {
		if b.On != "" {
			if _, ok := on.Variant(c.When); !ok {
				return corrupt("case %q is not a variant of %s", c.When, on.Name)
			}
		} else {
			d, ok := decls[c.When]
			if !ok || d.Type != domain.TypeBoolean {
				return corrupt("case %q is not a bool variable", c.When)
			}
		}
		for _, ev := range c.Events {
			if ev.Event.ID == "" {
				return corrupt("event without id")
			}
			if ev.Offset < 0 {
				return corrupt("event %q has negative offset %d", ev.Event.ID, ev.Offset)
			}
			for _, a := range ev.Event.Args {
				if !a.Type.Valid() {
					return corrupt("event %q has an untyped argument", ev.Event.ID)
				}
			}
		}
	}
	return nil
}
