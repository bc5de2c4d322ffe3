package validator

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/cadence/internal/runtime"
	"github.com/aretw0/cadence/pkg/domain"
	"github.com/aretw0/cadence/pkg/variables"
)

// Source serves compiled, structurally valid programs by name.
// *cadence.Engine satisfies it.
type Source interface {
	Programs() ([]string, error)
	Program(name string) (*domain.Program, error)
}

// Report is the outcome of validating one program. Err is fatal (the program
// cannot be loaded); Warnings are lint findings on a loadable program.
type Report struct {
	Program  string
	Err      error
	Warnings []string
}

// OK reports whether the program loads.
func (r Report) OK() bool { return r.Err == nil }

// ValidateAll validates every program the source lists.
func ValidateAll(src Source) ([]Report, error) {
	names, err := src.Programs()
	if err != nil {
		return nil, err
	}
	reports := make([]Report, 0, len(names))
	for _, name := range names {
		reports = append(reports, Validate(src, name))
	}
	return reports, nil
}

// Validate loads one program and lints it.
func Validate(src Source, name string) Report {
	p, err := src.Program(name)
	if err != nil {
		return Report{Program: name, Err: err}
	}
	return Report{Program: name, Warnings: Lint(p)}
}

// Lint reports unreachable instructions and variables that are read but never
// declared, assigned or used as a choice target. A branch placeholder reads
// the variables its cases are selected by.
func Lint(p *domain.Program) []string {
	var warnings []string

	reach := reachable(p)
	var dead []string
	for i, ok := range reach {
		if !ok {
			dead = append(dead, fmt.Sprint(i))
		}
	}
	if len(dead) > 0 {
		warnings = append(warnings, "unreachable instructions: "+strings.Join(dead, ", "))
	}

	written := make(map[string]bool)
	for _, d := range p.Variables {
		written[d.Name] = true
	}
	for _, ins := range p.Instructions {
		switch {
		case ins.Kind == domain.KindSetVar:
			written[ins.Var] = true
		case ins.Kind == domain.KindChoice && ins.SaveTo != "":
			written[ins.SaveTo] = true
		}
	}

	branches := make(map[string]*domain.Branch)
	for _, d := range p.Variables {
		if d.Branch != nil {
			branches[d.Name] = d.Branch
		}
	}

	read := make(map[string]int)
	for i, ins := range p.Instructions {
		for _, name := range reads(ins, branches) {
			if _, seen := read[name]; !seen {
				read[name] = i
			}
		}
	}
	names := make([]string, 0, len(read))
	for name := range read {
		if !written[name] {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		warnings = append(warnings, fmt.Sprintf("instruction %d: variable %q is never set", read[name], name))
	}
	return warnings
}

func reachable(p *domain.Program) []bool {
	seen := make([]bool, len(p.Instructions))
	queue := []int{0}
	for len(queue) > 0 {
		pc := queue[0]
		queue = queue[1:]
		if pc < 0 || pc >= len(seen) || seen[pc] {
			continue
		}
		seen[pc] = true
		ins := p.Instructions[pc]
		queue = append(queue, ins.Targets()...)
		if !ins.Kind.Terminator() {
			queue = append(queue, pc+1)
		}
	}
	return seen
}

func reads(ins domain.Instruction, branches map[string]*domain.Branch) []string {
	var out []string
	switch ins.Kind {
	case domain.KindLine:
		_, errs := runtime.Interpolate(ins.Text, variables.New())
		for _, err := range errs {
			var unset *domain.UnsetVariableError
			if !errors.As(err, &unset) {
				continue
			}
			b, ok := branches[unset.Variable]
			if !ok {
				out = append(out, unset.Variable)
				continue
			}
			if b.On != "" {
				out = append(out, b.On)
				continue
			}
			for _, c := range b.Cases {
				out = append(out, c.When)
			}
		}
	case domain.KindEvent:
		if ins.ThresholdVar != "" {
			out = append(out, ins.ThresholdVar)
		}
	case domain.KindBranchIfFalse:
		out = identifiers(ins.Cond, out)
	}
	return out
}

func identifiers(c *domain.Condition, out []string) []string {
	if c == nil {
		return out
	}
	if c.Type == domain.CondIdentifier {
		out = append(out, c.Name)
	}
	out = identifiers(c.Left, out)
	out = identifiers(c.Right, out)
	out = identifiers(c.Operand, out)
	for _, a := range c.Args {
		out = identifiers(a, out)
	}
	return out
}
