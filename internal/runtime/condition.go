package runtime

import (
	"errors"
	"fmt"

	"github.com/aretw0/cadence/pkg/domain"
	"github.com/aretw0/cadence/pkg/registry"
)

// eval computes a condition node. Unset identifiers evaluate to the untyped
// zero Value with a diagnostic; operators substitute the zero value of the
// other operand's type.
func (m *Machine) eval(c *domain.Condition) domain.Value {
	switch c.Type {
	case domain.CondIdentifier:
		v, ok := m.vars.Lookup(c.Name)
		if !ok {
			m.diagnoseErr(&domain.UnsetVariableError{Variable: c.Name})
			return domain.Value{}
		}
		return v

	case domain.CondLiteral:
		return c.Value

	case domain.CondUnary:
		return domain.Boolean(!m.truthy(m.eval(c.Operand)))

	case domain.CondBinary:
		return m.evalBinary(c)

	case domain.CondCall:
		return m.evalCall(c)
	}
	m.diagnose(domain.DiagTypeMismatch, "", fmt.Errorf("unknown condition type %q", c.Type))
	return domain.Value{}
}

func (m *Machine) evalBinary(c *domain.Condition) domain.Value {
	switch c.Op {
	case domain.OpAnd:
		if !m.truthy(m.eval(c.Left)) {
			return domain.Boolean(false)
		}
		return domain.Boolean(m.truthy(m.eval(c.Right)))
	case domain.OpOr:
		if m.truthy(m.eval(c.Left)) {
			return domain.Boolean(true)
		}
		return domain.Boolean(m.truthy(m.eval(c.Right)))
	}

	l, r := m.eval(c.Left), m.eval(c.Right)
	switch {
	case l.IsZero() && !r.IsZero():
		l = domain.Zero(r.Type)
	case r.IsZero() && !l.IsZero():
		r = domain.Zero(l.Type)
	}

	if l.Type != r.Type {
		m.diagnose(domain.DiagTypeMismatch, "", &domain.TypeMismatchError{
			Expected: l.Type, Actual: r.Type, Detail: "operator " + c.Op,
		})
		return domain.Boolean(false)
	}

	switch c.Op {
	case domain.OpEq:
		return domain.Boolean(l.Equal(r))
	case domain.OpNe:
		return domain.Boolean(!l.Equal(r))
	}

	if l.Type != domain.TypeNumber {
		m.diagnose(domain.DiagTypeMismatch, "", &domain.TypeMismatchError{
			Expected: domain.TypeNumber, Actual: l.Type, Detail: "operator " + c.Op,
		})
		return domain.Boolean(false)
	}
	switch c.Op {
	case domain.OpLt:
		return domain.Boolean(l.Num < r.Num)
	case domain.OpLe:
		return domain.Boolean(l.Num <= r.Num)
	case domain.OpGt:
		return domain.Boolean(l.Num > r.Num)
	case domain.OpGe:
		return domain.Boolean(l.Num >= r.Num)
	}
	return domain.Boolean(false)
}

func (m *Machine) evalCall(c *domain.Condition) domain.Value {
	if m.funcs == nil {
		m.diagnose(domain.DiagUnknownFunction, "", fmt.Errorf("no host functions registered, cannot call %q", c.Func))
		return domain.Value{}
	}
	args := make([]domain.Value, len(c.Args))
	for i, a := range c.Args {
		args[i] = m.eval(a)
	}
	v, err := m.funcs.Call(c.Func, args)
	if err != nil {
		kind := domain.DiagFunctionFailed
		if errors.Is(err, registry.ErrFunctionNotFound) {
			kind = domain.DiagUnknownFunction
		}
		m.diagnose(kind, "", err)
		return domain.Value{}
	}
	return v
}

// truthy interprets a value in a boolean position. Unset values are false;
// non-boolean values are false with a type mismatch diagnostic.
func (m *Machine) truthy(v domain.Value) bool {
	switch v.Type {
	case "":
		return false
	case domain.TypeBoolean:
		return v.Bool
	}
	m.diagnose(domain.DiagTypeMismatch, "", &domain.TypeMismatchError{Expected: domain.TypeBoolean, Actual: v.Type})
	return false
}

// diagnoseErr classifies err and records it.
func (m *Machine) diagnoseErr(err error) {
	var unset *domain.UnsetVariableError
	var mismatch *domain.TypeMismatchError
	switch {
	case errors.As(err, &unset):
		m.diagnose(domain.DiagUnsetVariable, unset.Variable, err)
	case errors.As(err, &mismatch):
		m.diagnose(domain.DiagTypeMismatch, mismatch.Variable, err)
	default:
		m.diagnose(domain.DiagFunctionFailed, "", err)
	}
}

func (m *Machine) diagnose(kind domain.DiagnosticKind, name string, err error) {
	d := domain.Diagnostic{Kind: kind, PC: m.pc, Var: name, Message: err.Error()}
	m.diags = append(m.diags, d)

	m.logger.Warn("Recoverable script condition", "kind", kind, "pc", m.pc, "var", name, "err", err)
	if m.hooks.OnDiagnostic != nil {
		m.hooks.OnDiagnostic(&domain.DiagnosticEvent{
			HookBase:   m.hookBase(domain.HookDiagnostic, m.pc),
			Diagnostic: d,
		})
	}
}
