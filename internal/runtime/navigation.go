package runtime

import (
	"github.com/aretw0/cadence/pkg/domain"
)

// SubmitChoice selects an option of the pending choice. An out-of-range
// index returns an InvalidChoiceError and leaves the session untouched.
// Execution resumes at the option target on the next Step.
func (m *Machine) SubmitChoice(index int) error {
	if err := m.terminalErr(); err != nil {
		return err
	}
	if m.state != domain.StateAwaitingChoice {
		return domain.ErrNotAwaitingChoice
	}

	ins := m.program.Instructions[m.pc]
	if index < 0 || index >= len(ins.Options) {
		return &domain.InvalidChoiceError{Index: index, Options: len(ins.Options)}
	}
	opt := ins.Options[index]

	if ins.SaveTo != "" {
		if err := m.vars.Set(ins.SaveTo, domain.Number(float64(index))); err != nil {
			m.diagnose(domain.DiagTypeMismatch, ins.SaveTo, err)
		}
	}

	if m.hooks.OnChoice != nil {
		m.hooks.OnChoice(&domain.ChoiceEvent{
			HookBase: m.hookBase(domain.HookChoice, m.pc),
			Index:    index,
			Text:     opt.Text,
			Target:   opt.Target,
		})
	}
	m.logger.Debug("Choice submitted", "pc", m.pc, "index", index, "target", opt.Target)

	if m.line != nil {
		m.line.complete = true
		m.line.released = true
	}
	m.pc = opt.Target
	m.state = domain.StateBranching
	return nil
}

// ResetLine fires every remaining event of the line on screen, in threshold
// order, and returns them. The line counts as complete and the next Step
// moves past it whatever progress it carries. Outside of a presenting line
// it does nothing.
func (m *Machine) ResetLine() ([]domain.EventPayload, error) {
	if err := m.terminalErr(); err != nil {
		return nil, err
	}
	l := m.line
	if m.state != domain.StatePresenting || l == nil || l.released {
		return nil, nil
	}

	fired := m.fire(l.table.Flush())
	l.progress = max(l.progress, l.length)
	l.complete = true
	l.released = true
	return fired, nil
}
