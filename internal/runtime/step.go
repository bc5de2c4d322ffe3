package runtime

import (
	"fmt"
	"time"

	"github.com/aretw0/cadence/pkg/binding"
	"github.com/aretw0/cadence/pkg/domain"
)

// Step advances the session with the host progress index of the current line.
//
// A progress lower than the last one seen on the current line is a no-op.
// Otherwise due events fire, and once the line is complete (progress reached
// its length) the next Step moves past it. At most one new line is entered
// per call; the new line starts at progress zero.
func (m *Machine) Step(progress int) (domain.Snapshot, error) {
	if err := m.terminalErr(); err != nil {
		return m.Snapshot(), err
	}

	if l := m.line; l != nil && m.state == domain.StatePresenting && !l.released {
		if progress < l.progress {
			return m.Snapshot(), nil
		}
		if l.complete {
			l.released = true
		} else {
			m.advance(l, progress)
		}
	}

	if m.state != domain.StateAwaitingChoice {
		m.run()
	}
	return m.Snapshot(), m.err
}

func (m *Machine) advance(l *presentation, progress int) {
	l.progress = progress
	m.pending = append(m.pending, m.fire(l.table.Advance(progress))...)
	if progress >= l.length {
		l.complete = true
	}
}

// run interprets instructions until the session has to wait for the host.
func (m *Machine) run() {
	executed := 0
	for {
		if executed >= m.loopGuard {
			m.fail(m.pc, fmt.Sprintf("unbounded loop: %d instructions executed without reaching a line or end", executed))
			return
		}

		ins := &m.program.Instructions[m.pc]
		switch ins.Kind {
		case domain.KindLine:
			if m.line != nil && !m.line.released {
				return
			}
			m.enterLine(m.pc, ins)
			m.pc++
			executed = 0
			continue

		case domain.KindEnd:
			if m.line != nil && !m.line.released {
				return
			}
			m.finish()
			return

		case domain.KindChoice:
			if m.line != nil && !m.line.complete {
				return
			}
			m.state = domain.StateAwaitingChoice
			m.logger.Debug("Awaiting choice", "pc", m.pc, "options", len(ins.Options))
			return

		case domain.KindEvent:
			if ins.Bound() {
				// Bound events are delivered by their line's table; the program
				// counter only waits on those of the line on screen.
				if m.line != nil && !m.line.released && m.line.table.Has(m.pc) && !m.line.table.Fired(m.pc) {
					return
				}
			} else {
				m.pending = append(m.pending, m.fire([]binding.Fired{{
					Binding: binding.Binding{Instr: m.pc, Payload: ins.Event},
				}})...)
			}
			m.pc++

		case domain.KindSetVar:
			if err := m.vars.Apply(ins.Var, ins.Op, ins.Value); err != nil {
				m.diagnose(domain.DiagTypeMismatch, ins.Var, err)
			}
			m.pc++

		case domain.KindJump:
			m.pc = ins.Target

		case domain.KindBranchIfFalse:
			if m.truthy(m.eval(ins.Cond)) {
				m.pc++
			} else {
				m.pc = ins.Target
			}

		case domain.KindCall:
			if len(m.stack) >= m.maxDepth {
				m.fail(m.pc, fmt.Sprintf("call stack overflow (max depth %d)", m.maxDepth))
				return
			}
			m.stack = append(m.stack, m.pc+1)
			m.pc = ins.Target

		case domain.KindReturn:
			if len(m.stack) == 0 {
				m.fail(m.pc, "return with empty call stack")
				return
			}
			m.pc = m.stack[len(m.stack)-1]
			m.stack = m.stack[:len(m.stack)-1]

		default:
			m.fail(m.pc, fmt.Sprintf("unknown instruction kind %q", ins.Kind))
			return
		}
		executed++
	}
}

func (m *Machine) enterLine(pc int, ins *domain.Instruction) {
	rendered, errs := m.interpolator(ins.Text, m.vars)
	for _, err := range errs {
		m.diagnoseErr(err)
	}
	text := rendered.Text

	// Thresholds count characters of the source text unless the line has an
	// explicit length, in which case they are in the host's own units.
	place := rendered.Position
	if ins.Length > 0 {
		place = func(p int) int { return p }
	}

	idx := m.bindIndex[ins.LineID]
	bs := make([]binding.Binding, 0, len(rendered.Events)+len(idx))
	for k, pe := range rendered.Events {
		bs = append(bs, binding.Binding{Threshold: max(pe.Position, 0), Seq: k, Instr: -(k + 1), Payload: pe.Event})
	}
	for seq, at := range idx {
		ev := m.program.Instructions[at]
		threshold := ev.Threshold
		if ev.ThresholdVar != "" {
			v, err := m.vars.Get(ev.ThresholdVar, domain.TypeNumber)
			if err != nil {
				m.diagnoseErr(err)
			}
			threshold = max(int(v.Num), 0)
		}
		bs = append(bs, binding.Binding{Threshold: place(threshold), Seq: len(rendered.Events) + seq, Instr: at, Payload: ev.Event})
	}
	table := binding.New(ins.LineID, bs)

	length := ins.Length
	if length <= 0 {
		length = m.measure(text)
	}
	length = max(length, table.MaxThreshold())

	m.line = &presentation{
		pc:     pc,
		lineID: ins.LineID,
		text:   text,
		length: length,
		table:  table,
	}
	m.state = domain.StatePresenting

	m.logger.Debug("Line enter", "pc", pc, "line_id", ins.LineID, "length", length, "bindings", table.Len())
	if m.hooks.OnLineEnter != nil {
		m.hooks.OnLineEnter(&domain.LineEvent{
			HookBase: m.hookBase(domain.HookLineEnter, pc),
			LineID:   ins.LineID,
			Text:     text,
			Length:   length,
		})
	}

	m.advance(m.line, 0)
}

// fire converts fired bindings into payloads, notifying hooks in order.
func (m *Machine) fire(fired []binding.Fired) []domain.EventPayload {
	if len(fired) == 0 {
		return nil
	}
	out := make([]domain.EventPayload, len(fired))
	lineID := ""
	if m.line != nil {
		lineID = m.line.lineID
	}
	for i, f := range fired {
		out[i] = f.Payload
		m.logger.Debug("Event fired", "event", f.Payload.ID, "threshold", f.Threshold, "progress", f.Progress)
		if m.hooks.OnEventFired != nil {
			// Branch events have no instruction of their own.
			at := f.Instr
			if at < 0 && m.line != nil {
				at = m.line.pc
			}
			m.hooks.OnEventFired(&domain.FiredEvent{
				HookBase:  m.hookBase(domain.HookEventFired, at),
				LineID:    lineID,
				Threshold: f.Threshold,
				Progress:  f.Progress,
				Payload:   f.Payload,
			})
		}
	}
	return out
}

func (m *Machine) finish() {
	m.state = domain.StateFinished
	if m.line != nil {
		m.line.complete = true
		m.line.released = true
	}
	m.logger.Debug("Session finished", "pc", m.pc)
	if m.hooks.OnFinish != nil {
		base := m.hookBase(domain.HookFinish, m.pc)
		m.hooks.OnFinish(&base)
	}
}

// fail moves the machine to the errored state. The error is returned by
// every later call.
func (m *Machine) fail(pc int, reason string) {
	lineID := ""
	if pc >= 0 && pc < len(m.program.Instructions) {
		lineID = m.program.Instructions[pc].LineID
	}
	m.err = &domain.ScriptCorruptError{PC: pc, LineID: lineID, Reason: reason}
	m.state = domain.StateErrored

	m.logger.Error("Script corrupt", "pc", pc, "err", m.err)
	if m.hooks.OnError != nil {
		m.hooks.OnError(&domain.ErrorEvent{HookBase: m.hookBase(domain.HookError, pc), Err: m.err})
	}
}

func (m *Machine) hookBase(t domain.HookType, pc int) domain.HookBase {
	return domain.HookBase{
		Timestamp: time.Now(),
		Type:      t,
		Program:   m.program.Name,
		SessionID: m.sessionID,
		PC:        pc,
	}
}
