package runtime_test

import (
	"testing"

	"github.com/aretw0/cadence/internal/runtime"
	"github.com/aretw0/cadence/pkg/domain"
	"github.com/stretchr/testify/require"
)

func line(id, text string) domain.Instruction {
	return domain.Instruction{Kind: domain.KindLine, LineID: id, Text: text}
}

func event(lineID string, threshold int, id string, args ...domain.Value) domain.Instruction {
	return domain.Instruction{
		Kind:      domain.KindEvent,
		LineID:    lineID,
		Threshold: threshold,
		Event:     domain.EventPayload{ID: id, Args: args},
	}
}

func setVar(name string, v domain.Value) domain.Instruction {
	return domain.Instruction{Kind: domain.KindSetVar, Var: name, Op: domain.OpSet, Value: v}
}

func addVar(name string, v domain.Value) domain.Instruction {
	return domain.Instruction{Kind: domain.KindSetVar, Var: name, Op: domain.OpAdd, Value: v}
}

func choice(opts ...domain.ChoiceOption) domain.Instruction {
	return domain.Instruction{Kind: domain.KindChoice, Options: opts}
}

func opt(text string, target int) domain.ChoiceOption {
	return domain.ChoiceOption{Text: text, Target: target}
}

func jump(target int) domain.Instruction {
	return domain.Instruction{Kind: domain.KindJump, Target: target}
}

func branchIfFalse(cond *domain.Condition, target int) domain.Instruction {
	return domain.Instruction{Kind: domain.KindBranchIfFalse, Cond: cond, Target: target}
}

func end() domain.Instruction {
	return domain.Instruction{Kind: domain.KindEnd}
}

func program(ins ...domain.Instruction) *domain.Program {
	return &domain.Program{Name: "test", Instructions: ins}
}

// newMachine validates the program and builds a machine over it.
func newMachine(t *testing.T, p *domain.Program, opts ...runtime.Option) *runtime.Machine {
	t.Helper()
	require.NoError(t, runtime.Validate(p))
	return runtime.NewMachine(p, opts...)
}

func eventIDs(events []domain.EventPayload) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.ID
	}
	return out
}

// finishLine steps the current line to completion and past it.
func finishLine(t *testing.T, m *runtime.Machine) domain.Snapshot {
	t.Helper()
	snap, err := m.Step(1 << 20)
	require.NoError(t, err)
	require.True(t, snap.LineComplete)
	snap, err = m.Step(1 << 20)
	require.NoError(t, err)
	return snap
}
