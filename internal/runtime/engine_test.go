package runtime_test

import (
	"testing"

	"github.com/aretw0/cadence/internal/runtime"
	"github.com/aretw0/cadence/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMachine_IndexBoundEvent(t *testing.T) {
	m := newMachine(t, program(
		line("l1", "Hello"),
		event("l1", 3, "sound:beep"),
		line("l2", "Bye"),
		end(),
	))
	assert.Equal(t, domain.StateIdle, m.State())

	snap, err := m.Step(0)
	require.NoError(t, err)
	assert.Equal(t, domain.StatePresenting, snap.State)
	assert.Equal(t, "Hello", snap.Text)
	assert.Empty(t, snap.PendingEvents)

	snap, err = m.Step(3)
	require.NoError(t, err)
	assert.Equal(t, []string{"sound:beep"}, eventIDs(snap.PendingEvents))
	assert.Equal(t, "Hello", snap.Text)

	snap, err = m.Step(5)
	require.NoError(t, err)
	assert.Empty(t, snap.PendingEvents)
	assert.True(t, snap.LineComplete)
	assert.Equal(t, "Hello", snap.Text, "completing a line does not leave it")

	snap, err = m.Step(5)
	require.NoError(t, err)
	assert.Equal(t, "Bye", snap.Text)
	assert.Equal(t, 0, snap.Progress, "progress restarts on a new line")
	assert.Empty(t, snap.PendingEvents)
}

func TestMachine_InvalidChoiceKeepsState(t *testing.T) {
	m := newMachine(t, program(
		line("q", "Pick one"),
		choice(opt("Left", 2), opt("Right", 4)),
		line("left", "You went left"),
		end(),
		line("right", "You went right"),
		end(),
	))

	_, err := m.Step(0)
	require.NoError(t, err)
	snap, err := m.Step(100)
	require.NoError(t, err)
	require.Equal(t, domain.StateAwaitingChoice, snap.State)
	assert.Equal(t, []string{"Left", "Right"}, snap.Options)

	err = m.SubmitChoice(5)
	var ic *domain.InvalidChoiceError
	require.ErrorAs(t, err, &ic)
	assert.ErrorIs(t, err, domain.ErrInvalidChoice)
	assert.Equal(t, 2, ic.Options)
	assert.Equal(t, domain.StateAwaitingChoice, m.State())

	assert.ErrorIs(t, m.SubmitChoice(-1), domain.ErrInvalidChoice)
	assert.Equal(t, domain.StateAwaitingChoice, m.State())

	require.NoError(t, m.SubmitChoice(1))
	assert.Equal(t, domain.StateBranching, m.State())

	snap, err = m.Step(0)
	require.NoError(t, err)
	assert.Equal(t, "You went right", snap.Text)
}

func TestMachine_ResetLineFiresRemainingInOrder(t *testing.T) {
	m := newMachine(t, program(
		line("l1", "A long line of text"),
		event("l1", 8, "second"),
		event("l1", 5, "first"),
		line("l2", "Next"),
		end(),
	))

	_, err := m.Step(0)
	require.NoError(t, err)
	snap, err := m.Step(2)
	require.NoError(t, err)
	assert.Empty(t, snap.PendingEvents)

	fired, err := m.ResetLine()
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, eventIDs(fired))

	snap, err = m.Step(3)
	require.NoError(t, err)
	assert.Equal(t, "Next", snap.Text)
	assert.Empty(t, snap.PendingEvents, "events delivered by reset are never delivered again")
}

func TestMachine_ProgressRegressionIsNoop(t *testing.T) {
	m := newMachine(t, program(
		line("l1", "0123456789"),
		event("l1", 4, "a"),
		event("l1", 6, "b"),
		end(),
	))

	_, _ = m.Step(0)
	snap, _ := m.Step(5)
	assert.Equal(t, []string{"a"}, eventIDs(snap.PendingEvents))

	snap, err := m.Step(2)
	require.NoError(t, err)
	assert.Empty(t, snap.PendingEvents)
	assert.Equal(t, 5, snap.Progress)

	for range 3 {
		snap, _ = m.Step(5)
		assert.Empty(t, snap.PendingEvents)
	}

	snap, _ = m.Step(6)
	assert.Equal(t, []string{"b"}, eventIDs(snap.PendingEvents))
}

func TestMachine_ThresholdZeroFiresOnEntry(t *testing.T) {
	m := newMachine(t, program(
		line("l1", "Hi"),
		event("l1", 0, "camera:shake"),
		event("l1", 0, "music:start"),
		end(),
	))

	snap, err := m.Step(0)
	require.NoError(t, err)
	assert.Equal(t, []string{"camera:shake", "music:start"}, eventIDs(snap.PendingEvents))
}

func TestMachine_UnboundEventFiresWhenReached(t *testing.T) {
	m := newMachine(t, program(
		event("", 0, "fade:in", domain.Number(0.5)),
		line("l1", "Hi"),
		end(),
	))

	snap, err := m.Step(0)
	require.NoError(t, err)
	require.Len(t, snap.PendingEvents, 1)
	assert.Equal(t, "fade:in", snap.PendingEvents[0].ID)
	assert.Equal(t, domain.Number(0.5), snap.PendingEvents[0].Args[0])
}

func TestMachine_SetVarAndBranch(t *testing.T) {
	m := newMachine(t, program(
		setVar("met", domain.Boolean(true)),
		branchIfFalse(domain.Var("met"), 4),
		line("yes", "Nice to see you again"),
		end(),
		line("no", "Who are you?"),
		end(),
	))

	snap, err := m.Step(0)
	require.NoError(t, err)
	assert.Equal(t, "Nice to see you again", snap.Text)
	v, ok := m.Variables().Lookup("met")
	require.True(t, ok)
	assert.True(t, v.Bool)
}

func TestMachine_BranchOnUnsetVariableWarns(t *testing.T) {
	m := newMachine(t, program(
		branchIfFalse(domain.Var("met"), 3),
		line("yes", "Again!"),
		end(),
		line("no", "Who are you?"),
		end(),
	))

	snap, err := m.Step(0)
	require.NoError(t, err)
	assert.Equal(t, "Who are you?", snap.Text)
	require.Len(t, snap.Diagnostics, 1)
	assert.Equal(t, domain.DiagUnsetVariable, snap.Diagnostics[0].Kind)
	assert.Equal(t, "met", snap.Diagnostics[0].Var)
}

func TestMachine_TypeMismatchSkipsWrite(t *testing.T) {
	m := newMachine(t, program(
		setVar("name", domain.String("Ana")),
		addVar("name", domain.Number(1)),
		line("l1", "Hi {name}"),
		end(),
	))

	snap, err := m.Step(0)
	require.NoError(t, err)
	assert.Equal(t, domain.StatePresenting, snap.State)
	assert.Equal(t, "Hi Ana", snap.Text)
	require.Len(t, snap.Diagnostics, 1)
	assert.Equal(t, domain.DiagTypeMismatch, snap.Diagnostics[0].Kind)
}

func TestMachine_Conditions(t *testing.T) {
	gold := domain.Var("gold")
	tests := []struct {
		name string
		cond *domain.Condition
		want string
	}{
		{"gt true", domain.Bin(domain.OpGt, gold, domain.Lit(domain.Number(5))), "then"},
		{"le false", domain.Bin(domain.OpLe, gold, domain.Lit(domain.Number(5))), "else"},
		{"and", domain.Bin(domain.OpAnd, domain.Var("met"), domain.Bin(domain.OpEq, domain.Var("name"), domain.Lit(domain.String("Ana")))), "then"},
		{"or short-circuit", domain.Bin(domain.OpOr, domain.Var("met"), domain.Var("missing")), "then"},
		{"not", domain.Not(domain.Var("met")), "else"},
		{"ne", domain.Bin(domain.OpNe, gold, domain.Lit(domain.Number(10))), "else"},
		{"mixed types", domain.Bin(domain.OpEq, gold, domain.Lit(domain.String("10"))), "else"},
		{"unset compares as zero", domain.Bin(domain.OpEq, domain.Var("missing"), domain.Lit(domain.Number(0))), "then"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &domain.Program{
				Name: "cond",
				Variables: []domain.VariableDecl{
					{Name: "gold", Type: domain.TypeNumber, Value: domain.Number(10)},
					{Name: "met", Type: domain.TypeBoolean, Value: domain.Boolean(true)},
					{Name: "name", Type: domain.TypeString, Value: domain.String("Ana")},
				},
				Instructions: []domain.Instruction{
					branchIfFalse(tt.cond, 3),
					line("then", "then"),
					end(),
					line("else", "else"),
					end(),
				},
			}
			m := newMachine(t, p)
			snap, err := m.Step(0)
			require.NoError(t, err)
			assert.Equal(t, tt.want, snap.Text)
		})
	}
}

func TestMachine_Finish(t *testing.T) {
	m := newMachine(t, program(line("l1", "Bye"), end()))

	_, _ = m.Step(0)
	snap := finishLine(t, m)
	assert.Equal(t, domain.StateFinished, snap.State)

	_, err := m.Step(10)
	assert.ErrorIs(t, err, domain.ErrSessionFinished)
	assert.ErrorIs(t, m.SubmitChoice(0), domain.ErrSessionFinished)
	_, err = m.ResetLine()
	assert.ErrorIs(t, err, domain.ErrSessionFinished)

	// Variables stay readable after the end.
	assert.NotNil(t, m.SaveVariables())
}

func TestMachine_EmptyLineCompletesOnEntry(t *testing.T) {
	m := newMachine(t, program(line("l1", ""), line("l2", "x"), end()))

	snap, err := m.Step(0)
	require.NoError(t, err)
	assert.True(t, snap.LineComplete)

	snap, err = m.Step(0)
	require.NoError(t, err)
	assert.Equal(t, "l2", snap.LineID)
}

func TestMachine_ExplicitLength(t *testing.T) {
	p := program(line("l1", "Hi"), end())
	p.Instructions[0].Length = 1500
	m := newMachine(t, p)

	snap, _ := m.Step(0)
	assert.Equal(t, 1500, snap.LineLength)
	snap, _ = m.Step(1499)
	assert.False(t, snap.LineComplete)
	snap, _ = m.Step(1500)
	assert.True(t, snap.LineComplete)
}

func TestMachine_LengthCoversThresholds(t *testing.T) {
	m := newMachine(t, program(line("l1", "Hi"), event("l1", 40, "late"), end()))

	snap, _ := m.Step(0)
	assert.Equal(t, 40, snap.LineLength)
}

func TestMachine_ThresholdFromVariable(t *testing.T) {
	ev := event("l1", 0, "flash")
	ev.ThresholdVar = "beat"
	m := newMachine(t, program(
		setVar("beat", domain.Number(4)),
		line("l1", "Boom boom"),
		ev,
		end(),
	))

	snap, _ := m.Step(0)
	assert.Empty(t, snap.PendingEvents)
	snap, _ = m.Step(3)
	assert.Empty(t, snap.PendingEvents)
	snap, _ = m.Step(4)
	assert.Equal(t, []string{"flash"}, eventIDs(snap.PendingEvents))
}

func TestMachine_ChoiceSavesIndex(t *testing.T) {
	c := choice(opt("A", 1), opt("B", 1))
	c.SaveTo = "picked"
	m := newMachine(t, program(c, line("after", "Picked {picked}"), end()))

	snap, err := m.Step(0)
	require.NoError(t, err)
	require.Equal(t, domain.StateAwaitingChoice, snap.State)
	assert.ErrorIs(t, m.SubmitChoice(3), domain.ErrInvalidChoice)

	require.NoError(t, m.SubmitChoice(1))
	snap, err = m.Step(0)
	require.NoError(t, err)
	assert.Equal(t, "Picked 1", snap.Text)
}

func TestMachine_SubmitOutsideChoice(t *testing.T) {
	m := newMachine(t, program(line("l1", "Hi"), end()))
	_, _ = m.Step(0)
	assert.ErrorIs(t, m.SubmitChoice(0), domain.ErrNotAwaitingChoice)
}

func TestMachine_ChoiceWaitsForLineCompletion(t *testing.T) {
	m := newMachine(t, program(line("q", "Well?"), choice(opt("ok", 2)), end()))

	snap, _ := m.Step(0)
	assert.Equal(t, domain.StatePresenting, snap.State)
	assert.Empty(t, snap.Options)

	snap, _ = m.Step(5)
	assert.Equal(t, domain.StateAwaitingChoice, snap.State)
	assert.Equal(t, "Well?", snap.Text)
	assert.Equal(t, []string{"ok"}, snap.Options)

	// Stepping while a choice is pending changes nothing.
	snap, _ = m.Step(50)
	assert.Equal(t, domain.StateAwaitingChoice, snap.State)
}

func TestMachine_CallReturn(t *testing.T) {
	m := newMachine(t, program(
		domain.Instruction{Kind: domain.KindCall, Target: 3},
		line("after", "Back from greet"),
		end(),
		addVar("greeted", domain.Number(1)),
		domain.Instruction{Kind: domain.KindReturn},
	))

	snap, err := m.Step(0)
	require.NoError(t, err)
	assert.Equal(t, "Back from greet", snap.Text)
	v, _ := m.Variables().Lookup("greeted")
	assert.Equal(t, domain.Number(1), v)
}

func TestMachine_StackOverflowIsFatal(t *testing.T) {
	m := newMachine(t, program(
		domain.Instruction{Kind: domain.KindCall, Target: 0},
		end(),
	), runtime.WithMaxStackDepth(4))

	_, err := m.Step(0)
	assert.ErrorIs(t, err, domain.ErrScriptCorrupt)
	assert.Equal(t, domain.StateErrored, m.State())
}

func TestMachine_ReturnUnderflowIsFatal(t *testing.T) {
	m := newMachine(t, program(domain.Instruction{Kind: domain.KindReturn}))

	_, err := m.Step(0)
	var sc *domain.ScriptCorruptError
	require.ErrorAs(t, err, &sc)
	assert.Equal(t, 0, sc.PC)
}

func TestMachine_LoopGuard(t *testing.T) {
	m := newMachine(t, program(
		addVar("n", domain.Number(1)),
		jump(0),
	), runtime.WithLoopGuard(100))

	snap, err := m.Step(0)
	assert.ErrorIs(t, err, domain.ErrScriptCorrupt)
	assert.Equal(t, domain.StateErrored, snap.State)

	// The error is sticky.
	_, err2 := m.Step(1)
	assert.Equal(t, err, err2)
	assert.ErrorIs(t, m.LoadVariables(domain.VariableSnapshot{}), domain.ErrScriptCorrupt)
}

func TestMachine_LoopThroughLinesIsNotALoop(t *testing.T) {
	m := newMachine(t, program(
		line("l1", "again"),
		jump(0),
	), runtime.WithLoopGuard(3))

	_, err := m.Step(0)
	require.NoError(t, err)
	for range 50 {
		_ = finishLine(t, m)
	}
	assert.Equal(t, domain.StatePresenting, m.State())
}

func TestMachine_Interpolation(t *testing.T) {
	m := newMachine(t, program(
		setVar("name", domain.String("Ana")),
		setVar("gold", domain.Number(12.5)),
		line("l1", "{name} has {gold} gold {{coins}} and {nothing}."),
		end(),
	))

	snap, err := m.Step(0)
	require.NoError(t, err)
	assert.Equal(t, "Ana has 12.5 gold {coins} and .", snap.Text)
	require.Len(t, snap.Diagnostics, 1)
	assert.Equal(t, domain.DiagUnsetVariable, snap.Diagnostics[0].Kind)
}

func TestMachine_ThresholdFollowsInterpolation(t *testing.T) {
	m := newMachine(t, program(
		setVar("name", domain.String("Alexandria")),
		line("l1", "Hi {name}! Boom"),
		event("l1", 10, "boom"),
		end(),
	))

	snap, err := m.Step(0)
	require.NoError(t, err)
	assert.Equal(t, "Hi Alexandria! Boom", snap.Text)
	assert.Equal(t, 19, snap.LineLength)

	snap, _ = m.Step(13)
	assert.Empty(t, snap.PendingEvents, "the event sits after the expanded name")
	snap, _ = m.Step(14)
	assert.Equal(t, []string{"boom"}, eventIDs(snap.PendingEvents))
}

func TestMachine_ThresholdInsidePlaceholder(t *testing.T) {
	m := newMachine(t, program(
		setVar("name", domain.String("Ana")),
		line("l1", "Hi {name}!"),
		event("l1", 5, "mid"),
		end(),
	))

	snap, _ := m.Step(0)
	assert.Empty(t, snap.PendingEvents)
	snap, _ = m.Step(3)
	assert.Equal(t, []string{"mid"}, eventIDs(snap.PendingEvents), "lands on the start of the expansion")
}

func TestMachine_ExplicitLengthKeepsThresholds(t *testing.T) {
	p := program(
		setVar("name", domain.String("Alexandria")),
		line("l1", "Hi {name}"),
		event("l1", 10, "beat"),
		end(),
	)
	p.Instructions[1].Length = 100
	m := newMachine(t, p)

	snap, _ := m.Step(9)
	assert.Empty(t, snap.PendingEvents)
	snap, _ = m.Step(10)
	assert.Equal(t, []string{"beat"}, eventIDs(snap.PendingEvents))
}

func moodProgram(ins ...domain.Instruction) *domain.Program {
	return &domain.Program{
		Name:  "mood",
		Enums: []domain.EnumDecl{{Name: "Mood", Variants: []string{"calm", "angry"}}},
		Variables: []domain.VariableDecl{
			{Name: "mood", Type: domain.TypeString, Enum: "Mood"},
			{Name: "met", Type: domain.TypeBoolean},
			{Name: "tone", Branch: &domain.Branch{On: "mood", Cases: []domain.BranchCase{
				{When: "calm", Text: "softly"},
				{When: "Mood.angry", Text: "loudly", Events: []domain.BranchEvent{{Offset: 0, Event: domain.EventPayload{ID: "shake"}}}},
			}}},
			{Name: "greeting", Branch: &domain.Branch{Cases: []domain.BranchCase{
				{When: "met", Text: "friend"},
			}}},
		},
		Instructions: ins,
	}
}

func TestMachine_EnumDefaultsToFirstVariant(t *testing.T) {
	m := newMachine(t, moodProgram(line("l1", "She is {mood}, speaking {tone}."), end()))

	snap, err := m.Step(0)
	require.NoError(t, err)
	assert.Equal(t, "She is calm, speaking softly.", snap.Text)
	assert.Empty(t, snap.Diagnostics)
}

func TestMachine_BranchCaseEvents(t *testing.T) {
	m := newMachine(t, moodProgram(
		setVar("mood", domain.String("Mood.angry")),
		line("l1", "She speaks {tone}."),
		event("l1", 13, "blink"),
		end(),
	))

	snap, err := m.Step(0)
	require.NoError(t, err)
	assert.Equal(t, "She speaks loudly.", snap.Text)
	assert.Equal(t, domain.String("angry"), m.SaveVariables()["mood"], "variants are stored unqualified")

	snap, _ = m.Step(10)
	assert.Empty(t, snap.PendingEvents)
	snap, _ = m.Step(11)
	assert.Equal(t, []string{"shake", "blink"}, eventIDs(snap.PendingEvents), "case events come before line events at the same position")
}

func TestMachine_BooleanBranch(t *testing.T) {
	m := newMachine(t, moodProgram(
		line("l1", "Hello {greeting}"),
		setVar("met", domain.Boolean(true)),
		line("l2", "Hello {greeting}"),
		end(),
	))

	snap, _ := m.Step(0)
	assert.Equal(t, "Hello ", snap.Text)
	assert.Empty(t, snap.Diagnostics, "no matching case renders empty")

	_ = finishLine(t, m)
	snap, _ = m.Step(0)
	assert.Equal(t, "Hello friend", snap.Text)
}

func TestMachine_BranchEventHookReportsLine(t *testing.T) {
	var pcs []int
	hooks := domain.LifecycleHooks{
		OnEventFired: func(e *domain.FiredEvent) { pcs = append(pcs, e.PC) },
	}
	m := newMachine(t, moodProgram(
		setVar("mood", domain.String("angry")),
		line("l1", "{tone}"),
		end(),
	), runtime.WithLifecycleHooks(hooks))

	_, err := m.Step(0)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, pcs)
}

func TestMachine_LoadVariablesRejectsMalformed(t *testing.T) {
	m := newMachine(t, program(line("l1", "x"), end()))
	require.NoError(t, m.LoadVariables(domain.VariableSnapshot{"a": domain.Number(1)}))

	err := m.LoadVariables(domain.VariableSnapshot{"b": {Type: "color"}})
	assert.ErrorIs(t, err, domain.ErrTypeMismatch)
	assert.Equal(t, domain.VariableSnapshot{"a": domain.Number(1)}, m.SaveVariables())
}

func TestMachine_LifecycleHooks(t *testing.T) {
	var lines, events []string
	var choices []int
	finished := false
	hooks := domain.LifecycleHooks{
		OnLineEnter:  func(e *domain.LineEvent) { lines = append(lines, e.LineID) },
		OnEventFired: func(e *domain.FiredEvent) { events = append(events, e.Payload.ID) },
		OnChoice:     func(e *domain.ChoiceEvent) { choices = append(choices, e.Index) },
		OnFinish:     func(*domain.HookBase) { finished = true },
	}

	m := newMachine(t, program(
		line("q", "?"),
		event("q", 1, "ping"),
		choice(opt("go", 3)),
		end(),
	), runtime.WithLifecycleHooks(hooks), runtime.WithSessionID("s1"))

	_, _ = m.Step(0)
	_, _ = m.Step(1)
	require.NoError(t, m.SubmitChoice(0))
	snap, err := m.Step(0)
	require.NoError(t, err)

	assert.Equal(t, domain.StateFinished, snap.State)
	assert.Equal(t, []string{"q"}, lines)
	assert.Equal(t, []string{"ping"}, events)
	assert.Equal(t, []int{0}, choices)
	assert.True(t, finished)
}
