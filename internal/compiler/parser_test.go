package compiler

import (
	"testing"

	"github.com/aretw0/cadence/pkg/domain"
	"github.com/aretw0/cadence/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tavern = `
name: tavern
variables:
  - {name: gold, type: number, value: 5}
  - {name: name, type: string, value: Ada}
instructions:
  - kind: line
    line_id: greet
    operands: {text: "Welcome, {name}."}
  - kind: event
    line_id: greet
    operands: {threshold: 3, id: door_creak, args: [0.5, left, true]}
  - kind: set_var
    operands: {var: gold, op: add, value: -2}
  - kind: branch_if_false
    operands:
      cond: {type: binary, op: ">=", left: gold, right: {type: literal, value: 3}}
      target: 6
  - kind: choice
    operands:
      save_to: pick
      options:
        - {text: Ale, target: 5}
        - {text: Leave, target: 6}
  - kind: jump
    operands: {target: 0}
  - kind: end
`

func TestParser_ParseYAML(t *testing.T) {
	p, err := NewParser().Parse([]byte(tavern))
	require.NoError(t, err)

	assert.Equal(t, "tavern", p.Name)
	require.Len(t, p.Variables, 2)
	assert.Equal(t, domain.Number(5), p.Variables[0].Value)
	assert.Equal(t, domain.String("Ada"), p.Variables[1].Value)

	require.Len(t, p.Instructions, 7)
	assert.Equal(t, domain.KindLine, p.Instructions[0].Kind)
	assert.Equal(t, "Welcome, {name}.", p.Instructions[0].Text)

	ev := p.Instructions[1]
	assert.True(t, ev.Bound())
	assert.Equal(t, 3, ev.Threshold)
	assert.Equal(t, "door_creak", ev.Event.ID)
	assert.Equal(t, []domain.Value{domain.Number(0.5), domain.String("left"), domain.Boolean(true)}, ev.Event.Args)

	set := p.Instructions[2]
	assert.Equal(t, domain.OpAdd, set.Op)
	assert.Equal(t, domain.Number(-2), set.Value)

	br := p.Instructions[3]
	assert.Equal(t, 6, br.Target)
	assert.Equal(t, "(gold >= 3)", br.Cond.String())

	ch := p.Instructions[4]
	assert.Equal(t, "pick", ch.SaveTo)
	assert.Equal(t, []domain.ChoiceOption{{Text: "Ale", Target: 5}, {Text: "Leave", Target: 6}}, ch.Options)

	assert.Equal(t, 0, p.Instructions[5].Target)
}

func TestParser_ParseJSON(t *testing.T) {
	doc := `{"name":"j","instructions":[
		{"kind":"set_var","operands":{"var":"seen","value":true}},
		{"kind":"branch_if_false","operands":{"cond":"seen","target":2}},
		{"kind":"end"}
	]}`

	p, err := NewParser().Parse([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, domain.OpSet, p.Instructions[0].Op)
	assert.Equal(t, domain.Boolean(true), p.Instructions[0].Value)
	assert.Equal(t, domain.Var("seen"), p.Instructions[1].Cond)
}

func TestParser_ExplicitValueType(t *testing.T) {
	doc := `{"instructions":[{"kind":"set_var","operands":{"var":"x","type":"string","value":3}},{"kind":"end"}]}`

	_, err := NewParser().Parse([]byte(doc))
	assert.ErrorIs(t, err, domain.ErrTypeMismatch)
}

func TestParser_SchemaRejection(t *testing.T) {
	_, err := NewParser().Parse([]byte(`{"instructions":[{"kind":"jump"}]}`))
	assert.ErrorIs(t, err, schema.ErrInvalidDocument)

	_, err = NewParser().Parse([]byte(`instructions: [`))
	assert.Error(t, err)

	_, err = NewParser().Parse([]byte(``))
	assert.Error(t, err)
}

func TestParser_WithoutSchema(t *testing.T) {
	// Without the schema an unknown kind decodes and is left to the runtime validator.
	p, err := NewParser(WithoutSchema()).Parse([]byte(`{"instructions":[{"kind":"warp"}]}`))
	require.NoError(t, err)
	assert.Equal(t, domain.Kind("warp"), p.Instructions[0].Kind)
}

func TestEncoder_RoundTrip(t *testing.T) {
	parser := NewParser()
	original, err := parser.Parse([]byte(tavern))
	require.NoError(t, err)

	for name, marshal := range map[string]func(*domain.Program) ([]byte, error){
		"json": MarshalJSON,
		"yaml": MarshalYAML,
	} {
		t.Run(name, func(t *testing.T) {
			data, err := marshal(original)
			require.NoError(t, err)

			again, err := parser.Parse(data)
			require.NoError(t, err)
			assert.Equal(t, original, again)
		})
	}
}

func TestEncoder_ConditionTrees(t *testing.T) {
	cond := domain.Bin(domain.OpOr,
		domain.Not(domain.Var("tired")),
		&domain.Condition{Type: domain.CondCall, Func: "has_item", Args: []*domain.Condition{domain.Lit(domain.String("key"))}},
	)
	p := &domain.Program{Name: "c", Instructions: []domain.Instruction{
		{Kind: domain.KindBranchIfFalse, Cond: cond, Target: 1},
		{Kind: domain.KindEnd},
	}}

	data, err := MarshalJSON(p)
	require.NoError(t, err)

	again, err := NewParser().Parse(data)
	require.NoError(t, err)
	assert.Equal(t, cond.String(), again.Instructions[0].Cond.String())
	assert.Equal(t, `(!tired || has_item("key"))`, again.Instructions[0].Cond.String())
}

const moods = `
name: moods
enums:
  - {name: Mood, variants: [calm, angry]}
variables:
  - {name: mood, enum: Mood}
  - {name: lit, type: boolean, value: true}
  - name: tone
    branch:
      on: mood
      cases:
        - {when: calm, text: softly}
        - when: angry
          text: loudly
          events: [{offset: 2, id: shake, args: [3]}]
  - name: room
    branch:
      cases: [{when: lit, text: bright}]
constants:
  - {name: MAX_GOLD, value: 99, public: true}
  - {name: greeting, value: hi}
instructions:
  - kind: line
    line_id: l
    operands: {text: "She speaks {tone}."}
  - kind: end
`

func TestParser_EnumsBranchesConstants(t *testing.T) {
	p, err := NewParser().Parse([]byte(moods))
	require.NoError(t, err)

	assert.Equal(t, []domain.EnumDecl{{Name: "Mood", Variants: []string{"calm", "angry"}}}, p.Enums)
	assert.Equal(t, domain.VariableDecl{Name: "mood", Type: domain.TypeString, Enum: "Mood"}, p.Variables[0], "enum variables are strings")

	tone := p.Variables[2]
	require.NotNil(t, tone.Branch)
	assert.Equal(t, "mood", tone.Branch.On)
	assert.Equal(t, []domain.BranchEvent{{Offset: 2, Event: domain.EventPayload{ID: "shake", Args: []domain.Value{domain.Number(3)}}}}, tone.Branch.Cases[1].Events)
	assert.Empty(t, p.Variables[3].Branch.On)

	assert.Equal(t, []domain.Constant{
		{Name: "MAX_GOLD", Value: domain.Number(99), Public: true},
		{Name: "greeting", Value: domain.String("hi")},
	}, p.Constants)
}

func TestParser_VariableNeedsTypeEnumOrBranch(t *testing.T) {
	_, err := NewParser().Parse([]byte(`{"variables":[{"name":"x"}],"instructions":[{"kind":"end"}]}`))
	assert.ErrorIs(t, err, schema.ErrInvalidDocument)
}

func TestEncoder_RoundTripDeclarations(t *testing.T) {
	parser := NewParser()
	original, err := parser.Parse([]byte(moods))
	require.NoError(t, err)

	for name, marshal := range map[string]func(*domain.Program) ([]byte, error){
		"json": MarshalJSON,
		"yaml": MarshalYAML,
	} {
		t.Run(name, func(t *testing.T) {
			data, err := marshal(original)
			require.NoError(t, err)

			again, err := parser.Parse(data)
			require.NoError(t, err)
			assert.Equal(t, original, again)
		})
	}
}
