package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestValidateBytes(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr bool
	}{
		{
			name: "minimal",
			doc:  `{"instructions":[{"kind":"end"}]}`,
		},
		{
			name: "full",
			doc: `{
				"name": "intro",
				"variables": [{"name": "gold", "type": "number", "value": 3}],
				"instructions": [
					{"kind": "line", "line_id": "l1", "operands": {"text": "Hi", "length": 4}},
					{"kind": "event", "line_id": "l1", "operands": {"threshold": 2, "id": "flash", "args": [1, "red", true]}},
					{"kind": "set_var", "operands": {"var": "gold", "op": "add", "value": 1}},
					{"kind": "branch_if_false", "operands": {"cond": {"type": "binary", "op": ">", "left": "gold", "right": {"type": "literal", "value": 3}}, "target": 5}},
					{"kind": "choice", "operands": {"options": [{"text": "Again", "target": 0}], "save_to": "pick"}},
					{"kind": "end"}
				]
			}`,
		},
		{name: "no instructions", doc: `{"name":"x"}`, wantErr: true},
		{name: "empty instructions", doc: `{"instructions":[]}`, wantErr: true},
		{name: "unknown kind", doc: `{"instructions":[{"kind":"warp"}]}`, wantErr: true},
		{name: "line without id", doc: `{"instructions":[{"kind":"line","operands":{"text":"x"}}]}`, wantErr: true},
		{name: "jump without target", doc: `{"instructions":[{"kind":"jump"}]}`, wantErr: true},
		{name: "negative threshold", doc: `{"instructions":[{"kind":"event","operands":{"id":"x","threshold":-1}}]}`, wantErr: true},
		{name: "bad variable type", doc: `{"instructions":[{"kind":"end"}],"variables":[{"name":"x","type":"list"}]}`, wantErr: true},
		{name: "unknown operand", doc: `{"instructions":[{"kind":"end","operands":{"speed":3}}]}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBytes([]byte(tt.doc))
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidDocument)
			assert.NotEmpty(t, ValidationErrors(err))
		})
	}
}

func TestValidate_DecodedYAML(t *testing.T) {
	src := `
name: yaml
instructions:
  - kind: line
    line_id: l1
    operands:
      text: Hello
  - kind: end
`
	var doc map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(src), &doc))
	assert.NoError(t, Validate(doc))

	delete(doc, "instructions")
	err := Validate(doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "instructions")
}

func TestAggregateError_Message(t *testing.T) {
	err := &AggregateError{Errors: []error{
		&ValidationError{Key: "a", Reason: "bad"},
		&ValidationError{Key: "b", Reason: "worse"},
	}}
	assert.Contains(t, err.Error(), "2 validation errors")
	assert.Contains(t, err.Error(), `field "b": worse`)
}
