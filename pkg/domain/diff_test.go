package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiff(t *testing.T) {
	tests := []struct {
		name string
		old  VariableSnapshot
		new  VariableSnapshot
		want *VariableDiff
	}{
		{
			name: "Initial Load (Old is Nil)",
			old:  nil,
			new:  VariableSnapshot{"gold": Number(3)},
			want: &VariableDiff{Changed: map[string]Value{"gold": Number(3)}},
		},
		{
			name: "No Changes",
			old:  VariableSnapshot{"gold": Number(3), "name": String("Ana")},
			new:  VariableSnapshot{"gold": Number(3), "name": String("Ana")},
			want: nil,
		},
		{
			name: "Modified and Removed",
			old:  VariableSnapshot{"gold": Number(3), "met": Boolean(false), "zz": String("x")},
			new:  VariableSnapshot{"gold": Number(4), "met": Boolean(false)},
			want: &VariableDiff{
				Changed: map[string]Value{"gold": Number(4)},
				Removed: []string{"zz"},
			},
		},
		{
			name: "Type Change Counts As Change",
			old:  VariableSnapshot{"x": Number(1)},
			new:  VariableSnapshot{"x": String("1")},
			want: &VariableDiff{Changed: map[string]Value{"x": String("1")}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Diff(tt.old, tt.new)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDiff_JSONShape(t *testing.T) {
	d := Diff(VariableSnapshot{"a": Boolean(true)}, VariableSnapshot{"b": String("hi")})
	require.NotNil(t, d)

	data, err := json.Marshal(d)
	require.NoError(t, err)
	assert.JSONEq(t, `{"changed":{"b":{"type":"string","value":"hi"}},"removed":["a"]}`, string(data))
}
