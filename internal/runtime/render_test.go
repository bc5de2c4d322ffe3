package runtime_test

import (
	"testing"

	"github.com/aretw0/cadence/internal/runtime"
	"github.com/aretw0/cadence/pkg/domain"
	"github.com/aretw0/cadence/pkg/variables"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func renderStore(t *testing.T) *variables.Store {
	t.Helper()
	s := variables.New()
	require.NoError(t, s.Set("name", domain.String("Alexandria")))
	require.NoError(t, s.Set("n", domain.Number(7)))
	return s
}

func TestRendered_Position(t *testing.T) {
	tests := []struct {
		name string
		text string
		src  []int
		want []int
	}{
		{"plain", "Hello", []int{0, 3, 5, 9}, []int{0, 3, 5, 9}},
		{"before placeholder", "Hi {name}!", []int{0, 2}, []int{0, 2}},
		{"inside placeholder", "Hi {name}!", []int{3, 5, 8}, []int{3, 3, 3}},
		{"after placeholder", "Hi {name}! Boom", []int{9, 10, 15}, []int{13, 14, 19}},
		{"past the end", "{n}", []int{3, 5}, []int{1, 3}},
		{"escaped braces", "{{x}} {n}", []int{0, 1, 2, 4, 5, 6}, []int{0, 0, 1, 2, 3, 4}},
		{"unset shrinks", "a{missing}b", []int{1, 10}, []int{1, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := runtime.Interpolate(tt.text, renderStore(t))
			got := make([]int, len(tt.src))
			for i, p := range tt.src {
				got[i] = r.Position(p)
			}
			assert.Equal(t, tt.want, got, "rendered %q", r.Text)
		})
	}
}

func TestRendered_ZeroValueIsIdentity(t *testing.T) {
	var r runtime.Rendered
	assert.Equal(t, 0, r.Position(-2))
	assert.Equal(t, 7, r.Position(7))
}

func TestInterpolate_BranchEvents(t *testing.T) {
	s := variables.FromDecls([]domain.VariableDecl{
		{Name: "lit", Type: domain.TypeBoolean, Value: domain.Boolean(true)},
		{Name: "room", Branch: &domain.Branch{Cases: []domain.BranchCase{
			{When: "lit", Text: "bright hall", Events: []domain.BranchEvent{
				{Offset: 0, Event: domain.EventPayload{ID: "light"}},
				{Offset: 7, Event: domain.EventPayload{ID: "echo"}},
			}},
		}}},
	}, nil)

	r, errs := runtime.Interpolate("A {room}.", s)
	assert.Empty(t, errs)
	assert.Equal(t, "A bright hall.", r.Text)
	assert.Equal(t, []runtime.PlacedEvent{
		{Position: 2, Event: domain.EventPayload{ID: "light"}},
		{Position: 9, Event: domain.EventPayload{ID: "echo"}},
	}, r.Events)
}

func TestRendered_PositionProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)
	texts := gen.OneConstOf("Hi {name}! Boom", "{n}{n}{n}", "{{ {name} }}", "plain text", "x{missing}y{name")

	properties.Property("positions never move backwards", prop.ForAll(
		func(text string, a, b int) bool {
			r, _ := runtime.Interpolate(text, renderStore(t))
			if a > b {
				a, b = b, a
			}
			return r.Position(a) <= r.Position(b)
		},
		texts, gen.IntRange(0, 40), gen.IntRange(0, 40),
	))

	properties.Property("the end of the source maps to the end of the text", prop.ForAll(
		func(text string) bool {
			r, _ := runtime.Interpolate(text, renderStore(t))
			return r.Position(runtime.GraphemeLength(text)) == runtime.GraphemeLength(r.Text)
		},
		texts,
	))

	properties.TestingRun(t)
}
