package loam

import (
	"testing"

	"github.com/aretw0/cadence/internal/compiler"
	"github.com/aretw0/cadence/internal/dto"
	"github.com/aretw0/cadence/internal/testutils"
	"github.com/aretw0/cadence/pkg/domain"
	"github.com/aretw0/loam"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const greetingMD = `---
instructions:
  - kind: line
    line_id: hello
    operands:
      text: Hello there
  - kind: event
    line_id: hello
    operands:
      threshold: 5
      id: wave
  - kind: end
---
Greeting used by the tavern keeper.`

const farewellJSON = `{
  "variables": [{"name": "gold", "type": "number", "value": 2}],
  "instructions": [
    {"kind": "line", "line_id": "bye", "operands": {"text": "Bye"}},
    {"kind": "jump", "operands": {"target": 2}},
    {"kind": "end"}
  ]
}`

func newLoader(t *testing.T, files map[string]string) *Loader {
	t.Helper()
	_, repo := testutils.SetupTestRepo(t, files)
	return New(loam.NewTypedRepository[dto.ProgramDocument](repo))
}

func TestLoader_GetProgram(t *testing.T) {
	loader := newLoader(t, map[string]string{
		"greeting.md":   greetingMD,
		"farewell.json": farewellJSON,
	})
	parser := compiler.NewParser()

	t.Run("markdown frontmatter", func(t *testing.T) {
		raw, err := loader.GetProgram("greeting")
		require.NoError(t, err)

		p, err := parser.Parse(raw)
		require.NoError(t, err)
		assert.Equal(t, "greeting", p.Name)
		require.Len(t, p.Instructions, 3)
		assert.Equal(t, "Hello there", p.Instructions[0].Text)
		assert.Equal(t, 5, p.Instructions[1].Threshold)
		assert.Equal(t, "wave", p.Instructions[1].Event.ID)
	})

	t.Run("json document", func(t *testing.T) {
		raw, err := loader.GetProgram("farewell")
		require.NoError(t, err)

		p, err := parser.Parse(raw)
		require.NoError(t, err)
		assert.Equal(t, "farewell", p.Name)
		assert.Equal(t, domain.Number(2), p.Variables[0].Value)
		assert.Equal(t, 2, p.Instructions[1].Target)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := loader.GetProgram("nowhere")
		assert.ErrorIs(t, err, domain.ErrProgramNotFound)
	})
}

func TestLoader_ListPrograms_NormalizesNames(t *testing.T) {
	loader := newLoader(t, map[string]string{
		"greeting.md":       greetingMD,
		"farewell.json":     farewellJSON,
		"chapter1/intro.md": greetingMD,
	})

	names, err := loader.ListPrograms()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"greeting", "farewell", "chapter1/intro"}, names)
}

func TestLoader_ListPrograms_DetectsCollisions(t *testing.T) {
	loader := newLoader(t, map[string]string{
		"scene.md":   greetingMD,
		"scene.json": farewellJSON,
	})

	_, err := loader.ListPrograms()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "collision detected")
	assert.Contains(t, err.Error(), "scene")
}

func TestTrimExtension(t *testing.T) {
	assert.Equal(t, "a/b", trimExtension("a/b.yaml"))
	assert.Equal(t, "plain", trimExtension("plain"))
}
