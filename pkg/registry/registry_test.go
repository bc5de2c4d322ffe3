package registry_test

import (
	"errors"
	"testing"

	"github.com/aretw0/cadence/pkg/domain"
	"github.com/aretw0/cadence/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Call(t *testing.T) {
	r := registry.NewRegistry()
	r.Register("is_even", func(args []domain.Value) (domain.Value, error) {
		if len(args) != 1 || args[0].Type != domain.TypeNumber {
			return domain.Value{}, errors.New("is_even expects one number")
		}
		return domain.Boolean(int(args[0].Num)%2 == 0), nil
	})

	v, err := r.Call("is_even", []domain.Value{domain.Number(4)})
	require.NoError(t, err)
	assert.True(t, v.Bool)

	_, err = r.Call("is_even", nil)
	assert.Error(t, err)

	_, err = r.Call("missing", nil)
	assert.ErrorIs(t, err, registry.ErrFunctionNotFound)

	assert.True(t, r.Has("is_even"))
	assert.Equal(t, []string{"is_even"}, r.Names())
}
