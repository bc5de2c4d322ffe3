package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/cadence/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunCheckpointStoreContract runs a suite of tests to verify that a
// CheckpointStore implementation adheres to the interface contract.
func RunCheckpointStoreContract(t *testing.T, store CheckpointStore) {
	ctx := context.Background()
	sessionID := "contract-test-session-" + time.Now().Format("20060102150405.000000000")

	checkpoint := func(id string) *domain.Checkpoint {
		return &domain.Checkpoint{
			SessionID: id,
			Program:   "intro",
			Variables: domain.VariableSnapshot{
				"gold":  domain.Number(12.5),
				"name":  domain.String("Ada"),
				"brave": domain.Boolean(true),
			},
			SavedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		}
	}

	t.Run("Save and Load", func(t *testing.T) {
		cp := checkpoint(sessionID)
		require.NoError(t, store.Save(ctx, cp), "Save should not return error")

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, cp.SessionID, loaded.SessionID)
		assert.Equal(t, cp.Program, loaded.Program)
		assert.True(t, cp.SavedAt.Equal(loaded.SavedAt))
		// Types must survive persistence, not only values.
		assert.Equal(t, cp.Variables, loaded.Variables)
	})

	t.Run("Save Overwrites", func(t *testing.T) {
		cp := checkpoint(sessionID)
		cp.Variables["gold"] = domain.Number(99)
		require.NoError(t, store.Save(ctx, cp))

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, domain.Number(99), loaded.Variables["gold"])
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, checkpoint(sessionID)))

		require.NoError(t, store.Delete(ctx, sessionID), "Delete should not return error")

		_, err := store.Load(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")
		assert.NoError(t, store.Delete(ctx, sessionID), "Deleting twice should not fail")
	})

	t.Run("List", func(t *testing.T) {
		id1 := sessionID + "-1"
		id2 := sessionID + "-2"
		require.NoError(t, store.Save(ctx, checkpoint(id1)))
		require.NoError(t, store.Save(ctx, checkpoint(id2)))
		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, id1)
		assert.Contains(t, sessions, id2)
	})
}

// RunProgramLoaderContract verifies that a ProgramLoader serves exactly the
// documents in want, keyed by program name.
func RunProgramLoaderContract(t *testing.T, loader ProgramLoader, want map[string][]byte) {
	t.Helper()

	t.Run("GetProgram", func(t *testing.T) {
		for name, content := range want {
			got, err := loader.GetProgram(name)
			require.NoError(t, err, "program %s", name)
			assert.Equal(t, string(content), string(got), "content mismatch for %s", name)
		}
	})

	t.Run("GetProgram NotFound", func(t *testing.T) {
		_, err := loader.GetProgram("non-existent-program")
		assert.ErrorIs(t, err, domain.ErrProgramNotFound)
	})

	t.Run("ListPrograms", func(t *testing.T) {
		names, err := loader.ListPrograms()
		require.NoError(t, err)

		expected := make([]string, 0, len(want))
		for name := range want {
			expected = append(expected, name)
		}
		assert.ElementsMatch(t, expected, names)
	})
}
