package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/cadence"
	"github.com/aretw0/cadence/pkg/adapters/memory"
	"github.com/aretw0/cadence/pkg/domain"
	"github.com/aretw0/cadence/pkg/dsl"
	"github.com/aretw0/cadence/pkg/ports"
	"github.com/aretw0/cadence/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// SlowStore simulates latency to provoke race conditions if locking is missing.
type SlowStore struct {
	inner *memory.Store
}

func (s *SlowStore) Save(ctx context.Context, cp *domain.Checkpoint) error {
	time.Sleep(5 * time.Millisecond)
	return s.inner.Save(ctx, cp)
}

func (s *SlowStore) Load(ctx context.Context, id string) (*domain.Checkpoint, error) {
	time.Sleep(5 * time.Millisecond)
	return s.inner.Load(ctx, id)
}

func (s *SlowStore) Delete(ctx context.Context, id string) error {
	return s.inner.Delete(ctx, id)
}

func (s *SlowStore) List(ctx context.Context) ([]string, error) {
	return s.inner.List(ctx)
}

func counterProgram() *domain.Program {
	b := dsl.New("counter")
	b.Var("n", domain.Number(0))
	b.Add("n", domain.Number(1))
	b.Line("l", "Count is {n}")
	b.End()
	return b.MustProgram()
}

func newManager(t *testing.T, store ports.CheckpointStore, opts ...session.Option) (*session.Manager, *cadence.Engine) {
	t.Helper()
	loader, err := memory.NewFromPrograms(counterProgram())
	require.NoError(t, err)
	eng, err := cadence.New("", cadence.WithLoader(loader))
	require.NoError(t, err)
	return session.NewManager(eng, store, opts...), eng
}

func TestManager_CreateGetDelete(t *testing.T) {
	mgr, _ := newManager(t, nil)
	ctx := context.Background()

	s, err := mgr.Create(ctx, "counter", cadence.WithSessionID("alice"))
	require.NoError(t, err)
	assert.Equal(t, "alice", s.ID())

	got, err := mgr.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Same(t, s, got)

	_, err = mgr.Create(ctx, "counter", cadence.WithSessionID("alice"))
	assert.ErrorIs(t, err, session.ErrSessionExists, "duplicate IDs are rejected")

	ids, err := mgr.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, ids)

	require.NoError(t, mgr.Delete(ctx, "alice"))
	_, err = mgr.Get(ctx, "alice")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	_, err = mgr.Create(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrProgramNotFound)
}

func TestManager_ResumeFromStore(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	first, _ := newManager(t, store)
	s, err := first.Create(ctx, "counter", cadence.WithSessionID("bob"))
	require.NoError(t, err)
	_, err = s.Step(0)
	require.NoError(t, err)
	require.NoError(t, first.Save(ctx, "bob"))

	// A second process sharing the store.
	second, _ := newManager(t, store)
	resumed, err := second.Get(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, domain.Number(1), resumed.SaveVariables()["n"])

	snap, err := resumed.Step(0)
	require.NoError(t, err)
	assert.Equal(t, "Count is 2", snap.Text)
}

func TestManager_CreateRejectsStoredID(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	first, _ := newManager(t, store)
	s, err := first.Create(ctx, "counter", cadence.WithSessionID("carol"))
	require.NoError(t, err)
	_, err = s.Step(0)
	require.NoError(t, err)
	require.NoError(t, first.Save(ctx, "carol"))

	// A second process that never saw carol live.
	second, _ := newManager(t, store)
	_, err = second.Create(ctx, "counter", cadence.WithSessionID("carol"))
	assert.ErrorIs(t, err, session.ErrSessionExists)

	cp, err := store.Load(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, domain.Number(1), cp.Variables["n"], "the stored checkpoint is untouched")
}

type failingStore struct {
	*memory.Store
}

func (failingStore) Load(context.Context, string) (*domain.Checkpoint, error) {
	return nil, errors.New("store unavailable")
}

func TestManager_CreateReportsStoreErrors(t *testing.T) {
	mgr, _ := newManager(t, failingStore{memory.NewStore()})
	_, err := mgr.Create(context.Background(), "counter", cadence.WithSessionID("dan"))
	assert.ErrorContains(t, err, "store unavailable")
	assert.NotErrorIs(t, err, session.ErrSessionExists)
}

func TestManager_DoAutoSave(t *testing.T) {
	store := memory.NewStore()
	mgr, _ := newManager(t, store, session.WithAutoSave(true))
	ctx := context.Background()

	_, err := mgr.Create(ctx, "counter", cadence.WithSessionID("carol"))
	require.NoError(t, err)

	boom := errors.New("boom")
	err = mgr.Do(ctx, "carol", func(s *cadence.Session) error {
		_, err := s.Step(0)
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	cp, err := store.Load(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, domain.Number(1), cp.Variables["n"], "checkpoint saved even when fn fails")
}

func TestManager_RestartsReloadedSessions(t *testing.T) {
	mgr, eng := newManager(t, nil)
	ctx := context.Background()

	s, err := mgr.Create(ctx, "counter", cadence.WithSessionID("dave"))
	require.NoError(t, err)
	_, err = s.Step(0)
	require.NoError(t, err)

	b := dsl.New("counter")
	b.Line("l", "Now at {n}")
	b.End()
	require.NoError(t, eng.Reload(b.MustProgram()))

	err = mgr.Do(ctx, "dave", func(s *cadence.Session) error {
		snap, err := s.Step(0)
		if err != nil {
			return err
		}
		assert.Equal(t, "Now at 1", snap.Text)
		return nil
	})
	require.NoError(t, err)
}

func TestManager_SaveUnknown(t *testing.T) {
	mgr, _ := newManager(t, nil)
	assert.ErrorIs(t, mgr.Save(context.Background(), "nobody"), domain.ErrSessionNotFound)
}

func TestManager_Locking(t *testing.T) {
	mgr, _ := newManager(t, &SlowStore{inner: memory.NewStore()}, session.WithAutoSave(true))
	ctx := context.Background()

	_, err := mgr.Create(ctx, "counter", cadence.WithSessionID("race"))
	require.NoError(t, err)

	// Each Do resumes the same session; without the lock the steps interleave
	// and the machine is driven concurrently.
	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := mgr.Do(ctx, "race", func(s *cadence.Session) error {
				_ = s.View()
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}

func TestManager_ViewUnderLock(t *testing.T) {
	mgr, _ := newManager(t, &SlowStore{inner: memory.NewStore()}, session.WithAutoSave(true))
	ctx := context.Background()

	_, err := mgr.Create(ctx, "counter", cadence.WithSessionID("viewer"))
	require.NoError(t, err)

	snap, err := mgr.View(ctx, "viewer")
	require.NoError(t, err)
	assert.Equal(t, domain.StateIdle, snap.State)

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := mgr.View(ctx, "viewer")
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, mgr.Do(ctx, "viewer", func(s *cadence.Session) error {
				_, err := s.Step(0)
				return err
			}))
		}()
	}
	wg.Wait()

	snap, err = mgr.View(ctx, "viewer")
	require.NoError(t, err)
	assert.Equal(t, "Count is 1", snap.Text)

	_, err = mgr.View(ctx, "nobody")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

type countingLocker struct {
	mu     sync.Mutex
	locks  int
	ttl    time.Duration
	unlock int
}

func (l *countingLocker) Lock(_ context.Context, _ string, ttl time.Duration) (ports.UnlockFunc, error) {
	l.mu.Lock()
	l.locks++
	l.ttl = ttl
	l.mu.Unlock()
	return func(context.Context) error {
		l.mu.Lock()
		l.unlock++
		l.mu.Unlock()
		return nil
	}, nil
}

func TestManager_DistributedLock(t *testing.T) {
	locker := &countingLocker{}
	mgr, _ := newManager(t, nil, session.WithLocker(locker), session.WithLockTTL(time.Second))
	ctx := context.Background()

	_, err := mgr.Create(ctx, "counter", cadence.WithSessionID("eve"))
	require.NoError(t, err)
	require.NoError(t, mgr.Save(ctx, "eve"))

	assert.Equal(t, 2, locker.locks)
	assert.Equal(t, 2, locker.unlock)
	assert.Equal(t, time.Second, locker.ttl)
}
