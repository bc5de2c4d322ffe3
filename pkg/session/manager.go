package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/cadence"
	"github.com/aretw0/cadence/internal/logging"
	"github.com/aretw0/cadence/pkg/adapters/memory"
	"github.com/aretw0/cadence/pkg/domain"
	"github.com/aretw0/cadence/pkg/ports"
)

// DefaultLockTTL is the lease of distributed locks.
const DefaultLockTTL = 30 * time.Second

// ErrSessionExists is returned by Create when the ID is already live.
var ErrSessionExists = errors.New("session already exists")

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager keeps live sessions by ID and persists their checkpoints. Every
// operation on one session ID is serialized, locally with a ref-counted
// mutex and across replicas with an optional distributed lock.
type Manager struct {
	engine *cadence.Engine
	store  ports.CheckpointStore

	mu    sync.Mutex            // guards locks and live
	locks map[string]*lockEntry // active per-session locks
	live  map[string]*cadence.Session

	locker   ports.DistributedLocker
	lockTTL  time.Duration
	autoSave bool
	logger   *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the distributed lock lease.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.lockTTL = ttl
	}
}

// WithAutoSave persists a checkpoint after every Do call.
func WithAutoSave(enabled bool) Option {
	return func(m *Manager) {
		m.autoSave = enabled
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a Manager over an engine. A nil store keeps checkpoints
// in memory.
func NewManager(engine *cadence.Engine, store ports.CheckpointStore, opts ...Option) *Manager {
	if store == nil {
		store = memory.NewStore()
	}
	m := &Manager{
		engine:  engine,
		store:   store,
		locks:   make(map[string]*lockEntry),
		live:    make(map[string]*cadence.Session),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(sessionID) after unlocking.
func (m *Manager) acquire(sessionID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		entry = &lockEntry{}
		m.locks[sessionID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, sessionID)
	}
}

// Create starts a session over the named program and stores its first
// checkpoint. Without cadence.WithSessionID a random ID is used. An ID that
// is live here or already has a stored checkpoint yields ErrSessionExists.
func (m *Manager) Create(ctx context.Context, program string, opts ...cadence.SessionOption) (*cadence.Session, error) {
	s, err := m.engine.LoadNamed(program, opts...)
	if err != nil {
		return nil, err
	}

	err = m.WithLock(ctx, s.ID(), func(ctx context.Context) error {
		m.mu.Lock()
		_, taken := m.live[s.ID()]
		m.mu.Unlock()
		if taken {
			return fmt.Errorf("%w: %s", ErrSessionExists, s.ID())
		}
		// Another process may own the ID through the shared store.
		if _, err := m.store.Load(ctx, s.ID()); err == nil {
			return fmt.Errorf("%w: %s", ErrSessionExists, s.ID())
		} else if !errors.Is(err, domain.ErrSessionNotFound) {
			return fmt.Errorf("failed to check session: %w", err)
		}
		if err := m.store.Save(ctx, s.Checkpoint()); err != nil {
			return fmt.Errorf("failed to initialize session: %w", err)
		}
		m.put(s)
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.logger.Info("session created", "session_id", s.ID(), "program", program)
	return s, nil
}

// Get returns the live session, resuming it from its checkpoint when this
// process does not hold it yet.
func (m *Manager) Get(ctx context.Context, sessionID string) (*cadence.Session, error) {
	var s *cadence.Session
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		var err error
		s, err = m.get(ctx, sessionID)
		return err
	})
	return s, err
}

// View returns the current snapshot of a session without advancing it or
// draining its events. The snapshot is taken under the session lock.
func (m *Manager) View(ctx context.Context, sessionID string) (domain.Snapshot, error) {
	var snap domain.Snapshot
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		s, err := m.get(ctx, sessionID)
		if err != nil {
			return err
		}
		snap = s.View()
		return nil
	})
	return snap, err
}

// Do runs fn on the session while holding its lock. With auto-save enabled
// the checkpoint is stored after fn, even when fn fails.
func (m *Manager) Do(ctx context.Context, sessionID string, fn func(*cadence.Session) error) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		s, err := m.get(ctx, sessionID)
		if err != nil {
			return err
		}
		fnErr := fn(s)
		if m.autoSave {
			if err := m.store.Save(ctx, s.Checkpoint()); err != nil {
				return errors.Join(fnErr, fmt.Errorf("failed to save checkpoint: %w", err))
			}
		}
		return fnErr
	})
}

// Save persists the checkpoint of a live session.
func (m *Manager) Save(ctx context.Context, sessionID string) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		m.mu.Lock()
		s, ok := m.live[sessionID]
		m.mu.Unlock()
		if !ok {
			return domain.ErrSessionNotFound
		}
		return m.store.Save(ctx, s.Checkpoint())
	})
}

// Delete drops the live session and its checkpoint.
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		m.mu.Lock()
		delete(m.live, sessionID)
		m.mu.Unlock()
		return m.store.Delete(ctx, sessionID)
	})
}

// List returns the IDs of live and stored sessions, sorted.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	stored, err := m.store.List(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(stored))
	for _, id := range stored {
		seen[id] = true
	}
	m.mu.Lock()
	for id := range m.live {
		seen[id] = true
	}
	m.mu.Unlock()

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Engine returns the engine sessions are created from.
func (m *Manager) Engine() *cadence.Engine {
	return m.engine
}

// Store returns the underlying checkpoint store.
func (m *Manager) Store() ports.CheckpointStore {
	return m.store
}

// WithLock executes a function while holding the lock for the session.
func (m *Manager) WithLock(ctx context.Context, sessionID string, fn func(context.Context) error) error {
	entry := m.acquire(sessionID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(sessionID)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, sessionID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"session_id", sessionID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}

func (m *Manager) put(s *cadence.Session) {
	m.mu.Lock()
	m.live[s.ID()] = s
	m.mu.Unlock()
}

// get must run under the session lock.
func (m *Manager) get(ctx context.Context, sessionID string) (*cadence.Session, error) {
	m.mu.Lock()
	s, ok := m.live[sessionID]
	m.mu.Unlock()

	switch {
	case ok && !s.Stale():
		return s, nil
	case ok:
		// Carry the variables over to the reloaded program.
		return m.restart(sessionID, s.Program().Name, s.SaveVariables())
	}

	cp, err := m.store.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return m.restart(sessionID, cp.Program, cp.Variables)
}

func (m *Manager) restart(sessionID, program string, vars domain.VariableSnapshot) (*cadence.Session, error) {
	s, err := m.engine.LoadNamed(program,
		cadence.WithSessionID(sessionID),
		cadence.WithInitialVariables(vars),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to resume session %s: %w", sessionID, err)
	}
	m.put(s)
	m.logger.Info("session resumed", "session_id", sessionID, "program", program)
	return s, nil
}
