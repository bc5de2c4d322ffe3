package cadence

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/aretw0/cadence/internal/compiler"
	"github.com/aretw0/cadence/internal/dto"
	"github.com/aretw0/cadence/internal/logging"
	"github.com/aretw0/cadence/internal/runtime"
	loamAdapter "github.com/aretw0/cadence/pkg/adapters/loam"
	"github.com/aretw0/cadence/pkg/domain"
	"github.com/aretw0/cadence/pkg/ports"
	"github.com/aretw0/cadence/pkg/registry"
	"github.com/aretw0/cadence/pkg/variables"
	"github.com/aretw0/loam"
)

// Engine is the high-level entry point of the library. It owns the loaded
// programs and creates sessions over them. An Engine is safe for concurrent use.
type Engine struct {
	loader       ports.ProgramLoader
	parser       *compiler.Parser
	funcs        *registry.Registry
	interpolator runtime.Interpolator
	lengthFunc   runtime.LengthFunc
	hooks        domain.LifecycleHooks
	logger       *slog.Logger
	shared       *variables.Store
	loopGuard    int
	maxDepth     int

	// Name labels the engine (the repository directory when loading from disk).
	Name string

	mu      sync.RWMutex
	current map[string]*generation
}

// generation is one installed version of a program. Sessions keep a pointer
// to the generation they were created from; Reload marks it stale.
type generation struct {
	program *domain.Program
	stale   atomic.Bool
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLoader injects a custom ProgramLoader, bypassing the default Loam initialization.
func WithLoader(l ports.ProgramLoader) Option {
	return func(e *Engine) {
		e.loader = l
	}
}

// WithParser replaces the default schema-checking parser.
func WithParser(p *compiler.Parser) Option {
	return func(e *Engine) {
		e.parser = p
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks on every session.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithFunctions exposes host functions to call conditions.
func WithFunctions(r *registry.Registry) Option {
	return func(e *Engine) {
		e.funcs = r
	}
}

// WithInterpolator sets a custom text interpolator.
func WithInterpolator(fn runtime.Interpolator) Option {
	return func(e *Engine) {
		e.interpolator = fn
	}
}

// WithLengthFunc sets how line lengths are derived from their text.
func WithLengthFunc(fn runtime.LengthFunc) Option {
	return func(e *Engine) {
		e.lengthFunc = fn
	}
}

// WithLoopGuard caps the instructions executed between two lines.
func WithLoopGuard(n int) Option {
	return func(e *Engine) {
		e.loopGuard = n
	}
}

// WithMaxStackDepth bounds nested calls.
func WithMaxStackDepth(n int) Option {
	return func(e *Engine) {
		e.maxDepth = n
	}
}

// WithSharedVariables makes every session read and write the same store.
// Sessions are isolated by default; when sharing, the host must serialize
// calls across sessions.
func WithSharedVariables(store *variables.Store) Option {
	return func(e *Engine) {
		e.shared = store
	}
}

// New initializes a new Engine.
// With a non-empty repoPath and no WithLoader option, programs are read from
// a Loam repository at that path. With neither, only Load works.
func New(repoPath string, opts ...Option) (*Engine, error) {
	eng := &Engine{current: make(map[string]*generation)}

	for _, opt := range opts {
		opt(eng)
	}

	if eng.loader == nil && repoPath != "" {
		absPath, err := filepath.Abs(repoPath)
		if err != nil {
			return nil, fmt.Errorf("invalid path: %w", err)
		}
		eng.Name = filepath.Base(absPath)

		// Strict mode keeps numbers as json.Number; the engine never writes.
		repo, err := loam.Init(absPath,
			loam.WithStrict(true),
			loam.WithReadOnly(true),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize loam: %w", err)
		}
		eng.loader = loamAdapter.New(loam.NewTypedRepository[dto.ProgramDocument](repo))
	} else if repoPath != "" {
		eng.Name = filepath.Base(repoPath)
	}

	if eng.parser == nil {
		eng.parser = compiler.NewParser()
	}
	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}
	if eng.Name != "" {
		eng.logger = eng.logger.With("repo", eng.Name)
	}

	return eng, nil
}

// Load validates a program, installs it under its name unless that exact
// program is already installed, and starts a session over it.
// Loading a different program under an installed name replaces the
// registration without invalidating existing sessions; use Reload for that.
// The program is validated on every call, so one mutated after install is
// rejected here instead of failing inside a session.
func (e *Engine) Load(p *domain.Program, opts ...SessionOption) (*Session, error) {
	if p == nil {
		return nil, &domain.ScriptCorruptError{PC: -1, Reason: "nil program"}
	}
	if err := runtime.Validate(p); err != nil {
		return nil, err
	}

	e.mu.Lock()
	gen, ok := e.current[p.Name]
	installed := !ok || gen.program != p
	if installed {
		gen = &generation{program: p}
		e.current[p.Name] = gen
	}
	e.mu.Unlock()

	if installed {
		e.announce(p)
	}
	return e.newSession(gen, opts...)
}

// LoadNamed starts a session over the program stored under name, fetching
// and compiling it through the loader on first use.
func (e *Engine) LoadNamed(name string, opts ...SessionOption) (*Session, error) {
	gen, err := e.resolve(name)
	if err != nil {
		return nil, err
	}
	return e.newSession(gen, opts...)
}

// Program returns the installed program under name, fetching it if needed.
func (e *Engine) Program(name string) (*domain.Program, error) {
	gen, err := e.resolve(name)
	if err != nil {
		return nil, err
	}
	return gen.program, nil
}

// Programs lists the names the engine can start sessions for: everything the
// loader serves plus programs installed directly with Load.
func (e *Engine) Programs() ([]string, error) {
	seen := make(map[string]bool)

	if e.loader != nil {
		names, err := e.loader.ListPrograms()
		if err != nil {
			return nil, fmt.Errorf("failed to list programs: %w", err)
		}
		for _, n := range names {
			seen[n] = true
		}
	}

	e.mu.RLock()
	for n := range e.current {
		seen[n] = true
	}
	e.mu.RUnlock()

	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Strings(out)
	return out, nil
}

// Reload installs p in place of the program with the same name. Sessions
// created from the previous version fail with domain.ErrProgramReloaded from
// then on. An invalid program is rejected and nothing changes.
func (e *Engine) Reload(p *domain.Program) error {
	if err := runtime.Validate(p); err != nil {
		return err
	}

	e.mu.Lock()
	old := e.current[p.Name]
	e.current[p.Name] = &generation{program: p}
	e.mu.Unlock()

	if old != nil && old.program != p {
		old.stale.Store(true)
	}
	e.logger.Info("program reloaded", "program", p.Name)
	e.announce(p)
	return nil
}

// announce logs the public constants of a newly installed program.
func (e *Engine) announce(p *domain.Program) {
	for _, c := range p.PublicConstants() {
		e.logger.Info("program constant", "program", p.Name, "name", c.Name, "value", c.Value.Display())
	}
}

// ReloadNamed fetches the program under name again and reloads it.
func (e *Engine) ReloadNamed(name string) error {
	p, err := e.fetch(name)
	if err != nil {
		return err
	}
	return e.Reload(p)
}

// Watch returns a channel with the names of programs changed in the backend.
// Returns error if the loader does not support watching.
func (e *Engine) Watch(ctx context.Context) (<-chan string, error) {
	if w, ok := e.loader.(ports.Watchable); ok {
		return w.Watch(ctx)
	}
	return nil, fmt.Errorf("current loader does not support watching")
}

// AutoReload watches the loader and reloads every changed program that was
// already installed. It returns once watching has started; the loop stops
// with ctx. Reload failures are logged and the previous version stays active.
func (e *Engine) AutoReload(ctx context.Context) error {
	changes, err := e.Watch(ctx)
	if err != nil {
		return err
	}

	go func() {
		for name := range changes {
			e.mu.RLock()
			_, installed := e.current[name]
			e.mu.RUnlock()
			if !installed {
				continue
			}
			if err := e.ReloadNamed(name); err != nil {
				e.logger.Warn("hot reload failed", "program", name, "err", err)
			}
		}
	}()
	return nil
}

// Loader returns the underlying ProgramLoader, or nil.
func (e *Engine) Loader() ports.ProgramLoader {
	return e.loader
}

func (e *Engine) resolve(name string) (*generation, error) {
	e.mu.RLock()
	gen, ok := e.current[name]
	e.mu.RUnlock()
	if ok {
		return gen, nil
	}

	p, err := e.fetch(name)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	// Another caller may have installed it meanwhile.
	if gen, ok := e.current[name]; ok {
		e.mu.Unlock()
		return gen, nil
	}
	gen = &generation{program: p}
	e.current[name] = gen
	e.mu.Unlock()

	e.announce(p)
	return gen, nil
}

func (e *Engine) fetch(name string) (*domain.Program, error) {
	if e.loader == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrProgramNotFound, name)
	}
	raw, err := e.loader.GetProgram(name)
	if err != nil {
		return nil, err
	}
	p, err := e.parser.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("program %s: %w: %w", name, domain.ErrScriptCorrupt, err)
	}
	// The loader's key is authoritative so reloads find the same generation.
	p.Name = name
	if err := runtime.Validate(p); err != nil {
		return nil, fmt.Errorf("program %s: %w", name, err)
	}
	return p, nil
}

func (e *Engine) newSession(gen *generation, opts ...SessionOption) (*Session, error) {
	cfg := sessionConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.id == "" {
		cfg.id = newSessionID()
	}

	logger := e.logger.With("program", gen.program.Name, "session_id", cfg.id)
	mopts := []runtime.Option{
		runtime.WithLogger(logger),
		runtime.WithLifecycleHooks(e.hooks),
		runtime.WithLoopGuard(e.loopGuard),
		runtime.WithMaxStackDepth(e.maxDepth),
		runtime.WithFunctions(e.funcs),
		runtime.WithInterpolator(e.interpolator),
		runtime.WithLengthFunc(e.lengthFunc),
		runtime.WithSessionID(cfg.id),
	}
	if e.shared != nil {
		mopts = append(mopts, runtime.WithVariables(e.shared))
	}

	s := &Session{
		id:      cfg.id,
		gen:     gen,
		machine: runtime.NewMachine(gen.program, mopts...),
		logger:  logger,
	}
	if cfg.vars != nil {
		if err := s.machine.LoadVariables(cfg.vars); err != nil {
			return nil, fmt.Errorf("failed to restore variables: %w", err)
		}
	}
	logger.Debug("session started")
	return s, nil
}
