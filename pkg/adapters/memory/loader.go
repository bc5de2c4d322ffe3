package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/cadence/internal/compiler"
	"github.com/aretw0/cadence/pkg/domain"
)

// Loader implements ports.ProgramLoader using an in-memory map.
// Put notifies watchers, which makes it handy for hot-reload tests.
type Loader struct {
	mu       sync.RWMutex
	programs map[string][]byte
	watchers []chan string
}

// NewLoader creates a new Loader with the provided raw documents.
func NewLoader(data map[string]string) *Loader {
	programs := make(map[string][]byte)
	for k, v := range data {
		programs[k] = []byte(v)
	}
	return &Loader{programs: programs}
}

// NewFromPrograms creates a Loader from domain programs, keyed by name.
// This handles serialization automatically, improving DX for tests.
func NewFromPrograms(programs ...*domain.Program) (*Loader, error) {
	l := &Loader{programs: make(map[string][]byte)}
	for _, p := range programs {
		if p.Name == "" {
			return nil, fmt.Errorf("program missing name")
		}
		data, err := compiler.MarshalJSON(p)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal program %s: %w", p.Name, err)
		}
		l.programs[p.Name] = data
	}
	return l, nil
}

// GetProgram retrieves the raw document of a program.
func (l *Loader) GetProgram(name string) ([]byte, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	content, ok := l.programs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrProgramNotFound, name)
	}
	return content, nil
}

// ListPrograms returns all available program names.
func (l *Loader) ListPrograms() ([]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	keys := make([]string, 0, len(l.programs))
	for k := range l.programs {
		keys = append(keys, k)
	}
	sort.Strings(keys) // Deterministic order
	return keys, nil
}

// Put stores or replaces a document and notifies watchers.
func (l *Loader) Put(name string, data []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.programs[name] = data

	// Sends never block, and Watch closes channels under the same lock.
	for _, ch := range l.watchers {
		select {
		case ch <- name:
		default:
		}
	}
}

// Watch implements ports.Watchable.
func (l *Loader) Watch(ctx context.Context) (<-chan string, error) {
	ch := make(chan string, 16)

	l.mu.Lock()
	l.watchers = append(l.watchers, ch)
	l.mu.Unlock()

	go func() {
		<-ctx.Done()
		l.mu.Lock()
		defer l.mu.Unlock()
		for i, w := range l.watchers {
			if w == ch {
				l.watchers = append(l.watchers[:i], l.watchers[i+1:]...)
				break
			}
		}
		close(ch)
	}()
	return ch, nil
}
