package loam

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/aretw0/cadence/internal/dto"
	"github.com/aretw0/cadence/pkg/domain"
	"github.com/aretw0/loam"
)

// Loader adapts a Loam repository to the ports.ProgramLoader interface.
// Each document holds one program, either as a whole JSON/YAML file or as
// Markdown frontmatter. The program name is the document path without its
// extension.
type Loader struct {
	Repo *loam.TypedRepository[dto.ProgramDocument]
}

// New creates a new Loam adapter.
func New(repo *loam.TypedRepository[dto.ProgramDocument]) *Loader {
	return &Loader{
		Repo: repo,
	}
}

// GetProgram retrieves a program document and returns it as a JSON wire document.
func (l *Loader) GetProgram(name string) ([]byte, error) {
	ctx := context.Background()

	doc, err := l.Repo.Get(ctx, name)
	if err != nil {
		if !l.exists(name) {
			return nil, fmt.Errorf("%w: %s", domain.ErrProgramNotFound, name)
		}
		return nil, fmt.Errorf("loam get failed for %s: %w", name, err)
	}

	program := doc.Data
	program.Name = trimExtension(doc.ID)

	data, err := json.Marshal(program)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal program %s: %w", name, err)
	}
	return data, nil
}

// exists distinguishes a missing document from an unreadable one.
func (l *Loader) exists(name string) bool {
	names, err := l.ListPrograms()
	if err != nil {
		return true
	}
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

// ListPrograms lists every program in the repository.
func (l *Loader) ListPrograms() ([]string, error) {
	ctx := context.Background()
	docs, err := l.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	seen := make(map[string]string)
	names := make([]string, 0, len(docs))

	for _, doc := range docs {
		name := trimExtension(doc.ID)

		if existingPath, ok := seen[name]; ok {
			return nil, fmt.Errorf("collision detected: program '%s' is defined in both '%s' and '%s'", name, existingPath, doc.ID)
		}
		seen[name] = doc.ID
		names = append(names, name)
	}
	return names, nil
}

func trimExtension(id string) string {
	ext := filepath.Ext(id)
	if ext != "" {
		return filepath.ToSlash(strings.TrimSuffix(id, ext))
	}
	return filepath.ToSlash(id)
}

// Watch implements ports.Watchable, reporting the name of each changed program.
func (l *Loader) Watch(ctx context.Context) (<-chan string, error) {
	events, err := l.Repo.Watch(ctx, "**/*.{md,json,yaml,yml}")
	if err != nil {
		return nil, fmt.Errorf("failed to start loam watcher: %w", err)
	}

	ch := make(chan string, 1)

	go func() {
		defer close(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-events:
				if !ok {
					return
				}
				select {
				case ch <- trimExtension(evt.ID):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return ch, nil
}
