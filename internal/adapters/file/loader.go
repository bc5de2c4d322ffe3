package file

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/cadence/pkg/domain"
	"github.com/fsnotify/fsnotify"
)

// programExts are the extensions recognized as program documents.
var programExts = map[string]bool{".json": true, ".yaml": true, ".yml": true}

// Loader serves program documents from a plain directory tree. A program's
// name is its slash-separated path relative to the root, without extension.
type Loader struct {
	Root string

	// Debounce coalesces bursts of filesystem events (editors often write a
	// file several times per save).
	Debounce time.Duration
}

// NewLoader creates a directory loader.
func NewLoader(root string) *Loader {
	return &Loader{Root: root, Debounce: 100 * time.Millisecond}
}

// GetProgram reads the document stored under name.
func (l *Loader) GetProgram(name string) ([]byte, error) {
	path, err := l.find(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read program %s: %w", name, err)
	}
	return data, nil
}

func (l *Loader) find(name string) (string, error) {
	if name == "" || strings.Contains(name, "..") {
		return "", fmt.Errorf("%w: %q", domain.ErrProgramNotFound, name)
	}
	base := filepath.Join(l.Root, filepath.FromSlash(name))
	for _, ext := range []string{".yaml", ".yml", ".json"} {
		if _, err := os.Stat(base + ext); err == nil {
			return base + ext, nil
		}
	}
	return "", fmt.Errorf("%w: %s", domain.ErrProgramNotFound, name)
}

// ListPrograms walks the root and returns every program name.
func (l *Loader) ListPrograms() ([]string, error) {
	seen := make(map[string]string)
	var names []string

	err := filepath.WalkDir(l.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != l.Root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		name, ok := l.nameOf(path)
		if !ok {
			return nil
		}
		if prev, dup := seen[name]; dup {
			return fmt.Errorf("collision detected: program '%s' is defined in both '%s' and '%s'", name, prev, path)
		}
		seen[name] = path
		names = append(names, name)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list programs: %w", err)
	}
	return names, nil
}

func (l *Loader) nameOf(path string) (string, bool) {
	ext := filepath.Ext(path)
	if !programExts[ext] {
		return "", false
	}
	rel, err := filepath.Rel(l.Root, path)
	if err != nil {
		return "", false
	}
	return filepath.ToSlash(strings.TrimSuffix(rel, ext)), true
}

// Watch implements ports.Watchable. It reports the name of each program
// document written, created, renamed or removed under Root. Directories
// created after Watch starts are watched too.
func (l *Loader) Watch(ctx context.Context) (<-chan string, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to start watcher: %w", err)
	}

	err = filepath.WalkDir(l.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
	if err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", l.Root, err)
	}

	ch := make(chan string, 8)
	go l.watchLoop(ctx, w, ch)
	return ch, nil
}

func (l *Loader) watchLoop(ctx context.Context, w *fsnotify.Watcher, ch chan<- string) {
	defer close(ch)
	defer w.Close()

	pending := make(map[string]bool)
	timer := time.NewTimer(time.Hour)
	timer.Stop()

	flush := func() bool {
		for name := range pending {
			select {
			case ch <- name:
			case <-ctx.Done():
				return false
			}
		}
		clear(pending)
		return true
	}

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-w.Events:
			if !ok {
				return
			}
			if evt.Has(fsnotify.Create) {
				if info, err := os.Stat(evt.Name); err == nil && info.IsDir() {
					_ = w.Add(evt.Name)
					continue
				}
			}
			if evt.Has(fsnotify.Chmod) && !evt.Has(fsnotify.Write) {
				continue
			}
			name, ok := l.nameOf(evt.Name)
			if !ok {
				continue
			}
			pending[name] = true
			timer.Reset(l.Debounce)
		case <-timer.C:
			if !flush() {
				return
			}
		case _, ok := <-w.Errors:
			if !ok {
				return
			}
		}
	}
}
