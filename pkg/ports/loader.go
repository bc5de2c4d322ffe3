package ports

import "context"

// ProgramLoader defines how the engine retrieves compiled programs.
// This allows the storage layer (Loam, directory, memory) to be decoupled.
type ProgramLoader interface {
	// GetProgram retrieves the raw wire document of a program by name.
	// It returns domain.ErrProgramNotFound (wrapped) when the name is unknown.
	GetProgram(name string) ([]byte, error)

	// ListPrograms returns the names of every program the loader can serve.
	ListPrograms() ([]string, error)
}

// Watchable defines an interface for loaders that can notify about backend changes.
// This is typically used for hot-reload during authoring.
type Watchable interface {
	// Watch returns a channel that receives the name of each program that
	// changed. The channel is closed when ctx is done.
	Watch(ctx context.Context) (<-chan string, error)
}
