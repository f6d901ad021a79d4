// Package runtime abstracts the container engine behind the operations the
// gateway needs: image presence, container lifecycle, and command execution.
package runtime

import (
	"context"
	"errors"
	"io"
)

// Sentinel errors returned by Runtime implementations.
var (
	// ErrNotFound indicates the container does not exist.
	ErrNotFound = errors.New("container not found")

	// ErrImagePull indicates the sandbox image could not be pulled.
	ErrImagePull = errors.New("image pull failed")

	// ErrCreateFailed indicates container creation failed.
	ErrCreateFailed = errors.New("container create failed")

	// ErrStartFailed indicates an existing container could not be started.
	ErrStartFailed = errors.New("container start failed")

	// ErrExecFailed indicates an exec in the container failed to run.
	ErrExecFailed = errors.New("container exec failed")
)

// PullProgress receives human-readable status lines while an image pull is
// in flight. Implementations may call it from a different goroutine than
// the EnsureImage caller.
type PullProgress func(status string)

// ExecOptions configures non-interactive command execution.
type ExecOptions struct {
	WorkDir string            // working directory for the command
	Env     map[string]string // additional environment variables
	Stdin   io.Reader         // optional stdin input
}

// ExecResult contains the result of a non-interactive command execution.
type ExecResult struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

// Runtime is the container engine interface. Implementations must be safe
// for concurrent use.
type Runtime interface {
	// EnsureImage makes sure the sandbox image is available locally,
	// pulling it if necessary. Progress may be nil.
	EnsureImage(ctx context.Context, progress PullProgress) error

	// CreateContainer creates (but does not start) a sandbox container
	// with the given name and returns its id.
	CreateContainer(ctx context.Context, name string) (string, error)

	// StartContainer starts a previously created container.
	StartContainer(ctx context.Context, id string) error

	// IsRunning reports whether the container is currently running.
	// Returns ErrNotFound if the container does not exist.
	IsRunning(ctx context.Context, id string) (bool, error)

	// Exec runs a non-interactive command in the container and waits for
	// it to finish.
	Exec(ctx context.Context, id string, cmd []string, opts ExecOptions) (*ExecResult, error)

	// FileRead returns the contents of a file inside the container.
	FileRead(ctx context.Context, id, path string) ([]byte, error)

	// FileWrite writes a file inside the container, creating parent
	// directories as needed. The write goes through a temp file and a
	// rename so a failed write never leaves a truncated target.
	FileWrite(ctx context.Context, id, path string, content []byte) error
}
