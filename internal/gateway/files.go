package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/aks-ide/gateway/internal/events"
	"github.com/aks-ide/gateway/internal/session"
)

// HandleGetFile reads a file from the user's container and emits its
// contents as files_data.
func (g *Gateway) HandleGetFile(ctx context.Context, ch ClientChannel, email, filePath string) error {
	containerID, err := g.containerFor(ctx, email)
	if err != nil {
		_ = ch.Emit(events.FileError, err.Error())
		return err
	}

	data, err := g.runtime.FileRead(ctx, containerID, filePath)
	if err != nil {
		g.log.Warnw("file read failed", "email", email, "path", filePath, "error", err)
		_ = ch.Emit(events.FileError, err.Error())
		return err
	}
	return ch.Emit(events.FilesData, string(data))
}

// HandleSaveFile writes a file into the user's container and reports
// the outcome as file_saved or file_error.
func (g *Gateway) HandleSaveFile(ctx context.Context, ch ClientChannel, email, filePath, content string) error {
	containerID, err := g.containerFor(ctx, email)
	if err != nil {
		_ = ch.Emit(events.FileError, err.Error())
		return err
	}

	if err := g.runtime.FileWrite(ctx, containerID, filePath, []byte(content)); err != nil {
		g.log.Warnw("file write failed", "email", email, "path", filePath, "error", err)
		_ = ch.Emit(events.FileError, err.Error())
		return err
	}
	return ch.Emit(events.FileSaved, fmt.Sprintf("File saved: %s", filePath))
}

// containerFor resolves the user's container, preferring the live
// session and falling back to the profile store so file operations work
// even without an open terminal.
func (g *Gateway) containerFor(ctx context.Context, email string) (string, error) {
	if id, err := g.registry.ContainerID(email); err == nil {
		return id, nil
	} else if !errors.Is(err, session.ErrSessionNotFound) {
		return "", err
	}

	id, err := g.store.GetContainerID(ctx, email)
	if err != nil {
		return "", fmt.Errorf("no development environment found for %s: %w", email, err)
	}
	if id == "" {
		return "", fmt.Errorf("no development environment found for %s", email)
	}
	return id, nil
}
