package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/aks-ide/gateway/internal/events"
)

// EnsureContainer returns a running sandbox container for the user,
// starting the recorded one when possible and creating a fresh one
// otherwise. Progress is narrated to the client as terminal_info.
func (g *Gateway) EnsureContainer(ctx context.Context, ch ClientChannel, email string) (string, error) {
	containerID, err := g.store.GetContainerID(ctx, email)
	if err != nil {
		return "", fmt.Errorf("profile lookup for %s: %w", email, err)
	}

	if containerID != "" {
		_ = ch.Emit(events.TerminalInfo, "Starting your development environment...")
		if err := g.runtime.StartContainer(ctx, containerID); err == nil {
			g.log.Infow("reusing stored container", "email", email, "container_id", containerID)
			return containerID, nil
		}
		// The recorded container is gone or broken; fall through and
		// build a new one.
		g.log.Infow("stored container unusable, creating a new one",
			"email", email, "container_id", containerID)
	}

	_ = ch.Emit(events.TerminalInfo, "Creating new development environment...")

	if err := g.runtime.EnsureImage(ctx, func(status string) {
		_ = ch.Emit(events.TerminalInfo, status)
	}); err != nil {
		return "", err
	}

	newID, err := g.runtime.CreateContainer(ctx, ContainerName(email))
	if err != nil {
		return "", err
	}
	_ = ch.Emit(events.TerminalInfo, fmt.Sprintf("Development environment ready (container %s)", shortID(newID)))

	if err := g.runtime.StartContainer(ctx, newID); err != nil {
		return "", err
	}

	if err := g.store.SetContainerID(ctx, email, newID); err != nil {
		return "", fmt.Errorf("recording container for %s: %w", email, err)
	}

	return newID, nil
}

// ContainerName derives the sandbox container name from the user's
// email, replacing every non-alphanumeric character with '-'.
func ContainerName(email string) string {
	sanitized := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '-'
		}
	}, email)
	return "dev-env-" + sanitized
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
