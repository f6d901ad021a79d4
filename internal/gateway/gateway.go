// Package gateway orchestrates terminal sessions: provisioning sandbox
// containers, attaching shells over PTYs, routing input, scraping repo
// trees, and tearing everything down again.
package gateway

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/aks-ide/gateway/internal/events"
	"github.com/aks-ide/gateway/internal/pty"
	"github.com/aks-ide/gateway/internal/runtime"
	"github.com/aks-ide/gateway/internal/session"
	"github.com/aks-ide/gateway/internal/store"
)

// ClientChannel is the per-connection emit surface the gateway talks
// back to clients through. Emit must be safe for concurrent use.
type ClientChannel interface {
	ID() string
	Emit(event string, data any) error
}

// Gateway wires the profile store, container runtime, PTY backend, and
// session registry together behind the client event handlers.
type Gateway struct {
	registry *session.Registry
	store    *store.Store
	runtime  runtime.Runtime
	pty      pty.Backend
	log      *zap.SugaredLogger
}

// New creates a Gateway.
func New(reg *session.Registry, st *store.Store, rt runtime.Runtime, backend pty.Backend, log *zap.SugaredLogger) *Gateway {
	return &Gateway{
		registry: reg,
		store:    st,
		runtime:  rt,
		pty:      backend,
		log:      log.With("component", "gateway"),
	}
}

// Registry exposes the session registry, mainly for tests.
func (g *Gateway) Registry() *session.Registry {
	return g.registry
}

// HandleLoadTerminal provisions the user's container, attaches a shell,
// and starts streaming output to the client. A stale session for the
// same email is torn down first, so repeated loads leave exactly one
// live session.
func (g *Gateway) HandleLoadTerminal(ctx context.Context, ch ClientChannel, email string) error {
	_ = ch.Emit(events.TerminalLoading, "Loading terminal...")

	if stale, ok := g.registry.Remove(email); ok {
		g.log.Infow("replacing stale session", "email", email)
		g.finish(stale, nil, "")
	}

	containerID, err := g.EnsureContainer(ctx, ch, email)
	if err != nil {
		g.log.Errorw("failed to provision container", "email", email, "error", err)
		_ = ch.Emit(events.TerminalError, fmt.Sprintf("Failed to prepare environment: %v", err))
		return err
	}

	if running, err := g.runtime.IsRunning(ctx, containerID); err != nil || !running {
		g.log.Warnw("container not confirmed running before attach",
			"email", email, "container_id", containerID, "error", err)
	}

	shell, err := g.pty.AttachShell(containerID)
	if err != nil {
		g.log.Errorw("failed to attach shell", "email", email, "error", err)
		_ = ch.Emit(events.TerminalError, fmt.Sprintf("Failed to start terminal: %v", err))
		return err
	}

	_ = ch.Emit(events.TerminalSuccess, "Terminal created successfully")

	sess := session.New(email, ch.ID(), containerID, shell)
	if stale := g.registry.Register(sess); stale != nil {
		g.finish(stale, nil, "")
	}

	pumpFD, err := shell.MasterDup()
	if err != nil {
		g.teardown(sess, ch, "")
		_ = ch.Emit(events.TerminalError, fmt.Sprintf("Failed to start terminal: %v", err))
		return err
	}
	sess.Go(func() {
		session.RunPump(pumpFD, ch, sess.Done(), g.log)
	})

	// Untracked on purpose: the watcher may itself run teardown, which
	// waits on the tracked group.
	go g.watchShellExit(sess, ch)

	g.attachSecondary(sess, containerID)

	g.log.Infow("terminal session started",
		"email", email, "client_id", ch.ID(), "container_id", containerID)
	return nil
}

// watchShellExit reaps the shell child and tears the session down when
// the shell ends on its own. If teardown already won the registry race
// the watcher only reaps.
func (g *Gateway) watchShellExit(sess *session.Session, ch ClientChannel) {
	err := sess.Shell().Wait()
	if g.registry.RemoveSession(sess) {
		g.log.Infow("shell exited, closing session", "email", sess.Email, "error", err)
		g.finish(sess, ch, "Terminal session ended")
	}
}

// attachSecondary opens a second shell in the same container for
// command scraping. Best effort: without it, repo operations fall back
// to the interactive shell.
func (g *Gateway) attachSecondary(sess *session.Session, containerID string) {
	sec, err := g.pty.AttachShell(containerID)
	if err != nil {
		g.log.Warnw("failed to attach secondary shell", "email", sess.Email, "error", err)
		return
	}
	sess.AttachSecondary(sec)
	go func() { _ = sec.Wait() }()
}

// HandleTerminalInput writes raw keystroke bytes to the session's PTY.
// No newline is appended; the client sends its own line terminators.
func (g *Gateway) HandleTerminalInput(ch ClientChannel, email, data string) error {
	master, err := g.registry.MasterDup(email)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			_ = ch.Emit(events.TerminalError, fmt.Sprintf("No terminal found for %s", email))
		} else {
			_ = ch.Emit(events.TerminalError, fmt.Sprintf("Terminal input failed: %v", err))
		}
		return err
	}
	defer func() { _ = master.Close() }()

	if _, err := master.Write([]byte(data)); err != nil {
		_ = ch.Emit(events.TerminalError, fmt.Sprintf("Terminal write error: %v", err))
		return err
	}
	return nil
}

// HandleTerminalResize applies new window dimensions to the session's PTY.
func (g *Gateway) HandleTerminalResize(ch ClientChannel, email string, rows, cols uint16) error {
	sess, ok := g.registry.Lookup(email)
	if !ok {
		_ = ch.Emit(events.TerminalError, fmt.Sprintf("No terminal found for %s", email))
		return session.ErrSessionNotFound
	}
	if err := sess.Shell().Resize(pty.Winsize{Rows: rows, Cols: cols}); err != nil {
		_ = ch.Emit(events.TerminalError, fmt.Sprintf("Terminal resize failed: %v", err))
		return err
	}
	return nil
}

// HandleCloseTerminal tears down the user's session on request.
func (g *Gateway) HandleCloseTerminal(ch ClientChannel, email string) error {
	sess, ok := g.registry.Remove(email)
	if !ok {
		_ = ch.Emit(events.TerminalError, fmt.Sprintf("No terminal found for %s", email))
		return session.ErrSessionNotFound
	}
	g.finish(sess, ch, "Terminal session closed")
	return nil
}

// HandleDisconnect tears down whatever session the client was driving.
// The connection is gone, so nothing is emitted.
func (g *Gateway) HandleDisconnect(clientID string) {
	sess, ok := g.registry.RemoveClient(clientID)
	if !ok {
		return
	}
	g.log.Infow("client disconnected, closing session", "email", sess.Email, "client_id", clientID)
	g.finish(sess, nil, "")
}

// teardown removes the session from the registry if it is still there,
// then releases its resources.
func (g *Gateway) teardown(sess *session.Session, ch ClientChannel, reason string) {
	g.registry.RemoveSession(sess)
	g.finish(sess, ch, reason)
}

// finish releases a session that is already out of the registry: stop
// the pump, hang up and close both shells, wait for tracked goroutines,
// and tell the client if one is still around. The shell close is
// guarded by a once, so concurrent triggers are safe.
func (g *Gateway) finish(sess *session.Session, ch ClientChannel, reason string) {
	sess.Stop()

	if sec := sess.Secondary(); sec != nil {
		sec.Hangup()
		_ = sec.Close()
	}
	sess.Shell().Hangup()
	_ = sess.Shell().Close()

	sess.Wait()

	if ch != nil && reason != "" {
		_ = ch.Emit(events.TerminalClosed, reason)
	}
}
