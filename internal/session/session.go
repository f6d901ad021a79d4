// Package session tracks live terminal sessions: which user owns which
// shell, which client is driving it, and the output pump feeding bytes
// back to the client.
package session

import (
	"errors"
	"sync"

	"github.com/aks-ide/gateway/internal/pty"
)

// ErrSessionNotFound is returned when no live session exists for a user.
var ErrSessionNotFound = errors.New("no terminal found")

// Session is one user's live terminal: the interactive shell, an
// optional secondary shell reserved for command scraping, and the stop
// channel the output pump watches.
type Session struct {
	Email       string
	ClientID    string
	ContainerID string

	shell     *pty.Shell
	secondary *pty.Shell

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a session around an attached interactive shell.
func New(email, clientID, containerID string, shell *pty.Shell) *Session {
	return &Session{
		Email:       email,
		ClientID:    clientID,
		ContainerID: containerID,
		shell:       shell,
		stop:        make(chan struct{}),
	}
}

// Shell returns the interactive shell.
func (s *Session) Shell() *pty.Shell {
	return s.shell
}

// AttachSecondary records a second shell used for command scraping so
// the interactive terminal never sees probe commands.
func (s *Session) AttachSecondary(sh *pty.Shell) {
	s.secondary = sh
}

// Secondary returns the scraping shell, or nil if none was attached.
func (s *Session) Secondary() *pty.Shell {
	return s.secondary
}

// Stop signals the pump and any watcher goroutines to exit. Safe to
// call more than once.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
}

// Done returns a channel closed when the session is stopped.
func (s *Session) Done() <-chan struct{} {
	return s.stop
}

// Go runs fn on a tracked goroutine so teardown can wait for it.
func (s *Session) Go(fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
}

// Wait blocks until all tracked goroutines have returned.
func (s *Session) Wait() {
	s.wg.Wait()
}
