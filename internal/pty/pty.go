// Package pty allocates host pseudo-terminals and attaches container
// shells to them. The gateway talks to the shell exclusively through the
// PTY master; the slave side is wired to a `docker exec -it` child.
package pty

import (
	"errors"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"
)

// ErrAllocFailed is returned when openpty, termios setup, or the shell
// spawn fails.
var ErrAllocFailed = errors.New("pty allocation failed")

// Winsize is the terminal dimensions applied to a PTY.
type Winsize struct {
	Rows uint16
	Cols uint16
}

// DefaultSize is the initial window size for new shells.
var DefaultSize = Winsize{Rows: 24, Cols: 80}

// Shell is a live shell process attached to a PTY. The Shell owns the
// original master descriptor; every other component works on duplicates
// obtained from MasterDup. Close releases the original exactly once.
type Shell struct {
	master    *os.File
	cmd       *exec.Cmd
	closeOnce sync.Once
}

// Backend abstracts PTY allocation so the gateway can be tested without a
// kernel PTY, and so a ConPTY implementation could slot in later.
type Backend interface {
	// AttachShell allocates a raw-mode PTY and spawns a shell inside the
	// container attached to its slave side.
	AttachShell(containerID string) (*Shell, error)
}

// NewShell wraps an already-allocated master and shell process. cmd may
// be nil when there is no child to reap.
func NewShell(master *os.File, cmd *exec.Cmd) *Shell {
	return &Shell{master: master, cmd: cmd}
}

// MasterDup returns an independent duplicate of the master descriptor.
// The caller owns the duplicate and must close it.
//
// The dup goes through SyscallConn rather than Fd, which would flip the
// shared file description into blocking mode, and is made non-blocking
// before wrapping so the returned file supports read deadlines. The
// pump's cancellation and the shell probe timeouts depend on that.
func (s *Shell) MasterDup() (*os.File, error) {
	rc, err := s.master.SyscallConn()
	if err != nil {
		return nil, err
	}

	var dupFd int
	var dupErr error
	if err := rc.Control(func(fd uintptr) {
		dupFd, dupErr = unix.FcntlInt(fd, unix.F_DUPFD_CLOEXEC, 0)
	}); err != nil {
		return nil, err
	}
	if dupErr != nil {
		return nil, dupErr
	}

	if err := unix.SetNonblock(dupFd, true); err != nil {
		_ = unix.Close(dupFd)
		return nil, err
	}
	return os.NewFile(uintptr(dupFd), s.master.Name()), nil
}

// Resize applies new window dimensions to the PTY.
func (s *Shell) Resize(size Winsize) error {
	return setWinsize(s.master, size)
}

// setWinsize applies dimensions with TIOCSWINSZ through SyscallConn,
// never through Fd, which would put the descriptor into blocking mode
// and strip deadline support from every duplicate.
func setWinsize(f *os.File, size Winsize) error {
	rc, err := f.SyscallConn()
	if err != nil {
		return err
	}
	var ioctlErr error
	if err := rc.Control(func(fd uintptr) {
		ioctlErr = unix.IoctlSetWinsize(int(fd), unix.TIOCSWINSZ, &unix.Winsize{
			Row: size.Rows,
			Col: size.Cols,
		})
	}); err != nil {
		return err
	}
	return ioctlErr
}

// Wait blocks until the shell process exits.
func (s *Shell) Wait() error {
	if s.cmd == nil {
		return nil
	}
	return s.cmd.Wait()
}

// Hangup sends SIGHUP to the shell process. Best effort; the process may
// already be gone.
func (s *Shell) Hangup() {
	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Signal(syscall.SIGHUP)
	}
}

// Close releases the original master descriptor. Safe to call more than
// once; only the first call closes.
func (s *Shell) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.master.Close()
	})
	return err
}
