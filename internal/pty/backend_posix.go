package pty

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/creack/pty"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// shellEnv is appended to the docker exec child's environment so programs
// inside the sandbox see a capable terminal.
var shellEnv = []string{
	"TERM=xterm-256color",
	"COLORTERM=truecolor",
	"LC_ALL=C.UTF-8",
}

// PosixBackend allocates kernel PTYs via openpty and spawns the container
// shell with `docker exec -it`.
type PosixBackend struct {
	shell string
	log   *zap.SugaredLogger
}

// NewPosixBackend returns a Backend running the given shell command
// (normally /bin/bash) inside containers.
func NewPosixBackend(shell string, log *zap.SugaredLogger) *PosixBackend {
	return &PosixBackend{
		shell: shell,
		log:   log.With("component", "pty"),
	}
}

// AttachShell opens a PTY pair, puts the slave into raw mode, and spawns
// `docker exec -it <containerID> <shell>` with each stdio stream bound to
// an independent duplicate of the slave descriptor.
func (b *PosixBackend) AttachShell(containerID string) (*Shell, error) {
	master, slave, err := pty.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: openpty: %v", ErrAllocFailed, err)
	}

	if err := setWinsize(master, DefaultSize); err != nil {
		closeAll(master, slave)
		return nil, fmt.Errorf("%w: set initial size: %v", ErrAllocFailed, err)
	}

	if err := makeRaw(slave); err != nil {
		closeAll(master, slave)
		return nil, fmt.Errorf("%w: termios: %v", ErrAllocFailed, err)
	}

	// Each stdio stream gets its own duplicate. The original slave is
	// closed after spawn; the child keeps the description alive.
	stdin, err := dupFile(slave)
	if err != nil {
		closeAll(master, slave)
		return nil, fmt.Errorf("%w: dup slave: %v", ErrAllocFailed, err)
	}
	stdout, err := dupFile(slave)
	if err != nil {
		closeAll(master, slave, stdin)
		return nil, fmt.Errorf("%w: dup slave: %v", ErrAllocFailed, err)
	}
	stderr, err := dupFile(slave)
	if err != nil {
		closeAll(master, slave, stdin, stdout)
		return nil, fmt.Errorf("%w: dup slave: %v", ErrAllocFailed, err)
	}

	cmd := exec.Command("docker", "exec", "-it", containerID, b.shell)
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.Env = append(os.Environ(), shellEnv...)

	if err := cmd.Start(); err != nil {
		closeAll(master, slave, stdin, stdout, stderr)
		return nil, fmt.Errorf("%w: spawn shell: %v", ErrAllocFailed, err)
	}

	// The child holds its own references now.
	closeAll(slave, stdin, stdout, stderr)

	b.log.Debugw("shell attached", "container_id", containerID, "pid", cmd.Process.Pid)

	return &Shell{master: master, cmd: cmd}, nil
}

// makeRaw configures the slave for raw byte transport: no CR/NL
// translation, no output post-processing, no echo, no canonical
// buffering, no signal generation, byte-at-a-time reads.
func makeRaw(slave *os.File) error {
	fd := int(slave.Fd())
	t, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return err
	}

	t.Iflag &^= unix.ICRNL | unix.IXON | unix.ISTRIP | unix.IGNCR | unix.INLCR
	t.Oflag &^= unix.OPOST
	t.Lflag &^= unix.ECHO | unix.ICANON | unix.ISIG | unix.IEXTEN
	t.Cc[unix.VMIN] = 1
	t.Cc[unix.VTIME] = 0

	return unix.IoctlSetTermios(fd, unix.TCSETS, t)
}

func dupFile(f *os.File) (*os.File, error) {
	fd, err := unix.Dup(int(f.Fd()))
	if err != nil {
		return nil, err
	}
	return os.NewFile(uintptr(fd), f.Name()), nil
}

func closeAll(files ...*os.File) {
	for _, f := range files {
		_ = f.Close()
	}
}
