package pty

import (
	"os"
	"testing"
	"time"

	creack "github.com/creack/pty"
	"golang.org/x/sys/unix"
)

func newTestShell(t *testing.T) (*Shell, *os.File) {
	t.Helper()
	master, slave, err := creack.Open()
	if err != nil {
		t.Fatalf("failed to open pty: %v", err)
	}
	sh := NewShell(master, nil)
	t.Cleanup(func() {
		_ = slave.Close()
		_ = sh.Close()
	})
	return sh, slave
}

func TestMasterDupSupportsReadDeadlines(t *testing.T) {
	sh, _ := newTestShell(t)

	// Size first, the way AttachShell does before handing out dups, and
	// again through Resize; neither may cost the dup its deadline
	// support.
	if err := sh.Resize(DefaultSize); err != nil {
		t.Fatalf("resize failed: %v", err)
	}

	dup, err := sh.MasterDup()
	if err != nil {
		t.Fatalf("dup failed: %v", err)
	}
	defer func() { _ = dup.Close() }()

	if err := dup.SetReadDeadline(time.Now().Add(100 * time.Millisecond)); err != nil {
		t.Fatalf("dup does not support read deadlines: %v", err)
	}

	start := time.Now()
	buf := make([]byte, 16)
	_, err = dup.Read(buf)
	if !os.IsTimeout(err) {
		t.Fatalf("expected timeout error, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("read ignored the deadline, returned after %v", elapsed)
	}
}

func TestMasterDupCarriesData(t *testing.T) {
	sh, slave := newTestShell(t)

	dup, err := sh.MasterDup()
	if err != nil {
		t.Fatalf("dup failed: %v", err)
	}
	defer func() { _ = dup.Close() }()

	if _, err := slave.Write([]byte("ready")); err != nil {
		t.Fatalf("failed to write to slave: %v", err)
	}

	_ = dup.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 16)
	n, err := dup.Read(buf)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(buf[:n]) != "ready" {
		t.Fatalf("expected %q, got %q", "ready", buf[:n])
	}
}

func TestResizeAppliesDimensions(t *testing.T) {
	sh, slave := newTestShell(t)

	if err := sh.Resize(Winsize{Rows: 40, Cols: 120}); err != nil {
		t.Fatalf("resize failed: %v", err)
	}

	ws, err := unix.IoctlGetWinsize(int(slave.Fd()), unix.TIOCGWINSZ)
	if err != nil {
		t.Fatalf("failed to read winsize: %v", err)
	}
	if ws.Row != 40 || ws.Col != 120 {
		t.Fatalf("expected 40x120, got %dx%d", ws.Row, ws.Col)
	}
}

func TestDeadlineSurvivesLaterResize(t *testing.T) {
	sh, _ := newTestShell(t)

	dup, err := sh.MasterDup()
	if err != nil {
		t.Fatalf("dup failed: %v", err)
	}
	defer func() { _ = dup.Close() }()

	if err := sh.Resize(Winsize{Rows: 50, Cols: 132}); err != nil {
		t.Fatalf("resize failed: %v", err)
	}

	if err := dup.SetReadDeadline(time.Now().Add(100 * time.Millisecond)); err != nil {
		t.Fatalf("deadline lost after resize: %v", err)
	}
	start := time.Now()
	buf := make([]byte, 16)
	if _, err := dup.Read(buf); !os.IsTimeout(err) {
		t.Fatalf("expected timeout after resize, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("read ignored the deadline after resize, returned after %v", elapsed)
	}
}
