package session

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/aks-ide/gateway/internal/events"
)

// Emitter sends one event frame to a client. Implementations must be
// safe for concurrent use; the pump shares the client with the handlers.
type Emitter interface {
	Emit(event string, data any) error
}

// pollInterval bounds how long the pump blocks in a single read before
// re-checking the stop channel.
const pollInterval = 200 * time.Millisecond

// readBufSize matches the PTY kernel buffer granularity well enough
// that a busy shell never backs up.
const readBufSize = 4096

// RunPump copies shell output from a PTY master duplicate to the client
// as terminal_data events until the stop channel closes, the shell
// hangs up, or the read fails. The pump owns the passed duplicate and
// closes it on exit.
//
// Output is emitted as UTF-8 text. A multibyte sequence split across
// reads is held back and prepended to the next read; bytes that cannot
// form valid UTF-8 at all are emitted hex-escaped so nothing is
// silently dropped.
func RunPump(master *os.File, ch Emitter, stop <-chan struct{}, log *zap.SugaredLogger) {
	defer func() { _ = master.Close() }()

	buf := make([]byte, readBufSize)
	var pending []byte

	for {
		select {
		case <-stop:
			return
		default:
		}

		_ = master.SetReadDeadline(time.Now().Add(pollInterval))
		n, err := master.Read(buf)

		if n > 0 {
			pending = append(pending, buf[:n]...)
			pending = flush(pending, ch)
		}

		if err != nil {
			if os.IsTimeout(err) {
				continue
			}
			flushTail(pending, ch)
			// Linux reports EIO on the master once the slave side is
			// fully closed; treat it like EOF.
			if errors.Is(err, io.EOF) || errors.Is(err, syscall.EIO) {
				_ = ch.Emit(events.TerminalClosed, "Terminal session ended")
				return
			}
			select {
			case <-stop:
				// Teardown closed the shell under us; not an error.
				return
			default:
			}
			log.Warnw("terminal read failed", "error", err)
			_ = ch.Emit(events.TerminalError, "Terminal read error: "+err.Error())
			return
		}
	}
}

// flush emits the longest valid UTF-8 prefix of b and returns the bytes
// to carry into the next read. A remainder that can still grow into a
// valid sequence is kept; anything else is emitted hex-escaped.
func flush(b []byte, ch Emitter) []byte {
	valid, rest := splitUTF8Prefix(b)
	if len(valid) > 0 {
		_ = ch.Emit(events.TerminalData, string(valid))
	}
	if len(rest) == 0 {
		return nil
	}
	if incompleteTail(rest) {
		return rest
	}
	_ = ch.Emit(events.TerminalData, hexEscape(rest))
	return nil
}

// flushTail drains carried bytes when the stream is ending and no more
// reads will complete them.
func flushTail(pending []byte, ch Emitter) {
	if len(pending) > 0 {
		_ = ch.Emit(events.TerminalData, hexEscape(pending))
	}
}

// splitUTF8Prefix finds the longest prefix of b that is valid UTF-8 by
// shrinking one byte at a time from the end.
func splitUTF8Prefix(b []byte) (valid, rest []byte) {
	for i := len(b); i > 0; i-- {
		if utf8.Valid(b[:i]) {
			return b[:i], b[i:]
		}
	}
	return nil, b
}

// incompleteTail reports whether b looks like the beginning of a single
// multibyte sequence whose remaining bytes have not arrived yet.
func incompleteTail(b []byte) bool {
	if len(b) == 0 || len(b) >= utf8.UTFMax {
		return false
	}
	want := seqLen(b[0])
	if want <= len(b) {
		return false
	}
	for _, c := range b[1:] {
		if c&0xC0 != 0x80 {
			return false
		}
	}
	return true
}

// seqLen returns the encoded length a UTF-8 sequence starting with lead
// should have, or 0 if lead cannot start a sequence.
func seqLen(lead byte) int {
	switch {
	case lead < 0x80:
		return 1
	case lead&0xE0 == 0xC0:
		return 2
	case lead&0xF0 == 0xE0:
		return 3
	case lead&0xF8 == 0xF0:
		return 4
	default:
		return 0
	}
}

func hexEscape(b []byte) string {
	var sb strings.Builder
	for _, c := range b {
		fmt.Fprintf(&sb, "\\x%02x", c)
	}
	return sb.String()
}
