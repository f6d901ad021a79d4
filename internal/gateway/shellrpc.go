package gateway

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"
)

// ErrBadProjectName is returned when a project name has no characters
// left after sanitization.
var ErrBadProjectName = errors.New("invalid project name")

// Read windows for scraping command output from the shell. The shell
// has no structured protocol, so each probe reads for a fixed span and
// parses whatever showed up. Vars so tests can shrink them.
var (
	cwdReadWindow  = 1000 * time.Millisecond
	listReadWindow = 1500 * time.Millisecond
)

var ansiEscape = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// dirEntry is one parsed line of an ls -la listing.
type dirEntry struct {
	Name  string
	IsDir bool
}

// getCwd asks the session's scraping shell for its working directory.
// Falls back to "/" when no session exists or nothing parseable comes
// back within the window.
func (g *Gateway) getCwd(email string) string {
	master, err := g.registry.SecondaryDup(email)
	if err != nil {
		return "/"
	}
	defer func() { _ = master.Close() }()

	if _, err := master.Write([]byte("pwd\n")); err != nil {
		return "/"
	}
	out := readWindow(master, cwdReadWindow)

	for _, line := range shellLines(out) {
		if isPromptOrEcho(line, "pwd") {
			continue
		}
		if strings.HasPrefix(line, "/") {
			return line
		}
	}
	return "/"
}

// listDir scrapes an ls -la listing of path from the shell. Returns an
// empty slice on timeout or when no session exists.
func (g *Gateway) listDir(email, path string) []dirEntry {
	master, err := g.registry.SecondaryDup(email)
	if err != nil {
		return nil
	}
	defer func() { _ = master.Close() }()

	cmd := fmt.Sprintf("ls -la --color=never '%s' 2>/dev/null | tail -n +2\n", path)
	if _, err := master.Write([]byte(cmd)); err != nil {
		return nil
	}
	out := readWindow(master, listReadWindow)

	return parseListing(out)
}

// parseListing turns raw shell output into directory entries, dropping
// prompts, the echoed command, and the "total N" header.
func parseListing(out string) []dirEntry {
	var entries []dirEntry
	for _, line := range shellLines(out) {
		if isPromptOrEcho(line, "ls -la") || strings.HasPrefix(line, "total ") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 9 {
			continue
		}
		name := strings.Join(fields[8:], " ")
		if name == "." || name == ".." {
			continue
		}
		entries = append(entries, dirEntry{
			Name:  name,
			IsDir: fields[0][0] == 'd',
		})
	}
	return entries
}

// createProject makes a directory under /home via the scraping shell
// and returns the sanitized name it used.
func (g *Gateway) createProject(email, name string) (string, error) {
	sanitized := sanitizeProjectName(name)
	if sanitized == "" {
		return "", ErrBadProjectName
	}

	master, err := g.registry.SecondaryDup(email)
	if err != nil {
		return "", err
	}
	defer func() { _ = master.Close() }()

	if _, err := master.Write([]byte("cd /home\n")); err != nil {
		return "", err
	}
	if _, err := master.Write([]byte("mkdir " + sanitized + "\n")); err != nil {
		return "", err
	}
	// Give the shell a beat to run the command before anyone lists the
	// directory again.
	time.Sleep(100 * time.Millisecond)

	return sanitized, nil
}

// sanitizeProjectName keeps only [A-Za-z0-9_-].
func sanitizeProjectName(name string) string {
	var sb strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// readWindow reads from the descriptor for up to window, collecting
// everything that arrives. A timeout is the normal exit.
func readWindow(master *os.File, window time.Duration) string {
	deadline := time.Now().Add(window)
	buf := make([]byte, 4096)
	var out []byte

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		_ = master.SetReadDeadline(time.Now().Add(remaining))
		n, err := master.Read(buf)
		if n > 0 {
			out = append(out, buf[:n]...)
		}
		if err != nil {
			break
		}
	}
	return string(out)
}

// shellLines splits raw PTY output into trimmed, ANSI-stripped,
// non-empty lines.
func shellLines(out string) []string {
	var lines []string
	for _, line := range strings.Split(out, "\n") {
		line = ansiEscape.ReplaceAllString(line, "")
		line = strings.TrimSpace(strings.TrimRight(line, "\r"))
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// isPromptOrEcho reports whether a line is shell chrome rather than
// command output: a prompt, or the echo of the command we just typed.
func isPromptOrEcho(line, cmd string) bool {
	if strings.HasPrefix(line, "root@") || strings.Contains(line, "#") {
		return true
	}
	return strings.Contains(line, cmd)
}
