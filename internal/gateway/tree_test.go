package gateway

import (
	"fmt"
	"strings"
	"testing"
)

func listingLine(name string, dir bool) string {
	mode := "-rw-r--r--"
	if dir {
		mode = "drwxr-xr-x"
	}
	return fmt.Sprintf("%s  2 root root 4096 Jan  5 10:00 %s", mode, name)
}

func TestBuildTreeShape(t *testing.T) {
	shrinkRPCWindows(t)
	g, _ := newTestGateway(t, newFakeRuntime(), newFakeBackend(t))
	sh := newScriptedSession(t, g, "alice@example.com")

	sh.respond("pwd", "/home\r\n")
	sh.respond("ls -la --color=never '/home'", strings.Join([]string{
		listingLine("myApp", true),
		listingLine("node_modules", true),
		listingLine("readme.md", false),
	}, "\r\n")+"\r\n")
	sh.respond("ls -la --color=never '/home/myApp'", listingLine("main.go", false)+"\r\n")

	tree := g.buildTree("alice@example.com")
	if tree["current_directory"] != "/home" {
		t.Fatalf("expected /home, got %v", tree["current_directory"])
	}

	structure := tree["structure"].(map[string]any)
	if _, ok := structure["node_modules"]; ok {
		t.Fatal("node_modules should be pruned")
	}

	app, ok := structure["myApp"].(map[string]any)
	if !ok {
		t.Fatalf("expected myApp subtree, got %v", structure)
	}
	appFiles, ok := app["_files"].(map[string]string)
	if !ok || appFiles["/home/myApp/main.go"] != "main.go" {
		t.Fatalf("expected main.go under myApp, got %v", app)
	}

	files, ok := structure["_files"].(map[string]string)
	if !ok || files["/home/readme.md"] != "readme.md" {
		t.Fatalf("expected readme.md in _files, got %v", structure)
	}
}

func TestBuildTreeRootFallsBackToHome(t *testing.T) {
	shrinkRPCWindows(t)
	g, _ := newTestGateway(t, newFakeRuntime(), newFakeBackend(t))
	sh := newScriptedSession(t, g, "alice@example.com")
	sh.respond("pwd", "/\r\n")

	tree := g.buildTree("alice@example.com")
	if tree["current_directory"] != "/home" {
		t.Fatalf("expected / to map to /home, got %v", tree["current_directory"])
	}
}

func TestWalkDirTruncatesLongFileLists(t *testing.T) {
	shrinkRPCWindows(t)
	g, _ := newTestGateway(t, newFakeRuntime(), newFakeBackend(t))
	sh := newScriptedSession(t, g, "alice@example.com")

	var lines []string
	for i := 0; i < 20; i++ {
		lines = append(lines, listingLine(fmt.Sprintf("file%02d.txt", i), false))
	}
	sh.respond("ls -la --color=never '/home'", strings.Join(lines, "\r\n")+"\r\n")

	structure := g.walkDir("alice@example.com", "/home", 0)
	files, ok := structure["_files"].(map[string]string)
	if !ok {
		t.Fatalf("expected _files, got %v", structure)
	}

	// 10 kept entries plus the truncation marker.
	if len(files) != fileListKeep+1 {
		t.Fatalf("expected %d entries, got %d: %v", fileListKeep+1, len(files), files)
	}
	if files["..."] != "... and 10 more files" {
		t.Fatalf("unexpected marker: %q", files["..."])
	}
	if files["/home/file00.txt"] != "file00.txt" {
		t.Fatal("first file should be kept")
	}
	if _, ok := files["/home/file15.txt"]; ok {
		t.Fatal("files past the keep limit should be dropped")
	}
}

func TestWalkDirDepthBound(t *testing.T) {
	shrinkRPCWindows(t)
	g, _ := newTestGateway(t, newFakeRuntime(), newFakeBackend(t))
	sh := newScriptedSession(t, g, "alice@example.com")

	// Every level contains one subdirectory; the root plus maxTreeDepth
	// nested levels are listed, then the walk bottoms out with an empty
	// object.
	sh.respond("ls -la --color=never '", listingLine("sub", true)+"\r\n")

	structure := g.walkDir("alice@example.com", "/home", 0)

	depth := 0
	node := structure
	for {
		next, ok := node["sub"].(map[string]any)
		if !ok {
			break
		}
		depth++
		node = next
	}
	if depth != maxTreeDepth+1 {
		t.Fatalf("expected nesting depth %d, got %d", maxTreeDepth+1, depth)
	}
}
