package gateway

import (
	"context"
	"strings"
	"testing"
)

func TestHandleGetFile(t *testing.T) {
	rt := newFakeRuntime()
	rt.files["/home/app/main.go"] = []byte("package main\n")
	g, st := newTestGateway(t, rt, newFakeBackend(t))
	createTestProfile(t, st, "alice@example.com", "container-1")
	ch := newRecordingChannel("client-1")

	if err := g.HandleGetFile(context.Background(), ch, "alice@example.com", "/home/app/main.go"); err != nil {
		t.Fatalf("get file failed: %v", err)
	}
	data, ok := ch.find("files_data")
	if !ok || data.(string) != "package main\n" {
		t.Fatalf("expected file contents, got %v", data)
	}
}

func TestHandleGetFileMissing(t *testing.T) {
	rt := newFakeRuntime()
	g, st := newTestGateway(t, rt, newFakeBackend(t))
	createTestProfile(t, st, "alice@example.com", "container-1")
	ch := newRecordingChannel("client-1")

	if err := g.HandleGetFile(context.Background(), ch, "alice@example.com", "/nope"); err == nil {
		t.Fatal("expected error for missing file")
	}
	data, ok := ch.find("file_error")
	if !ok || !strings.Contains(data.(string), "/nope") {
		t.Fatalf("expected file_error naming the path, got %v", data)
	}
}

func TestHandleSaveFileRoundTrip(t *testing.T) {
	rt := newFakeRuntime()
	g, st := newTestGateway(t, rt, newFakeBackend(t))
	createTestProfile(t, st, "alice@example.com", "container-1")
	ch := newRecordingChannel("client-1")

	content := "fn main() {}\n"
	if err := g.HandleSaveFile(context.Background(), ch, "alice@example.com", "/home/app/main.rs", content); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if data, ok := ch.find("file_saved"); !ok || !strings.Contains(data.(string), "/home/app/main.rs") {
		t.Fatalf("expected file_saved, got %v", data)
	}

	// Written content reads back unchanged.
	if err := g.HandleGetFile(context.Background(), ch, "alice@example.com", "/home/app/main.rs"); err != nil {
		t.Fatalf("read back failed: %v", err)
	}
	data, _ := ch.find("files_data")
	if data.(string) != content {
		t.Fatalf("round trip mismatch: %q", data)
	}

	calls := strings.Join(rt.callLog(), ",")
	if !strings.Contains(calls, "write /home/app/main.rs") || !strings.Contains(calls, "read /home/app/main.rs") {
		t.Fatalf("unexpected runtime calls: %v", rt.callLog())
	}
}

func TestFileOpsWithoutEnvironment(t *testing.T) {
	rt := newFakeRuntime()
	g, st := newTestGateway(t, rt, newFakeBackend(t))
	createTestProfile(t, st, "alice@example.com", "")
	ch := newRecordingChannel("client-1")

	if err := g.HandleGetFile(context.Background(), ch, "alice@example.com", "/x"); err == nil {
		t.Fatal("expected error without a container")
	}
	data, ok := ch.find("file_error")
	if !ok || !strings.Contains(data.(string), "no development environment") {
		t.Fatalf("expected environment error, got %v", data)
	}
}

func TestFileOpsUseSessionContainer(t *testing.T) {
	rt := newFakeRuntime()
	rt.files["/etc/hostname"] = []byte("sandbox\n")
	g, _ := newTestGateway(t, rt, newFakeBackend(t))
	// Live session, no profile row needed.
	newScriptedSession(t, g, "alice@example.com")
	ch := newRecordingChannel("client-1")

	if err := g.HandleGetFile(context.Background(), ch, "alice@example.com", "/etc/hostname"); err != nil {
		t.Fatalf("get file failed: %v", err)
	}
	if data, _ := ch.find("files_data"); data.(string) != "sandbox\n" {
		t.Fatalf("expected hostname contents, got %v", data)
	}
}
