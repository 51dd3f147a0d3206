package export

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"localchat/internal/store"
)

func TestBuildTranscriptMarkdownSections(t *testing.T) {
	msgs := []store.Message{
		{Role: store.RoleUser, Text: "What is a goroutine?"},
		{Role: store.RoleAssistant, Text: "A lightweight thread managed by the runtime."},
	}

	out := BuildTranscriptMarkdown(msgs)
	if !strings.Contains(out, "## You\n\nWhat is a goroutine?") {
		t.Fatalf("expected user section, got:\n%s", out)
	}
	if !strings.Contains(out, "## Assistant\n\nA lightweight thread") {
		t.Fatalf("expected assistant section, got:\n%s", out)
	}
}

func TestBuildTranscriptMarkdownSkipsEmptyMessages(t *testing.T) {
	msgs := []store.Message{
		{Role: store.RoleUser, Text: "hello"},
		{Role: store.RoleAssistant, Text: ""},
	}

	out := BuildTranscriptMarkdown(msgs)
	if strings.Contains(out, "## Assistant") {
		t.Fatalf("expected empty assistant placeholder to be skipped, got:\n%s", out)
	}
}

func TestBuildTranscriptMarkdownEmptyInput(t *testing.T) {
	if out := BuildTranscriptMarkdown(nil); out != "" {
		t.Fatalf("expected empty output, got %q", out)
	}
}

func TestBuildSessionMarkdownHeader(t *testing.T) {
	sess := store.Session{ID: "abc", Title: "Goroutines", CreatedAt: 1700000000, UpdatedAt: 1700000100}
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	out := BuildSessionMarkdown(sess, "## You\n\nhi\n", now)
	if !strings.HasPrefix(out, "# Goroutines\n") {
		t.Fatalf("expected title heading, got:\n%s", out)
	}
	if !strings.Contains(out, "Exported: 2025-03-01T12:00:00Z") {
		t.Fatalf("expected export timestamp, got:\n%s", out)
	}
	if !strings.Contains(out, "session: abc") {
		t.Fatalf("expected session id in metadata, got:\n%s", out)
	}
}

func TestBuildSessionMarkdownUntitled(t *testing.T) {
	out := BuildSessionMarkdown(store.Session{ID: "x"}, "", time.Now())
	if !strings.HasPrefix(out, "# Untitled session\n") {
		t.Fatalf("expected fallback title, got:\n%s", out)
	}
}

func TestExportWritesFile(t *testing.T) {
	dir := t.TempDir()
	e, err := New(dir)
	if err != nil {
		t.Fatalf("new exporter: %v", err)
	}

	sess := store.Session{ID: "s1", Title: "My chat"}
	msgs := []store.Message{{Role: store.RoleUser, Text: "hi"}}

	path, err := e.Export(sess, msgs)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Fatalf("expected export under %s, got %s", dir, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if !strings.Contains(string(data), "## You") {
		t.Fatalf("expected transcript in file, got:\n%s", data)
	}
}

func TestSafeFileName(t *testing.T) {
	got := safeFileName("a/b:c d")
	if got != "a_b_c_d" {
		t.Fatalf("expected sanitized name, got %q", got)
	}
	if safeFileName("  ") != "session" {
		t.Fatalf("expected fallback name for blank input")
	}
}
