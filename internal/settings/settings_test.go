package settings

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	got, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if got != Default() {
		t.Fatalf("expected defaults, got %+v", got)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "settings.yaml")
	want := Settings{UseStreaming: false, Temperature: 1.3, SystemInstructions: "Be terse."}

	if err := Save(path, want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != want {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, want)
	}
}

func TestLoadClampsOutOfRangeTemperature(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	data := "use_streaming: true\ntemperature: 9.5\nsystem_instructions: hi\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Temperature != 2.0 {
		t.Fatalf("expected temperature clamped to 2.0, got %v", got.Temperature)
	}
}

func TestClampRestoresEmptyInstructions(t *testing.T) {
	s := Settings{Temperature: -1}
	s.Clamp()
	if s.Temperature != 0 {
		t.Fatalf("expected temperature clamped to 0, got %v", s.Temperature)
	}
	if s.SystemInstructions != DefaultSystemInstructions {
		t.Fatalf("expected default instructions, got %q", s.SystemInstructions)
	}
}

func TestLoadCorruptFileErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	if err := os.WriteFile(path, []byte("{not yaml"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected parse error for corrupt file")
	}
}
