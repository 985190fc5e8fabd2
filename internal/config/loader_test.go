package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeSettings(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "settings.json"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadMergePriority(t *testing.T) {
	userDir := t.TempDir()
	projectDir := t.TempDir()

	writeSettings(t, userDir, `{"apiKey":"user-key","model":"user-model","maxSteps":10}`)
	writeSettings(t, projectDir, `{"model":"project-model","inputMode":"paste"}`)

	s, err := NewLoaderWithDirs(userDir, projectDir).Load()
	if err != nil {
		t.Fatal(err)
	}

	if s.APIKey != "user-key" {
		t.Errorf("expected user apiKey to survive, got %q", s.APIKey)
	}
	if s.Model != "project-model" {
		t.Errorf("project model should override user, got %q", s.Model)
	}
	if s.InputMode != InputPaste {
		t.Errorf("expected paste input mode, got %q", s.InputMode)
	}
	if s.MaxSteps != 10 {
		t.Errorf("expected maxSteps 10, got %d", s.MaxSteps)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("DROID_API_KEY", "env-key")
	t.Setenv("DROID_INPUT_MODE", "ime")

	s, err := NewLoaderWithDirs(t.TempDir(), t.TempDir()).Load()
	if err != nil {
		t.Fatal(err)
	}
	if s.APIKey != "env-key" {
		t.Errorf("expected env apiKey, got %q", s.APIKey)
	}
	if s.InputMode != InputIME {
		t.Errorf("expected ime input mode, got %q", s.InputMode)
	}
}

func TestLoadSkipsUnparseableFile(t *testing.T) {
	userDir := t.TempDir()
	writeSettings(t, userDir, `{not json`)

	s, err := NewLoaderWithDirs(userDir, t.TempDir()).Load()
	if err != nil {
		t.Fatal(err)
	}
	if s.Model != "autoglm-phone" {
		t.Errorf("expected defaults after bad file, got model %q", s.Model)
	}
}

func TestValidate(t *testing.T) {
	s := NewSettings()
	if err := s.Validate(); err == nil {
		t.Error("expected error for missing apiKey")
	}

	s.APIKey = "k"
	if err := s.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	s.InputMode = "telepathy"
	if err := s.Validate(); err == nil {
		t.Error("expected error for unknown input mode")
	}

	s.InputMode = InputSetText
	s.Compression = Compression{Enabled: true, Quality: 5}
	if err := s.Validate(); err == nil {
		t.Error("expected error for out-of-range quality")
	}
}
