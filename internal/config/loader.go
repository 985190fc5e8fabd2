package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Loader handles loading and merging settings from multiple sources.
type Loader struct {
	// userDir is the user-level config directory (e.g., ~/.droidpilot)
	userDir string

	// projectDir is the project-level config directory (e.g., .droidpilot)
	projectDir string
}

// NewLoader creates a settings loader with the default directories.
func NewLoader() *Loader {
	homeDir, _ := os.UserHomeDir()
	return &Loader{
		userDir:    filepath.Join(homeDir, ".droidpilot"),
		projectDir: ".droidpilot",
	}
}

// NewLoaderWithDirs creates a loader with custom directories.
func NewLoaderWithDirs(userDir, projectDir string) *Loader {
	return &Loader{userDir: userDir, projectDir: projectDir}
}

// Load loads and merges settings from all sources. Later sources
// override earlier ones; files that are missing or unparseable are
// skipped.
func (l *Loader) Load() (*Settings, error) {
	settings := NewSettings()

	sources := []string{
		filepath.Join(l.userDir, "settings.json"),
		filepath.Join(l.projectDir, "settings.json"),
	}

	for _, src := range sources {
		data, err := os.ReadFile(src)
		if err != nil {
			continue
		}
		var s Settings
		if err := json.Unmarshal(data, &s); err != nil {
			continue
		}
		merge(settings, &s)
	}

	applyEnv(settings)

	return settings, nil
}

// DevicesPath returns the location of the gesture-timing profile file.
func (l *Loader) DevicesPath() string {
	return filepath.Join(l.userDir, "devices.yaml")
}

// merge overlays non-zero fields of src onto dst.
func merge(dst, src *Settings) {
	if src.APIKey != "" {
		dst.APIKey = src.APIKey
	}
	if src.BaseURL != "" {
		dst.BaseURL = src.BaseURL
	}
	if src.Model != "" {
		dst.Model = src.Model
	}
	if src.InputMode != "" {
		dst.InputMode = src.InputMode
	}
	if src.DeviceSerial != "" {
		dst.DeviceSerial = src.DeviceSerial
	}
	if src.ScreenshotDir != "" {
		dst.ScreenshotDir = src.ScreenshotDir
	}
	if src.MaxSteps > 0 {
		dst.MaxSteps = src.MaxSteps
	}
	if src.KeepScreenOn {
		dst.KeepScreenOn = true
	}
	if src.Compression.Enabled {
		dst.Compression.Enabled = true
	}
	if src.Compression.Quality > 0 {
		dst.Compression.Quality = src.Compression.Quality
	}
}

// applyEnv overlays environment variables, the highest-priority source.
func applyEnv(s *Settings) {
	if v := os.Getenv("DROID_API_KEY"); v != "" {
		s.APIKey = v
	}
	if v := os.Getenv("DROID_BASE_URL"); v != "" {
		s.BaseURL = v
	}
	if v := os.Getenv("DROID_MODEL"); v != "" {
		s.Model = v
	}
	if v := os.Getenv("DROID_INPUT_MODE"); v != "" {
		s.InputMode = InputMode(v)
	}
	if v := os.Getenv("DROID_DEVICE"); v != "" {
		s.DeviceSerial = v
	}
}
