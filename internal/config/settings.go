// Package config provides settings management for droidpilot. Settings
// are loaded from multiple sources with the following priority (lowest to
// highest):
//  1. ~/.droidpilot/settings.json (user level)
//  2. .droidpilot/settings.json (project level)
//  3. Environment variables
package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// InputMode selects how TypeText enters text. It is a persisted user
// preference; exactly one strategy is active per call, never a fallback
// chain.
type InputMode string

const (
	// InputSetText taps the target to focus it and types through the
	// shell input pipeline.
	InputSetText InputMode = "settext"
	// InputPaste copies the text to the clipboard and sends a paste key.
	InputPaste InputMode = "paste"
	// InputIME commits the text through the helper input method.
	InputIME InputMode = "ime"
)

// Valid reports whether m is a known input mode.
func (m InputMode) Valid() bool {
	return m == InputSetText || m == InputPaste || m == InputIME
}

// Compression controls the experimental screenshot compression applied
// before frames are sent to the model.
type Compression struct {
	Enabled bool `json:"enabled,omitempty"`
	// Quality is the JPEG quality, 10-100.
	Quality int `json:"quality,omitempty"`
}

// Settings is the complete droidpilot configuration.
type Settings struct {
	// APIKey authorizes requests to the model backend.
	APIKey string `json:"apiKey,omitempty"`

	// BaseURL is the chat-completion endpoint base.
	BaseURL string `json:"baseURL,omitempty"`

	// Model is the model identifier sent with every request.
	Model string `json:"model,omitempty"`

	// InputMode is the active text-entry strategy.
	InputMode InputMode `json:"inputMode,omitempty"`

	// DeviceSerial targets a specific attached device. Empty means the
	// only attached device.
	DeviceSerial string `json:"deviceSerial,omitempty"`

	// ScreenshotDir is where annotated per-turn screenshots are stored.
	ScreenshotDir string `json:"screenshotDir,omitempty"`

	// MaxSteps bounds a single run.
	MaxSteps int `json:"maxSteps,omitempty"`

	// KeepScreenOn holds the device awake for the duration of a run.
	KeepScreenOn bool `json:"keepScreenOn,omitempty"`

	// Compression is the experimental frame compression.
	Compression Compression `json:"compression,omitempty"`
}

// NewSettings returns settings with default values.
func NewSettings() *Settings {
	homeDir, _ := os.UserHomeDir()
	return &Settings{
		BaseURL:       "https://open.bigmodel.cn/api/paas/v4",
		Model:         "autoglm-phone",
		InputMode:     InputSetText,
		ScreenshotDir: filepath.Join(homeDir, ".droidpilot", "screenshots"),
		MaxSteps:      50,
		Compression:   Compression{Quality: 80},
	}
}

// Validate checks settings required for a run.
func (s *Settings) Validate() error {
	if s.APIKey == "" {
		return fmt.Errorf("apiKey is not set (settings.json or DROID_API_KEY)")
	}
	if !s.InputMode.Valid() {
		return fmt.Errorf("unknown inputMode %q (want settext, paste, or ime)", s.InputMode)
	}
	if s.Compression.Enabled && (s.Compression.Quality < 10 || s.Compression.Quality > 100) {
		return fmt.Errorf("compression quality %d out of range 10-100", s.Compression.Quality)
	}
	return nil
}
