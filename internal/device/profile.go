package device

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Profile holds per-device gesture timings. The long-press hold is kept
// materially longer than the tap hold so the platform gesture layer can
// tell them apart.
type Profile struct {
	Serial      string `yaml:"serial"`
	TapMs       int    `yaml:"tapMs"`
	LongPressMs int    `yaml:"longPressMs"`
	SwipeMs     int    `yaml:"swipeMs"`
}

// DefaultProfile returns the stock gesture timings: 100 ms tap, 500 ms
// long-press (5x tap), 300 ms swipe.
func DefaultProfile() Profile {
	return Profile{TapMs: 100, LongPressMs: 500, SwipeMs: 300}
}

// Tap returns the tap hold duration.
func (p Profile) Tap() time.Duration { return time.Duration(p.TapMs) * time.Millisecond }

// LongPress returns the long-press hold duration.
func (p Profile) LongPress() time.Duration { return time.Duration(p.LongPressMs) * time.Millisecond }

// Swipe returns the default swipe duration.
func (p Profile) Swipe() time.Duration { return time.Duration(p.SwipeMs) * time.Millisecond }

type profileFile struct {
	Devices []Profile `yaml:"devices"`
}

// LoadProfiles reads per-device timing overrides from a devices.yaml
// file. A missing file yields an empty map; entries with zero fields fall
// back to the defaults.
func LoadProfiles(path string) (map[string]Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]Profile{}, nil
		}
		return nil, fmt.Errorf("read device profiles: %w", err)
	}

	var f profileFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse device profiles: %w", err)
	}

	profiles := make(map[string]Profile, len(f.Devices))
	for _, p := range f.Devices {
		def := DefaultProfile()
		if p.TapMs <= 0 {
			p.TapMs = def.TapMs
		}
		if p.LongPressMs <= 0 {
			p.LongPressMs = def.LongPressMs
		}
		if p.SwipeMs <= 0 {
			p.SwipeMs = def.SwipeMs
		}
		profiles[p.Serial] = p
	}
	return profiles, nil
}

// ProfileFor resolves the timing profile for a serial, falling back to
// the defaults when no override exists.
func ProfileFor(profiles map[string]Profile, serial string) Profile {
	if p, ok := profiles[serial]; ok {
		return p
	}
	return DefaultProfile()
}
