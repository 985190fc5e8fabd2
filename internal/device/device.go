// Package device abstracts the attached Android device. The core talks
// to a Device interface; the real implementation drives adb, and tests
// use the in-memory fake.
package device

import (
	"context"
	"fmt"
	"image"
	"time"
)

// KeyCode is an Android key event code.
type KeyCode int

const (
	KeyHome  KeyCode = 3
	KeyBack  KeyCode = 4
	KeyPaste KeyCode = 279
)

// Stroke is a timed point-to-point gesture. A tap is a zero-length
// stroke with a short duration, a long-press a zero-length stroke with a
// long one.
type Stroke struct {
	X1, Y1   int
	X2, Y2   int
	Duration time.Duration
}

// TapAt builds a tap stroke at the given point.
func TapAt(x, y int, hold time.Duration) Stroke {
	return Stroke{X1: x, Y1: y, X2: x, Y2: y, Duration: hold}
}

// Device is the narrow platform surface the core depends on.
type Device interface {
	// Serial identifies the device.
	Serial() string

	// Screenshot captures the screen. The returned image may be in any
	// decode format; callers normalize it before use.
	Screenshot(ctx context.Context) (image.Image, error)

	// DumpUI captures the accessibility element tree as uiautomator XML.
	DumpUI(ctx context.Context) ([]byte, error)

	// Gesture dispatches a timed stroke.
	Gesture(ctx context.Context, s Stroke) error

	// Key dispatches a global key event (back, home, paste).
	Key(ctx context.Context, code KeyCode) error

	// SetClipboard replaces the device clipboard contents.
	SetClipboard(ctx context.Context, text string) error

	// TypeASCII types text through the shell input pipeline. Only works
	// for focused editable fields.
	TypeASCII(ctx context.Context, text string) error

	// IMECommit commits text through an installed helper input method.
	IMECommit(ctx context.Context, text string) error

	// StayAwake toggles the keep-screen-on state for the duration of a run.
	StayAwake(ctx context.Context, on bool) error

	// Elevated reports whether privileged execution is available.
	Elevated(ctx context.Context) bool
}

// ErrorKind classifies device failures so callers can map them onto
// their own taxonomies.
type ErrorKind int

const (
	// KindUnavailable: adb missing, device not attached, or the
	// operation is unsupported on this device.
	KindUnavailable ErrorKind = iota
	// KindTimeout: the command did not finish in time.
	KindTimeout
	// KindDenied: the platform refused the operation.
	KindDenied
)

// Error is a classified device failure.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("device %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
