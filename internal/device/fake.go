package device

import (
	"context"
	"fmt"
	"image"
	"sync"
)

// Call records a single operation dispatched to the FakeDevice.
type Call struct {
	Op   string
	Args string
}

// FakeDevice is a scripted test double. It returns the configured
// screenshot and UI dump, records every operation in order, and can
// inject a classified error on the Nth screenshot.
//
// Usage:
//
//	fake := &device.FakeDevice{
//	    Frame:  someImage,
//	    UIDump: []byte(xmlDump),
//	}
type FakeDevice struct {
	mu sync.Mutex

	// Frame is returned by Screenshot. Frames, when set, takes priority
	// and is consumed one entry per call.
	Frame  image.Image
	Frames []image.Image

	// UIDump is returned by DumpUI.
	UIDump []byte

	// ScreenshotErrAt injects ScreenshotErr on the Nth Screenshot call
	// (1-based). 0 disables injection.
	ScreenshotErrAt int
	ScreenshotErr   error

	// GestureErr, when set, is returned by every Gesture call.
	GestureErr error

	// Root controls Elevated.
	Root bool

	// Calls records every operation in dispatch order.
	Calls []Call

	screenshotCount int
}

// Serial returns a fixed fake serial.
func (f *FakeDevice) Serial() string { return "fake-0001" }

func (f *FakeDevice) record(op, args string) {
	f.Calls = append(f.Calls, Call{Op: op, Args: args})
}

// CallsSnapshot returns a copy of the recorded calls.
func (f *FakeDevice) CallsSnapshot() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.Calls))
	copy(out, f.Calls)
	return out
}

// CallOps returns just the operation names, in order.
func (f *FakeDevice) CallOps() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ops := make([]string, len(f.Calls))
	for i, c := range f.Calls {
		ops[i] = c.Op
	}
	return ops
}

// Screenshot returns the scripted frame or the injected error.
func (f *FakeDevice) Screenshot(_ context.Context) (image.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("screenshot", "")
	f.screenshotCount++
	if f.ScreenshotErrAt > 0 && f.screenshotCount == f.ScreenshotErrAt {
		return nil, f.ScreenshotErr
	}
	if len(f.Frames) > 0 {
		img := f.Frames[0]
		f.Frames = f.Frames[1:]
		return img, nil
	}
	if f.Frame == nil {
		return nil, &Error{Kind: KindUnavailable, Op: "screenshot", Err: fmt.Errorf("no frame scripted")}
	}
	return f.Frame, nil
}

// DumpUI returns the scripted element tree XML.
func (f *FakeDevice) DumpUI(_ context.Context) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ui dump", "")
	if f.UIDump == nil {
		return nil, &Error{Kind: KindUnavailable, Op: "ui dump", Err: fmt.Errorf("no dump scripted")}
	}
	return f.UIDump, nil
}

// Gesture records the stroke.
func (f *FakeDevice) Gesture(_ context.Context, s Stroke) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("gesture", fmt.Sprintf("%d,%d -> %d,%d in %s", s.X1, s.Y1, s.X2, s.Y2, s.Duration))
	return f.GestureErr
}

// Key records the key event.
func (f *FakeDevice) Key(_ context.Context, code KeyCode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("key", fmt.Sprintf("%d", code))
	return nil
}

// SetClipboard records the clipboard write.
func (f *FakeDevice) SetClipboard(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("clipboard", text)
	return nil
}

// TypeASCII records the typed text.
func (f *FakeDevice) TypeASCII(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("type", text)
	return nil
}

// IMECommit records the committed text.
func (f *FakeDevice) IMECommit(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ime commit", text)
	return nil
}

// StayAwake records the keep-alive toggle.
func (f *FakeDevice) StayAwake(_ context.Context, on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("stay awake", fmt.Sprintf("%t", on))
	return nil
}

// Elevated returns the scripted root capability.
func (f *FakeDevice) Elevated(_ context.Context) bool { return f.Root }
