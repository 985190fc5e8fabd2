// Package perception acquires screen frames: a screenshot plus the
// accompanying UI element tree, validated and normalized to a directly
// addressable pixel format.
package perception

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"time"

	"github.com/droidpilot/droidpilot/internal/device"
	"github.com/droidpilot/droidpilot/internal/log"
	"github.com/droidpilot/droidpilot/internal/ui"
)

const (
	// blackChannelMax is the per-channel ceiling below which a pixel
	// counts as near-black.
	blackChannelMax = 10

	// blackFrameRatio is the near-black fraction at or above which a
	// frame is classified invalid.
	blackFrameRatio = 0.98

	// sampleSteps walks an 11x11 grid, at least 100 sample points.
	sampleSteps = 10
)

// ErrorKind classifies perception failures.
type ErrorKind int

const (
	// KindUnsupported: the capture API is unavailable on this device.
	KindUnsupported ErrorKind = iota
	// KindTimeout: the capture did not complete in time.
	KindTimeout
	// KindDenied: the platform refused the capture.
	KindDenied
	// KindBlackScreen: the capture succeeded but came back degenerate.
	KindBlackScreen
)

// Error is a classified perception failure. The provider never retries
// internally; retry policy belongs to the session loop.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindBlackScreen:
		return fmt.Sprintf("capture invalid: %v", e.Err)
	default:
		return fmt.Sprintf("capture failed: %v", e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Frame is one perception sample. It is owned exclusively by the step
// that produced it and released once that step's action completes.
type Frame struct {
	Pixels *image.RGBA
	Width  int
	Height int
	Root   *ui.Node

	capturedAt time.Time
}

// CapturedAt returns when the frame was taken.
func (f *Frame) CapturedAt() time.Time { return f.capturedAt }

// Release drops the frame's buffers. The frame must not be used after.
func (f *Frame) Release() {
	f.Pixels = nil
	if f.Root != nil {
		f.Root.Release()
		f.Root = nil
	}
}

// Provider captures frames from a device.
type Provider struct {
	dev device.Device
}

// New creates a perception provider for the device.
func New(dev device.Device) *Provider {
	return &Provider{dev: dev}
}

// Capture takes a screenshot and a UI tree snapshot. The screenshot is
// normalized to RGBA and validated against the black-frame check before
// being returned; the UI dump is parsed into an element tree. Capture
// mutates nothing outside the returned frame.
func (p *Provider) Capture(ctx context.Context) (*Frame, error) {
	start := time.Now()

	img, err := p.dev.Screenshot(ctx)
	if err != nil {
		perr := mapDeviceError(err)
		log.LogCapture(0, 0, time.Since(start), perr)
		return nil, perr
	}

	rgba := normalize(img)
	img = nil // the pre-conversion image is not retained

	if rgba.Bounds().Dx() == 0 || rgba.Bounds().Dy() == 0 {
		return nil, &Error{Kind: KindBlackScreen, Err: fmt.Errorf("zero-size frame")}
	}
	if frac := blackFraction(rgba); frac >= blackFrameRatio {
		return nil, &Error{Kind: KindBlackScreen, Err: fmt.Errorf("%.0f%% of sampled pixels are near-black", frac*100)}
	}

	dump, err := p.dev.DumpUI(ctx)
	if err != nil {
		return nil, mapDeviceError(err)
	}
	root, err := ui.Parse(dump)
	if err != nil {
		return nil, &Error{Kind: KindUnsupported, Err: err}
	}

	frame := &Frame{
		Pixels:     rgba,
		Width:      rgba.Bounds().Dx(),
		Height:     rgba.Bounds().Dy(),
		Root:       root,
		capturedAt: start,
	}
	log.LogCapture(frame.Width, frame.Height, time.Since(start), nil)
	return frame, nil
}

// normalize converts any decoded image to RGBA so pixels are directly
// addressable. An image that already is RGBA passes through.
func normalize(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return rgba
}

// blackFraction samples a grid across the frame and returns the fraction
// of near-black pixels.
func blackFraction(img *image.RGBA) float64 {
	b := img.Bounds()
	stepX := b.Dx() / sampleSteps
	if stepX < 1 {
		stepX = 1
	}
	stepY := b.Dy() / sampleSteps
	if stepY < 1 {
		stepY = 1
	}

	black, total := 0, 0
	for y := b.Min.Y; y < b.Max.Y; y += stepY {
		for x := b.Min.X; x < b.Max.X; x += stepX {
			i := img.PixOffset(x, y)
			r, g, bl := img.Pix[i], img.Pix[i+1], img.Pix[i+2]
			if r < blackChannelMax && g < blackChannelMax && bl < blackChannelMax {
				black++
			}
			total++
		}
	}
	if total == 0 {
		return 1
	}
	return float64(black) / float64(total)
}

// mapDeviceError translates classified device failures into the
// perception taxonomy.
func mapDeviceError(err error) error {
	var derr *device.Error
	if errors.As(err, &derr) {
		switch derr.Kind {
		case device.KindTimeout:
			return &Error{Kind: KindTimeout, Err: err}
		case device.KindDenied:
			return &Error{Kind: KindDenied, Err: err}
		}
	}
	return &Error{Kind: KindUnsupported, Err: err}
}
