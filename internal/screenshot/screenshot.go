// Package screenshot provides frame encoding for model transport and
// action annotation for the per-turn screenshots persisted with
// conversation messages.
package screenshot

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/droidpilot/droidpilot/internal/action"
	"github.com/droidpilot/droidpilot/internal/perception"
)

// EncodeOptions controls frame encoding.
type EncodeOptions struct {
	// Compress switches from PNG to JPEG at the given quality. Reduces
	// transfer size and latency at the cost of fidelity.
	Compress bool
	Quality  int
}

// Encoded is a frame ready for transport: base64 payload plus its MIME
// type.
type Encoded struct {
	MediaType string
	Data      string
}

// Encode serializes a frame's pixels for the model request.
func Encode(frame *perception.Frame, opts EncodeOptions) (*Encoded, error) {
	var buf bytes.Buffer
	mediaType := "image/png"

	if opts.Compress {
		mediaType = "image/jpeg"
		quality := opts.Quality
		if quality <= 0 {
			quality = 80
		}
		if err := jpeg.Encode(&buf, frame.Pixels, &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("encode frame: %w", err)
		}
	} else {
		if err := png.Encode(&buf, frame.Pixels); err != nil {
			return nil, fmt.Errorf("encode frame: %w", err)
		}
	}

	return &Encoded{
		MediaType: mediaType,
		Data:      base64.StdEncoding.EncodeToString(buf.Bytes()),
	}, nil
}

// DataURI returns the encoded frame as a data URI for image_url content
// parts.
func (e *Encoded) DataURI() string {
	return fmt.Sprintf("data:%s;base64,%s", e.MediaType, e.Data)
}

// Annotate draws a marker for the executed action onto a copy of the
// frame and writes it as a PNG under dir. Returns the saved path. Actions
// with no screen coordinates (back, home, finish, type) are saved
// unmarked.
func Annotate(frame *perception.Frame, act action.Descriptor, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create screenshot dir: %w", err)
	}

	annotated := clone(frame.Pixels)
	switch act.Kind {
	case action.KindTap, action.KindLongPress:
		drawMarker(annotated, act.X, act.Y)
	case action.KindSwipe:
		drawLine(annotated, act.X, act.Y, act.X2, act.Y2)
		drawMarker(annotated, act.X2, act.Y2)
	}

	path := filepath.Join(dir, fmt.Sprintf("step-%d.png", time.Now().UnixNano()))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("save screenshot: %w", err)
	}
	defer f.Close()

	if err := png.Encode(f, annotated); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("save screenshot: %w", err)
	}
	return path, nil
}

func clone(src *image.RGBA) *image.RGBA {
	dst := image.NewRGBA(src.Bounds())
	copy(dst.Pix, src.Pix)
	return dst
}

const (
	markerRadius = 24
	markerStroke = 4
)

// drawMarker paints a red ring centered on the action point.
func drawMarker(img *image.RGBA, cx, cy int) {
	b := img.Bounds()
	outer := markerRadius * markerRadius
	inner := (markerRadius - markerStroke) * (markerRadius - markerStroke)

	for dy := -markerRadius; dy <= markerRadius; dy++ {
		for dx := -markerRadius; dx <= markerRadius; dx++ {
			d := dx*dx + dy*dy
			if d > outer || d < inner {
				continue
			}
			x, y := cx+dx, cy+dy
			if x < b.Min.X || x >= b.Max.X || y < b.Min.Y || y >= b.Max.Y {
				continue
			}
			setRed(img, x, y)
		}
	}
}

// drawLine paints the swipe path.
func drawLine(img *image.RGBA, x1, y1, x2, y2 int) {
	b := img.Bounds()
	steps := max(abs(x2-x1), abs(y2-y1))
	if steps == 0 {
		return
	}
	for i := 0; i <= steps; i++ {
		x := x1 + (x2-x1)*i/steps
		y := y1 + (y2-y1)*i/steps
		for dy := -markerStroke / 2; dy <= markerStroke/2; dy++ {
			for dx := -markerStroke / 2; dx <= markerStroke/2; dx++ {
				px, py := x+dx, y+dy
				if px < b.Min.X || px >= b.Max.X || py < b.Min.Y || py >= b.Max.Y {
					continue
				}
				setRed(img, px, py)
			}
		}
	}
}

func setRed(img *image.RGBA, x, y int) {
	i := img.PixOffset(x, y)
	img.Pix[i] = 0xE5
	img.Pix[i+1] = 0x39
	img.Pix[i+2] = 0x35
	img.Pix[i+3] = 0xFF
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
