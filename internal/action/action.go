// Package action defines the structured instruction a model issues for
// the executor to perform, and the parser that extracts it from model
// output.
package action

import (
	"fmt"
	"strings"
)

// Kind discriminates the Descriptor variants. It is a closed set;
// serialization boundaries reject anything outside it.
type Kind int

const (
	KindTap Kind = iota
	KindLongPress
	KindSwipe
	KindTypeText
	KindBack
	KindHome
	KindFinished
)

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case KindTap:
		return "tap"
	case KindLongPress:
		return "long_press"
	case KindSwipe:
		return "swipe"
	case KindTypeText:
		return "type"
	case KindBack:
		return "back"
	case KindHome:
		return "home"
	case KindFinished:
		return "finish"
	}
	return "unknown"
}

// Descriptor is a model-issued instruction. Exactly the fields relevant
// to its Kind are set; it is consumed once by the executor.
type Descriptor struct {
	Kind Kind

	// Tap / LongPress / Swipe coordinates. Swipe uses X,Y as the start
	// point and X2,Y2 as the end point.
	X, Y   int
	X2, Y2 int

	// DurationMs is the swipe stroke duration.
	DurationMs int

	// Target locates the element for TypeText (text match against the
	// element tree); Text is what gets typed.
	Target string
	Text   string

	// Message is the completion summary carried by Finished.
	Message string
}

// Tap creates a tap descriptor.
func Tap(x, y int) Descriptor { return Descriptor{Kind: KindTap, X: x, Y: y} }

// LongPress creates a long-press descriptor.
func LongPress(x, y int) Descriptor { return Descriptor{Kind: KindLongPress, X: x, Y: y} }

// Swipe creates a swipe descriptor.
func Swipe(x1, y1, x2, y2, durationMs int) Descriptor {
	return Descriptor{Kind: KindSwipe, X: x1, Y: y1, X2: x2, Y2: y2, DurationMs: durationMs}
}

// TypeText creates a text-entry descriptor.
func TypeText(target, text string) Descriptor {
	return Descriptor{Kind: KindTypeText, Target: target, Text: text}
}

// Back creates a global back descriptor.
func Back() Descriptor { return Descriptor{Kind: KindBack} }

// Home creates a global home descriptor.
func Home() Descriptor { return Descriptor{Kind: KindHome} }

// Finished creates a completion descriptor. It is never executed against
// the device; it signals the session to stop.
func Finished(msg string) Descriptor { return Descriptor{Kind: KindFinished, Message: msg} }

// String serializes the descriptor back to call syntax, the same form
// the parser accepts. Used when persisting the action on a message.
func (d Descriptor) String() string {
	switch d.Kind {
	case KindTap, KindLongPress:
		return fmt.Sprintf("%s(%d, %d)", d.Kind, d.X, d.Y)
	case KindSwipe:
		return fmt.Sprintf("swipe(%d, %d, %d, %d, %d)", d.X, d.Y, d.X2, d.Y2, d.DurationMs)
	case KindTypeText:
		return fmt.Sprintf("type(target=%s, text=%s)", quote(d.Target), quote(d.Text))
	case KindBack, KindHome:
		return fmt.Sprintf("%s()", d.Kind)
	case KindFinished:
		return fmt.Sprintf("finish(message=%s)", quote(d.Message))
	}
	return "unknown()"
}

func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}
