// Package executor translates model-issued action descriptors into
// device gestures and text-entry operations.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/droidpilot/droidpilot/internal/action"
	"github.com/droidpilot/droidpilot/internal/config"
	"github.com/droidpilot/droidpilot/internal/device"
	"github.com/droidpilot/droidpilot/internal/log"
	"github.com/droidpilot/droidpilot/internal/perception"
	"github.com/droidpilot/droidpilot/internal/ui"
)

// ErrorKind classifies execution failures.
type ErrorKind int

const (
	// KindElementNotFound: no element in the tree matched the locator.
	KindElementNotFound ErrorKind = iota
	// KindNotActionable: the element and its whole ancestor chain cannot
	// perform the action.
	KindNotActionable
	// KindGestureDispatchFailed: the platform rejected the gesture.
	KindGestureDispatchFailed
	// KindUnsupportedOnPlatformVersion: the operation is unavailable on
	// this device.
	KindUnsupportedOnPlatformVersion
)

// Error is a classified execution failure. The executor never retries;
// the failure is reported as the step's outcome so the model can react.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string { return e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

// Result is the outcome of executing one action.
type Result struct {
	OK     bool
	Detail string
	Err    error
}

func failure(kind ErrorKind, err error) Result {
	return Result{Detail: err.Error(), Err: &Error{Kind: kind, Err: err}}
}

// Executor executes action descriptors against a device.
type Executor struct {
	dev     device.Device
	profile device.Profile
	mode    config.InputMode
}

// New creates an executor. mode is the persisted text-entry preference;
// exactly one strategy is used per TypeText, never a fallback chain.
func New(dev device.Device, profile device.Profile, mode config.InputMode) *Executor {
	return &Executor{dev: dev, profile: profile, mode: mode}
}

// Execute performs a single action against the frame it was decided on.
// Finished is acknowledged without touching the device.
func (e *Executor) Execute(ctx context.Context, act action.Descriptor, frame *perception.Frame) Result {
	switch act.Kind {
	case action.KindTap:
		return e.stroke(ctx, "tap", device.TapAt(act.X, act.Y, e.profile.Tap()))

	case action.KindLongPress:
		return e.stroke(ctx, "long_press", device.TapAt(act.X, act.Y, e.profile.LongPress()))

	case action.KindSwipe:
		dur := time.Duration(act.DurationMs) * time.Millisecond
		if dur <= 0 {
			dur = e.profile.Swipe()
		}
		return e.stroke(ctx, "swipe", device.Stroke{
			X1: act.X, Y1: act.Y, X2: act.X2, Y2: act.Y2, Duration: dur,
		})

	case action.KindTypeText:
		return e.typeText(ctx, act, frame)

	case action.KindBack:
		return e.key(ctx, "back", device.KeyBack)

	case action.KindHome:
		return e.key(ctx, "home", device.KeyHome)

	case action.KindFinished:
		// Completion is the session's concern, not a device operation.
		return Result{OK: true, Detail: "finished"}
	}

	return failure(KindUnsupportedOnPlatformVersion, fmt.Errorf("unknown action kind %v", act.Kind))
}

func (e *Executor) stroke(ctx context.Context, kind string, s device.Stroke) Result {
	if err := e.dev.Gesture(ctx, s); err != nil {
		return failure(classifyDispatch(err), fmt.Errorf("%s dispatch: %w", kind, err))
	}
	log.LogGesture(kind, s.X1, s.Y1, s.X2, s.Y2, s.Duration)
	return Result{OK: true, Detail: kind}
}

func (e *Executor) key(ctx context.Context, name string, code device.KeyCode) Result {
	if err := e.dev.Key(ctx, code); err != nil {
		return failure(classifyDispatch(err), fmt.Errorf("%s dispatch: %w", name, err))
	}
	return Result{OK: true, Detail: name}
}

// typeText resolves the target element, focuses it via a click, and
// applies the configured input strategy.
func (e *Executor) typeText(ctx context.Context, act action.Descriptor, frame *perception.Frame) Result {
	node := ui.FindByText(frame.Root, act.Target)
	if node == nil {
		return failure(KindElementNotFound, fmt.Errorf("no element matches %q", act.Target))
	}

	if res := e.Click(ctx, node); !res.OK {
		return res
	}

	switch e.mode {
	case config.InputSetText:
		if err := e.dev.TypeASCII(ctx, act.Text); err != nil {
			return failure(classifyDispatch(err), fmt.Errorf("type text: %w", err))
		}
	case config.InputPaste:
		if err := e.dev.SetClipboard(ctx, act.Text); err != nil {
			return failure(classifyDispatch(err), fmt.Errorf("set clipboard: %w", err))
		}
		if err := e.dev.Key(ctx, device.KeyPaste); err != nil {
			return failure(classifyDispatch(err), fmt.Errorf("paste: %w", err))
		}
	case config.InputIME:
		if err := e.dev.IMECommit(ctx, act.Text); err != nil {
			return failure(classifyDispatch(err), fmt.Errorf("ime commit: %w", err))
		}
	default:
		return failure(KindUnsupportedOnPlatformVersion, fmt.Errorf("unknown input mode %q", e.mode))
	}

	return Result{OK: true, Detail: fmt.Sprintf("typed into %q", act.Target)}
}

// Click performs a click on the element, climbing the ancestor chain to
// the nearest clickable node when the element itself is not actionable.
// Intermediate nodes inspected by the climb are released.
func (e *Executor) Click(ctx context.Context, node *ui.Node) Result {
	target := ui.ClimbClickable(node)
	if target == nil {
		return failure(KindNotActionable, fmt.Errorf("element and its ancestors are not clickable"))
	}

	x, y := target.Center()
	target.Release()

	return e.stroke(ctx, "click", device.TapAt(x, y, e.profile.Tap()))
}

// classifyDispatch maps classified device failures onto the execution
// taxonomy.
func classifyDispatch(err error) ErrorKind {
	var derr *device.Error
	if errors.As(err, &derr) && derr.Kind == device.KindUnavailable {
		return KindUnsupportedOnPlatformVersion
	}
	return KindGestureDispatchFailed
}
