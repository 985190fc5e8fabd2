package device

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/droidpilot/droidpilot/internal/log"
)

const (
	defaultCommandTimeout = 15 * time.Second
	uiDumpPath            = "/sdcard/.droidpilot/ui.xml"
)

// ADB drives an attached device through the adb binary.
type ADB struct {
	bin     string
	serial  string
	timeout time.Duration
}

// NewADB creates a device handle for the given serial. An empty serial
// targets the only attached device.
func NewADB(serial string) *ADB {
	return &ADB{bin: "adb", serial: serial, timeout: defaultCommandTimeout}
}

// Serial returns the configured device serial.
func (a *ADB) Serial() string { return a.serial }

// Screenshot captures the screen via screencap and decodes the PNG.
func (a *ADB) Screenshot(ctx context.Context) (image.Image, error) {
	out, err := a.run(ctx, "screenshot", "exec-out", "screencap", "-p")
	if err != nil {
		return nil, err
	}
	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		return nil, &Error{Kind: KindUnavailable, Op: "screenshot", Err: fmt.Errorf("decode screencap output: %w", err)}
	}
	return img, nil
}

// DumpUI captures the element tree. uiautomator writes the dump to a
// file on the device, which is read back and removed.
func (a *ADB) DumpUI(ctx context.Context) ([]byte, error) {
	if _, err := a.run(ctx, "ui dump", "shell", "uiautomator", "dump", uiDumpPath); err != nil {
		return nil, err
	}
	out, err := a.run(ctx, "ui dump", "exec-out", "cat", uiDumpPath)
	if err != nil {
		return nil, err
	}
	_, _ = a.run(ctx, "ui dump", "shell", "rm", "-f", uiDumpPath)
	return out, nil
}

// Gesture dispatches a stroke with input swipe. A zero-length stroke
// with a hold duration acts as tap or long-press.
func (a *ADB) Gesture(ctx context.Context, s Stroke) error {
	_, err := a.run(ctx, "gesture", "shell", "input", "swipe",
		strconv.Itoa(s.X1), strconv.Itoa(s.Y1),
		strconv.Itoa(s.X2), strconv.Itoa(s.Y2),
		strconv.Itoa(int(s.Duration.Milliseconds())))
	return err
}

// Key dispatches a key event.
func (a *ADB) Key(ctx context.Context, code KeyCode) error {
	_, err := a.run(ctx, "keyevent", "shell", "input", "keyevent", strconv.Itoa(int(code)))
	return err
}

// SetClipboard replaces the clipboard through cmd clipboard (Android 10+).
func (a *ADB) SetClipboard(ctx context.Context, text string) error {
	_, err := a.run(ctx, "clipboard", "shell", "cmd", "clipboard", "set-text", shellQuote(text))
	return err
}

// TypeASCII types text through input text. Spaces must be encoded as %s
// for the shell input pipeline.
func (a *ADB) TypeASCII(ctx context.Context, text string) error {
	encoded := strings.ReplaceAll(shellQuote(text), " ", "%s")
	_, err := a.run(ctx, "type", "shell", "input", "text", encoded)
	return err
}

// IMECommit commits text through the helper keyboard's broadcast
// receiver, which handles non-ASCII input the shell pipeline cannot.
func (a *ADB) IMECommit(ctx context.Context, text string) error {
	_, err := a.run(ctx, "ime commit", "shell", "am", "broadcast",
		"-a", "ADB_INPUT_TEXT", "--es", "msg", shellQuote(text))
	return err
}

// StayAwake toggles keep-screen-on while plugged in.
func (a *ADB) StayAwake(ctx context.Context, on bool) error {
	state := "false"
	if on {
		state = "true"
	}
	_, err := a.run(ctx, "stay awake", "shell", "svc", "power", "stayon", state)
	return err
}

// Elevated probes for root execution. The capability is a plain boolean;
// how the grant was obtained is outside the core.
func (a *ADB) Elevated(ctx context.Context) bool {
	out, err := a.run(ctx, "elevated probe", "shell", "su", "0", "id", "-u")
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(out)) == "0"
}

// IsEmulator checks build fingerprints for emulator markers.
func (a *ADB) IsEmulator(ctx context.Context) bool {
	for _, prop := range []string{"ro.build.fingerprint", "ro.product.model", "ro.product.brand"} {
		out, err := a.run(ctx, "getprop", "shell", "getprop", prop)
		if err != nil {
			continue
		}
		v := strings.ToLower(strings.TrimSpace(string(out)))
		if strings.HasPrefix(v, "generic") || strings.Contains(v, "emulator") || strings.Contains(v, "sdk_gphone") {
			return true
		}
	}
	return false
}

// run executes an adb command with the per-call timeout and classifies
// failures.
func (a *ADB) run(ctx context.Context, op string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	full := args
	if a.serial != "" {
		full = append([]string{"-s", a.serial}, args...)
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, a.bin, full...)
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		return nil, a.classify(op, err, stderr.String())
	}
	log.Logger().Debug("adb command",
		zap.String("op", op),
		zap.Strings("args", args),
		zap.Int("bytes", len(out)),
	)
	return out, nil
}

func (a *ADB) classify(op string, err error, stderr string) error {
	kind := KindUnavailable
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	case errors.Is(err, exec.ErrNotFound):
		kind = KindUnavailable
	case strings.Contains(stderr, "permission") || strings.Contains(stderr, "denied") ||
		strings.Contains(stderr, "SecurityException"):
		kind = KindDenied
	}
	if stderr != "" {
		err = fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr))
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// shellQuote wraps text for safe transport through adb shell.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
