package action

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrMalformed is returned when model output contains no recognizable
// action. It is a hard error, never a silently-ignored no-op.
var ErrMalformed = errors.New("malformed action")

const defaultSwipeDurationMs = 300

var (
	thinkRe = regexp.MustCompile(`(?s)<think>(.*?)</think>`)

	pointRe  = regexp.MustCompile(`\b(tap|long_press)\s*\(\s*(-?\d+)\s*,\s*(-?\d+)\s*\)`)
	swipeRe  = regexp.MustCompile(`\bswipe\s*\(\s*(-?\d+)\s*,\s*(-?\d+)\s*,\s*(-?\d+)\s*,\s*(-?\d+)\s*(?:,\s*(\d+)\s*)?\)`)
	typeRe   = regexp.MustCompile(`\btype\s*\(\s*target\s*=\s*"((?:[^"\\]|\\.)*)"\s*,\s*text\s*=\s*"((?:[^"\\]|\\.)*)"\s*\)`)
	backRe   = regexp.MustCompile(`\bback\s*\(\s*\)`)
	homeRe   = regexp.MustCompile(`\bhome\s*\(\s*\)`)
	finishRe = regexp.MustCompile(`\bfinish\s*\(\s*(?:message\s*=\s*"((?:[^"\\]|\\.)*)")?\s*\)`)
)

// StripThinking removes the reasoning block from raw model output,
// leaving only the visible reply.
func StripThinking(raw string) string {
	return strings.TrimSpace(thinkRe.ReplaceAllString(raw, ""))
}

// Parse extracts the action and an optional thinking trace from raw model
// output. The thinking trace is whatever the model wrapped in
// <think>...</think>; the action is the first call-syntax expression
// found outside it.
func Parse(raw string) (Descriptor, string, error) {
	thinking := ""
	body := raw
	if m := thinkRe.FindStringSubmatchIndex(raw); m != nil {
		thinking = strings.TrimSpace(raw[m[2]:m[3]])
		body = raw[:m[0]] + raw[m[1]:]
	}

	type candidate struct {
		pos  int
		desc Descriptor
	}
	var best *candidate
	consider := func(pos int, d Descriptor) {
		if pos < 0 {
			return
		}
		if best == nil || pos < best.pos {
			best = &candidate{pos: pos, desc: d}
		}
	}

	if m := pointRe.FindStringSubmatchIndex(body); m != nil {
		name := body[m[2]:m[3]]
		x := mustInt(body[m[4]:m[5]])
		y := mustInt(body[m[6]:m[7]])
		if name == "tap" {
			consider(m[0], Tap(x, y))
		} else {
			consider(m[0], LongPress(x, y))
		}
	}
	if m := swipeRe.FindStringSubmatchIndex(body); m != nil {
		dur := defaultSwipeDurationMs
		if m[10] >= 0 {
			dur = mustInt(body[m[10]:m[11]])
		}
		consider(m[0], Swipe(
			mustInt(body[m[2]:m[3]]), mustInt(body[m[4]:m[5]]),
			mustInt(body[m[6]:m[7]]), mustInt(body[m[8]:m[9]]), dur))
	}
	if m := typeRe.FindStringSubmatchIndex(body); m != nil {
		consider(m[0], TypeText(unquote(body[m[2]:m[3]]), unquote(body[m[4]:m[5]])))
	}
	if m := backRe.FindStringIndex(body); m != nil {
		consider(m[0], Back())
	}
	if m := homeRe.FindStringIndex(body); m != nil {
		consider(m[0], Home())
	}
	if m := finishRe.FindStringSubmatchIndex(body); m != nil {
		msg := ""
		if m[2] >= 0 {
			msg = unquote(body[m[2]:m[3]])
		}
		consider(m[0], Finished(msg))
	}

	if best == nil {
		return Descriptor{}, thinking, fmt.Errorf("%w: no action found in %q", ErrMalformed, snippet(raw))
	}
	return best.desc, thinking, nil
}

func mustInt(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func unquote(s string) string {
	s = strings.ReplaceAll(s, `\"`, `"`)
	s = strings.ReplaceAll(s, `\\`, `\`)
	return s
}

func snippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 120 {
		return s[:120] + "..."
	}
	return s
}
