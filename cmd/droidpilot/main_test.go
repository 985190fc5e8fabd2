package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/droidpilot/droidpilot/internal/session"
)

func TestDoctorCmdHelp(t *testing.T) {
	cmd := rootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"doctor", "--help"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("doctor --help failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "diagnostic checks") {
		t.Errorf("expected help to mention 'diagnostic checks', got: %s", out)
	}
	if !strings.Contains(out, "--device") {
		t.Errorf("expected --device flag in help, got: %s", out)
	}
}

func TestConvosSubcommands(t *testing.T) {
	cmd := newConvosCmd()
	want := map[string]bool{"list": false, "show": false, "rename": false, "delete": false}
	for _, sub := range cmd.Commands() {
		name := strings.Fields(sub.Use)[0]
		if _, ok := want[name]; ok {
			want[name] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("convos is missing the %s subcommand", name)
		}
	}
}

func TestCheckBinaryMissing(t *testing.T) {
	result := checkBinary("droidpilot-no-such-binary")
	if result.status != "FAIL" {
		t.Errorf("status = %q, want FAIL for a missing binary", result.status)
	}
}

func TestRenderStatusShowsStepAndDetail(t *testing.T) {
	buf := new(bytes.Buffer)
	renderStatus(buf, session.Status{Phase: session.PhaseRunning, Step: 3, Detail: "tap(10, 20)"})

	out := buf.String()
	if !strings.Contains(out, "step 3") {
		t.Errorf("expected step counter in %q", out)
	}
	if !strings.Contains(out, "tap(10, 20)") {
		t.Errorf("expected detail in %q", out)
	}
}
