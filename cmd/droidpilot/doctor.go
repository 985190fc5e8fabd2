package main

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/droidpilot/droidpilot/internal/config"
	"github.com/droidpilot/droidpilot/internal/device"
	"github.com/droidpilot/droidpilot/internal/perception"
)

func newDoctorCmd() *cobra.Command {
	var serialFlag string

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check prerequisites and device health",
		Long:  "Runs diagnostic checks: adb binary, configuration, attached device, screen capture, UI dump, input method, and elevated execution.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(cmd, serialFlag)
		},
	}

	cmd.Flags().StringVarP(&serialFlag, "device", "d", "", "device serial")
	return cmd
}

type checkResult struct {
	name   string
	status string // "PASS", "FAIL", "WARN"
	detail string
}

func runDoctor(cmd *cobra.Command, serialFlag string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, titleStyle.Render("Droidpilot Doctor"))
	fmt.Fprintln(out, "=================")

	ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
	defer cancel()

	var results []checkResult

	// 1. adb binary
	adbResult := checkBinary("adb")
	results = append(results, adbResult)

	// 2. Configuration
	cfg, cfgResult := checkSettings(serialFlag)
	results = append(results, cfgResult)

	// The device checks need adb on the path.
	if adbResult.status == "PASS" {
		serial := serialFlag
		if cfg != nil && serial == "" {
			serial = cfg.DeviceSerial
		}
		dev := device.NewADB(serial)

		results = append(results, checkDeviceAttached(ctx, dev))
		results = append(results, checkCapture(ctx, dev))
		results = append(results, checkIME(ctx, serial))
		results = append(results, checkElevated(ctx, dev))
		results = append(results, checkEmulator(ctx, dev))
	} else {
		results = append(results, checkResult{"Device", "FAIL", "skipped (no adb)"})
	}

	passed, failed, warned := 0, 0, 0
	for _, r := range results {
		printCheckResult(out, r)
		switch r.status {
		case "PASS":
			passed++
		case "FAIL":
			failed++
		case "WARN":
			warned++
		}
	}

	fmt.Fprintf(out, "\n%d passed, %d failed, %d warning\n", passed, failed, warned)

	if failed > 0 {
		return fmt.Errorf("%d check(s) failed", failed)
	}
	return nil
}

func printCheckResult(out io.Writer, r checkResult) {
	status := r.status
	switch r.status {
	case "PASS":
		status = okStyle.Render(status)
	case "FAIL":
		status = failStyle.Render(status)
	case "WARN":
		status = warnStyle.Render(status)
	}
	fmt.Fprintf(out, "[%s] %s: %s\n", status, r.name, r.detail)
}

func checkBinary(name string) checkResult {
	path, err := exec.LookPath(name)
	if err != nil {
		return checkResult{name, "FAIL", "not found on PATH"}
	}
	return checkResult{name, "PASS", path}
}

func checkSettings(serialFlag string) (*config.Settings, checkResult) {
	loaded, _, err := loadSettings(serialFlag)
	if err != nil {
		return nil, checkResult{"Configuration", "FAIL", err.Error()}
	}
	if err := loaded.Validate(); err != nil {
		return loaded, checkResult{"Configuration", "WARN", err.Error()}
	}
	return loaded, checkResult{"Configuration", "PASS", "api key and input mode set"}
}

func checkDeviceAttached(ctx context.Context, dev *device.ADB) checkResult {
	if _, err := dev.DumpUI(ctx); err != nil {
		return checkResult{"Device attached", "FAIL", err.Error()}
	}
	name := dev.Serial()
	if name == "" {
		name = "default device"
	}
	return checkResult{"Device attached", "PASS", name}
}

func checkCapture(ctx context.Context, dev *device.ADB) checkResult {
	frame, err := perception.New(dev).Capture(ctx)
	if err != nil {
		return checkResult{"Screen capture", "FAIL", err.Error()}
	}
	defer frame.Release()
	return checkResult{"Screen capture", "PASS",
		fmt.Sprintf("%dx%d, screen is not black", frame.Width, frame.Height)}
}

func checkIME(ctx context.Context, serial string) checkResult {
	args := []string{}
	if serial != "" {
		args = append(args, "-s", serial)
	}
	args = append(args, "shell", "ime", "list", "-s")

	out, err := exec.CommandContext(ctx, "adb", args...).Output()
	if err != nil {
		return checkResult{"Input method", "WARN", "could not list input methods"}
	}
	if !strings.Contains(string(out), "AdbIME") {
		return checkResult{"Input method", "WARN", "helper keyboard not installed; ime input mode unavailable"}
	}
	return checkResult{"Input method", "PASS", "helper keyboard installed"}
}

func checkElevated(ctx context.Context, dev *device.ADB) checkResult {
	if !dev.Elevated(ctx) {
		return checkResult{"Elevated execution", "WARN", "root not available; some apps may block input"}
	}
	return checkResult{"Elevated execution", "PASS", "root available"}
}

func checkEmulator(ctx context.Context, dev *device.ADB) checkResult {
	if dev.IsEmulator(ctx) {
		return checkResult{"Hardware", "WARN", "device looks like an emulator"}
	}
	return checkResult{"Hardware", "PASS", "physical device"}
}
