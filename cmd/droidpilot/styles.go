package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/droidpilot/droidpilot/internal/session"
)

var (
	titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	stepStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	failStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// renderStatus prints one line per status update: the step counter, the
// phase, and the detail string.
func renderStatus(out io.Writer, st session.Status) {
	phase := dimStyle.Render(st.Phase.String())
	switch st.Phase {
	case session.PhaseRunning:
		phase = stepStyle.Render(fmt.Sprintf("step %d", st.Step))
	case session.PhasePaused:
		phase = warnStyle.Render("paused")
	case session.PhaseStopped:
		phase = okStyle.Render("stopped")
	}
	if st.Detail == "" {
		fmt.Fprintln(out, phase)
		return
	}
	fmt.Fprintf(out, "%s  %s\n", phase, st.Detail)
}
