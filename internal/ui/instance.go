package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	pkgtypes "github.com/vietdv277/gpuws/pkg/types"
)

// labelWidth fits the longest label, "CURRENT STATE"
const labelWidth = 15

// NotCreatedMessage is printed by describe when the instance does not exist
const NotCreatedMessage = "Instance has not been created yet"

// SSHCommand returns the command that opens a shell on a running instance
func SSHCommand(keyPath, user, host string) string {
	return fmt.Sprintf("ssh -i %q %s@%s", keyPath, user, host)
}

// PrintInstance writes the state of inst and, while it is running, how to
// connect to it.
func PrintInstance(w io.Writer, inst *pkgtypes.Instance, keyPath, user string) {
	rows := [][2]string{
		{"CURRENT STATE", formatState(inst.State)},
		{"INSTANCE ID", IDStyle.Render(inst.ID)},
		{"NAME", NameStyle.Render(inst.Name)},
		{"TYPE", ValueStyle.Render(inst.Type)},
		{"AZ", ValueStyle.Render(inst.AZ)},
		{"PRIVATE IP", ValueStyle.Render(orDash(inst.PrivateIP))},
	}
	if inst.IsRunning() {
		rows = append(rows,
			[2]string{"PUBLIC IP", ValueStyle.Render(orDash(inst.PublicIP))},
			[2]string{"PUBLIC DNS", ValueStyle.Render(orDash(inst.PublicDNS))},
		)
	}

	var sb strings.Builder
	for _, row := range rows {
		sb.WriteString(HeaderStyle.Render(padRight(row[0], labelWidth)))
		sb.WriteString(": ")
		sb.WriteString(row[1])
		sb.WriteString("\n")
	}

	if inst.IsRunning() && inst.PublicDNS != "" {
		sb.WriteString("\n")
		sb.WriteString(HintStyle.Render("Connect with:"))
		sb.WriteString("\n  ")
		sb.WriteString(SSHCommand(keyPath, user, inst.PublicDNS))
		sb.WriteString("\n")
	}

	fmt.Fprint(w, sb.String())
}

// PrintNotCreated writes the describe message for a missing instance
func PrintNotCreated(w io.Writer) {
	fmt.Fprintln(w, MutedStyle.Render(NotCreatedMessage))
}

func formatState(state pkgtypes.InstanceState) string {
	var indicator string
	var style lipgloss.Style

	switch state {
	case pkgtypes.InstanceStateRunning:
		indicator = "●"
		style = RunningStyle
	case pkgtypes.InstanceStateStopped:
		indicator = "○"
		style = StoppedStyle
	case pkgtypes.InstanceStatePending, pkgtypes.InstanceStateStopping, pkgtypes.InstanceStateShuttingDown:
		indicator = "◐"
		style = PendingStyle
	case pkgtypes.InstanceStateTerminated:
		indicator = "✗"
		style = FailedStyle
	default:
		indicator = "○"
		style = StoppedStyle
	}

	return style.Render(fmt.Sprintf("%s %s", indicator, state))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
