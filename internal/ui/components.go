package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/buckleypaul/sideload/internal/device"
)

// Panel renders a rounded-border box with title embedded in the top border.
// width is the total outer width.
func Panel(title, content string, width int, color lipgloss.Color) string {
	colorStyle := lipgloss.NewStyle().Foreground(color)

	// ╭─ TITLE ─...─╮ is 3 + len(title) + 1 + dashes + 1 wide.
	dashCount := width - lipgloss.Width(title) - 5
	if dashCount < 0 {
		dashCount = 0
	}
	topBorder := colorStyle.Render("╭─ ") + title + colorStyle.Render(" "+strings.Repeat("─", dashCount)+"╮")

	innerWidth := width - 4
	if innerWidth < 0 {
		innerWidth = 0
	}
	body := lipgloss.NewStyle().
		Width(innerWidth).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderLeft(true).
		BorderRight(true).
		BorderBottom(true).
		BorderTop(false).
		BorderForeground(color).
		PaddingLeft(1).
		PaddingRight(1).
		Render(content)
	return topBorder + "\n" + body
}

// Title renders a styled heading.
func Title(text string) string {
	return TitleStyle.Render(text)
}

// HelpKey renders a key hint.
func HelpKey(k, desc string) string {
	return HelpKeyStyle.Render(k) + HelpStyle.Render(":"+desc)
}

// Badge renders a small colored badge.
func Badge(text string, color lipgloss.Color) string {
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color("230")).
		Background(color).
		Padding(0, 1).
		Render(text)
}

// SuccessBadge renders a green badge.
func SuccessBadge(text string) string {
	return Badge(text, Success)
}

// ErrorBadge renders a red badge.
func ErrorBadge(text string) string {
	return Badge(text, Error)
}

// ReachabilityBadge colors a device's reachability.
func ReachabilityBadge(r device.Reachability) string {
	switch r {
	case device.ReachabilityActive:
		return Badge(string(r), Success)
	case device.ReachabilityRecentlyDisconnected:
		return Badge(string(r), Warning)
	default:
		return Badge(string(r), Subtle)
	}
}

// StageLine renders "stage  detail" for progress output.
func StageLine(stage, detail string) string {
	return StageStyle.Render(stage) + " " + detail
}

// Warn renders a one-line warning.
func Warn(msg string) string {
	return WarningStyle.Render("! ") + msg
}

// Failure renders a failed stage with the tool's diagnostic underneath,
// unmodified apart from trimming.
func Failure(stage, reason, diagnostic string) string {
	head := ErrorBadge("FAILED") + " " + ErrorStyle.Render(stage) + DimStyle.Render(" ("+reason+")")
	diagnostic = strings.TrimSpace(diagnostic)
	if diagnostic == "" {
		return head
	}
	return head + "\n" + diagnostic
}

// LockedGuidance explains how to recover from a locked-device launch failure.
func LockedGuidance(deviceName string, width int) string {
	if deviceName == "" {
		deviceName = "the device"
	}
	body := fmt.Sprintf("The app was installed but could not start because %s is locked.\n\n"+
		"Unlock %s, keep the screen on, and run the same command again.\n"+
		"The install step will overwrite the existing copy.", deviceName, deviceName)
	return Panel(WarningStyle.Render("Device locked"), body, width, Warning)
}

// DeviceTable renders catalog records, marking the one selection would pick.
func DeviceTable(records []device.Record, selected string) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Subtle)).
		Headers("", "NAME", "STATE", "CORE ID", "LEGACY ID")
	for _, r := range records {
		mark := ""
		if r.CoreID == selected {
			mark = AccentStyle.Render("▸")
		}
		t.Row(mark, r.Name, ReachabilityBadge(r.Reachability), r.CoreID, r.LegacyID)
	}
	return t.Render()
}
