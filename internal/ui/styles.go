// Package ui renders styled terminal output for the tudu CLI.
package ui

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/tudu-app/tudu/internal/store/schema"
)

var (
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	doneStyle   = mutedStyle.Strikethrough(true)

	bannerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("12")).
			Padding(0, 1)
	errorBannerStyle = bannerStyle.BorderForeground(lipgloss.Color("9"))
)

func init() {
	if os.Getenv("NO_COLOR") != "" || !IsTerminal(os.Stdout) {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// RenderAccent highlights headings and progress markers.
func RenderAccent(s string) string { return accentStyle.Render(s) }

// RenderPass renders a success marker.
func RenderPass(s string) string { return passStyle.Render(s) }

// RenderWarn renders a warning marker.
func RenderWarn(s string) string { return warnStyle.Render(s) }

// RenderFail renders an error marker.
func RenderFail(s string) string { return failStyle.Render(s) }

// RenderMuted renders secondary text.
func RenderMuted(s string) string { return mutedStyle.Render(s) }

// RenderTask renders one task line with its short id.
func RenderTask(t schema.Task) string {
	box := "[ ]"
	text := t.Text
	if t.Completed {
		box = RenderPass("[x]")
		text = doneStyle.Render(text)
	}
	return fmt.Sprintf("%s %s %s", box, text, RenderMuted(ShortID(t.ID)))
}

// RenderList renders a list title, marking the current one.
func RenderList(l schema.TodoList, current bool, count int) string {
	marker := "  "
	title := l.Title
	if current {
		marker = RenderAccent("* ")
		title = accentStyle.Render(title)
	}
	return fmt.Sprintf("%s%s %s", marker, title, RenderMuted(fmt.Sprintf("(%d) %s", count, ShortID(l.ID))))
}

// RenderBanner boxes a sync status message.
func RenderBanner(text string, isError bool) string {
	if text == "" {
		return ""
	}
	if isError {
		return errorBannerStyle.Render(RenderFail("!") + " " + text)
	}
	return bannerStyle.Render(text)
}

// ShortID returns the first 8 characters of an id.
func ShortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// Indent prefixes every line of s with n spaces.
func Indent(s string, n int) string {
	pad := strings.Repeat(" ", n)
	return pad + strings.ReplaceAll(s, "\n", "\n"+pad)
}
