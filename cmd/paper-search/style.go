// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// theme holds the styles used for CLI output.
type theme struct {
	title lipgloss.Style
	label lipgloss.Style
	ok    lipgloss.Style
	fail  lipgloss.Style
	hint  lipgloss.Style
}

var styles = newTheme()

func newTheme() theme {
	return theme{
		title: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5FAFD7")),
		label: lipgloss.NewStyle().Foreground(lipgloss.Color("#AFAFAF")),
		ok:    lipgloss.NewStyle().Foreground(lipgloss.Color("#00D787")).Bold(true),
		fail:  lipgloss.NewStyle().Foreground(lipgloss.Color("#FF005F")).Bold(true),
		hint:  lipgloss.NewStyle().Foreground(lipgloss.Color("#6C6C6C")).Italic(true),
	}
}

// defaultWidth is used when stdout is not a terminal.
const defaultWidth = 100

// termWidth returns the terminal width of stdout, or defaultWidth.
func termWidth() int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return defaultWidth
	}
	w, _, err := term.GetSize(fd)
	if err != nil || w <= 0 {
		return defaultWidth
	}
	return w
}

// clip shortens s to n runes, adding "..." if it was cut.
func clip(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}

// status renders a success or failure marker.
func status(ok bool) string {
	if ok {
		return styles.ok.Render("✓")
	}
	return styles.fail.Render("✗")
}
