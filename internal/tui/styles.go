// SPDX-License-Identifier: Apache-2.0

package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorAccent = lipgloss.Color("#7D56F4")
	colorMuted  = lipgloss.Color("#6C6C6C")
	colorError  = lipgloss.Color("#FF5F87")
	colorWarn   = lipgloss.Color("#FFAF00")
	colorOK     = lipgloss.Color("#5FD787")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorAccent).
			MarginBottom(1)

	labelStyle = lipgloss.NewStyle().
			Width(14).
			Foreground(colorMuted)

	focusedLabelStyle = labelStyle.
				Foreground(colorAccent).
				Bold(true)

	missingStyle = lipgloss.NewStyle().Foreground(colorError)

	warnStyle = lipgloss.NewStyle().Foreground(colorWarn)

	errorBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorError).
			Foreground(colorError).
			Padding(0, 1)

	statusStyle = lipgloss.NewStyle().Foreground(colorMuted)

	readyStyle = lipgloss.NewStyle().Foreground(colorOK)

	frameStyle = lipgloss.NewStyle().Padding(1, 2)
)
