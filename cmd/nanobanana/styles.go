package main

import "github.com/charmbracelet/lipgloss"

// Centralized style definitions for the TUI.
var (
	userPrefixStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("4")) // blue
	userBlockStyle  = lipgloss.NewStyle().PaddingLeft(1)

	thinkingTextStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
	thinkingFooterStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Faint(true)

	answerPrefixStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("3")) // yellow
	answerBlockStyle  = lipgloss.NewStyle().PaddingLeft(1)

	attachmentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6")) // cyan
	imageStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("5")) // magenta

	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))

	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))

	errorBlockStyle = lipgloss.NewStyle().
			PaddingLeft(1).
			BorderLeft(true).
			BorderStyle(lipgloss.ThickBorder()).
			BorderForeground(lipgloss.Color("1"))
)
