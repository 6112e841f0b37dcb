package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var (
	primaryColor = lipgloss.Color("#7D56F4")
	accentColor  = lipgloss.Color("#00D7FF")
	mutedColor   = lipgloss.Color("#666666")

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(primaryColor)
	labelStyle = lipgloss.NewStyle().Foreground(mutedColor).Width(16)
	valueStyle = lipgloss.NewStyle().Foreground(accentColor)
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Padding(0, 1)
)

var numbers = message.NewPrinter(language.English)

// render applies s unless colors are disabled.
func render(s lipgloss.Style, text string) string {
	if noColor {
		return text
	}
	return s.Render(text)
}

// field formats one "label value" line.
func field(label string, value any) string {
	if noColor {
		return fmt.Sprintf("%-16s%v", label, value)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top,
		labelStyle.Render(label), valueStyle.Render(fmt.Sprint(value)))
}

// panel joins a title and fields, boxed when colors are enabled.
func panel(title string, lines ...string) string {
	body := lipgloss.JoinVertical(lipgloss.Left, append([]string{render(titleStyle, title)}, lines...)...)
	if noColor {
		return body
	}
	return boxStyle.Render(body)
}

func formatNumber[N ~int | ~int64 | ~uint64](n N) string {
	return numbers.Sprintf("%d", n)
}

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
