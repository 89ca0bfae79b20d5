package display

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Brand Colors
const (
	RoteBlue   = "#4A90E2"
	RoteGreen  = "#00D09C"
	RoteAmber  = "#FF9500"
	RoteRed    = "#FF3B30"
	DarkSlate  = "#2C3E50"
	MediumGray = "#9B9B9B"
	White      = "#FFFFFF"
)

var (
	// Hierarchy
	TitleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(RoteBlue))
	SubtextStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(MediumGray))

	// Semantic
	SuccessStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(RoteGreen)).Bold(true)
	WarningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(RoteAmber)).Bold(true)
	ErrorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color(RoteRed)).Bold(true)

	// Layout
	BannerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(RoteBlue)).
			Padding(0, 2)
)

// RenderRunHeader draws the banner shown before a task starts executing.
func RenderRunHeader(taskType, description, url string) string {
	var lines []string
	lines = append(lines, TitleStyle.Render(taskType))
	if description != "" {
		lines = append(lines, description)
	}
	if url != "" {
		lines = append(lines, SubtextStyle.Render(url))
	}
	return BannerStyle.Render(strings.Join(lines, "\n"))
}

// RenderBatchHeader draws the banner shown before a batch starts.
func RenderBatchHeader(file string, taskCount, parallel int) string {
	title := TitleStyle.Render(fmt.Sprintf("Batch: %d task(s)", taskCount))
	detail := SubtextStyle.Render(fmt.Sprintf("%s, %d worker(s)", file, parallel))
	return BannerStyle.Render(title + "\n" + detail)
}
