package report

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// minWrapWidth keeps tables readable on narrow terminals.
const minWrapWidth = 40

// RenderTerminal renders markdown as ANSI-styled text wrapped to width.
func RenderTerminal(markdown string, width int, style string) (string, error) {
	markdown = strings.TrimSpace(markdown)
	if markdown == "" {
		return "", nil
	}
	if width < minWrapWidth {
		width = minWrapWidth
	}
	if strings.TrimSpace(style) == "" {
		style = "dark"
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", err
	}
	rendered, err := renderer.Render(markdown)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(rendered, "\n"), nil
}
