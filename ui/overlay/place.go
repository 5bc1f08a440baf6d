package overlay

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

var shadowStyle = lipgloss.NewStyle().Foreground(colorFrame)

// PlaceOverlay draws fg on top of bg with its top-left corner at (x, y).
// With center set, x and y are ignored and fg is centered. shadow adds a
// one-cell drop shadow to the right and below fg.
func PlaceOverlay(x, y int, fg, bg string, shadow, center bool) string {
	fgLines := strings.Split(fg, "\n")
	bgLines := strings.Split(bg, "\n")

	fgWidth := 0
	for _, l := range fgLines {
		fgWidth = max(fgWidth, ansi.StringWidth(l))
	}
	bgWidth := 0
	for _, l := range bgLines {
		bgWidth = max(bgWidth, ansi.StringWidth(l))
	}

	if shadow {
		fgLines = addShadow(fgLines, fgWidth)
		fgWidth++
	}

	if center {
		x = (bgWidth - fgWidth) / 2
		y = (len(bgLines) - len(fgLines)) / 2
	}
	x = max(x, 0)
	y = max(y, 0)

	for len(bgLines) < y+len(fgLines) {
		bgLines = append(bgLines, "")
	}

	for i, fl := range fgLines {
		row := y + i
		bl := bgLines[row]
		if w := ansi.StringWidth(bl); w < x {
			bl += strings.Repeat(" ", x-w)
		}
		left := ansi.Truncate(bl, x, "")
		right := ansi.TruncateLeft(bl, x+ansi.StringWidth(fl), "")
		bgLines[row] = left + fl + "\x1b[0m" + right
	}
	return strings.Join(bgLines, "\n")
}

func addShadow(lines []string, width int) []string {
	out := make([]string, 0, len(lines)+1)
	for i, l := range lines {
		pad := width - ansi.StringWidth(l)
		if pad > 0 {
			l += strings.Repeat(" ", pad)
		}
		if i == 0 {
			out = append(out, l+" ")
		} else {
			out = append(out, l+shadowStyle.Render("▌"))
		}
	}
	out = append(out, " "+shadowStyle.Render(strings.Repeat("▀", width)))
	return out
}
