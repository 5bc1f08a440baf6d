package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/kastheco/mountie/device"
	zone "github.com/lrstanley/bubblezone"
	"github.com/mattn/go-runewidth"
)

const (
	maxNameWidth  = 16
	maxLabelWidth = 20
	sizeWidth     = 9
	stateWidth    = 9
)

// List renders the device registry, one row per device.
type List struct {
	items         []device.Entry
	selectedIdx   int
	height, width int
	spinner       *spinner.Model
	loading       bool
	focused       bool

	scrollOffset int // index of the first visible row
}

func NewList(spinner *spinner.Model) *List {
	return &List{
		spinner: spinner,
		focused: true,
		loading: true,
	}
}

func (l *List) SetFocused(focused bool) {
	l.focused = focused
}

// SetLoading shows the spinner in place of the empty-list hint.
func (l *List) SetLoading(loading bool) {
	l.loading = loading
}

// SetSize sets the height and width of the list.
func (l *List) SetSize(width, height int) {
	l.width = width
	l.height = height
	l.ensureSelectedVisible()
}

// SetItems replaces the rows. The selection is owned by the session and
// mirrored here.
func (l *List) SetItems(entries []device.Entry, selected int) {
	l.items = entries
	l.selectedIdx = selected
	if l.selectedIdx >= len(l.items) {
		l.selectedIdx = len(l.items) - 1
	}
	if l.selectedIdx < 0 {
		l.selectedIdx = 0
	}
	l.ensureSelectedVisible()
}

// NumDevices returns the number of rows.
func (l *List) NumDevices() int {
	return len(l.items)
}

// SelectedIndex returns the current selection index.
func (l *List) SelectedIndex() int {
	return l.selectedIdx
}

// GetSelectedEntry returns the selected row, if any.
func (l *List) GetSelectedEntry() (device.Entry, bool) {
	if l.selectedIdx < 0 || l.selectedIdx >= len(l.items) {
		return device.Entry{}, false
	}
	return l.items[l.selectedIdx], true
}

// columns computes the name and label widths from the current rows.
func (l *List) columns() (nameW, labelW int) {
	nameW, labelW = len("DEVICE"), len("LABEL")
	for _, e := range l.items {
		nameW = max(nameW, runewidth.StringWidth(e.Info.Name))
		labelW = max(labelW, runewidth.StringWidth(e.Info.Label))
	}
	return min(nameW, maxNameWidth), min(labelW, maxLabelWidth)
}

// cell pads or truncates s to exactly w cells.
func cell(s string, w int) string {
	if runewidth.StringWidth(s) > w {
		s = runewidth.Truncate(s, w, "…")
	}
	return runewidth.FillRight(s, w)
}

func (l *List) innerWidth() int {
	// Border frame: 2 border + 2 padding.
	const borderH = 4
	return max(l.width-borderH, 8)
}

func (l *List) renderHeader(nameW, labelW int) string {
	line := "  " + cell("DEVICE", nameW) + " " + cell("LABEL", labelW) + " " +
		runewidth.FillLeft("SIZE", sizeWidth) + " " + cell("STATE", stateWidth) + " MOUNT POINT"
	return listHeaderStyle.Render(ansi.Truncate(line, l.innerWidth()-2, "…"))
}

func (l *List) renderRow(i int, e device.Entry, nameW, labelW int) string {
	style := rowStyle
	switch {
	case i == l.selectedIdx && l.focused:
		style = selectedRowStyle
	case i == l.selectedIdx:
		style = activeRowStyle
	case i%2 == 1:
		style = evenRowStyle
	}

	bg := style.GetBackground()
	icon, color := stateIcon(e.State)
	iconStyle := lipgloss.NewStyle().Foreground(color).Background(bg)
	if i == l.selectedIdx && l.focused {
		iconStyle = iconStyle.Foreground(ColorBase)
	}

	text := cell(e.Info.Name, nameW) + " " + cell(e.Info.Label, labelW) + " " +
		runewidth.FillLeft(e.Info.Size, sizeWidth) + " " + cell(e.State.String(), stateWidth) + " "
	avail := l.innerWidth() - 2 - runewidth.StringWidth(icon) - runewidth.StringWidth(text)
	mp := ""
	if avail > 1 && e.Info.MountPoint != "" {
		mp = ansi.Truncate(e.Info.MountPoint, avail, "…")
	}
	mpStyle := mountPointStyle.Background(bg)
	if i == l.selectedIdx && l.focused {
		mpStyle = mpStyle.Foreground(ColorBase)
	}

	row := iconStyle.Render(icon) + lipgloss.NewStyle().Background(bg).Render(text) + mpStyle.Render(mp)
	row = ansi.Truncate(row, l.innerWidth()-2, "")
	return zone.Mark(DeviceRowZoneID(i), style.Width(l.innerWidth()).Render(row))
}

func (l *List) String() string {
	const borderV = 2

	innerHeight := max(l.height-borderV, 2)

	var content string
	if len(l.items) == 0 {
		msg := "No removable devices."
		if l.loading && l.spinner != nil {
			msg = l.spinner.View() + " Reading devices..."
		}
		content = emptyListStyle.Render(msg)
	} else {
		nameW, labelW := l.columns()
		rows := make([]string, 0, len(l.items))
		for i, e := range l.items {
			rows = append(rows, l.renderRow(i, e, nameW, labelW))
		}
		start := min(l.scrollOffset, len(rows))
		end := min(start+l.availRows(), len(rows))
		content = l.renderHeader(nameW, labelW) + "\n" + strings.Join(rows[start:end], "\n")
	}

	borderStyle := listBorderStyle
	if l.focused {
		borderStyle = borderStyle.Border(lipgloss.DoubleBorder()).BorderForeground(ColorIris)
	}
	bordered := borderStyle.Width(l.innerWidth()).Height(innerHeight).Render(content)
	placed := lipgloss.Place(l.width, l.height, lipgloss.Left, lipgloss.Top, bordered)

	// Hard-clip to l.height lines to prevent overflow from layout quirks.
	lines := strings.Split(placed, "\n")
	if l.height > 0 && len(lines) > l.height {
		lines = lines[:l.height]
	}
	return zone.Mark(ZoneDeviceList, strings.Join(lines, "\n"))
}

// availRows returns the number of device rows that fit inside the border,
// below the column header.
func (l *List) availRows() int {
	const borderV = 2
	const headerLines = 1
	return max(l.height-borderV-headerLines, 1)
}

// ensureSelectedVisible adjusts scrollOffset so the selected row is visible.
func (l *List) ensureSelectedVisible() {
	if len(l.items) == 0 {
		l.scrollOffset = 0
		return
	}
	avail := l.availRows()
	if l.selectedIdx < l.scrollOffset {
		l.scrollOffset = l.selectedIdx
	}
	if l.selectedIdx >= l.scrollOffset+avail {
		l.scrollOffset = l.selectedIdx - avail + 1
	}
	if l.scrollOffset < 0 {
		l.scrollOffset = 0
	}
}

// GetItemAtRow maps a row offset (relative to the first visible device row)
// to a device index. Returns -1 if the row doesn't correspond to any device.
func (l *List) GetItemAtRow(row int) int {
	idx := l.scrollOffset + row
	if row < 0 || idx >= len(l.items) || row >= l.availRows() {
		return -1
	}
	return idx
}
