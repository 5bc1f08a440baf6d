package overlay

import (
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// ToastType identifies the kind of toast notification.
type ToastType int

const (
	ToastInfo ToastType = iota
	ToastSuccess
	ToastError
)

// Toast timing and layout.
const (
	SlideInDuration = 250 * time.Millisecond

	InfoDismissAfter  = 3 * time.Second
	ErrorDismissAfter = 6 * time.Second

	MinToastWidth = 24
	MaxToastWidth = 56
	MaxToasts     = 4
)

// ToastTickMsg is sent by the main app while toasts are active to drive
// expiry and the slide-in animation.
type ToastTickMsg struct{}

type toast struct {
	typ     ToastType
	message string
	shownAt time.Time
	ttl     time.Duration
	width   int
}

func (t *toast) expired(now time.Time) bool {
	return now.Sub(t.shownAt) >= t.ttl
}

// slideOffset is the horizontal offset while the toast slides in, easing out.
func (t *toast) slideOffset(now time.Time) int {
	p := float64(now.Sub(t.shownAt)) / float64(SlideInDuration)
	if p >= 1 {
		return 0
	}
	p = 1 - (1-p)*(1-p)
	return int(float64(t.width+4) * (1 - p))
}

// ToastManager stacks short-lived notifications in the top-right corner.
type ToastManager struct {
	toasts []*toast
	width  int
	height int
	now    func() time.Time
}

func NewToastManager() *ToastManager {
	return &ToastManager{now: time.Now}
}

// SetSize updates the viewport dimensions used for positioning.
func (tm *ToastManager) SetSize(width, height int) {
	tm.width = width
	tm.height = height
}

func (tm *ToastManager) Info(msg string)    { tm.add(ToastInfo, msg, InfoDismissAfter) }
func (tm *ToastManager) Success(msg string) { tm.add(ToastSuccess, msg, InfoDismissAfter) }
func (tm *ToastManager) Error(msg string)   { tm.add(ToastError, msg, ErrorDismissAfter) }

func (tm *ToastManager) add(typ ToastType, msg string, ttl time.Duration) {
	now := tm.now()
	// A repeated message restarts the visible one instead of stacking.
	for _, t := range tm.toasts {
		if t.typ == typ && t.message == msg {
			t.shownAt = now.Add(-SlideInDuration)
			return
		}
	}
	if len(tm.toasts) >= MaxToasts {
		tm.toasts = tm.toasts[1:]
	}
	w := runewidth.StringWidth(msg) + 2 + 4 // icon, space, padding and border
	tm.toasts = append(tm.toasts, &toast{
		typ:     typ,
		message: msg,
		shownAt: now,
		ttl:     ttl,
		width:   min(max(w, MinToastWidth), MaxToastWidth),
	})
}

// Tick drops expired toasts.
func (tm *ToastManager) Tick() {
	now := tm.now()
	alive := tm.toasts[:0]
	for _, t := range tm.toasts {
		if !t.expired(now) {
			alive = append(alive, t)
		}
	}
	tm.toasts = alive
}

// HasActiveToasts reports whether anything is on screen.
func (tm *ToastManager) HasActiveToasts() bool {
	return len(tm.toasts) > 0
}

func toastColor(typ ToastType) lipgloss.Color {
	if typ == ToastError {
		return colorDanger
	}
	return colorOK
}

func toastIcon(typ ToastType) string {
	switch typ {
	case ToastSuccess:
		return "✓"
	case ToastError:
		return "✗"
	default:
		return "▸"
	}
}

func (t *toast) render() string {
	c := toastColor(t.typ)
	icon := lipgloss.NewStyle().Foreground(c).Render(toastIcon(t.typ))
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(c).
		Padding(0, 1).
		Width(t.width).
		Render(icon + " " + t.message)
}

// View renders the active toasts stacked vertically.
func (tm *ToastManager) View() string {
	if len(tm.toasts) == 0 {
		return ""
	}
	rendered := make([]string, 0, len(tm.toasts))
	for _, t := range tm.toasts {
		rendered = append(rendered, t.render())
	}
	return lipgloss.JoinVertical(lipgloss.Right, rendered...)
}

// GetPosition returns the x, y coordinates for placing the toast stack.
func (tm *ToastManager) GetPosition() (int, int) {
	now := tm.now()
	widest, offset := MinToastWidth, 0
	for _, t := range tm.toasts {
		widest = max(widest, t.width)
		offset = max(offset, t.slideOffset(now))
	}
	x := max(tm.width-widest-4, 0)
	return x + offset, 1
}
