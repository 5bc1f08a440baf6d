package ui

import (
	"fmt"
	"io"
)

// SetTerminalBackground emits OSC 11 to set the terminal's default background
// color on w. Returns a function that restores the original default via
// OSC 111. Every ANSI reset then falls back to the theme color instead of the
// terminal's configured default.
//
// Supported by: kitty, alacritty, foot, wezterm, ghostty, iTerm2,
// Windows Terminal, and most modern terminal emulators.
func SetTerminalBackground(w io.Writer, hexColor string) func() {
	return setTermBg(w, hexColor)
}

func setTermBg(w io.Writer, hexColor string) func() {
	if hexColor == "" {
		return func() {}
	}
	// OSC 11 ; <color> ST — set default background color
	fmt.Fprintf(w, "\033]11;%s\033\\", hexColor)

	return func() {
		// OSC 111 ST — reset default background to terminal's configured value
		fmt.Fprint(w, "\033]111\033\\")
	}
}
