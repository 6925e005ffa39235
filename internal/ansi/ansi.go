// Package ansi provides ANSI escape code constants and helpers for terminal
// output. All colored/styled terminal output references these constants.
package ansi

import "fmt"

// ANSI SGR (Select Graphic Rendition) codes.
const (
	Reset  = "\033[0m"
	Bold   = "\033[1m"
	Dim    = "\033[2m"
	Yellow = "\033[33m"
	Green  = "\033[32m"
	Red    = "\033[31m"
	Cyan   = "\033[36m"
)

// ClearLine clears the entire current line.
const ClearLine = "\033[2K"

// Paint wraps s in the given SGR code and a reset.
func Paint(code, s string) string {
	return code + s + Reset
}

// CursorUp returns an ANSI escape sequence to move the cursor up n lines.
func CursorUp(n int) string {
	return fmt.Sprintf("\033[%dA", n)
}
