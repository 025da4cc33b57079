//go:build darwin

package terminal

// isInIDETerminalImpl has no cheap process-ancestry source on Darwin (no
// /proc); dbgee falls back to treating ancestry as unknown and lets the
// caller's explicit choice, or the multiplexer default, stand.
func isInIDETerminalImpl() bool {
	return false
}
