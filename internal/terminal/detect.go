package terminal

// isInIDETerminal reports whether dbgee's own process ancestry suggests it
// was launched from within a cooperating IDE window, so the orchestrator
// can default to the IDE terminal instead of tmux. Per spec.md §4.G: an
// ancestor named "node" whose command line mentions "vscode", or an
// ancestor named "Electron" whose executable path mentions
// "Visual Studio Code". Platform-specific because it walks process
// ancestry, which only Linux exposes cheaply via /proc.
var isInIDETerminal = isInIDETerminalImpl

// DetectIDEAncestry reports whether dbgee appears to have been launched
// from within a cooperating IDE window.
func DetectIDEAncestry() bool { return isInIDETerminal() }
