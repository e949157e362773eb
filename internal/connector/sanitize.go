package connector

import (
	"regexp"
	"strings"
)

// Sanitize strips embedded null bytes from captured terminal output. Postgres
// rejects text containing NUL, and serial-over-network captures routinely
// carry them. Nothing else is touched here: mid-content rewriting would
// corrupt the line diff between versions.
func Sanitize(raw string) string {
	return strings.ReplaceAll(raw, "\x00", "")
}

// promptTailRe matches a teardown line: a bare device prompt, optionally
// followed by the echo of the closing exit. Config body lines never match:
// they either lack the prompt terminator ("exit-address-family", indented
// " exit") or carry a command after the prompt.
var promptTailRe = regexp.MustCompile(`(?m)^[<a-zA-Z0-9._-]{3,}[>#] ?(?:exit)? *(?:\r?\n|$)`)

// trimShellOutput cuts command echo and the trailing prompt tail out of a raw
// interactive-shell capture. The capture looks like:
//
//	<banner><echo of commands><output><prompt>[exit]<goodbye>
//
// Everything before the echo of the last command belongs to the banner and
// pagination-disable commands. The teardown is anchored on the final bare
// prompt line rather than the word "exit": with terminal echo suppressed the
// exit echo never arrives, and configs legitimately contain exit lines of
// their own. Only leading and trailing material is removed; the config body
// between them is returned as captured.
func trimShellOutput(raw string, commands []string) string {
	if len(commands) == 0 {
		return strings.TrimSpace(raw)
	}

	lastCmd := commands[len(commands)-1]
	idx := strings.LastIndex(raw, lastCmd)
	if idx < 0 {
		return strings.TrimSpace(raw)
	}

	out := raw[idx+len(lastCmd):]
	out = strings.TrimLeft(out, " \t\r\n")

	if locs := promptTailRe.FindAllStringIndex(out, -1); len(locs) > 0 {
		out = out[:locs[len(locs)-1][0]]
	}

	return strings.TrimSpace(out)
}

func lastNewline(s string) int {
	n := strings.LastIndexByte(s, '\n')
	if r := strings.LastIndexByte(s, '\r'); r > n {
		return r
	}
	return n
}
