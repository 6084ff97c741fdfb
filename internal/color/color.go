// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package color

import (
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"
)

// Code represents an ANSI control code for text formatting.
type Code int

const (
	// NoColor is the environment variable that disables color output.
	NoColor = "NO_COLOR"
	// ForceColor is the environment variable that forces color output.
	ForceColor = "FORCE_COLOR"

	reset  = "\033[0m"
	prefix = "\033["
	suffix = "m"
)

// Control codes for text formatting.
const (
	Reset Code = 0
	Bold  Code = 1
	Faint Code = 2
)

// Foreground text colors.
const (
	FgBlack Code = iota + 30
	FgRed
	FgGreen
	FgYellow
	FgBlue
	FgMagenta
	FgCyan
	FgWhite
)

// Foreground Hi-Intensity text colors.
const (
	FgHiBlack Code = iota + 90
	FgHiRed
	FgHiGreen
	FgHiYellow
	FgHiBlue
	FgHiMagenta
	FgHiCyan
	FgHiWhite
)

var enabled = isColorEnabled()

// ControlString generates the escape sequence for the supplied codes.
// It returns an empty string when colour is disabled.
func ControlString(c ...Code) string {
	if !enabled {
		return ""
	}

	return sequence(c)
}

// Colorize returns str wrapped in the supplied codes followed by a reset.
func Colorize(str string, c ...Code) string {
	if !enabled {
		return str
	}

	return sequence(c) + str + reset
}

// ColorizeNoReset returns str prefixed by the supplied codes, without a trailing reset.
func ColorizeNoReset(str string, c ...Code) string {
	if !enabled {
		return str
	}

	return sequence(c) + str
}

// Enabled reports whether colour output is enabled.
func Enabled() bool {
	return enabled
}

// SetEnabled overrides colour detection, used by tests and the --no-color flag.
func SetEnabled(v bool) {
	enabled = v
}

func sequence(c []Code) string {
	parts := make([]string, len(c))
	for i, code := range c {
		parts[i] = strconv.Itoa(int(code))
	}

	return prefix + strings.Join(parts, ";") + suffix
}

func isColorEnabled() bool {
	if nc := os.Getenv(NoColor); nc != "" {
		return false
	}

	if fc := os.Getenv(ForceColor); fc != "" {
		return true
	}

	return term.IsTerminal(int(os.Stdout.Fd()))
}
