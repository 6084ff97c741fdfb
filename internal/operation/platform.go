// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package operation

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// ErrUnknownPlatform is returned for platform names other than linux, mac and windows.
var ErrUnknownPlatform = errors.New("unknown platform")

// Platform is a set of target platforms.
type Platform uint8

// Target platforms.
const (
	Linux Platform = 1 << iota
	Mac
	Windows

	AllPlatforms = Linux | Mac | Windows
)

// Has reports whether p includes every platform in q.
func (p Platform) Has(q Platform) bool {
	return q != 0 && p&q == q
}

func (p Platform) String() string {
	var names []string

	if p.Has(Linux) {
		names = append(names, "linux")
	}

	if p.Has(Mac) {
		names = append(names, "mac")
	}

	if p.Has(Windows) {
		names = append(names, "windows")
	}

	if len(names) == 0 {
		return "none"
	}

	return strings.Join(names, ",")
}

// ParsePlatform parses a single platform name. "darwin" is accepted for mac.
func ParsePlatform(s string) (Platform, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "linux":
		return Linux, nil
	case "mac", "darwin":
		return Mac, nil
	case "windows":
		return Windows, nil
	}

	return 0, fmt.Errorf("%w: %q", ErrUnknownPlatform, s)
}

// CurrentPlatform returns the platform the program runs on. Other unix systems count as linux.
func CurrentPlatform() Platform {
	switch runtime.GOOS {
	case "darwin":
		return Mac
	case "windows":
		return Windows
	default:
		return Linux
	}
}
