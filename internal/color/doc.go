// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package color renders ANSI colour codes for console output.
// Colour is disabled when NO_COLOR is set or stdout is not a terminal, unless FORCE_COLOR is set.
package color
