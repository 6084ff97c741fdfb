// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package progress carries progress events from executing units of work to listeners.
//
// Each unit of work that runs advances the running progress counter by its own progress count.
// Events carry both the running and the total count so a listener can render
// "Progress 3 of 12" style messages without any shared state.
package progress
