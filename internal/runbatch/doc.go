// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package runbatch runs batches of external processes.
//
// Commands are grouped into waves. All commands of a wave run in parallel, and the next wave only
// starts once every command of the previous one has succeeded. Each process runs in its own process
// group and is polled rather than waited on, so that cancellation is observed promptly. On
// cancellation, be it an abort file disappearing, a signal, a timeout or the failure of a sibling,
// the whole process group is killed.
package runbatch
