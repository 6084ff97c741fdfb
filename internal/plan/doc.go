// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package plan assembles operations into sections and renders them as a program.
//
// A plan is built by selecting a section and adding operations to it. Sections always run in the
// fixed order given by Sections, whatever order they were filled in. The rendered program is HCL
// that Parse turns back into an equal plan, so a program can be written once and run later,
// elsewhere, or not at all.
package plan
