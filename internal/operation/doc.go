// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package operation defines the unit of work that plans are built from.
//
// An Operation is one serializable action. Its kind and parameters fully describe it: encoding an
// operation to an HCL block and decoding that block with the same Registry yields an equal operation.
// Parameters that equal their default are left out of the encoding.
//
// A Scope is an operation that owns nested operations, such as changing directory for the duration
// of its children. Execute runs any operation, entering and exiting scopes, recording timings and
// attaching failure context to errors.
package operation
