// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package ops contains the concrete operation kinds that plans are made of.
//
// Register adds every kind to a registry. Relative paths in parameters are resolved against the
// working directory of the execution context, which cd scopes change for their children.
package ops
