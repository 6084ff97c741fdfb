// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package ctxlog carries a *slog.Logger in a context.Context.
//
// The default logger writes through PrettyHandler, a console handler that renders attributes as
// indented, coloured JSON. The level is read from STEVEDORE_LOG_LEVEL and may be one of
// DEBUG, INFO, WARN or ERROR. Anything else falls back to WARN.
package ctxlog
