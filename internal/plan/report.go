// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package plan

import (
	"errors"
	"io"

	"github.com/matt-FFFFFF/stevedore/internal/ctxlog"
	"github.com/matt-FFFFFF/stevedore/internal/operation"
	"github.com/matt-FFFFFF/stevedore/internal/runbatch"
)

// WriteSummary writes the timing summary of a run.
func WriteSummary(w io.Writer, ec *operation.ExecContext) error {
	return operation.WriteTimingSummary(w, ec.Timings, ec.Config.TimingSummaryTop) //nolint:wrapcheck
}

// WriteFailureReport writes err as one JSON log record.
func WriteFailureReport(w io.Writer, err error) {
	logger := ctxlog.NewJSON(w)

	var oe *operation.OpError
	if errors.As(err, &oe) {
		logger.Error("run failed", "failure", oe, "exit_code", runbatch.ExitCodeFor(err))
		return
	}

	logger.Error("run failed", "error", err.Error(), "exit_code", runbatch.ExitCodeFor(err))
}
