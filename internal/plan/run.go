// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package plan

import (
	"context"

	"github.com/matt-FFFFFF/stevedore/internal/ctxlog"
	"github.com/matt-FFFFFF/stevedore/internal/operation"
)

// Run executes the plan for ec.Platform, one section after the other.
// The total progress of ec is set from the plan unless it is already known.
func Run(ctx context.Context, a *Accumulator, ec *operation.ExecContext) error {
	sections := a.Compile(ec.Platform)

	if ec.TotalProgress == 0 {
		ec.TotalProgress = ec.RunningProgress
		for _, s := range sections {
			for _, op := range s.Ops {
				ec.TotalProgress += operation.ProgressCount(op)
			}
		}
	}

	ctxlog.Debug(ctx, "running plan", "sections", len(sections), "total_progress", ec.TotalProgress)

	for _, s := range sections {
		if err := runSection(ctx, ec, s); err != nil {
			return err
		}
	}

	return nil
}

// RunProgram executes a parsed program, continuing its progress counters.
func RunProgram(ctx context.Context, prog *Program, ec *operation.ExecContext) error {
	if prog.Target != 0 && prog.Target != ec.Platform {
		ctxlog.Warn(ctx, "program was rendered for another platform", "target", prog.Target.String(), "platform", ec.Platform.String())
	}

	ec.TotalProgress = prog.TotalProgress
	ec.RunningProgress = prog.RunningProgress

	return Run(ctx, prog.Plan, ec)
}

func runSection(ctx context.Context, ec *operation.ExecContext, s Section) error {
	ec.PushStage(s.Name)
	defer ec.PopStage()

	ctxlog.Info(ctx, "section", "name", s.Name, "operations", len(s.Ops))

	for _, op := range s.Ops {
		if err := operation.Execute(ctx, ec, op); err != nil {
			return err //nolint:wrapcheck
		}
	}

	return nil
}
