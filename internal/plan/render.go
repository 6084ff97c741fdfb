// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package plan

import (
	"fmt"
	"io"
	"time"

	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/matt-FFFFFF/stevedore/internal/operation"
	"github.com/zclconf/go-cty/cty"
)

// Block and attribute names of the program text.
const (
	Shebang = "#!/usr/bin/env -S stevedore run -f"

	programBlock = "program"
	sectionBlock = "section"
	endBlock     = "end"

	attrCreated         = "created"
	attrSelf            = "self"
	attrTotalProgress   = "total_progress"
	attrRunningProgress = "running_progress"
	attrTarget          = "target"
)

// RenderOptions controls Render.
type RenderOptions struct {
	// Target is the platform the program is rendered for. Zero means the current platform.
	Target operation.Platform
	// Created is recorded in the program. Zero means now.
	Created time.Time
	// Self is the path the program is written to.
	Self string
	// RunningProgress is the progress count already reached before the program starts.
	RunningProgress int
}

// Render writes the program text of a.
func Render(w io.Writer, a *Accumulator, opts RenderOptions) error {
	if opts.Target == 0 {
		opts.Target = operation.CurrentPlatform()
	}

	if opts.Created.IsZero() {
		opts.Created = time.Now()
	}

	created := opts.Created.UTC().Format(time.RFC3339)
	sections := a.Compile(opts.Target)

	total := opts.RunningProgress
	for _, s := range sections {
		for _, op := range s.Ops {
			total += operation.ProgressCount(op)
		}
	}

	f := hclwrite.NewEmptyFile()
	body := f.Body()

	pb := body.AppendNewBlock(programBlock, nil).Body()
	pb.SetAttributeValue(attrCreated, cty.StringVal(created))
	pb.SetAttributeValue(attrSelf, cty.StringVal(opts.Self))
	pb.SetAttributeValue(attrTotalProgress, cty.NumberIntVal(int64(total)))
	pb.SetAttributeValue(attrRunningProgress, cty.NumberIntVal(int64(opts.RunningProgress)))
	pb.SetAttributeValue(attrTarget, cty.StringVal(opts.Target.String()))

	for _, s := range sections {
		body.AppendNewline()

		sb := body.AppendNewBlock(sectionBlock, []string{s.Name}).Body()
		for _, op := range s.Ops {
			operation.EncodeBlock(sb, op)
		}
	}

	body.AppendNewline()
	body.AppendNewBlock(endBlock, nil)

	if _, err := fmt.Fprintf(w, "%s\n# Creation time: %s\n\n", Shebang, created); err != nil {
		return err //nolint:wrapcheck
	}

	_, err := f.WriteTo(w)

	return err //nolint:wrapcheck
}
