// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package ops

import (
	"context"
	"fmt"

	"github.com/matt-FFFFFF/stevedore/internal/checksum"
	"github.com/matt-FFFFFF/stevedore/internal/ctxlog"
	"github.com/matt-FFFFFF/stevedore/internal/operation"
	"github.com/matt-FFFFFF/stevedore/internal/wtar"
)

// UseConfiguredSplit as a wtar split_threshold takes the part size from the configuration.
const UseConfiguredSplit = -1

func archiveDefinitions() []operation.Definition {
	return []operation.Definition{
		{
			Kind:        "wtar",
			Description: "archive a file or directory unless an identical archive exists",
			Essential:   true,
			Params: []operation.ParamSpec{
				pathParam("src", "file or directory to archive"),
				optionalPath("dst", "archive file or directory receiving it, next to src when empty"),
				{Name: "split_threshold", Type: operation.TypeInt, Default: UseConfiguredSplit, Doc: "part size in bytes, 0 never splits, -1 uses the configured size"},
				ignoreParam(),
			},
			New: func(b operation.Base) (operation.Operation, error) {
				if b.P().Int("split_threshold") < UseConfiguredSplit {
					return nil, fmt.Errorf("%w: split_threshold must be -1 or more", operation.ErrInvalidParams)
				}

				return &pack{Base: b}, nil
			},
		},
		{
			Kind:        "unwtar",
			Description: "extract an archive unless the destination is current",
			Essential:   true,
			Params: []operation.ParamSpec{
				pathParam("src", "archive or any of its parts"),
				pathParam("dst", "directory receiving the archived entry"),
				flag("remove_artifacts", "remove the archive parts afterwards"),
			},
			New: func(b operation.Base) (operation.Operation, error) {
				return &unpack{Base: b}, nil
			},
		},
		{
			Kind:        "unwtar_tree",
			Description: "extract every archive below a directory in place",
			Essential:   true,
			Params: []operation.ParamSpec{
				pathParam("root", "directory to search"),
				flag("remove_artifacts", "remove the archive parts afterwards"),
			},
			New: func(b operation.Base) (operation.Operation, error) {
				return &unpackTree{Base: b}, nil
			},
		},
		{
			Kind:        "wzip",
			Description: "DEFLATE compress a single file",
			Essential:   true,
			Params: []operation.ParamSpec{
				pathParam("src", "file to compress"),
				optionalPath("dst", "compressed file, src.wzip when empty"),
				{Name: "level", Type: operation.TypeInt, Default: 0, Doc: "compression level 1 to 9, 0 uses the configured level"},
			},
			New: func(b operation.Base) (operation.Operation, error) {
				if l := b.P().Int("level"); l < 0 || l > 9 {
					return nil, fmt.Errorf("%w: level %d out of range", operation.ErrInvalidParams, l)
				}

				return &zip{Base: b}, nil
			},
		},
		{
			Kind:        "unwzip",
			Description: "decompress a .wzip file",
			Essential:   true,
			Params: []operation.ParamSpec{
				pathParam("src", "compressed file"),
				optionalPath("dst", "output file, src without .wzip when empty"),
			},
			New: func(b operation.Base) (operation.Operation, error) {
				return &unzip{Base: b}, nil
			},
		},
		{
			Kind:        "checksum_report",
			Description: "write the checksum of every file below a directory",
			Essential:   true,
			Params: []operation.ParamSpec{
				pathParam("root", "directory to checksum"),
				pathParam("report", "report file to write"),
				ignoreParam(),
			},
			New: func(b operation.Base) (operation.Operation, error) {
				return &checksumReport{Base: b}, nil
			},
		},
	}
}

type pack struct {
	operation.Base
}

func (p *pack) Invoke(ctx context.Context, ec *operation.ExecContext) error {
	threshold := p.P().Int("split_threshold")
	if threshold == UseConfiguredSplit {
		threshold = ec.Config.SplitThreshold
	}

	opts := wtar.PackOptions{
		Source:         ec.Abs(p.P().String("src")),
		Destination:    optionalAbs(ec, p.P().String("dst")),
		SplitThreshold: threshold,
		Ignore:         ignoreList(ec, p.P()),
	}

	ec.Step("archiving " + opts.Source)

	res, err := wtar.Pack(ctx, opts)
	if err != nil {
		return err //nolint:wrapcheck
	}

	ctxlog.Debug(ctx, "archive ready", "target", res.Target, "parts", len(res.Parts), "skipped", res.Skipped)

	return nil
}

type unpack struct {
	operation.Base
}

func (u *unpack) Invoke(ctx context.Context, ec *operation.ExecContext) error {
	opts := wtar.UnpackOptions{
		Source:          ec.Abs(u.P().String("src")),
		Destination:     ec.Abs(u.P().String("dst")),
		RemoveArtifacts: u.P().Bool("remove_artifacts"),
		Ignore:          ec.Config.Ignore,
	}

	ec.Step("extracting " + opts.Source)

	res, err := wtar.Unpack(ctx, opts)
	if err != nil {
		return err //nolint:wrapcheck
	}

	ctxlog.Debug(ctx, "archive extracted", "path", res.Path, "skipped", res.Skipped)

	return nil
}

type unpackTree struct {
	operation.Base
}

func (u *unpackTree) Invoke(ctx context.Context, ec *operation.ExecContext) error {
	root := ec.Abs(u.P().String("root"))

	ec.Step("extracting archives below " + root)

	res, err := wtar.UnpackTree(ctx, root, wtar.TreeOptions{
		RemoveArtifacts: u.P().Bool("remove_artifacts"),
		Bookkeeping:     ec.Config.BookkeepingDirs,
		Ignore:          ec.Config.Ignore,
	})
	if err != nil {
		return err //nolint:wrapcheck
	}

	ctxlog.Debug(ctx, "archives extracted", "root", root, "count", len(res))

	return nil
}

type zip struct {
	operation.Base
}

func (z *zip) Invoke(ctx context.Context, ec *operation.ExecContext) error {
	level := int(z.P().Int("level"))
	if level == 0 {
		level = ec.Config.CompressionLevel
	}

	src := ec.Abs(z.P().String("src"))

	ec.Step("compressing " + src)

	_, err := wtar.Zip(ctx, src, optionalAbs(ec, z.P().String("dst")), level)

	return err //nolint:wrapcheck
}

type unzip struct {
	operation.Base
}

func (u *unzip) Invoke(ctx context.Context, ec *operation.ExecContext) error {
	src := ec.Abs(u.P().String("src"))

	ec.Step("decompressing " + src)

	_, err := wtar.Unzip(ctx, src, optionalAbs(ec, u.P().String("dst")))

	return err //nolint:wrapcheck
}

type checksumReport struct {
	operation.Base
}

func (c *checksumReport) Invoke(_ context.Context, ec *operation.ExecContext) error {
	root, report := ec.Abs(c.P().String("root")), ec.Abs(c.P().String("report"))

	ec.Step("checksumming " + root)

	rec, err := checksum.Compute(FS, root, ignoreList(ec, c.P()))
	if err != nil {
		return err //nolint:wrapcheck
	}

	ec.Step("writing " + report)

	f, err := FS.Create(report)
	if err != nil {
		return err //nolint:wrapcheck
	}

	if err := rec.WriteReport(f); err != nil {
		_ = f.Close()
		return err //nolint:wrapcheck
	}

	return f.Close() //nolint:wrapcheck
}
