// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package runbatch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/matt-FFFFFF/stevedore/internal/ctxlog"
	"github.com/spf13/afero"
)

// FS is the filesystem the abort file is checked on.
var FS = afero.NewOsFs()

// WatchAbortFile checks path every interval and cancels with ErrAborted once it no longer exists.
// A file that is missing from the start aborts straight away.
// It returns when ctx is done or after cancelling.
func WatchAbortFile(ctx context.Context, path string, interval time.Duration, cancel context.CancelCauseFunc) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		_, err := FS.Stat(path)
		if errors.Is(err, fs.ErrNotExist) {
			ctxlog.Warn(ctx, "abort file removed, aborting", "path", path)
			cancel(fmt.Errorf("%w: %s no longer exists", ErrAborted, path))

			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
