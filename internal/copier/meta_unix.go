// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

//go:build linux || darwin

package copier

import (
	"os"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

func linkTimes(p string, mtime time.Time) error {
	ts := unix.NsecToTimespec(mtime.UnixNano())

	return unix.UtimesNanoAt(unix.AT_FDCWD, p, []unix.Timespec{ts, ts}, unix.AT_SYMLINK_NOFOLLOW) //nolint:wrapcheck
}

func chown(p string, fi os.FileInfo) error {
	st, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return nil
	}

	return os.Lchown(p, int(st.Uid), int(st.Gid)) //nolint:wrapcheck
}
