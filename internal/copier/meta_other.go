// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

//go:build !linux && !darwin

package copier

import (
	"os"
	"time"
)

func linkTimes(string, time.Time) error {
	return nil
}

func chown(string, os.FileInfo) error {
	return nil
}
