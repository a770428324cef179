// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crossweb Contributors

//go:build windows

package main

import (
	"fmt"

	"golang.org/x/sys/windows"
)

func checkDiskSpace(path string) string {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return fmt.Sprintf("unable to check: %s", err)
	}

	var free, total, totalFree uint64
	if err := windows.GetDiskFreeSpaceEx(p, &free, &total, &totalFree); err != nil {
		return fmt.Sprintf("unable to check: %s", err)
	}
	return formatBytes(free) + " available"
}
