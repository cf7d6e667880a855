//go:build windows

// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sys

// DefaultHostSystem is recorded in "version made by" for new entries.
// NTFS is written as FAT for broader compatibility.
const DefaultHostSystem = HostSystemFAT
