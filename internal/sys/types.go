// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package sys maps host file attributes to and from the ZIP external attribute field.
package sys

import "io/fs"

// HostSystem represents the host system on which the ZIP file was created
type HostSystem uint8

// Host systems from the upper byte of "version made by"
const (
	HostSystemFAT       HostSystem = 0  // MS-DOS and OS/2 (FAT / VFAT / FAT32 file systems)
	HostSystemAmiga     HostSystem = 1  // Amiga
	HostSystemOpenVMS   HostSystem = 2  // OpenVMS
	HostSystemUNIX      HostSystem = 3  // UNIX
	HostSystemVMCMS     HostSystem = 4  // VM/CMS
	HostSystemAtariST   HostSystem = 5  // Atari ST
	HostSystemOS2HPFS   HostSystem = 6  // OS/2 H.P.F.S.
	HostSystemMacintosh HostSystem = 7  // Macintosh
	HostSystemZSystem   HostSystem = 8  // Z-System
	HostSystemCPM       HostSystem = 9  // CP/M
	HostSystemNTFS      HostSystem = 10 // Windows NTFS
	HostSystemMVS       HostSystem = 11 // MVS (OS/390 - Z/OS)
	HostSystemVSE       HostSystem = 12 // VSE
	HostSystemAcornRisc HostSystem = 13 // Acorn Risc
	HostSystemVFAT      HostSystem = 14 // VFAT
	HostSystemAltMVS    HostSystem = 15 // alternate MVS
	HostSystemBeOS      HostSystem = 16 // BeOS
	HostSystemTandem    HostSystem = 17 // Tandem
	HostSystemOS400     HostSystem = 18 // OS/400
	HostSystemDarwin    HostSystem = 19 // OS X (Darwin)
)

var hostSystemNames = map[HostSystem]string{
	HostSystemFAT:       "MS-DOS/OS2 (FAT)",
	HostSystemAmiga:     "Amiga",
	HostSystemOpenVMS:   "OpenVMS",
	HostSystemUNIX:      "UNIX",
	HostSystemVMCMS:     "VM/CMS",
	HostSystemAtariST:   "Atari ST",
	HostSystemOS2HPFS:   "OS/2 HPFS",
	HostSystemMacintosh: "Macintosh",
	HostSystemZSystem:   "Z-System",
	HostSystemCPM:       "CP/M",
	HostSystemNTFS:      "Windows NTFS",
	HostSystemMVS:       "MVS (OS/390 - Z/OS)",
	HostSystemVSE:       "VSE",
	HostSystemAcornRisc: "Acorn Risc",
	HostSystemVFAT:      "VFAT",
	HostSystemAltMVS:    "Alternate MVS",
	HostSystemBeOS:      "BeOS",
	HostSystemTandem:    "Tandem",
	HostSystemOS400:     "OS/400",
	HostSystemDarwin:    "OS X (Darwin)",
}

func (h HostSystem) String() string {
	if name, exists := hostSystemNames[h]; exists {
		return name
	}
	return "Unknown"
}

// IsUnix reports whether external attributes carry a Unix mode in their upper 16 bits.
func (h HostSystem) IsUnix() bool {
	return h == HostSystemUNIX || h == HostSystemDarwin
}

// IsDOS reports whether external attributes carry DOS attribute bits.
func (h HostSystem) IsDOS() bool {
	return h == HostSystemFAT || h == HostSystemNTFS || h == HostSystemVFAT
}

// Unix constants for file types (standard POSIX)
const (
	S_IFMT  = 0170000 // Type mask
	S_IFREG = 0100000 // Regular file
	S_IFDIR = 0040000 // Directory
	S_IFLNK = 0120000 // Symlink
)

// DOS attribute bits
const (
	dosReadOnly  = 0x01
	dosDirectory = 0x10
	dosArchive   = 0x20
)

// ExternalAttributes encodes mode for the given host.
func ExternalAttributes(host HostSystem, mode fs.FileMode, isDir bool) uint32 {
	var attrs uint32

	switch {
	case host.IsUnix():
		unixMode := uint32(mode & fs.ModePerm)
		switch {
		case isDir:
			unixMode |= S_IFDIR
		case mode&fs.ModeSymlink != 0:
			unixMode |= S_IFLNK
		default:
			unixMode |= S_IFREG
		}
		attrs = unixMode << 16
		if isDir {
			attrs |= dosDirectory
		}

	case host.IsDOS():
		if isDir {
			attrs |= dosDirectory
		} else {
			attrs |= dosArchive
		}
		if mode&0200 == 0 {
			attrs |= dosReadOnly
		}
	}
	return attrs
}

// FileMode decodes external attributes written by host.
func FileMode(host HostSystem, attrs uint32, isDir bool) fs.FileMode {
	if host.IsUnix() {
		unixMode := attrs >> 16
		if unixMode != 0 {
			mode := fs.FileMode(unixMode & 0777)
			switch unixMode & S_IFMT {
			case S_IFDIR:
				mode |= fs.ModeDir
			case S_IFLNK:
				mode |= fs.ModeSymlink
			}
			if isDir {
				mode |= fs.ModeDir
			}
			return mode
		}
	}

	var mode fs.FileMode = 0644
	if isDir || attrs&dosDirectory != 0 {
		mode = 0755 | fs.ModeDir
	}
	if host.IsDOS() && attrs&dosReadOnly != 0 {
		mode &^= 0222 // Remove write permission (a-w)
	}
	return mode
}
