// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zipfile

import (
	"io/fs"
	"strings"

	"github.com/lemon4ksan/zipfile/internal"
	"github.com/lemon4ksan/zipfile/internal/sys"
)

// Item is one file or directory inside an archive.
// Items read from an archive are immutable. Items built for a new archive
// receive their compressed size and offset once written.
type Item struct {
	path              string
	declaredMethod    CompressionMethod // header value, AEx for AES entries
	compressionMethod CompressionMethod // real method
	encryptionMethod  EncryptionMethod
	aes               aesExtra
	flags             uint16
	uncompressedSize  uint32
	compressedSize    uint32
	modified          DosDateTime
	offset            uint32
	crc32             uint32
	comment           string
	mode              fs.FileMode
	hostSystem        sys.HostSystem
	extraField        map[uint16][]byte

	archivePath string // archive holding the entry data
	sourcePath  string // file the entry is built from, write path only
}

// newItemFromCentralDir builds an item from a central directory record.
// A malformed AES extra field is tolerated here and reported at extraction.
func newItemFromCentralDir(entry internal.CentralDirectory, archivePath string) *Item {
	it := &Item{
		path:             entry.Filename,
		declaredMethod:   CompressionMethod(entry.CompressionMethod),
		flags:            entry.GeneralPurposeBitFlag,
		uncompressedSize: entry.UncompressedSize,
		compressedSize:   entry.CompressedSize,
		modified:         UnpackDosDateTime(entry.LastModFileDate, entry.LastModFileTime),
		offset:           entry.LocalHeaderOffset,
		crc32:            entry.CRC32,
		comment:          entry.Comment,
		hostSystem:       sys.HostSystem(entry.VersionMadeBy >> 8),
		extraField:       entry.ExtraField,
		archivePath:      archivePath,
	}

	methods, err := resolveMethods(entry.GeneralPurposeBitFlag, entry.CompressionMethod, entry.ExtraField)
	it.compressionMethod = methods.compression
	it.encryptionMethod = methods.encryption
	if err == nil {
		it.aes = methods.aes
	}

	it.mode = sys.FileMode(it.hostSystem, entry.ExternalFileAttributes, it.IsDir())
	return it
}

// Path returns the forward-slash separated path inside the archive.
func (it *Item) Path() string { return it.path }

// IsDir reports whether the item is a directory (its path ends with a slash).
func (it *Item) IsDir() bool { return strings.HasSuffix(it.path, "/") }

func (it *Item) UncompressedSize() uint32 { return it.uncompressedSize }

func (it *Item) CompressedSize() uint32 { return it.compressedSize }

// CompressionMethod returns the method declared in the header. WinZip AES
// entries report AEx; see ResolvedCompressionMethod for the real one.
func (it *Item) CompressionMethod() CompressionMethod { return it.declaredMethod }

// ResolvedCompressionMethod returns the method the data is actually encoded with.
func (it *Item) ResolvedCompressionMethod() CompressionMethod { return it.compressionMethod }

func (it *Item) EncryptionMethod() EncryptionMethod { return it.encryptionMethod }

// AESStrength returns the key size of a WinZip AES item and zero otherwise.
func (it *Item) AESStrength() AESStrength { return it.aes.strength }

func (it *Item) Modified() DosDateTime { return it.modified }

// Offset returns the position of the local file header inside the archive.
// It is zero for items not yet written.
func (it *Item) Offset() uint32 { return it.offset }

func (it *Item) CRC32() uint32 { return it.crc32 }

func (it *Item) Comment() string { return it.comment }

func (it *Item) Mode() fs.FileMode { return it.mode }

func (it *Item) HostSystem() sys.HostSystem { return it.hostSystem }

// IsEncrypted reports whether a password is needed to read the item.
func (it *Item) IsEncrypted() bool { return it.encryptionMethod != NotEncrypted }

// Ratio returns the fraction of space saved by compression, in [0, 1] for
// compressible data and negative when the encoded form is larger.
func (it *Item) Ratio() float64 {
	if it.uncompressedSize == 0 {
		return 0
	}
	return 1 - float64(it.compressedSize)/float64(it.uncompressedSize)
}

func (it *Item) fail(op string, err error) error {
	return &ItemError{Op: op, Path: it.path, Err: err}
}
