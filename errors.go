// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zipfile

import (
	"errors"
	"fmt"

	"github.com/lemon4ksan/zipfile/internal"
)

var (
	// ErrFormat is returned when the input is not a valid ZIP archive.
	// Header decoding failures match both ErrFormat and [internal.ErrMalformedHeader].
	ErrFormat = errors.New("zip: not a valid zip file")

	// ErrUnsupportedCompression is returned when an entry uses a compression method
	// other than Stored or Deflate.
	ErrUnsupportedCompression = errors.New("zip: unsupported compression method")

	// ErrUnsupportedEncryption is returned for strong encryption and unknown AES strengths.
	ErrUnsupportedEncryption = errors.New("zip: unsupported encryption method")

	// ErrUnsupportedFeature is returned for multi-disk archives, ZIP64 records
	// and entries followed by a data descriptor.
	ErrUnsupportedFeature = errors.New("zip: unsupported archive feature")

	// ErrInvalidPassword is returned when the password is missing or fails verification.
	ErrInvalidPassword = errors.New("zip: invalid password")

	// ErrChecksum is returned when the CRC-32 of extracted data does not match.
	ErrChecksum = errors.New("zip: checksum error")

	// ErrAuthentication is returned when the WinZip AES authentication code does not match.
	ErrAuthentication = errors.New("zip: aes authentication failed")

	// ErrSizeMismatch is returned when the uncompressed size does not match the header.
	ErrSizeMismatch = errors.New("zip: uncompressed size mismatch")

	// ErrInsecurePath is returned when an entry path escapes the destination (Zip Slip).
	ErrInsecurePath = errors.New("zip: insecure file path")

	// ErrItemNotFound is returned when the requested entry is not in the archive.
	ErrItemNotFound = errors.New("zip: item not found")

	// ErrFilenameTooLong is returned when a filename exceeds 65535 bytes.
	ErrFilenameTooLong = errors.New("zip: filename too long")

	// ErrArchiveTooLarge is returned when offsets or sizes overflow 32 bits or
	// the entry count overflows 16 bits.
	ErrArchiveTooLarge = errors.New("zip: archive requires zip64")
)

// ItemError records a failure of an operation on a single archive entry.
type ItemError struct {
	Op   string // "extract", "write" or "test"
	Path string // Entry path inside the archive
	Err  error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("zip: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *ItemError) Unwrap() error { return e.Err }

// formatError wraps header decoding errors so they match ErrFormat as well.
func formatError(err error) error {
	if errors.Is(err, internal.ErrMalformedHeader) {
		return fmt.Errorf("%w: %w", ErrFormat, err)
	}
	return err
}
