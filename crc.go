// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zipfile

import (
	"fmt"
	"hash"
	"hash/crc32"
	"io"
	"os"
)

// crc32Update folds a single byte into a running CRC-32 register.
// The register is not complemented, as required by the ZipCrypto key schedule.
func crc32Update(crc uint32, b byte) uint32 {
	return crc32.IEEETable[byte(crc)^b] ^ (crc >> 8)
}

// checksum returns the IEEE CRC-32 of everything read from r.
func checksum(r io.Reader) (uint32, int64, error) {
	hasher := crc32.NewIEEE()
	n, err := io.Copy(hasher, r)
	if err != nil {
		return 0, n, err
	}
	return hasher.Sum32(), n, nil
}

// checksumFile returns the IEEE CRC-32 and size of the file at path.
func checksumFile(path string) (uint32, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	crc, n, err := checksum(f)
	if err != nil {
		return 0, n, fmt.Errorf("checksum %s: %w", path, err)
	}
	return crc, n, nil
}

// checksumReader wraps an io.ReadCloser to verify CRC32 checksum and size during reading.
// The comparison happens on Close so that callers see every byte before the verdict.
type checksumReader struct {
	rc      io.ReadCloser
	hash    hash.Hash32
	want    uint32
	skipCRC bool
	read    uint64
	size    uint64
}

func newChecksumReader(rc io.ReadCloser, want uint32, size uint32, skipCRC bool) *checksumReader {
	return &checksumReader{
		rc:      rc,
		hash:    crc32.NewIEEE(),
		want:    want,
		skipCRC: skipCRC,
		size:    uint64(size),
	}
}

// Read implements io.Reader interface while calculating CRC32 and tracking bytes read
func (cr *checksumReader) Read(p []byte) (int, error) {
	n, err := cr.rc.Read(p)
	if n > 0 {
		cr.read += uint64(n)
		if cr.read > cr.size {
			return n, ErrSizeMismatch
		}
		cr.hash.Write(p[:n])
	}
	return n, err
}

// Close implements io.Closer interface and verifies CRC32 and size after reading completes
func (cr *checksumReader) Close() error {
	if err := cr.rc.Close(); err != nil {
		return err
	}

	if cr.read != cr.size {
		return fmt.Errorf("%w: read %d, want %d", ErrSizeMismatch, cr.read, cr.size)
	}

	if got := cr.hash.Sum32(); !cr.skipCRC && got != cr.want {
		return fmt.Errorf("%w: got %08x, want %08x", ErrChecksum, got, cr.want)
	}
	return nil
}
