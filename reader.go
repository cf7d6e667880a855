// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zipfile

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/lemon4ksan/zipfile/internal"
)

// maxEndOfCentralDirSearch bounds the backward scan: the record plus the largest comment.
const maxEndOfCentralDirSearch = internal.EndOfCentralDirLen + math.MaxUint16

// parseMetadata locates the end of central directory record and decodes
// every central directory entry it declares.
func parseMetadata(ctx context.Context, src io.ReaderAt, size int64) (internal.EndOfCentralDirectory, []internal.CentralDirectory, error) {
	end, endOffset, err := findEndOfCentralDir(ctx, src, size)
	if err != nil {
		return end, nil, err
	}

	if end.ThisDiskNum != 0 || end.DiskNumWithTheStartOfCentralDir != 0 ||
		end.TotalNumberOfEntriesOnThisDisk != end.TotalNumberOfEntries {
		return end, nil, fmt.Errorf("%w: multi-disk archive", ErrUnsupportedFeature)
	}
	if end.TotalNumberOfEntries == math.MaxUint16 || end.CentralDirOffset == math.MaxUint32 ||
		end.CentralDirSize == math.MaxUint32 {
		return end, nil, fmt.Errorf("%w: zip64 archive", ErrUnsupportedFeature)
	}

	cdEnd := int64(end.CentralDirOffset) + int64(end.CentralDirSize)
	if cdEnd > endOffset {
		return end, nil, fmt.Errorf("%w: central directory overlaps end record", ErrFormat)
	}

	entries, err := readCentralDir(ctx, src, int64(end.CentralDirOffset), endOffset, int(end.TotalNumberOfEntries))
	if err != nil {
		return end, nil, err
	}
	return end, entries, nil
}

// findEndOfCentralDir scans backwards from the end of src for the record signature.
// A candidate is accepted only if its comment fits in the remaining bytes.
func findEndOfCentralDir(ctx context.Context, src io.ReaderAt, size int64) (internal.EndOfCentralDirectory, int64, error) {
	var end internal.EndOfCentralDirectory

	if size < internal.EndOfCentralDirLen {
		return end, 0, fmt.Errorf("%w: file too small", ErrFormat)
	}

	searchLen := min(size, maxEndOfCentralDirSearch)
	searchStart := size - searchLen

	buf := make([]byte, searchLen)
	if _, err := src.ReadAt(buf, searchStart); err != nil && err != io.EOF {
		return end, 0, fmt.Errorf("read at %d: %w", searchStart, err)
	}

	for p := len(buf) - internal.EndOfCentralDirLen; p >= 0; p-- {
		if p%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return end, 0, err
			}
		}
		if binary.LittleEndian.Uint32(buf[p:p+4]) != internal.EndOfCentralDirSignature {
			continue
		}

		commentLen := int(binary.LittleEndian.Uint16(buf[p+20 : p+22]))
		if p+internal.EndOfCentralDirLen+commentLen > len(buf) {
			continue
		}

		record, err := internal.ReadEndOfCentralDir(bytes.NewReader(buf[p:]))
		if err != nil {
			return end, 0, formatError(err)
		}
		return record, searchStart + int64(p), nil
	}

	return end, 0, fmt.Errorf("%w: no end of central directory signature found", ErrFormat)
}

// readCentralDir decodes exactly count entries starting at offset.
// Any short read or bad signature fails the whole archive.
func readCentralDir(ctx context.Context, src io.ReaderAt, offset, limit int64, count int) ([]internal.CentralDirectory, error) {
	r := bufio.NewReader(io.NewSectionReader(src, offset, limit-offset))

	entries := make([]internal.CentralDirectory, 0, count)
	for i := range count {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		entry, err := internal.ReadCentralDirEntry(r)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, formatError(err))
		}
		if entry.DiskNumberStart != 0 {
			return nil, fmt.Errorf("%w: entry %q on disk %d", ErrUnsupportedFeature, entry.Filename, entry.DiskNumberStart)
		}
		if entry.LocalHeaderOffset == math.MaxUint32 {
			return nil, fmt.Errorf("%w: zip64 entry %q", ErrUnsupportedFeature, entry.Filename)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
