// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zipfile

import (
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/flate"
)

// CompressionMethod represents the compression algorithm used for a file in the ZIP archive
type CompressionMethod uint16

// Compression method identifiers from the ZIP application note.
// Only Stored and Deflated can be encoded and decoded; the rest are recognised for listings.
const (
	Stored    CompressionMethod = 0  // No compression - file stored as-is
	Shrunk    CompressionMethod = 1  // LZW (legacy PKZIP)
	Imploded  CompressionMethod = 6  // Shannon-Fano + sliding dictionary (legacy PKZIP)
	Deflated  CompressionMethod = 8  // DEFLATE compression (most common)
	Deflate64 CompressionMethod = 9  // DEFLATE64(tm) enhanced compression
	BZIP2     CompressionMethod = 12 // BZIP2 compression
	LZMA      CompressionMethod = 14 // LZMA compression
	ZStandard CompressionMethod = 93 // Zstandard compression
	XZ        CompressionMethod = 95 // XZ compression
	AEx       CompressionMethod = 99 // WinZip AES marker, real method lives in the extra field
)

var compressionNames = map[CompressionMethod]string{
	Stored:    "Stored",
	Shrunk:    "Shrunk",
	Imploded:  "Imploded",
	Deflated:  "Deflated",
	Deflate64: "Deflate64",
	BZIP2:     "BZIP2",
	LZMA:      "LZMA",
	ZStandard: "Zstandard",
	XZ:        "XZ",
	AEx:       "AEx",
}

func (m CompressionMethod) String() string {
	if name, ok := compressionNames[m]; ok {
		return name
	}
	return fmt.Sprintf("Method(%d)", uint16(m))
}

// Compression levels for DEFLATE algorithm
const (
	DeflateNormal    = 6 // Default compression level (good balance between speed and ratio)
	DeflateMaximum   = 9 // Maximum compression (best ratio, slowest speed)
	DeflateFast      = 3 // Fast compression (lower ratio, faster speed)
	DeflateSuperFast = 1 // Super fast compression (lowest ratio, fastest speed)
)

// Compressor encodes an uncompressed stream into dest.
type Compressor interface {
	Compress(src io.Reader, dest io.Writer) (int64, error)
}

// Decompressor wraps a compressed stream.
type Decompressor interface {
	Decompress(src io.Reader) (io.ReadCloser, error)
}

// StoredCompressor implements no compression (STORE method)
type StoredCompressor struct{}

func (sc *StoredCompressor) Compress(src io.Reader, dest io.Writer) (int64, error) {
	return io.Copy(dest, src)
}

// DeflateCompressor implements DEFLATE compression with memory pooling
type DeflateCompressor struct {
	level int
	pool  sync.Pool
}

// NewDeflateCompressor creates a reusable compressor for a specific level.
// Levels outside the flate range fall back to DeflateNormal.
func NewDeflateCompressor(level int) *DeflateCompressor {
	if level < flate.HuffmanOnly || level > flate.BestCompression {
		level = DeflateNormal
	}
	d := &DeflateCompressor{level: level}
	d.pool.New = func() any {
		w, _ := flate.NewWriter(io.Discard, d.level)
		return w
	}
	return d
}

func (d *DeflateCompressor) Compress(src io.Reader, dest io.Writer) (int64, error) {
	w := d.pool.Get().(*flate.Writer)
	defer d.pool.Put(w)

	w.Reset(dest)

	n, err := io.Copy(w, src)
	if err != nil {
		return n, err
	}

	if err := w.Close(); err != nil {
		return n, err
	}

	return n, nil
}

// StoredDecompressor implements the "Store" method (no compression)
type StoredDecompressor struct{}

func (sd *StoredDecompressor) Decompress(src io.Reader) (io.ReadCloser, error) {
	if rc, ok := src.(io.ReadCloser); ok {
		return rc, nil
	}
	return io.NopCloser(src), nil
}

// DeflateDecompressor implements the "Deflate" method
type DeflateDecompressor struct{}

func (dd *DeflateDecompressor) Decompress(src io.Reader) (io.ReadCloser, error) {
	return flate.NewReader(src), nil
}

var (
	deflateCompressorsMu sync.Mutex
	deflateCompressors   = make(map[int]*DeflateCompressor)
)

// compressorFor returns the shared compressor for method and level.
func compressorFor(method CompressionMethod, level int) (Compressor, error) {
	switch method {
	case Stored:
		return &StoredCompressor{}, nil
	case Deflated:
		deflateCompressorsMu.Lock()
		defer deflateCompressorsMu.Unlock()
		c, ok := deflateCompressors[level]
		if !ok {
			c = NewDeflateCompressor(level)
			deflateCompressors[level] = c
		}
		return c, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCompression, method)
	}
}

func decompressorFor(method CompressionMethod) (Decompressor, error) {
	switch method {
	case Stored:
		return &StoredDecompressor{}, nil
	case Deflated:
		return &DeflateDecompressor{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCompression, method)
	}
}
