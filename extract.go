// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zipfile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/lemon4ksan/zipfile/internal"
)

// ExtractResult describes one successfully extracted item.
type ExtractResult struct {
	Item *Item
	Path string // Destination on the host file system
}

// localEntry carries the values read from the local file header,
// which are authoritative during extraction.
type localEntry struct {
	methods          entryMethods
	crc32            uint32
	compressedSize   uint32
	uncompressedSize uint32
}

// skipCRC reports whether the stored CRC is meaningless (AE-2 entries).
func (e localEntry) skipCRC() bool {
	return e.methods.encryption == WinZipAES && e.methods.aes.version == aesVersion2
}

// openContent locates the item in src via its local header and returns
// a stream of the decrypted and decompressed content.
// The password is verified before it returns.
func (it *Item) openContent(src io.ReaderAt, password string) (io.ReadCloser, localEntry, error) {
	start := int64(it.offset)
	lfh, err := internal.ReadLocalFileHeader(io.NewSectionReader(src, start, math.MaxInt64-start))
	if err != nil {
		return nil, localEntry{}, formatError(err)
	}

	methods, err := resolveMethods(lfh.GeneralPurposeBitFlag, lfh.CompressionMethod, lfh.ExtraFields())
	if err != nil {
		return nil, localEntry{}, err
	}

	local := localEntry{
		methods:          methods,
		crc32:            lfh.CRC32,
		compressedSize:   lfh.CompressedSize,
		uncompressedSize: lfh.UncompressedSize,
	}
	if err := validateLocal(lfh.GeneralPurposeBitFlag, local); err != nil {
		return nil, local, err
	}

	decompressor, err := decompressorFor(methods.compression)
	if err != nil {
		return nil, local, err
	}

	body := io.NewSectionReader(src, lfh.ContentOffset(start), int64(local.compressedSize))
	plain, err := newDecryptor(body, methods, password, local.crc32, int64(local.compressedSize))
	if err != nil {
		return nil, local, err
	}

	rc, err := decompressor.Decompress(plain)
	if err != nil {
		return nil, local, err
	}
	return &contentReader{ReadCloser: rc, plain: plain}, local, nil
}

// contentReader drains the decrypted stream once the decompressor stops,
// so the cipher reaches its trailer and checks the authentication code.
// An authentication failure takes precedence over a decompression error.
type contentReader struct {
	io.ReadCloser
	plain   io.Reader
	drained bool
}

func (r *contentReader) Read(p []byte) (int, error) {
	n, err := r.ReadCloser.Read(p)
	if err != nil && !r.drained {
		r.drained = true
		_, derr := io.Copy(io.Discard, r.plain)
		if derr != nil && (err == io.EOF || errors.Is(derr, ErrAuthentication)) {
			return n, derr
		}
	}
	return n, err
}

func validateLocal(flags uint16, local localEntry) error {
	if flags&flagDataDescriptor != 0 {
		return fmt.Errorf("%w: data descriptor", ErrUnsupportedFeature)
	}
	if local.methods.encryption == StrongEncryption {
		return fmt.Errorf("%w: %s", ErrUnsupportedEncryption, local.methods.encryption)
	}
	if local.compressedSize == math.MaxUint32 || local.uncompressedSize == math.MaxUint32 {
		return fmt.Errorf("%w: zip64 sizes", ErrUnsupportedFeature)
	}
	return nil
}

// Open returns a reader of the item content. Close reports size and CRC mismatches.
func (it *Item) Open(password string) (io.ReadCloser, error) {
	if it.IsDir() {
		return io.NopCloser(eofReader{}), nil
	}

	f, err := os.Open(it.archivePath)
	if err != nil {
		return nil, it.fail("open", err)
	}

	rc, local, err := it.openContent(f, password)
	if err != nil {
		f.Close()
		return nil, it.fail("open", err)
	}

	return &itemReader{
		checksumReader: newChecksumReader(rc, local.crc32, local.uncompressedSize, local.skipCRC()),
		file:           f,
		item:           it,
	}, nil
}

type itemReader struct {
	*checksumReader
	file *os.File
	item *Item
}

func (r *itemReader) Read(p []byte) (int, error) {
	n, err := r.checksumReader.Read(p)
	if err != nil && err != io.EOF {
		err = r.item.fail("read", err)
	}
	return n, err
}

func (r *itemReader) Close() error {
	err := r.checksumReader.Close()
	if cerr := r.file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return r.item.fail("read", err)
	}
	return nil
}

type eofReader struct{}

func (eofReader) Read([]byte) (int, error) { return 0, io.EOF }

// Extract writes the item below destRoot and returns the created path.
// Directories are created recursively. For files the output is created only
// after the password has been accepted, and its CRC is verified once written.
// A partially written file is removed on failure.
func (it *Item) Extract(ctx context.Context, destRoot, password string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	target, err := secureJoin(destRoot, it.path)
	if err != nil {
		return "", it.fail("extract", err)
	}

	if it.IsDir() {
		if err := os.MkdirAll(target, 0o755); err != nil {
			return "", it.fail("extract", err)
		}
		return target, nil
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", it.fail("extract", fmt.Errorf("create parent: %w", err))
	}

	if err := it.extractFile(ctx, target, password); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		return "", it.fail("extract", err)
	}

	os.Chtimes(target, time.Now(), it.modified.Time())
	return target, nil
}

func (it *Item) extractFile(ctx context.Context, target, password string) (err error) {
	f, err := os.Open(it.archivePath)
	if err != nil {
		return err
	}
	defer f.Close()

	rc, local, err := it.openContent(f, password)
	if err != nil {
		return err
	}
	defer rc.Close()

	perm := it.mode & fs.ModePerm
	if perm == 0 {
		perm = 0o644
	}
	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			os.Remove(target)
		}
	}()

	_, err = io.Copy(out, &contextReader{ctx: ctx, r: rc})
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	return verifyFile(target, local)
}

// verifyFile recomputes the CRC over the written output.
func verifyFile(target string, local localEntry) error {
	crc, n, err := checksumFile(target)
	if err != nil {
		return err
	}
	if n != int64(local.uncompressedSize) {
		return fmt.Errorf("%w: wrote %d, want %d", ErrSizeMismatch, n, local.uncompressedSize)
	}
	if !local.skipCRC() && crc != local.crc32 {
		return fmt.Errorf("%w: got %08x, want %08x", ErrChecksum, crc, local.crc32)
	}
	return nil
}
