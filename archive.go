// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package zipfile reads, lists, extracts and creates ZIP archives.
//
// Entries may be stored or deflated, and protected with the legacy ZipCrypto
// cipher or WinZip AES-128/192/256. AES entries are authenticated with
// HMAC-SHA1 and a mismatch fails extraction. Every extracted file is checked
// against its CRC-32, and entry paths that would escape the destination
// ("Zip Slip") are rejected.
//
// Multi-disk archives, ZIP64 and entries followed by a data descriptor are not
// supported.
//
// # Basic Usage
//
// Listing and extracting an archive:
//
//	archive, err := zipfile.Open("backup.zip", zipfile.WithPassword("hunter2"))
//	if err != nil {
//		return err
//	}
//	for _, s := range archive.List() {
//		fmt.Println(s.Path, s.Method, s.UncompressedSize)
//	}
//	results, err := archive.ExtractAll(ctx, "out/")
//
// Creating an archive from a directory:
//
//	archive, err := zipfile.Create(ctx, "photos/", "photos.zip",
//		zipfile.WithEncryption(zipfile.WinZipAES, "secret"),
//		zipfile.WithLogger(logger),
//	)
package zipfile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Archive is a parsed or freshly created ZIP file.
type Archive struct {
	path          string
	items         []*Item
	index         map[string]*Item
	declaredCount uint16
	comment       string
	config        Config
}

// Summary is one row of an archive listing.
type Summary struct {
	Path             string
	Method           CompressionMethod // Real method, resolved for AES entries
	Encryption       EncryptionMethod
	Ratio            float64
	CompressedSize   uint32
	UncompressedSize uint32
	Protected        bool
	Modified         DosDateTime
}

// Open parses the archive at path.
func Open(path string, options ...Option) (*Archive, error) {
	return OpenWithContext(context.Background(), path, options...)
}

// OpenWithContext parses the archive at path with context support.
// The central directory is read eagerly; the first malformed record fails the call.
func OpenWithContext(ctx context.Context, path string, options ...Option) (*Archive, error) {
	config := newConfig(options)

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	end, entries, err := parseMetadata(ctx, f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	items := make([]*Item, len(entries))
	for i, entry := range entries {
		items[i] = newItemFromCentralDir(entry, path)
	}

	config.Logger.Debug("archive opened",
		zap.String("path", path),
		zap.Int("entries", len(items)),
		zap.Int64("size", info.Size()),
	)

	return newArchive(path, items, end.TotalNumberOfEntries, end.Comment, config), nil
}

func newArchive(path string, items []*Item, declaredCount uint16, comment string, config Config) *Archive {
	a := &Archive{
		path:          path,
		items:         items,
		index:         make(map[string]*Item, len(items)),
		declaredCount: declaredCount,
		comment:       comment,
		config:        config,
	}
	for _, it := range items {
		a.index[it.path] = it
	}
	return a
}

// Path returns the location of the archive on disk.
func (a *Archive) Path() string { return a.path }

// Items returns the entries in central directory order.
func (a *Archive) Items() []*Item { return a.items }

// DeclaredCount returns the entry count recorded in the end of central directory record.
func (a *Archive) DeclaredCount() uint16 { return a.declaredCount }

func (a *Archive) Comment() string { return a.comment }

// EncryptionMethod returns the method of the first encrypted entry, or
// NotEncrypted. Callers use it to decide whether a password is needed.
func (a *Archive) EncryptionMethod() EncryptionMethod {
	for _, it := range a.items {
		if it.encryptionMethod != NotEncrypted {
			return it.encryptionMethod
		}
	}
	return NotEncrypted
}

// SetPassword replaces the password used for later extraction.
func (a *Archive) SetPassword(pwd string) { a.config.Password = pwd }

// Item returns the entry stored under path.
func (a *Archive) Item(path string) (*Item, error) {
	if it, ok := a.index[path]; ok {
		return it, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrItemNotFound, path)
}

// List summarises every entry in order.
func (a *Archive) List() []Summary {
	summaries := make([]Summary, len(a.items))
	for i, it := range a.items {
		summaries[i] = Summary{
			Path:             it.path,
			Method:           it.compressionMethod,
			Encryption:       it.encryptionMethod,
			Ratio:            it.Ratio(),
			CompressedSize:   it.compressedSize,
			UncompressedSize: it.uncompressedSize,
			Protected:        it.IsEncrypted(),
			Modified:         it.modified,
		}
	}
	return summaries
}

func (a *Archive) selectItems(options []ExtractOption) []*Item {
	items := a.items
	for _, opt := range options {
		items = opt(items)
	}
	return items
}

// ExtractAll extracts the selected entries below dest in archive order.
// It stops at the first failure and returns the results gathered so far.
func (a *Archive) ExtractAll(ctx context.Context, dest string, options ...ExtractOption) ([]ExtractResult, error) {
	items := a.selectItems(options)
	results := make([]ExtractResult, 0, len(items))

	for _, it := range items {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		path, err := it.Extract(ctx, dest, a.config.Password)
		a.config.logItem("extract", it, err)
		if err != nil {
			return results, err
		}
		results = append(results, ExtractResult{Item: it, Path: path})
	}
	return results, nil
}

// ExtractParallel extracts the selected entries using up to workers goroutines.
// Directories are created first; the first failed file cancels the rest.
// Results are returned in archive order.
func (a *Archive) ExtractParallel(ctx context.Context, dest string, workers int, options ...ExtractOption) ([]ExtractResult, error) {
	items := a.selectItems(options)
	results := make([]ExtractResult, len(items))

	var files []int
	for i, it := range items {
		if !it.IsDir() {
			files = append(files, i)
			continue
		}
		path, err := it.Extract(ctx, dest, a.config.Password)
		a.config.logItem("extract", it, err)
		if err != nil {
			return compactResults(results), err
		}
		results[i] = ExtractResult{Item: it, Path: path}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))

	for _, i := range files {
		it := items[i]
		g.Go(func() error {
			path, err := it.Extract(gctx, dest, a.config.Password)
			a.config.logItem("extract", it, err)
			if err != nil {
				return err
			}
			results[i] = ExtractResult{Item: it, Path: path}
			return nil
		})
	}

	err := g.Wait()
	return compactResults(results), err
}

func compactResults(results []ExtractResult) []ExtractResult {
	compact := results[:0:0]
	for _, r := range results {
		if r.Item != nil {
			compact = append(compact, r)
		}
	}
	return compact
}

// Test decodes every file without writing it, verifying passwords, sizes,
// CRCs and AES authentication codes. All failures are reported together.
func (a *Archive) Test(ctx context.Context) error {
	var result *multierror.Error

	for _, it := range a.items {
		if err := ctx.Err(); err != nil {
			return err
		}
		if it.IsDir() {
			continue
		}

		err := testItem(ctx, it, a.config.Password)
		a.config.logItem("test", it, err)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

func testItem(ctx context.Context, it *Item, password string) error {
	rc, err := it.Open(password)
	if err != nil {
		return err
	}
	_, err = io.Copy(io.Discard, &contextReader{ctx: ctx, r: rc})
	if cerr := rc.Close(); err == nil {
		err = cerr
	}
	return err
}

// Create archives srcPath into a new file at destPath and returns its handle.
// A directory is stored with its contents but without the directory itself.
func Create(ctx context.Context, srcPath, destPath string, options ...Option) (*Archive, error) {
	config := newConfig(options)

	items, err := collectItems(srcPath, &config)
	if err != nil {
		return nil, err
	}

	// An archive written inside the source tree must not include a previous copy of itself.
	if absDest, err := filepath.Abs(destPath); err == nil {
		items = withoutSource(items, absDest)
	}

	return createArchive(ctx, items, destPath, config)
}

// CreateFromItems writes items, as returned by CollectItems, into a new file at destPath.
func CreateFromItems(ctx context.Context, items []*Item, destPath string, options ...Option) (*Archive, error) {
	return createArchive(ctx, items, destPath, newConfig(options))
}

func createArchive(ctx context.Context, items []*Item, destPath string, config Config) (archive *Archive, err error) {
	for _, it := range items {
		if !it.IsDir() && it.sourcePath == "" {
			return nil, it.fail("write", errors.New("item has no source file"))
		}
	}

	items = SortItems(items, config.Order)

	f, err := os.Create(destPath)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
		if err != nil {
			archive = nil
			os.Remove(destPath)
		}
	}()

	aw := newArchiveWriter(f, &config)
	for _, it := range items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		werr := aw.writeItem(ctx, it)
		config.logItem("write", it, werr)
		if werr != nil {
			if errors.Is(werr, context.Canceled) || errors.Is(werr, context.DeadlineExceeded) {
				return nil, werr
			}
			return nil, it.fail("write", werr)
		}
		it.archivePath = destPath
	}

	if err := aw.finalize(); err != nil {
		return nil, err
	}

	config.Logger.Debug("archive created",
		zap.String("path", destPath),
		zap.Int("entries", len(items)),
		zap.Int64("size", aw.offset),
	)

	return newArchive(destPath, items, uint16(len(items)), config.Comment, config), nil
}

func withoutSource(items []*Item, absDest string) []*Item {
	kept := items[:0]
	for _, it := range items {
		if it.sourcePath != "" {
			if abs, err := filepath.Abs(it.sourcePath); err == nil && abs == absDest {
				continue
			}
		}
		kept = append(kept, it)
	}
	return kept
}
